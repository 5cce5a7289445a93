/*
 * Copyright (c) 2026 by easiwriter.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage implements on-disk persistence for a document directory.
// It handles create/open/save for the page setup file (pagesetup.json) with
// transactional writes and timestamped backups, and manages the per-document
// embedded SQLite database at <document>/.wshed/annotations.sqlite that holds
// the canonical annotation records and their full-text index.
package storage
