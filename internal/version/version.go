/*
 * Copyright (c) 2026 by easiwriter.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package version exposes the build version of the layout core. The
// variables are overridden at release time via -ldflags.
package version

// Version is the semantic version of the module.
var Version = "0.4.0-dev"

// Commit is the short VCS hash the binary was built from, if known.
var Commit = ""

// String returns the version, including the commit when present.
func String() string {
	if Commit == "" {
		return Version
	}
	return Version + "+" + Commit
}
