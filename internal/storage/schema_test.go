/*
 * Copyright (c) 2026 by easiwriter.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"os"
	"path/filepath"
	"testing"

	gojsonschema "github.com/xeipuuv/gojsonschema"
)

func TestPageSetupConformsToSchema(t *testing.T) {
	root := t.TempDir()
	setup := DefaultPageSetup()
	setup.Title = "Schema Test"
	dh, err := InitDocument(root, setup)
	if err != nil {
		t.Fatalf("InitDocument error: %v", err)
	}

	// Load setup bytes
	data, err := os.ReadFile(dh.SetupPath)
	if err != nil {
		t.Fatalf("read setup: %v", err)
	}

	// Load schema bytes via relative path to repository docs
	schemaPath := filepath.Join("..", "..", "docs", "pagesetup.schema.json")
	schemaBytes, err := os.ReadFile(schemaPath)
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}

	schemaLoader := gojsonschema.NewBytesLoader(schemaBytes)
	docLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		t.Fatalf("schema validate error: %v", err)
	}
	if !result.Valid() {
		for _, e := range result.Errors() {
			t.Logf("schema error: %s", e)
		}
		t.Fatalf("page setup does not conform to schema")
	}
}
