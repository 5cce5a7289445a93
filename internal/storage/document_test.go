/*
 * Copyright (c) 2026 by easiwriter.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/easiwriter/WritingShedPro-sub015/internal/geometry"
	"github.com/easiwriter/WritingShedPro-sub015/internal/paginate"
)

func TestInitDocumentCreatesStructureAndSetup(t *testing.T) {
	root := t.TempDir()
	setup := DefaultPageSetup()
	setup.Title = "Test Document"

	dh, err := InitDocument(root, setup)
	if err != nil {
		t.Fatalf("InitDocument error: %v", err)
	}
	if dh == nil {
		t.Fatalf("InitDocument returned nil handle")
	}

	if dh.SetupPath == "" {
		t.Fatalf("SetupPath not set")
	}
	b, err := os.ReadFile(dh.SetupPath)
	if err != nil {
		t.Fatalf("read setup: %v", err)
	}
	var got PageSetup
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal setup: %v", err)
	}
	if got.Title != setup.Title {
		t.Fatalf("setup title mismatch: got %q want %q", got.Title, setup.Title)
	}
	if got.Page != geometry.Default() {
		t.Fatalf("setup geometry mismatch: got %+v", got.Page)
	}
	if got.Mode != paginate.Footnotes {
		t.Fatalf("setup mode mismatch: got %q", got.Mode)
	}

	wantDirs := []string{"text", "exports", BackupsDirName}
	for _, d := range wantDirs {
		p := filepath.Join(root, d)
		if fi, err := os.Stat(p); err != nil || !fi.IsDir() {
			t.Fatalf("expected directory %s to exist", p)
		}
	}
}

func TestSaveCreatesTimestampedBackup(t *testing.T) {
	root := t.TempDir()
	dh, err := InitDocument(root, DefaultPageSetup())
	if err != nil {
		t.Fatalf("InitDocument error: %v", err)
	}

	// Change something and save again to force a backup
	dh.Setup.Page.Margins.Top = 36
	if err := Save(dh); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	ents, err := os.ReadDir(filepath.Join(root, BackupsDirName))
	if err != nil {
		t.Fatalf("read backups dir: %v", err)
	}
	var bakCount int
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, SetupFileName+".") && strings.HasSuffix(name, ".bak") {
			bakCount++
		}
	}
	if bakCount == 0 {
		t.Fatalf("expected at least one backup file, found 0")
	}
}

func TestOpenFallsBackToLatestBackupOnCorruption(t *testing.T) {
	root := t.TempDir()
	setup := DefaultPageSetup()
	setup.Title = "Open From Backup"
	dh, err := InitDocument(root, setup)
	if err != nil {
		t.Fatalf("InitDocument error: %v", err)
	}

	// Force a backup to exist by saving
	dh.Setup.Page.Footer = true
	if err := Save(dh); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	// Corrupt the setup file
	if err := os.WriteFile(dh.SetupPath, []byte("{ this is not json"), 0o644); err != nil {
		t.Fatalf("corrupt setup: %v", err)
	}

	// Now opening should succeed via latest backup
	opened, err := Open(root)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if opened.Setup.Title != setup.Title {
		t.Fatalf("opened title mismatch: got %q want %q", opened.Setup.Title, setup.Title)
	}
}

func TestOpenWithoutSetupOrBackupFails(t *testing.T) {
	if _, err := Open(t.TempDir()); err == nil {
		t.Fatalf("expected error opening empty directory")
	}
}

func TestSaveAsScaffoldsNewRoot(t *testing.T) {
	root := t.TempDir()
	dh, err := InitDocument(root, DefaultPageSetup())
	if err != nil {
		t.Fatalf("InitDocument error: %v", err)
	}

	newRoot := filepath.Join(t.TempDir(), "copy")
	if err := SaveAs(dh, newRoot); err != nil {
		t.Fatalf("SaveAs error: %v", err)
	}
	if dh.Root != newRoot {
		t.Fatalf("handle root not updated: %q", dh.Root)
	}
	if _, err := os.Stat(filepath.Join(newRoot, SetupFileName)); err != nil {
		t.Fatalf("setup missing at new root: %v", err)
	}
	if fi, err := os.Stat(filepath.Join(newRoot, "exports")); err != nil || !fi.IsDir() {
		t.Fatalf("expected exports dir at new root")
	}
}

func TestAutosaveCrashSnapshotWritesFile(t *testing.T) {
	root := t.TempDir()
	setup := DefaultPageSetup()
	setup.Title = "Crash Snapshot"
	dh, err := InitDocument(root, setup)
	if err != nil {
		t.Fatalf("InitDocument error: %v", err)
	}

	path, err := AutosaveCrashSnapshot(dh)
	if err != nil {
		t.Fatalf("AutosaveCrashSnapshot error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("snapshot file does not exist: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	var got PageSetup
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if got.Title != setup.Title {
		t.Fatalf("snapshot content mismatch: got %q want %q", got.Title, setup.Title)
	}
}

func TestPageSetupValidate(t *testing.T) {
	good := DefaultPageSetup()
	if err := good.Validate(); err != nil {
		t.Fatalf("default setup should validate: %v", err)
	}

	bad := DefaultPageSetup()
	bad.Page.Margins.Left = -1
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected negative margin to be rejected")
	}

	badMode := DefaultPageSetup()
	badMode.Mode = "marginalia"
	if err := badMode.Validate(); err == nil {
		t.Fatalf("expected unknown display mode to be rejected")
	}
}
