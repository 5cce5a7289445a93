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
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/easiwriter/WritingShedPro-sub015/internal/geometry"
	"github.com/easiwriter/WritingShedPro-sub015/internal/paginate"
)

const (
	SetupFileName  = "pagesetup.json"
	BackupsDirName = "backups"

	// SetupFormatVersion is written into every saved setup file. Bump it
	// when the file format changes shape.
	SetupFormatVersion = 1
)

// Standard subfolders of a document directory.
var standardSubDirs = []string{
	"text",
	"exports",
	BackupsDirName,
}

// PageSetup is the persisted per-document layout configuration: the page
// geometry the calculator reads on every pass and the annotation display
// mode. Title is free-form and only shown in listings.
type PageSetup struct {
	FormatVersion int                  `json:"formatVersion"`
	Title         string               `json:"title,omitempty"`
	Page          geometry.Geometry    `json:"page"`
	Mode          paginate.DisplayMode `json:"displayMode"`
}

// DefaultPageSetup returns the setup new documents start with.
func DefaultPageSetup() PageSetup {
	return PageSetup{
		FormatVersion: SetupFormatVersion,
		Page:          geometry.Default(),
		Mode:          paginate.Footnotes,
	}
}

// Validate checks the setup for values the layout engine would reject.
func (ps PageSetup) Validate() error {
	if err := ps.Page.Validate(); err != nil {
		return err
	}
	if _, err := paginate.ParseDisplayMode(string(ps.Mode)); err != nil {
		return err
	}
	return nil
}

// DocumentHandle keeps track of the document state loaded/saved from disk.
// Root is the document directory containing pagesetup.json and subfolders.
// Setup holds the in-memory representation of the setup file.
type DocumentHandle struct {
	Root      string
	SetupPath string
	Setup     PageSetup
}

// InitDocument creates a new document directory at root (creating it if it
// doesn't exist), scaffolds the standard subfolders, and writes the given
// setup file transactionally.
func InitDocument(root string, setup PageSetup) (*DocumentHandle, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root path is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create document root: %w", err)
	}
	for _, d := range standardSubDirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return nil, fmt.Errorf("create subdir %s: %w", d, err)
		}
	}

	dh := &DocumentHandle{
		Root:      root,
		SetupPath: filepath.Join(root, SetupFileName),
		Setup:     setup,
	}
	if err := Save(dh); err != nil {
		return nil, err
	}
	return dh, nil
}

// Open loads an existing document from the given root directory.
// If the current setup file cannot be read or parsed, it will attempt the
// latest backup.
func Open(root string) (*DocumentHandle, error) {
	spath := filepath.Join(root, SetupFileName)
	b, err := os.ReadFile(spath)
	if err != nil {
		setup, berr := openFromLatestBackup(root)
		if berr != nil {
			return nil, fmt.Errorf("open page setup: %w; backup attempt: %v", err, berr)
		}
		return &DocumentHandle{Root: root, SetupPath: spath, Setup: *setup}, nil
	}
	var ps PageSetup
	if uerr := json.Unmarshal(b, &ps); uerr != nil {
		setup, berr := openFromLatestBackup(root)
		if berr != nil {
			return nil, fmt.Errorf("parse page setup: %w; backup attempt: %v", uerr, berr)
		}
		return &DocumentHandle{Root: root, SetupPath: spath, Setup: *setup}, nil
	}
	return &DocumentHandle{Root: root, SetupPath: spath, Setup: ps}, nil
}

// Save writes the current DocumentHandle.Setup to disk with transactional
// semantics and a timestamped backup of the previous setup file (if present).
func Save(dh *DocumentHandle) error {
	if dh == nil {
		return errors.New("nil DocumentHandle")
	}
	if dh.Root == "" || dh.SetupPath == "" {
		return errors.New("invalid DocumentHandle: missing paths")
	}
	data, err := json.MarshalIndent(dh.Setup, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal page setup: %w", err)
	}
	data = append(data, '\n')

	bdir := filepath.Join(dh.Root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}

	// If a current setup file exists, copy it to a timestamped backup
	// before replacing.
	if _, statErr := os.Stat(dh.SetupPath); statErr == nil {
		stamp := time.Now().Format("20060102-150405")
		bname := fmt.Sprintf("%s.%s.bak", SetupFileName, stamp)
		bpath := filepath.Join(bdir, bname)
		if cerr := copyFile(dh.SetupPath, bpath); cerr != nil {
			return fmt.Errorf("backup current page setup: %w", cerr)
		}
	}

	// Transactional write: to temp file in same directory, then rename
	// over target.
	dir := filepath.Dir(dh.SetupPath)
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", SetupFileName, os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		return fmt.Errorf("write temp page setup: %w", werr)
	}
	// On Windows, replace by removing destination first if needed.
	if _, err := os.Stat(dh.SetupPath); err == nil {
		_ = os.Remove(dh.SetupPath)
	}
	if rerr := os.Rename(temp, dh.SetupPath); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace page setup: %w", rerr)
	}
	return nil
}

// SaveAs writes the setup to a new root folder, scaffolding structure if
// needed, and updates the handle.
func SaveAs(dh *DocumentHandle, newRoot string) error {
	if dh == nil {
		return errors.New("nil DocumentHandle")
	}
	if newRoot == "" {
		return errors.New("new root is empty")
	}
	if err := os.MkdirAll(newRoot, 0o755); err != nil {
		return fmt.Errorf("create new root: %w", err)
	}
	for _, d := range standardSubDirs {
		if err := os.MkdirAll(filepath.Join(newRoot, d), 0o755); err != nil {
			return fmt.Errorf("create subdir %s: %w", d, err)
		}
	}
	dh.Root = newRoot
	dh.SetupPath = filepath.Join(newRoot, SetupFileName)
	return Save(dh)
}

// AutosaveCrashSnapshot writes the in-memory setup to a timestamped file in
// the backups folder without touching the live setup file. It is called from
// the crash handler, so it avoids the backup-then-rename dance and returns
// the path it wrote.
func AutosaveCrashSnapshot(dh *DocumentHandle) (string, error) {
	if dh == nil {
		return "", errors.New("nil DocumentHandle")
	}
	data, err := json.MarshalIndent(dh.Setup, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal page setup: %w", err)
	}
	data = append(data, '\n')
	bdir := filepath.Join(dh.Root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return "", fmt.Errorf("ensure backups dir: %w", err)
	}
	stamp := time.Now().Format("20060102-150405")
	path := filepath.Join(bdir, fmt.Sprintf("%s.autosave-%s.json", SetupFileName, stamp))
	if err := writeFileSync(path, data); err != nil {
		return "", fmt.Errorf("write crash snapshot: %w", err)
	}
	return path, nil
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	return nil
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	if err := df.Sync(); err != nil {
		return err
	}
	return nil
}

// openFromLatestBackup tries to open the latest timestamped backup.
func openFromLatestBackup(root string) (*PageSetup, error) {
	bdir := filepath.Join(root, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	var candidates []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, SetupFileName+".") && strings.HasSuffix(name, ".bak") {
			candidates = append(candidates, filepath.Join(bdir, name))
		}
	}
	if len(candidates) == 0 {
		return nil, errors.New("no backups found")
	}
	sort.Strings(candidates) // timestamp in name yields lexicographic order
	latest := candidates[len(candidates)-1]
	b, err := os.ReadFile(latest)
	if err != nil {
		return nil, fmt.Errorf("read latest backup: %w", err)
	}
	var ps PageSetup
	if err := json.Unmarshal(b, &ps); err != nil {
		return nil, fmt.Errorf("parse latest backup: %w", err)
	}
	return &ps, nil
}
