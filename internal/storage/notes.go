/*
 * Copyright (c) 2026 by easiwriter.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/easiwriter/WritingShedPro-sub015/internal/annotation"
	applog "github.com/easiwriter/WritingShedPro-sub015/internal/log"
	"github.com/easiwriter/WritingShedPro-sub015/internal/version"
	"log/slog"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// NotesDirName stores all per-document embedded data under the
	// document root.
	NotesDirName  = ".wshed"
	NotesFileName = "annotations.sqlite"

	// notesSchemaVersion tracks the local SQLite schema for the embedded
	// annotation store. Bump this when you perform breaking schema changes
	// and add migrations.
	notesSchemaVersion = 2
)

// NotesPath returns the full path to the document's annotation database file.
func NotesPath(documentRoot string) string {
	return filepath.Join(documentRoot, NotesDirName, NotesFileName)
}

// sortableTime is RFC3339 with a fixed-width fraction so the TEXT column
// sorts chronologically. RFC3339Nano drops trailing zeros, which breaks
// lexicographic ordering when one fraction is a prefix of another.
const sortableTime = "2006-01-02T15:04:05.000000000Z07:00"

// NotesDB is the SQLite-backed annotation store. The records in here are
// canonical, not a derived cache: they cannot be rebuilt from other files
// in the document directory.
type NotesDB struct {
	db *sql.DB

	// mu guards last; creation times are forced strictly monotonic so
	// anchor ties keep insertion order.
	mu   sync.Mutex
	last time.Time
}

// OpenNotes ensures that the per-document SQLite store exists at
// .wshed/annotations.sqlite, opens the database, enables WAL mode, and
// ensures the meta/version tables and annotation schema exist. The returned
// NotesDB is ready for use; callers close it when no longer needed.
func OpenNotes(documentRoot string) (*NotesDB, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "notes_open").With(
		slog.String("root", documentRoot),
	)
	if strings.TrimSpace(documentRoot) == "" {
		return nil, errors.New("document root is required")
	}
	if err := os.MkdirAll(filepath.Join(documentRoot, NotesDirName), 0o755); err != nil {
		l.Error("create .wshed dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create .wshed dir: %w", err)
	}

	path := NotesPath(documentRoot)
	// Use a URI with shared cache and set busy timeout. Convert to forward
	// slashes for SQLite URI.
	uriPath := filepath.ToSlash(path)
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", uriPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Set reasonable connection pool limits for embedded usage.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Ensure WAL mode is active.
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	// Enforce foreign keys just in case future schema uses them.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		l.Warn("enable foreign_keys failed", slog.Any("err", err))
	}

	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureNotesSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure notes schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runNotesMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}

	l.Info("annotation store ready", slog.String("path", path))
	return &NotesDB{db: db}, nil
}

// Close releases the underlying database handle.
func (n *NotesDB) Close() error { return n.db.Close() }

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	// Seed or update single-row version info.
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// Fresh DB starts at the current schema version.
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, notesSchemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// Update app and timestamp only; keep existing schema for
		// migrations.
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// runNotesMigrations applies incremental schema migrations up to
// notesSchemaVersion.
func runNotesMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > notesSchemaVersion {
		// Do not downgrade.
		return nil
	}
	for cur < notesSchemaVersion {
		next := cur + 1
		switch next {
		case 2:
			// Add lookup indexes for anchor ordering and the live filter.
			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				return fmt.Errorf("begin migration %d: %w", next, err)
			}
			stmts := []string{
				`CREATE INDEX IF NOT EXISTS idx_annotations_anchor ON annotations(anchor);`,
				`CREATE INDEX IF NOT EXISTS idx_annotations_live ON annotations(deleted, anchor);`,
			}
			for _, q := range stmts {
				if _, err := tx.ExecContext(ctx, q); err != nil {
					_ = tx.Rollback()
					return fmt.Errorf("migration %d stmt failed: %w", next, err)
				}
			}
			if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d update version: %w", next, err)
			}
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("migration %d commit: %w", next, err)
			}
			// Best-effort FTS optimize (outside the tx).
			if _, err := db.ExecContext(ctx, `INSERT INTO fts_notes(fts_notes) VALUES('optimize')`); err != nil {
				// best-effort optimize; ignore errors
			}
		default:
			// Unknown future step; nothing to run.
		}
		cur = next
	}
	return nil
}

// ensureNotesSchema creates the annotations table and FTS structures if they
// do not exist.
func ensureNotesSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS annotations (
			id      TEXT    PRIMARY KEY,
			anchor  INTEGER NOT NULL,
			number  INTEGER NOT NULL DEFAULT 0,
			note    TEXT    NOT NULL,
			deleted INTEGER NOT NULL DEFAULT 0,
			created TEXT    NOT NULL,
			updated TEXT    NOT NULL
		);`,

		// External-content FTS5 index over the note text, fed via triggers.
		`CREATE VIRTUAL TABLE IF NOT EXISTS fts_notes USING fts5(
			note,
			content='annotations',
			tokenize = 'unicode61'
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure notes schema: %w", err)
		}
	}
	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS annotations_ai AFTER INSERT ON annotations BEGIN
			INSERT INTO fts_notes(rowid, note) VALUES (new.rowid, new.note);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS annotations_ad AFTER DELETE ON annotations BEGIN
			INSERT INTO fts_notes(fts_notes, rowid, note) VALUES ('delete', old.rowid, old.note);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS annotations_au AFTER UPDATE OF note ON annotations BEGIN
			INSERT INTO fts_notes(fts_notes, rowid, note) VALUES ('delete', old.rowid, old.note);
			INSERT INTO fts_notes(rowid, note) VALUES (new.rowid, new.note);
		END;`,
	}
	for _, q := range triggers {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure fts triggers: %w", err)
		}
	}
	return nil
}

// language=SQL
// dialect=SQLite
const listNotesSQL = `SELECT id, anchor, number, note, deleted, created FROM annotations ORDER BY anchor, created, id`

// language=SQL
// dialect=SQLite
const insertNoteSQL = `INSERT INTO annotations(id, anchor, number, note, deleted, created, updated) VALUES (?, ?, 0, ?, 0, ?, ?)`

// language=SQL
// dialect=SQLite
const seedNoteSQL = `INSERT INTO annotations(id, anchor, number, note, deleted, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET anchor=excluded.anchor, number=excluded.number, note=excluded.note, deleted=excluded.deleted, updated=excluded.updated`

// List returns all records ordered by anchor, creation time, then ID.
func (n *NotesDB) List(ctx context.Context) ([]annotation.Record, error) {
	rows, err := n.db.QueryContext(ctx, listNotesSQL)
	if err != nil {
		return nil, fmt.Errorf("list annotations: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []annotation.Record
	for rows.Next() {
		var (
			rec     annotation.Record
			id      string
			deleted int
			created string
		)
		if err := rows.Scan(&id, &rec.Anchor, &rec.Number, &rec.Text, &deleted, &created); err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}
		rec.ID = annotation.ID(id)
		rec.Deleted = deleted != 0
		rec.Created, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Create inserts a record at the given anchor and returns it. The display
// number starts at zero until a renumber pass assigns it.
func (n *NotesDB) Create(ctx context.Context, anchor int, text string) (annotation.Record, error) {
	n.mu.Lock()
	now := time.Now().UTC()
	if !now.After(n.last) {
		now = n.last.Add(time.Nanosecond)
	}
	n.last = now
	n.mu.Unlock()

	rec := annotation.Record{ID: annotation.NewID(), Anchor: anchor, Text: text, Created: now}
	ts := now.Format(sortableTime)
	if _, err := n.db.ExecContext(ctx, insertNoteSQL, string(rec.ID), rec.Anchor, rec.Text, ts, ts); err != nil {
		return annotation.Record{}, fmt.Errorf("insert annotation: %w", err)
	}
	return rec, nil
}

// Seed inserts or replaces a record wholesale, keeping its ID and creation
// time. Used by sync pulls.
func (n *NotesDB) Seed(ctx context.Context, rec annotation.Record) error {
	deleted := 0
	if rec.Deleted {
		deleted = 1
	}
	created := rec.Created.UTC().Format(sortableTime)
	updated := time.Now().UTC().Format(sortableTime)
	if _, err := n.db.ExecContext(ctx, seedNoteSQL, string(rec.ID), rec.Anchor, rec.Number, rec.Text, deleted, created, updated); err != nil {
		return fmt.Errorf("seed annotation: %w", err)
	}
	return nil
}

// update runs a single-row UPDATE and maps a zero-row result to ErrNotFound.
func (n *NotesDB) update(ctx context.Context, query string, args ...any) error {
	res, err := n.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update annotation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return annotation.ErrNotFound
	}
	return nil
}

func (n *NotesDB) SetAnchor(ctx context.Context, id annotation.ID, anchor int) error {
	return n.update(ctx, `UPDATE annotations SET anchor=?, updated=? WHERE id=?`,
		anchor, time.Now().UTC().Format(sortableTime), string(id))
}

func (n *NotesDB) SetNumber(ctx context.Context, id annotation.ID, number int) error {
	return n.update(ctx, `UPDATE annotations SET number=?, updated=? WHERE id=?`,
		number, time.Now().UTC().Format(sortableTime), string(id))
}

func (n *NotesDB) SetDeleted(ctx context.Context, id annotation.ID, deleted bool) error {
	d := 0
	if deleted {
		d = 1
	}
	return n.update(ctx, `UPDATE annotations SET deleted=?, updated=? WHERE id=?`,
		d, time.Now().UTC().Format(sortableTime), string(id))
}

// Purge removes the record permanently. This is the only hard delete;
// everything else is the soft flag so undo can restore.
func (n *NotesDB) Purge(ctx context.Context, id annotation.ID) error {
	return n.update(ctx, `DELETE FROM annotations WHERE id=?`, string(id))
}

// RecoverNotes checks the annotation database for corruption or missing
// schema and recreates it when damaged. It returns true when a rebuild was
// performed. The records are canonical, so the damaged file is kept as a
// timestamped backup under .wshed/backups for manual salvage; a sync pull
// can repopulate the fresh store.
func RecoverNotes(ctx context.Context, documentRoot string) (bool, error) {
	path := NotesPath(documentRoot)
	n, err := OpenNotes(documentRoot)
	if err != nil {
		backupNotesFile(path)
		removeNotesFiles(path)
		fresh, rbErr := OpenNotes(documentRoot)
		if rbErr != nil {
			return false, fmt.Errorf("recreate after open failure: %w (open err: %v)", rbErr, err)
		}
		_ = fresh.Close()
		return true, nil
	}
	defer n.Close()
	needs := false
	// quick_check for corruption
	var chk string
	if err := n.db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil || !strings.Contains(strings.ToLower(chk), "ok") {
		needs = true
	}
	// Probe core table
	if !needs {
		if _, err := n.db.ExecContext(ctx, `SELECT 1 FROM annotations LIMIT 1;`); err != nil {
			needs = true
		}
	}
	if !needs {
		return false, nil
	}
	_ = n.Close()
	backupNotesFile(path)
	removeNotesFiles(path)
	fresh, err := OpenNotes(documentRoot)
	if err != nil {
		return false, err
	}
	_ = fresh.Close()
	return true, nil
}

// backupNotesFile copies the current database file into a timestamped backup
// in .wshed/backups.
func backupNotesFile(notesPath string) {
	bdir := filepath.Join(filepath.Dir(notesPath), "backups")
	_ = os.MkdirAll(bdir, 0o755)
	stamp := time.Now().Format("20060102-150405")
	bak := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(notesPath), stamp))
	if data, err := os.ReadFile(notesPath); err == nil {
		_ = os.WriteFile(bak, data, 0o644)
	}
}

// removeNotesFiles deletes the database and its WAL side files.
func removeNotesFiles(notesPath string) {
	_ = os.Remove(notesPath)
	_ = os.Remove(notesPath + "-wal")
	_ = os.Remove(notesPath + "-shm")
}
