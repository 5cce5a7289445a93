/*
 * Copyright (c) 2026 by easiwriter.
 * Licensed under the Apache License, Version 2.0.
 */
package backend

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/easiwriter/WritingShedPro-sub015/internal/annotation"
)

// PGStore is the Postgres twin of the embedded SQLite annotation store.
// One PGStore serves a single document; every statement is scoped by the
// document id, so stores for different documents share the pool safely.
// Writes stamp the device name for sync attribution; an empty device
// keeps the previous writer.
type PGStore struct {
	db     *sql.DB
	doc    string
	device string
}

// NewPGStore returns a store over db scoped to one document.
func NewPGStore(db *sql.DB, documentID, device string) *PGStore {
	return &PGStore{db: db, doc: documentID, device: device}
}

// EnsureDocument creates the parent documents row on first contact so a
// push does not need a separate registration call. A non-empty title
// replaces the stored one; pushes always bump updated_at.
func (s *PGStore) EnsureDocument(ctx context.Context, title string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, title) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET
			title = COALESCE(NULLIF(EXCLUDED.title, ''), documents.title),
			updated_at = now()`,
		s.doc, title)
	if err != nil {
		return fmt.Errorf("ensure document %s: %w", s.doc, err)
	}
	return nil
}

const listPGSQL = `
SELECT id, anchor, number, note, deleted, created_at
FROM annotations
WHERE document_id = $1
ORDER BY anchor, created_at, id`

// List returns all records of the document ordered by anchor, creation
// time, then id.
func (s *PGStore) List(ctx context.Context) ([]annotation.Record, error) {
	rows, err := s.db.QueryContext(ctx, listPGSQL, s.doc)
	if err != nil {
		return nil, fmt.Errorf("list annotations: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []annotation.Record
	for rows.Next() {
		var (
			rec     annotation.Record
			id      string
			created time.Time
		)
		if err := rows.Scan(&id, &rec.Anchor, &rec.Number, &rec.Text, &rec.Deleted, &created); err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}
		rec.ID = annotation.ID(id)
		rec.Created = created.UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Create inserts a new record at the given anchor. The creation time is
// truncated to microseconds because that is all timestamptz keeps; the
// returned record matches what a later List will report.
func (s *PGStore) Create(ctx context.Context, anchor int, text string) (annotation.Record, error) {
	rec := annotation.Record{
		ID:      annotation.NewID(),
		Anchor:  anchor,
		Text:    text,
		Created: time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := s.EnsureDocument(ctx, ""); err != nil {
		return annotation.Record{}, err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO annotations (id, document_id, anchor, number, note, deleted, device, created_at)
		VALUES ($1, $2, $3, 0, $4, FALSE, $5, $6)`,
		string(rec.ID), s.doc, rec.Anchor, rec.Text, s.device, rec.Created)
	if err != nil {
		return annotation.Record{}, fmt.Errorf("insert annotation: %w", err)
	}
	return rec, nil
}

const seedPGSQL = `
INSERT INTO annotations (id, document_id, anchor, number, note, deleted, device, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (document_id, id) DO UPDATE SET
	anchor = EXCLUDED.anchor,
	number = EXCLUDED.number,
	note = EXCLUDED.note,
	deleted = EXCLUDED.deleted,
	device = COALESCE(NULLIF(EXCLUDED.device, ''), annotations.device),
	updated_at = now()`

// Seed upserts a record that already has an identity, keeping the stored
// creation time on conflict. Push batches land through here; the caller
// ensures the documents row exists first.
func (s *PGStore) Seed(ctx context.Context, rec annotation.Record) error {
	if rec.ID == "" {
		return fmt.Errorf("seed: record has no id")
	}
	created := rec.Created
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, seedPGSQL,
		string(rec.ID), s.doc, rec.Anchor, rec.Number, rec.Text, rec.Deleted, s.device, created.UTC())
	if err != nil {
		return fmt.Errorf("seed annotation %s: %w", rec.ID, err)
	}
	return nil
}

// update runs one scoped UPDATE or DELETE and maps a zero row count to
// annotation.ErrNotFound, mirroring the SQLite store.
func (s *PGStore) update(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update annotation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return annotation.ErrNotFound
	}
	return nil
}

func (s *PGStore) SetAnchor(ctx context.Context, id annotation.ID, anchor int) error {
	return s.update(ctx, `
		UPDATE annotations
		SET anchor = $1, device = COALESCE(NULLIF($2, ''), device), updated_at = now()
		WHERE document_id = $3 AND id = $4`,
		anchor, s.device, s.doc, string(id))
}

func (s *PGStore) SetNumber(ctx context.Context, id annotation.ID, number int) error {
	return s.update(ctx, `
		UPDATE annotations
		SET number = $1, updated_at = now()
		WHERE document_id = $2 AND id = $3`,
		number, s.doc, string(id))
}

func (s *PGStore) SetDeleted(ctx context.Context, id annotation.ID, deleted bool) error {
	return s.update(ctx, `
		UPDATE annotations
		SET deleted = $1, device = COALESCE(NULLIF($2, ''), device), updated_at = now()
		WHERE document_id = $3 AND id = $4`,
		deleted, s.device, s.doc, string(id))
}

func (s *PGStore) Purge(ctx context.Context, id annotation.ID) error {
	return s.update(ctx, `
		DELETE FROM annotations
		WHERE document_id = $1 AND id = $2`,
		s.doc, string(id))
}

// recordPush appends one row to the sync audit so operators can see which
// device pushed what.
func recordPush(ctx context.Context, db *sql.DB, docID, device, subject string, upserts int) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO sync_pushes (document_id, device, subject, upserts)
		VALUES ($1, $2, $3, $4)`,
		docID, device, subject, upserts)
	return err
}
