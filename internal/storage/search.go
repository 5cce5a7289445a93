/*
 * Copyright (c) 2026 by easiwriter.
 * Licensed under the Apache License, Version 2.0.
 */
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/easiwriter/WritingShedPro-sub015/internal/annotation"
)

// NoteQuery describes an annotation search request.
// Text uses SQLite FTS5 syntax (simple terms, phrases in quotes, AND/OR/NOT).
// AnchorFrom/To are inclusive rune offsets; 0 means unset. IncludeDeleted
// widens the scan to soft-deleted records. Limit/Offset implement
// pagination; reasonable defaults applied if zero.
type NoteQuery struct {
	Text           string
	AnchorFrom     int
	AnchorTo       int
	IncludeDeleted bool
	Limit          int
	Offset         int
}

// NoteMatch represents a single match row. Snippet is a highlighted excerpt
// using [ ] markers when FTS text is used.
type NoteMatch struct {
	ID      annotation.ID
	Anchor  int
	Number  int
	Deleted bool
	Snippet string
}

// SearchNotes performs full-text search with optional filters over the
// document's annotation store. When q.Text is empty, it falls back to a
// non-FTS scan with filters applied.
func SearchNotes(ctx context.Context, documentRoot string, q NoteQuery) ([]NoteMatch, error) {
	if strings.TrimSpace(documentRoot) == "" {
		return nil, errors.New("document root is required")
	}
	n, err := OpenNotes(documentRoot)
	if err != nil {
		return nil, err
	}
	defer n.Close()
	return searchNotesDB(ctx, n.db, q)
}

func searchNotesDB(ctx context.Context, db *sql.DB, q NoteQuery) ([]NoteMatch, error) {
	var args []any
	var sb strings.Builder
	useFTS := strings.TrimSpace(q.Text) != ""
	if useFTS {
		sb.WriteString("SELECT a.id, a.anchor, a.number, a.deleted, snippet(fts_notes, 0, '[', ']', '...', 10)\n")
		sb.WriteString("FROM fts_notes JOIN annotations a ON fts_notes.rowid = a.rowid\n")
		sb.WriteString("WHERE fts_notes MATCH ?\n")
		args = append(args, q.Text)
	} else {
		sb.WriteString("SELECT a.id, a.anchor, a.number, a.deleted, ''\n")
		sb.WriteString("FROM annotations a\nWHERE 1=1\n")
	}
	if !q.IncludeDeleted {
		sb.WriteString(" AND a.deleted = 0\n")
	}
	// Anchor range
	if q.AnchorFrom > 0 && q.AnchorTo > 0 && q.AnchorTo >= q.AnchorFrom {
		sb.WriteString(" AND a.anchor BETWEEN ? AND ?\n")
		args = append(args, q.AnchorFrom, q.AnchorTo)
	} else if q.AnchorFrom > 0 {
		sb.WriteString(" AND a.anchor >= ?\n")
		args = append(args, q.AnchorFrom)
	} else if q.AnchorTo > 0 {
		sb.WriteString(" AND a.anchor <= ?\n")
		args = append(args, q.AnchorTo)
	}
	// Order and pagination
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	sb.WriteString("ORDER BY a.anchor, a.created, a.id\n")
	sb.WriteString("LIMIT ? OFFSET ?")
	args = append(args, limit, q.Offset)

	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()
	var out []NoteMatch
	for rows.Next() {
		var (
			m       NoteMatch
			id      string
			deleted int
			sn      sql.NullString
		)
		if err := rows.Scan(&id, &m.Anchor, &m.Number, &deleted, &sn); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		m.ID = annotation.ID(id)
		m.Deleted = deleted != 0
		if sn.Valid {
			m.Snippet = sn.String
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
