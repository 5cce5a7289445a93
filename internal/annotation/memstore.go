/*
 * Copyright (c) 2026 by easiwriter.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package annotation

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemStore is the in-memory Store. It backs headless runs and tests; the
// persistent stores in internal/storage and internal/backend implement
// the same interface.
type MemStore struct {
	mu   sync.Mutex
	recs map[ID]Record
	last time.Time
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore { return &MemStore{recs: make(map[ID]Record)} }

func (s *MemStore) List(context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.recs))
	for _, r := range s.recs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out, nil
}

func (s *MemStore) Create(_ context.Context, anchor int, text string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// creation times are forced strictly monotonic so anchor ties keep
	// insertion order
	now := time.Now()
	if !now.After(s.last) {
		now = s.last.Add(time.Nanosecond)
	}
	s.last = now
	rec := Record{ID: NewID(), Anchor: anchor, Text: text, Created: now}
	s.recs[rec.ID] = rec
	return rec, nil
}

// Seed inserts a record wholesale, keeping its ID and creation time.
// Used by sync pulls and tests.
func (s *MemStore) Seed(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.Created.After(s.last) {
		s.last = rec.Created
	}
	s.recs[rec.ID] = rec
}

func (s *MemStore) mutate(id ID, fn func(*Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return ErrNotFound
	}
	fn(&rec)
	s.recs[id] = rec
	return nil
}

func (s *MemStore) SetAnchor(_ context.Context, id ID, anchor int) error {
	return s.mutate(id, func(r *Record) { r.Anchor = anchor })
}

func (s *MemStore) SetNumber(_ context.Context, id ID, n int) error {
	return s.mutate(id, func(r *Record) { r.Number = n })
}

func (s *MemStore) SetDeleted(_ context.Context, id ID, deleted bool) error {
	return s.mutate(id, func(r *Record) { r.Deleted = deleted })
}

func (s *MemStore) Purge(_ context.Context, id ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recs[id]; !ok {
		return ErrNotFound
	}
	delete(s.recs, id)
	return nil
}
