/*
 * Copyright (c) 2026 by easiwriter.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package session ties the document buffer, annotation store, layout
// engine and page window together behind one concurrency discipline:
// edits mutate state synchronously (buffer first, then anchors, then
// numbering), while layout passes run off the caller's goroutine and are
// coalesced behind a settle timer so a typing burst costs a single pass.
// Results publish through an atomic pointer; readers never block on a
// running pass, and a failed pass leaves the previous result in place.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/easiwriter/WritingShedPro-sub015/internal/annotation"
	"github.com/easiwriter/WritingShedPro-sub015/internal/geometry"
	applog "github.com/easiwriter/WritingShedPro-sub015/internal/log"
	"github.com/easiwriter/WritingShedPro-sub015/internal/notes"
	"github.com/easiwriter/WritingShedPro-sub015/internal/paginate"
	"github.com/easiwriter/WritingShedPro-sub015/internal/telemetry"
	"github.com/easiwriter/WritingShedPro-sub015/internal/text"
	"github.com/easiwriter/WritingShedPro-sub015/internal/window"
)

// DefaultSettle is how long edits must quiesce before a relayout runs.
const DefaultSettle = 250 * time.Millisecond

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("session closed")

// Options wires a Session's dependencies. Store and Engine are required.
type Options struct {
	Store  annotation.Store
	Engine *paginate.Engine
	// Buffer is the initial document; nil means empty.
	Buffer *text.Buffer
	// Geometry defaults to Letter portrait with one-inch margins.
	Geometry geometry.Geometry
	Mode     paginate.DisplayMode
	// Settle overrides DefaultSettle; tests shorten it.
	Settle time.Duration
	// Window, when set, is reconfigured on every published result.
	Window *window.Window
	Log    *slog.Logger
}

// Session is the single owner of a document's editing state. All methods
// are safe for concurrent use; the window and event callbacks run under
// the session's serialization.
type Session struct {
	store  annotation.Store
	engine *paginate.Engine
	settle time.Duration
	log    *slog.Logger

	mu      sync.Mutex
	buf     *text.Buffer
	geom    geometry.Geometry
	mode    paginate.DisplayMode
	recs    []annotation.Record
	win     *window.Window
	gen     uint64
	env     envelope
	timer   *time.Timer
	closed  bool
	lastErr error

	result atomic.Pointer[paginate.Result]

	onPages   []func()
	onNumbers []func([]annotation.ID)
}

// New wires a session. It does not touch the store; Start does.
func New(opts Options) (*Session, error) {
	if opts.Store == nil {
		return nil, errors.New("session: annotation store is required")
	}
	if opts.Engine == nil {
		return nil, errors.New("session: layout engine is required")
	}
	geom := opts.Geometry
	if geom == (geometry.Geometry{}) {
		geom = geometry.Default()
	}
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	buf := opts.Buffer
	if buf == nil {
		buf = text.NewBuffer()
	}
	settle := opts.Settle
	if settle <= 0 {
		settle = DefaultSettle
	}
	l := opts.Log
	if l == nil {
		l = applog.WithComponent("session")
	}
	return &Session{
		store:  opts.Store,
		engine: opts.Engine,
		settle: settle,
		log:    l,
		buf:    buf,
		geom:   geom,
		mode:   opts.Mode,
		win:    opts.Window,
	}, nil
}

// Start loads the annotation records and runs the initial full-document
// pass off the caller's goroutine. The channel reports the pass outcome
// once. Until the result publishes the session answers with zero pages;
// edits arriving meanwhile are coalesced into a follow-up pass.
func (s *Session) Start(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() { done <- s.initialPass(ctx) }()
	return done
}

func (s *Session) initialPass(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.mu.Unlock()

	recs, err := s.store.List(ctx)
	if err != nil {
		s.fail(fmt.Errorf("load annotations: %w", err))
		return err
	}

	s.mu.Lock()
	s.recs = recs
	changed := s.renumberLocked(ctx)
	s.mu.Unlock()
	s.notifyNumbers(changed)

	return s.runPass(ctx)
}

// ApplyChange edits the document text. The buffer changes before the
// call returns, anchors at or past the edit shift with it, and numbering
// is refreshed; only the relayout itself is deferred behind the settle
// timer.
func (s *Session) ApplyChange(ctx context.Context, chg text.Change) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	applied := s.buf.Apply(chg)
	s.gen++

	var firstErr error
	for _, m := range annotation.ShiftAnchors(s.recs, chg.Pos, applied) {
		if err := s.store.SetAnchor(ctx, m.ID, m.Anchor); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	changed := s.renumberLocked(ctx)
	s.env.note(chg, applied)
	s.scheduleLocked()
	if firstErr != nil {
		s.lastErr = firstErr
	}
	s.mu.Unlock()

	s.notifyNumbers(changed)
	return firstErr
}

// InsertAnnotation creates a footnote anchored at the given rune offset.
// Numbering updates immediately; the relayout is scheduled.
func (s *Session) InsertAnnotation(ctx context.Context, anchor int, noteText string) (annotation.Record, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return annotation.Record{}, ErrClosed
	}
	if anchor < 0 || anchor > s.buf.Len() {
		s.mu.Unlock()
		return annotation.Record{}, fmt.Errorf("%w: %d of %d", annotation.ErrStaleAnchor, anchor, s.buf.Len())
	}
	rec, err := s.store.Create(ctx, anchor, noteText)
	if err != nil {
		s.mu.Unlock()
		return annotation.Record{}, err
	}
	s.recs = append(s.recs, rec)
	s.gen++
	changed := s.renumberLocked(ctx)
	rec = s.findLocked(rec.ID)
	s.env.active, s.env.full = true, true
	s.scheduleLocked()
	s.mu.Unlock()

	s.notifyNumbers(changed)
	return rec, nil
}

// DeleteAnnotation soft-deletes a footnote. Its number is released to the
// remaining live records; the record itself survives for restore.
func (s *Session) DeleteAnnotation(ctx context.Context, id annotation.ID) error {
	return s.setDeleted(ctx, id, true)
}

// RestoreAnnotation brings a soft-deleted footnote back at its stored
// anchor and renumbers.
func (s *Session) RestoreAnnotation(ctx context.Context, id annotation.ID) error {
	return s.setDeleted(ctx, id, false)
}

func (s *Session) setDeleted(ctx context.Context, id annotation.ID, deleted bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	idx := -1
	for i := range s.recs {
		if s.recs[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", annotation.ErrNotFound, id)
	}
	if err := s.store.SetDeleted(ctx, id, deleted); err != nil {
		s.mu.Unlock()
		return err
	}
	s.recs[idx].Deleted = deleted
	s.gen++
	changed := s.renumberLocked(ctx)
	s.env.active, s.env.full = true, true
	s.scheduleLocked()
	s.mu.Unlock()

	s.notifyNumbers(changed)
	return nil
}

// SetGeometry validates g, rejects it without side effects when invalid,
// and otherwise reflows the whole document before returning.
func (s *Session) SetGeometry(ctx context.Context, g geometry.Geometry) error {
	if err := g.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if g == s.geom {
		s.mu.Unlock()
		return nil
	}
	s.geom = g
	s.gen++
	s.env.active, s.env.full = true, true
	s.stopTimerLocked()
	s.mu.Unlock()
	return s.runPass(ctx)
}

// SetDisplayMode switches between footnotes and endnotes and reflows
// before returning.
func (s *Session) SetDisplayMode(ctx context.Context, mode paginate.DisplayMode) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if mode == s.mode {
		s.mu.Unlock()
		return nil
	}
	s.mode = mode
	s.gen++
	s.env.active, s.env.full = true, true
	s.stopTimerLocked()
	s.mu.Unlock()
	return s.runPass(ctx)
}

// EndnoteBlock lays the live annotations out as one block at the current
// content width, in document order with their footnote numbers.
func (s *Session) EndnoteBlock() notes.Block {
	s.mu.Lock()
	recs := slices.Clone(s.recs)
	geom := s.geom
	s.mu.Unlock()

	frames, err := geometry.Frames(geom)
	if err != nil {
		return notes.Block{}
	}
	return s.engine.Notes.Layout(annotation.SortLive(recs), frames.Content.W)
}

// Flush runs any pending relayout now instead of waiting for the settle
// timer.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.stopTimerLocked()
	pending := s.env.active || s.result.Load() == nil
	s.mu.Unlock()
	if !pending {
		return nil
	}
	return s.runPass(ctx)
}

// PageCount reports the published page count; zero before the initial
// pass lands.
func (s *Session) PageCount() int {
	if p := s.result.Load(); p != nil {
		return len(p.Pages)
	}
	return 0
}

// Page returns the published descriptor for page i.
func (s *Session) Page(i int) (paginate.PageDescriptor, bool) {
	p := s.result.Load()
	if p == nil || i < 0 || i >= len(p.Pages) {
		return paginate.PageDescriptor{}, false
	}
	return p.Pages[i], true
}

// Result returns the last published layout.
func (s *Session) Result() (paginate.Result, bool) {
	if p := s.result.Load(); p != nil {
		return *p, true
	}
	return paginate.Result{}, false
}

// NotifyScrolled tells the window the viewport moved; page surfaces
// transition accordingly.
func (s *Session) NotifyScrolled(top, height float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.win == nil || s.closed {
		return
	}
	s.win.Scroll(top, height)
}

// VisibleRange reports which pages a viewport at the given offset covers.
// ok is false without a window or before the first published result.
func (s *Session) VisibleRange(top, height float64) (first, last int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.win == nil {
		return 0, 0, false
	}
	return s.win.RangeAt(top, height)
}

// OnPagesChanged registers f to run after every published layout pass.
// Callbacks run on the publishing goroutine and must not call back into
// the session synchronously.
func (s *Session) OnPagesChanged(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onPages = append(s.onPages, f)
}

// OnNumbersChanged registers f to run whenever a renumber pass changed
// any display numbers; it receives the changed IDs in document order.
func (s *Session) OnNumbersChanged(f func([]annotation.ID)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onNumbers = append(s.onNumbers, f)
}

// LastError reports the most recent failed pass or store write; a
// successful publish clears it.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Records returns a snapshot of the working annotation set.
func (s *Session) Records() []annotation.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.recs)
}

// Buffer returns a snapshot of the document.
func (s *Session) Buffer() *text.Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Clone()
}

// Geometry returns the current page setup.
func (s *Session) Geometry() geometry.Geometry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.geom
}

// Mode returns the current display mode.
func (s *Session) Mode() paginate.DisplayMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Close stops the settle timer and discards window surfaces. In-flight
// passes finish but their results are dropped.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.stopTimerLocked()
	if s.win != nil {
		s.win.Close()
	}
}

// renumberLocked reassigns dense numbers over the live records and
// persists the ones that changed. Store failures keep the in-memory
// numbering, which layout trusts, and surface through LastError.
func (s *Session) renumberLocked(ctx context.Context) []annotation.ID {
	changed := annotation.Renumber(s.recs)
	for _, id := range changed {
		rec := s.findLocked(id)
		if err := s.store.SetNumber(ctx, id, rec.Number); err != nil {
			s.lastErr = err
			s.log.Warn("persisting footnote number failed",
				slog.String("id", string(id)), slog.Any("err", err))
		}
	}
	return changed
}

func (s *Session) findLocked(id annotation.ID) annotation.Record {
	for i := range s.recs {
		if s.recs[i].ID == id {
			return s.recs[i]
		}
	}
	return annotation.Record{}
}

func (s *Session) scheduleLocked() {
	if s.timer != nil {
		s.timer.Reset(s.settle)
		return
	}
	s.timer = time.AfterFunc(s.settle, s.settled)
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) settled() {
	if err := s.runPass(context.Background()); err != nil && !errors.Is(err, ErrClosed) {
		s.log.Error("relayout pass failed", slog.Any("err", err))
	}
}

// runPass snapshots the session state, runs the cheapest valid pass and
// publishes unless newer edits arrived while it ran.
func (s *Session) runPass(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	gen := s.gen
	buf := s.buf.Clone()
	geom, mode := s.geom, s.mode
	recs := slices.Clone(s.recs)
	env := s.env
	var prev paginate.Result
	if p := s.result.Load(); p != nil {
		prev = *p
	}
	s.mu.Unlock()

	var (
		res paginate.Result
		err error
	)
	if env.active && !env.full {
		res, err = s.engine.RelayoutRange(ctx, prev, buf, geom, recs, mode, env.lo, env.hi)
	} else {
		res, err = s.engine.Layout(ctx, buf, geom, recs, mode)
	}
	if err != nil {
		s.fail(err)
		return err
	}
	if s.publish(res, gen) {
		telemetry.Event("layout_pass", map[string]any{
			"pages":         len(res.Pages),
			"reused":        res.Report.Reused,
			"non_converged": len(res.Report.NonConverged),
			"stale":         len(res.Report.Stale),
			"ms":            res.Report.Duration.Milliseconds(),
		})
	}
	return nil
}

// publish installs res if it still matches the session generation it was
// computed from. A stale result is dropped; the pass that superseded it
// is already scheduled.
func (s *Session) publish(res paginate.Result, gen uint64) bool {
	s.mu.Lock()
	if s.closed || s.gen != gen {
		s.mu.Unlock()
		return false
	}
	s.result.Store(&res)
	s.env = envelope{}
	s.lastErr = nil
	if s.win != nil {
		s.win.SetResult(res)
	}
	cbs := slices.Clone(s.onPages)
	s.mu.Unlock()

	for _, f := range cbs {
		f()
	}
	return true
}

// fail records a pass failure. The previous result stays published, so
// readers keep a consistent, if stale, page list.
func (s *Session) fail(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	s.log.Error("layout pass failed; keeping previous result", slog.Any("err", err))
}

func (s *Session) notifyNumbers(changed []annotation.ID) {
	if len(changed) == 0 {
		return
	}
	s.mu.Lock()
	cbs := slices.Clone(s.onNumbers)
	s.mu.Unlock()
	for _, f := range cbs {
		f(changed)
	}
}
