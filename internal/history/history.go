// Package history keeps the ordered list of recorded states of an editing
// session and a cursor into it.
//
// The entry at the cursor is the state the workspace currently shows.
// Push appends after the cursor (dropping anything that could have been
// redone) and advances to the new entry. Undo and Redo only move the cursor
// and hand back the entry to restore; restoring is the caller's job.
//
//	h := history.New[*snapshot.Snapshot](history.WithMaxEntries(100))
//	h.Initialise()
//	h.Push(snap)
//	if h.HasPrev() {
//	    prev, _ := h.Undo()
//	    // restore prev
//	}
//
// Entries own storage: every entry that leaves the history (initialise,
// finalise, redo truncation, pruning) is released exactly once.
package history

import (
	"errors"
	"io"
	"log/slog"
	"sync"
)

// Entry is a recorded state that can be labelled and released.
type Entry interface {
	Description() string
	Release() error
}

// Janitor removes storage left behind by an earlier session.
type Janitor interface {
	Sweep() (int, error)
}

// ReleaseHook is called after every release attempt.
type ReleaseHook func(description string, err error)

// Info describes one entry for listings.
type Info struct {
	Index       int
	Description string
	Active      bool
}

// Option configures a History.
type Option func(*options)

type options struct {
	maxEntries int
	janitor    Janitor
	logger     *slog.Logger
	onRelease  ReleaseHook
}

// WithMaxEntries bounds the number of entries. Zero means unbounded.
func WithMaxEntries(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxEntries = n
		}
	}
}

// WithJanitor sets the sweeper run by Initialise and Finalise.
func WithJanitor(j Janitor) Option {
	return func(o *options) { o.janitor = j }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithReleaseHook sets a callback observing every release.
func WithReleaseHook(fn ReleaseHook) Option {
	return func(o *options) { o.onRelease = fn }
}

// History is a cursor-addressed list of entries.
// History is safe for concurrent use.
type History[E Entry] struct {
	mu      sync.Mutex
	entries []E
	cursor  int
	opts    options
}

// New creates an empty history.
func New[E Entry](opts ...Option) *History[E] {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}
	return &History[E]{cursor: -1, opts: o}
}

// Initialise releases every entry, resets the cursor to empty and sweeps
// storage left by a previous session. Release and sweep failures are logged
// and returned joined; they never prevent the history from being reset.
func (h *History[E]) Initialise() error {
	return h.reset("initialise")
}

// Finalise is Initialise for session end.
func (h *History[E]) Finalise() error {
	return h.reset("finalise")
}

func (h *History[E]) reset(op string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	errs := h.releaseLocked(h.entries)
	h.entries = nil
	h.cursor = -1

	if h.opts.janitor != nil {
		n, err := h.opts.janitor.Sweep()
		if err != nil {
			h.opts.logger.Warn("sweep failed", "op", op, "error", err)
			errs = append(errs, err)
		} else if n > 0 {
			h.opts.logger.Info("removed stranded artifacts", "op", op, "count", n)
		}
	}
	return errors.Join(errs...)
}

// Push inserts e after the cursor and advances the cursor to it.
// Entries after the old cursor are released and dropped. When the history
// exceeds its maximum size the oldest entries are released and dropped.
// Release failures are logged; the push itself always succeeds.
func (h *History[E]) Push(e E) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cursor+1 < len(h.entries) {
		h.releaseLocked(h.entries[h.cursor+1:])
		clear(h.entries[h.cursor+1:])
		h.entries = h.entries[:h.cursor+1]
	}

	h.entries = append(h.entries, e)
	h.cursor = len(h.entries) - 1

	if limit := h.opts.maxEntries; limit > 0 && len(h.entries) > limit {
		excess := len(h.entries) - limit
		h.releaseLocked(h.entries[:excess])
		h.entries = append([]E(nil), h.entries[excess:]...)
		h.cursor -= excess
	}
}

// Undo moves the cursor back and returns the entry now at the cursor.
func (h *History[E]) Undo() (E, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var zero E
	if !h.hasPrevLocked() {
		return zero, h.navErr("undo", ErrNothingToUndo)
	}
	h.cursor--
	return h.entries[h.cursor], nil
}

// Redo moves the cursor forward and returns the entry now at the cursor.
func (h *History[E]) Redo() (E, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var zero E
	if !h.hasNextLocked() {
		return zero, h.navErr("redo", ErrNothingToRedo)
	}
	h.cursor++
	return h.entries[h.cursor], nil
}

// HasPrev returns true if undo is available.
func (h *History[E]) HasPrev() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hasPrevLocked()
}

// HasNext returns true if redo is available.
func (h *History[E]) HasNext() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hasNextLocked()
}

// PreviousDescription returns the label of the entry Undo would return.
func (h *History[E]) PreviousDescription() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.hasPrevLocked() {
		return "", h.navErr("previous", ErrNothingToUndo)
	}
	return h.entries[h.cursor-1].Description(), nil
}

// NextDescription returns the label of the entry Redo would return.
func (h *History[E]) NextDescription() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.hasNextLocked() {
		return "", h.navErr("next", ErrNothingToRedo)
	}
	return h.entries[h.cursor+1].Description(), nil
}

// Len returns the number of entries.
func (h *History[E]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Cursor returns the index of the active entry, or -1 when empty.
func (h *History[E]) Cursor() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor
}

// Current returns the active entry.
func (h *History[E]) Current() (E, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cursor < 0 {
		var zero E
		return zero, false
	}
	return h.entries[h.cursor], true
}

// At returns the entry at index i.
func (h *History[E]) At(i int) (E, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if i < 0 || i >= len(h.entries) {
		var zero E
		return zero, false
	}
	return h.entries[i], true
}

// Entries describes every entry, oldest first.
func (h *History[E]) Entries() []Info {
	h.mu.Lock()
	defer h.mu.Unlock()

	result := make([]Info, len(h.entries))
	for i, e := range h.entries {
		result[i] = Info{Index: i, Description: e.Description(), Active: i == h.cursor}
	}
	return result
}

// MaxEntries returns the size bound, zero when unbounded.
func (h *History[E]) MaxEntries() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.opts.maxEntries
}

func (h *History[E]) hasPrevLocked() bool {
	return h.cursor > 0
}

func (h *History[E]) hasNextLocked() bool {
	return h.cursor >= 0 && h.cursor < len(h.entries)-1
}

func (h *History[E]) navErr(op string, err error) error {
	return &NavigationError{Op: op, Cursor: h.cursor, Len: len(h.entries), Err: err}
}

// releaseLocked releases entries, logging and collecting failures.
func (h *History[E]) releaseLocked(entries []E) []error {
	var errs []error
	for _, e := range entries {
		err := e.Release()
		if err != nil {
			h.opts.logger.Warn("release failed", "description", e.Description(), "error", err)
			errs = append(errs, err)
		}
		if h.opts.onRelease != nil {
			h.opts.onRelease(e.Description(), err)
		}
	}
	return errs
}
