// Package session drives one editing session over a project workspace.
//
// Every edit is recorded as a snapshot before it reaches the live workspace:
//
//	draft := workspace.Draft()      // deep copy of the live state
//	mutate(draft)                   // apply the change
//	snap := snapshots.Create(draft) // persist all parts
//	history.Push(snap)
//	workspace.Commit(draft)         // only now the change is live
//
// The snapshot at the history cursor therefore always matches the live
// workspace. Undo and redo move the cursor and restore the snapshot found
// there.
package session

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/3worlds/tw-apps-sub001/internal/diff"
	"github.com/3worlds/tw-apps-sub001/internal/history"
	"github.com/3worlds/tw-apps-sub001/internal/metrics"
	"github.com/3worlds/tw-apps-sub001/internal/snapshot"
	"github.com/3worlds/tw-apps-sub001/internal/workspace"
)

// Errors returned by sessions.
var (
	// ErrNotOpen indicates an operation on a session that is not open.
	ErrNotOpen = errors.New("session not open")

	// ErrUnknownPolicy indicates an unsupported persistence failure policy.
	ErrUnknownPolicy = errors.New("unknown persistence failure policy")
)

// Policy decides what happens to an edit whose snapshot cannot be saved.
type Policy string

const (
	// PolicyReject fails the edit; the live workspace is untouched.
	PolicyReject Policy = "reject"
	// PolicyProceed applies the edit in memory without an undo entry.
	PolicyProceed Policy = "proceed"
)

// ParsePolicy parses a policy name. Empty selects PolicyReject.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyReject:
		return PolicyReject, nil
	case PolicyProceed:
		return PolicyProceed, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// StateProvider is the live editable state.
type StateProvider interface {
	Draft() *workspace.Draft
	Commit(d *workspace.Draft)
	State() (snapshot.State, error)
	Restore(s snapshot.State) error
}

// Snapshots persists and restores captured states.
type Snapshots interface {
	Create(description string, state snapshot.State) (*snapshot.Snapshot, error)
	Restore(s *snapshot.Snapshot) (snapshot.State, error)
	Read(s *snapshot.Snapshot, p snapshot.Part) ([]byte, error)
	Sweep() (int, error)
}

// AlertFunc surfaces a non-fatal problem to the user.
type AlertFunc func(err error)

// Options configures a Session.
type Options struct {
	// Name labels the opening history entry ("Open <Name>").
	Name string

	// Workspace is the live state. Required.
	Workspace StateProvider

	// Snapshots records states. Required.
	Snapshots Snapshots

	// MaxEntries bounds the history; 0 means unbounded.
	MaxEntries int

	// Policy applies when a snapshot cannot be saved.
	Policy Policy

	// Logger receives session diagnostics. May be nil.
	Logger *slog.Logger

	// Metrics receives instrumentation. May be nil.
	Metrics *metrics.Metrics

	// Alert is called for edits applied without an undo entry. May be nil.
	Alert AlertFunc
}

// Session is one editing session.
type Session struct {
	id      string
	name    string
	ws      StateProvider
	snaps   Snapshots
	hist    *history.History[*snapshot.Snapshot]
	policy  Policy
	logger  *slog.Logger
	metrics *metrics.Metrics
	alert   AlertFunc

	mu   sync.Mutex
	open bool
}

// New creates a closed session.
func New(opts Options) (*Session, error) {
	if opts.Workspace == nil {
		return nil, errors.New("session workspace is required")
	}
	if opts.Snapshots == nil {
		return nil, errors.New("session snapshots are required")
	}
	policy, err := ParsePolicy(string(opts.Policy))
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With("session", id)

	s := &Session{
		id:      id,
		name:    opts.Name,
		ws:      opts.Workspace,
		snaps:   opts.Snapshots,
		policy:  policy,
		logger:  logger,
		metrics: opts.Metrics,
		alert:   opts.Alert,
	}
	s.hist = history.New[*snapshot.Snapshot](
		history.WithMaxEntries(opts.MaxEntries),
		history.WithJanitor(janitor{s}),
		history.WithLogger(logger.With("component", "history")),
		history.WithReleaseHook(func(_ string, err error) { s.metrics.Released(err) }),
	)
	return s, nil
}

// janitor sweeps stranded artifacts on behalf of the history.
type janitor struct{ s *Session }

func (j janitor) Sweep() (int, error) {
	n, err := j.s.snaps.Sweep()
	j.s.metrics.Swept(n)
	if err != nil {
		j.s.metrics.PersistFailure("sweep")
	}
	return n, err
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Policy returns the persistence failure policy.
func (s *Session) Policy() Policy { return s.policy }

// Open resets the history, removing artifacts stranded by an earlier
// session, and records the current workspace as the first entry.
// Cleanup failures are logged and do not prevent opening.
func (s *Session) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.hist.Initialise(); err != nil {
		s.logger.Warn("stranded artifact cleanup incomplete", "error", err)
	}

	state, err := s.ws.State()
	if err != nil {
		return err
	}
	desc := "Open"
	if s.name != "" {
		desc = "Open " + s.name
	}
	if err := s.recordLocked(desc, state); err != nil {
		if s.policy == PolicyReject {
			return err
		}
		s.unrecorded(desc, err)
	}

	s.open = true
	s.logger.Info("session opened", "project", s.name, "policy", string(s.policy))
	return nil
}

// Close releases every snapshot and sweeps the storage area.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return nil
	}
	s.open = false

	err := s.hist.Finalise()
	s.position()
	s.logger.Info("session closed")
	return err
}

// Edit applies mutate to a copy of the live state, records the result and
// commits it. When mutate fails nothing changes. When recording fails the
// policy decides: reject returns the error, proceed commits anyway and
// returns nil after alerting. A failed recording never changes the history.
func (s *Session) Edit(description string, mutate func(d *workspace.Draft) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return ErrNotOpen
	}

	draft := s.ws.Draft()
	if err := mutate(draft); err != nil {
		s.metrics.Edit(metrics.EditFailed)
		return fmt.Errorf("%s: %w", description, err)
	}

	state, err := draft.State()
	if err != nil {
		s.metrics.Edit(metrics.EditFailed)
		return err
	}

	if err := s.recordLocked(description, state); err != nil {
		if s.policy == PolicyReject {
			s.metrics.Edit(metrics.EditRejected)
			s.logger.Warn("edit rejected", "description", description, "error", err)
			return err
		}
		s.ws.Commit(draft)
		s.metrics.Edit(metrics.EditUnrecorded)
		s.unrecorded(description, err)
		return nil
	}

	s.ws.Commit(draft)
	s.metrics.Edit(metrics.EditRecorded)
	s.logger.Debug("edit recorded", "description", description, "cursor", s.hist.Cursor())
	return nil
}

func (s *Session) recordLocked(description string, state snapshot.State) error {
	start := time.Now()
	snap, err := s.snaps.Create(description, state)
	s.metrics.ObserveSnapshot(start)
	if err != nil {
		s.metrics.PersistFailure("create")
		return err
	}
	s.hist.Push(snap)
	s.position()
	return nil
}

func (s *Session) unrecorded(description string, err error) {
	s.logger.Warn("change applied without undo entry", "description", description, "error", err)
	if s.alert != nil {
		s.alert(fmt.Errorf("%q cannot be undone: %w", description, err))
	}
}

// Undo restores the previous state and returns the label of the change
// that was reverted.
func (s *Session) Undo() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return "", ErrNotOpen
	}

	current, _ := s.hist.Current()
	snap, err := s.hist.Undo()
	s.metrics.Navigate("undo", err)
	if err != nil {
		return "", err
	}
	if err := s.restoreLocked(snap); err != nil {
		// Put the cursor back on the state the workspace still shows.
		_, _ = s.hist.Redo()
		return "", err
	}
	s.position()
	s.logger.Debug("undo", "reverted", current.Description(), "cursor", s.hist.Cursor())
	return current.Description(), nil
}

// Redo re-applies the next change and returns its label.
func (s *Session) Redo() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return "", ErrNotOpen
	}

	snap, err := s.hist.Redo()
	s.metrics.Navigate("redo", err)
	if err != nil {
		return "", err
	}
	if err := s.restoreLocked(snap); err != nil {
		_, _ = s.hist.Undo()
		return "", err
	}
	s.position()
	s.logger.Debug("redo", "applied", snap.Description(), "cursor", s.hist.Cursor())
	return snap.Description(), nil
}

func (s *Session) restoreLocked(snap *snapshot.Snapshot) error {
	state, err := s.snaps.Restore(snap)
	if err != nil {
		s.metrics.PersistFailure("restore")
		return err
	}
	return s.ws.Restore(state)
}

// CanUndo reports whether Undo would succeed.
func (s *Session) CanUndo() bool { return s.hist.HasPrev() }

// CanRedo reports whether Redo would succeed.
func (s *Session) CanRedo() bool { return s.hist.HasNext() }

// UndoLabel returns the label of the change Undo would revert.
func (s *Session) UndoLabel() (string, bool) {
	if !s.hist.HasPrev() {
		return "", false
	}
	current, ok := s.hist.Current()
	if !ok {
		return "", false
	}
	return current.Description(), true
}

// RedoLabel returns the label of the change Redo would apply.
func (s *Session) RedoLabel() (string, bool) {
	label, err := s.hist.NextDescription()
	if err != nil {
		return "", false
	}
	return label, true
}

// Entries lists the history, oldest first.
func (s *Session) Entries() []history.Info {
	return s.hist.Entries()
}

// History exposes the underlying history.
func (s *Session) History() *history.History[*snapshot.Snapshot] {
	return s.hist
}

// Owns reports whether a live snapshot owns the artifact name.
func (s *Session) Owns(name string) bool {
	for i := 0; i < s.hist.Len(); i++ {
		snap, ok := s.hist.At(i)
		if !ok {
			break
		}
		for _, a := range snap.Artifacts() {
			if a.Name == name {
				return true
			}
		}
	}
	return false
}

// DiffPrevious shows, for one part, what Undo would revert.
func (s *Session) DiffPrevious(p snapshot.Part) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cursor := s.hist.Cursor()
	if cursor < 1 {
		return "", &history.NavigationError{Op: "diff", Cursor: cursor, Len: s.hist.Len(), Err: history.ErrNothingToUndo}
	}
	prev, _ := s.hist.At(cursor - 1)
	current, _ := s.hist.At(cursor)

	a, err := s.snaps.Read(prev, p)
	if err != nil {
		return "", err
	}
	b, err := s.snaps.Read(current, p)
	if err != nil {
		return "", err
	}

	aName, bName := p.String(), p.String()
	if art, ok := prev.Artifact(p); ok {
		aName = art.Name
	}
	if art, ok := current.Artifact(p); ok {
		bName = art.Name
	}
	return diff.Unified(aName, bName, a, b, diff.Options{})
}

func (s *Session) position() {
	s.metrics.Position(s.hist.Len(), s.hist.Cursor())
}
