package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/3worlds/tw-apps-sub001/internal/export"
	"github.com/3worlds/tw-apps-sub001/internal/graph"
	"github.com/3worlds/tw-apps-sub001/internal/store"
)

// stagingPurger is implemented by stores that can leave staging files behind.
type stagingPurger interface {
	PurgeStaging() (int, error)
}

// Factory creates, restores and sweeps snapshots of one project.
type Factory struct {
	store    store.Store
	exporter export.Exporter
	stems    Stems
	namer    *namer
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Factory.
type Option func(*Factory)

// WithStems overrides the artifact name stems.
func WithStems(stems Stems) Option {
	return func(f *Factory) { f.stems = stems }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithClock overrides the time source used for creation times.
func WithClock(now func() time.Time) Option {
	return func(f *Factory) {
		if now != nil {
			f.now = now
		}
	}
}

// NewFactory creates a factory writing through s with the given exporter.
func NewFactory(s store.Store, exp export.Exporter, opts ...Option) (*Factory, error) {
	if s == nil {
		return nil, errors.New("snapshot store is required")
	}
	if exp == nil {
		return nil, errors.New("snapshot exporter is required")
	}

	f := &Factory{
		store:    s,
		exporter: exp,
		stems:    DefaultStems(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	if err := f.stems.Validate(); err != nil {
		return nil, err
	}
	f.namer = newNamer(s, f.stems)
	return f, nil
}

// Stems returns the configured stems.
func (f *Factory) Stems() Stems { return f.stems }

// Name returns the artifact name of a part for an id.
func (f *Factory) Name(p Part, id int) string {
	return fmt.Sprintf("%s%d%s", f.stems.Of(p), id, f.ext(p))
}

func (f *Factory) ext(p Part) string {
	if p == PartPrefs {
		return PrefsExt
	}
	return f.exporter.Ext()
}

// Create captures state under a fresh id. Either all three artifacts are
// persisted and the snapshot is returned, or none remains and the error is
// a *PersistenceError.
func (f *Factory) Create(description string, state State) (*Snapshot, error) {
	id, err := f.namer.next()
	if err != nil {
		return nil, &PersistenceError{Op: "scan", Err: err}
	}

	entries := make([]store.Entry, 0, len(Parts))
	for _, p := range Parts {
		name := f.Name(p, id)
		data, err := f.encode(p, state)
		if err != nil {
			return nil, &PersistenceError{Op: "create", Name: name, Err: err}
		}
		entries = append(entries, store.Entry{Name: name, Data: data})
	}

	if err := f.store.PutAll(entries); err != nil {
		return nil, &PersistenceError{Op: "create", Name: entries[0].Name, Err: err}
	}

	snap := &Snapshot{
		id:          id,
		description: description,
		created:     f.now(),
		store:       f.store,
		deleted:     make(map[string]bool),
	}
	for i, p := range Parts {
		snap.artifacts = append(snap.artifacts, Artifact{
			Part:     p,
			Name:     entries[i].Name,
			Location: f.store.Location(entries[i].Name),
		})
	}

	f.logger.Debug("snapshot created", "id", id, "description", description)
	return snap, nil
}

func (f *Factory) encode(p Part, state State) ([]byte, error) {
	if p == PartPrefs {
		return append([]byte{}, state.Preferences...), nil
	}

	g := state.Config
	if p == PartLayout {
		g = state.Layout
	}
	if g == nil {
		g = graph.New()
	}

	var buf bytes.Buffer
	if err := f.exporter.Export(&buf, g); err != nil {
		return nil, fmt.Errorf("export %s: %w", p, err)
	}
	return buf.Bytes(), nil
}

// Read returns the raw content of one artifact of s.
func (f *Factory) Read(s *Snapshot, p Part) ([]byte, error) {
	if s.Released() {
		return nil, ErrReleased
	}
	a, ok := s.Artifact(p)
	if !ok {
		return nil, fmt.Errorf("snapshot %d has no %s artifact", s.ID(), p)
	}
	data, err := f.store.Get(a.Name)
	if err != nil {
		return nil, &PersistenceError{Op: "restore", Name: a.Name, Err: err}
	}
	return data, nil
}

// Restore reads s back into a fresh State.
func (f *Factory) Restore(s *Snapshot) (State, error) {
	var state State
	for _, p := range Parts {
		data, err := f.Read(s, p)
		if err != nil {
			return State{}, err
		}
		if p == PartPrefs {
			state.Preferences = data
			continue
		}

		g, err := f.exporter.Import(bytes.NewReader(data))
		if err != nil {
			a, _ := s.Artifact(p)
			return State{}, &PersistenceError{Op: "restore", Name: a.Name, Err: err}
		}
		if p == PartConfig {
			state.Config = g
		} else {
			state.Layout = g
		}
	}
	return state, nil
}

// Stranded returns the sorted ids of artifacts present in storage.
// Called before any snapshot of the current session exists, these are
// leftovers of an earlier session that did not shut down cleanly.
func (f *Factory) Stranded() ([]int, error) {
	ids, err := f.namer.scan()
	if err != nil {
		return nil, &PersistenceError{Op: "scan", Err: err}
	}
	return ids, nil
}

// Sweep deletes every artifact carrying one of the configured stems, plus
// any staging files the store left behind. It must only run when no live
// snapshot exists. Ids seen during the sweep are never reused by this
// factory. Sweep returns the number of artifacts deleted.
func (f *Factory) Sweep() (int, error) {
	var errs []error

	if p, ok := f.store.(stagingPurger); ok {
		n, err := p.PurgeStaging()
		if err != nil {
			errs = append(errs, &PersistenceError{Op: "sweep", Err: err})
		}
		if n > 0 {
			f.logger.Debug("purged staging files", "count", n)
		}
	}

	removed := 0
	for _, p := range Parts {
		stem := f.stems.Of(p)
		names, err := f.store.List(stem)
		if err != nil {
			errs = append(errs, &PersistenceError{Op: "sweep", Err: err})
			continue
		}
		for _, name := range names {
			if id, ok := parseID(name, stem); ok {
				f.namer.observe(id)
			}
			if err := f.store.Delete(name); err != nil {
				errs = append(errs, &PersistenceError{Op: "sweep", Name: name, Err: err})
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		f.logger.Info("swept snapshot artifacts", "count", removed)
	}
	return removed, errors.Join(errs...)
}
