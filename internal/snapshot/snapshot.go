// Package snapshot captures the editable state of a project into persisted
// artifacts and restores it again.
//
// A snapshot consists of three artifacts written as one batch: the exported
// configuration graph, the exported layout graph and the preference blob.
// Artifact names are <stem><id><ext>; ids are allocated by scanning the
// storage area, so artifacts stranded by an interrupted earlier session never
// collide with new ones.
package snapshot

import (
	"errors"
	"sync"
	"time"

	"github.com/3worlds/tw-apps-sub001/internal/graph"
	"github.com/3worlds/tw-apps-sub001/internal/store"
)

// State is the in-memory editable state captured by a snapshot.
type State struct {
	Config      *graph.Graph
	Layout      *graph.Graph
	Preferences []byte
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := State{Config: graph.New(), Layout: graph.New()}
	if s.Config != nil {
		out.Config = s.Config.Clone()
	}
	if s.Layout != nil {
		out.Layout = s.Layout.Clone()
	}
	if s.Preferences != nil {
		out.Preferences = append([]byte(nil), s.Preferences...)
	}
	return out
}

// Artifact is one persisted part of a snapshot.
type Artifact struct {
	Part     Part
	Name     string
	Location string
}

// Snapshot is a persisted capture of the editable state.
// It owns its artifacts until Release deletes them.
type Snapshot struct {
	id          int
	description string
	created     time.Time
	artifacts   []Artifact
	store       store.Store

	mu       sync.Mutex
	deleted  map[string]bool
	released bool
}

// ID returns the numeric identifier shared by the snapshot's artifacts.
func (s *Snapshot) ID() int { return s.id }

// Description returns the human-readable label of the change.
func (s *Snapshot) Description() string { return s.description }

// Created returns the capture time.
func (s *Snapshot) Created() time.Time { return s.created }

// Artifacts returns the snapshot's artifacts in part order.
func (s *Snapshot) Artifacts() []Artifact {
	out := make([]Artifact, len(s.artifacts))
	copy(out, s.artifacts)
	return out
}

// Artifact returns the artifact of one part.
func (s *Snapshot) Artifact(p Part) (Artifact, bool) {
	for _, a := range s.artifacts {
		if a.Part == p {
			return a, true
		}
	}
	return Artifact{}, false
}

// Released reports whether every artifact has been deleted.
func (s *Snapshot) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// Release deletes the snapshot's artifacts. It is idempotent: artifacts
// already deleted are skipped, and after a full release further calls do
// nothing. A failed deletion is reported and retried on the next call.
func (s *Snapshot) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return nil
	}

	var errs []error
	for _, a := range s.artifacts {
		if s.deleted[a.Name] {
			continue
		}
		if err := s.store.Delete(a.Name); err != nil {
			errs = append(errs, &PersistenceError{Op: "release", Name: a.Name, Err: err})
			continue
		}
		s.deleted[a.Name] = true
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	s.released = true
	return nil
}
