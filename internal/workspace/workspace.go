// Package workspace holds the live editable state of a project: the
// configuration graph, its layout graph and the user preferences.
//
// Edits are never applied to the live state directly. A caller takes a
// Draft (a deep copy), mutates it, and commits it back once the change has
// been recorded.
package workspace

import (
	"fmt"
	"maps"
	"sort"
	"strconv"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/3worlds/tw-apps-sub001/internal/graph"
	"github.com/3worlds/tw-apps-sub001/internal/snapshot"
)

// PositionKind is the node kind used in the layout graph.
const PositionKind = "position"

// Workspace is the live editable state.
// Workspace is safe for concurrent use.
type Workspace struct {
	mu     sync.RWMutex
	config *graph.Graph
	layout *graph.Graph
	prefs  map[string]string
}

// New creates an empty workspace.
func New() *Workspace {
	return &Workspace{
		config: graph.New(),
		layout: graph.New(),
		prefs:  make(map[string]string),
	}
}

// Draft returns a deep copy of the live state for editing.
func (w *Workspace) Draft() *Draft {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return &Draft{
		Config: w.config.Clone(),
		Layout: w.layout.Clone(),
		Prefs:  maps.Clone(w.prefs),
	}
}

// Commit replaces the live state with d. The draft must not be used afterwards.
func (w *Workspace) Commit(d *Draft) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.config = d.Config
	w.layout = d.Layout
	w.prefs = d.Prefs
	if w.prefs == nil {
		w.prefs = make(map[string]string)
	}
}

// State returns a deep copy of the live state in snapshot form.
func (w *Workspace) State() (snapshot.State, error) {
	return w.Draft().State()
}

// Restore replaces the live state with a restored snapshot state.
func (w *Workspace) Restore(s snapshot.State) error {
	prefs, err := DecodePreferences(s.Preferences)
	if err != nil {
		return err
	}

	cfg, layout := s.Config, s.Layout
	if cfg == nil {
		cfg = graph.New()
	}
	if layout == nil {
		layout = graph.New()
	}

	w.Commit(&Draft{Config: cfg.Clone(), Layout: layout.Clone(), Prefs: prefs})
	return nil
}

// Config returns a copy of the configuration graph.
func (w *Workspace) Config() *graph.Graph {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config.Clone()
}

// Layout returns a copy of the layout graph.
func (w *Workspace) Layout() *graph.Graph {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.layout.Clone()
}

// Preference returns one preference value.
func (w *Workspace) Preference(key string) (string, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	v, ok := w.prefs[key]
	return v, ok
}

// Preferences returns a copy of all preferences.
func (w *Workspace) Preferences() map[string]string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return maps.Clone(w.prefs)
}

// Draft is an editable copy of the workspace state.
type Draft struct {
	Config *graph.Graph
	Layout *graph.Graph
	Prefs  map[string]string
}

// State encodes the draft as a snapshot state.
func (d *Draft) State() (snapshot.State, error) {
	blob, err := EncodePreferences(d.Prefs)
	if err != nil {
		return snapshot.State{}, err
	}
	return snapshot.State{Config: d.Config, Layout: d.Layout, Preferences: blob}, nil
}

// AddNode adds a configuration node.
func (d *Draft) AddNode(id, kind, label string) error {
	return d.Config.AddNode(graph.NewNode(graph.NodeID(id), kind, label))
}

// RemoveNode removes a configuration node, its edges and its layout position.
func (d *Draft) RemoveNode(id string) error {
	if err := d.Config.RemoveNode(graph.NodeID(id)); err != nil {
		return err
	}
	if _, ok := d.Layout.GetNode(graph.NodeID(id)); ok {
		return d.Layout.RemoveNode(graph.NodeID(id))
	}
	return nil
}

// Link adds a labelled edge.
func (d *Draft) Link(from, to, label string) error {
	return d.Config.AddEdge(graph.NewEdge(graph.NodeID(from), graph.NodeID(to), label))
}

// Unlink removes a labelled edge.
func (d *Draft) Unlink(from, to, label string) error {
	return d.Config.RemoveEdge(graph.NodeID(from), graph.NodeID(to), label)
}

// SetProperty sets (or with an empty value, deletes) a node property.
func (d *Draft) SetProperty(id, key, value string) error {
	return d.Config.SetProperty(graph.NodeID(id), key, value)
}

// SetPreference sets (or with an empty value, deletes) a preference.
func (d *Draft) SetPreference(key, value string) {
	if d.Prefs == nil {
		d.Prefs = make(map[string]string)
	}
	if value == "" {
		delete(d.Prefs, key)
		return
	}
	d.Prefs[key] = value
}

// Move places a configuration node in the layout.
func (d *Draft) Move(id string, x, y float64) error {
	nid := graph.NodeID(id)
	if _, ok := d.Config.GetNode(nid); !ok {
		return fmt.Errorf("%w: %s", graph.ErrNodeNotFound, id)
	}

	pos := graph.NewNode(nid, PositionKind, "")
	pos.Properties = map[string]string{
		"x": strconv.FormatFloat(x, 'f', -1, 64),
		"y": strconv.FormatFloat(y, 'f', -1, 64),
	}
	if _, ok := d.Layout.GetNode(nid); ok {
		return d.Layout.UpdateNode(pos)
	}
	return d.Layout.AddNode(pos)
}

// EncodePreferences serializes preferences as a TOML table with sorted keys.
func EncodePreferences(prefs map[string]string) ([]byte, error) {
	if len(prefs) == 0 {
		return []byte{}, nil
	}
	data, err := toml.Marshal(prefs)
	if err != nil {
		return nil, fmt.Errorf("encode preferences: %w", err)
	}
	return data, nil
}

// DecodePreferences parses a blob written by EncodePreferences.
func DecodePreferences(data []byte) (map[string]string, error) {
	prefs := make(map[string]string)
	if len(data) == 0 {
		return prefs, nil
	}
	if err := toml.Unmarshal(data, &prefs); err != nil {
		return nil, fmt.Errorf("decode preferences: %w", err)
	}
	return prefs, nil
}

// PreferenceKeys returns the sorted preference keys.
func PreferenceKeys(prefs map[string]string) []string {
	keys := make([]string, 0, len(prefs))
	for k := range prefs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
