package session

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3worlds/tw-apps-sub001/internal/export"
	"github.com/3worlds/tw-apps-sub001/internal/graph"
	"github.com/3worlds/tw-apps-sub001/internal/history"
	"github.com/3worlds/tw-apps-sub001/internal/metrics"
	"github.com/3worlds/tw-apps-sub001/internal/snapshot"
	"github.com/3worlds/tw-apps-sub001/internal/store"
	"github.com/3worlds/tw-apps-sub001/internal/vfs"
	"github.com/3worlds/tw-apps-sub001/internal/workspace"
)

const storageDir = "/demo/.cfgedit/history"

type fixture struct {
	mem     *vfs.MemFS
	faulty  *vfs.FaultFS
	ws      *workspace.Workspace
	factory *snapshot.Factory
	metrics *metrics.Metrics
	alerts  []error
	session *Session
}

func newFixture(t *testing.T, mutate ...func(*Options)) *fixture {
	t.Helper()

	f := &fixture{mem: vfs.NewMemFS(), ws: workspace.New(), metrics: metrics.New()}
	f.faulty = vfs.NewFaultFS(f.mem)

	st, err := store.NewDirStore(f.faulty, storageDir)
	require.NoError(t, err)
	exp, err := export.New("json")
	require.NoError(t, err)
	f.factory, err = snapshot.NewFactory(st, exp)
	require.NoError(t, err)

	opts := Options{
		Name:      "demo",
		Workspace: f.ws,
		Snapshots: f.factory,
		Metrics:   f.metrics,
		Alert:     func(err error) { f.alerts = append(f.alerts, err) },
	}
	for _, m := range mutate {
		m(&opts)
	}
	f.session, err = New(opts)
	require.NoError(t, err)
	return f
}

func (f *fixture) open(t *testing.T) *Session {
	t.Helper()
	require.NoError(t, f.session.Open())
	return f.session
}

func addNode(id string) func(*workspace.Draft) error {
	return func(d *workspace.Draft) error { return d.AddNode(id, "component", "") }
}

func nodeIDs(ws *workspace.Workspace) []graph.NodeID {
	var ids []graph.NodeID
	for _, n := range ws.Config().Nodes() {
		ids = append(ids, n.ID)
	}
	return ids
}

func TestOpenRecordsInitialState(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	assert.Equal(t, 1, s.History().Len())
	assert.Equal(t, 0, s.History().Cursor())
	assert.False(t, s.CanUndo())
	assert.False(t, s.CanRedo())
	assert.Equal(t, "Open demo", s.Entries()[0].Description)
	assert.Len(t, f.mem.Files(), 3)
	assert.NotEmpty(t, s.ID())
}

func TestOpenSweepsStrandedArtifacts(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"undo_config_0.json", "undo_layout_0.json", "undo_config_4.json", "undo_prefs_4.prefs"} {
		require.NoError(t, f.mem.AddFile(storageDir+"/"+name, "stale"))
	}

	s := f.open(t)

	current, ok := s.History().Current()
	require.True(t, ok)
	assert.GreaterOrEqual(t, current.ID(), 5, "ids of stranded artifacts are never reused")
	assert.Equal(t, []string{
		storageDir + "/undo_config_5.json",
		storageDir + "/undo_layout_5.json",
		storageDir + "/undo_prefs_5.prefs",
	}, f.mem.Files())
	assert.Equal(t, 4.0, testutil.ToFloat64(f.metrics.SweptTotal))
}

func TestOpenContinuesWhenSweepFails(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.mem.AddFile(storageDir+"/undo_config_2.json", "stale"))
	f.faulty.Fail(vfs.OpRemove, "undo_config_2", nil)

	s := f.open(t)
	assert.Equal(t, 1, s.History().Len())
	assert.Contains(t, f.mem.Files(), storageDir+"/undo_config_2.json")
}

func TestEditUndoRedo(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	require.NoError(t, s.Edit("Add a", addNode("a")))
	require.NoError(t, s.Edit("Add b", addNode("b")))
	assert.Equal(t, []graph.NodeID{"a", "b"}, nodeIDs(f.ws))

	label, ok := s.UndoLabel()
	require.True(t, ok)
	assert.Equal(t, "Add b", label)

	reverted, err := s.Undo()
	require.NoError(t, err)
	assert.Equal(t, "Add b", reverted)
	assert.Equal(t, []graph.NodeID{"a"}, nodeIDs(f.ws))

	label, ok = s.RedoLabel()
	require.True(t, ok)
	assert.Equal(t, "Add b", label)

	applied, err := s.Redo()
	require.NoError(t, err)
	assert.Equal(t, "Add b", applied)
	assert.Equal(t, []graph.NodeID{"a", "b"}, nodeIDs(f.ws))

	_, err = s.Undo()
	require.NoError(t, err)
	_, err = s.Undo()
	require.NoError(t, err)
	assert.Empty(t, nodeIDs(f.ws))

	_, err = s.Undo()
	assert.True(t, history.IsNavigation(err))
	assert.ErrorIs(t, err, history.ErrNothingToUndo)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.NavigationsTotal.WithLabelValues("undo", "error")))
}

func TestHistoryDescriptions(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	require.NoError(t, s.Edit("A", addNode("a")))
	require.NoError(t, s.Edit("B", addNode("b")))
	require.NoError(t, s.Edit("C", addNode("c")))

	h := s.History()
	prev, err := h.PreviousDescription()
	require.NoError(t, err)
	assert.Equal(t, "B", prev)

	_, err = s.Undo()
	require.NoError(t, err)
	next, err := h.NextDescription()
	require.NoError(t, err)
	assert.Equal(t, "C", next)
}

func TestPreferencesAndLayoutAreRestored(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	require.NoError(t, s.Edit("Add a", addNode("a")))
	require.NoError(t, s.Edit("Place a", func(d *workspace.Draft) error {
		d.SetPreference("theme", "dark")
		return d.Move("a", 5, 6)
	}))

	_, err := s.Undo()
	require.NoError(t, err)
	_, ok := f.ws.Preference("theme")
	assert.False(t, ok)
	assert.Equal(t, 0, f.ws.Layout().NodeCount())

	_, err = s.Redo()
	require.NoError(t, err)
	v, _ := f.ws.Preference("theme")
	assert.Equal(t, "dark", v)
	assert.Equal(t, 1, f.ws.Layout().NodeCount())
}

func TestEditAfterUndoReleasesRedoBranch(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	require.NoError(t, s.Edit("Add a", addNode("a")))
	require.NoError(t, s.Edit("Add b", addNode("b")))
	dropped, _ := s.History().Current()

	_, err := s.Undo()
	require.NoError(t, err)
	require.NoError(t, s.Edit("Add c", addNode("c")))

	assert.False(t, s.CanRedo())
	assert.Equal(t, 3, s.History().Len())
	assert.True(t, dropped.Released())
	for _, a := range dropped.Artifacts() {
		assert.NotContains(t, f.mem.Files(), a.Location)
	}
	assert.Len(t, f.mem.Files(), 9)
}

func TestEditRejectedOnPersistFailure(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)
	require.NoError(t, s.Edit("Add a", addNode("a")))

	cursor, n, canUndo, canRedo := s.History().Cursor(), s.History().Len(), s.CanUndo(), s.CanRedo()
	files := f.mem.Files()

	diskFull := errors.New("no space left on device")
	f.faulty.Fail(vfs.OpWrite, "undo_layout_", diskFull)

	err := s.Edit("Add b", addNode("b"))
	require.Error(t, err)
	assert.True(t, snapshot.IsPersistence(err))
	assert.ErrorIs(t, err, diskFull)

	assert.Equal(t, []graph.NodeID{"a"}, nodeIDs(f.ws), "live workspace untouched")
	assert.Equal(t, cursor, s.History().Cursor())
	assert.Equal(t, n, s.History().Len())
	assert.Equal(t, canUndo, s.CanUndo())
	assert.Equal(t, canRedo, s.CanRedo())
	assert.Equal(t, files, f.mem.Files(), "no partial snapshot left behind")
	assert.Empty(t, f.alerts)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.EditsTotal.WithLabelValues(metrics.EditRejected)))
}

func TestEditProceedsOnPersistFailure(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Policy = PolicyProceed })
	s := f.open(t)

	f.faulty.Fail(vfs.OpWrite, "undo_prefs_", nil)

	require.NoError(t, s.Edit("Add a", addNode("a")))
	assert.Equal(t, []graph.NodeID{"a"}, nodeIDs(f.ws), "edit applied in memory")
	assert.Equal(t, 1, s.History().Len(), "no history entry for the unsaved edit")
	require.Len(t, f.alerts, 1)
	assert.True(t, snapshot.IsPersistence(f.alerts[0]))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.EditsTotal.WithLabelValues(metrics.EditUnrecorded)))
}

func TestOpenPolicyOnPersistFailure(t *testing.T) {
	f := newFixture(t)
	f.faulty.Fail(vfs.OpWrite, "undo_config_", nil)
	assert.True(t, snapshot.IsPersistence(f.session.Open()))
	assert.ErrorIs(t, f.session.Edit("x", addNode("x")), ErrNotOpen)

	g := newFixture(t, func(o *Options) { o.Policy = PolicyProceed })
	g.faulty.Fail(vfs.OpWrite, "undo_config_", nil)
	require.NoError(t, g.session.Open())
	assert.Equal(t, 0, g.session.History().Len())
	assert.Len(t, g.alerts, 1)
}

func TestEditMutationFailureChangesNothing(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)
	files := f.mem.Files()

	boom := errors.New("boom")
	err := s.Edit("Broken", func(d *workspace.Draft) error {
		require.NoError(t, d.AddNode("half", "component", ""))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, nodeIDs(f.ws))
	assert.Equal(t, 1, s.History().Len())
	assert.Equal(t, files, f.mem.Files())
}

func TestUndoRestoreFailureKeepsCursor(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)
	require.NoError(t, s.Edit("Add a", addNode("a")))

	f.faulty.Fail(vfs.OpRead, "undo_config_", nil)
	_, err := s.Undo()
	require.Error(t, err)
	assert.True(t, snapshot.IsPersistence(err))
	assert.Equal(t, 1, s.History().Cursor())
	assert.Equal(t, []graph.NodeID{"a"}, nodeIDs(f.ws))
}

func TestMaxEntriesReleasesOldest(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.MaxEntries = 2 })
	s := f.open(t)
	opening, _ := s.History().Current()

	require.NoError(t, s.Edit("Add a", addNode("a")))
	require.NoError(t, s.Edit("Add b", addNode("b")))

	assert.Equal(t, 2, s.History().Len())
	assert.True(t, opening.Released())
	assert.Len(t, f.mem.Files(), 6)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ReleasedTotal))
}

func TestCloseRemovesAllArtifacts(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)
	require.NoError(t, s.Edit("Add a", addNode("a")))
	require.NoError(t, s.Edit("Add b", addNode("b")))
	_, err := s.Undo()
	require.NoError(t, err)

	require.NoError(t, s.Close())
	assert.Empty(t, f.mem.Files())
	assert.False(t, s.CanUndo())
	assert.False(t, s.CanRedo())

	require.NoError(t, s.Close(), "closing twice is a no-op")
	_, err = s.Undo()
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestDiffPrevious(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	_, err := s.DiffPrevious(snapshot.PartConfig)
	assert.True(t, history.IsNavigation(err))

	require.NoError(t, s.Edit("Add a", addNode("a")))
	patch, err := s.DiffPrevious(snapshot.PartConfig)
	require.NoError(t, err)
	assert.Contains(t, patch, "--- undo_config_0.json")
	assert.Contains(t, patch, "+++ undo_config_1.json")
	assert.Contains(t, patch, `"id": "a"`)

	patch, err = s.DiffPrevious(snapshot.PartPrefs)
	require.NoError(t, err)
	assert.Empty(t, patch)
}

func TestOwns(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	assert.True(t, s.Owns("undo_config_0.json"))
	assert.False(t, s.Owns("undo_config_1.json"))
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyReject, p)

	p, err = ParsePolicy("proceed")
	require.NoError(t, err)
	assert.Equal(t, PolicyProceed, p)

	_, err = ParsePolicy("retry")
	assert.ErrorIs(t, err, ErrUnknownPolicy)
}
