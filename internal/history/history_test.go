package history

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEntry records how often it was released.
type testEntry struct {
	desc     string
	releases int
	fail     error
}

func (e *testEntry) Description() string { return e.desc }

func (e *testEntry) Release() error {
	e.releases++
	return e.fail
}

func entry(desc string) *testEntry { return &testEntry{desc: desc} }

type countingJanitor struct {
	calls int
	n     int
	err   error
}

func (j *countingJanitor) Sweep() (int, error) {
	j.calls++
	return j.n, j.err
}

func TestNewHistoryIsEmpty(t *testing.T) {
	h := New[*testEntry]()

	assert.Equal(t, 0, h.Len())
	assert.Equal(t, -1, h.Cursor())
	assert.False(t, h.HasPrev())
	assert.False(t, h.HasNext())

	_, ok := h.Current()
	assert.False(t, ok)
}

func TestPushAdvancesCursor(t *testing.T) {
	for n := 1; n <= 5; n++ {
		t.Run(fmt.Sprintf("%d pushes", n), func(t *testing.T) {
			h := New[*testEntry]()
			for i := 0; i < n; i++ {
				h.Push(entry(fmt.Sprint(i)))
			}
			assert.Equal(t, n-1, h.Cursor())
			assert.Equal(t, n > 1, h.HasPrev())
			assert.False(t, h.HasNext())
		})
	}
}

func TestScenarioABC(t *testing.T) {
	h := New[*testEntry]()
	h.Push(entry("A"))
	h.Push(entry("B"))
	h.Push(entry("C"))

	assert.True(t, h.HasPrev())
	prev, err := h.PreviousDescription()
	require.NoError(t, err)
	assert.Equal(t, "B", prev)

	got, err := h.Undo()
	require.NoError(t, err)
	assert.Equal(t, "B", got.Description())
	assert.True(t, h.HasNext())
	next, err := h.NextDescription()
	require.NoError(t, err)
	assert.Equal(t, "C", next)

	got, err = h.Undo()
	require.NoError(t, err)
	assert.Equal(t, "A", got.Description())
	assert.False(t, h.HasPrev())

	got, err = h.Redo()
	require.NoError(t, err)
	assert.Equal(t, "B", got.Description())
}

func TestUndoRedoRoundTrip(t *testing.T) {
	h := New[*testEntry]()
	h.Push(entry("A"))
	h.Push(entry("B"))
	h.Push(entry("C"))

	before, _ := h.Current()
	cursor := h.Cursor()

	_, err := h.Undo()
	require.NoError(t, err)
	got, err := h.Redo()
	require.NoError(t, err)

	assert.Equal(t, cursor, h.Cursor())
	assert.Same(t, before, got)
}

func TestNavigationErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup []string
		call  func(h *History[*testEntry]) error
		want  error
	}{
		{"undo on empty", nil, func(h *History[*testEntry]) error { _, err := h.Undo(); return err }, ErrNothingToUndo},
		{"undo on single", []string{"A"}, func(h *History[*testEntry]) error { _, err := h.Undo(); return err }, ErrNothingToUndo},
		{"redo at top", []string{"A", "B"}, func(h *History[*testEntry]) error { _, err := h.Redo(); return err }, ErrNothingToRedo},
		{"previous on empty", nil, func(h *History[*testEntry]) error { _, err := h.PreviousDescription(); return err }, ErrNothingToUndo},
		{"next at top", []string{"A"}, func(h *History[*testEntry]) error { _, err := h.NextDescription(); return err }, ErrNothingToRedo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New[*testEntry]()
			for _, d := range tt.setup {
				h.Push(entry(d))
			}
			cursor, n := h.Cursor(), h.Len()

			err := tt.call(h)
			require.Error(t, err)
			assert.True(t, IsNavigation(err))
			assert.ErrorIs(t, err, tt.want)

			assert.Equal(t, cursor, h.Cursor(), "state must be unchanged")
			assert.Equal(t, n, h.Len())
		})
	}
}

func TestPushAfterUndoTruncatesRedoBranch(t *testing.T) {
	h := New[*testEntry]()
	a, b, c := entry("A"), entry("B"), entry("C")
	h.Push(a)
	h.Push(b)
	h.Push(c)

	_, err := h.Undo()
	require.NoError(t, err)
	_, err = h.Undo()
	require.NoError(t, err)

	d := entry("D")
	h.Push(d)

	assert.Equal(t, 2, h.Len())
	assert.Equal(t, 1, h.Cursor())
	assert.False(t, h.HasNext())
	assert.Equal(t, 1, b.releases)
	assert.Equal(t, 1, c.releases)
	assert.Equal(t, 0, a.releases)

	got, err := h.Undo()
	require.NoError(t, err)
	assert.Same(t, a, got)
}

func TestPushPrunesOldest(t *testing.T) {
	h := New[*testEntry](WithMaxEntries(3))
	all := []*testEntry{entry("A"), entry("B"), entry("C"), entry("D"), entry("E")}
	for _, e := range all {
		h.Push(e)
	}

	assert.Equal(t, 3, h.Len())
	assert.Equal(t, 2, h.Cursor())
	assert.Equal(t, 1, all[0].releases)
	assert.Equal(t, 1, all[1].releases)
	assert.Equal(t, 0, all[2].releases)

	var descs []string
	for _, info := range h.Entries() {
		descs = append(descs, info.Description)
	}
	assert.Equal(t, []string{"C", "D", "E"}, descs)
	assert.Equal(t, 3, h.MaxEntries())
}

func TestInitialiseReleasesEverything(t *testing.T) {
	j := &countingJanitor{n: 2}
	h := New[*testEntry](WithJanitor(j))
	a, b := entry("A"), entry("B")
	h.Push(a)
	h.Push(b)
	_, err := h.Undo()
	require.NoError(t, err)

	require.NoError(t, h.Initialise())

	assert.Equal(t, 0, h.Len())
	assert.Equal(t, -1, h.Cursor())
	assert.False(t, h.HasPrev())
	assert.False(t, h.HasNext())
	assert.Equal(t, 1, a.releases)
	assert.Equal(t, 1, b.releases)
	assert.Equal(t, 1, j.calls)

	require.NoError(t, h.Finalise())
	assert.Equal(t, 1, a.releases, "released entries are not released again")
	assert.Equal(t, 2, j.calls)
}

func TestInitialiseContinuesPastFailures(t *testing.T) {
	releaseErr := errors.New("permission denied")
	sweepErr := errors.New("sweep failed")
	j := &countingJanitor{err: sweepErr}

	var hooked []string
	h := New[*testEntry](WithJanitor(j), WithReleaseHook(func(desc string, err error) {
		hooked = append(hooked, desc)
	}))

	bad := &testEntry{desc: "A", fail: releaseErr}
	good := entry("B")
	h.Push(bad)
	h.Push(good)

	err := h.Initialise()
	assert.ErrorIs(t, err, releaseErr)
	assert.ErrorIs(t, err, sweepErr)
	assert.Equal(t, 0, h.Len())
	assert.Equal(t, 1, good.releases)
	assert.Equal(t, []string{"A", "B"}, hooked)
}

func TestEntriesMarksActive(t *testing.T) {
	h := New[*testEntry]()
	h.Push(entry("A"))
	h.Push(entry("B"))
	_, err := h.Undo()
	require.NoError(t, err)

	assert.Equal(t, []Info{
		{Index: 0, Description: "A", Active: true},
		{Index: 1, Description: "B", Active: false},
	}, h.Entries())

	e, ok := h.At(1)
	require.True(t, ok)
	assert.Equal(t, "B", e.Description())
	_, ok = h.At(2)
	assert.False(t, ok)
}
