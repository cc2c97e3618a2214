package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	return p
}

func TestWatcherReportsOwnedRemoval(t *testing.T) {
	dir := t.TempDir()
	owned := writeFile(t, dir, "undo_config_1.json")
	other := writeFile(t, dir, "notes.txt")

	owner := OwnerFunc(func(name string) bool { return name == "undo_config_1.json" })
	w, err := New(context.Background(), dir, owner)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.Remove(other))
	require.NoError(t, os.Remove(owned))

	select {
	case v := <-w.Violations():
		assert.Equal(t, "undo_config_1.json", v.Name)
		assert.Equal(t, "remove", v.Op)
		assert.Equal(t, owned, v.Path)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for violation")
	}
	assert.Equal(t, int64(1), w.Stats().Violations)
}

func TestWatcherStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w, err := New(ctx, t.TempDir(), OwnerFunc(func(string) bool { return true }))
	require.NoError(t, err)

	cancel()
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	_, open := <-w.Violations()
	assert.False(t, open)
}

func TestNewErrors(t *testing.T) {
	_, err := New(context.Background(), t.TempDir(), nil)
	assert.Error(t, err)

	_, err = New(context.Background(), filepath.Join(t.TempDir(), "missing"), OwnerFunc(func(string) bool { return false }))
	assert.Error(t, err)
}
