package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnified(t *testing.T) {
	a := []byte("schema: x\nnodes:\n  - id: a\n")
	b := []byte("schema: x\nnodes:\n  - id: a\n  - id: b\n")

	patch, err := Unified("undo_config_0.yaml", "undo_config_1.yaml", a, b, Options{})
	require.NoError(t, err)

	assert.Contains(t, patch, "--- undo_config_0.yaml")
	assert.Contains(t, patch, "+++ undo_config_1.yaml")
	assert.Contains(t, patch, "+  - id: b\n")
	assert.NotContains(t, patch, "-  - id: a")
}

func TestUnifiedIdentical(t *testing.T) {
	patch, err := Unified("a", "b", []byte("same\n"), []byte("same\n"), Options{})
	require.NoError(t, err)
	assert.Empty(t, patch)
}

func TestUnifiedFromEmpty(t *testing.T) {
	patch, err := Unified("a", "b", nil, []byte("theme = 'dark'\n"), Options{})
	require.NoError(t, err)
	assert.Contains(t, patch, "+theme = 'dark'")
}

func TestUnifiedOversize(t *testing.T) {
	patch, err := Unified("a", "b", []byte("0123456789"), []byte("x"), Options{MaxBytes: 5})
	require.NoError(t, err)
	assert.Contains(t, patch, "diff omitted")
}

func TestSplitLines(t *testing.T) {
	assert.Equal(t, []string{"a\n", "b"}, splitLines([]byte("a\nb")))
	assert.Equal(t, []string{"a\n"}, splitLines([]byte("a\n")))
	assert.Empty(t, splitLines(nil))
}
