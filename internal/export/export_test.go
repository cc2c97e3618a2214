package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3worlds/tw-apps-sub001/internal/graph"
)

func configGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	require.NoError(t, g.AddNode(graph.NewNode("sys", "system", "System")))
	require.NoError(t, g.AddNode(graph.NewNode("proc", "process", "Growth")))
	require.NoError(t, g.SetProperty("proc", "timeStep", "0.5"))
	require.NoError(t, g.SetProperty("proc", "unit", "day"))
	require.NoError(t, g.AddEdge(graph.NewEdge("proc", "sys", "belongsTo")))
	return g
}

func TestExportersRestoreGraph(t *testing.T) {
	for _, f := range Formats() {
		t.Run(string(f), func(t *testing.T) {
			ex, err := New(string(f))
			require.NoError(t, err)
			assert.Equal(t, f, ex.Format())
			assert.Equal(t, "."+string(f), ex.Ext())

			g := configGraph(t)
			var buf bytes.Buffer
			require.NoError(t, ex.Export(&buf, g))

			back, err := ex.Import(bytes.NewReader(buf.Bytes()))
			require.NoError(t, err)
			assert.True(t, g.Equal(back), "imported graph differs:\n%s", buf.String())
		})
	}
}

func TestExportIsStable(t *testing.T) {
	for _, f := range Formats() {
		t.Run(string(f), func(t *testing.T) {
			ex, err := New(string(f))
			require.NoError(t, err)

			var a, b bytes.Buffer
			require.NoError(t, ex.Export(&a, configGraph(t)))
			require.NoError(t, ex.Export(&b, configGraph(t)))
			assert.Equal(t, a.String(), b.String())
		})
	}
}

func TestExportEmptyGraph(t *testing.T) {
	for _, f := range Formats() {
		t.Run(string(f), func(t *testing.T) {
			ex, err := New(string(f))
			require.NoError(t, err)

			var buf bytes.Buffer
			require.NoError(t, ex.Export(&buf, graph.New()))
			back, err := ex.Import(&buf)
			require.NoError(t, err)
			assert.Equal(t, 0, back.NodeCount())
		})
	}
}

func TestNewUnknownFormat(t *testing.T) {
	_, err := New("graphml")
	assert.ErrorIs(t, err, ErrUnknownFormat)

	ex, err := New("YML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, ex.Format())
}

func TestForPath(t *testing.T) {
	for path, want := range map[string]Format{
		"model.json":     FormatJSON,
		"/tmp/model.yml": FormatYAML,
		"model.YAML":     FormatYAML,
		"a/b/model.toml": FormatTOML,
	} {
		ex, err := ForPath(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, ex.Format(), path)
	}

	_, err := ForPath("model")
	assert.ErrorIs(t, err, ErrUnknownFormat)
	_, err = ForPath("model.xml")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestImportRejectsForeignSchema(t *testing.T) {
	ex, err := New("json")
	require.NoError(t, err)

	_, err = ex.Import(strings.NewReader(`{"schema":"other/9","nodes":[],"edges":[]}`))
	assert.ErrorIs(t, err, ErrSchemaMismatch)

	_, err = ex.Import(strings.NewReader(`{not json`))
	assert.Error(t, err)
}
