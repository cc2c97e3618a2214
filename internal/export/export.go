// Package export serializes configuration graphs to re-importable files.
//
// Three formats are supported. All of them encode the same document: a schema
// tag, the node list sorted by ID and the edge list sorted by (from, to, label),
// so an export of an unchanged graph is byte-for-byte stable.
package export

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/3worlds/tw-apps-sub001/internal/graph"
)

// Schema tags every exported document.
const Schema = "cfgedit-graph/1"

// Format names a serialization format.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ErrUnknownFormat is returned by New for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown export format")

// ErrSchemaMismatch is returned when importing a document with a foreign schema tag.
var ErrSchemaMismatch = errors.New("graph schema mismatch")

// Exporter writes and reads a graph in one format.
type Exporter interface {
	// Format returns the format name.
	Format() Format
	// Ext returns the file extension, including the dot.
	Ext() string
	// Export writes g to w.
	Export(w io.Writer, g *graph.Graph) error
	// Import reads a graph previously written by Export.
	Import(r io.Reader) (*graph.Graph, error)
}

// document is the on-disk shape shared by all formats.
type document struct {
	Schema string       `json:"schema" yaml:"schema" toml:"schema"`
	Nodes  []graph.Node `json:"nodes" yaml:"nodes" toml:"nodes"`
	Edges  []graph.Edge `json:"edges" yaml:"edges" toml:"edges"`
}

func newDocument(g *graph.Graph) document {
	doc := document{
		Schema: Schema,
		Nodes:  g.Nodes(),
		Edges:  g.Edges(),
	}
	if doc.Edges == nil {
		doc.Edges = []graph.Edge{}
	}
	return doc
}

func (d document) build() (*graph.Graph, error) {
	if d.Schema != Schema {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrSchemaMismatch, d.Schema, Schema)
	}
	return graph.Build(d.Nodes, d.Edges)
}

// New returns the exporter for a format name (case-insensitive).
func New(format string) (Exporter, error) {
	switch Format(strings.ToLower(format)) {
	case FormatJSON:
		return jsonExporter{}, nil
	case FormatYAML, "yml":
		return yamlExporter{}, nil
	case FormatTOML:
		return tomlExporter{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// ForPath picks the exporter from a file extension.
func ForPath(path string) (Exporter, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return nil, fmt.Errorf("%w: no extension on %q", ErrUnknownFormat, path)
	}
	return New(ext)
}

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{FormatJSON, FormatYAML, FormatTOML}
}
