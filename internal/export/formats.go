package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/3worlds/tw-apps-sub001/internal/graph"
)

type jsonExporter struct{}

func (jsonExporter) Format() Format { return FormatJSON }
func (jsonExporter) Ext() string    { return ".json" }

func (jsonExporter) Export(w io.Writer, g *graph.Graph) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(newDocument(g))
}

func (jsonExporter) Import(r io.Reader) (*graph.Graph, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode json graph: %w", err)
	}
	return doc.build()
}

type yamlExporter struct{}

func (yamlExporter) Format() Format { return FormatYAML }
func (yamlExporter) Ext() string    { return ".yaml" }

func (yamlExporter) Export(w io.Writer, g *graph.Graph) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(newDocument(g)); err != nil {
		return err
	}
	return encoder.Close()
}

func (yamlExporter) Import(r io.Reader) (*graph.Graph, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode yaml graph: %w", err)
	}
	return doc.build()
}

type tomlExporter struct{}

func (tomlExporter) Format() Format { return FormatTOML }
func (tomlExporter) Ext() string    { return ".toml" }

func (tomlExporter) Export(w io.Writer, g *graph.Graph) error {
	return toml.NewEncoder(w).Encode(newDocument(g))
}

func (tomlExporter) Import(r io.Reader) (*graph.Graph, error) {
	var doc document
	if err := toml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode toml graph: %w", err)
	}
	return doc.build()
}
