package graph

import "maps"

// NodeID uniquely identifies a node in the graph.
type NodeID string

// Node is a configuration element.
type Node struct {
	// ID uniquely identifies this node.
	ID NodeID `json:"id" yaml:"id" toml:"id"`
	// Kind is the node's type name (e.g. "process", "component", "record").
	Kind string `json:"kind" yaml:"kind" toml:"kind"`
	// Label is the display name.
	Label string `json:"label,omitempty" yaml:"label,omitempty" toml:"label,omitempty"`
	// Properties holds the node's key/value configuration.
	Properties map[string]string `json:"properties,omitempty" yaml:"properties,omitempty" toml:"properties,omitempty"`
}

// NewNode creates a node with no properties.
func NewNode(id NodeID, kind, label string) Node {
	return Node{ID: id, Kind: kind, Label: label}
}

// Property returns a property value.
func (n Node) Property(key string) (string, bool) {
	v, ok := n.Properties[key]
	return v, ok
}

func (n Node) clone() Node {
	n.Properties = maps.Clone(n.Properties)
	return n
}
