package graph

// Edge is a labelled relationship between two nodes.
type Edge struct {
	// From is the source node ID.
	From NodeID `json:"from" yaml:"from" toml:"from"`
	// To is the target node ID.
	To NodeID `json:"to" yaml:"to" toml:"to"`
	// Label names the relationship (e.g. "belongsTo", "appliesTo").
	Label string `json:"label,omitempty" yaml:"label,omitempty" toml:"label,omitempty"`
}

// NewEdge creates an edge.
func NewEdge(from, to NodeID, label string) Edge {
	return Edge{From: from, To: to, Label: label}
}
