// Package graph provides the configuration graph edited by cfgedit.
//
// A configuration graph is a set of typed nodes carrying string properties,
// connected by labelled directed edges. The same structure holds both the
// primary configuration and the derived layout of a project. Node and edge
// semantics (which kinds may connect to which) belong to the compliance
// engine and are not enforced here.
package graph

import (
	"maps"
	"sort"
	"sync"
)

// Graph is an in-memory configuration graph.
// It is safe for concurrent access.
type Graph struct {
	mu sync.RWMutex

	nodes map[NodeID]Node

	// Adjacency lists
	outEdges map[NodeID][]Edge // from -> [edges]
	inEdges  map[NodeID][]Edge // to -> [edges]
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:    make(map[NodeID]Node),
		outEdges: make(map[NodeID][]Edge),
		inEdges:  make(map[NodeID][]Edge),
	}
}

// AddNode adds a node to the graph.
func (g *Graph) AddNode(node Node) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if node.ID == "" {
		return ErrInvalidNodeID
	}
	if _, exists := g.nodes[node.ID]; exists {
		return ErrNodeExists
	}

	g.nodes[node.ID] = node.clone()
	return nil
}

// RemoveNode removes a node and every edge touching it.
func (g *Graph) RemoveNode(id NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[id]; !exists {
		return ErrNodeNotFound
	}

	for _, e := range g.outEdges[id] {
		g.inEdges[e.To] = without(g.inEdges[e.To], func(x Edge) bool { return x.From == id })
	}
	for _, e := range g.inEdges[id] {
		g.outEdges[e.From] = without(g.outEdges[e.From], func(x Edge) bool { return x.To == id })
	}
	delete(g.outEdges, id)
	delete(g.inEdges, id)
	delete(g.nodes, id)
	return nil
}

// GetNode returns a copy of the node with the given ID.
func (g *Graph) GetNode(id NodeID) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	node, exists := g.nodes[id]
	if !exists {
		return Node{}, false
	}
	return node.clone(), true
}

// UpdateNode replaces an existing node.
func (g *Graph) UpdateNode(node Node) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if node.ID == "" {
		return ErrInvalidNodeID
	}
	if _, exists := g.nodes[node.ID]; !exists {
		return ErrNodeNotFound
	}
	g.nodes[node.ID] = node.clone()
	return nil
}

// SetProperty sets one property on a node. An empty value deletes it.
func (g *Graph) SetProperty(id NodeID, key, value string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	node, exists := g.nodes[id]
	if !exists {
		return ErrNodeNotFound
	}
	node = node.clone()
	if value == "" {
		delete(node.Properties, key)
	} else {
		if node.Properties == nil {
			node.Properties = make(map[string]string)
		}
		node.Properties[key] = value
	}
	g.nodes[id] = node
	return nil
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Nodes returns all nodes sorted by ID.
func (g *Graph) Nodes() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	nodes := make([]Node, 0, len(g.nodes))
	for _, node := range g.nodes {
		nodes = append(nodes, node.clone())
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}

// AddEdge adds an edge between two existing nodes.
func (g *Graph) AddEdge(edge Edge) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if edge.From == "" || edge.To == "" {
		return ErrInvalidEdge
	}
	if _, exists := g.nodes[edge.From]; !exists {
		return ErrNodeNotFound
	}
	if _, exists := g.nodes[edge.To]; !exists {
		return ErrNodeNotFound
	}
	for _, e := range g.outEdges[edge.From] {
		if e.To == edge.To && e.Label == edge.Label {
			return ErrEdgeExists
		}
	}

	g.outEdges[edge.From] = append(g.outEdges[edge.From], edge)
	g.inEdges[edge.To] = append(g.inEdges[edge.To], edge)
	return nil
}

// RemoveEdge removes an edge from the graph.
func (g *Graph) RemoveEdge(from, to NodeID, label string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	match := func(e Edge) bool { return e.From == from && e.To == to && e.Label == label }

	before := len(g.outEdges[from])
	g.outEdges[from] = without(g.outEdges[from], match)
	if len(g.outEdges[from]) == before {
		return ErrEdgeNotFound
	}
	g.inEdges[to] = without(g.inEdges[to], match)
	return nil
}

// EdgesFrom returns the outgoing edges of a node.
func (g *Graph) EdgesFrom(id NodeID) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]Edge(nil), g.outEdges[id]...)
}

// EdgesTo returns the incoming edges of a node.
func (g *Graph) EdgesTo(id NodeID) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]Edge(nil), g.inEdges[id]...)
}

// EdgeCount returns the total number of edges in the graph.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	count := 0
	for _, edges := range g.outEdges {
		count += len(edges)
	}
	return count
}

// Edges returns all edges in a stable order (from, to, label).
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var edges []Edge
	for _, nodeEdges := range g.outEdges {
		edges = append(edges, nodeEdges...)
	}
	sortEdges(edges)
	return edges
}

// Clear removes all nodes and edges from the graph.
func (g *Graph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nodes = make(map[NodeID]Node)
	g.outEdges = make(map[NodeID][]Edge)
	g.inEdges = make(map[NodeID][]Edge)
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	g.mu.RLock()
	defer g.mu.RUnlock()

	c := New()
	for id, node := range g.nodes {
		c.nodes[id] = node.clone()
	}
	for id, edges := range g.outEdges {
		c.outEdges[id] = append([]Edge(nil), edges...)
	}
	for id, edges := range g.inEdges {
		c.inEdges[id] = append([]Edge(nil), edges...)
	}
	return c
}

// Equal reports whether two graphs hold the same nodes and edges.
func (g *Graph) Equal(other *Graph) bool {
	if g == nil || other == nil {
		return g == other
	}
	an, bn := g.Nodes(), other.Nodes()
	if len(an) != len(bn) {
		return false
	}
	for i := range an {
		if an[i].ID != bn[i].ID || an[i].Kind != bn[i].Kind || an[i].Label != bn[i].Label ||
			!maps.Equal(an[i].Properties, bn[i].Properties) {
			return false
		}
	}
	ae, be := g.Edges(), other.Edges()
	if len(ae) != len(be) {
		return false
	}
	for i := range ae {
		if ae[i] != be[i] {
			return false
		}
	}
	return true
}

// Build assembles a graph from node and edge lists, as produced by an
// importer. Edges referencing unknown nodes are rejected.
func Build(nodes []Node, edges []Edge) (*Graph, error) {
	g := New()
	for _, n := range nodes {
		if err := g.AddNode(n); err != nil {
			return nil, err
		}
	}
	for _, e := range edges {
		if err := g.AddEdge(e); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func without(edges []Edge, drop func(Edge) bool) []Edge {
	filtered := make([]Edge, 0, len(edges))
	for _, e := range edges {
		if !drop(e) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

func sortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		if edges[i].To != edges[j].To {
			return edges[i].To < edges[j].To
		}
		return edges[i].Label < edges[j].Label
	})
}
