// Package graph holds the undirected co-credit graph between people, the
// projector that builds it from title casts, and the analytics run on it.
package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrSelfLoop is returned when an edge would join a node to itself.
	ErrSelfLoop = errors.New("self-loop")
	// ErrDuplicateEdge is returned when an edge already joins the pair.
	ErrDuplicateEdge = errors.New("edge already exists")
	// ErrUnknownNode is returned for a handle the graph did not issue.
	ErrUnknownNode = errors.New("unknown node")
)

// NodeID is a dense handle issued in creation order.
type NodeID int

// EdgeID is a dense handle issued in creation order.
type EdgeID int

// Node is a person.
type Node struct {
	ID    NodeID `json:"id"`
	Label string `json:"label"`
}

// Edge joins two people who share at least one acting credit. Source is the
// endpoint created first.
type Edge struct {
	ID     EdgeID `json:"id"`
	Source NodeID `json:"source"`
	Target NodeID `json:"target"`
	Weight int    `json:"weight"`
}

// Graph is an undirected weighted graph with at most one edge per pair and
// no self-loops. Nodes and edges enumerate in creation order.
type Graph struct {
	nodes []Node
	edges []Edge
	adj   []map[NodeID]EdgeID
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{}
}

// AddNode creates a node and returns its handle. Labels are not checked for
// uniqueness; callers that need deduplication keep their own index.
func (g *Graph) AddNode(label string) NodeID {
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, Node{ID: id, Label: label})
	g.adj = append(g.adj, nil)
	return id
}

func (g *Graph) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(g.nodes)
}

// FindEdge returns the edge joining a and b, in either direction.
func (g *Graph) FindEdge(a, b NodeID) (EdgeID, bool) {
	if !g.valid(a) || !g.valid(b) {
		return 0, false
	}
	e, ok := g.adj[a][b]
	return e, ok
}

// AddEdge joins a and b with the given weight.
func (g *Graph) AddEdge(a, b NodeID, weight int) (EdgeID, error) {
	if !g.valid(a) || !g.valid(b) {
		return 0, fmt.Errorf("%w: %d-%d", ErrUnknownNode, a, b)
	}
	if a == b {
		return 0, fmt.Errorf("%w on node %d", ErrSelfLoop, a)
	}
	if _, ok := g.adj[a][b]; ok {
		return 0, fmt.Errorf("%w: %d-%d", ErrDuplicateEdge, a, b)
	}
	id := EdgeID(len(g.edges))
	g.edges = append(g.edges, Edge{ID: id, Source: a, Target: b, Weight: weight})
	g.link(a, b, id)
	g.link(b, a, id)
	return id, nil
}

func (g *Graph) link(from, to NodeID, e EdgeID) {
	if g.adj[from] == nil {
		g.adj[from] = make(map[NodeID]EdgeID)
	}
	g.adj[from][to] = e
}

// AddWeight increases the weight of an existing edge by delta.
func (g *Graph) AddWeight(e EdgeID, delta int) {
	g.edges[e].Weight += delta
}

// Node returns the node for id.
func (g *Graph) Node(id NodeID) Node { return g.nodes[id] }

// Edge returns the edge for id.
func (g *Graph) Edge(id EdgeID) Edge { return g.edges[id] }

// Nodes returns the nodes in enumeration order. The slice must not be
// modified.
func (g *Graph) Nodes() []Node { return g.nodes }

// Edges returns the edges in creation order. The slice must not be modified.
func (g *Graph) Edges() []Edge { return g.edges }

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Degree returns the number of edges incident to id.
func (g *Graph) Degree(id NodeID) int {
	if !g.valid(id) {
		return 0
	}
	return len(g.adj[id])
}

// Neighbors returns the nodes adjacent to id in no particular order.
func (g *Graph) Neighbors(id NodeID) []NodeID {
	if !g.valid(id) {
		return nil
	}
	out := make([]NodeID, 0, len(g.adj[id]))
	for n := range g.adj[id] {
		out = append(out, n)
	}
	return out
}
