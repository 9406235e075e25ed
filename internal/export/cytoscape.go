package export

import (
	"encoding/json"
	"fmt"

	"github.com/efebarandurmaz/castgraph/internal/graph"
)

// CytoscapeElements is the Cytoscape.js elements format.
type CytoscapeElements struct {
	Nodes []CytoscapeNode `json:"nodes"`
	Edges []CytoscapeEdge `json:"edges"`
}

type CytoscapeNode struct {
	Data CytoscapeNodeData `json:"data"`
}

type CytoscapeNodeData struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Degree int    `json:"degree"`
}

type CytoscapeEdge struct {
	Data CytoscapeEdgeData `json:"data"`
}

type CytoscapeEdgeData struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Weight int    `json:"weight"`
	Label  string `json:"label,omitempty"`
}

// RenderCytoscape writes the graph as Cytoscape.js elements keyed by person ID.
func RenderCytoscape(g *graph.Graph, opts Options) ([]byte, error) {
	elements := CytoscapeElements{
		Nodes: make([]CytoscapeNode, 0, g.NodeCount()),
		Edges: make([]CytoscapeEdge, 0, g.EdgeCount()),
	}
	for _, n := range g.Nodes() {
		elements.Nodes = append(elements.Nodes, CytoscapeNode{Data: CytoscapeNodeData{
			ID:     n.Label,
			Label:  n.Label,
			Degree: g.Degree(n.ID),
		}})
	}
	for _, e := range g.Edges() {
		src, dst := g.Node(e.Source).Label, g.Node(e.Target).Label
		data := CytoscapeEdgeData{
			ID:     fmt.Sprintf("%s-%s", src, dst),
			Source: src,
			Target: dst,
			Weight: e.Weight,
		}
		if opts.EdgeLabels {
			data.Label = fmt.Sprint(e.Weight)
		}
		elements.Edges = append(elements.Edges, CytoscapeEdge{Data: data})
	}
	out, err := json.Marshal(elements)
	if err != nil {
		return nil, fmt.Errorf("marshaling Cytoscape elements to JSON: %w", err)
	}
	return out, nil
}
