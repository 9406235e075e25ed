// Package export renders a projected graph to files and external stores.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/efebarandurmaz/castgraph/internal/graph"
)

// Options controls a single export.
type Options struct {
	// Path is the destination. "-" writes text formats to stdout.
	Path string
	// EdgeLabels prints each edge weight as a visible label.
	EdgeLabels bool
	// Stats, when set, is embedded by formats that carry metadata.
	Stats *graph.Stats
	// Stdout receives text formats when Path is "-". Defaults to the sink's
	// own writer, then os.Stdout.
	Stdout io.Writer
}

// Sink writes a graph somewhere.
type Sink interface {
	Format() string
	Export(ctx context.Context, g *graph.Graph, opts Options) error
}

// DefaultPath returns the file name used when no path is configured.
func DefaultPath(format string) string {
	switch format {
	case "dot":
		return "graph.dot"
	case "mermaid":
		return "graph.mmd"
	case "json":
		return "graph.json"
	case "cytoscape":
		return "graph.cy.json"
	case "sqlite":
		return "graph.db"
	}
	return ""
}

// Renderer produces the bytes of a text format.
type Renderer func(g *graph.Graph, opts Options) ([]byte, error)

// TextSink writes a rendered text format to a file or stdout.
type TextSink struct {
	Name   string
	Render Renderer
	Stdout io.Writer
}

func (s *TextSink) Format() string { return s.Name }

func (s *TextSink) Export(ctx context.Context, g *graph.Graph, opts Options) error {
	data, err := s.Render(g, opts)
	if err != nil {
		return fmt.Errorf("render %s: %w", s.Name, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if opts.Path == "-" {
		w := opts.Stdout
		if w == nil {
			w = s.Stdout
		}
		if w == nil {
			w = os.Stdout
		}
		_, err := w.Write(data)
		return err
	}
	path := opts.Path
	if path == "" {
		path = DefaultPath(s.Name)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// RenderDOT writes an undirected Graphviz graph. Every edge carries its
// weight attribute; the visible label is optional.
func RenderDOT(g *graph.Graph, opts Options) ([]byte, error) {
	var b strings.Builder
	b.WriteString("graph costars {\n")
	b.WriteString("  node [fontname=\"Helvetica\" shape=ellipse];\n")
	b.WriteString("  edge [fontname=\"Helvetica\" fontsize=10];\n\n")

	for _, n := range g.Nodes() {
		fmt.Fprintf(&b, "  %s [label=%s];\n", dotID(n.ID), quoteDOT(n.Label))
	}
	if g.EdgeCount() > 0 {
		b.WriteString("\n")
	}
	for _, e := range g.Edges() {
		label := ""
		if opts.EdgeLabels {
			label = fmt.Sprintf(" label=\"%d\"", e.Weight)
		}
		fmt.Fprintf(&b, "  %s -- %s [weight=%d%s];\n", dotID(e.Source), dotID(e.Target), e.Weight, label)
	}

	b.WriteString("}\n")
	return []byte(b.String()), nil
}

// RenderMermaid writes a Mermaid flowchart with undirected links.
func RenderMermaid(g *graph.Graph, opts Options) ([]byte, error) {
	var b strings.Builder
	b.WriteString("graph LR\n")
	for _, n := range g.Nodes() {
		fmt.Fprintf(&b, "  %s[\"%s\"]\n", mermaidID(n.ID), strings.ReplaceAll(n.Label, `"`, "#quot;"))
	}
	for _, e := range g.Edges() {
		label := ""
		if opts.EdgeLabels {
			label = "|" + strconv.Itoa(e.Weight) + "|"
		}
		fmt.Fprintf(&b, "  %s ---%s %s\n", mermaidID(e.Source), label, mermaidID(e.Target))
	}
	return []byte(b.String()), nil
}

type jsonEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Weight int    `json:"weight"`
}

type jsonGraph struct {
	Nodes []string     `json:"nodes"`
	Edges []jsonEdge   `json:"edges"`
	Stats *graph.Stats `json:"stats,omitempty"`
}

// RenderJSON writes nodes by label and edges by endpoint labels.
func RenderJSON(g *graph.Graph, opts Options) ([]byte, error) {
	out := jsonGraph{
		Nodes: make([]string, 0, g.NodeCount()),
		Edges: make([]jsonEdge, 0, g.EdgeCount()),
		Stats: opts.Stats,
	}
	for _, n := range g.Nodes() {
		out.Nodes = append(out.Nodes, n.Label)
	}
	for _, e := range g.Edges() {
		out.Edges = append(out.Edges, jsonEdge{
			Source: g.Node(e.Source).Label,
			Target: g.Node(e.Target).Label,
			Weight: e.Weight,
		})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func dotID(id graph.NodeID) string {
	return "n" + strconv.Itoa(int(id))
}

func mermaidID(id graph.NodeID) string {
	return "n" + strconv.Itoa(int(id))
}

func quoteDOT(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}
