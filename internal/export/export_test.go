package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/efebarandurmaz/castgraph/internal/graph"
)

// testGraph is the T1 {P1,P2,P3} / T2 {P2,P3,P4} projection.
func testGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	p1 := g.AddNode("P1")
	p2 := g.AddNode("P2")
	p3 := g.AddNode("P3")
	p4 := g.AddNode("P4")
	for _, e := range []struct {
		a, b graph.NodeID
		w    int
	}{{p1, p2, 1}, {p1, p3, 1}, {p2, p3, 2}, {p2, p4, 1}, {p3, p4, 1}} {
		if _, err := g.AddEdge(e.a, e.b, e.w); err != nil {
			t.Fatal(err)
		}
	}
	return g
}

func TestRenderDOT(t *testing.T) {
	g := testGraph(t)

	out, err := RenderDOT(g, Options{})
	if err != nil {
		t.Fatal(err)
	}
	dot := string(out)
	if !strings.HasPrefix(dot, "graph costars {") {
		t.Errorf("expected undirected graph header, got: %s", dot)
	}
	if strings.Contains(dot, "->") {
		t.Error("undirected graph must not contain directed edges")
	}
	if !strings.Contains(dot, `n0 [label="P1"];`) {
		t.Errorf("expected labelled node, got:\n%s", dot)
	}
	if !strings.Contains(dot, "n1 -- n2 [weight=2];") {
		t.Errorf("expected weighted edge without label, got:\n%s", dot)
	}
	if strings.Count(dot, " -- ") != 5 {
		t.Errorf("expected 5 edges, got %d", strings.Count(dot, " -- "))
	}

	out, _ = RenderDOT(g, Options{EdgeLabels: true})
	if !strings.Contains(string(out), `n1 -- n2 [weight=2 label="2"];`) {
		t.Errorf("expected labelled edge, got:\n%s", out)
	}
}

func TestRenderDOT_EscapesLabels(t *testing.T) {
	g := graph.New()
	g.AddNode(`nm"1\x`)
	out, _ := RenderDOT(g, Options{})
	if !strings.Contains(string(out), `[label="nm\"1\\x"]`) {
		t.Errorf("expected escaped label, got:\n%s", out)
	}
}

func TestRenderMermaid(t *testing.T) {
	out, _ := RenderMermaid(testGraph(t), Options{EdgeLabels: true})
	m := string(out)
	if !strings.HasPrefix(m, "graph LR\n") {
		t.Errorf("unexpected header: %s", m)
	}
	if !strings.Contains(m, "n1 ---|2| n2") {
		t.Errorf("expected labelled link, got:\n%s", m)
	}

	out, _ = RenderMermaid(testGraph(t), Options{})
	if !strings.Contains(string(out), "n1 --- n2") {
		t.Errorf("expected unlabelled link, got:\n%s", out)
	}
}

func TestRenderJSON(t *testing.T) {
	stats := graph.Stats{Nodes: 4, Edges: 5, Components: 1, MaxDegreeNode: "P2", MaxDegree: 3}
	out, err := RenderJSON(testGraph(t), Options{Stats: &stats})
	if err != nil {
		t.Fatal(err)
	}
	var decoded jsonGraph
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(decoded.Nodes) != 4 || len(decoded.Edges) != 5 {
		t.Errorf("unexpected sizes %d/%d", len(decoded.Nodes), len(decoded.Edges))
	}
	if decoded.Edges[2] != (jsonEdge{Source: "P2", Target: "P3", Weight: 2}) {
		t.Errorf("unexpected edge %+v", decoded.Edges[2])
	}
	if decoded.Stats == nil || decoded.Stats.MaxDegreeNode != "P2" {
		t.Errorf("expected embedded stats, got %+v", decoded.Stats)
	}
}

func TestRenderCytoscape(t *testing.T) {
	out, err := RenderCytoscape(testGraph(t), Options{})
	if err != nil {
		t.Fatal(err)
	}
	var el CytoscapeElements
	if err := json.Unmarshal(out, &el); err != nil {
		t.Fatal(err)
	}
	if el.Nodes[1].Data.ID != "P2" || el.Nodes[1].Data.Degree != 3 {
		t.Errorf("unexpected node %+v", el.Nodes[1].Data)
	}
	if el.Edges[2].Data.ID != "P2-P3" || el.Edges[2].Data.Weight != 2 {
		t.Errorf("unexpected edge %+v", el.Edges[2].Data)
	}
}

func TestTextSink_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.dot")
	sink := &TextSink{Name: "dot", Render: RenderDOT}
	if err := sink.Export(context.Background(), testGraph(t), Options{Path: path}); err != nil {
		t.Fatalf("Export: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte("graph costars")) {
		t.Errorf("unexpected file content:\n%s", data)
	}
}

func TestTextSink_Stdout(t *testing.T) {
	var buf bytes.Buffer
	sink := &TextSink{Name: "mermaid", Render: RenderMermaid, Stdout: &buf}
	if err := sink.Export(context.Background(), testGraph(t), Options{Path: "-"}); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "graph LR") {
		t.Errorf("expected mermaid on stdout, got: %s", buf.String())
	}
}

func TestTextSink_UnwritablePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "dir", "out.dot")
	sink := &TextSink{Name: "dot", Render: RenderDOT}
	if err := sink.Export(context.Background(), testGraph(t), Options{Path: path}); err == nil {
		t.Fatal("expected error for unwritable path")
	}
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	want := []string{"cytoscape", "dot", "json", "mermaid"}
	got := r.Formats()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, got)
	}
	if _, err := r.Sink("dot"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := r.Sink("png"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
}

type fakeRepo struct {
	stored *graph.Graph
	closed bool
	err    error
}

func (f *fakeRepo) StoreGraph(_ context.Context, g *graph.Graph) error {
	f.stored = g
	return f.err
}

func (f *fakeRepo) Close(context.Context) error {
	f.closed = true
	return nil
}

func TestRepositorySink(t *testing.T) {
	repo := &fakeRepo{}
	sink := &RepositorySink{Name: "fake", Open: func(context.Context, Options) (graph.Repository, error) { return repo, nil }}
	g := testGraph(t)
	if err := sink.Export(context.Background(), g, Options{}); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if repo.stored != g || !repo.closed {
		t.Errorf("expected graph stored and repo closed, got %+v", repo)
	}

	failing := &fakeRepo{err: errors.New("constraint violation")}
	sink = &RepositorySink{Name: "fake", Open: func(context.Context, Options) (graph.Repository, error) { return failing, nil }}
	if err := sink.Export(context.Background(), g, Options{}); err == nil || !failing.closed {
		t.Errorf("expected error and close, got err=%v closed=%v", err, failing.closed)
	}

	sink = &RepositorySink{Name: "fake", Open: func(context.Context, Options) (graph.Repository, error) { return nil, errors.New("refused") }}
	if err := sink.Export(context.Background(), g, Options{}); err == nil || !strings.Contains(err.Error(), "open fake") {
		t.Errorf("expected open error, got %v", err)
	}
}

func TestRepositorySink_RejectsStdout(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	err := NewSQLiteSink().Export(context.Background(), testGraph(t), Options{Path: "-"})
	if !errors.Is(err, ErrStdoutUnsupported) {
		t.Fatalf("expected ErrStdoutUnsupported, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "-")); !os.IsNotExist(err) {
		t.Errorf("expected no file named -, got %v", err)
	}
}

func TestCheckDestination(t *testing.T) {
	text := &TextSink{Name: "dot", Render: RenderDOT}
	tests := []struct {
		name string
		sink Sink
		path string
		ok   bool
	}{
		{"text to stdout", text, "-", true},
		{"text to file", text, "graph.dot", true},
		{"sqlite to file", NewSQLiteSink(), "graph.db", true},
		{"sqlite to stdout", NewSQLiteSink(), "-", false},
		{"neo4j to stdout", NewNeo4jSink(Neo4jConfig{}), "-", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckDestination(tt.sink, tt.path)
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrStdoutUnsupported) {
				t.Errorf("expected ErrStdoutUnsupported, got %v", err)
			}
		})
	}
}

func TestRegistryWithStores(t *testing.T) {
	r := RegistryWithStores(Neo4jConfig{URI: "bolt://localhost:7687"})
	want := []string{"cytoscape", "dot", "json", "mermaid", "neo4j", "sqlite"}
	if got := r.Formats(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestSQLiteSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.db")
	if err := NewSQLiteSink().Export(context.Background(), testGraph(t), Options{Path: path}); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Errorf("expected a non-empty database file, got %v", err)
	}
}
