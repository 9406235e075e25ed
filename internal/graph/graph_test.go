package graph

import (
	"errors"
	"iter"
	"math/rand"
	"testing"
)

// castList is an ordered title to cast mapping for tests.
type castList []struct {
	title   string
	persons []string
}

func (c castList) All() iter.Seq2[string, []string] {
	return func(yield func(string, []string) bool) {
		for _, t := range c {
			if !yield(t.title, t.persons) {
				return
			}
		}
	}
}

func casts(pairs ...any) castList {
	var c castList
	for i := 0; i < len(pairs); i += 2 {
		c = append(c, struct {
			title   string
			persons []string
		}{pairs[i].(string), pairs[i+1].([]string)})
	}
	return c
}

func mustProject(t *testing.T, c Casts, opts Options) (*Projector, *Graph) {
	t.Helper()
	p := NewProjector(opts)
	g, err := p.Project(c)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	return p, g
}

func weightBetween(t *testing.T, p *Projector, a, b string) int {
	t.Helper()
	na, ok := p.Lookup(a)
	if !ok {
		t.Fatalf("no node for %s", a)
	}
	nb, ok := p.Lookup(b)
	if !ok {
		t.Fatalf("no node for %s", b)
	}
	e, ok := p.Graph().FindEdge(na, nb)
	if !ok {
		return 0
	}
	return p.Graph().Edge(e).Weight
}

func TestGraph_AddEdgeRules(t *testing.T) {
	g := New()
	a := g.AddNode("a")
	b := g.AddNode("b")

	if _, err := g.AddEdge(a, a, 1); !errors.Is(err, ErrSelfLoop) {
		t.Errorf("expected ErrSelfLoop, got %v", err)
	}
	if _, err := g.AddEdge(a, b, 1); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	if _, err := g.AddEdge(b, a, 1); !errors.Is(err, ErrDuplicateEdge) {
		t.Errorf("expected ErrDuplicateEdge for reversed pair, got %v", err)
	}
	if _, err := g.AddEdge(a, NodeID(7), 1); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("expected ErrUnknownNode, got %v", err)
	}
	if _, ok := g.FindEdge(b, a); !ok {
		t.Error("FindEdge should be direction-agnostic")
	}
	if g.Degree(a) != 1 || g.Degree(b) != 1 {
		t.Errorf("unexpected degrees %d, %d", g.Degree(a), g.Degree(b))
	}
	if n := g.Neighbors(a); len(n) != 1 || n[0] != b {
		t.Errorf("unexpected neighbors %v", n)
	}
}

func TestProject_EndToEndScenario(t *testing.T) {
	p, g := mustProject(t, casts(
		"T1", []string{"P1", "P2", "P3"},
		"T2", []string{"P2", "P3", "P4"},
	), Options{})

	if g.NodeCount() != 4 {
		t.Errorf("expected 4 nodes, got %d", g.NodeCount())
	}
	if g.EdgeCount() != 5 {
		t.Errorf("expected 5 edges, got %d", g.EdgeCount())
	}
	if w := weightBetween(t, p, "P2", "P3"); w != 2 {
		t.Errorf("expected P2-P3 weight 2, got %d", w)
	}
	for _, pair := range [][2]string{{"P1", "P2"}, {"P1", "P3"}, {"P2", "P4"}, {"P3", "P4"}} {
		if w := weightBetween(t, p, pair[0], pair[1]); w != 1 {
			t.Errorf("expected %s-%s weight 1, got %d", pair[0], pair[1], w)
		}
	}
	if w := weightBetween(t, p, "P1", "P4"); w != 0 {
		t.Errorf("expected no P1-P4 edge, got weight %d", w)
	}

	if c := ConnectedComponents(g); c != 1 {
		t.Errorf("expected 1 component, got %d", c)
	}
	n, deg, ok := MaxDegree(g)
	if !ok || n.Label != "P2" || deg != 3 {
		t.Errorf("expected P2 with degree 3, got %s/%d (ok=%v)", n.Label, deg, ok)
	}
}

func TestProject_NodeOrderFollowsCasts(t *testing.T) {
	_, g := mustProject(t, casts(
		"T1", []string{"P3", "P1"},
		"T2", []string{"P1", "P2"},
	), Options{})
	want := []string{"P3", "P1", "P2"}
	for i, n := range g.Nodes() {
		if n.Label != want[i] {
			t.Errorf("node %d: expected %s, got %s", i, want[i], n.Label)
		}
	}
}

func TestProject_CompleteCast(t *testing.T) {
	for n := 0; n <= 8; n++ {
		persons := make([]string, n)
		for i := range persons {
			persons[i] = string(rune('A' + i))
		}
		_, g := mustProject(t, casts("T1", persons), Options{})
		want := n * (n - 1) / 2
		if g.EdgeCount() != want {
			t.Errorf("n=%d: expected %d edges, got %d", n, want, g.EdgeCount())
		}
		for _, e := range g.Edges() {
			if e.Weight != 1 {
				t.Errorf("n=%d: expected weight 1, got %d", n, e.Weight)
			}
		}
	}
}

func TestProject_FreshProjectionsAreIdentical(t *testing.T) {
	c := casts(
		"T1", []string{"A", "B", "C"},
		"T2", []string{"B", "C"},
		"T3", []string{"D"},
	)
	_, g1 := mustProject(t, c, Options{})
	_, g2 := mustProject(t, c, Options{})
	if g1.NodeCount() != g2.NodeCount() || g1.EdgeCount() != g2.EdgeCount() {
		t.Fatalf("projections differ: %d/%d vs %d/%d", g1.NodeCount(), g1.EdgeCount(), g2.NodeCount(), g2.EdgeCount())
	}
	for i, e := range g1.Edges() {
		if e != g2.Edges()[i] {
			t.Errorf("edge %d differs: %+v vs %+v", i, e, g2.Edges()[i])
		}
	}
}

func TestProject_WeightsMatchSharedTitles(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	people := []string{"A", "B", "C", "D", "E", "F", "G"}
	var c castList
	for i := 0; i < 40; i++ {
		var cast []string
		for _, p := range people {
			if rng.Intn(3) == 0 {
				cast = append(cast, p)
			}
		}
		c = append(c, struct {
			title   string
			persons []string
		}{string(rune('a'+i%26)) + string(rune('0'+i/26)), cast})
	}

	_, g := mustProject(t, c, Options{})
	for _, e := range g.Edges() {
		a, b := g.Node(e.Source).Label, g.Node(e.Target).Label
		shared := 0
		for _, title := range c {
			hasA, hasB := false, false
			for _, person := range title.persons {
				hasA = hasA || person == a
				hasB = hasB || person == b
			}
			if hasA && hasB {
				shared++
			}
		}
		if e.Weight != shared {
			t.Errorf("%s-%s: weight %d, shared titles %d", a, b, e.Weight, shared)
		}
		if e.Source == e.Target {
			t.Errorf("self-loop on %s", a)
		}
	}
}

func TestProject_HandshakeInvariant(t *testing.T) {
	_, g := mustProject(t, casts(
		"T1", []string{"A", "B", "C", "D"},
		"T2", []string{"C", "E"},
		"T3", []string{"F"},
		"T4", []string{"A", "E", "G"},
	), Options{})
	sum := 0
	for _, n := range g.Nodes() {
		sum += g.Degree(n.ID)
	}
	if sum != 2*g.EdgeCount() {
		t.Errorf("sum of degrees %d != 2 * edges %d", sum, 2*g.EdgeCount())
	}
}

func TestProject_DuplicateCredits(t *testing.T) {
	c := casts("T1", []string{"A", "B", "A"})

	p, g := mustProject(t, c, Options{})
	if g.NodeCount() != 2 || g.EdgeCount() != 1 {
		t.Fatalf("expected 2 nodes 1 edge, got %d/%d", g.NodeCount(), g.EdgeCount())
	}
	if w := weightBetween(t, p, "A", "B"); w != 1 {
		t.Errorf("deduplicated: expected weight 1, got %d", w)
	}

	p, g = mustProject(t, c, Options{CountDuplicateCredits: true})
	if w := weightBetween(t, p, "A", "B"); w != 2 {
		t.Errorf("raw pairs: expected weight 2, got %d", w)
	}
	for _, e := range g.Edges() {
		if e.Source == e.Target {
			t.Error("same-person pair must not create a self-loop")
		}
	}
}

func TestProject_IsolatedAndEmpty(t *testing.T) {
	_, g := mustProject(t, casts(
		"T1", []string{"A"},
		"T2", []string{},
		"T3", []string{"B"},
	), Options{})
	if g.NodeCount() != 2 || g.EdgeCount() != 0 {
		t.Errorf("expected 2 isolated nodes, got %d/%d", g.NodeCount(), g.EdgeCount())
	}
	if c := ConnectedComponents(g); c != 2 {
		t.Errorf("expected 2 components, got %d", c)
	}
}

func TestProject_MaxCastSize(t *testing.T) {
	_, err := Project(casts("T1", []string{"A", "B", "C"}), Options{MaxCastSize: 2})
	if !errors.Is(err, ErrCastTooLarge) {
		t.Fatalf("expected ErrCastTooLarge, got %v", err)
	}
}

func TestProjector_MissingNodeIsInternalError(t *testing.T) {
	p := NewProjector(Options{})
	p.ensureNode("A")
	err := p.aggregate("T1", []string{"A", "ghost"})
	if !errors.Is(err, ErrInternalConsistency) {
		t.Fatalf("expected ErrInternalConsistency, got %v", err)
	}
}

func TestConnectedComponents(t *testing.T) {
	tests := []struct {
		name  string
		casts castList
		want  int
	}{
		{"empty", nil, 0},
		{"single isolated", casts("T1", []string{"A"}), 1},
		{"two islands", casts("T1", []string{"A", "B"}, "T2", []string{"C", "D"}), 2},
		{"bridged", casts("T1", []string{"A", "B"}, "T2", []string{"C", "D"}, "T3", []string{"B", "C"}), 1},
		{"mixed", casts("T1", []string{"A", "B", "C"}, "T2", []string{"D"}, "T3", []string{"E", "F"}), 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, g := mustProject(t, tt.casts, Options{})
			if got := ConnectedComponents(g); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestConnectedComponents_PermutationInvariant(t *testing.T) {
	base := casts(
		"T1", []string{"A", "B"},
		"T2", []string{"C", "D", "E"},
		"T3", []string{"F"},
		"T4", []string{"E", "G"},
		"T5", []string{"H", "I"},
		"T6", []string{"B", "J"},
	)
	_, g := mustProject(t, base, Options{})
	want := ConnectedComponents(g)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := make(castList, len(base))
		copy(shuffled, base)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		_, g := mustProject(t, shuffled, Options{})
		if got := ConnectedComponents(g); got != want {
			t.Fatalf("permutation %d: expected %d components, got %d", i, want, got)
		}
	}
}

func TestMaxDegree_FirstWinsTies(t *testing.T) {
	g := New()
	ids := map[string]NodeID{}
	for _, l := range []string{"A", "B", "C", "D", "x1", "x2", "x3", "x4", "x5"} {
		ids[l] = g.AddNode(l)
	}
	link := func(a, b string) {
		if _, err := g.AddEdge(ids[a], ids[b], 1); err != nil {
			t.Fatal(err)
		}
	}
	// A:3 B:5 C:5 D:1
	link("A", "x1")
	link("A", "x2")
	link("A", "x3")
	for _, x := range []string{"x1", "x2", "x3", "x4", "x5"} {
		link("B", x)
		link("C", x)
	}
	link("D", "x4")

	n, deg, ok := MaxDegree(g)
	if !ok || n.Label != "B" || deg != 5 {
		t.Errorf("expected B with degree 5, got %s/%d", n.Label, deg)
	}
}

func TestMaxDegree_EmptyAndEdgeless(t *testing.T) {
	if _, _, ok := MaxDegree(New()); ok {
		t.Error("expected ok=false for empty graph")
	}
	g := New()
	g.AddNode("solo")
	g.AddNode("other")
	n, deg, ok := MaxDegree(g)
	if !ok || n.Label != "solo" || deg != 0 {
		t.Errorf("expected first node with degree 0, got %s/%d", n.Label, deg)
	}
}

func TestAnalyze(t *testing.T) {
	_, g := mustProject(t, casts(
		"T1", []string{"P1", "P2", "P3"},
		"T2", []string{"P2", "P3", "P4"},
		"T3", []string{"P9"},
	), Options{})
	s := Analyze(g)
	if s.Nodes != 5 || s.Edges != 5 || s.Components != 2 {
		t.Errorf("unexpected stats %+v", s)
	}
	if s.TotalWeight != 6 {
		t.Errorf("expected total weight 6, got %d", s.TotalWeight)
	}
	if s.MaxDegreeNode != "P2" || s.MaxDegree != 3 {
		t.Errorf("expected P2/3, got %s/%d", s.MaxDegreeNode, s.MaxDegree)
	}
}
