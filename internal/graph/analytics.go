package graph

// Stats summarises a projected graph.
type Stats struct {
	Nodes         int    `json:"nodes"`
	Edges         int    `json:"edges"`
	TotalWeight   int    `json:"total_weight"`
	Components    int    `json:"connected_components"`
	MaxDegreeNode string `json:"max_degree_node,omitempty"`
	MaxDegree     int    `json:"max_degree"`
}

// Analyze computes Stats for g.
func Analyze(g *Graph) Stats {
	s := Stats{
		Nodes:      g.NodeCount(),
		Edges:      g.EdgeCount(),
		Components: ConnectedComponents(g),
	}
	for _, e := range g.Edges() {
		s.TotalWeight += e.Weight
	}
	if n, deg, ok := MaxDegree(g); ok {
		s.MaxDegreeNode = n.Label
		s.MaxDegree = deg
	}
	return s
}

// ConnectedComponents counts maximal connected subsets. Every isolated node
// is its own component; an empty graph has none.
func ConnectedComponents(g *Graph) int {
	uf := newUnionFind(g.NodeCount())
	for _, e := range g.Edges() {
		uf.union(int(e.Source), int(e.Target))
	}
	return uf.count
}

// MaxDegree returns the node with the most incident edges. On ties the node
// enumerated first wins. ok is false for an empty graph.
func MaxDegree(g *Graph) (node Node, degree int, ok bool) {
	for _, n := range g.Nodes() {
		d := g.Degree(n.ID)
		if !ok || d > degree {
			node, degree, ok = n, d, true
		}
	}
	return node, degree, ok
}

// unionFind uses path halving and union by size.
type unionFind struct {
	parent []int
	size   []int
	count  int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{
		parent: make([]int, n),
		size:   make([]int, n),
		count:  n,
	}
	for i := range uf.parent {
		uf.parent[i] = i
		uf.size[i] = 1
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if uf.size[ra] < uf.size[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	uf.size[ra] += uf.size[rb]
	uf.count--
}
