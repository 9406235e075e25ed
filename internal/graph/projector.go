package graph

import (
	"errors"
	"fmt"
	"iter"
)

var (
	// ErrInternalConsistency means a credited person has no node during edge
	// aggregation. It indicates a bug, never bad input.
	ErrInternalConsistency = errors.New("internal consistency error")
	// ErrCastTooLarge is returned when a title exceeds Options.MaxCastSize.
	ErrCastTooLarge = errors.New("cast too large")
)

// Casts is the title to cast mapping the projector consumes. Enumeration
// order fixes node order.
type Casts interface {
	All() iter.Seq2[string, []string]
}

// Options tunes projection.
type Options struct {
	// CountDuplicateCredits pairs over each cast exactly as listed, so a
	// person credited twice on a title contributes twice to every edge on
	// it. By default each cast is deduplicated first and an edge weight is
	// the number of titles the pair shares.
	CountDuplicateCredits bool
	// MaxCastSize refuses titles with more credits than this. Zero means no
	// limit.
	MaxCastSize int
}

// Projector builds a co-credit graph. It owns the person to node index.
type Projector struct {
	opts  Options
	g     *Graph
	index map[string]NodeID
}

// NewProjector returns a projector with an empty graph.
func NewProjector(opts Options) *Projector {
	return &Projector{
		opts:  opts,
		g:     New(),
		index: make(map[string]NodeID),
	}
}

// Project builds a fresh graph from casts.
func Project(casts Casts, opts Options) (*Graph, error) {
	return NewProjector(opts).Project(casts)
}

// Project materialises one node per distinct person, then aggregates one
// weighted edge per co-credited pair.
func (p *Projector) Project(casts Casts) (*Graph, error) {
	for title, persons := range casts.All() {
		if p.opts.MaxCastSize > 0 && len(persons) > p.opts.MaxCastSize {
			return nil, fmt.Errorf("%w: title %s has %d credits (max %d)", ErrCastTooLarge, title, len(persons), p.opts.MaxCastSize)
		}
		for _, person := range persons {
			p.ensureNode(person)
		}
	}

	for title, persons := range casts.All() {
		if err := p.aggregate(title, p.pairList(persons)); err != nil {
			return nil, err
		}
	}
	return p.g, nil
}

// Lookup returns the node for a person identifier.
func (p *Projector) Lookup(person string) (NodeID, bool) {
	id, ok := p.index[person]
	return id, ok
}

// Graph returns the graph built so far.
func (p *Projector) Graph() *Graph { return p.g }

func (p *Projector) ensureNode(person string) NodeID {
	if id, ok := p.index[person]; ok {
		return id
	}
	id := p.g.AddNode(person)
	p.index[person] = id
	return id
}

func (p *Projector) pairList(persons []string) []string {
	if p.opts.CountDuplicateCredits {
		return persons
	}
	seen := make(map[string]struct{}, len(persons))
	out := make([]string, 0, len(persons))
	for _, person := range persons {
		if _, dup := seen[person]; dup {
			continue
		}
		seen[person] = struct{}{}
		out = append(out, person)
	}
	return out
}

func (p *Projector) aggregate(title string, persons []string) error {
	for i := 0; i < len(persons); i++ {
		a, ok := p.index[persons[i]]
		if !ok {
			return fmt.Errorf("%w: person %s on title %s has no node", ErrInternalConsistency, persons[i], title)
		}
		for j := i + 1; j < len(persons); j++ {
			b, ok := p.index[persons[j]]
			if !ok {
				return fmt.Errorf("%w: person %s on title %s has no node", ErrInternalConsistency, persons[j], title)
			}
			if a == b {
				continue
			}
			if e, found := p.g.FindEdge(a, b); found {
				p.g.AddWeight(e, 1)
				continue
			}
			if _, err := p.g.AddEdge(a, b, 1); err != nil {
				return fmt.Errorf("%w: %v", ErrInternalConsistency, err)
			}
		}
	}
	return nil
}
