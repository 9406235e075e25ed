package export

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/efebarandurmaz/castgraph/internal/graph"
)

// ErrUnknownFormat is returned for a format with no registered sink.
var ErrUnknownFormat = errors.New("unknown export format")

// ErrStdoutUnsupported is returned when a store-backed format is given "-"
// as its destination.
var ErrStdoutUnsupported = errors.New("format cannot write to stdout")

// Registry stores the available sinks by format name.
type Registry struct {
	mu    sync.RWMutex
	sinks map[string]Sink
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sinks: make(map[string]Sink)}
}

// DefaultRegistry holds the built-in text formats.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&TextSink{Name: "dot", Render: RenderDOT})
	r.Register(&TextSink{Name: "mermaid", Render: RenderMermaid})
	r.Register(&TextSink{Name: "json", Render: RenderJSON})
	r.Register(&TextSink{Name: "cytoscape", Render: RenderCytoscape})
	return r
}

func (r *Registry) Register(s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[s.Format()] = s
}

func (r *Registry) Sink(format string) (Sink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sinks[format]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownFormat, format)
	}
	return s, nil
}

// Formats lists registered format names in sorted order.
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.sinks))
	for name := range r.sinks {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// RepositorySink adapts a graph.Repository opened on demand for each export.
type RepositorySink struct {
	Name string
	Open func(ctx context.Context, opts Options) (graph.Repository, error)
}

func (s *RepositorySink) Format() string { return s.Name }

func (s *RepositorySink) Export(ctx context.Context, g *graph.Graph, opts Options) (err error) {
	if err := CheckDestination(s, opts.Path); err != nil {
		return err
	}
	repo, err := s.Open(ctx, opts)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.Name, err)
	}
	defer func() {
		if cerr := repo.Close(ctx); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", s.Name, cerr)
		}
	}()
	if err := repo.StoreGraph(ctx, g); err != nil {
		return fmt.Errorf("store graph in %s: %w", s.Name, err)
	}
	return nil
}

// CheckDestination rejects "-" for sinks that write to a store rather than a
// byte stream.
func CheckDestination(s Sink, path string) error {
	if path != "-" {
		return nil
	}
	if _, ok := s.(*RepositorySink); ok {
		return fmt.Errorf("%w: %s", ErrStdoutUnsupported, s.Format())
	}
	return nil
}
