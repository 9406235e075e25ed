package graph

import (
	"context"
)

// Repository persists a projected graph to an external store. Stores are
// write-only sinks; nothing reads a graph back.
type Repository interface {
	// StoreGraph writes every node and edge of g.
	StoreGraph(ctx context.Context, g *Graph) error
	// Close releases resources.
	Close(ctx context.Context) error
}
