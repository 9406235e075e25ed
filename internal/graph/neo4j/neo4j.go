package neo4j

import (
	"context"
	"fmt"

	"github.com/efebarandurmaz/castgraph/internal/graph"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const (
	mergePersons = "UNWIND $rows AS row MERGE (p:Person {id: row.id})"
	mergeCostars = "UNWIND $rows AS row " +
		"MATCH (a:Person {id: row.a}), (b:Person {id: row.b}) " +
		"MERGE (a)-[r:COSTARRED]-(b) SET r.weight = row.weight"
)

// DefaultBatchSize is used when a non-positive batch size is given.
const DefaultBatchSize = 500

// Neo4jRepository implements graph.Repository using Neo4j.
type Neo4jRepository struct {
	driver    neo4j.DriverWithContext
	batchSize int
}

// NewNeo4j connects to Neo4j and verifies connectivity.
func NewNeo4j(ctx context.Context, uri, username, password string, batchSize int) (*Neo4jRepository, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Neo4jRepository{driver: driver, batchSize: batchSize}, nil
}

// StoreGraph merges every person and co-credit edge. Re-running against the
// same database overwrites edge weights.
func (r *Neo4jRepository) StoreGraph(ctx context.Context, g *graph.Graph) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	for i, batch := range personBatches(g, r.batchSize) {
		if err := r.write(ctx, session, mergePersons, batch); err != nil {
			return fmt.Errorf("store persons batch %d: %w", i, err)
		}
	}
	for i, batch := range costarBatches(g, r.batchSize) {
		if err := r.write(ctx, session, mergeCostars, batch); err != nil {
			return fmt.Errorf("store costars batch %d: %w", i, err)
		}
	}
	return nil
}

func (r *Neo4jRepository) write(ctx context.Context, session neo4j.SessionWithContext, cypher string, rows []map[string]any) error {
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, map[string]any{"rows": rows})
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	return err
}

func (r *Neo4jRepository) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

func personBatches(g *graph.Graph, size int) [][]map[string]any {
	var out [][]map[string]any
	var cur []map[string]any
	for _, n := range g.Nodes() {
		cur = append(cur, map[string]any{"id": n.Label})
		if len(cur) == size {
			out = append(out, cur)
			cur = nil
		}
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

func costarBatches(g *graph.Graph, size int) [][]map[string]any {
	var out [][]map[string]any
	var cur []map[string]any
	for _, e := range g.Edges() {
		cur = append(cur, map[string]any{
			"a":      g.Node(e.Source).Label,
			"b":      g.Node(e.Target).Label,
			"weight": int64(e.Weight),
		})
		if len(cur) == size {
			out = append(out, cur)
			cur = nil
		}
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

var _ graph.Repository = (*Neo4jRepository)(nil)
