package export

import (
	"context"

	"github.com/efebarandurmaz/castgraph/internal/graph"
	graphneo4j "github.com/efebarandurmaz/castgraph/internal/graph/neo4j"
	"github.com/efebarandurmaz/castgraph/internal/store"
)

// Neo4jConfig locates the database the neo4j sink writes to.
type Neo4jConfig struct {
	URI       string
	Username  string
	Password  string
	BatchSize int
}

// NewSQLiteSink writes the graph to a SQLite file at Options.Path.
func NewSQLiteSink() *RepositorySink {
	return &RepositorySink{
		Name: "sqlite",
		Open: func(_ context.Context, opts Options) (graph.Repository, error) {
			return store.Open(opts.Path)
		},
	}
}

// NewNeo4jSink merges the graph into Neo4j. Options.Path is ignored.
func NewNeo4jSink(cfg Neo4jConfig) *RepositorySink {
	return &RepositorySink{
		Name: "neo4j",
		Open: func(ctx context.Context, _ Options) (graph.Repository, error) {
			return graphneo4j.NewNeo4j(ctx, cfg.URI, cfg.Username, cfg.Password, cfg.BatchSize)
		},
	}
}

// RegistryWithStores returns the default text formats plus the sqlite and
// neo4j sinks.
func RegistryWithStores(neo Neo4jConfig) *Registry {
	r := DefaultRegistry()
	r.Register(NewSQLiteSink())
	r.Register(NewNeo4jSink(neo))
	return r
}

// CheckNeo4j dials the configured database and closes the connection again.
func CheckNeo4j(ctx context.Context, cfg Neo4jConfig) error {
	repo, err := graphneo4j.NewNeo4j(ctx, cfg.URI, cfg.Username, cfg.Password, cfg.BatchSize)
	if err != nil {
		return err
	}
	return repo.Close(ctx)
}
