// Package store writes a projected graph into a SQLite database file.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/efebarandurmaz/castgraph/internal/graph"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
type DB struct {
	db *sql.DB
}

// Open opens or creates a SQLite database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &DB{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS persons (
			node_id INTEGER PRIMARY KEY,
			person_id TEXT NOT NULL UNIQUE
		);

		CREATE TABLE IF NOT EXISTS costars (
			source INTEGER NOT NULL REFERENCES persons(node_id),
			target INTEGER NOT NULL REFERENCES persons(node_id),
			weight INTEGER NOT NULL CHECK (weight > 0),
			PRIMARY KEY (source, target),
			CHECK (source <> target)
		);

		CREATE INDEX IF NOT EXISTS idx_costars_target ON costars(target);
	`
	_, err := db.Exec(schema)
	return err
}

// StoreGraph replaces the database contents with g in a single transaction.
func (d *DB) StoreGraph(ctx context.Context, g *graph.Graph) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM costars"); err != nil {
		return fmt.Errorf("clearing costars: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM persons"); err != nil {
		return fmt.Errorf("clearing persons: %w", err)
	}

	personStmt, err := tx.PrepareContext(ctx, "INSERT INTO persons (node_id, person_id) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("preparing persons insert: %w", err)
	}
	defer personStmt.Close()
	for _, n := range g.Nodes() {
		if _, err := personStmt.ExecContext(ctx, int(n.ID), n.Label); err != nil {
			return fmt.Errorf("inserting person %s: %w", n.Label, err)
		}
	}

	edgeStmt, err := tx.PrepareContext(ctx, "INSERT INTO costars (source, target, weight) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing costars insert: %w", err)
	}
	defer edgeStmt.Close()
	for _, e := range g.Edges() {
		if _, err := edgeStmt.ExecContext(ctx, int(e.Source), int(e.Target), e.Weight); err != nil {
			return fmt.Errorf("inserting costar %d-%d: %w", e.Source, e.Target, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (d *DB) Close(context.Context) error {
	return d.db.Close()
}

var _ graph.Repository = (*DB)(nil)
