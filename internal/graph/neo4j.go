package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog/log"
)

var neo4jConstraints = []string{
	"CREATE CONSTRAINT user_id IF NOT EXISTS FOR (u:User) REQUIRE u.id IS UNIQUE",
	"CREATE CONSTRAINT goal_id IF NOT EXISTS FOR (g:Goal) REQUIRE g.id IS UNIQUE",
	"CREATE CONSTRAINT habit_id IF NOT EXISTS FOR (h:Habit) REQUIRE h.id IS UNIQUE",
}

// Neo4jConfig holds Neo4j connection settings.
type Neo4jConfig struct {
	URI      string
	User     string
	Password string
	Database string
}

// Neo4jRunner runs Cypher over the Neo4j bolt driver.
type Neo4jRunner struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4jRunner creates the driver. Connectivity is not checked until first use.
func NewNeo4jRunner(cfg Neo4jConfig) (*Neo4jRunner, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("neo4j URI is required")
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	return &Neo4jRunner{driver: driver, database: cfg.Database}, nil
}

// Run implements Runner.
func (r *Neo4jRunner) Run(ctx context.Context, cypher string, params map[string]any) ([]Record, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: r.database,
	})
	defer session.Close(ctx)

	result, err := session.Run(ctx, cypher, params)
	if err != nil {
		return nil, fmt.Errorf("neo4j query: %w", err)
	}

	var out []Record
	for result.Next(ctx) {
		rec := result.Record()
		row := make(Record, len(rec.Keys))
		for i, k := range rec.Keys {
			row[k] = rec.Values[i]
		}
		out = append(out, row)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("neo4j result: %w", err)
	}
	return out, nil
}

// EnsureSchema implements Runner.
func (r *Neo4jRunner) EnsureSchema(ctx context.Context) error {
	for _, q := range neo4jConstraints {
		if _, err := r.Run(ctx, q, nil); err != nil {
			return err
		}
	}
	log.Debug().Msg("Neo4j constraints ensured")
	return nil
}

// Close implements Runner.
func (r *Neo4jRunner) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

var _ Runner = (*Neo4jRunner)(nil)
