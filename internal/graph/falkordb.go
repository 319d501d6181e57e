package graph

import (
	"context"
	"fmt"
	"strings"

	falkordb "github.com/falkordb/falkordb-go"
	"github.com/gomodule/redigo/redis"
	"github.com/rs/zerolog/log"
)

var falkorIndexes = []string{
	"CREATE INDEX FOR (u:User) ON (u.id)",
	"CREATE INDEX FOR (g:Goal) ON (g.id)",
	"CREATE INDEX FOR (h:Habit) ON (h.id)",
}

// FalkorRunner runs Cypher on a FalkorDB graph reached through a redigo pool.
// The pool is owned by the caller.
type FalkorRunner struct {
	pool  *redis.Pool
	graph string
}

// NewFalkorRunner creates a runner for the named graph.
func NewFalkorRunner(pool *redis.Pool, graphName string) *FalkorRunner {
	return &FalkorRunner{pool: pool, graph: graphName}
}

// Run implements Runner.
func (r *FalkorRunner) Run(ctx context.Context, cypher string, params map[string]any) ([]Record, error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("falkordb connection: %w", err)
	}
	defer conn.Close()

	g := falkordb.GraphNew(r.graph, conn)
	var res *falkordb.QueryResult
	if len(params) == 0 {
		res, err = g.Query(cypher)
	} else {
		res, err = g.ParameterizedQuery(cypher, falkorParams(params))
	}
	if err != nil {
		return nil, fmt.Errorf("falkordb query: %w", err)
	}

	var out []Record
	for res.Next() {
		rec := res.Record()
		keys := rec.Keys()
		vals := rec.Values()
		row := make(Record, len(keys))
		for i, k := range keys {
			if i < len(vals) {
				row[k] = vals[i]
			}
		}
		out = append(out, row)
	}
	return out, nil
}

// EnsureSchema implements Runner. FalkorDB has no IF NOT EXISTS for indexes,
// so an existing index is not an error.
func (r *FalkorRunner) EnsureSchema(ctx context.Context) error {
	for _, q := range falkorIndexes {
		if _, err := r.Run(ctx, q, nil); err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "already indexed") {
				continue
			}
			return err
		}
	}
	log.Debug().Str("graph", r.graph).Msg("FalkorDB indexes ensured")
	return nil
}

// Close implements Runner.
func (r *FalkorRunner) Close(context.Context) error { return nil }

// falkorParams converts values to the scalar kinds the query header encoder accepts.
func falkorParams(params map[string]any) map[string]interface{} {
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		switch t := v.(type) {
		case int64:
			out[k] = int(t)
		case int32:
			out[k] = int(t)
		case float32:
			out[k] = float64(t)
		case []string:
			list := make([]interface{}, len(t))
			for i, s := range t {
				list[i] = s
			}
			out[k] = list
		default:
			out[k] = v
		}
	}
	return out
}

var _ Runner = (*FalkorRunner)(nil)
