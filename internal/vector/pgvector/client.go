// Package pgvector provides PostgreSQL+pgvector based vector storage for habitgraph.
//
// Each collection is a table named vec_<collection> with an hnsw cosine index.
// The vector column's type modifier carries the collection dimension.
package pgvector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	pgvec "github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thebtf/habitgraph/internal/vector"
)

// vectorRecord is the GORM model for a collection table row.
type vectorRecord struct {
	UpdatedAt time.Time    `gorm:"column:updated_at"`
	ID        string       `gorm:"primaryKey;column:id"`
	Payload   string       `gorm:"column:payload"`
	Embedding pgvec.Vector `gorm:"column:embedding"`
	UserID    int64        `gorm:"column:user_id"`
}

// Config holds configuration for the pgvector client.
type Config struct {
	DB *gorm.DB // PostgreSQL GORM connection (required)
}

// Client provides vector operations via PostgreSQL+pgvector.
type Client struct {
	db    *gorm.DB
	sqlDB *sql.DB
}

// NewClient creates a new pgvector client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.DB == nil {
		return nil, fmt.Errorf("DB is required")
	}

	sqlDB, err := cfg.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	return &Client{db: cfg.DB, sqlDB: sqlDB}, nil
}

// TableName returns the table backing a collection.
func TableName(collection string) string {
	var b strings.Builder
	b.WriteString("vec_")
	for _, r := range strings.ToLower(collection) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func quoted(collection string) string {
	return pgx.Identifier{TableName(collection)}.Sanitize()
}

// CollectionInfo implements vector.Store.
func (c *Client) CollectionInfo(ctx context.Context, name string) (vector.Info, error) {
	var dims int
	err := c.sqlDB.QueryRowContext(ctx, `
		SELECT a.atttypmod
		FROM pg_attribute a
		JOIN pg_class cl ON cl.oid = a.attrelid
		JOIN pg_namespace n ON n.oid = cl.relnamespace
		WHERE cl.relname = $1
		  AND n.nspname = current_schema()
		  AND a.attname = 'embedding'
		  AND NOT a.attisdropped`,
		TableName(name),
	).Scan(&dims)
	if errors.Is(err, sql.ErrNoRows) {
		return vector.Info{}, vector.ErrCollectionNotFound
	}
	if err != nil {
		return vector.Info{}, fmt.Errorf("probe collection %s: %w", name, err)
	}

	var points int64
	if err := c.sqlDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoted(name)).Scan(&points); err != nil {
		return vector.Info{}, fmt.Errorf("count collection %s: %w", name, err)
	}
	return vector.Info{Name: name, Dimensions: dims, Points: points}, nil
}

// CreateCollection implements vector.Store. Creating an existing collection fails.
func (c *Client) CreateCollection(ctx context.Context, name string, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("invalid dimensions %d", dimensions)
	}
	table := TableName(name)
	ident := quoted(name)

	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stmts := []string{
			`CREATE EXTENSION IF NOT EXISTS vector`,
			fmt.Sprintf(`CREATE TABLE %s (
				id uuid PRIMARY KEY,
				embedding vector(%d) NOT NULL,
				user_id bigint NOT NULL,
				payload jsonb NOT NULL DEFAULT '{}'::jsonb,
				updated_at timestamptz NOT NULL DEFAULT now()
			)`, ident, dimensions),
			fmt.Sprintf(`CREATE INDEX %s ON %s (user_id)`, pgx.Identifier{table + "_user_idx"}.Sanitize(), ident),
			fmt.Sprintf(`CREATE INDEX %s ON %s USING hnsw (embedding vector_cosine_ops)`,
				pgx.Identifier{table + "_embedding_idx"}.Sanitize(), ident),
		}
		for _, s := range stmts {
			if err := tx.Exec(s).Error; err != nil {
				return fmt.Errorf("create collection %s: %w", name, err)
			}
		}
		return nil
	})
}

// Upsert implements vector.Store.
func (c *Client) Upsert(ctx context.Context, collection string, points []vector.Point) error {
	if len(points) == 0 {
		return nil
	}

	now := time.Now().UTC()
	records := make([]vectorRecord, 0, len(points))
	for _, p := range points {
		payload, err := json.Marshal(p.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload %s: %w", p.ID, err)
		}
		records = append(records, vectorRecord{
			ID:        p.ID,
			Embedding: pgvec.NewVector(p.Vector),
			UserID:    p.Payload.UserID,
			Payload:   string(payload),
			UpdatedAt: now,
		})
	}

	// Upsert: INSERT ... ON CONFLICT (id) DO UPDATE SET ...
	return c.db.WithContext(ctx).
		Table(TableName(collection)).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"embedding", "user_id", "payload", "updated_at"}),
		}).
		Create(&records).Error
}

// Search implements vector.Store using cosine distance.
func (c *Client) Search(ctx context.Context, collection string, query []float32, limit int, filter vector.Filter) ([]vector.Hit, error) {
	if limit <= 0 {
		limit = vector.DefaultSearchLimit
	}

	sqlStr := fmt.Sprintf(`
		SELECT id::text, payload::text, embedding <=> $1 AS distance
		FROM %s
		WHERE user_id = $2
		ORDER BY distance
		LIMIT $3`,
		quoted(collection),
	)

	rows, err := c.sqlDB.QueryContext(ctx, sqlStr, pgvec.NewVector(query), filter.UserID, limit)
	if err != nil {
		return nil, fmt.Errorf("query vectors: %w", err)
	}
	defer rows.Close()

	var hits []vector.Hit
	for rows.Next() {
		var (
			id       string
			payload  string
			distance sql.NullFloat64
		)
		if err := rows.Scan(&id, &payload, &distance); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if !distance.Valid {
			continue
		}
		hit := vector.Hit{ID: id, Score: vector.DistanceToSimilarity(distance.Float64)}
		if err := json.Unmarshal([]byte(payload), &hit.Payload); err != nil {
			return nil, fmt.Errorf("decode payload %s: %w", id, err)
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// Delete implements vector.Store.
func (c *Client) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return c.db.WithContext(ctx).
		Table(TableName(collection)).
		Where("id IN ?", ids).
		Delete(&vectorRecord{}).Error
}

// IsConnected checks whether the PostgreSQL connection is alive.
func (c *Client) IsConnected(ctx context.Context) bool {
	return c.sqlDB.PingContext(ctx) == nil
}

// Compile-time check: Client must satisfy vector.Store.
var _ vector.Store = (*Client)(nil)
