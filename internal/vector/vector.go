// Package vector defines the vector store contract and the diary index built on it.
package vector

import (
	"context"
	"errors"
)

// ErrCollectionNotFound is returned by CollectionInfo for an absent collection.
var ErrCollectionNotFound = errors.New("vector collection not found")

// Info describes a provisioned collection.
type Info struct {
	Name       string `json:"name"`
	Dimensions int    `json:"dimensions"`
	Points     int64  `json:"points"`
}

// Payload is the metadata stored alongside each diary vector.
type Payload struct {
	Mood      *string  `json:"mood"`
	EntryID   string   `json:"entry_id"`
	CreatedAt string   `json:"created_at"`
	Tags      []string `json:"tags"`
	UserID    int64    `json:"user_id"`
}

// Point is a vector with its id and payload.
type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// Filter restricts a search. UserID is mandatory for diary search.
type Filter struct {
	UserID int64
}

// Hit is a search result. Score is cosine similarity in [-1, 1].
type Hit struct {
	ID      string
	Payload Payload
	Score   float64
}

// Store is a cosine-distance vector store organized in named collections.
// Implementations are safe for concurrent use.
type Store interface {
	CollectionInfo(ctx context.Context, name string) (Info, error)
	CreateCollection(ctx context.Context, name string, dimensions int) error
	Upsert(ctx context.Context, collection string, points []Point) error
	// Search returns up to limit hits matching filter, highest score first.
	Search(ctx context.Context, collection string, query []float32, limit int, filter Filter) ([]Hit, error)
	Delete(ctx context.Context, collection string, ids []string) error
}

// DistanceToSimilarity converts cosine distance to cosine similarity.
func DistanceToSimilarity(distance float64) float64 {
	return 1 - distance
}
