// Package memory provides an in-process vector store for tests and single-node runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/thebtf/habitgraph/internal/embedding"
	"github.com/thebtf/habitgraph/internal/vector"
)

type collection struct {
	points     map[string]vector.Point
	dimensions int
}

// Store is an in-process vector.Store with exact cosine search.
type Store struct {
	collections map[string]*collection
	mu          sync.RWMutex
}

// New creates an empty store.
func New() *Store {
	return &Store{collections: make(map[string]*collection)}
}

// CollectionInfo implements vector.Store.
func (s *Store) CollectionInfo(_ context.Context, name string) (vector.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return vector.Info{}, vector.ErrCollectionNotFound
	}
	return vector.Info{Name: name, Dimensions: c.dimensions, Points: int64(len(c.points))}, nil
}

// CreateCollection implements vector.Store. Creating an existing collection fails.
func (s *Store) CreateCollection(_ context.Context, name string, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("invalid dimensions %d", dimensions)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; ok {
		return fmt.Errorf("collection %q already exists", name)
	}
	s.collections[name] = &collection{points: make(map[string]vector.Point), dimensions: dimensions}
	return nil
}

// Upsert implements vector.Store.
func (s *Store) Upsert(_ context.Context, name string, points []vector.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return vector.ErrCollectionNotFound
	}
	for _, p := range points {
		if len(p.Vector) != c.dimensions {
			return fmt.Errorf("vector size %d does not match collection size %d", len(p.Vector), c.dimensions)
		}
		vec := make([]float32, len(p.Vector))
		copy(vec, p.Vector)
		p.Vector = vec
		c.points[p.ID] = p
	}
	return nil
}

// Search implements vector.Store.
func (s *Store) Search(_ context.Context, name string, query []float32, limit int, filter vector.Filter) ([]vector.Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, vector.ErrCollectionNotFound
	}

	hits := make([]vector.Hit, 0, len(c.points))
	for _, p := range c.points {
		if p.Payload.UserID != filter.UserID {
			continue
		}
		hits = append(hits, vector.Hit{
			ID:      p.ID,
			Payload: p.Payload,
			Score:   embedding.Cosine(query, p.Vector),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Delete implements vector.Store.
func (s *Store) Delete(_ context.Context, name string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return vector.ErrCollectionNotFound
	}
	for _, id := range ids {
		delete(c.points, id)
	}
	return nil
}

var _ vector.Store = (*Store)(nil)
