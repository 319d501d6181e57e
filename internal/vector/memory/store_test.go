package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/habitgraph/internal/vector"
)

func TestStore_CollectionLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.CollectionInfo(ctx, "c")
	require.ErrorIs(t, err, vector.ErrCollectionNotFound)

	require.NoError(t, s.CreateCollection(ctx, "c", 2))
	assert.Error(t, s.CreateCollection(ctx, "c", 2), "create is not idempotent")

	info, err := s.CollectionInfo(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 2, info.Dimensions)
	assert.Zero(t, info.Points)
}

func TestStore_SearchFiltersAndOrders(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.CreateCollection(ctx, "c", 2))

	require.NoError(t, s.Upsert(ctx, "c", []vector.Point{
		{ID: "a1", Vector: []float32{1, 0}, Payload: vector.Payload{EntryID: "a1", UserID: 1}},
		{ID: "a2", Vector: []float32{0.6, 0.8}, Payload: vector.Payload{EntryID: "a2", UserID: 1}},
		{ID: "b1", Vector: []float32{1, 0}, Payload: vector.Payload{EntryID: "b1", UserID: 2}},
	}))

	hits, err := s.Search(ctx, "c", []float32{1, 0}, 10, vector.Filter{UserID: 1})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a1", hits[0].ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Equal(t, "a2", hits[1].ID)
	assert.InDelta(t, 0.6, hits[1].Score, 1e-6)

	hits, err = s.Search(ctx, "c", []float32{1, 0}, 1, vector.Filter{UserID: 1})
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestStore_UpsertOverwritesAndDelete(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.CreateCollection(ctx, "c", 2))

	p := vector.Point{ID: "p", Vector: []float32{1, 0}, Payload: vector.Payload{EntryID: "e", UserID: 1}}
	require.NoError(t, s.Upsert(ctx, "c", []vector.Point{p}))
	p.Vector = []float32{0, 1}
	require.NoError(t, s.Upsert(ctx, "c", []vector.Point{p}))

	info, _ := s.CollectionInfo(ctx, "c")
	assert.Equal(t, int64(1), info.Points)

	require.NoError(t, s.Delete(ctx, "c", []string{"p"}))
	info, _ = s.CollectionInfo(ctx, "c")
	assert.Zero(t, info.Points)
}

func TestStore_RejectsWrongDimension(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.CreateCollection(ctx, "c", 3))
	err := s.Upsert(ctx, "c", []vector.Point{{ID: "p", Vector: []float32{1, 0}}})
	assert.Error(t, err)
}
