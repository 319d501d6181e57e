package vector_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/habitgraph/internal/embedding"
	"github.com/thebtf/habitgraph/internal/vector"
	"github.com/thebtf/habitgraph/internal/vector/memory"
)

// flakyStore wraps a store and can fail collection creation or probes.
type flakyStore struct {
	vector.Store
	createErr error
	probeErr  error
	creates   atomic.Int32
}

func (f *flakyStore) CollectionInfo(ctx context.Context, name string) (vector.Info, error) {
	if f.probeErr != nil {
		return vector.Info{}, f.probeErr
	}
	return f.Store.CollectionInfo(ctx, name)
}

func (f *flakyStore) CreateCollection(ctx context.Context, name string, dims int) error {
	f.creates.Add(1)
	if f.createErr != nil {
		return f.createErr
	}
	return f.Store.CreateCollection(ctx, name, dims)
}

func entry(id string, user int64, text string) vector.Entry {
	return vector.Entry{ID: id, UserID: user, Text: text, CreatedAt: time.Now()}
}

func TestPointID_StableUUIDv5(t *testing.T) {
	id := vector.PointID("65a1f0c2e4b0a1b2c3d4e5f6")
	assert.Equal(t, id, vector.PointID("65a1f0c2e4b0a1b2c3d4e5f6"))
	assert.NotEqual(t, id, vector.PointID("other"))

	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(5), parsed.Version())
	assert.Equal(t, uuid.NewSHA1(uuid.NameSpaceURL, []byte("habitgraph:diary:65a1f0c2e4b0a1b2c3d4e5f6")), parsed)
}

func TestDiaryIndex_EnsureReady_CreatesPrimary(t *testing.T) {
	store := memory.New()
	idx := vector.NewDiaryIndex(store, "diary_entries", "")
	ctx := context.Background()

	require.NoError(t, idx.EnsureReady(ctx))
	info, ok := idx.Collection()
	require.True(t, ok)
	assert.Equal(t, "diary_entries", info.Name)
	assert.Equal(t, embedding.Dimensions, info.Dimensions)

	got, err := store.CollectionInfo(ctx, "diary_entries")
	require.NoError(t, err)
	assert.Equal(t, embedding.Dimensions, got.Dimensions)
}

func TestDiaryIndex_EnsureReady_ReusesExistingDimension(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.CreateCollection(ctx, "diary_entries", 32))

	idx := vector.NewDiaryIndex(store, "diary_entries", "")
	require.NoError(t, idx.Upsert(ctx, entry("e1", 1, "morning run")))

	info, _ := idx.Collection()
	assert.Equal(t, 32, info.Dimensions, "embedding follows the existing collection size")
}

func TestDiaryIndex_EnsureReady_FallsBackOnCreateFailure(t *testing.T) {
	base := memory.New()
	ctx := context.Background()
	require.NoError(t, base.CreateCollection(ctx, "diary_entries", embedding.Dimensions))

	store := &flakyStore{Store: base, createErr: errors.New("permission denied")}
	idx := vector.NewDiaryIndex(store, "tenant_diary_entries", "diary_entries")

	require.NoError(t, idx.EnsureReady(ctx))
	info, _ := idx.Collection()
	assert.Equal(t, "diary_entries", info.Name)
}

func TestDiaryIndex_EnsureReady_ErrorsAndRetries(t *testing.T) {
	store := &flakyStore{Store: memory.New(), createErr: errors.New("unreachable")}
	idx := vector.NewDiaryIndex(store, "diary_entries", "missing")
	ctx := context.Background()

	require.Error(t, idx.EnsureReady(ctx))
	_, ok := idx.Collection()
	assert.False(t, ok)

	store.createErr = nil
	require.NoError(t, idx.EnsureReady(ctx), "a failed attempt is retried")
	require.NoError(t, idx.EnsureReady(ctx))
	assert.Equal(t, int32(2), store.creates.Load())
}

func TestDiaryIndex_EnsureReady_Concurrent(t *testing.T) {
	store := &flakyStore{Store: memory.New()}
	idx := vector.NewDiaryIndex(store, "diary_entries", "")

	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = idx.EnsureReady(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), store.creates.Load(), "concurrent first use converges on one collection")
}

func TestDiaryIndex_SearchIsolation(t *testing.T) {
	idx := vector.NewDiaryIndex(memory.New(), "diary_entries", "")
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, entry("a1", 1, "went running in the park")))
	require.NoError(t, idx.Upsert(ctx, entry("a2", 1, "cooked pasta for dinner")))
	require.NoError(t, idx.Upsert(ctx, entry("b1", 2, "went running in the park")))

	matches, err := idx.Search(ctx, 1, "running in the park", 10)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	for _, m := range matches {
		assert.NotEqual(t, "b1", m.EntryID, "another user's entry leaked")
	}
	assert.Equal(t, "a1", matches[0].EntryID)

	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Score, matches[i].Score)
	}
	for _, m := range matches {
		assert.GreaterOrEqual(t, m.Score, -1.0)
		assert.LessOrEqual(t, m.Score, 1.0+1e-9)
	}
}

func TestDiaryIndex_UpsertOverwritesInPlace(t *testing.T) {
	base := memory.New()
	idx := vector.NewDiaryIndex(base, "diary_entries", "")
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, entry("e1", 1, "cooked pasta")))
	require.NoError(t, idx.Upsert(ctx, entry("e1", 1, "went swimming")))

	info, err := base.CollectionInfo(ctx, "diary_entries")
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.Points)

	matches, err := idx.Search(ctx, 1, "went swimming", 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-5)
}

func TestDiaryIndex_Delete(t *testing.T) {
	idx := vector.NewDiaryIndex(memory.New(), "diary_entries", "")
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, entry("e1", 1, "yoga session")))
	require.NoError(t, idx.Delete(ctx, "e1"))

	matches, err := idx.Search(ctx, 1, "yoga session", 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestDiaryIndex_SearchEmptyQuery(t *testing.T) {
	idx := vector.NewDiaryIndex(memory.New(), "diary_entries", "")
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, entry("e1", 1, "yoga")))

	matches, err := idx.Search(ctx, 1, "  ?! ", 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestDiaryIndex_SearchUnavailable(t *testing.T) {
	store := &flakyStore{Store: memory.New(), createErr: errors.New("down"), probeErr: errors.New("down")}
	idx := vector.NewDiaryIndex(store, "diary_entries", "")

	_, err := idx.Search(context.Background(), 1, "anything", 5)
	assert.Error(t, err)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, vector.DefaultSearchLimit, vector.ClampLimit(0))
	assert.Equal(t, vector.DefaultSearchLimit, vector.ClampLimit(-3))
	assert.Equal(t, 7, vector.ClampLimit(7))
	assert.Equal(t, vector.MaxSearchLimit, vector.ClampLimit(500))
}
