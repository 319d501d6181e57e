package streak

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/habitgraph/internal/cache"
)

var today = time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

// fakeDates serves checkin days most recent first, honoring the limit.
type fakeDates struct {
	err   error
	days  []time.Time
	calls atomic.Int32
}

func (f *fakeDates) RecentDates(_ context.Context, _, _ int64, limit int) ([]time.Time, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.days) > limit {
		return f.days[:limit], nil
	}
	return f.days, nil
}

// consecutive returns n days ending at end, most recent first.
func consecutive(end time.Time, n int) []time.Time {
	out := make([]time.Time, n)
	for i := 0; i < n; i++ {
		out[i] = end.AddDate(0, 0, -i)
	}
	return out
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("cache down")
}
func (failingCache) Set(context.Context, string, string, time.Duration) error {
	return errors.New("cache down")
}
func (failingCache) Delete(context.Context, string) error { return errors.New("cache down") }

func newEngine(dates DateSource, store cache.Store) *Engine {
	return NewEngine(dates, store, WithClock(func() time.Time { return today.Add(13 * time.Hour) }))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "streak:1:7", Key(1, 7))
}

func TestCount(t *testing.T) {
	tests := []struct {
		name string
		days []time.Time
		want int
	}{
		{"empty", nil, 0},
		{"today only", consecutive(today, 1), 1},
		{"five consecutive", consecutive(today, 5), 5},
		{"not checked in today", consecutive(today.AddDate(0, 0, -1), 3), 0},
		{
			"gap three days back",
			append(consecutive(today, 3), consecutive(today.AddDate(0, 0, -4), 10)...),
			3,
		},
		{"duplicates collapse", append(consecutive(today, 2), today), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Count(tt.days, today))
		})
	}
}

func TestEngine_Get_ConsecutiveLengths(t *testing.T) {
	for n := 0; n <= 30; n++ {
		src := &fakeDates{days: consecutive(today, n)}
		e := newEngine(src, cache.NewMemory())
		assert.Equal(t, n, e.Get(context.Background(), 1, 7), "n=%d", n)
	}
}

func TestEngine_Get_CapsAtHistoryLimit(t *testing.T) {
	src := &fakeDates{days: consecutive(today, HistoryLimit+1)}
	e := newEngine(src, cache.NewMemory())

	got := e.Get(context.Background(), 1, 7)
	assert.LessOrEqual(t, got, HistoryLimit)
	assert.Equal(t, HistoryLimit, got, "a 401-day streak is undercounted to the scan limit")
}

func TestEngine_Get_CachesWithTTL(t *testing.T) {
	src := &fakeDates{days: consecutive(today, 5)}
	mem := cache.NewMemory()
	e := newEngine(src, mem)
	ctx := context.Background()

	assert.Equal(t, 5, e.Get(ctx, 1, 7))
	assert.Equal(t, 5, e.Get(ctx, 1, 7))
	assert.Equal(t, int32(1), src.calls.Load(), "second read is a cache hit")

	raw, ok, err := mem.Get(ctx, "streak:1:7")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "5", raw)

	ttl, ok := mem.TTL("streak:1:7")
	require.True(t, ok)
	assert.InDelta(t, TTL.Seconds(), ttl.Seconds(), 1)
}

func TestEngine_Get_HitIsNotRecomputed(t *testing.T) {
	src := &fakeDates{days: consecutive(today, 5)}
	mem := cache.NewMemory()
	require.NoError(t, mem.Set(context.Background(), Key(1, 7), "42", TTL))

	e := newEngine(src, mem)
	assert.Equal(t, 42, e.Get(context.Background(), 1, 7))
	assert.Zero(t, src.calls.Load())
}

func TestEngine_Get_MalformedCacheValueRecomputes(t *testing.T) {
	src := &fakeDates{days: consecutive(today, 2)}
	mem := cache.NewMemory()
	require.NoError(t, mem.Set(context.Background(), Key(1, 7), "garbage", TTL))

	e := newEngine(src, mem)
	assert.Equal(t, 2, e.Get(context.Background(), 1, 7))
}

func TestEngine_Get_CacheUnavailableStillComputes(t *testing.T) {
	src := &fakeDates{days: consecutive(today, 4)}
	e := newEngine(src, failingCache{})
	assert.Equal(t, 4, e.Get(context.Background(), 1, 7))
	assert.Equal(t, 4, e.Get(context.Background(), 1, 7))
}

func TestEngine_Get_NilCache(t *testing.T) {
	e := newEngine(&fakeDates{days: consecutive(today, 3)}, nil)
	assert.Equal(t, 3, e.Get(context.Background(), 1, 7))
	assert.NoError(t, e.Invalidate(context.Background(), 1, 7))
}

func TestEngine_Get_RecordStoreDownYieldsZero(t *testing.T) {
	src := &fakeDates{err: errors.New("db down")}
	mem := cache.NewMemory()
	e := newEngine(src, mem)

	assert.Equal(t, 0, e.Get(context.Background(), 1, 7))
	_, ok, _ := mem.Get(context.Background(), Key(1, 7))
	assert.False(t, ok, "failed recompute is not cached")
}

func TestEngine_Get_Idempotent(t *testing.T) {
	src := &fakeDates{days: consecutive(today, 6)}
	mem := cache.NewMemory()
	e := newEngine(src, mem)
	ctx := context.Background()

	first := e.Get(ctx, 1, 7)
	second := e.Get(ctx, 1, 7)
	require.NoError(t, mem.Delete(ctx, Key(1, 7)))
	third := e.Get(ctx, 1, 7)

	assert.Equal(t, first, second)
	assert.Equal(t, first, third)
}

func TestEngine_Get_ConcurrentMisses(t *testing.T) {
	src := &fakeDates{days: consecutive(today, 9)}
	e := newEngine(src, cache.NewMemory())

	var wg sync.WaitGroup
	results := make([]int, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = e.Get(context.Background(), 1, 7)
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, 9, r)
	}
}

func TestEngine_ComputeAndStore_IgnoresCache(t *testing.T) {
	src := &fakeDates{days: consecutive(today, 3)}
	mem := cache.NewMemory()
	ctx := context.Background()
	require.NoError(t, mem.Set(ctx, Key(1, 7), "99", TTL))

	e := newEngine(src, mem)
	n, err := e.ComputeAndStore(ctx, 1, 7, today)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	raw, _, _ := mem.Get(ctx, Key(1, 7))
	assert.Equal(t, "3", raw)
}

func TestEngine_ComputeAndStore_PropagatesRecordStoreError(t *testing.T) {
	e := newEngine(&fakeDates{err: errors.New("db down")}, cache.NewMemory())
	_, err := e.ComputeAndStore(context.Background(), 1, 7, today)
	assert.Error(t, err)
}

func TestEngine_Invalidate(t *testing.T) {
	src := &fakeDates{days: consecutive(today, 2)}
	mem := cache.NewMemory()
	e := newEngine(src, mem)
	ctx := context.Background()

	assert.Equal(t, 2, e.Get(ctx, 1, 7))
	src.days = consecutive(today, 3)
	assert.Equal(t, 2, e.Get(ctx, 1, 7), "stale until invalidated")

	require.NoError(t, e.Invalidate(ctx, 1, 7))
	assert.Equal(t, 3, e.Get(ctx, 1, 7))
}
