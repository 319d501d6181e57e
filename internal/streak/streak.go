// Package streak computes consecutive-day checkin streaks with a cache-aside policy.
package streak

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"golang.org/x/sync/singleflight"

	"github.com/thebtf/habitgraph/internal/cache"
)

const (
	// TTL is how long a computed streak stays cached.
	TTL = 7 * 24 * time.Hour

	// HistoryLimit is the number of most recent checkin days scanned on recompute.
	// Streaks longer than this are reported as HistoryLimit.
	HistoryLimit = 400
)

// DateSource returns up to limit checkin days for a habit, most recent first.
type DateSource interface {
	RecentDates(ctx context.Context, userID, habitID int64, limit int) ([]time.Time, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the clock used to determine "today".
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine serves streak values from the cache and recomputes them from the
// record store on a miss. It is safe for concurrent use.
type Engine struct {
	dates   DateSource
	cache   cache.Store
	now     func() time.Time
	lookups metric.Int64Counter
	group   singleflight.Group
}

// NewEngine creates a streak engine. store may be nil, in which case every
// read recomputes.
func NewEngine(dates DateSource, store cache.Store, opts ...Option) *Engine {
	e := &Engine{
		dates: dates,
		cache: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	counter, err := otel.Meter("github.com/thebtf/habitgraph/internal/streak").Int64Counter(
		"habitgraph.streak.cache",
		metric.WithDescription("Streak cache lookups by result"),
	)
	if err != nil {
		counter = noop.Int64Counter{}
	}
	e.lookups = counter
	return e
}

// Key returns the cache key for a (user, habit) streak.
func Key(userID, habitID int64) string {
	return fmt.Sprintf("streak:%d:%d", userID, habitID)
}

// Today returns the engine's current calendar day in UTC.
func (e *Engine) Today() time.Time {
	return day(e.now())
}

// Get returns the current streak. It never fails: cache errors fall back to
// recomputation and recomputation errors yield 0.
func (e *Engine) Get(ctx context.Context, userID, habitID int64) int {
	key := Key(userID, habitID)

	if e.cache != nil {
		raw, ok, err := e.cache.Get(ctx, key)
		switch {
		case err != nil:
			e.record(ctx, "error")
			log.Debug().Err(err).Str("key", key).Msg("Streak cache read failed, recomputing")
		case ok:
			if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
				e.record(ctx, "hit")
				return n
			}
			e.record(ctx, "error")
			log.Warn().Str("key", key).Str("value", raw).Msg("Malformed streak cache value, recomputing")
		default:
			e.record(ctx, "miss")
		}
	}

	// Concurrent misses for the same key share one recomputation.
	v, _, _ := e.group.Do(key, func() (interface{}, error) {
		bg := context.WithoutCancel(ctx)
		n, err := e.Compute(bg, userID, habitID, e.Today())
		if err != nil {
			log.Warn().Err(err).Int64("user_id", userID).Int64("habit_id", habitID).Msg("Streak recompute failed")
			return 0, nil
		}
		e.store(bg, key, n)
		return n, nil
	})
	return v.(int)
}

// ComputeAndStore recomputes the streak ending at endDate and refreshes the
// cache. The cache is never consulted. A failed cache write is logged only.
func (e *Engine) ComputeAndStore(ctx context.Context, userID, habitID int64, endDate time.Time) (int, error) {
	n, err := e.Compute(ctx, userID, habitID, endDate)
	if err != nil {
		return 0, err
	}
	e.store(ctx, Key(userID, habitID), n)
	return n, nil
}

// Compute counts consecutive checkin days walking back from endDate.
func (e *Engine) Compute(ctx context.Context, userID, habitID int64, endDate time.Time) (int, error) {
	dates, err := e.dates.RecentDates(ctx, userID, habitID, HistoryLimit)
	if err != nil {
		return 0, fmt.Errorf("load checkin dates: %w", err)
	}
	return Count(dates, endDate), nil
}

// Count returns the number of consecutive days ending at endDate present in dates.
func Count(dates []time.Time, endDate time.Time) int {
	seen := make(map[time.Time]struct{}, len(dates))
	for _, d := range dates {
		seen[day(d)] = struct{}{}
	}

	n := 0
	for d := day(endDate); ; d = d.AddDate(0, 0, -1) {
		if _, ok := seen[d]; !ok {
			return n
		}
		n++
	}
}

// Invalidate drops the cached streak so the next Get recomputes.
func (e *Engine) Invalidate(ctx context.Context, userID, habitID int64) error {
	if e.cache == nil {
		return nil
	}
	return e.cache.Delete(ctx, Key(userID, habitID))
}

func (e *Engine) store(ctx context.Context, key string, n int) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Set(ctx, key, strconv.Itoa(n), TTL); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to cache streak")
	}
}

func (e *Engine) record(ctx context.Context, result string) {
	e.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
