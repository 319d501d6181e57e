package core

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm/logger"

	_ "modernc.org/sqlite"

	"github.com/thebtf/habitgraph/internal/cache"
	"github.com/thebtf/habitgraph/internal/db/gorm"
	"github.com/thebtf/habitgraph/internal/diary"
	"github.com/thebtf/habitgraph/internal/events"
	"github.com/thebtf/habitgraph/internal/graph"
	"github.com/thebtf/habitgraph/internal/propagate"
	"github.com/thebtf/habitgraph/internal/streak"
	"github.com/thebtf/habitgraph/internal/vector"
	"github.com/thebtf/habitgraph/internal/vector/memory"
)

// fixedNow is noon on 2024-01-05 UTC.
var fixedNow = time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	svc    *Service
	store  *gorm.Store
	cache  *cache.Memory
	graph  graph.Mirror
	diary  *diary.Memory
	events *events.Recorder
	index  *vector.DiaryIndex
}

type envOption func(*Deps)

func withGraph(g graph.Mirror) envOption { return func(d *Deps) { d.Graph = g } }

func withSearcher(s Searcher) envOption { return func(d *Deps) { d.Index = s } }

func withClock(now func() time.Time) envOption { return func(d *Deps) { d.Now = now } }

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "core.db")+"?_pragma=busy_timeout(5000)")
	require.NoError(t, err)
	store, err := gorm.NewStore(gorm.Config{
		Dialector: sqlite.New(sqlite.Config{DriverName: "sqlite", Conn: sqlDB}),
		MaxConns:  1,
		LogLevel:  logger.Silent,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	now := func() time.Time { return fixedNow }
	env := &testEnv{
		store:  store,
		cache:  cache.NewMemory(),
		diary:  diary.NewMemory(),
		events: &events.Recorder{},
		index:  vector.NewDiaryIndex(memory.New(), "diary_entries", ""),
	}
	deps := Deps{
		Store: store,
		Diary: env.diary,
		Index: env.index,
		Graph: graph.NewMemory(),
		Now:   now,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	env.graph = deps.Graph

	engine := streak.NewEngine(gorm.NewCheckinStore(store), env.cache, streak.WithClock(deps.Now))
	deps.Streaks = engine
	var indexer propagate.Indexer
	if idx, ok := deps.Index.(propagate.Indexer); ok {
		indexer = idx
	}
	deps.Propagator = propagate.New(propagate.Deps{
		Graph:   deps.Graph,
		Index:   indexer,
		Events:  env.events,
		Streaks: engine,
	})
	env.svc = New(deps)
	return env
}

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// downGraph fails the reads and the authoritative writes; everything else
// goes to the embedded mirror.
type downGraph struct{ graph.Mirror }

func newDownGraph() downGraph { return downGraph{graph.NewMemory()} }

var errGraphDown = errors.New("graph down")

func (downGraph) AddFriend(context.Context, int64, int64) error { return errGraphDown }

func (downGraph) ListFriends(context.Context, int64) ([]graph.Friend, error) {
	return nil, errGraphDown
}

func (downGraph) RecommendUsers(context.Context, int64, int) ([]graph.Recommendation, error) {
	return nil, errGraphDown
}

func (downGraph) ListGoalCatalog(context.Context) ([]graph.CatalogGoal, error) {
	return nil, errGraphDown
}

func (downGraph) LinkUserGoal(context.Context, int64, graph.GoalRef) error { return errGraphDown }

// downSearcher fails every search.
type downSearcher struct{}

func (downSearcher) Search(context.Context, int64, string, int) ([]vector.Match, error) {
	return nil, errors.New("vector store down")
}
