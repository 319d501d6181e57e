// Package app builds the process context: every store client is created once
// in Open, injected into the use-case service and torn down in Close.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	gormlib "gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/thebtf/habitgraph/internal/cache"
	"github.com/thebtf/habitgraph/internal/config"
	"github.com/thebtf/habitgraph/internal/core"
	"github.com/thebtf/habitgraph/internal/db/gorm"
	"github.com/thebtf/habitgraph/internal/diary"
	"github.com/thebtf/habitgraph/internal/events"
	"github.com/thebtf/habitgraph/internal/graph"
	"github.com/thebtf/habitgraph/internal/propagate"
	"github.com/thebtf/habitgraph/internal/streak"
	"github.com/thebtf/habitgraph/internal/vector"
	"github.com/thebtf/habitgraph/internal/vector/memory"
	"github.com/thebtf/habitgraph/internal/vector/pgvector"
	"github.com/thebtf/habitgraph/internal/worker/sse"
)

// catalogTimeout bounds the best-effort catalog write during Open.
const catalogTimeout = 5 * time.Second

// Option customizes Open.
type Option func(*options)

type options struct {
	dialector gormlib.Dialector
	now       func() time.Time
}

// WithDialector replaces the Postgres record store connection (tests use SQLite).
func WithDialector(d gormlib.Dialector) Option {
	return func(o *options) { o.dialector = d }
}

// WithClock sets the clock shared by the streak engine and the service.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// App owns the store clients for the lifetime of the process.
type App struct {
	Config      *config.Config
	Store       *gorm.Store
	Cache       cache.Store
	Graph       graph.Mirror
	Index       *vector.DiaryIndex
	Diary       diary.Store
	Bus         *events.AMQP
	Broadcaster *sse.Broadcaster
	Streaks     *streak.Engine
	Core        *core.Service

	closers []closer
}

type closer struct {
	fn   func(context.Context) error
	name string
}

func (a *App) onClose(name string, fn func(context.Context) error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Open builds every client. Only the record store is dialed eagerly; the
// derived stores connect on first use so the API starts while they are down.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (_ *App, err error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, Broadcaster: sse.NewBroadcaster()}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
		}
	}()

	a.Store, err = gorm.NewStore(gorm.Config{
		Dialector: o.dialector,
		DSN:       cfg.PostgresDSN,
		MaxConns:  cfg.MaxConns,
		LogLevel:  logger.Silent,
	})
	if err != nil {
		return nil, fmt.Errorf("record store: %w", err)
	}
	a.onClose("record store", func(context.Context) error { return a.Store.Close() })

	if err := a.openCache(); err != nil {
		return nil, err
	}
	if err := a.openGraph(); err != nil {
		return nil, err
	}
	if err := a.openVector(); err != nil {
		return nil, err
	}
	if err := a.openDiary(ctx); err != nil {
		return nil, err
	}

	publishers := events.Fanout{events.Broadcast{Streamer: a.Broadcaster}}
	if cfg.RabbitMQURL != "" {
		a.Bus = events.NewAMQP(cfg.RabbitMQURL)
		publishers = append(publishers, a.Bus)
		a.onClose("event bus", func(context.Context) error { return a.Bus.Close() })
	}

	a.Streaks = streak.NewEngine(gorm.NewCheckinStore(a.Store), a.Cache, streak.WithClock(o.now))

	pdeps := propagate.Deps{
		Graph:   a.Graph,
		Events:  publishers,
		Streaks: a.Streaks,
		Hook:    propagate.NewMetricsHook(),
	}
	if a.Index != nil {
		pdeps.Index = a.Index
	}
	cdeps := core.Deps{
		Store:      a.Store,
		Diary:      a.Diary,
		Graph:      a.Graph,
		Streaks:    a.Streaks,
		Propagator: propagate.New(pdeps),
		Now:        o.now,
	}
	if a.Index != nil {
		cdeps.Index = a.Index
	}
	a.Core = core.New(cdeps)

	cctx, cancel := context.WithTimeout(ctx, catalogTimeout)
	defer cancel()
	if err := a.Core.EnsureCatalog(cctx); err != nil {
		log.Warn().Err(err).Msg("Goal catalog not written to graph, will be served from the embedded copy")
	}

	log.Info().
		Str("cache", cfg.CacheBackend).
		Str("graph", cfg.GraphBackend).
		Str("vector", cfg.VectorBackend).
		Str("diary", cfg.DiaryBackend).
		Bool("events", a.Bus != nil).
		Msg("Application context ready")
	return a, nil
}

func (a *App) openCache() error {
	switch a.Config.CacheBackend {
	case config.BackendRedis:
		pool := cache.NewPool(a.Config.RedisURL)
		r := cache.NewRedis(pool)
		a.Cache = r
		a.onClose("cache", func(context.Context) error { return r.Close() })
	case config.BackendMemory, "":
		a.Cache = cache.NewMemory()
	default:
		return fmt.Errorf("unknown cache backend %q", a.Config.CacheBackend)
	}
	return nil
}

func (a *App) openGraph() error {
	switch a.Config.GraphBackend {
	case config.BackendFalkorDB:
		pool := cache.NewPool(a.Config.FalkorDBURL)
		a.onClose("falkordb pool", func(context.Context) error { return pool.Close() })
		a.Graph = graph.NewCypherMirror(graph.NewFalkorRunner(pool, a.Config.GraphName))
	case config.BackendNeo4j:
		runner, err := graph.NewNeo4jRunner(graph.Neo4jConfig{
			URI:      a.Config.Neo4jURI,
			User:     a.Config.Neo4jUser,
			Password: a.Config.Neo4jPassword,
			Database: a.Config.Neo4jDatabase,
		})
		if err != nil {
			return fmt.Errorf("graph mirror: %w", err)
		}
		a.Graph = graph.NewCypherMirror(runner)
	case config.BackendMemory, "":
		a.Graph = graph.NewMemory()
	default:
		return fmt.Errorf("unknown graph backend %q", a.Config.GraphBackend)
	}
	a.onClose("graph mirror", a.Graph.Close)
	return nil
}

func (a *App) openVector() error {
	var store vector.Store
	switch a.Config.VectorBackend {
	case config.BackendPgvector:
		db := a.Store.GetDB()
		if a.Config.VectorDSN != "" && a.Config.VectorDSN != a.Config.PostgresDSN {
			var err error
			db, err = gormlib.Open(postgres.Open(a.Config.VectorDSN), &gormlib.Config{
				Logger: logger.Default.LogMode(logger.Silent),
			})
			if err != nil {
				return fmt.Errorf("vector store: %w", err)
			}
			if sqlDB, err := db.DB(); err == nil {
				a.onClose("vector store", func(context.Context) error { return sqlDB.Close() })
			}
		}
		client, err := pgvector.NewClient(pgvector.Config{DB: db})
		if err != nil {
			return fmt.Errorf("vector store: %w", err)
		}
		store = client
	case config.BackendMemory, "":
		store = memory.New()
	default:
		return fmt.Errorf("unknown vector backend %q", a.Config.VectorBackend)
	}
	a.Index = vector.NewDiaryIndex(store, a.Config.EffectiveVectorCollection(), a.Config.FallbackVectorCollection())
	return nil
}

func (a *App) openDiary(ctx context.Context) error {
	switch a.Config.DiaryBackend {
	case config.BackendMongo:
		m, err := diary.NewMongo(ctx, diary.MongoConfig{URI: a.Config.MongoURI, Database: a.Config.MongoDB})
		if err != nil {
			return fmt.Errorf("diary store: %w", err)
		}
		a.Diary = m
		if err := m.EnsureIndexes(ctx); err != nil {
			log.Warn().Err(err).Msg("Diary indexes not created")
		}
	case config.BackendMemory, "":
		a.Diary = diary.NewMemory()
	default:
		return fmt.Errorf("unknown diary backend %q", a.Config.DiaryBackend)
	}
	a.onClose("diary store", a.Diary.Close)
	return nil
}

// Close releases clients in reverse order of creation. Every client is
// closed even if an earlier one fails.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(ctx); err != nil {
			log.Warn().Err(err).Str("client", c.name).Msg("Close failed")
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Store status values reported by Health.
const (
	StatusOK          = "ok"
	StatusUnavailable = "unavailable"
	StatusDisabled    = "disabled"
)

// Health is the readiness report.
type Health struct {
	Stores map[string]string `json:"stores"`
	Status string            `json:"status"`
	Ready  bool              `json:"ready"`
}

type pinger interface {
	Ping(ctx context.Context) error
}

func status(err error) string {
	if err != nil {
		return StatusUnavailable
	}
	return StatusOK
}

// Health probes every store. The process is ready when the record store is.
func (a *App) Health(ctx context.Context) *Health {
	h := &Health{Stores: make(map[string]string, 6)}

	h.Stores["record"] = StatusUnavailable
	if info := a.Store.HealthCheck(ctx); info.Status == "healthy" {
		h.Stores["record"] = StatusOK
	}

	h.Stores["cache"] = StatusOK
	if p, ok := a.Cache.(pinger); ok {
		h.Stores["cache"] = status(p.Ping(ctx))
	}
	h.Stores["graph"] = status(a.Graph.EnsureReady(ctx))
	h.Stores["vector"] = status(a.Index.EnsureReady(ctx))

	h.Stores["diary"] = StatusOK
	if p, ok := a.Diary.(pinger); ok {
		h.Stores["diary"] = status(p.Ping(ctx))
	}

	h.Stores["events"] = StatusDisabled
	if a.Bus != nil {
		h.Stores["events"] = StatusOK
	}

	h.Ready = h.Stores["record"] == StatusOK
	h.Status = StatusOK
	for _, s := range h.Stores {
		if s == StatusUnavailable {
			h.Status = "degraded"
		}
	}
	if !h.Ready {
		h.Status = StatusUnavailable
	}
	return h
}
