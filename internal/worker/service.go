// Package worker serves the habitgraph HTTP API.
package worker

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/habitgraph/internal/app"
	"github.com/thebtf/habitgraph/internal/core"
)

// Service configuration constants
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// MaxRequestBody bounds JSON request bodies.
	MaxRequestBody = 1 << 20
)

// Service is the HTTP front of the application context.
type Service struct {
	startTime time.Time
	app       *app.App
	core      *core.Service
	router    *chi.Mux
	server    *http.Server
	wg        sync.WaitGroup
}

// NewService creates the API service over an opened application context.
func NewService(a *app.App) *Service {
	svc := &Service{
		app:       a,
		core:      a.Core,
		router:    chi.NewRouter(),
		startTime: time.Now(),
	}
	svc.setupMiddleware()
	svc.setupRoutes()
	return svc
}

// Handler returns the router.
func (s *Service) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures HTTP middleware.
func (s *Service) setupMiddleware() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)
	s.router.Use(RequestID)
	s.router.Use(SecurityHeaders)
	s.router.Use(CORS(s.app.Config.AllowOrigins))
}

// setupRoutes configures HTTP routes.
func (s *Service) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/api/ready", s.handleReady)

	// The event stream is long-lived, so it sits outside the request timeout.
	s.router.With(UserID).Get("/api/events", s.handleEvents)

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(DefaultHTTPTimeout))
		r.Use(MaxBodySize(MaxRequestBody))
		r.Use(RequireJSONContentType)

		r.Post("/users", s.handleCreateUser)
		r.Get("/users", s.handleListUsers)

		r.Group(func(r chi.Router) {
			r.Use(UserID)
			r.Use(s.requireUser)

			r.Post("/habits", s.handleCreateHabit)
			r.Get("/habits", s.handleListHabits)
			r.Post("/habits/{id}/archive", s.handleArchiveHabit)

			r.Post("/goals", s.handleCreateGoal)
			r.Get("/goals", s.handleListGoals)
			r.Get("/goals/catalog", s.handleGoalCatalog)
			r.Post("/goals/catalog/{id}", s.handleSelectCatalogGoal)
			r.Delete("/goals/catalog/{id}", s.handleUnselectCatalogGoal)

			r.Post("/checkins", s.handleCreateCheckin)

			r.Get("/dashboard", s.handleDashboard)
			r.Get("/dashboard/summary", s.handleDashboardSummary)
			r.Get("/overview", s.handleOverview)

			r.Post("/diary", s.handleCreateDiary)
			r.Get("/diary", s.handleListDiary)
			r.Get("/diary/similar", s.handleSimilarDiary)
			r.Get("/diary/{id}", s.handleGetDiary)
			r.Put("/diary/{id}", s.handleUpdateDiary)
			r.Delete("/diary/{id}", s.handleDeleteDiary)

			r.Post("/social/friends", s.handleAddFriend)
			r.Get("/social/friends", s.handleListFriends)
			r.Get("/social/recommendations", s.handleRecommendations)
		})
	})
}

// Start starts the HTTP server in the background.
func (s *Service) Start(port int) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	log.Info().
		Int("port", port).
		Int("pid", os.Getpid()).
		Msg("HTTP server started")
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
// The application context is closed by the caller.
func (s *Service) Shutdown(ctx context.Context) error {
	var err error
	if s.server != nil {
		if err = s.server.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown error")
		}
	}
	s.wg.Wait()
	log.Info().Dur("uptime", time.Since(s.startTime)).Msg("HTTP service shutdown complete")
	return err
}
