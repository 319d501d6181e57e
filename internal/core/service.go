// Package core implements the habitgraph use cases on top of the record store
// and the derived stores.
//
// Record store and document store writes are authoritative and their errors
// are returned. Everything downstream goes through the propagator and is
// best-effort. Reads that depend only on the graph return its errors; other
// derived reads degrade to empty or zero values.
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/habitgraph/internal/catalog"
	"github.com/thebtf/habitgraph/internal/db/gorm"
	"github.com/thebtf/habitgraph/internal/diary"
	"github.com/thebtf/habitgraph/internal/graph"
	"github.com/thebtf/habitgraph/internal/propagate"
	"github.com/thebtf/habitgraph/internal/streak"
	"github.com/thebtf/habitgraph/internal/vector"
)

// Input bounds.
const (
	MaxTitleLen     = 120
	MaxUsernameLen  = 64
	MaxDiaryTextLen = 10_000
)

// Error kinds. Match with errors.Is.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrInvalid     = errors.New("invalid input")
	ErrUnavailable = errors.New("unavailable")
)

// Error carries a kind and a message safe to show to clients.
type Error struct {
	Kind   error
	Detail string
}

func (e *Error) Error() string { return e.Detail }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Searcher finds a user's diary entries similar to a query.
type Searcher interface {
	Search(ctx context.Context, userID int64, query string, limit int) ([]vector.Match, error)
}

// Deps wires the service.
type Deps struct {
	Store      *gorm.Store
	Diary      diary.Store
	Index      Searcher
	Graph      graph.Mirror
	Streaks    *streak.Engine
	Propagator *propagate.Propagator
	// Catalog defaults to the embedded goal catalog.
	Catalog []graph.CatalogGoal
	// Now defaults to time.Now. "Today" is the UTC calendar day of Now.
	Now func() time.Time
}

// Service implements the use cases. It is safe for concurrent use.
type Service struct {
	users    *gorm.UserStore
	habits   *gorm.HabitStore
	goals    *gorm.GoalStore
	checkins *gorm.CheckinStore
	diary    diary.Store
	index    Searcher
	graph    graph.Mirror
	streaks  *streak.Engine
	prop     *propagate.Propagator
	catalog  []graph.CatalogGoal
	now      func() time.Time
}

// New creates the service.
func New(d Deps) *Service {
	s := &Service{
		users:    gorm.NewUserStore(d.Store),
		habits:   gorm.NewHabitStore(d.Store),
		goals:    gorm.NewGoalStore(d.Store),
		checkins: gorm.NewCheckinStore(d.Store),
		diary:    d.Diary,
		index:    d.Index,
		graph:    d.Graph,
		streaks:  d.Streaks,
		prop:     d.Propagator,
		catalog:  d.Catalog,
		now:      d.Now,
	}
	if s.catalog == nil {
		s.catalog = catalog.Entries()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.prop == nil {
		s.prop = propagate.New(propagate.Deps{})
	}
	if s.streaks == nil {
		s.streaks = streak.NewEngine(s.checkins, nil, streak.WithClock(s.now))
	}
	return s
}

// Today returns the current UTC calendar day.
func (s *Service) Today() time.Time {
	return gorm.Day(s.now().UTC())
}

// recordErr translates record store errors to service errors.
func recordErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrNotFound), errors.Is(err, diary.ErrNotFound):
		return newError(ErrNotFound, "%s not found", what)
	case errors.Is(err, gorm.ErrConflict):
		return newError(ErrConflict, "%s already exists", what)
	}
	return fmt.Errorf("%s: %w", strings.ToLower(what), err)
}

func validateTitle(field, v string) (string, error) {
	v = strings.TrimSpace(v)
	n := utf8.RuneCountInString(v)
	if n == 0 || n > MaxTitleLen {
		return "", newError(ErrInvalid, "%s must be 1..%d characters", field, MaxTitleLen)
	}
	return v, nil
}

// CreateUser registers a user by username.
func (s *Service) CreateUser(ctx context.Context, username string) (*gorm.User, error) {
	username = strings.TrimSpace(username)
	if n := utf8.RuneCountInString(username); n == 0 || n > MaxUsernameLen {
		return nil, newError(ErrInvalid, "username must be 1..%d characters", MaxUsernameLen)
	}
	user, err := s.users.CreateUser(ctx, username)
	if errors.Is(err, gorm.ErrConflict) {
		return nil, newError(ErrConflict, "Username already taken")
	}
	if err != nil {
		return nil, recordErr(err, "User")
	}
	s.prop.UserCreated(ctx, user)
	return user, nil
}

// ListUsers returns every user ordered by id.
func (s *Service) ListUsers(ctx context.Context) ([]gorm.User, error) {
	users, err := s.users.ListUsers(ctx)
	return users, recordErr(err, "Users")
}

// CurrentUser returns the user for a header-derived id, creating user_<id> on first sight.
func (s *Service) CurrentUser(ctx context.Context, userID int64) (*gorm.User, error) {
	if userID <= 0 {
		return nil, newError(ErrInvalid, "user id must be positive")
	}
	user, created, err := s.users.EnsureUser(ctx, userID)
	if err != nil {
		return nil, recordErr(err, "User")
	}
	if created {
		log.Info().Int64("user_id", user.ID).Msg("Created user on first request")
		s.prop.UserCreated(ctx, user)
	}
	return user, nil
}
