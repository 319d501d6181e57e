// Package propagate pushes committed mutations to the derived stores.
//
// The record store commit happens before any call here. Each derived step
// (graph, vector, events, streak cache) runs independently; a failed step is
// reported to the FailureHook and never aborts the others or the request.
// There is no retry and no outbox: a lost update stays lost until the next
// write touching the same data.
package propagate

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/thebtf/habitgraph/internal/db/gorm"
	"github.com/thebtf/habitgraph/internal/diary"
	"github.com/thebtf/habitgraph/internal/events"
	"github.com/thebtf/habitgraph/internal/graph"
	"github.com/thebtf/habitgraph/internal/vector"
)

// Step names reported to the hook.
const (
	StepGraph  = "graph"
	StepVector = "vector"
	StepEvents = "events"
	StepStreak = "streak"
)

// Indexer is the vector side of diary entries.
type Indexer interface {
	Upsert(ctx context.Context, e vector.Entry) error
	Delete(ctx context.Context, entryID string) error
}

// StreakCache drops cached streak values.
type StreakCache interface {
	Invalidate(ctx context.Context, userID, habitID int64) error
}

// Deps are the derived stores. Nil members are skipped.
type Deps struct {
	Graph   graph.Mirror
	Index   Indexer
	Events  events.Publisher
	Streaks StreakCache
	Hook    FailureHook
}

// Propagator fans committed mutations out to the derived stores.
type Propagator struct {
	deps Deps
}

// New creates a propagator. A nil hook defaults to NewMetricsHook.
func New(deps Deps) *Propagator {
	if deps.Hook == nil {
		deps.Hook = NewMetricsHook()
	}
	return &Propagator{deps: deps}
}

type step struct {
	fn   func(context.Context) error
	name string
}

// run executes steps concurrently and waits for all of them. The request
// context's cancellation is detached so a client disconnect after commit
// does not abort propagation.
func (p *Propagator) run(ctx context.Context, op string, steps ...step) {
	ctx = context.WithoutCancel(ctx)
	var g errgroup.Group
	for _, s := range steps {
		if s.fn == nil {
			continue
		}
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic: %v", r)
				}
				if err != nil {
					p.deps.Hook.Failed(ctx, op, s.name, err)
				}
			}()
			return s.fn(ctx)
		})
	}
	_ = g.Wait()
}

func (p *Propagator) graphStep(fn func(context.Context, graph.Mirror) error) step {
	if p.deps.Graph == nil {
		return step{}
	}
	return step{name: StepGraph, fn: func(ctx context.Context) error { return fn(ctx, p.deps.Graph) }}
}

func (p *Propagator) eventStep(key string, payload map[string]any) step {
	if p.deps.Events == nil {
		return step{}
	}
	return step{name: StepEvents, fn: func(ctx context.Context) error {
		return p.deps.Events.Publish(ctx, key, payload)
	}}
}

func (p *Propagator) indexStep(fn func(context.Context, Indexer) error) step {
	if p.deps.Index == nil {
		return step{}
	}
	return step{name: StepVector, fn: func(ctx context.Context) error { return fn(ctx, p.deps.Index) }}
}

// UserCreated mirrors a new user.
func (p *Propagator) UserCreated(ctx context.Context, u *gorm.User) {
	p.run(ctx, events.UserCreated,
		p.graphStep(func(ctx context.Context, g graph.Mirror) error {
			return g.UpsertUser(ctx, u.ID, u.Username)
		}),
		p.eventStep(events.UserCreated, map[string]any{"user_id": u.ID, "username": u.Username}),
	)
}

// HabitCreated links the habit to its owner.
func (p *Propagator) HabitCreated(ctx context.Context, h *gorm.Habit) {
	p.run(ctx, events.HabitCreated,
		p.graphStep(func(ctx context.Context, g graph.Mirror) error {
			return g.LinkUserHabit(ctx, h.UserID, h.ID, h.Title)
		}),
		p.eventStep(events.HabitCreated, map[string]any{"user_id": h.UserID, "habit_id": h.ID, "title": h.Title}),
	)
}

// HabitArchived removes the habit from recommendations.
func (p *Propagator) HabitArchived(ctx context.Context, h *gorm.Habit) {
	p.run(ctx, events.HabitArchived,
		p.graphStep(func(ctx context.Context, g graph.Mirror) error {
			return g.UnlinkUserHabit(ctx, h.UserID, h.ID)
		}),
		p.eventStep(events.HabitArchived, map[string]any{"user_id": h.UserID, "habit_id": h.ID}),
	)
}

// GoalCreated links a user-authored goal.
func (p *Propagator) GoalCreated(ctx context.Context, goal *gorm.Goal) {
	p.run(ctx, events.GoalCreated,
		p.graphStep(func(ctx context.Context, g graph.Mirror) error {
			return g.LinkUserGoal(ctx, goal.UserID, graph.GoalRef{NodeID: graph.GoalNodeID(goal.ID), Title: goal.Title})
		}),
		p.eventStep(events.GoalCreated, map[string]any{"user_id": goal.UserID, "goal_id": goal.ID, "title": goal.Title}),
	)
}

// GoalSelected links the user to the shared catalog goal node.
func (p *Propagator) GoalSelected(ctx context.Context, goal *gorm.Goal, catalogID string) {
	p.run(ctx, events.GoalSelected,
		p.graphStep(func(ctx context.Context, g graph.Mirror) error {
			return g.LinkUserGoal(ctx, goal.UserID, graph.GoalRef{
				NodeID:  graph.CatalogNodeID(catalogID),
				Title:   goal.Title,
				Catalog: true,
			})
		}),
		p.eventStep(events.GoalSelected, map[string]any{"user_id": goal.UserID, "goal_id": goal.ID, "catalog_id": catalogID}),
	)
}

// GoalUnselected unlinks the user from a catalog goal.
func (p *Propagator) GoalUnselected(ctx context.Context, goal *gorm.Goal, catalogID string) {
	p.run(ctx, events.GoalUnselected,
		p.graphStep(func(ctx context.Context, g graph.Mirror) error {
			return g.UnlinkUserGoal(ctx, goal.UserID, graph.CatalogNodeID(catalogID))
		}),
		p.eventStep(events.GoalUnselected, map[string]any{"user_id": goal.UserID, "goal_id": goal.ID, "catalog_id": catalogID}),
	)
}

// CheckinRecorded drops the cached streak and announces the checkin.
func (p *Propagator) CheckinRecorded(ctx context.Context, c *gorm.Checkin) {
	var streakStep step
	if p.deps.Streaks != nil {
		streakStep = step{name: StepStreak, fn: func(ctx context.Context) error {
			return p.deps.Streaks.Invalidate(ctx, c.UserID, c.HabitID)
		}}
	}
	p.run(ctx, events.CheckinRecorded,
		streakStep,
		p.eventStep(events.CheckinRecorded, map[string]any{
			"user_id":  c.UserID,
			"habit_id": c.HabitID,
			"date":     c.Date.Format("2006-01-02"),
		}),
	)
}

func indexEntry(e *diary.Entry) vector.Entry {
	return vector.Entry{
		ID:        e.ID,
		UserID:    e.UserID,
		Text:      e.Text,
		Tags:      e.Tags,
		Mood:      e.Mood,
		CreatedAt: e.CreatedAt,
	}
}

// DiaryCreated indexes a new entry.
func (p *Propagator) DiaryCreated(ctx context.Context, e *diary.Entry) {
	p.run(ctx, events.DiaryCreated,
		p.indexStep(func(ctx context.Context, idx Indexer) error { return idx.Upsert(ctx, indexEntry(e)) }),
		p.eventStep(events.DiaryCreated, map[string]any{"user_id": e.UserID, "entry_id": e.ID}),
	)
}

// DiaryUpdated re-indexes an entry in place.
func (p *Propagator) DiaryUpdated(ctx context.Context, e *diary.Entry) {
	p.run(ctx, events.DiaryUpdated,
		p.indexStep(func(ctx context.Context, idx Indexer) error { return idx.Upsert(ctx, indexEntry(e)) }),
		p.eventStep(events.DiaryUpdated, map[string]any{"user_id": e.UserID, "entry_id": e.ID}),
	)
}

// DiaryDeleted removes an entry's vector.
func (p *Propagator) DiaryDeleted(ctx context.Context, userID int64, entryID string) {
	p.run(ctx, events.DiaryDeleted,
		p.indexStep(func(ctx context.Context, idx Indexer) error { return idx.Delete(ctx, entryID) }),
		p.eventStep(events.DiaryDeleted, map[string]any{"user_id": userID, "entry_id": entryID}),
	)
}

// FriendAdded announces a friendship. The graph write itself is authoritative
// and done by the caller.
func (p *Propagator) FriendAdded(ctx context.Context, userID, friendID int64) {
	p.run(ctx, events.FriendAdded,
		p.eventStep(events.FriendAdded, map[string]any{"user_id": userID, "friend_id": friendID}),
	)
}

// GoalsReset clears goal nodes and re-seeds the catalog.
func (p *Propagator) GoalsReset(ctx context.Context, deleted int64, catalog []graph.CatalogGoal) {
	p.run(ctx, events.GoalsReset,
		p.graphStep(func(ctx context.Context, g graph.Mirror) error {
			if err := g.ClearGoals(ctx); err != nil {
				return err
			}
			return g.EnsureGoalCatalog(ctx, catalog)
		}),
		p.eventStep(events.GoalsReset, map[string]any{"goals_deleted": deleted}),
	)
}
