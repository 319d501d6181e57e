package propagate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/habitgraph/internal/db/gorm"
	"github.com/thebtf/habitgraph/internal/diary"
	"github.com/thebtf/habitgraph/internal/events"
	"github.com/thebtf/habitgraph/internal/graph"
	"github.com/thebtf/habitgraph/internal/vector"
)

type failure struct {
	op, step string
}

type recordingHook struct {
	got []failure
	mu  sync.Mutex
}

func (h *recordingHook) Failed(_ context.Context, op, step string, _ error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.got = append(h.got, failure{op: op, step: step})
}

func (h *recordingHook) steps() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.got))
	for i, f := range h.got {
		out[i] = f.step
	}
	return out
}

// brokenGraph fails every write.
type brokenGraph struct{ graph.Mirror }

func (brokenGraph) LinkUserHabit(context.Context, int64, int64, string) error {
	return errors.New("graph down")
}

func (brokenGraph) UpsertUser(context.Context, int64, string) error { panic("driver bug") }

type fakeIndex struct {
	err     error
	upserts []vector.Entry
	deletes []string
	mu      sync.Mutex
}

func (f *fakeIndex) Upsert(_ context.Context, e vector.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, e)
	return f.err
}

func (f *fakeIndex) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
	return f.err
}

type fakeStreaks struct {
	keys [][2]int64
	mu   sync.Mutex
}

func (f *fakeStreaks) Invalidate(_ context.Context, u, h int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, [2]int64{u, h})
	return nil
}

func TestHabitCreated_GraphFailureIsolated(t *testing.T) {
	hook := &recordingHook{}
	rec := &events.Recorder{}
	p := New(Deps{Graph: brokenGraph{graph.NewMemory()}, Events: rec, Hook: hook})

	p.HabitCreated(context.Background(), &gorm.Habit{ID: 3, UserID: 1, Title: "Run"})

	assert.Equal(t, []string{StepGraph}, hook.steps())
	require.Equal(t, []string{events.HabitCreated}, rec.Keys(), "events still published")
	assert.Equal(t, int64(3), rec.Events()[0].Payload["habit_id"])
}

func TestUserCreated_PanicIsContained(t *testing.T) {
	hook := &recordingHook{}
	rec := &events.Recorder{}
	p := New(Deps{Graph: brokenGraph{graph.NewMemory()}, Events: rec, Hook: hook})

	assert.NotPanics(t, func() {
		p.UserCreated(context.Background(), &gorm.User{ID: 1, Username: "alice"})
	})
	assert.Equal(t, []string{StepGraph}, hook.steps())
	assert.Equal(t, []string{events.UserCreated}, rec.Keys())
}

func TestDiaryCreated_EventFailureDoesNotBlockIndex(t *testing.T) {
	hook := &recordingHook{}
	idx := &fakeIndex{}
	p := New(Deps{Index: idx, Events: &events.Recorder{Err: errors.New("broker down")}, Hook: hook})

	mood := "good"
	e := &diary.Entry{ID: "e1", UserID: 1, Text: "slept well", Tags: []string{"sleep"}, Mood: &mood, CreatedAt: time.Now()}
	p.DiaryCreated(context.Background(), e)

	require.Len(t, idx.upserts, 1)
	assert.Equal(t, "e1", idx.upserts[0].ID)
	assert.Equal(t, &mood, idx.upserts[0].Mood)
	assert.Equal(t, []string{StepEvents}, hook.steps())
}

func TestDiaryDeleted(t *testing.T) {
	idx := &fakeIndex{}
	rec := &events.Recorder{}
	p := New(Deps{Index: idx, Events: rec, Hook: &recordingHook{}})

	p.DiaryDeleted(context.Background(), 1, "e1")
	assert.Equal(t, []string{"e1"}, idx.deletes)
	assert.Equal(t, []string{events.DiaryDeleted}, rec.Keys())
}

func TestCheckinRecorded(t *testing.T) {
	streaks := &fakeStreaks{}
	rec := &events.Recorder{}
	p := New(Deps{Streaks: streaks, Events: rec})

	p.CheckinRecorded(context.Background(), &gorm.Checkin{
		UserID: 1, HabitID: 2, Date: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
	})

	assert.Equal(t, [][2]int64{{1, 2}}, streaks.keys)
	require.Len(t, rec.Events(), 1)
	ev := rec.Events()[0]
	assert.Equal(t, events.CheckinRecorded, ev.RoutingKey)
	assert.Equal(t, map[string]any{"user_id": int64(1), "habit_id": int64(2), "date": "2024-01-05"}, ev.Payload)
}

func TestGoalSelectAndUnselect_UseCatalogNode(t *testing.T) {
	g := graph.NewMemory()
	ctx := context.Background()
	p := New(Deps{Graph: g, Hook: &recordingHook{}})
	require.NoError(t, g.UpsertUser(ctx, 1, "a"))
	require.NoError(t, g.UpsertUser(ctx, 2, "b"))

	p.GoalSelected(ctx, &gorm.Goal{ID: 10, UserID: 1, Title: "Improve sleep"}, "improve-sleep")
	p.GoalSelected(ctx, &gorm.Goal{ID: 11, UserID: 2, Title: "Improve sleep"}, "improve-sleep")

	recs, err := g.RecommendUsers(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 1, recs[0].SharedGoals)

	p.GoalUnselected(ctx, &gorm.Goal{ID: 10, UserID: 1}, "improve-sleep")
	recs, err = g.RecommendUsers(ctx, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestCanceledContextStillPropagates(t *testing.T) {
	rec := &events.Recorder{}
	p := New(Deps{Events: contextChecking{rec}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p.FriendAdded(ctx, 1, 2)
	assert.Equal(t, []string{events.FriendAdded}, rec.Keys())
}

type contextChecking struct{ *events.Recorder }

func (c contextChecking) Publish(ctx context.Context, key string, payload map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.Recorder.Publish(ctx, key, payload)
}

func TestNilDepsAreSkipped(t *testing.T) {
	p := New(Deps{})
	assert.NotPanics(t, func() {
		p.GoalsReset(context.Background(), 3, nil)
		p.DiaryUpdated(context.Background(), &diary.Entry{ID: "x"})
	})
}
