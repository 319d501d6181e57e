// Package graph mirrors users, habits, goals and friendships into a property graph
// and answers social queries (friends, recommendations, goal catalog) from it.
//
// The relational record store stays authoritative. Mirror writes are merges, so
// replaying any of them converges on the same graph.
package graph

import (
	"context"
	"fmt"
	"sort"
	"strconv"
)

// Limits for RecommendUsers.
const (
	DefaultRecommendLimit = 10
	MaxRecommendLimit     = 50
)

// Friend is a user reachable over a FRIEND edge.
type Friend struct {
	Username string `json:"username"`
	UserID   int64  `json:"user_id"`
}

// CatalogGoal is a predefined goal users can select.
type CatalogGoal struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description"`
}

// GoalRef identifies the goal node a user is linked to.
type GoalRef struct {
	NodeID  string
	Title   string
	Catalog bool
}

// Recommendation is a candidate friend ranked by shared goals and habits.
type Recommendation struct {
	Username     string `json:"username"`
	UserID       int64  `json:"user_id"`
	SharedGoals  int    `json:"shared_goals"`
	SharedHabits int    `json:"shared_habits"`
	Score        int    `json:"score"`
}

// Mirror is the graph side of the system.
type Mirror interface {
	// EnsureReady applies the schema once. Failed attempts are retried on the next call.
	EnsureReady(ctx context.Context) error
	UpsertUser(ctx context.Context, userID int64, username string) error
	LinkUserHabit(ctx context.Context, userID, habitID int64, title string) error
	UnlinkUserHabit(ctx context.Context, userID, habitID int64) error
	LinkUserGoal(ctx context.Context, userID int64, goal GoalRef) error
	UnlinkUserGoal(ctx context.Context, userID int64, goalNodeID string) error
	// AddFriend creates FRIEND edges in both directions.
	AddFriend(ctx context.Context, userID, friendID int64) error
	ListFriends(ctx context.Context, userID int64) ([]Friend, error)
	EnsureGoalCatalog(ctx context.Context, entries []CatalogGoal) error
	ListGoalCatalog(ctx context.Context) ([]CatalogGoal, error)
	RecommendUsers(ctx context.Context, userID int64, limit int) ([]Recommendation, error)
	// ClearGoals removes every goal node and its edges.
	ClearGoals(ctx context.Context) error
	Close(ctx context.Context) error
}

// CatalogNodeID is the goal node id of a catalog entry.
func CatalogNodeID(slug string) string { return "catalog:" + slug }

// GoalNodeID is the goal node id of a user-authored goal.
func GoalNodeID(goalID int64) string { return "goal:" + strconv.FormatInt(goalID, 10) }

// ClampLimit bounds a recommendation limit to [1, MaxRecommendLimit].
func ClampLimit(limit int) int {
	return min(max(limit, 1), MaxRecommendLimit)
}

// Rank drops zero-score candidates, orders by score desc then user id asc and
// truncates to the clamped limit.
func Rank(candidates []Recommendation, limit int) []Recommendation {
	out := make([]Recommendation, 0, len(candidates))
	for _, c := range candidates {
		c.Score = c.SharedGoals + c.SharedHabits
		if c.Score > 0 {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].UserID < out[j].UserID
	})
	if n := ClampLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out
}

func asInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case nil:
		return 0, nil
	}
	return 0, fmt.Errorf("unexpected integer value %T", v)
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	case []byte:
		return string(s)
	}
	return fmt.Sprint(v)
}
