package graph

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Record is one result row keyed by column alias.
type Record map[string]any

// Runner executes Cypher against a graph database.
type Runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) ([]Record, error)
	// EnsureSchema creates the uniqueness constraints or indexes on node ids.
	EnsureSchema(ctx context.Context) error
	Close(ctx context.Context) error
}

const (
	qUpsertUser = `MERGE (u:User {id: $id}) SET u.username = $username`

	qLinkUserHabit = `MERGE (u:User {id: $user_id})
MERGE (h:Habit {id: $habit_id})
SET h.title = $title
MERGE (u)-[:HAS_HABIT]->(h)`

	qUnlinkUserHabit = `MATCH (u:User {id: $user_id})-[r:HAS_HABIT]->(h:Habit {id: $habit_id}) DELETE r`

	// A catalog goal keeps its title and flag when a user-authored link hits it.
	qLinkUserGoal = `MERGE (u:User {id: $user_id})
MERGE (g:Goal {id: $goal_id})
ON CREATE SET g.title = $title, g.catalog = $catalog
ON MATCH SET g.title = CASE WHEN coalesce(g.catalog, false) THEN g.title ELSE $title END,
	g.catalog = coalesce(g.catalog, false) OR $catalog
MERGE (u)-[:HAS_GOAL]->(g)`

	qUnlinkUserGoal = `MATCH (u:User {id: $user_id})-[r:HAS_GOAL]->(g:Goal {id: $goal_id}) DELETE r`

	qAddFriend = `MERGE (u:User {id: $user_id})
MERGE (v:User {id: $friend_id})
MERGE (u)-[:FRIEND]->(v)
MERGE (v)-[:FRIEND]->(u)`

	qListFriends = `MATCH (:User {id: $user_id})-[:FRIEND]->(f:User)
RETURN f.id AS user_id, f.username AS username
ORDER BY user_id ASC`

	qEnsureCatalogGoal = `MERGE (g:Goal {id: $id})
SET g.slug = $slug, g.title = $title, g.description = $description, g.catalog = true, g.position = $position`

	qListGoalCatalog = `MATCH (g:Goal) WHERE g.catalog = true
RETURN g.slug AS id, g.title AS title, g.description AS description
ORDER BY g.position ASC, id ASC`

	qRecommendUsers = `MATCH (me:User {id: $user_id})
MATCH (other:User)
WHERE other.id <> me.id AND NOT (me)-[:FRIEND]->(other)
OPTIONAL MATCH (me)-[:HAS_GOAL]->(g:Goal)<-[:HAS_GOAL]-(other)
OPTIONAL MATCH (me)-[:HAS_HABIT]->(h:Habit)<-[:HAS_HABIT]-(other)
WITH other, count(DISTINCT g) AS shared_goals, count(DISTINCT h) AS shared_habits
WITH other, shared_goals, shared_habits, (shared_goals + shared_habits) AS score
WHERE score > 0
RETURN other.id AS user_id, other.username AS username, shared_goals, shared_habits, score
ORDER BY score DESC, user_id ASC
LIMIT $limit`

	qClearGoals = `MATCH (g:Goal) DETACH DELETE g`
)

// CypherMirror implements Mirror on any Cypher Runner.
type CypherMirror struct {
	runner Runner
	mu     sync.Mutex
	ready  atomic.Bool
}

// NewCypherMirror wraps a runner. The schema is applied on first use.
func NewCypherMirror(runner Runner) *CypherMirror {
	return &CypherMirror{runner: runner}
}

// EnsureReady implements Mirror.
func (m *CypherMirror) EnsureReady(ctx context.Context) error {
	if m.ready.Load() {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ready.Load() {
		return nil
	}
	if err := m.runner.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("graph schema: %w", err)
	}
	m.ready.Store(true)
	return nil
}

func (m *CypherMirror) exec(ctx context.Context, cypher string, params map[string]any) ([]Record, error) {
	if err := m.EnsureReady(ctx); err != nil {
		return nil, err
	}
	return m.runner.Run(ctx, cypher, params)
}

// UpsertUser implements Mirror.
func (m *CypherMirror) UpsertUser(ctx context.Context, userID int64, username string) error {
	_, err := m.exec(ctx, qUpsertUser, map[string]any{"id": userID, "username": username})
	return err
}

// LinkUserHabit implements Mirror.
func (m *CypherMirror) LinkUserHabit(ctx context.Context, userID, habitID int64, title string) error {
	_, err := m.exec(ctx, qLinkUserHabit, map[string]any{"user_id": userID, "habit_id": habitID, "title": title})
	return err
}

// UnlinkUserHabit implements Mirror.
func (m *CypherMirror) UnlinkUserHabit(ctx context.Context, userID, habitID int64) error {
	_, err := m.exec(ctx, qUnlinkUserHabit, map[string]any{"user_id": userID, "habit_id": habitID})
	return err
}

// LinkUserGoal implements Mirror.
func (m *CypherMirror) LinkUserGoal(ctx context.Context, userID int64, goal GoalRef) error {
	_, err := m.exec(ctx, qLinkUserGoal, map[string]any{
		"user_id": userID,
		"goal_id": goal.NodeID,
		"title":   goal.Title,
		"catalog": goal.Catalog,
	})
	return err
}

// UnlinkUserGoal implements Mirror.
func (m *CypherMirror) UnlinkUserGoal(ctx context.Context, userID int64, goalNodeID string) error {
	_, err := m.exec(ctx, qUnlinkUserGoal, map[string]any{"user_id": userID, "goal_id": goalNodeID})
	return err
}

// AddFriend implements Mirror.
func (m *CypherMirror) AddFriend(ctx context.Context, userID, friendID int64) error {
	_, err := m.exec(ctx, qAddFriend, map[string]any{"user_id": userID, "friend_id": friendID})
	return err
}

// ListFriends implements Mirror.
func (m *CypherMirror) ListFriends(ctx context.Context, userID int64) ([]Friend, error) {
	records, err := m.exec(ctx, qListFriends, map[string]any{"user_id": userID})
	if err != nil {
		return nil, err
	}
	friends := make([]Friend, 0, len(records))
	for _, r := range records {
		id, err := asInt64(r["user_id"])
		if err != nil {
			return nil, fmt.Errorf("friend id: %w", err)
		}
		friends = append(friends, Friend{UserID: id, Username: asString(r["username"])})
	}
	return friends, nil
}

// EnsureGoalCatalog implements Mirror.
func (m *CypherMirror) EnsureGoalCatalog(ctx context.Context, entries []CatalogGoal) error {
	for i, e := range entries {
		_, err := m.exec(ctx, qEnsureCatalogGoal, map[string]any{
			"id":          CatalogNodeID(e.ID),
			"slug":        e.ID,
			"title":       e.Title,
			"description": e.Description,
			"position":    i,
		})
		if err != nil {
			return fmt.Errorf("catalog goal %s: %w", e.ID, err)
		}
	}
	return nil
}

// ListGoalCatalog implements Mirror.
func (m *CypherMirror) ListGoalCatalog(ctx context.Context) ([]CatalogGoal, error) {
	records, err := m.exec(ctx, qListGoalCatalog, nil)
	if err != nil {
		return nil, err
	}
	goals := make([]CatalogGoal, 0, len(records))
	for _, r := range records {
		goals = append(goals, CatalogGoal{
			ID:          asString(r["id"]),
			Title:       asString(r["title"]),
			Description: asString(r["description"]),
		})
	}
	return goals, nil
}

// RecommendUsers implements Mirror.
func (m *CypherMirror) RecommendUsers(ctx context.Context, userID int64, limit int) ([]Recommendation, error) {
	limit = ClampLimit(limit)
	records, err := m.exec(ctx, qRecommendUsers, map[string]any{"user_id": userID, "limit": limit})
	if err != nil {
		return nil, err
	}
	recs := make([]Recommendation, 0, len(records))
	for _, r := range records {
		id, err := asInt64(r["user_id"])
		if err != nil {
			return nil, fmt.Errorf("recommendation id: %w", err)
		}
		goals, err := asInt64(r["shared_goals"])
		if err != nil {
			return nil, fmt.Errorf("shared goals: %w", err)
		}
		habits, err := asInt64(r["shared_habits"])
		if err != nil {
			return nil, fmt.Errorf("shared habits: %w", err)
		}
		recs = append(recs, Recommendation{
			UserID:       id,
			Username:     asString(r["username"]),
			SharedGoals:  int(goals),
			SharedHabits: int(habits),
		})
	}
	return Rank(recs, limit), nil
}

// ClearGoals implements Mirror.
func (m *CypherMirror) ClearGoals(ctx context.Context) error {
	_, err := m.exec(ctx, qClearGoals, nil)
	return err
}

// Close releases the runner.
func (m *CypherMirror) Close(ctx context.Context) error {
	return m.runner.Close(ctx)
}

var _ Mirror = (*CypherMirror)(nil)
