package graph

import (
	"context"
	"sort"
	"sync"
)

type goalNode struct {
	Title       string
	Description string
	Slug        string
	Position    int
	Catalog     bool
}

// Memory is an in-process Mirror with the same merge semantics as the Cypher mirror.
type Memory struct {
	users   map[int64]string
	habits  map[int64]string
	goals   map[string]*goalNode
	hasGoal map[int64]map[string]struct{}
	hasHab  map[int64]map[int64]struct{}
	friends map[int64]map[int64]struct{}
	mu      sync.RWMutex
}

// NewMemory creates an empty graph.
func NewMemory() *Memory {
	return &Memory{
		users:   make(map[int64]string),
		habits:  make(map[int64]string),
		goals:   make(map[string]*goalNode),
		hasGoal: make(map[int64]map[string]struct{}),
		hasHab:  make(map[int64]map[int64]struct{}),
		friends: make(map[int64]map[int64]struct{}),
	}
}

// EnsureReady implements Mirror.
func (m *Memory) EnsureReady(context.Context) error { return nil }

// mergeUser must be called with mu held.
func (m *Memory) mergeUser(id int64) {
	if _, ok := m.users[id]; !ok {
		m.users[id] = ""
	}
}

// UpsertUser implements Mirror.
func (m *Memory) UpsertUser(_ context.Context, userID int64, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID] = username
	return nil
}

// LinkUserHabit implements Mirror.
func (m *Memory) LinkUserHabit(_ context.Context, userID, habitID int64, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mergeUser(userID)
	m.habits[habitID] = title
	set, ok := m.hasHab[userID]
	if !ok {
		set = make(map[int64]struct{})
		m.hasHab[userID] = set
	}
	set[habitID] = struct{}{}
	return nil
}

// UnlinkUserHabit implements Mirror.
func (m *Memory) UnlinkUserHabit(_ context.Context, userID, habitID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.hasHab[userID], habitID)
	return nil
}

// LinkUserGoal implements Mirror.
func (m *Memory) LinkUserGoal(_ context.Context, userID int64, goal GoalRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mergeUser(userID)

	node, ok := m.goals[goal.NodeID]
	switch {
	case !ok:
		m.goals[goal.NodeID] = &goalNode{Title: goal.Title, Catalog: goal.Catalog}
	case !node.Catalog:
		node.Title = goal.Title
		node.Catalog = goal.Catalog
	}

	set, ok := m.hasGoal[userID]
	if !ok {
		set = make(map[string]struct{})
		m.hasGoal[userID] = set
	}
	set[goal.NodeID] = struct{}{}
	return nil
}

// UnlinkUserGoal implements Mirror.
func (m *Memory) UnlinkUserGoal(_ context.Context, userID int64, goalNodeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.hasGoal[userID], goalNodeID)
	return nil
}

// AddFriend implements Mirror.
func (m *Memory) AddFriend(_ context.Context, userID, friendID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mergeUser(userID)
	m.mergeUser(friendID)
	m.addEdge(userID, friendID)
	m.addEdge(friendID, userID)
	return nil
}

func (m *Memory) addEdge(from, to int64) {
	set, ok := m.friends[from]
	if !ok {
		set = make(map[int64]struct{})
		m.friends[from] = set
	}
	set[to] = struct{}{}
}

// ListFriends implements Mirror.
func (m *Memory) ListFriends(_ context.Context, userID int64) ([]Friend, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Friend, 0, len(m.friends[userID]))
	for id := range m.friends[userID] {
		out = append(out, Friend{UserID: id, Username: m.users[id]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// EnsureGoalCatalog implements Mirror.
func (m *Memory) EnsureGoalCatalog(_ context.Context, entries []CatalogGoal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range entries {
		m.goals[CatalogNodeID(e.ID)] = &goalNode{
			Title:       e.Title,
			Description: e.Description,
			Slug:        e.ID,
			Position:    i,
			Catalog:     true,
		}
	}
	return nil
}

// ListGoalCatalog implements Mirror.
func (m *Memory) ListGoalCatalog(context.Context) ([]CatalogGoal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	nodes := make([]*goalNode, 0, len(m.goals))
	for _, g := range m.goals {
		if g.Catalog && g.Slug != "" {
			nodes = append(nodes, g)
		}
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Position != nodes[j].Position {
			return nodes[i].Position < nodes[j].Position
		}
		return nodes[i].Slug < nodes[j].Slug
	})
	out := make([]CatalogGoal, len(nodes))
	for i, g := range nodes {
		out[i] = CatalogGoal{ID: g.Slug, Title: g.Title, Description: g.Description}
	}
	return out, nil
}

// RecommendUsers implements Mirror.
func (m *Memory) RecommendUsers(_ context.Context, userID int64, limit int) ([]Recommendation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.users[userID]; !ok {
		return []Recommendation{}, nil
	}

	myGoals := m.hasGoal[userID]
	myHabits := m.hasHab[userID]
	candidates := make([]Recommendation, 0, len(m.users))
	for other, name := range m.users {
		if other == userID {
			continue
		}
		if _, friend := m.friends[userID][other]; friend {
			continue
		}
		rec := Recommendation{UserID: other, Username: name}
		for g := range m.hasGoal[other] {
			if _, ok := myGoals[g]; ok {
				rec.SharedGoals++
			}
		}
		for h := range m.hasHab[other] {
			if _, ok := myHabits[h]; ok {
				rec.SharedHabits++
			}
		}
		candidates = append(candidates, rec)
	}
	return Rank(candidates, limit), nil
}

// ClearGoals implements Mirror.
func (m *Memory) ClearGoals(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.goals = make(map[string]*goalNode)
	m.hasGoal = make(map[int64]map[string]struct{})
	return nil
}

// Close implements Mirror.
func (m *Memory) Close(context.Context) error { return nil }

var _ Mirror = (*Memory)(nil)
