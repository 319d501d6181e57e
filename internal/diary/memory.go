package diary

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Memory is an in-process Store.
type Memory struct {
	entries map[string]*Entry
	now     func() time.Time
	mu      sync.RWMutex
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*Entry), now: time.Now}
}

func clone(e *Entry) *Entry {
	c := *e
	c.Tags = append([]string(nil), e.Tags...)
	c.Metadata = make(map[string]any, len(e.Metadata))
	for k, v := range e.Metadata {
		c.Metadata[k] = v
	}
	normalize(&c)
	return &c
}

// Create implements Store.
func (m *Memory) Create(_ context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = primitive.NewObjectID().Hex()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = m.now().UTC()
	}
	normalize(e)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.ID] = clone(e)
	return nil
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, userID int64, id string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok || e.UserID != userID {
		return nil, ErrNotFound
	}
	return clone(e), nil
}

// GetMany implements Store.
func (m *Memory) GetMany(_ context.Context, userID int64, ids []string) (map[string]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*Entry, len(ids))
	for _, id := range ids {
		if e, ok := m.entries[id]; ok && e.UserID == userID {
			out[id] = clone(e)
		}
	}
	return out, nil
}

// List implements Store.
func (m *Memory) List(_ context.Context, userID int64, limit, offset int) ([]*Entry, error) {
	m.mu.RLock()
	all := make([]*Entry, 0, len(m.entries))
	for _, e := range m.entries {
		if e.UserID == userID {
			all = append(all, clone(e))
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	offset = max(offset, 0)
	if offset >= len(all) {
		return []*Entry{}, nil
	}
	all = all[offset:]
	if n := ClampLimit(limit); len(all) > n {
		all = all[:n]
	}
	return all, nil
}

// Update implements Store.
func (m *Memory) Update(_ context.Context, userID int64, id string, p Patch) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok || e.UserID != userID {
		return nil, ErrNotFound
	}
	if p.Text != nil {
		e.Text = *p.Text
	}
	if p.Tags != nil {
		e.Tags = append([]string{}, (*p.Tags)...)
	}
	if p.Mood != nil {
		mood := *p.Mood
		e.Mood = &mood
	}
	if p.Metadata != nil {
		e.Metadata = p.Metadata
	}
	now := m.now().UTC()
	e.UpdatedAt = &now
	return clone(e), nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, userID int64, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok || e.UserID != userID {
		return ErrNotFound
	}
	delete(m.entries, id)
	return nil
}

// Count implements Store.
func (m *Memory) Count(_ context.Context, userID int64) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, e := range m.entries {
		if e.UserID == userID {
			n++
		}
	}
	return n, nil
}

// Close implements Store.
func (m *Memory) Close(context.Context) error { return nil }

var _ Store = (*Memory)(nil)
