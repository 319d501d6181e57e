// Package cache provides the key-value store behind derived values such as streaks.
package cache

import (
	"context"
	"sync"
	"time"
)

// Store is a string key-value cache with per-key TTL.
// Implementations are safe for concurrent use.
type Store interface {
	// Get returns the value and true on a hit, false on a miss.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type memoryItem struct {
	expires time.Time
	value   string
}

// Memory is an in-process Store.
type Memory struct {
	items map[string]memoryItem
	// Now is the clock used for expiry; defaults to time.Now.
	Now func() time.Time
	mu  sync.RWMutex
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]memoryItem), Now: time.Now}
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	item, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if !item.expires.IsZero() && !m.Now().Before(item.expires) {
		m.mu.Lock()
		delete(m.items, key)
		m.mu.Unlock()
		return "", false, nil
	}
	return item.value, true, nil
}

// Set implements Store. A non-positive ttl never expires.
func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	item := memoryItem{value: value}
	if ttl > 0 {
		item.expires = m.Now().Add(ttl)
	}
	m.mu.Lock()
	m.items[key] = item
	m.mu.Unlock()
	return nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

// TTL returns the remaining lifetime of key, or false when absent.
func (m *Memory) TTL(key string) (time.Duration, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[key]
	if !ok {
		return 0, false
	}
	if item.expires.IsZero() {
		return 0, true
	}
	return item.expires.Sub(m.Now()), true
}
