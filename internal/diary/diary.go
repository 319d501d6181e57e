// Package diary stores free-text diary entries, the document side of the system.
package diary

import (
	"context"
	"errors"
	"time"
)

// List bounds.
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// ErrNotFound is returned when an entry does not exist or belongs to another user.
var ErrNotFound = errors.New("diary entry not found")

// Entry is one diary document.
type Entry struct {
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt *time.Time     `json:"updated_at,omitempty"`
	Mood      *string        `json:"mood"`
	Metadata  map[string]any `json:"metadata"`
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	Tags      []string       `json:"tags"`
	UserID    int64          `json:"user_id"`
}

// Patch holds the fields an update changes. Nil fields are left alone.
type Patch struct {
	Text     *string
	Tags     *[]string
	Mood     *string
	Metadata map[string]any
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Text == nil && p.Tags == nil && p.Mood == nil && p.Metadata == nil
}

// Store persists diary entries.
type Store interface {
	// Create assigns ID and CreatedAt when empty and stores the entry.
	Create(ctx context.Context, e *Entry) error
	Get(ctx context.Context, userID int64, id string) (*Entry, error)
	// GetMany returns the user's entries among ids keyed by id. Unknown ids are skipped.
	GetMany(ctx context.Context, userID int64, ids []string) (map[string]*Entry, error)
	// List returns entries newest first.
	List(ctx context.Context, userID int64, limit, offset int) ([]*Entry, error)
	Update(ctx context.Context, userID int64, id string, p Patch) (*Entry, error)
	Delete(ctx context.Context, userID int64, id string) error
	Count(ctx context.Context, userID int64) (int64, error)
	Close(ctx context.Context) error
}

// ClampLimit bounds a list limit to [1, MaxListLimit].
func ClampLimit(limit int) int {
	return min(max(limit, 1), MaxListLimit)
}

func normalize(e *Entry) {
	if e.Tags == nil {
		e.Tags = []string{}
	}
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
}
