package vector

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/habitgraph/internal/embedding"
)

const (
	// DefaultSearchLimit is used when a caller passes a non-positive limit.
	DefaultSearchLimit = 5
	// MaxSearchLimit bounds a single similarity search.
	MaxSearchLimit = 50
)

// Entry is the diary data indexed for similarity search.
type Entry struct {
	CreatedAt time.Time
	Mood      *string
	ID        string
	Text      string
	Tags      []string
	UserID    int64
}

// Match is a similar diary entry.
type Match struct {
	EntryID string  `json:"entry_id"`
	Score   float64 `json:"score"`
}

// DiaryIndex keeps one vector per diary entry and answers per-user similarity queries.
//
// The collection is provisioned lazily on first use: an existing primary
// collection is reused at its dimension, otherwise it is created at
// embedding.Dimensions; if creation fails an existing fallback collection is
// used instead. A failed attempt is retried on the next call.
type DiaryIndex struct {
	store    Store
	state    atomic.Pointer[Info]
	primary  string
	fallback string
	mu       sync.Mutex
}

// NewDiaryIndex creates a diary index over store.
func NewDiaryIndex(store Store, primary, fallback string) *DiaryIndex {
	return &DiaryIndex{store: store, primary: primary, fallback: fallback}
}

// PointID returns the stable point id of a diary entry.
func PointID(entryID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("habitgraph:diary:"+entryID)).String()
}

// EnsureReady provisions the collection. Safe for concurrent callers; all of
// them observe the same collection once one attempt succeeds.
func (d *DiaryIndex) EnsureReady(ctx context.Context) error {
	if d.state.Load() != nil {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state.Load() != nil {
		return nil
	}

	if info, err := d.store.CollectionInfo(ctx, d.primary); err == nil {
		d.use(info)
		return nil
	}

	createErr := d.store.CreateCollection(ctx, d.primary, embedding.Dimensions)
	if createErr == nil {
		d.use(Info{Name: d.primary, Dimensions: embedding.Dimensions})
		return nil
	}

	// Any creation error falls through to the fallback probe, not only "already exists".
	if d.fallback != "" {
		if info, err := d.store.CollectionInfo(ctx, d.fallback); err == nil {
			log.Warn().Err(createErr).Str("primary", d.primary).Str("fallback", d.fallback).
				Msg("Vector collection create failed, using fallback")
			d.use(info)
			return nil
		}
	}
	return fmt.Errorf("provision vector collection %q: %w", d.primary, createErr)
}

func (d *DiaryIndex) use(info Info) {
	if info.Name == "" {
		info.Name = d.primary
	}
	if info.Dimensions <= 0 {
		info.Dimensions = embedding.Dimensions
	}
	log.Info().Str("collection", info.Name).Int("dimensions", info.Dimensions).Msg("Diary vector index ready")
	d.state.Store(&info)
}

// Collection returns the provisioned collection, or false before EnsureReady succeeds.
func (d *DiaryIndex) Collection() (Info, bool) {
	info := d.state.Load()
	if info == nil {
		return Info{}, false
	}
	return *info, true
}

// Upsert indexes an entry. Re-indexing the same entry overwrites its point.
func (d *DiaryIndex) Upsert(ctx context.Context, e Entry) error {
	if err := d.EnsureReady(ctx); err != nil {
		return err
	}
	info, _ := d.Collection()

	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}
	point := Point{
		ID:     PointID(e.ID),
		Vector: embedding.EmbedN(e.Text, info.Dimensions),
		Payload: Payload{
			EntryID:   e.ID,
			UserID:    e.UserID,
			Tags:      tags,
			Mood:      e.Mood,
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
	return d.store.Upsert(ctx, info.Name, []Point{point})
}

// Search returns the user's entries most similar to query, best first.
// Text without tokens matches nothing.
func (d *DiaryIndex) Search(ctx context.Context, userID int64, query string, limit int) ([]Match, error) {
	if err := d.EnsureReady(ctx); err != nil {
		return nil, err
	}
	info, _ := d.Collection()

	vec := embedding.EmbedN(query, info.Dimensions)
	if embedding.IsZero(vec) {
		return []Match{}, nil
	}

	hits, err := d.store.Search(ctx, info.Name, vec, ClampLimit(limit), Filter{UserID: userID})
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(hits))
	for _, h := range hits {
		if h.Payload.EntryID == "" || h.Payload.UserID != userID || math.IsNaN(h.Score) {
			continue
		}
		matches = append(matches, Match{EntryID: h.Payload.EntryID, Score: h.Score})
	}
	return matches, nil
}

// Delete removes the entry's point.
func (d *DiaryIndex) Delete(ctx context.Context, entryID string) error {
	if err := d.EnsureReady(ctx); err != nil {
		return err
	}
	info, _ := d.Collection()
	return d.store.Delete(ctx, info.Name, []string{PointID(entryID)})
}

// ClampLimit bounds a search limit to [1, MaxSearchLimit], defaulting non-positive values.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultSearchLimit
	}
	return min(limit, MaxSearchLimit)
}
