package core

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/habitgraph/internal/diary"
	"github.com/thebtf/habitgraph/internal/vector"
)

// DiaryInput is the payload for a new diary entry.
type DiaryInput struct {
	Mood     *string        `json:"mood"`
	Metadata map[string]any `json:"metadata"`
	Text     string         `json:"text"`
	Tags     []string       `json:"tags"`
}

// SimilarEntry is a diary entry with its similarity to the query.
type SimilarEntry struct {
	*diary.Entry
	Score float64 `json:"score"`
}

func validateDiaryText(text string) error {
	if n := utf8.RuneCountInString(text); n == 0 || n > MaxDiaryTextLen {
		return newError(ErrInvalid, "text must be 1..%d characters", MaxDiaryTextLen)
	}
	return nil
}

// CreateDiaryEntry stores an entry and indexes it best-effort. The entry
// exists even if it is not yet searchable.
func (s *Service) CreateDiaryEntry(ctx context.Context, userID int64, in DiaryInput) (*diary.Entry, error) {
	if err := validateDiaryText(in.Text); err != nil {
		return nil, err
	}
	e := &diary.Entry{
		UserID:    userID,
		Text:      in.Text,
		Tags:      in.Tags,
		Mood:      in.Mood,
		Metadata:  in.Metadata,
		CreatedAt: s.now().UTC(),
	}
	if err := s.diary.Create(ctx, e); err != nil {
		return nil, diaryErr(err)
	}
	s.prop.DiaryCreated(ctx, e)
	return e, nil
}

// ListDiary returns entries newest first. limit is clamped to [1,200], negative offsets to 0.
func (s *Service) ListDiary(ctx context.Context, userID int64, limit, offset int) ([]*diary.Entry, error) {
	entries, err := s.diary.List(ctx, userID, diary.ClampLimit(limit), max(offset, 0))
	if err != nil {
		return nil, diaryErr(err)
	}
	return entries, nil
}

// GetDiaryEntry returns one of the user's entries.
func (s *Service) GetDiaryEntry(ctx context.Context, userID int64, id string) (*diary.Entry, error) {
	e, err := s.diary.Get(ctx, userID, id)
	return e, diaryErr(err)
}

// UpdateDiaryEntry applies a patch and re-indexes the entry in place.
func (s *Service) UpdateDiaryEntry(ctx context.Context, userID int64, id string, p diary.Patch) (*diary.Entry, error) {
	if p.Text != nil {
		if err := validateDiaryText(*p.Text); err != nil {
			return nil, err
		}
	}
	if p.Empty() {
		return s.GetDiaryEntry(ctx, userID, id)
	}
	e, err := s.diary.Update(ctx, userID, id, p)
	if err != nil {
		return nil, diaryErr(err)
	}
	s.prop.DiaryUpdated(ctx, e)
	return e, nil
}

// DeleteDiaryEntry removes an entry and its vector.
func (s *Service) DeleteDiaryEntry(ctx context.Context, userID int64, id string) error {
	if err := s.diary.Delete(ctx, userID, id); err != nil {
		return diaryErr(err)
	}
	s.prop.DiaryDeleted(ctx, userID, id)
	return nil
}

// SimilarDiary finds the user's entries closest to text. Index failures and
// entries missing from the document store yield fewer results, never an error.
func (s *Service) SimilarDiary(ctx context.Context, userID int64, text string, limit int) ([]SimilarEntry, error) {
	if strings.TrimSpace(text) == "" {
		return nil, newError(ErrInvalid, "text is required")
	}
	out := []SimilarEntry{}
	if s.index == nil {
		return out, nil
	}

	matches, err := s.index.Search(ctx, userID, text, vector.ClampLimit(limit))
	if err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("Diary similarity search failed")
		return out, nil
	}
	if len(matches) == 0 {
		return out, nil
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.EntryID
	}
	entries, err := s.diary.GetMany(ctx, userID, ids)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("Diary hydration failed")
		return out, nil
	}
	for _, m := range matches {
		if e, ok := entries[m.EntryID]; ok {
			out = append(out, SimilarEntry{Entry: e, Score: m.Score})
		}
	}
	return out, nil
}

func diaryErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, diary.ErrNotFound):
		return newError(ErrNotFound, "Diary entry not found")
	}
	log.Warn().Err(err).Msg("Diary store operation failed")
	return newError(ErrUnavailable, "Diary store unavailable")
}
