package worker

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/thebtf/habitgraph/internal/core"
	"github.com/thebtf/habitgraph/internal/diary"
	"github.com/thebtf/habitgraph/internal/vector"
)

// diaryPatch is the PUT body. Absent fields are left unchanged.
type diaryPatch struct {
	Text     *string        `json:"text"`
	Tags     *[]string      `json:"tags"`
	Mood     *string        `json:"mood"`
	Metadata map[string]any `json:"metadata"`
}

func (s *Service) handleCreateDiary(w http.ResponseWriter, r *http.Request) {
	var in core.DiaryInput
	if !decodeJSON(w, r, &in) {
		return
	}
	e, err := s.core.CreateDiaryEntry(r.Context(), currentUser(r).ID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, e)
}

func (s *Service) handleListDiary(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", diary.DefaultListLimit)
	if !ok {
		return
	}
	offset, ok := queryInt(w, r, "offset", 0)
	if !ok {
		return
	}
	entries, err := s.core.ListDiary(r.Context(), currentUser(r).ID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, entries)
}

func (s *Service) handleSimilarDiary(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", vector.DefaultSearchLimit)
	if !ok {
		return
	}
	similar, err := s.core.SimilarDiary(r.Context(), currentUser(r).ID, r.URL.Query().Get("text"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, similar)
}

func (s *Service) handleGetDiary(w http.ResponseWriter, r *http.Request) {
	e, err := s.core.GetDiaryEntry(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, e)
}

func (s *Service) handleUpdateDiary(w http.ResponseWriter, r *http.Request) {
	var req diaryPatch
	if !decodeJSON(w, r, &req) {
		return
	}
	e, err := s.core.UpdateDiaryEntry(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"), diary.Patch{
		Text:     req.Text,
		Tags:     req.Tags,
		Mood:     req.Mood,
		Metadata: req.Metadata,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, e)
}

func (s *Service) handleDeleteDiary(w http.ResponseWriter, r *http.Request) {
	if err := s.core.DeleteDiaryEntry(r.Context(), currentUser(r).ID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}
