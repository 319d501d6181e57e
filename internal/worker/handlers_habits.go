package worker

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/thebtf/habitgraph/internal/core"
)

func (s *Service) handleCreateHabit(w http.ResponseWriter, r *http.Request) {
	var in core.HabitInput
	if !decodeJSON(w, r, &in) {
		return
	}
	h, err := s.core.CreateHabit(r.Context(), currentUser(r).ID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, toHabit(h))
}

func (s *Service) handleListHabits(w http.ResponseWriter, r *http.Request) {
	habits, err := s.core.ListHabits(r.Context(), currentUser(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]habitOut, len(habits))
	for i := range habits {
		out[i] = toHabit(&habits[i])
	}
	writeJSON(w, out)
}

func (s *Service) handleArchiveHabit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	h, err := s.core.ArchiveHabit(r.Context(), currentUser(r).ID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, toHabit(h))
}

func (s *Service) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description *string `json:"description"`
		Title       string  `json:"title"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	g, err := s.core.CreateGoal(r.Context(), currentUser(r).ID, req.Title, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, toGoal(g))
}

func (s *Service) handleListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := s.core.ListGoals(r.Context(), currentUser(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]goalOut, len(goals))
	for i := range goals {
		out[i] = toGoal(&goals[i])
	}
	writeJSON(w, out)
}

func (s *Service) handleGoalCatalog(w http.ResponseWriter, r *http.Request) {
	items, err := s.core.GoalCatalog(r.Context(), currentUser(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, items)
}

func (s *Service) handleSelectCatalogGoal(w http.ResponseWriter, r *http.Request) {
	g, err := s.core.SelectCatalogGoal(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, toGoal(g))
}

func (s *Service) handleUnselectCatalogGoal(w http.ResponseWriter, r *http.Request) {
	g, err := s.core.UnselectCatalogGoal(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, toGoal(g))
}

func (s *Service) handleCreateCheckin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date    *string `json:"date"`
		HabitID int64   `json:"habit_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.HabitID <= 0 {
		http.Error(w, "habit_id is required", http.StatusBadRequest)
		return
	}
	var date *time.Time
	if req.Date != nil && *req.Date != "" {
		d, err := time.Parse(time.DateOnly, *req.Date)
		if err != nil {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		date = &d
	}

	c, err := s.core.RecordCheckin(r.Context(), currentUser(r).ID, req.HabitID, date)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, checkinOut{ID: c.ID, UserID: c.UserID, HabitID: c.HabitID, Date: core.Date(c.Date)})
}

func (s *Service) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.core.Dashboard(r.Context(), currentUser(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, d)
}

func (s *Service) handleDashboardSummary(w http.ResponseWriter, r *http.Request) {
	d, err := s.core.Summary(r.Context(), currentUser(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, d)
}

func (s *Service) handleOverview(w http.ResponseWriter, r *http.Request) {
	o, err := s.core.Overview(r.Context(), currentUser(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, o)
}
