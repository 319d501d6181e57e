package worker

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/habitgraph/internal/core"
	"github.com/thebtf/habitgraph/internal/db/gorm"
)

// writeJSON writes a JSON response with proper error handling.
func writeJSON(w http.ResponseWriter, data interface{}) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError maps service errors to status codes. Unknown errors are logged
// and reported without detail.
func writeError(w http.ResponseWriter, err error) {
	msg := err.Error()
	var code int
	switch {
	case errors.Is(err, core.ErrInvalid):
		code = http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, core.ErrConflict):
		code = http.StatusConflict
	case errors.Is(err, core.ErrUnavailable):
		code = http.StatusServiceUnavailable
	default:
		log.Error().Err(err).Msg("Request failed")
		code = http.StatusInternalServerError
		msg = "internal error"
	}
	http.Error(w, msg, code)
}

// decodeJSON reads the request body into dst, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// queryInt parses an optional integer query parameter.
func queryInt(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		http.Error(w, "invalid "+name, http.StatusBadRequest)
		return 0, false
	}
	return n, true
}

// pathID parses a positive integer path parameter.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

type userOut struct {
	CreatedAt time.Time `json:"created_at"`
	Username  string    `json:"username"`
	ID        int64     `json:"id"`
}

func toUser(u *gorm.User) userOut {
	return userOut{ID: u.ID, Username: u.Username, CreatedAt: u.CreatedAt}
}

type habitOut struct {
	CreatedAt    time.Time `json:"created_at"`
	Frequency    *string   `json:"frequency"`
	TargetValue  *int64    `json:"target_value"`
	TargetUnit   *string   `json:"target_unit"`
	ReminderTime *string   `json:"reminder_time"`
	GoalID       *int64    `json:"goal_id"`
	Title        string    `json:"title"`
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	IsArchived   bool      `json:"is_archived"`
}

func toHabit(h *gorm.Habit) habitOut {
	return habitOut{
		ID:           h.ID,
		UserID:       h.UserID,
		Title:        h.Title,
		Frequency:    nullString(h.Frequency),
		TargetValue:  nullInt(h.TargetValue),
		TargetUnit:   nullString(h.TargetUnit),
		ReminderTime: nullString(h.ReminderTime),
		GoalID:       nullInt(h.GoalID),
		IsArchived:   h.IsArchived,
		CreatedAt:    h.CreatedAt,
	}
}

type goalOut struct {
	CreatedAt   time.Time `json:"created_at"`
	Description *string   `json:"description"`
	CatalogID   *string   `json:"catalog_id"`
	Title       string    `json:"title"`
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	IsArchived  bool      `json:"is_archived"`
}

func toGoal(g *gorm.Goal) goalOut {
	return goalOut{
		ID:          g.ID,
		UserID:      g.UserID,
		Title:       g.Title,
		Description: nullString(g.Description),
		CatalogID:   nullString(g.CatalogID),
		IsArchived:  g.IsArchived,
		CreatedAt:   g.CreatedAt,
	}
}

type checkinOut struct {
	Date    core.Date `json:"date"`
	ID      int64     `json:"id"`
	UserID  int64     `json:"user_id"`
	HabitID int64     `json:"habit_id"`
}

// handleHealth always answers 200 so probes can tell the process is up.
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleReady reports per-store status; 503 until the record store answers.
func (s *Service) handleReady(w http.ResponseWriter, r *http.Request) {
	h := s.app.Health(r.Context())
	code := http.StatusOK
	if !h.Ready {
		code = http.StatusServiceUnavailable
	}
	writeJSONStatus(w, code, h)
}

// handleEvents streams the caller's events over SSE.
func (s *Service) handleEvents(w http.ResponseWriter, r *http.Request) {
	s.app.Broadcaster.Serve(w, r, GetUserID(r.Context()))
}

func (s *Service) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := s.core.CreateUser(r.Context(), req.Username)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, toUser(u))
}

func (s *Service) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.core.ListUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]userOut, len(users))
	for i := range users {
		out[i] = toUser(&users[i])
	}
	writeJSON(w, out)
}
