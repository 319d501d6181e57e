package worker

import (
	"net/http"

	"github.com/thebtf/habitgraph/internal/graph"
)

func (s *Service) handleAddFriend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FriendUserID int64 `json:"friend_user_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.core.AddFriend(r.Context(), currentUser(r), req.FriendUserID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Service) handleListFriends(w http.ResponseWriter, r *http.Request) {
	friends, err := s.core.ListFriends(r.Context(), currentUser(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, friends)
}

func (s *Service) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", graph.DefaultRecommendLimit)
	if !ok {
		return
	}
	recs, err := s.core.Recommendations(r.Context(), currentUser(r).ID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, recs)
}
