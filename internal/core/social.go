package core

import (
	"context"
	"fmt"

	"github.com/thebtf/habitgraph/internal/db/gorm"
	"github.com/thebtf/habitgraph/internal/graph"
)

func graphErr(err error) error {
	return &Error{Kind: ErrUnavailable, Detail: fmt.Sprintf("Graph store unavailable: %v", err)}
}

// AddFriend creates a symmetric friendship. The graph is the only store of
// friendships, so its failure is returned.
func (s *Service) AddFriend(ctx context.Context, user *gorm.User, friendID int64) error {
	if friendID == user.ID {
		return newError(ErrInvalid, "Cannot add yourself as a friend")
	}
	if friendID <= 0 {
		return newError(ErrInvalid, "friend_user_id must be positive")
	}
	if err := s.graph.AddFriend(ctx, user.ID, friendID); err != nil {
		return graphErr(err)
	}
	s.prop.FriendAdded(ctx, user.ID, friendID)
	return nil
}

// ListFriends returns the user's friends ordered by id.
func (s *Service) ListFriends(ctx context.Context, userID int64) ([]graph.Friend, error) {
	friends, err := s.graph.ListFriends(ctx, userID)
	if err != nil {
		return nil, graphErr(err)
	}
	return friends, nil
}

// Recommendations ranks non-friends by shared goals and habits.
func (s *Service) Recommendations(ctx context.Context, userID int64, limit int) ([]graph.Recommendation, error) {
	if limit <= 0 {
		limit = graph.DefaultRecommendLimit
	}
	recs, err := s.graph.RecommendUsers(ctx, userID, graph.ClampLimit(limit))
	if err != nil {
		return nil, graphErr(err)
	}
	return recs, nil
}
