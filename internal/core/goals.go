package core

import (
	"context"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/habitgraph/internal/db/gorm"
	"github.com/thebtf/habitgraph/internal/graph"
)

// CatalogItem is a catalog goal with the caller's selection state.
type CatalogItem struct {
	graph.CatalogGoal
	Selected bool `json:"selected"`
}

// CreateGoal adds a free-form goal.
func (s *Service) CreateGoal(ctx context.Context, userID int64, title string, description *string) (*gorm.Goal, error) {
	title, err := validateTitle("title", title)
	if err != nil {
		return nil, err
	}
	goal, err := s.goals.CreateGoal(ctx, userID, title, description)
	if err != nil {
		return nil, recordErr(err, "Goal")
	}
	s.prop.GoalCreated(ctx, goal)
	return goal, nil
}

// ListGoals returns the user's active goals ordered by id.
func (s *Service) ListGoals(ctx context.Context, userID int64) ([]gorm.Goal, error) {
	goals, err := s.goals.ListGoals(ctx, userID, false)
	return goals, recordErr(err, "Goals")
}

// EnsureCatalog writes the catalog goal nodes to the graph.
func (s *Service) EnsureCatalog(ctx context.Context) error {
	return s.graph.EnsureGoalCatalog(ctx, s.catalog)
}

// GoalCatalog lists catalog goals from the graph, falling back to the
// embedded catalog when the graph is unreachable or not yet seeded.
func (s *Service) GoalCatalog(ctx context.Context, userID int64) ([]CatalogItem, error) {
	goals, err := s.graph.ListGoalCatalog(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Goal catalog read from graph failed, using embedded catalog")
	}
	if err != nil || len(goals) == 0 {
		goals = s.catalog
	}

	selected, err := s.goals.ActiveCatalogIDs(ctx, userID)
	if err != nil {
		return nil, recordErr(err, "Goals")
	}
	items := make([]CatalogItem, len(goals))
	for i, g := range goals {
		items[i] = CatalogItem{CatalogGoal: g, Selected: slices.Contains(selected, g.ID)}
	}
	return items, nil
}

func (s *Service) catalogEntry(id string) (graph.CatalogGoal, bool) {
	for _, g := range s.catalog {
		if g.ID == id {
			return g, true
		}
	}
	return graph.CatalogGoal{}, false
}

// SelectCatalogGoal creates or reactivates the user's goal for a catalog entry.
func (s *Service) SelectCatalogGoal(ctx context.Context, userID int64, catalogID string) (*gorm.Goal, error) {
	entry, ok := s.catalogEntry(catalogID)
	if !ok {
		return nil, newError(ErrNotFound, "Catalog goal not found")
	}
	var desc *string
	if entry.Description != "" {
		desc = &entry.Description
	}
	goal, _, err := s.goals.SelectCatalogGoal(ctx, userID, entry.ID, entry.Title, desc)
	if err != nil {
		return nil, recordErr(err, "Goal")
	}
	// Re-selecting re-propagates; graph merges make that a repair, not a duplicate.
	s.prop.GoalSelected(ctx, goal, entry.ID)
	return goal, nil
}

// UnselectCatalogGoal archives the user's goal for a catalog entry.
func (s *Service) UnselectCatalogGoal(ctx context.Context, userID int64, catalogID string) (*gorm.Goal, error) {
	goal, err := s.goals.ArchiveCatalogGoal(ctx, userID, catalogID)
	if err != nil {
		return nil, recordErr(err, "Goal")
	}
	s.prop.GoalUnselected(ctx, goal, catalogID)
	return goal, nil
}

// ResetGoals deletes every goal row, then clears goal nodes from the graph and
// re-seeds the catalog. Habits and diary entries are kept.
func (s *Service) ResetGoals(ctx context.Context) (int64, error) {
	deleted, err := s.goals.ResetGoals(ctx)
	if err != nil {
		return 0, recordErr(err, "Goals")
	}
	s.prop.GoalsReset(ctx, deleted, s.catalog)
	return deleted, nil
}
