package gorm

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GoalStore provides goal-related database operations.
type GoalStore struct {
	db *gorm.DB
}

// NewGoalStore creates a new goal store.
func NewGoalStore(store *Store) *GoalStore {
	return &GoalStore{db: store.DB}
}

// CreateGoal inserts a free-form goal.
func (s *GoalStore) CreateGoal(ctx context.Context, userID int64, title string, description *string) (*Goal, error) {
	goal := &Goal{
		UserID:      userID,
		Title:       title,
		Description: nullString(description),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(goal).Error; err != nil {
		return nil, translate(err)
	}
	return goal, nil
}

// ListGoals returns the user's goals ordered by id.
func (s *GoalStore) ListGoals(ctx context.Context, userID int64, includeArchived bool) ([]Goal, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if !includeArchived {
		q = q.Where("is_archived = ?", false)
	}
	var goals []Goal
	err := q.Order("id ASC").Find(&goals).Error
	return goals, err
}

// ActiveCatalogIDs returns the catalog ids the user currently has selected.
func (s *GoalStore) ActiveCatalogIDs(ctx context.Context, userID int64) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&Goal{}).
		Where("user_id = ? AND is_archived = ? AND catalog_id IS NOT NULL", userID, false).
		Order("catalog_id ASC").
		Pluck("catalog_id", &ids).Error
	return ids, err
}

// SelectCatalogGoal creates the user's goal for a catalog entry, or reactivates
// an archived one. The boolean reports whether the goal was newly active.
func (s *GoalStore) SelectCatalogGoal(ctx context.Context, userID int64, catalogID, title string, description *string) (*Goal, bool, error) {
	db := s.db.WithContext(ctx)

	existing, err := s.findCatalogGoal(ctx, userID, catalogID)
	switch {
	case err == nil:
		if !existing.IsArchived {
			return existing, false, nil
		}
		if err := db.Model(existing).Update("is_archived", false).Error; err != nil {
			return nil, false, translate(err)
		}
		existing.IsArchived = false
		return existing, true, nil
	case !errors.Is(err, ErrNotFound):
		return nil, false, err
	}

	goal := &Goal{
		UserID:      userID,
		Title:       title,
		Description: nullString(description),
		CatalogID:   nullString(&catalogID),
		CreatedAt:   time.Now().UTC(),
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "catalog_id"}},
		DoNothing: true,
	}).Create(goal)
	if result.Error != nil {
		return nil, false, translate(result.Error)
	}
	if result.RowsAffected == 0 {
		// A concurrent select won the insert.
		existing, err := s.findCatalogGoal(ctx, userID, catalogID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	return goal, true, nil
}

// ArchiveCatalogGoal archives the user's goal for a catalog entry.
func (s *GoalStore) ArchiveCatalogGoal(ctx context.Context, userID int64, catalogID string) (*Goal, error) {
	goal, err := s.findCatalogGoal(ctx, userID, catalogID)
	if err != nil {
		return nil, err
	}
	if goal.IsArchived {
		return goal, nil
	}
	if err := s.db.WithContext(ctx).Model(goal).Update("is_archived", true).Error; err != nil {
		return nil, translate(err)
	}
	goal.IsArchived = true
	return goal, nil
}

func (s *GoalStore) findCatalogGoal(ctx context.Context, userID int64, catalogID string) (*Goal, error) {
	var goal Goal
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND catalog_id = ?", userID, catalogID).
		First(&goal).Error
	if err != nil {
		return nil, translate(err)
	}
	return &goal, nil
}

// CountActiveGoals returns the number of non-archived goals of the user.
func (s *GoalStore) CountActiveGoals(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&Goal{}).
		Where("user_id = ? AND is_archived = ?", userID, false).
		Count(&n).Error
	return n, err
}

// GoalIDs returns ids of the user's active goals.
func (s *GoalStore) GoalIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).
		Model(&Goal{}).
		Where("user_id = ? AND is_archived = ?", userID, false).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// ResetGoals deletes every goal and detaches habits from them.
// Returns the number of deleted goals.
func (s *GoalStore) ResetGoals(ctx context.Context) (int64, error) {
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Habit{}).
			Where("goal_id IS NOT NULL").
			Update("goal_id", nil).Error; err != nil {
			return err
		}
		result := tx.Where("1 = 1").Delete(&Goal{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected
		return nil
	})
	return deleted, err
}
