package gorm

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// NewHabit describes a habit to create. Optional fields are nil when unset.
type NewHabit struct {
	Frequency    *string
	TargetValue  *int64
	TargetUnit   *string
	ReminderTime *string
	GoalID       *int64
	Title        string
	UserID       int64
}

// HabitStore provides habit-related database operations.
type HabitStore struct {
	db *gorm.DB
}

// NewHabitStore creates a new habit store.
func NewHabitStore(store *Store) *HabitStore {
	return &HabitStore{db: store.DB}
}

// CreateHabit inserts a habit.
func (s *HabitStore) CreateHabit(ctx context.Context, in NewHabit) (*Habit, error) {
	habit := &Habit{
		UserID:       in.UserID,
		Title:        in.Title,
		Frequency:    nullString(in.Frequency),
		TargetValue:  nullInt64(in.TargetValue),
		TargetUnit:   nullString(in.TargetUnit),
		ReminderTime: nullString(in.ReminderTime),
		GoalID:       nullInt64(in.GoalID),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(habit).Error; err != nil {
		return nil, translate(err)
	}
	return habit, nil
}

// GetHabit returns a habit owned by userID. Habits of other users are ErrNotFound.
func (s *HabitStore) GetHabit(ctx context.Context, userID, habitID int64) (*Habit, error) {
	var habit Habit
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", habitID, userID).
		First(&habit).Error
	if err != nil {
		return nil, translate(err)
	}
	return &habit, nil
}

// FindHabitByTitle returns the user's habit with the exact title.
func (s *HabitStore) FindHabitByTitle(ctx context.Context, userID int64, title string) (*Habit, error) {
	var habit Habit
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND title = ?", userID, title).
		Order("id ASC").
		First(&habit).Error
	if err != nil {
		return nil, translate(err)
	}
	return &habit, nil
}

// ListHabits returns the user's habits ordered by id.
func (s *HabitStore) ListHabits(ctx context.Context, userID int64, includeArchived bool) ([]Habit, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if !includeArchived {
		q = q.Where("is_archived = ?", false)
	}
	var habits []Habit
	err := q.Order("id ASC").Find(&habits).Error
	return habits, err
}

// ArchiveHabit marks a habit archived. Archiving twice is a no-op.
func (s *HabitStore) ArchiveHabit(ctx context.Context, userID, habitID int64) (*Habit, error) {
	habit, err := s.GetHabit(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}
	if habit.IsArchived {
		return habit, nil
	}
	err = s.db.WithContext(ctx).
		Model(habit).
		Update("is_archived", true).Error
	if err != nil {
		return nil, translate(err)
	}
	habit.IsArchived = true
	return habit, nil
}

// HabitIDs returns ids of the user's active habits.
func (s *HabitStore) HabitIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).
		Model(&Habit{}).
		Where("user_id = ? AND is_archived = ?", userID, false).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}
