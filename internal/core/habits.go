package core

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/thebtf/habitgraph/internal/db/gorm"
)

// HabitInput is the payload for creating a habit.
type HabitInput struct {
	Frequency    *string `json:"frequency"`
	TargetValue  *int64  `json:"target_value"`
	TargetUnit   *string `json:"target_unit"`
	ReminderTime *string `json:"reminder_time"`
	GoalID       *int64  `json:"goal_id"`
	Title        string  `json:"title"`
}

// CreateHabit adds a habit for the user.
func (s *Service) CreateHabit(ctx context.Context, userID int64, in HabitInput) (*gorm.Habit, error) {
	title, err := validateTitle("title", in.Title)
	if err != nil {
		return nil, err
	}
	if in.ReminderTime != nil {
		if _, err := time.Parse("15:04", *in.ReminderTime); err != nil {
			return nil, newError(ErrInvalid, "reminder_time must be HH:MM")
		}
	}
	if in.TargetValue != nil && *in.TargetValue < 0 {
		return nil, newError(ErrInvalid, "target_value must not be negative")
	}
	if in.GoalID != nil {
		ids, err := s.goals.GoalIDs(ctx, userID)
		if err != nil {
			return nil, recordErr(err, "Goal")
		}
		if !slices.Contains(ids, *in.GoalID) {
			return nil, newError(ErrNotFound, "Goal not found")
		}
	}

	habit, err := s.habits.CreateHabit(ctx, gorm.NewHabit{
		UserID:       userID,
		Title:        title,
		Frequency:    in.Frequency,
		TargetValue:  in.TargetValue,
		TargetUnit:   in.TargetUnit,
		ReminderTime: in.ReminderTime,
		GoalID:       in.GoalID,
	})
	if err != nil {
		return nil, recordErr(err, "Habit")
	}
	s.prop.HabitCreated(ctx, habit)
	return habit, nil
}

// ListHabits returns the user's active habits ordered by id.
func (s *Service) ListHabits(ctx context.Context, userID int64) ([]gorm.Habit, error) {
	habits, err := s.habits.ListHabits(ctx, userID, false)
	return habits, recordErr(err, "Habits")
}

// ArchiveHabit hides a habit from dashboards and recommendations. Checkins are kept.
func (s *Service) ArchiveHabit(ctx context.Context, userID, habitID int64) (*gorm.Habit, error) {
	habit, err := s.habits.ArchiveHabit(ctx, userID, habitID)
	if err != nil {
		return nil, recordErr(err, "Habit")
	}
	s.prop.HabitArchived(ctx, habit)
	return habit, nil
}

// RecordCheckin marks a habit done on date, or today when date is nil.
func (s *Service) RecordCheckin(ctx context.Context, userID, habitID int64, date *time.Time) (*gorm.Checkin, error) {
	day := s.Today()
	if date != nil {
		day = gorm.Day(*date)
	}

	if _, err := s.habits.GetHabit(ctx, userID, habitID); err != nil {
		return nil, recordErr(err, "Habit")
	}

	checkin, err := s.checkins.CreateCheckin(ctx, userID, habitID, day)
	if errors.Is(err, gorm.ErrConflict) {
		return nil, newError(ErrConflict, "Check-in already exists for this day")
	}
	if err != nil {
		return nil, recordErr(err, "Check-in")
	}
	s.prop.CheckinRecorded(ctx, checkin)
	return checkin, nil
}

// Streak returns the user's current streak for a habit.
func (s *Service) Streak(ctx context.Context, userID, habitID int64) int {
	return s.streaks.Get(ctx, userID, habitID)
}
