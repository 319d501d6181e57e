package gorm

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HabitStat aggregates checkins of one habit.
type HabitStat struct {
	LastDate *time.Time
	Total    int64
}

// CheckinStore provides checkin-related database operations.
type CheckinStore struct {
	db *gorm.DB
}

// NewCheckinStore creates a new checkin store.
func NewCheckinStore(store *Store) *CheckinStore {
	return &CheckinStore{db: store.DB}
}

// CreateCheckin records a checkin for the calendar day of date.
// A second checkin for the same user, habit and day returns ErrConflict and
// leaves the existing row untouched.
func (s *CheckinStore) CreateCheckin(ctx context.Context, userID, habitID int64, date time.Time) (*Checkin, error) {
	checkin := &Checkin{
		UserID:  userID,
		HabitID: habitID,
		Date:    Day(date),
	}

	// INSERT ... ON CONFLICT DO NOTHING: zero rows affected means the day is taken.
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "habit_id"}, {Name: "date"}},
			DoNothing: true,
		}).
		Create(checkin)
	if result.Error != nil {
		return nil, translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: habit %d already checked in on %s", ErrConflict, habitID, checkin.Date.Format(time.DateOnly))
	}
	return checkin, nil
}

// RecentDates returns up to limit checkin days for the habit, most recent first.
func (s *CheckinStore) RecentDates(ctx context.Context, userID, habitID int64, limit int) ([]time.Time, error) {
	var dates []time.Time
	err := s.db.WithContext(ctx).
		Model(&Checkin{}).
		Where("user_id = ? AND habit_id = ?", userID, habitID).
		Order("date DESC").
		Limit(limit).
		Pluck("date", &dates).Error
	if err != nil {
		return nil, err
	}
	for i := range dates {
		dates[i] = Day(dates[i])
	}
	return dates, nil
}

// HabitStats returns total checkins and the latest checkin day per habit.
// Habits without checkins are absent from the map.
func (s *CheckinStore) HabitStats(ctx context.Context, userID int64, habitIDs []int64) (map[int64]HabitStat, error) {
	stats := make(map[int64]HabitStat, len(habitIDs))
	if len(habitIDs) == 0 {
		return stats, nil
	}

	var rows []struct {
		HabitID int64
		Total   int64
	}
	err := s.db.WithContext(ctx).
		Model(&Checkin{}).
		Select("habit_id, COUNT(*) AS total").
		Where("user_id = ? AND habit_id IN ?", userID, habitIDs).
		Group("habit_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		last, err := s.RecentDates(ctx, userID, row.HabitID, 1)
		if err != nil {
			return nil, err
		}
		stat := HabitStat{Total: row.Total}
		if len(last) > 0 {
			stat.LastDate = &last[0]
		}
		stats[row.HabitID] = stat
	}
	return stats, nil
}

// DoneOn returns the habits among habitIDs the user checked in on day.
func (s *CheckinStore) DoneOn(ctx context.Context, userID int64, habitIDs []int64, day time.Time) (map[int64]bool, error) {
	done := make(map[int64]bool, len(habitIDs))
	if len(habitIDs) == 0 {
		return done, nil
	}
	var ids []int64
	err := s.db.WithContext(ctx).
		Model(&Checkin{}).
		Where("user_id = ? AND habit_id IN ? AND date = ?", userID, habitIDs, Day(day)).
		Pluck("habit_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		done[id] = true
	}
	return done, nil
}

// CountSince returns the number of the user's checkins on or after since.
func (s *CheckinStore) CountSince(ctx context.Context, userID int64, since time.Time) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&Checkin{}).
		Where("user_id = ? AND date >= ?", userID, Day(since)).
		Count(&n).Error
	return n, err
}

// DailyCounts returns the number of the user's checkins per day on or after since.
func (s *CheckinStore) DailyCounts(ctx context.Context, userID int64, since time.Time) (map[time.Time]int, error) {
	var dates []time.Time
	err := s.db.WithContext(ctx).
		Model(&Checkin{}).
		Where("user_id = ? AND date >= ?", userID, Day(since)).
		Pluck("date", &dates).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[time.Time]int)
	for _, d := range dates {
		counts[Day(d)]++
	}
	return counts, nil
}
