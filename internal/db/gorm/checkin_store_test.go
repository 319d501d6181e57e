package gorm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return d
}

func seedHabit(t *testing.T, store *Store, userID int64, title string) *Habit {
	t.Helper()
	ctx := context.Background()
	_, _, err := NewUserStore(store).EnsureUser(ctx, userID)
	require.NoError(t, err)
	habit, err := NewHabitStore(store).CreateHabit(ctx, NewHabit{UserID: userID, Title: title})
	require.NoError(t, err)
	return habit
}

func TestCheckinStore_CreateCheckin_DuplicateIsConflict(t *testing.T) {
	store := newTestStore(t)
	checkins := NewCheckinStore(store)
	ctx := context.Background()
	habit := seedHabit(t, store, 1, "Run")

	first, err := checkins.CreateCheckin(ctx, 1, habit.ID, date("2024-01-05"))
	require.NoError(t, err)
	assert.Greater(t, first.ID, int64(0))

	// Same calendar day at a different time of day is still a duplicate.
	_, err = checkins.CreateCheckin(ctx, 1, habit.ID, date("2024-01-05").Add(15*time.Hour))
	require.ErrorIs(t, err, ErrConflict)

	var n int64
	require.NoError(t, store.DB.Model(&Checkin{}).Count(&n).Error)
	assert.Equal(t, int64(1), n, "duplicate must not create a row")
}

func TestCheckinStore_CreateCheckin_OtherDayOrHabitAllowed(t *testing.T) {
	store := newTestStore(t)
	checkins := NewCheckinStore(store)
	ctx := context.Background()
	run := seedHabit(t, store, 1, "Run")
	read := seedHabit(t, store, 1, "Read")

	_, err := checkins.CreateCheckin(ctx, 1, run.ID, date("2024-01-05"))
	require.NoError(t, err)
	_, err = checkins.CreateCheckin(ctx, 1, run.ID, date("2024-01-06"))
	require.NoError(t, err)
	_, err = checkins.CreateCheckin(ctx, 1, read.ID, date("2024-01-05"))
	require.NoError(t, err)
}

func TestCheckinStore_RecentDates(t *testing.T) {
	store := newTestStore(t)
	checkins := NewCheckinStore(store)
	ctx := context.Background()
	habit := seedHabit(t, store, 1, "Run")

	for _, d := range []string{"2024-01-02", "2024-01-05", "2024-01-03", "2024-01-04"} {
		_, err := checkins.CreateCheckin(ctx, 1, habit.ID, date(d))
		require.NoError(t, err)
	}

	dates, err := checkins.RecentDates(ctx, 1, habit.ID, 3)
	require.NoError(t, err)
	require.Len(t, dates, 3)
	assert.True(t, dates[0].Equal(date("2024-01-05")))
	assert.True(t, dates[1].Equal(date("2024-01-04")))
	assert.True(t, dates[2].Equal(date("2024-01-03")))

	other, err := checkins.RecentDates(ctx, 2, habit.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestCheckinStore_StatsAndCounts(t *testing.T) {
	store := newTestStore(t)
	checkins := NewCheckinStore(store)
	ctx := context.Background()
	run := seedHabit(t, store, 1, "Run")
	read := seedHabit(t, store, 1, "Read")

	for _, d := range []string{"2024-01-01", "2024-01-03", "2024-01-04"} {
		_, err := checkins.CreateCheckin(ctx, 1, run.ID, date(d))
		require.NoError(t, err)
	}
	_, err := checkins.CreateCheckin(ctx, 1, read.ID, date("2024-01-04"))
	require.NoError(t, err)

	stats, err := checkins.HabitStats(ctx, 1, []int64{run.ID, read.ID, 999})
	require.NoError(t, err)
	require.Contains(t, stats, run.ID)
	assert.Equal(t, int64(3), stats[run.ID].Total)
	require.NotNil(t, stats[run.ID].LastDate)
	assert.True(t, stats[run.ID].LastDate.Equal(date("2024-01-04")))
	assert.Equal(t, int64(1), stats[read.ID].Total)
	assert.NotContains(t, stats, int64(999))

	n, err := checkins.CountSince(ctx, 1, date("2024-01-03"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	done, err := checkins.DoneOn(ctx, 1, []int64{run.ID, read.ID}, date("2024-01-03"))
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{run.ID: true}, done)

	daily, err := checkins.DailyCounts(ctx, 1, date("2024-01-02"))
	require.NoError(t, err)
	assert.Equal(t, 1, daily[date("2024-01-03")])
	assert.Equal(t, 2, daily[date("2024-01-04")])
	assert.Zero(t, daily[date("2024-01-01")])
}

func TestCheckinStore_HabitStats_Empty(t *testing.T) {
	store := newTestStore(t)
	stats, err := NewCheckinStore(store).HabitStats(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Empty(t, stats)
}
