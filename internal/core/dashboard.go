package core

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/habitgraph/internal/db/gorm"
)

// ActivityDays is the length of the activity window ending today.
const ActivityDays = 7

// Date is a calendar day encoded as YYYY-MM-DD.
type Date time.Time

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(d).Format(time.DateOnly) + `"`), nil
}

func (d Date) String() string { return time.Time(d).Format(time.DateOnly) }

// HabitStats is one dashboard row.
type HabitStats struct {
	LastCheckin   *Date  `json:"last_checkin"`
	Title         string `json:"title"`
	HabitID       int64  `json:"habit_id"`
	TotalCheckins int64  `json:"total_checkins"`
	Streak        int    `json:"streak"`
}

// Dashboard lists active habits with streaks.
type Dashboard struct {
	Habits []HabitStats `json:"habits"`
	UserID int64        `json:"user_id"`
}

// TodayHabit reports whether a habit was checked in today.
type TodayHabit struct {
	Title   string `json:"title"`
	HabitID int64  `json:"habit_id"`
	Done    bool   `json:"done"`
}

// ActivityPoint is the checkin count of one day.
type ActivityPoint struct {
	Date  Date `json:"date"`
	Count int  `json:"count"`
}

// Summary is the compact dashboard.
type Summary struct {
	HabitsToday  []TodayHabit    `json:"habits_today"`
	WeekActivity []ActivityPoint `json:"week_activity"`
	UserID       int64           `json:"user_id"`
	TodayDone    int             `json:"today_done"`
	TodayTotal   int             `json:"today_total"`
	StreakTotal  int             `json:"streak_total"`
	HabitsCount  int             `json:"habits_count"`
	GoalsCount   int64           `json:"goals_count"`
	DiaryEntries int64           `json:"diary_entries"`
}

// Overview is the profile summary with tips.
type Overview struct {
	Tips              []string `json:"tips"`
	UserID            int64    `json:"user_id"`
	HabitsCount       int      `json:"habits_count"`
	GoalsCount        int64    `json:"goals_count"`
	DiaryEntries      int64    `json:"diary_entries"`
	CheckinsLast7Days int64    `json:"checkins_last_7_days"`
	StreakTotal       int      `json:"streak_total"`
}

// Tips shown by Overview.
const (
	TipFirstHabit = "Create your first habit or pick a goal from the catalog."
	TipCheckIn    = "Check in at least one habit."
	TipDiary      = "Add a diary entry to get recommendations."
)

func (s *Service) activeHabits(ctx context.Context, userID int64) ([]gorm.Habit, map[int64]gorm.HabitStat, error) {
	habits, err := s.habits.ListHabits(ctx, userID, false)
	if err != nil {
		return nil, nil, recordErr(err, "Habits")
	}
	ids := make([]int64, len(habits))
	for i, h := range habits {
		ids[i] = h.ID
	}
	stats, err := s.checkins.HabitStats(ctx, userID, ids)
	if err != nil {
		return nil, nil, recordErr(err, "Check-ins")
	}
	return habits, stats, nil
}

// Dashboard returns per-habit streak, total and last checkin day.
func (s *Service) Dashboard(ctx context.Context, userID int64) (*Dashboard, error) {
	habits, stats, err := s.activeHabits(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := &Dashboard{UserID: userID, Habits: make([]HabitStats, 0, len(habits))}
	for _, h := range habits {
		st := stats[h.ID]
		row := HabitStats{
			HabitID:       h.ID,
			Title:         h.Title,
			Streak:        s.streaks.Get(ctx, userID, h.ID),
			TotalCheckins: st.Total,
		}
		if st.LastDate != nil {
			d := Date(*st.LastDate)
			row.LastCheckin = &d
		}
		out.Habits = append(out.Habits, row)
	}
	return out, nil
}

func (s *Service) streakTotal(ctx context.Context, userID int64, habits []gorm.Habit) int {
	total := 0
	for _, h := range habits {
		total += s.streaks.Get(ctx, userID, h.ID)
	}
	return total
}

// diaryCount degrades to 0 when the document store is unreachable.
func (s *Service) diaryCount(ctx context.Context, userID int64) int64 {
	if s.diary == nil {
		return 0
	}
	n, err := s.diary.Count(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("Diary count failed")
		return 0
	}
	return n
}

// Summary returns today's progress, the last seven days of activity and counts.
func (s *Service) Summary(ctx context.Context, userID int64) (*Summary, error) {
	today := s.Today()
	since := today.AddDate(0, 0, -(ActivityDays - 1))

	habits, err := s.habits.ListHabits(ctx, userID, false)
	if err != nil {
		return nil, recordErr(err, "Habits")
	}

	out := &Summary{
		UserID:      userID,
		TodayTotal:  len(habits),
		HabitsCount: len(habits),
		HabitsToday: make([]TodayHabit, 0, len(habits)),
	}
	ids := make([]int64, len(habits))
	for i, h := range habits {
		ids[i] = h.ID
	}
	doneToday, err := s.checkins.DoneOn(ctx, userID, ids, today)
	if err != nil {
		return nil, recordErr(err, "Check-ins")
	}
	for _, h := range habits {
		done := doneToday[h.ID]
		if done {
			out.TodayDone++
		}
		out.HabitsToday = append(out.HabitsToday, TodayHabit{HabitID: h.ID, Title: h.Title, Done: done})
	}

	counts, err := s.checkins.DailyCounts(ctx, userID, since)
	if err != nil {
		return nil, recordErr(err, "Check-ins")
	}
	out.WeekActivity = make([]ActivityPoint, ActivityDays)
	for i := range out.WeekActivity {
		d := since.AddDate(0, 0, i)
		out.WeekActivity[i] = ActivityPoint{Date: Date(d), Count: counts[d]}
	}

	out.StreakTotal = s.streakTotal(ctx, userID, habits)
	if out.GoalsCount, err = s.goals.CountActiveGoals(ctx, userID); err != nil {
		return nil, recordErr(err, "Goals")
	}
	out.DiaryEntries = s.diaryCount(ctx, userID)
	return out, nil
}

// Overview returns counts, recent activity and onboarding tips.
func (s *Service) Overview(ctx context.Context, userID int64) (*Overview, error) {
	since := s.Today().AddDate(0, 0, -(ActivityDays - 1))

	habits, err := s.habits.ListHabits(ctx, userID, false)
	if err != nil {
		return nil, recordErr(err, "Habits")
	}
	out := &Overview{UserID: userID, HabitsCount: len(habits), Tips: []string{}}
	if out.GoalsCount, err = s.goals.CountActiveGoals(ctx, userID); err != nil {
		return nil, recordErr(err, "Goals")
	}
	if out.CheckinsLast7Days, err = s.checkins.CountSince(ctx, userID, since); err != nil {
		return nil, recordErr(err, "Check-ins")
	}
	out.StreakTotal = s.streakTotal(ctx, userID, habits)
	out.DiaryEntries = s.diaryCount(ctx, userID)

	if out.HabitsCount == 0 {
		out.Tips = append(out.Tips, TipFirstHabit)
	}
	if out.CheckinsLast7Days == 0 && out.HabitsCount > 0 {
		out.Tips = append(out.Tips, TipCheckIn)
	}
	if out.DiaryEntries == 0 {
		out.Tips = append(out.Tips, TipDiary)
	}
	return out, nil
}
