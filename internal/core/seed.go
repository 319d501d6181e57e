package core

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/habitgraph/internal/db/gorm"
)

type seedHabit struct {
	title    string
	daysBack []int
}

type seedEntry struct {
	metadata map[string]any
	mood     string
	text     string
	tags     []string
}

type seedUser struct {
	name    string
	goals   []string
	habits  []seedHabit
	entries []seedEntry
}

var demoUsers = []seedUser{
	{
		name:  "alice",
		goals: []string{"improve-sleep"},
		habits: []seedHabit{
			{title: "10k steps", daysBack: []int{0, 1, 2, 3, 4}},
			{title: "Drink water", daysBack: []int{0, 2, 4}},
		},
		entries: []seedEntry{
			{
				text:     "Slept 7h, felt better. 10k steps done and drank enough water.",
				tags:     []string{"sleep", "steps", "water"},
				mood:     "good",
				metadata: map[string]any{"sleep_hours": 7, "steps": 10000},
			},
			{
				text:     "Bad mood today, but still walked 8k steps. Need to go to bed earlier.",
				tags:     []string{"steps", "sleep"},
				mood:     "meh",
				metadata: map[string]any{"steps": 8000},
			},
		},
	},
	{
		name:   "bob",
		goals:  []string{"lose-weight"},
		habits: []seedHabit{{title: "Gym", daysBack: []int{0, 1}}},
		entries: []seedEntry{{
			text:     "Gym session: squats and bench. Feeling strong!",
			tags:     []string{"gym", "workout"},
			mood:     "great",
			metadata: map[string]any{"workout": []string{"squat", "bench"}},
		}},
	},
	{
		name:   "carol",
		goals:  []string{"improve-sleep"},
		habits: []seedHabit{{title: "10k steps", daysBack: []int{0, 1, 3}}},
		entries: []seedEntry{{
			text:     "Trying to improve sleep schedule. Walked 10k steps, mood is calm.",
			tags:     []string{"sleep", "steps"},
			mood:     "calm",
			metadata: map[string]any{"steps": 10000},
		}},
	},
}

// SeedReport counts what Seed created.
type SeedReport struct {
	Users        int `json:"users"`
	Habits       int `json:"habits"`
	Checkins     int `json:"checkins"`
	DiaryEntries int `json:"diary_entries"`
}

// Seed loads demo users, habits, catalog goals, checkins, a friendship and
// diary entries. Running it again only fills in what is missing.
// Derived stores are written best-effort; streaks are recomputed at the end.
func (s *Service) Seed(ctx context.Context) (*SeedReport, error) {
	if err := s.EnsureCatalog(ctx); err != nil {
		log.Warn().Err(err).Msg("Seed: goal catalog not written to graph")
	}

	today := s.Today()
	report := &SeedReport{}
	users := make(map[string]*gorm.User, len(demoUsers))
	type pair struct{ user, habit int64 }
	var streaks []pair

	for _, su := range demoUsers {
		user, err := s.users.GetUserByUsername(ctx, su.name)
		if errors.Is(err, gorm.ErrNotFound) {
			user, err = s.CreateUser(ctx, su.name)
			report.Users++
		}
		if err != nil {
			return report, err
		}
		users[su.name] = user

		for _, sh := range su.habits {
			habit, err := s.habits.FindHabitByTitle(ctx, user.ID, sh.title)
			if errors.Is(err, gorm.ErrNotFound) {
				habit, err = s.CreateHabit(ctx, user.ID, HabitInput{Title: sh.title})
				report.Habits++
			}
			if err != nil {
				return report, err
			}
			for _, back := range sh.daysBack {
				_, err := s.checkins.CreateCheckin(ctx, user.ID, habit.ID, today.AddDate(0, 0, -back))
				switch {
				case err == nil:
					report.Checkins++
				case !errors.Is(err, gorm.ErrConflict):
					return report, recordErr(err, "Check-in")
				}
			}
			streaks = append(streaks, pair{user.ID, habit.ID})
		}

		for _, g := range su.goals {
			if _, err := s.SelectCatalogGoal(ctx, user.ID, g); err != nil {
				return report, err
			}
		}

		n, err := s.diary.Count(ctx, user.ID)
		if err != nil {
			log.Warn().Err(err).Str("user", su.name).Msg("Seed: diary store unavailable, skipping entries")
			continue
		}
		if n > 0 {
			continue
		}
		for _, se := range su.entries {
			mood := se.mood
			if _, err := s.CreateDiaryEntry(ctx, user.ID, DiaryInput{
				Text:     se.text,
				Tags:     se.tags,
				Mood:     &mood,
				Metadata: se.metadata,
			}); err != nil {
				return report, err
			}
			report.DiaryEntries++
		}
	}

	if err := s.graph.AddFriend(ctx, users["alice"].ID, users["bob"].ID); err != nil {
		log.Warn().Err(err).Msg("Seed: friendship not written to graph")
	}

	for _, p := range streaks {
		if _, err := s.streaks.ComputeAndStore(ctx, p.user, p.habit, today); err != nil {
			log.Warn().Err(err).Int64("user_id", p.user).Int64("habit_id", p.habit).Msg("Seed: streak not stored")
		}
	}
	return report, nil
}
