package gorm

import (
	"database/sql"
	"time"

	"gorm.io/gorm"
)

// GORM Models

// User is an account. Identity is header-derived, so rows are created on first sight.
type User struct {
	CreatedAt time.Time `gorm:"not null"`
	Username  string    `gorm:"size:64;uniqueIndex;not null"`
	ID        int64     `gorm:"primaryKey;autoIncrement"`
}

func (User) TableName() string { return "users" }

// Habit is a recurring activity a user checks in against.
type Habit struct {
	CreatedAt    time.Time      `gorm:"not null"`
	Title        string         `gorm:"size:200;not null"`
	Frequency    sql.NullString `gorm:"size:32"`
	TargetUnit   sql.NullString `gorm:"size:32"`
	ReminderTime sql.NullString `gorm:"size:8"`
	TargetValue  sql.NullInt64
	GoalID       sql.NullInt64 `gorm:"index"`
	ID           int64         `gorm:"primaryKey;autoIncrement"`
	UserID       int64         `gorm:"index:idx_habits_user;not null"`
	IsArchived   bool          `gorm:"default:false;not null"`
}

func (Habit) TableName() string { return "habits" }

// Goal is a per-user goal. Goals created from the shared catalog carry CatalogID;
// a user holds at most one goal row per catalog entry.
type Goal struct {
	CreatedAt   time.Time      `gorm:"not null"`
	Title       string         `gorm:"size:200;not null"`
	Description sql.NullString `gorm:"type:text"`
	CatalogID   sql.NullString `gorm:"size:64;uniqueIndex:uq_goal_user_catalog,priority:2"`
	ID          int64          `gorm:"primaryKey;autoIncrement"`
	UserID      int64          `gorm:"index:idx_goals_user;uniqueIndex:uq_goal_user_catalog,priority:1;not null"`
	IsArchived  bool           `gorm:"default:false;not null"`
}

func (Goal) TableName() string { return "goals" }

// Checkin marks a habit done on a calendar day. Rows are immutable.
type Checkin struct {
	Date      time.Time `gorm:"type:date;uniqueIndex:uq_checkin_user_habit_date,priority:3;index:idx_checkins_user_date,priority:2;not null"`
	CreatedAt time.Time `gorm:"not null"`
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	UserID    int64     `gorm:"uniqueIndex:uq_checkin_user_habit_date,priority:1;index:idx_checkins_user_date,priority:1;not null"`
	HabitID   int64     `gorm:"uniqueIndex:uq_checkin_user_habit_date,priority:2;not null"`
}

func (Checkin) TableName() string { return "checkins" }

// BeforeCreate normalizes the checkin day so uniqueness is per calendar day.
func (c *Checkin) BeforeCreate(tx *gorm.DB) error {
	c.Date = Day(c.Date)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	return nil
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// nullString converts an optional string pointer to sql.NullString.
func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// nullInt64 converts an optional int64 pointer to sql.NullInt64.
func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// StringPtr returns the value of ns as a pointer, nil when NULL.
func StringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// Int64Ptr returns the value of ni as a pointer, nil when NULL.
func Int64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}
