package gorm

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations runs all database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		// Migration 001: Core tables
		{
			ID: "001_core_tables",
			Migrate: func(tx *gorm.DB) error {
				// AutoMigrate creates tables with all indexes from struct tags
				return tx.AutoMigrate(&User{}, &Habit{}, &Goal{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("goals", "habits", "users")
			},
		},

		// Migration 002: Checkins with the one-per-day uniqueness constraint
		{
			ID: "002_checkins",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&Checkin{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("checkins")
			},
		},
	})

	return m.Migrate()
}
