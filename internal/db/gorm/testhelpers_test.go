package gorm

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm/logger"

	_ "modernc.org/sqlite"
)

// newTestStore opens a migrated SQLite-backed store in a temp dir.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	sqlDB, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	require.NoError(t, err)

	store, err := NewStore(Config{
		Dialector: sqlite.New(sqlite.Config{DriverName: "sqlite", Conn: sqlDB}),
		MaxConns:  1,
		LogLevel:  logger.Silent,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}
