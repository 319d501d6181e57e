package worker

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"

	_ "modernc.org/sqlite"

	"github.com/thebtf/habitgraph/internal/app"
	"github.com/thebtf/habitgraph/internal/config"
)

var testNow = time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)

// testService opens an application context on in-process stores and SQLite.
func testService(t *testing.T) *Service {
	t.Helper()

	cfg := config.Default()
	cfg.CacheBackend = config.BackendMemory
	cfg.GraphBackend = config.BackendMemory
	cfg.VectorBackend = config.BackendMemory
	cfg.DiaryBackend = config.BackendMemory
	cfg.AllowOrigins = []string{"http://localhost:5173"}

	sqlDB, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "api.db")+"?_pragma=busy_timeout(5000)")
	require.NoError(t, err)

	a, err := app.Open(context.Background(), cfg,
		app.WithDialector(sqlite.New(sqlite.Config{DriverName: "sqlite", Conn: sqlDB})),
		app.WithClock(func() time.Time { return testNow }),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return NewService(a)
}

// call sends a request as userID (0 omits the header) and returns the recorder.
func call(t *testing.T, s *Service, method, path string, body any, userID int64) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != 0 {
		req.Header.Set(UserHeader, strconv.FormatInt(userID, 10))
	}
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

// decode unmarshals a 200 response body into T.
func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	return v
}
