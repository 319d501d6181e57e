package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadFrom_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.json"), envMap(nil))
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Port, cfg.Port)
	assert.Equal(t, def.GraphBackend, cfg.GraphBackend)
	assert.Equal(t, def.PostgresDSN, cfg.VectorDSN, "vector DSN defaults to postgres DSN")
}

func TestLoadFrom_FileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "HABITGRAPH_PORT": 9100,
  "HABITGRAPH_GRAPH_BACKEND": "neo4j",
  "HABITGRAPH_ALLOW_ORIGINS": ["http://a", " http://b "],
  "HABITGRAPH_VECTOR_PREFIX": "tenant"
}`), 0600))

	cfg, err := LoadFrom(path, envMap(map[string]string{
		"HABITGRAPH_GRAPH_BACKEND": "memory",
		"HABITGRAPH_MAX_CONNS":     "25",
		"HABITGRAPH_LOG_LEVEL":     "",
	}))
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, BackendMemory, cfg.GraphBackend)
	assert.Equal(t, 25, cfg.MaxConns)
	assert.Equal(t, "info", cfg.LogLevel, "empty env value is ignored")
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.AllowOrigins)
	assert.Equal(t, "tenant_diary_entries", cfg.EffectiveVectorCollection())
	assert.Equal(t, DefaultVectorCollection, cfg.FallbackVectorCollection())
}

func TestLoadFrom_InvalidJSONFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	cfg, err := LoadFrom(path, envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, cfg.Port)
}

func TestFallbackVectorCollection(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "", cfg.FallbackVectorCollection())

	cfg.VectorFallback = "legacy"
	assert.Equal(t, "legacy", cfg.FallbackVectorCollection())
}

func TestSplitTrim(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitTrim(" a, ,b "))
	assert.Empty(t, splitTrim(""))
}

func TestWatch_NotifiesOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0600))

	changed := make(chan struct{}, 8)
	w, err := Watch(path, func() { changed <- struct{}{} })
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	// Unrelated files in the same directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte(`{}`), 0600))
	require.NoError(t, os.WriteFile(path, []byte(`{"HABITGRAPH_LOG_LEVEL":"debug"}`), 0600))

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("expected change notification")
	}
}
