package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surrealcore/coredb/internal/config"
)

func TestLoadAppliesDefaultsWithNoFile(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.QueryTimeout)
	assert.Equal(t, "memory", cfg.Storage.Driver)
}

func TestLoadReadsTOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coredb.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
query_timeout = "45s"
max_computation_depth = 200

[storage]
driver = "dolt"
dsn = "/var/lib/coredb"
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.QueryTimeout)
	assert.Equal(t, 200, cfg.MaxComputationDepth)
	assert.Equal(t, "dolt", cfg.Storage.Driver)
	assert.Equal(t, "/var/lib/coredb", cfg.Storage.DSN)
}

func TestLoadReadsYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coredb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
query_timeout: 45s
storage:
  driver: mysql
  dsn: "root@tcp(127.0.0.1:3306)/coredb"
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.QueryTimeout)
	assert.Equal(t, "mysql", cfg.Storage.Driver)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.QueryTimeout)
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coredb.toml")
	require.NoError(t, os.WriteFile(path, []byte(`query_timeout = "45s"`), 0o644))

	t.Setenv("COREDB_QUERY_TIMEOUT", "5s")
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.QueryTimeout)
}
