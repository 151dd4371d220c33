package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(WithPaths(t.TempDir()))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Pool.MinConnections)
	assert.Equal(t, 50, cfg.Pool.MaxConnections)
	assert.Equal(t, 10*time.Second, cfg.Pool.ConnectTimeout)
	assert.Equal(t, "30s", cfg.Pool.StatementTimeout)
	assert.False(t, cfg.CronJob)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadEnvOverrideSingleKey(t *testing.T) {
	t.Setenv("PERMITWATCH_POOL_MAX_CONNECTIONS", "2")

	cfg, err := Load(WithPaths(t.TempDir()))
	require.NoError(t, err)

	// 只覆盖一个键，其余保持默认
	assert.Equal(t, 2, cfg.Pool.MaxConnections)
	assert.Equal(t, 5, cfg.Pool.MinConnections)
	assert.Equal(t, 10*time.Second, cfg.Pool.ConnectTimeout)
}

func TestLoadEnvCronFlag(t *testing.T) {
	t.Setenv("PERMITWATCH_CRON_JOB", "true")

	cfg, err := Load(WithPaths(t.TempDir()))
	require.NoError(t, err)
	assert.True(t, cfg.CronJob)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte("database:\n  dsn: postgres://app@db/permits\npool:\n  min_connections: 3\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o644))

	cfg, err := Load(WithPaths(dir))
	require.NoError(t, err)

	assert.Equal(t, "postgres://app@db/permits", cfg.Database.DSN)
	assert.Equal(t, 3, cfg.Pool.MinConnections)
	assert.Equal(t, 50, cfg.Pool.MaxConnections)
}

func TestLoadEnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte("pool:\n  max_connections: 20\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o644))

	t.Setenv("PERMITWATCH_POOL_MAX_CONNECTIONS", "7")

	cfg, err := Load(WithPaths(dir))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Pool.MaxConnections)
}

func TestLoadBadConfigFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("pool: ["), 0o644))

	_, err := Load(WithPaths(dir))
	assert.Error(t, err)
}
