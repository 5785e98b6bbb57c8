package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoadDefaults(t *testing.T) {
	l, err := Load("")
	require.NoError(t, err)
	cfg := l.Config()
	assert.Equal(t, "sqlite", cfg.Dialect)
	assert.Equal(t, 200*time.Millisecond, cfg.SlowThreshold)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 100, cfg.Log.MaxSize)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strata.yaml")
	writeFile(t, path, `
dialect: postgres
dsn: postgres://localhost/app
debug: true
slow_threshold: 1s
log:
  level: debug
  max_backups: 7
`)
	t.Setenv("STRATA_DSN", "postgres://db/app")
	l, err := Load(path)
	require.NoError(t, err)
	cfg := l.Config()
	assert.Equal(t, "postgres", cfg.Dialect)
	assert.Equal(t, "postgres://db/app", cfg.DSN, "environment overrides the file")
	assert.True(t, cfg.Debug)
	assert.Equal(t, time.Second, cfg.SlowThreshold)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 7, cfg.Log.MaxBackups)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "strata.yaml")
	writeFile(t, path, "dialect: oracle\n")
	_, err = Load(path)
	require.ErrorContains(t, err, `unsupported dialect "oracle"`)
}

func TestWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strata.yaml")
	writeFile(t, path, "slow_threshold: 1s\n")
	l, err := Load(path)
	require.NoError(t, err)

	var seen atomic.Int64
	l.Watch(func(c Config) { seen.Store(int64(c.SlowThreshold)) })
	writeFile(t, path, "slow_threshold: 5s\n")

	require.Eventually(t, func() bool {
		return time.Duration(seen.Load()) == 5*time.Second
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, 5*time.Second, l.Config().SlowThreshold)
}

func TestNewLogger(t *testing.T) {
	file := filepath.Join(t.TempDir(), "strata.log")
	logger := NewLogger("strata", LogConfig{Level: "warn", File: file, MaxSize: 1})
	logger.Info("dropped")
	logger.Warn("kept")
	_ = logger.Sync()

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "strata", entry["logger"])
}
