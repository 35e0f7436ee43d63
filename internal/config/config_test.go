package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, ":3000", cfg.Addr)
	assert.Equal(t, "default_secret", cfg.JWTSecret)
	assert.Equal(t, 30*time.Minute, cfg.JWTExpiration)
	assert.Equal(t, "admin", cfg.APIUsername)
	assert.Equal(t, 64, cfg.RunnerMaxBatchSize)
	assert.Equal(t, 5*time.Millisecond, cfg.RunnerMaxWait)
	assert.Equal(t, 1000, cfg.MaxBatchItems)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, time.Hour, cfg.JobRetention)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PREDICTGATE_ADDR", ":8080")
	t.Setenv("JWT_SECRET_KEY", "supersecret")
	t.Setenv("JWT_EXPIRATION_MINUTES", "5")
	t.Setenv("PREDICTGATE_RUNNER_MAX_WAIT", "10ms")
	t.Setenv("PREDICTGATE_WORKERS", "8")
	t.Setenv("PREDICTGATE_LOG_LEVEL", "debug")

	cfg := Load()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "supersecret", cfg.JWTSecret)
	assert.Equal(t, 5*time.Minute, cfg.JWTExpiration)
	assert.Equal(t, 10*time.Millisecond, cfg.RunnerMaxWait)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("PREDICTGATE_WORKERS", "many")
	t.Setenv("PREDICTGATE_RUNNER_MAX_WAIT", "soon")

	cfg := Load()

	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 5*time.Millisecond, cfg.RunnerMaxWait)
}

func TestApplyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":9000"
workers: 2
runner_max_wait: 2ms
job_retention: 10m
scorer_url: http://scorer:8500/score
`), 0644))

	cfg := Load()
	require.NoError(t, cfg.ApplyFile(path))

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 2*time.Millisecond, cfg.RunnerMaxWait)
	assert.Equal(t, 10*time.Minute, cfg.JobRetention)
	assert.Equal(t, "http://scorer:8500/score", cfg.ScorerURL)

	// Fields absent from the file keep their environment values.
	assert.Equal(t, "admin", cfg.APIUsername)
	assert.Equal(t, 1000, cfg.MaxBatchItems)
}

func TestApplyFileErrors(t *testing.T) {
	cfg := Load()
	assert.Error(t, cfg.ApplyFile(filepath.Join(t.TempDir(), "missing.yaml")))

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: [broken"), 0644))
	assert.Error(t, cfg.ApplyFile(path))

	path = filepath.Join(t.TempDir(), "durations.yaml")
	require.NoError(t, os.WriteFile(path, []byte("runner_max_wait: soon"), 0644))
	err := cfg.ApplyFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runner_max_wait")
}
