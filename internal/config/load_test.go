package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Load reads process-wide environment variables, so these tests use
// t.Setenv and must not run in parallel.

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REMINDKIT_DATABASE_URL", "postgres://localhost:5432/remindkit")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, "postgres://localhost:5432/remindkit", cfg.Database.URL)
	assert.Empty(t, cfg.Push.CredentialsFile)
	assert.Equal(t, 5, cfg.Pipeline.IntervalMinutes)
	assert.Equal(t, 100, cfg.Pipeline.BatchSize)
	assert.Equal(t, 5, cfg.Pipeline.RetryBackoffMinutes)
	assert.Equal(t, 4, cfg.Pipeline.Concurrency)
	assert.Equal(t, 30, cfg.Pipeline.SendTimeoutSeconds)
	assert.Equal(t, []int{1440, 60, 15}, cfg.Reminders.OffsetsMinutes)
	assert.Equal(t, "00:05", cfg.Reminders.GenerationTime)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("REMINDKIT_DATABASE_URL", "postgres://localhost:5432/remindkit")
	t.Setenv("REMINDKIT_SERVER_LOG_LEVEL", "debug")
	t.Setenv("REMINDKIT_PIPELINE_BATCH_SIZE", "250")
	t.Setenv("REMINDKIT_PIPELINE_RETRY_BACKOFF_MINUTES", "10")
	t.Setenv("REMINDKIT_REMINDERS_GENERATION_TIME", "03:30")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, 250, cfg.Pipeline.BatchSize)
	assert.Equal(t, 10, cfg.Pipeline.RetryBackoffMinutes)
	assert.Equal(t, "03:30", cfg.Reminders.GenerationTime)
}

func TestLoadMissingDatabaseURL(t *testing.T) {
	t.Setenv("REMINDKIT_DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation")
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	t.Setenv("REMINDKIT_DATABASE_URL", "postgres://localhost:5432/remindkit")
	t.Setenv("REMINDKIT_SERVER_LOG_LEVEL", "verbose")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsOversizedBatch(t *testing.T) {
	t.Setenv("REMINDKIT_DATABASE_URL", "postgres://localhost:5432/remindkit")
	t.Setenv("REMINDKIT_PIPELINE_BATCH_SIZE", "5000")

	_, err := Load()
	assert.Error(t, err, "the batch cap must stay within the store's batch limit")
}
