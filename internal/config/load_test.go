package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setRequiredEnv fills in everything that has no default.
func setRequiredEnv(t *testing.T) {
	t.Helper()

	t.Setenv("DOCPOLISH_DATABASE_URL", "postgres://localhost:5432/docpolish")
	t.Setenv("DOCPOLISH_STORAGE_ENDPOINT", "localhost:9000")
	t.Setenv("DOCPOLISH_STORAGE_ACCESS_KEY", "minioadmin")
	t.Setenv("DOCPOLISH_STORAGE_SECRET_KEY", "minioadmin")
	t.Setenv("DOCPOLISH_STORAGE_BUCKET", "documents")
	t.Setenv("DOCPOLISH_LLM_GEMINI_API_KEY", "test-key")
}

func TestLoad(t *testing.T) {
	t.Run("environment plus defaults yields a valid config", func(t *testing.T) {
		setRequiredEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "info", cfg.Server.LogLevel)
		assert.Equal(t, "postgres://localhost:5432/docpolish", cfg.Database.URL)
		assert.Equal(t, "documents", cfg.Storage.Bucket)
		assert.Equal(t, "gemini-2.0-flash", cfg.LLM.ModelName)
		assert.Equal(t, 3, cfg.LLM.MaxRetries)
		assert.Equal(t, 5*time.Second, cfg.Pipeline.PollInterval)
		assert.Equal(t, 5*time.Minute, cfg.Pipeline.TaskTimeout)
		assert.Equal(t, 24*time.Hour, cfg.Pipeline.Retention)
		assert.Equal(t, time.Hour, cfg.Pipeline.SweepInterval)
	})

	t.Run("environment overrides defaults", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("DOCPOLISH_SERVER_PORT", "9999")
		t.Setenv("DOCPOLISH_SERVER_LOG_LEVEL", "debug")
		t.Setenv("DOCPOLISH_PIPELINE_TASK_TIMEOUT", "90s")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 9999, cfg.Server.Port)
		assert.Equal(t, "debug", cfg.Server.LogLevel)
		assert.Equal(t, 90*time.Second, cfg.Pipeline.TaskTimeout)
	})

	t.Run("missing required settings fail validation", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("DOCPOLISH_DATABASE_URL", "")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("invalid log level fails validation", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("DOCPOLISH_SERVER_LOG_LEVEL", "extreme")

		_, err := Load()
		assert.Error(t, err)
	})
}
