package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidator(t *testing.T) {
	v := NewValidator()

	t.Run("should check provider key prefixes", func(t *testing.T) {
		assert.NoError(t, v.ValidateAPIKey("gsk_x", "groq"))
		assert.Error(t, v.ValidateAPIKey("sk-x", "groq"))
		assert.NoError(t, v.ValidateAPIKey("AIzaX", "gemini"))
		assert.NoError(t, v.ValidateAPIKey("sk-ant-x", "anthropic"))
		assert.Error(t, v.ValidateAPIKey("", "openai"))
	})

	t.Run("should check url schemes", func(t *testing.T) {
		assert.NoError(t, v.ValidateURL("redis://localhost:6379", "redis"))
		assert.Error(t, v.ValidateURL("http://localhost:6379", "redis"))
		assert.Error(t, v.ValidateURL("not a url", "http"))
	})

	t.Run("should check cron specs", func(t *testing.T) {
		assert.NoError(t, v.ValidateCronSpec("@every 10m"))
		assert.NoError(t, v.ValidateCronSpec("*/5 * * * *"))
		assert.Error(t, v.ValidateCronSpec("every so often"))
	})

	t.Run("should collect problems", func(t *testing.T) {
		cfg := validConfig()
		cfg.Providers.Groq.APIKey = "wrong"
		cfg.Logging.Level = "chatty"
		cfg.Jobs.CheckpointSweep = "bad"

		errs := v.ValidateConfig(cfg)
		assert.Len(t, errs, 3)
	})
}
