package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader(t *testing.T) {
	t.Run("should return defaults when the file is missing", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("LEGALBOT_DATA_DIR", dir)

		cfg, err := Load(filepath.Join(dir, "missing.json"))
		require.NoError(t, err)
		assert.Equal(t, 8000, cfg.Server.Port)
		assert.Equal(t, dir, cfg.DataDir)
		assert.Equal(t, filepath.Join(dir, "index.db"), cfg.Index.Path)
		assert.Equal(t, filepath.Join(dir, "legalbot.log"), cfg.Logging.File)
	})

	t.Run("should read values from json", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.json")
		body := `{
			"data_dir": "` + dir + `",
			"server": {"port": 9001},
			"checkpoint": {"backend": "redis", "redis_url": "redis://localhost:6379/0", "ttl": "2h"}
		}`
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 9001, cfg.Server.Port)
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, "redis", cfg.Checkpoint.Backend)
		assert.Equal(t, "2h0m0s", cfg.Checkpoint.TTL.String())
	})

	t.Run("should honour legacy env names", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("LEGALBOT_DATA_DIR", dir)
		t.Setenv("GROQ_API_KEY", "gsk_fromenv")
		t.Setenv("SECRET_KEY", "s3cret")
		t.Setenv("GEMINI_MODEL", "gemini-2.0-flash")

		cfg, err := Load(filepath.Join(dir, "none.json"))
		require.NoError(t, err)
		assert.Equal(t, "gsk_fromenv", cfg.Providers.Groq.APIKey)
		assert.Equal(t, "https://api.groq.com/openai/v1/", cfg.Providers.Groq.BaseURL)
		assert.Equal(t, "s3cret", cfg.Auth.SecretKey)
		assert.Equal(t, "gemini-2.0-flash", cfg.Models[2].Model)
	})

	t.Run("should prefer prefixed env names", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("LEGALBOT_DATA_DIR", dir)
		t.Setenv("GROQ_API_KEY", "gsk_legacy")
		t.Setenv("LEGALBOT_PROVIDERS_GROQ_API_KEY", "gsk_prefixed")

		cfg, err := Load(filepath.Join(dir, "none.json"))
		require.NoError(t, err)
		assert.Equal(t, "gsk_prefixed", cfg.Providers.Groq.APIKey)
	})

	t.Run("should save and reload", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "out", "config.json")
		cfg := DefaultConfig()
		cfg.DataDir = dir
		cfg.Server.Port = 7777

		loader := NewLoader(path)
		require.NoError(t, loader.Save(cfg))

		reloaded, err := loader.Load()
		require.NoError(t, err)
		assert.Equal(t, 7777, reloaded.Server.Port)
	})
}
