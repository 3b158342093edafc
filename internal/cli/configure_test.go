package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PVL-Linh/LegalBot-AI/internal/config"
)

func TestConfigureCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	t.Run("should write defaults with a generated secret", func(t *testing.T) {
		out, err := execute(t, "configure", "--config", path, "--force=false", "--secret-key=")
		require.NoError(t, err)
		assert.Contains(t, out, "Configuration saved to: "+path)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var cfg config.Config
		require.NoError(t, json.Unmarshal(data, &cfg))
		assert.Len(t, cfg.Auth.SecretKey, 48)
		assert.Equal(t, "HS256", cfg.Auth.Algorithm)
		assert.NotEmpty(t, cfg.Models)
	})

	t.Run("should refuse to overwrite without --force", func(t *testing.T) {
		_, err := execute(t, "configure", "--config", path, "--force=false")
		assert.ErrorContains(t, err, "already exists")
	})

	t.Run("should overwrite with --force and keep a given secret", func(t *testing.T) {
		_, err := execute(t, "configure", "--config", path, "--force", "--secret-key", "given-secret")
		require.NoError(t, err)

		cfg, err := config.Load(path)
		require.NoError(t, err)
		assert.Equal(t, "given-secret", cfg.Auth.SecretKey)
	})
}
