package cli

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCommand(t *testing.T) {
	t.Run("help text", func(t *testing.T) {
		out, err := execute(t, "status", "--help")
		require.NoError(t, err)
		assert.Contains(t, out, "status")
	})

	t.Run("should report stopped without a PID file", func(t *testing.T) {
		t.Setenv("LEGALBOT_DATA_DIR", t.TempDir())

		out, err := execute(t, "status", "--config", filepath.Join(t.TempDir(), "none.json"))
		require.NoError(t, err)
		assert.Contains(t, out, "Status: stopped")
	})

	t.Run("should report a live PID", func(t *testing.T) {
		dataDir := t.TempDir()
		t.Setenv("LEGALBOT_DATA_DIR", dataDir)
		require.NoError(t, os.WriteFile(filepath.Join(dataDir, "legalbot.pid"), []byte(strconv.Itoa(os.Getpid())), 0644))

		out, err := execute(t, "status", "--config", filepath.Join(t.TempDir(), "none.json"))
		require.NoError(t, err)
		assert.Contains(t, out, "Status: running")
		assert.Contains(t, out, "PID: "+strconv.Itoa(os.Getpid()))
	})
}

func TestProbeHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	assert.Equal(t, "ok", probeHealth(srv.URL+"/healthz"))
	assert.Equal(t, "unhealthy (503)", probeHealth(srv.URL+"/other"))
	assert.Equal(t, "unreachable", probeHealth("http://127.0.0.1:1/healthz"))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45s", formatDuration(45*time.Second))
	assert.Equal(t, "2m5s", formatDuration(2*time.Minute+5*time.Second))
	assert.Equal(t, "1h0m3s", formatDuration(time.Hour+3*time.Second))
}
