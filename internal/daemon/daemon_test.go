package daemon

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PVL-Linh/LegalBot-AI/internal/config"
	"github.com/PVL-Linh/LegalBot-AI/internal/logger"
	"github.com/PVL-Linh/LegalBot-AI/pkg/agent"
	"github.com/PVL-Linh/LegalBot-AI/pkg/checkpoint"
)

func nopLogger() zerolog.Logger { return zerolog.Nop() }

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Auth.SecretKey = "test-secret"
	cfg.Providers.Groq.APIKey = "gsk-test-key"
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	return cfg
}

// createTestDaemon creates a daemon that never talks to a model
func createTestDaemon(t *testing.T, cfg *config.Config) *Daemon {
	log, err := logger.New(logger.Config{Level: "info", Console: false})
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	d, err := New(cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() {
		if d.Status().Running {
			_ = d.Stop()
		}
		d.closeStores()
	})
	return d
}

func TestNew(t *testing.T) {
	d := createTestDaemon(t, testConfig(t))

	assert.NotNil(t, d.queue)
	assert.NotNil(t, d.conversations)
	assert.NotNil(t, d.checkpoints)
	assert.NotNil(t, d.retriever)
	assert.NotNil(t, d.turns)
	assert.NotNil(t, d.eventLoop)
	assert.NotNil(t, d.lifecycle)
	assert.Nil(t, d.watcher)

	t.Run("should skip models without credentials", func(t *testing.T) {
		assert.Equal(t, []string{"Llama 3.3 70B", "Llama 3.1 8B"}, d.GetInvoker().Backends())
	})

	t.Run("should register the legal tools", func(t *testing.T) {
		assert.ElementsMatch(t,
			[]string{"legal_assistant", "web_search", "calculate_fee", "get_date_info", "format_document"},
			d.GetToolExecutor().ListTools())
	})

	t.Run("should schedule the checkpoint sweep for the memory backend", func(t *testing.T) {
		assert.Equal(t, 1, d.jobs.Len())
	})
}

func TestNew_NoCredentials(t *testing.T) {
	cfg := testConfig(t)
	cfg.Providers.Groq.APIKey = ""

	log, err := logger.New(logger.Config{Level: "info", Console: false})
	require.NoError(t, err)
	defer log.Close()

	_, err = New(cfg, log)
	assert.ErrorContains(t, err, "no usable models")
}

func TestNew_BadSweepSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.Jobs.CheckpointSweep = "every once in a while"

	log, err := logger.New(logger.Config{Level: "info", Console: false})
	require.NoError(t, err)
	defer log.Close()

	_, err = New(cfg, log)
	assert.ErrorContains(t, err, "invalid checkpoint sweep schedule")
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testConfig(t)
	d := createTestDaemon(t, cfg)

	require.NoError(t, d.Start())
	assert.True(t, d.Status().Running)
	assert.Error(t, d.Start())

	t.Run("should write the PID file", func(t *testing.T) {
		pid, err := ReadPIDFile(filepath.Join(cfg.DataDir, PIDFileName))
		require.NoError(t, err)
		assert.Equal(t, os.Getpid(), pid)
	})

	t.Run("should serve the health check", func(t *testing.T) {
		resp, err := http.Get(fmt.Sprintf("http://%s/healthz", d.GetGatewayServer().Addr()))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	require.NoError(t, d.Stop())
	assert.False(t, d.Status().Running)
	assert.Error(t, d.Stop())

	_, err := os.Stat(filepath.Join(cfg.DataDir, PIDFileName))
	assert.True(t, os.IsNotExist(err))
}

func TestDaemonStatus(t *testing.T) {
	d := createTestDaemon(t, testConfig(t))

	status := d.Status()
	assert.False(t, status.Running)
	assert.Equal(t, time.Duration(0), status.Uptime)

	require.NoError(t, d.Start())
	time.Sleep(50 * time.Millisecond)

	status = d.Status()
	assert.True(t, status.Running)
	assert.Greater(t, status.Uptime, time.Duration(0))
}

func TestBuildChain(t *testing.T) {
	cfg := testConfig(t)
	cfg.Providers.Anthropic.APIKey = "sk-ant-test"
	cfg.Models = []config.ModelConfig{
		{Provider: "anthropic", Model: "claude-sonnet-4-5"},
		{Name: "Gemini", Provider: "gemini", Model: "gemini-2.5-flash"},
		{Name: "Groq", Provider: "groq", Model: "llama-3.1-8b-instant"},
	}

	chain, err := buildChain(cfg)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, "claude-sonnet-4-5", chain[0].Name)
	assert.Equal(t, "anthropic", chain[0].Backend.Provider())
	assert.Equal(t, "Groq", chain[1].Name)
}

func TestNewSearchManager(t *testing.T) {
	manager := NewSearchManager(config.SearchConfig{
		Provider:    "Brave",
		BraveAPIKey: "brave-key",
		Region:      "vn-vi",
	})
	assert.Equal(t, []string{"brave", "duckduckgo"}, manager.Providers())
}

func TestNewRetrievalResources(t *testing.T) {
	t.Run("should leave the embedder unconfigured without a key", func(t *testing.T) {
		cfg := testConfig(t)
		resources := NewRetrievalResources(cfg, nopLogger())
		defer resources.Close()

		_, err := resources.Embedder(context.Background())
		assert.Error(t, err)
	})

	t.Run("should open the index under the data directory", func(t *testing.T) {
		cfg := testConfig(t)
		resources := NewRetrievalResources(cfg, nopLogger())
		defer resources.Close()

		_, err := resources.Index(context.Background())
		require.NoError(t, err)
		_, err = os.Stat(filepath.Join(cfg.DataDir, "index.db"))
		assert.NoError(t, err)
	})
}

func TestJobs_CheckpointSweep(t *testing.T) {
	store := checkpoint.NewMemoryStore(checkpoint.Limits{})
	require.NoError(t, store.Save(context.Background(), "c1", agent.State{Summary: "cũ"}))

	jobs := NewJobs(nopLogger())
	require.Error(t, jobs.AddCheckpointSweep("@every 1s", store, 0))
	require.NoError(t, jobs.AddCheckpointSweep("@every 1s", store, time.Nanosecond))
	jobs.Start()
	defer jobs.Stop()

	assert.Eventually(t, func() bool { return store.Len() == 0 }, 5*time.Second, 50*time.Millisecond)
}
