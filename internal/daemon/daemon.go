package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/PVL-Linh/LegalBot-AI/internal/config"
	"github.com/PVL-Linh/LegalBot-AI/internal/logger"
	"github.com/PVL-Linh/LegalBot-AI/internal/observability"
	"github.com/PVL-Linh/LegalBot-AI/internal/tracing"
	"github.com/PVL-Linh/LegalBot-AI/pkg/agent"
	"github.com/PVL-Linh/LegalBot-AI/pkg/auth"
	"github.com/PVL-Linh/LegalBot-AI/pkg/checkpoint"
	"github.com/PVL-Linh/LegalBot-AI/pkg/commandqueue"
	"github.com/PVL-Linh/LegalBot-AI/pkg/conversation"
	"github.com/PVL-Linh/LegalBot-AI/pkg/gateway"
	"github.com/PVL-Linh/LegalBot-AI/pkg/legaltools"
	"github.com/PVL-Linh/LegalBot-AI/pkg/retrieval"
	"github.com/PVL-Linh/LegalBot-AI/pkg/search"
	"github.com/PVL-Linh/LegalBot-AI/pkg/toolexecutor"
)

// Daemon represents the LegalBot service
type Daemon struct {
	config *config.Config
	logger zerolog.Logger

	// Core modules
	queue         *commandqueue.CommandQueue
	conversations conversation.Store
	checkpoints   checkpoint.Store
	resources     *retrieval.Resources
	retriever     *retrieval.Gateway
	ingester      *retrieval.Ingester
	searcher      *search.Manager
	toolExecutor  *toolexecutor.ToolExecutor
	invoker       *agent.Invoker
	loop          *agent.Loop

	// Services
	turns         *gateway.TurnRunner
	gatewayServer *gateway.Server
	jobs          *Jobs
	watcher       *retrieval.CorpusWatcher

	// Internal
	eventLoop *EventLoop
	lifecycle *LifecycleManager

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startTime time.Time
	running   bool
	mu        sync.RWMutex

	tracingEnabled bool
}

// Status represents daemon status
type Status struct {
	Running   bool          `json:"running"`
	Uptime    time.Duration `json:"uptime"`
	StartTime time.Time     `json:"start_time"`
}

// New creates a new daemon instance
func New(cfg *config.Config, log *logger.Logger) (*Daemon, error) {
	ctx, cancel := context.WithCancel(context.Background())
	base := log.Zerolog()

	observability.EnsureRegistered()

	d := &Daemon{
		config: cfg,
		logger: base,
		ctx:    ctx,
		cancel: cancel,
	}

	if cfg.Tracing.Enabled {
		if err := tracing.InitOpenTelemetry(cfg.Tracing.ServiceName, cfg.Tracing.SampleRatio); err != nil {
			base.Warn().Err(err).Msg("Failed to initialize tracing, continuing without distributed tracing")
		} else {
			d.tracingEnabled = true
			base.Info().Msg("Tracing initialized successfully")
		}
	}

	if cfg.DataDir != "" {
		if err := observability.InitAuditLogger(filepath.Join(cfg.DataDir, "audit.log")); err != nil {
			base.Warn().Err(err).Msg("Failed to open audit log, writing audit events to stderr")
		}
	}

	if err := d.initializeCoreModules(); err != nil {
		d.abort()
		return nil, fmt.Errorf("failed to initialize core modules: %w", err)
	}

	if err := d.initializeServices(); err != nil {
		d.abort()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	d.eventLoop = NewEventLoop(d)
	d.lifecycle = NewLifecycleManager(d)

	return d, nil
}

// abort releases whatever New managed to open before failing.
func (d *Daemon) abort() {
	d.cancel()
	d.closeStores()
	if d.tracingEnabled {
		_ = tracing.ShutdownOpenTelemetry(context.Background())
		d.tracingEnabled = false
	}
}

// initializeCoreModules builds stores, retrieval, tools and the agent loop.
func (d *Daemon) initializeCoreModules() error {
	cfg := d.config

	d.queue = commandqueue.New()

	conversations, err := openConversations(d.ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open conversation store: %w", err)
	}
	d.conversations = conversations
	d.logger.Info().Str("backend", cfg.Conversations.Backend).Msg("Conversation store ready")

	checkpoints, err := openCheckpoints(d.ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint store: %w", err)
	}
	d.checkpoints = checkpoints
	d.logger.Info().Str("backend", cfg.Checkpoint.Backend).Msg("Checkpoint store ready")

	d.resources = NewRetrievalResources(cfg, d.logger)
	d.retriever, err = retrieval.NewGateway(retrieval.GatewayConfig{
		Resources: d.resources,
		Namespace: cfg.Index.Namespace,
		TopK:      cfg.Index.TopK,
		Logger:    d.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create retrieval gateway: %w", err)
	}
	d.ingester, err = retrieval.NewIngester(d.resources, cfg.Index.Namespace, d.logger)
	if err != nil {
		return fmt.Errorf("failed to create ingester: %w", err)
	}

	d.searcher = NewSearchManager(cfg.Search)
	d.logger.Info().Strs("providers", d.searcher.Providers()).Msg("Web search ready")

	tools, err := legaltools.New(legaltools.Options{
		Retriever: d.retriever,
		Searcher:  d.searcher,
		Region:    cfg.Search.Region,
		Logger:    d.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create legal tools: %w", err)
	}
	d.toolExecutor = toolexecutor.New(d.logger)
	if err := legaltools.Register(d.toolExecutor, tools); err != nil {
		return fmt.Errorf("failed to register legal tools: %w", err)
	}
	d.logger.Info().Int("count", len(d.toolExecutor.ListTools())).Msg("Tools registered")

	chain, err := buildChain(cfg)
	if err != nil {
		return err
	}
	d.invoker, err = agent.NewInvoker(chain, d.logger)
	if err != nil {
		return fmt.Errorf("failed to create model invoker: %w", err)
	}
	d.logger.Info().Strs("chain", d.invoker.Backends()).Msg("Model fallback chain ready")

	d.loop, err = agent.NewLoop(agent.LoopConfig{
		Invoker: d.invoker,
		Tools:   d.toolExecutor,
		Logger:  d.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create agent loop: %w", err)
	}

	return nil
}

// initializeServices builds the chat server and background jobs.
func (d *Daemon) initializeServices() error {
	cfg := d.config

	validator, err := auth.NewValidator(cfg.Auth.SecretKey, cfg.Auth.Algorithm)
	if err != nil {
		return fmt.Errorf("failed to create token validator: %w", err)
	}

	d.turns, err = gateway.NewTurnRunner(gateway.TurnRunnerConfig{
		Loop:          d.loop,
		Conversations: d.conversations,
		Checkpoints:   d.checkpoints,
		Queue:         d.queue,
		HistoryLimit:  cfg.Conversations.HistoryLimit,
		Logger:        d.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create turn runner: %w", err)
	}

	d.gatewayServer, err = gateway.NewServer(gateway.Config{
		Addr:              cfg.Server.Addr(),
		Turns:             d.turns,
		Conversations:     d.conversations,
		Validator:         validator,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		MessagesPerMinute: cfg.Server.MessagesPerMinute,
		MaxUploadMB:       cfg.Server.MaxUploadMB,
		Logger:            d.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create gateway server: %w", err)
	}

	d.jobs = NewJobs(d.logger)
	if mem, ok := d.checkpoints.(*checkpoint.MemoryStore); ok && cfg.Jobs.CheckpointSweep != "" {
		if err := d.jobs.AddCheckpointSweep(cfg.Jobs.CheckpointSweep, mem, cfg.Checkpoint.TTL); err != nil {
			return err
		}
	}

	if cfg.Corpus.Watch && cfg.Corpus.Dir != "" {
		d.watcher, err = retrieval.NewCorpusWatcher(d.logger, 0, d.syncCorpus)
		if err != nil {
			return fmt.Errorf("failed to create corpus watcher: %w", err)
		}
	}

	return nil
}

// syncCorpus re-ingests the changed corpus files.
func (d *Daemon) syncCorpus(paths []string) {
	for _, path := range paths {
		ctx, cancel := context.WithTimeout(d.ctx, 2*time.Minute)
		if err := d.ingester.Sync(ctx, path); err != nil {
			d.logger.Warn().Err(err).Str("path", path).Msg("Corpus sync failed")
		} else {
			d.logger.Info().Str("path", path).Msg("Corpus file synced")
		}
		cancel()
	}
}

// Start starts the daemon service
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	traceID := tracing.NewTraceID()
	logger := d.logger.With().Str("trace_id", traceID).Logger()
	logger.Info().Msg("Starting LegalBot daemon")

	if err := d.lifecycle.Start(); err != nil {
		return fmt.Errorf("failed to start lifecycle manager: %w", err)
	}

	if err := d.gatewayServer.Start(); err != nil {
		return fmt.Errorf("failed to start gateway server: %w", err)
	}
	logger.Info().Str("addr", d.gatewayServer.Addr()).Msg("Gateway server started")

	d.jobs.Start()
	logger.Info().Int("jobs", d.jobs.Len()).Msg("Job scheduler started")

	if d.watcher != nil {
		if err := d.watcher.Watch(d.config.Corpus.Dir); err != nil {
			logger.Warn().Err(err).Str("dir", d.config.Corpus.Dir).Msg("Failed to watch corpus directory")
		} else {
			logger.Info().Str("dir", d.config.Corpus.Dir).Msg("Corpus watcher started")
		}
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.eventLoop.Run(d.ctx)
	}()

	logger.Info().Msg("Daemon started successfully")

	return nil
}

// Stop stops the daemon service gracefully
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is not running")
	}
	d.running = false
	d.mu.Unlock()

	traceID := tracing.NewTraceID()
	logger := d.logger.With().Str("trace_id", traceID).Logger()
	logger.Info().Msg("Stopping LegalBot daemon")

	if d.watcher != nil {
		if err := d.watcher.Stop(); err != nil {
			logger.Error().Err(err).Msg("Failed to stop corpus watcher")
		}
	}

	if d.gatewayServer != nil {
		if err := d.gatewayServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Failed to stop gateway server")
		}
	}

	d.jobs.Stop()
	logger.Info().Msg("Job scheduler stopped")

	if d.queue != nil {
		if err := d.queue.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close command queue")
		}
	}

	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logger.Warn().Msg("Timed out waiting for background goroutines")
	}

	d.closeStores()

	if err := d.lifecycle.Stop(); err != nil {
		logger.Error().Err(err).Msg("Failed to stop lifecycle manager")
	}

	if d.tracingEnabled {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := tracing.ShutdownOpenTelemetry(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Failed to shutdown tracing")
		}
		cancel()
		d.tracingEnabled = false
	}

	if err := observability.GetAuditLogger().Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close audit logger")
	}

	logger.Info().Msg("Daemon stopped successfully")

	return nil
}

func (d *Daemon) closeStores() {
	if d.resources != nil {
		if err := d.resources.Close(); err != nil {
			d.logger.Error().Err(err).Msg("Failed to close vector index")
		}
	}
	if d.checkpoints != nil {
		if err := d.checkpoints.Close(); err != nil {
			d.logger.Error().Err(err).Msg("Failed to close checkpoint store")
		}
	}
	if d.conversations != nil {
		if err := d.conversations.Close(); err != nil {
			d.logger.Error().Err(err).Msg("Failed to close conversation store")
		}
	}
}

// Status returns the daemon status
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := Status{
		Running: d.running,
	}

	if d.running {
		status.Uptime = time.Since(d.startTime)
		status.StartTime = d.startTime
	}

	return status
}

// Wait blocks until SIGINT or SIGTERM, then stops the daemon.
func (d *Daemon) Wait() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	sig := <-sigChan
	d.logger.Info().Str("signal", sig.String()).Msg("Received signal")

	if err := d.Stop(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to stop daemon")
	}
}

// GetConfig returns the daemon configuration
func (d *Daemon) GetConfig() *config.Config {
	return d.config
}

// GetQueue returns the command queue
func (d *Daemon) GetQueue() *commandqueue.CommandQueue {
	return d.queue
}

// GetToolExecutor returns the tool executor
func (d *Daemon) GetToolExecutor() *toolexecutor.ToolExecutor {
	return d.toolExecutor
}

// GetInvoker returns the model fallback invoker
func (d *Daemon) GetInvoker() *agent.Invoker {
	return d.invoker
}

// GetGatewayServer returns the chat server
func (d *Daemon) GetGatewayServer() *gateway.Server {
	return d.gatewayServer
}

// GetIngester returns the corpus ingester
func (d *Daemon) GetIngester() *retrieval.Ingester {
	return d.ingester
}
