package daemon

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/PVL-Linh/LegalBot-AI/internal/config"
	"github.com/PVL-Linh/LegalBot-AI/pkg/agent"
	"github.com/PVL-Linh/LegalBot-AI/pkg/checkpoint"
	"github.com/PVL-Linh/LegalBot-AI/pkg/conversation"
	"github.com/PVL-Linh/LegalBot-AI/pkg/retrieval"
	"github.com/PVL-Linh/LegalBot-AI/pkg/search"
)

func openConversations(ctx context.Context, cfg *config.Config) (conversation.Store, error) {
	switch cfg.Conversations.Backend {
	case "mongo":
		return conversation.OpenMongo(ctx, cfg.Conversations.MongoURI, cfg.Conversations.MongoDatabase)
	case "", "sqlite":
		path := cfg.Conversations.Path
		if path == "" {
			path = filepath.Join(cfg.DataDir, "conversations.db")
		}
		return conversation.OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown conversations backend: %s", cfg.Conversations.Backend)
	}
}

func openCheckpoints(ctx context.Context, cfg *config.Config) (checkpoint.Store, error) {
	limits := checkpoint.Limits{
		MaxPDFContext: cfg.Checkpoint.MaxPDFContext,
		MaxSummary:    cfg.Checkpoint.MaxSummary,
	}
	switch cfg.Checkpoint.Backend {
	case "redis":
		return checkpoint.NewRedisStore(ctx, cfg.Checkpoint.RedisURL, cfg.Checkpoint.TTL, limits)
	case "", "memory":
		return checkpoint.NewMemoryStore(limits), nil
	default:
		return nil, fmt.Errorf("unknown checkpoint backend: %s", cfg.Checkpoint.Backend)
	}
}

// NewRetrievalResources wires the lazily opened embedder, vector index and
// query rewrite model. A resource whose provider has no key stays
// unconfigured and lookups fall back to web search.
func NewRetrievalResources(cfg *config.Config, logger zerolog.Logger) *retrieval.Resources {
	rc := retrieval.ResourcesConfig{}

	if p, ok := cfg.Providers.Get(cfg.Embeddings.Provider); ok && p.APIKey != "" {
		ec := retrieval.EmbedderConfig{
			APIKey:    p.APIKey,
			BaseURL:   p.BaseURL,
			Model:     cfg.Embeddings.Model,
			Dimension: cfg.Embeddings.Dimension,
		}
		rc.Embedder = func(ctx context.Context) (retrieval.Embedder, error) {
			return retrieval.NewOpenAIEmbedder(ec)
		}
	} else {
		logger.Warn().Str("provider", cfg.Embeddings.Provider).Msg("Embeddings provider has no api key, corpus lookups disabled")
	}

	indexPath := cfg.Index.Path
	if indexPath == "" {
		indexPath = filepath.Join(cfg.DataDir, "index.db")
	}
	dimension := cfg.Embeddings.Dimension
	rc.Index = func(ctx context.Context) (retrieval.Index, error) {
		return retrieval.OpenSQLiteIndex(indexPath, dimension)
	}

	if p, ok := cfg.Providers.Get(cfg.FastModel.Provider); ok && p.APIKey != "" {
		fast := backendConfig(cfg.FastModel, p)
		rc.FastModel = func(ctx context.Context) (retrieval.Completer, error) {
			backend, err := agent.NewBackend(fast)
			if err != nil {
				return nil, err
			}
			completer, ok := backend.(retrieval.Completer)
			if !ok {
				return nil, fmt.Errorf("provider %s cannot complete prompts", fast.Provider)
			}
			return completer, nil
		}
	}

	return retrieval.NewResources(rc)
}

// NewSearchManager registers every web search backend the settings allow.
// DuckDuckGo needs no key and is always available.
func NewSearchManager(cfg config.SearchConfig) *search.Manager {
	manager := search.NewManager(strings.ToLower(cfg.Provider), search.Options{Region: cfg.Region})
	manager.Register(search.NewDuckDuckGo())
	if cfg.SearXNGURL != "" {
		manager.Register(search.NewSearXNG(cfg.SearXNGURL))
	}
	if cfg.BraveAPIKey != "" {
		manager.Register(search.NewBrave(cfg.BraveAPIKey))
	}
	return manager
}

// buildChain turns the usable models into the ordered fallback chain.
func buildChain(cfg *config.Config) ([]agent.NamedBackend, error) {
	var chain []agent.NamedBackend
	for _, m := range cfg.UsableModels() {
		p, _ := cfg.Providers.Get(m.Provider)
		backend, err := agent.NewBackend(backendConfig(m, p))
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", m.Name, err)
		}
		name := m.Name
		if name == "" {
			name = m.Model
		}
		chain = append(chain, agent.NamedBackend{Name: name, Backend: backend})
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("no usable models: configure an api key for at least one provider")
	}
	return chain, nil
}

func backendConfig(m config.ModelConfig, p config.ProviderConfig) agent.BackendConfig {
	return agent.BackendConfig{
		Provider:    m.Provider,
		Model:       m.Model,
		APIKey:      p.APIKey,
		BaseURL:     p.BaseURL,
		Temperature: m.Temperature,
		MaxTokens:   m.MaxTokens,
	}
}
