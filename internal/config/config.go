package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Config is the full LegalBot configuration.
type Config struct {
	DataDir       string              `json:"data_dir" mapstructure:"data_dir"`
	Server        ServerConfig        `json:"server" mapstructure:"server"`
	Auth          AuthConfig          `json:"auth" mapstructure:"auth"`
	Providers     ProvidersConfig     `json:"providers" mapstructure:"providers"`
	Models        []ModelConfig       `json:"models" mapstructure:"models"`
	FastModel     ModelConfig         `json:"fast_model" mapstructure:"fast_model"`
	Embeddings    EmbeddingsConfig    `json:"embeddings" mapstructure:"embeddings"`
	Index         IndexConfig         `json:"index" mapstructure:"index"`
	Checkpoint    CheckpointConfig    `json:"checkpoint" mapstructure:"checkpoint"`
	Conversations ConversationsConfig `json:"conversations" mapstructure:"conversations"`
	Search        SearchConfig        `json:"search" mapstructure:"search"`
	Corpus        CorpusConfig        `json:"corpus" mapstructure:"corpus"`
	Jobs          JobsConfig          `json:"jobs" mapstructure:"jobs"`
	Logging       LoggingConfig       `json:"logging" mapstructure:"logging"`
	Tracing       TracingConfig       `json:"tracing" mapstructure:"tracing"`
}

// ServerConfig holds the HTTP/websocket listener settings.
type ServerConfig struct {
	Host              string   `json:"host" mapstructure:"host"`
	Port              int      `json:"port" mapstructure:"port"`
	AllowedOrigins    []string `json:"allowed_origins" mapstructure:"allowed_origins"`
	MessagesPerMinute int      `json:"messages_per_minute" mapstructure:"messages_per_minute"`
	MaxUploadMB       int      `json:"max_upload_mb" mapstructure:"max_upload_mb"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AuthConfig holds JWT verification settings.
type AuthConfig struct {
	SecretKey string `json:"secret_key" mapstructure:"secret_key"`
	Algorithm string `json:"algorithm" mapstructure:"algorithm"`
}

// ProviderConfig holds credentials for one model vendor.
type ProviderConfig struct {
	APIKey  string `json:"api_key" mapstructure:"api_key"`
	BaseURL string `json:"base_url" mapstructure:"base_url"`
}

// ProvidersConfig holds credentials by vendor.
type ProvidersConfig struct {
	Groq      ProviderConfig `json:"groq" mapstructure:"groq"`
	Gemini    ProviderConfig `json:"gemini" mapstructure:"gemini"`
	OpenAI    ProviderConfig `json:"openai" mapstructure:"openai"`
	Anthropic ProviderConfig `json:"anthropic" mapstructure:"anthropic"`
}

// Get returns the provider settings by name.
func (p ProvidersConfig) Get(name string) (ProviderConfig, bool) {
	switch name {
	case "groq":
		return p.Groq, true
	case "gemini":
		return p.Gemini, true
	case "openai":
		return p.OpenAI, true
	case "anthropic":
		return p.Anthropic, true
	}
	return ProviderConfig{}, false
}

// ModelConfig is one entry of the fallback chain. Order in Config.Models is
// the fallback order.
type ModelConfig struct {
	Name        string  `json:"name" mapstructure:"name"`
	Provider    string  `json:"provider" mapstructure:"provider"`
	Model       string  `json:"model" mapstructure:"model"`
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `json:"max_tokens" mapstructure:"max_tokens"`
}

// EmbeddingsConfig selects the embedding backend.
type EmbeddingsConfig struct {
	Provider  string `json:"provider" mapstructure:"provider"`
	Model     string `json:"model" mapstructure:"model"`
	Dimension int    `json:"dimension" mapstructure:"dimension"`
}

// IndexConfig locates the vector index.
type IndexConfig struct {
	Path      string `json:"path" mapstructure:"path"`
	Namespace string `json:"namespace" mapstructure:"namespace"`
	TopK      int    `json:"top_k" mapstructure:"top_k"`
}

// CheckpointConfig selects the agent state store.
type CheckpointConfig struct {
	Backend       string        `json:"backend" mapstructure:"backend"` // memory, redis
	RedisURL      string        `json:"redis_url" mapstructure:"redis_url"`
	TTL           time.Duration `json:"ttl" mapstructure:"ttl"`
	MaxPDFContext int           `json:"max_pdf_context" mapstructure:"max_pdf_context"`
	MaxSummary    int           `json:"max_summary" mapstructure:"max_summary"`
}

// ConversationsConfig selects the transcript store.
type ConversationsConfig struct {
	Backend       string `json:"backend" mapstructure:"backend"` // sqlite, mongo
	Path          string `json:"path" mapstructure:"path"`
	MongoURI      string `json:"mongo_uri" mapstructure:"mongo_uri"`
	MongoDatabase string `json:"mongo_database" mapstructure:"mongo_database"`
	HistoryLimit  int    `json:"history_limit" mapstructure:"history_limit"`
}

// SearchConfig selects the web search backend.
type SearchConfig struct {
	Provider    string `json:"provider" mapstructure:"provider"` // duckduckgo, searxng, brave
	SearXNGURL  string `json:"searxng_url" mapstructure:"searxng_url"`
	BraveAPIKey string `json:"brave_api_key" mapstructure:"brave_api_key"`
	Region      string `json:"region" mapstructure:"region"`
}

// CorpusConfig points at the legal documents fed into the index.
type CorpusConfig struct {
	Dir   string `json:"dir" mapstructure:"dir"`
	Watch bool   `json:"watch" mapstructure:"watch"`
}

// JobsConfig holds cron specs for background jobs.
type JobsConfig struct {
	CheckpointSweep string `json:"checkpoint_sweep" mapstructure:"checkpoint_sweep"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `json:"level" mapstructure:"level"`
	File       string `json:"file" mapstructure:"file"`
	Console    bool   `json:"console" mapstructure:"console"`
	Pretty     bool   `json:"pretty" mapstructure:"pretty"`
	MaxSizeMB  int    `json:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `json:"max_backups" mapstructure:"max_backups"`
	Redaction  bool   `json:"redaction" mapstructure:"redaction"`
}

// TracingConfig controls OpenTelemetry.
type TracingConfig struct {
	Enabled     bool    `json:"enabled" mapstructure:"enabled"`
	ServiceName string  `json:"service_name" mapstructure:"service_name"`
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8000,
			AllowedOrigins:    []string{"*"},
			MessagesPerMinute: 30,
			MaxUploadMB:       20,
		},
		Auth: AuthConfig{
			Algorithm: "HS256",
		},
		Providers: ProvidersConfig{
			Groq:   ProviderConfig{BaseURL: "https://api.groq.com/openai/v1/"},
			Gemini: ProviderConfig{BaseURL: "https://generativelanguage.googleapis.com/v1beta/openai/"},
		},
		Models: []ModelConfig{
			{Name: "Llama 3.3 70B", Provider: "groq", Model: "llama-3.3-70b-versatile"},
			{Name: "Llama 3.1 8B", Provider: "groq", Model: "llama-3.1-8b-instant"},
			{Name: "Gemini 2.5 Flash", Provider: "gemini", Model: "gemini-2.5-flash"},
		},
		FastModel: ModelConfig{Name: "fast", Provider: "groq", Model: "llama-3.3-70b-versatile"},
		Embeddings: EmbeddingsConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			Dimension: 1536,
		},
		Index: IndexConfig{
			Namespace: "Corpus",
			TopK:      3,
		},
		Checkpoint: CheckpointConfig{
			Backend:       "memory",
			TTL:           24 * time.Hour,
			MaxPDFContext: 200_000,
			MaxSummary:    8_000,
		},
		Conversations: ConversationsConfig{
			Backend:       "sqlite",
			MongoDatabase: "legalbot",
			HistoryLimit:  20,
		},
		Search: SearchConfig{
			Provider: "duckduckgo",
			Region:   "vn-vi",
		},
		Jobs: JobsConfig{
			CheckpointSweep: "@every 10m",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Console:    true,
			Pretty:     true,
			MaxSizeMB:  50,
			MaxBackups: 5,
			Redaction:  true,
		},
		Tracing: TracingConfig{
			ServiceName: "legalbot",
			SampleRatio: 1,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.Auth.SecretKey == "" {
		return fmt.Errorf("auth.secret_key is required")
	}
	if c.Auth.Algorithm != "HS256" && c.Auth.Algorithm != "HS384" && c.Auth.Algorithm != "HS512" {
		return fmt.Errorf("auth.algorithm %q is not supported (must be HS256, HS384 or HS512)", c.Auth.Algorithm)
	}

	if len(c.Models) == 0 {
		return fmt.Errorf("at least one model must be configured")
	}
	for i, m := range c.Models {
		if m.Model == "" {
			return fmt.Errorf("model %d: model is required", i)
		}
		if _, ok := c.Providers.Get(m.Provider); !ok {
			return fmt.Errorf("model %d (%s): invalid provider %q (must be: groq, gemini, openai, anthropic)", i, m.Model, m.Provider)
		}
	}
	if len(c.UsableModels()) == 0 {
		return fmt.Errorf("no AI credentials configured: at least one model needs a provider api_key")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	switch c.Checkpoint.Backend {
	case "memory":
	case "redis":
		if c.Checkpoint.RedisURL == "" {
			return fmt.Errorf("checkpoint.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid checkpoint backend: %s", c.Checkpoint.Backend)
	}

	switch c.Conversations.Backend {
	case "sqlite":
	case "mongo":
		if c.Conversations.MongoURI == "" {
			return fmt.Errorf("conversations.mongo_uri is required for the mongo backend")
		}
	default:
		return fmt.Errorf("invalid conversations backend: %s", c.Conversations.Backend)
	}

	switch strings.ToLower(c.Search.Provider) {
	case "duckduckgo":
	case "searxng":
		if c.Search.SearXNGURL == "" {
			return fmt.Errorf("search.searxng_url is required for the searxng provider")
		}
	case "brave":
		if c.Search.BraveAPIKey == "" {
			return fmt.Errorf("search.brave_api_key is required for the brave provider")
		}
	default:
		return fmt.Errorf("invalid search provider: %s", c.Search.Provider)
	}

	return nil
}

// UsableModels returns the configured chain minus entries whose provider
// has no API key. Gemini is skipped this way when GOOGLE_API_KEY is unset.
func (c *Config) UsableModels() []ModelConfig {
	var out []ModelConfig
	for _, m := range c.Models {
		p, ok := c.Providers.Get(m.Provider)
		if !ok || p.APIKey == "" {
			continue
		}
		out = append(out, m)
	}
	return out
}
