package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix      = "LEGALBOT"
	dataDirName    = ".legalbot"
	configFileName = "config.json"
)

// legacyEnv maps config keys to the flat environment names used by earlier
// deployments (.env files). They are consulted after the LEGALBOT_ names.
var legacyEnv = map[string]string{
	"providers.groq.api_key":      "GROQ_API_KEY",
	"providers.gemini.api_key":    "GOOGLE_API_KEY",
	"providers.openai.api_key":    "OPENAI_API_KEY",
	"providers.anthropic.api_key": "ANTHROPIC_API_KEY",
	"auth.secret_key":             "SECRET_KEY",
	"auth.algorithm":              "ALGORITHM",
	"checkpoint.redis_url":        "REDIS_URL",
	"conversations.mongo_uri":     "MONGO_URI",
}

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load reads the JSON config file when present, then applies environment
// overrides. A missing file is not an error.
func (l *Loader) Load() (*Config, error) {
	configPath := l.GetConfigPath()

	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		envName := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envName, legacy); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", legacy, err)
		}
	}
	for _, key := range []string{"data_dir", "server.port", "server.host", "logging.level", "search.provider", "checkpoint.backend", "conversations.backend"} {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// GEMINI_MODEL overrides the model of every gemini entry in the chain.
	if gm := firstEnv("LEGALBOT_GEMINI_MODEL", "GEMINI_MODEL"); gm != "" {
		for i := range cfg.Models {
			if cfg.Models[i].Provider == "gemini" {
				cfg.Models[i].Model = gm
			}
		}
	}

	if err := l.applyPaths(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) applyPaths(cfg *Config) error {
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, dataDirName)
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, "legalbot.log")
	}
	if cfg.Index.Path == "" {
		cfg.Index.Path = filepath.Join(cfg.DataDir, "index.db")
	}
	if cfg.Conversations.Path == "" {
		cfg.Conversations.Path = filepath.Join(cfg.DataDir, "conversations.db")
	}
	return nil
}

// Save writes cfg as JSON to the loader's path.
func (l *Loader) Save(cfg *Config) error {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return fmt.Errorf("no config path")
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(cfg.String()), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, dataDirName, configFileName)
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}
