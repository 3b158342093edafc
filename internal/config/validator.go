package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validator runs shape checks that should warn rather than stop startup.
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	case "groq":
		if !strings.HasPrefix(key, "gsk_") {
			return fmt.Errorf("invalid Groq API key format (should start with gsk_)")
		}
	case "gemini":
		if !strings.HasPrefix(key, "AIza") {
			return fmt.Errorf("invalid Google API key format (should start with AIza)")
		}
	}

	return nil
}

// ValidateURL checks that raw is an absolute URL with one of the schemes.
func (v *Validator) ValidateURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid url %q: missing host", raw)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("invalid url %q: scheme must be one of %s", raw, strings.Join(schemes, ", "))
}

// ValidateTemperature validates temperature value
func (v *Validator) ValidateTemperature(temp float64) error {
	if temp < 0 || temp > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", temp)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateCronSpec checks a job schedule. Descriptors such as "@every 10m"
// are accepted.
func (v *Validator) ValidateCronSpec(spec string) error {
	if spec == "" {
		return nil
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	return nil
}

// ValidateConfig collects every shape problem in cfg.
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errs []error

	seen := map[string]bool{}
	for i, m := range cfg.Models {
		if err := v.ValidateTemperature(m.Temperature); err != nil {
			errs = append(errs, fmt.Errorf("model %d (%s): %w", i, m.Model, err))
		}
		if seen[m.Provider] {
			continue
		}
		seen[m.Provider] = true
		p, ok := cfg.Providers.Get(m.Provider)
		if !ok || p.APIKey == "" {
			continue
		}
		if err := v.ValidateAPIKey(p.APIKey, m.Provider); err != nil {
			errs = append(errs, fmt.Errorf("provider %s: %w", m.Provider, err))
		}
		if p.BaseURL != "" {
			if err := v.ValidateURL(p.BaseURL, "http", "https"); err != nil {
				errs = append(errs, fmt.Errorf("provider %s: %w", m.Provider, err))
			}
		}
	}

	if cfg.Checkpoint.Backend == "redis" && cfg.Checkpoint.RedisURL != "" {
		if err := v.ValidateURL(cfg.Checkpoint.RedisURL, "redis", "rediss"); err != nil {
			errs = append(errs, err)
		}
	}
	if cfg.Search.SearXNGURL != "" {
		if err := v.ValidateURL(cfg.Search.SearXNGURL, "http", "https"); err != nil {
			errs = append(errs, err)
		}
	}
	if cfg.Checkpoint.MaxPDFContext < 0 || cfg.Checkpoint.MaxSummary < 0 {
		errs = append(errs, fmt.Errorf("checkpoint limits must be >= 0"))
	}
	if cfg.Embeddings.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("embeddings.dimension must be positive"))
	}
	if err := v.ValidateCronSpec(cfg.Jobs.CheckpointSweep); err != nil {
		errs = append(errs, err)
	}
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, err)
	}

	return errs
}
