package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
)

// OpenAI-compatible endpoints.
const (
	GroqBaseURL   = "https://api.groq.com/openai/v1/"
	GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
)

// Backend is one model endpoint able to stream a completion.
type Backend interface {
	// Generate streams text fragments to sink and returns the complete message.
	Generate(ctx context.Context, req Request, sink ChunkSink) (*Response, error)

	// Provider returns the provider name
	Provider() string
}

// NamedBackend is one entry of the fallback chain.
type NamedBackend struct {
	Name    string
	Backend Backend
}

// BackendConfig describes how to reach one model.
type BackendConfig struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxTokens   int
}

// NewBackend creates a backend for the configured provider.
func NewBackend(cfg BackendConfig) (Backend, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required for %s", cfg.Provider)
	}

	switch cfg.Provider {
	case "groq":
		return NewOpenAIBackend(cfg, GroqBaseURL), nil
	case "gemini":
		return NewOpenAIBackend(cfg, GeminiBaseURL), nil
	case "openai":
		return NewOpenAIBackend(cfg, ""), nil
	case "anthropic":
		return NewAnthropicBackend(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

// ErrorClass groups backend failures by how the chain reacts to them.
type ErrorClass int

const (
	ErrorClassNone ErrorClass = iota
	// ErrorClassNotFound is an unknown model or a misconfigured endpoint.
	ErrorClassNotFound
	// ErrorClassRateLimited covers rate limits, overload and unavailability.
	ErrorClassRateLimited
	ErrorClassCanceled
	ErrorClassOther
)

func (c ErrorClass) String() string {
	switch c {
	case ErrorClassNone:
		return "ok"
	case ErrorClassNotFound:
		return "not_found"
	case ErrorClassRateLimited:
		return "rate_limited"
	case ErrorClassCanceled:
		return "canceled"
	default:
		return "error"
	}
}

// ClassifyError maps a backend error to its class. Status codes from the SDK
// error types take precedence over message matching.
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassNone
	}
	if errors.Is(err, context.Canceled) {
		return ErrorClassCanceled
	}

	status := 0
	var oaErr *openai.Error
	var anErr *anthropic.Error
	switch {
	case errors.As(err, &oaErr):
		status = oaErr.StatusCode
	case errors.As(err, &anErr):
		status = anErr.StatusCode
	}

	switch status {
	case http.StatusNotFound:
		return ErrorClassNotFound
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout, 529:
		return ErrorClassRateLimited
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "not found") || strings.Contains(msg, "models/"):
		return ErrorClassNotFound
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "overloaded") || strings.Contains(msg, "unavailable"):
		return ErrorClassRateLimited
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorClassRateLimited
	}
	return ErrorClassOther
}
