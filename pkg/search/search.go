// Package search is the pluggable web search backend behind the web_search
// tool. Each backend implements [Provider]; the [Manager] routes a query to
// the configured primary backend.
package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"
)

// DefaultTimeout is the HTTP client timeout used by every provider.
const DefaultTimeout = 15 * time.Second

// ErrNotConfigured is returned when the primary provider is not registered.
var ErrNotConfigured = errors.New("search provider not configured")

// Result is a single search result.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// Options are optional parameters for a search query.
type Options struct {
	// Count is the maximum number of results. Zero means 5.
	Count int `json:"count,omitempty"`

	// Region is a DuckDuckGo-style region code such as "vn-vi".
	Region string `json:"region,omitempty"`

	// Language is an ISO 639-1 code, derived from Region when empty.
	Language string `json:"language,omitempty"`
}

func (o Options) count() int {
	if o.Count <= 0 {
		return 5
	}
	return o.Count
}

func (o Options) language() string {
	if o.Language != "" {
		return o.Language
	}
	if len(o.Region) >= 5 {
		return o.Region[3:]
	}
	return ""
}

// Provider is the interface that search backends implement.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, opts Options) ([]Result, error)
}

// Manager holds configured providers and routes searches.
type Manager struct {
	providers map[string]Provider
	primary   string
	defaults  Options
}

// NewManager creates a search manager. defaults fill unset query options.
func NewManager(primary string, defaults Options) *Manager {
	return &Manager{
		providers: make(map[string]Provider),
		primary:   primary,
		defaults:  defaults,
	}
}

// Register adds a provider to the manager.
func (m *Manager) Register(p Provider) {
	m.providers[p.Name()] = p
}

// Search runs a query against the primary provider.
func (m *Manager) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	p, ok := m.providers[m.primary]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotConfigured, m.primary)
	}
	if opts.Region == "" {
		opts.Region = m.defaults.Region
	}
	if opts.Count == 0 {
		opts.Count = m.defaults.Count
	}

	results, err := p.Search(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	if len(results) > opts.count() {
		results = results[:opts.count()]
	}
	return results, nil
}

// Providers returns the names of all registered providers.
func (m *Manager) Providers() []string {
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: DefaultTimeout}
}

func readErrorBody(r io.Reader, limit int64) string {
	body, _ := io.ReadAll(io.LimitReader(r, limit))
	return string(body)
}
