package retrieval

import (
	"context"
	"errors"
	"io"
	"sync"
)

// ErrNotConfigured is returned by a resource with no initializer.
var ErrNotConfigured = errors.New("resource not configured")

// Completer is a single-shot text model, used to rewrite queries.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

type lazy[T any] struct {
	mu    sync.Mutex
	init  func(ctx context.Context) (T, error)
	value T
	ready bool
}

func (l *lazy[T]) get(ctx context.Context) (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ready {
		return l.value, nil
	}
	var zero T
	if l.init == nil {
		return zero, ErrNotConfigured
	}
	v, err := l.init(ctx)
	if err != nil {
		return zero, err
	}
	l.value = v
	l.ready = true
	return v, nil
}

func (l *lazy[T]) peek() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value, l.ready
}

// ResourcesConfig holds one initializer per shared dependency. A nil
// initializer leaves that resource unconfigured.
type ResourcesConfig struct {
	Embedder  func(ctx context.Context) (Embedder, error)
	Index     func(ctx context.Context) (Index, error)
	FastModel func(ctx context.Context) (Completer, error)
}

// Resources lazily builds the embedder, index and fast model. Each has its
// own lock so a slow initializer never blocks the others. Failed
// initializations are retried on the next call.
type Resources struct {
	embedder  lazy[Embedder]
	index     lazy[Index]
	fastModel lazy[Completer]
}

// NewResources creates the resource set.
func NewResources(cfg ResourcesConfig) *Resources {
	r := &Resources{}
	r.embedder.init = cfg.Embedder
	r.index.init = cfg.Index
	r.fastModel.init = cfg.FastModel
	return r
}

func (r *Resources) Embedder(ctx context.Context) (Embedder, error)   { return r.embedder.get(ctx) }
func (r *Resources) Index(ctx context.Context) (Index, error)         { return r.index.get(ctx) }
func (r *Resources) FastModel(ctx context.Context) (Completer, error) { return r.fastModel.get(ctx) }

// Close releases the index if it was opened.
func (r *Resources) Close() error {
	if idx, ok := r.index.peek(); ok {
		if c, ok := idx.(io.Closer); ok {
			return c.Close()
		}
	}
	return nil
}
