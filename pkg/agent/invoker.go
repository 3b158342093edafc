package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/PVL-Linh/LegalBot-AI/internal/observability"
	"github.com/PVL-Linh/LegalBot-AI/internal/tracing"
)

// ApologyText is returned as the assistant answer when every backend fails.
const ApologyText = "⚠️ Hệ thống AI hiện đang chịu tải cao. Vui lòng thử lại sau giây lát hoặc làm mới trang."

// ChainExhaustedBackend names the synthetic backend of an apology response.
const ChainExhaustedBackend = "none"

// Invoker tries a fixed chain of backends for one inference call.
type Invoker struct {
	chain  []NamedBackend
	logger zerolog.Logger
}

// NewInvoker creates an invoker. The chain is copied; its order is the
// fallback order.
func NewInvoker(chain []NamedBackend, logger zerolog.Logger) (*Invoker, error) {
	observability.EnsureRegistered()

	if len(chain) == 0 {
		return nil, fmt.Errorf("at least one backend is required")
	}
	for i, nb := range chain {
		if nb.Backend == nil {
			return nil, fmt.Errorf("backend %d (%s) is nil", i, nb.Name)
		}
		if nb.Name == "" {
			return nil, fmt.Errorf("backend %d has no name", i)
		}
	}

	return &Invoker{
		chain:  append([]NamedBackend(nil), chain...),
		logger: logger.With().Str("component", "invoker").Logger(),
	}, nil
}

// Backends returns the chain names in order.
func (inv *Invoker) Backends() []string {
	names := make([]string, len(inv.chain))
	for i, nb := range inv.chain {
		names[i] = nb.Name
	}
	return names
}

// Invoke returns the first successful backend response. Each backend is
// attempted once, without backoff. When all fail the apology is returned
// with a nil error. Only a cancelled ctx yields an error.
func (inv *Invoker) Invoke(ctx context.Context, req Request, sink ChunkSink) (*Response, error) {
	logger := tracing.LoggerFromContext(ctx, inv.logger)

	var lastErr error
	for _, nb := range inv.chain {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		visible := 0
		attemptSink := sink
		if sink != nil {
			attemptSink = func(chunk StreamChunk) {
				if !chunk.ToolCallFragment {
					visible += len(chunk.Content)
				}
				sink(chunk)
			}
		}

		resp, err := inv.attempt(ctx, nb, req, attemptSink)
		if err == nil {
			resp.Backend = nb.Name
			return resp, nil
		}
		lastErr = err
		if visible > 0 && ctx.Err() == nil {
			sink.emit(StreamChunk{Retracted: visible})
		}

		switch class := ClassifyError(err); class {
		case ErrorClassCanceled:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn().Str("backend", nb.Name).Err(err).Msg("Backend call cancelled, trying next backend")
		case ErrorClassNotFound:
			logger.Warn().Str("backend", nb.Name).Err(err).Msg("Backend model not found, skipping to next backend")
		case ErrorClassRateLimited:
			logger.Info().Str("backend", nb.Name).Err(err).Msg("Backend busy, trying next backend")
		default:
			logger.Warn().Str("backend", nb.Name).Err(err).Msg("Backend failed, trying next backend")
		}
	}

	observability.RecordChainExhausted()
	logger.Error().Err(lastErr).Msg("All backends failed")
	return &Response{Content: ApologyText, Backend: ChainExhaustedBackend}, nil
}

func (inv *Invoker) attempt(ctx context.Context, nb NamedBackend, req Request, sink ChunkSink) (resp *Response, err error) {
	ctx, span := tracing.StartSpan(
		ctx,
		"legalbot.agent",
		"agent.backend_attempt",
		attribute.String("backend", nb.Name),
		attribute.String("provider", nb.Backend.Provider()),
	)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, fmt.Errorf("backend %s panicked: %v", nb.Name, r)
		}
		observability.RecordBackendAttempt(nb.Name, ClassifyError(err).String(), time.Since(start))
		tracing.EndSpan(span, err)
	}()

	resp, err = nb.Backend.Generate(ctx, req, sink)
	if err == nil && resp == nil {
		err = fmt.Errorf("backend %s returned no response", nb.Name)
	}
	return resp, err
}
