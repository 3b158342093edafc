package checkpoint

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PVL-Linh/LegalBot-AI/pkg/agent"
)

// Store persists agent.State keyed by conversation id.
type Store interface {
	Load(ctx context.Context, conversationID string) (agent.State, error)
	Save(ctx context.Context, conversationID string, state agent.State) error
	Delete(ctx context.Context, conversationID string) error
	Close() error
}

// Limits caps the free-text fields of a saved state, in runes. Zero means
// unlimited.
type Limits struct {
	MaxPDFContext int
	MaxSummary    int
}

// Apply trims state according to the limits, keeping the tail of each field.
func (l Limits) Apply(state agent.State) agent.State {
	state.PDFContext = keepTail(state.PDFContext, l.MaxPDFContext)
	state.Summary = keepTail(state.Summary, l.MaxSummary)
	return state
}

func keepTail(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[len(runes)-max:])
}

// AppendPDFContext loads the conversation state, appends one document to its
// PDF context and saves it back.
func AppendPDFContext(ctx context.Context, store Store, conversationID, filename, text string) error {
	state, err := store.Load(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}
	state.AppendPDFContext(filename, text)
	if err := store.Save(ctx, conversationID, state); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

func validateID(conversationID string) error {
	if conversationID == "" {
		return fmt.Errorf("conversation id cannot be empty")
	}
	if strings.ContainsAny(conversationID, "\x00 \n") {
		return fmt.Errorf("conversation id contains invalid characters")
	}
	return nil
}
