package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/PVL-Linh/LegalBot-AI/internal/observability"
	"github.com/PVL-Linh/LegalBot-AI/internal/tracing"
	"github.com/PVL-Linh/LegalBot-AI/pkg/agent"
	"github.com/PVL-Linh/LegalBot-AI/pkg/checkpoint"
	"github.com/PVL-Linh/LegalBot-AI/pkg/commandqueue"
	"github.com/PVL-Linh/LegalBot-AI/pkg/conversation"
)

// Transports label turns in logs and metrics.
const (
	TransportWebSocket = "ws"
	TransportHTTP      = "http"
)

// LoopRunner runs one agent turn over a state.
type LoopRunner interface {
	Run(ctx context.Context, state agent.State, input string, sink agent.EventSink) (agent.State, error)
}

// TurnRunnerConfig holds turn runner dependencies
type TurnRunnerConfig struct {
	Loop          LoopRunner
	Conversations conversation.Store
	Checkpoints   checkpoint.Store
	Queue         *commandqueue.CommandQueue
	HistoryLimit  int
	Logger        zerolog.Logger
}

// TurnRunner loads a conversation, runs the loop over it and stores the
// outcome. Turns of one conversation never overlap.
type TurnRunner struct {
	loop          LoopRunner
	conversations conversation.Store
	checkpoints   checkpoint.Store
	queue         *commandqueue.CommandQueue
	historyLimit  int
	logger        zerolog.Logger
}

// Turn describes one user utterance to answer.
type Turn struct {
	Transport      string
	UserID         string
	ConversationID string
	// NewTitle names the conversation created once the loop succeeds when
	// ConversationID is empty. Empty means no conversation is created.
	NewTitle string
	Input    string
	Events   agent.EventSink
	// Deliver runs after the loop and before anything is stored. It returns
	// the assistant content to store. Nil stores the final answer.
	Deliver func(state agent.State) string
}

// TurnResult is the outcome of a successful turn.
type TurnResult struct {
	ConversationID string
	Answer         string
	State          agent.State
}

// NewTurnRunner creates a turn runner
func NewTurnRunner(cfg TurnRunnerConfig) (*TurnRunner, error) {
	if cfg.Loop == nil {
		return nil, fmt.Errorf("agent loop is required")
	}
	if cfg.Conversations == nil {
		return nil, fmt.Errorf("conversation store is required")
	}
	if cfg.Checkpoints == nil {
		return nil, fmt.Errorf("checkpoint store is required")
	}
	if cfg.Queue == nil {
		return nil, fmt.Errorf("command queue is required")
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = conversation.DefaultHistoryLimit
	}
	return &TurnRunner{
		loop:          cfg.Loop,
		conversations: cfg.Conversations,
		checkpoints:   cfg.Checkpoints,
		queue:         cfg.Queue,
		historyLimit:  cfg.HistoryLimit,
		logger:        cfg.Logger,
	}, nil
}

// Run answers turn. An error means the loop failed or ctx ended before the
// answer was delivered; nothing is stored in that case.
func (r *TurnRunner) Run(ctx context.Context, turn Turn) (TurnResult, error) {
	start := time.Now()
	ctx = tracing.NewTurnContext(ctx, turn.ConversationID)
	if turn.UserID != "" {
		ctx = tracing.WithUserID(ctx, turn.UserID)
	}
	ctx, span := tracing.StartSpan(ctx, "legalbot.gateway", "gateway.turn",
		attribute.String("transport", turn.Transport),
	)

	var (
		result TurnResult
		err    error
	)
	if turn.ConversationID == "" {
		result, err = r.execute(ctx, turn)
	} else {
		var value interface{}
		value, err = r.queue.Enqueue(ctx, commandqueue.ConversationLane(turn.ConversationID), func(ctx context.Context) (interface{}, error) {
			return r.execute(ctx, turn)
		})
		if err == nil {
			result = value.(TurnResult)
		}
	}

	observability.RecordTurn(turn.Transport, time.Since(start), err == nil)
	tracing.EndSpan(span, err)
	return result, err
}

func (r *TurnRunner) execute(ctx context.Context, turn Turn) (TurnResult, error) {
	logger := tracing.LoggerFromContext(ctx, r.logger)

	state, thread := r.loadState(ctx, turn.ConversationID, logger)
	prior := len(state.Messages)

	out, err := r.loop.Run(ctx, state, turn.Input, turn.Events)
	if err != nil {
		return TurnResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return TurnResult{}, err
	}

	answer := out.FinalAnswer()
	if turn.Deliver != nil {
		answer = turn.Deliver(out)
	}

	// The answer is out; storing it must not depend on the client staying.
	storeCtx := tracing.Detach(ctx)

	conversationID := turn.ConversationID
	if conversationID == "" && turn.NewTitle != "" && turn.UserID != "" {
		conv, err := r.conversations.Create(storeCtx, turn.UserID, turn.NewTitle)
		if err != nil {
			observability.RecordPersistenceError("create_conversation")
			logger.Error().Err(err).Msg("Failed to create conversation")
		} else {
			conversationID = conv.ID
		}
	}

	if conversationID != "" {
		r.store(storeCtx, conversationID, turn.Input, answer, out, thread, prior, logger)
	}

	return TurnResult{ConversationID: conversationID, Answer: answer, State: out}, nil
}

// loadState builds the loop input from stored history and the checkpoint.
// It also returns the checkpointed thread so the turn can be appended to it.
// Lookup failures degrade to an empty state.
func (r *TurnRunner) loadState(ctx context.Context, conversationID string, logger zerolog.Logger) (agent.State, []agent.Message) {
	var state agent.State
	if conversationID == "" {
		return state, nil
	}

	history, err := r.conversations.History(ctx, conversationID, r.historyLimit)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to load conversation history")
	}
	var persisted []agent.Message
	for _, msg := range history {
		switch msg.Role {
		case agent.RoleUser, agent.RoleAssistant:
			persisted = append(persisted, agent.Message{Role: msg.Role, Content: msg.Content})
		}
	}

	saved, err := r.checkpoints.Load(ctx, conversationID)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to load checkpoint")
		state.Messages = persisted
		return state, nil
	}
	state.Messages = mergeThread(persisted, saved.Messages)
	state.Summary = saved.Summary
	state.PDFContext = saved.PDFContext
	return state, saved.Messages
}

// mergeThread replaces the most recent turns of history with the matching
// checkpointed turns, which also carry tool calls and tool results. Turns are
// matched from the newest backwards by their user message; the first
// mismatch stops the merge and older history is kept as stored.
func mergeThread(history, thread []agent.Message) []agent.Message {
	turns := splitTurns(thread)
	if len(turns) == 0 {
		return history
	}

	end := len(history)
	var merged [][]agent.Message
	for i := len(turns) - 1; i >= 0 && end > 0; i-- {
		start := end - 1
		for start >= 0 && history[start].Role != agent.RoleUser {
			start--
		}
		if start < 0 || history[start].Content != turns[i][0].Content {
			break
		}
		merged = append(merged, turns[i])
		end = start
	}

	out := append([]agent.Message(nil), history[:end]...)
	for i := len(merged) - 1; i >= 0; i-- {
		out = append(out, merged[i]...)
	}
	return out
}

// splitTurns cuts a thread at each user message. Messages before the first
// user message belong to no turn and are dropped.
func splitTurns(thread []agent.Message) [][]agent.Message {
	var turns [][]agent.Message
	for _, msg := range thread {
		if msg.Role == agent.RoleUser {
			turns = append(turns, []agent.Message{msg})
			continue
		}
		if len(turns) > 0 {
			turns[len(turns)-1] = append(turns[len(turns)-1], msg)
		}
	}
	return turns
}

// keepTurns returns the tail of thread holding at most limit turns.
func keepTurns(thread []agent.Message, limit int) []agent.Message {
	turns := splitTurns(thread)
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	var out []agent.Message
	for _, turn := range turns {
		out = append(out, turn...)
	}
	return out
}

func (r *TurnRunner) store(ctx context.Context, conversationID, input, answer string, out agent.State, thread []agent.Message, prior int, logger zerolog.Logger) {
	err := r.conversations.Append(ctx, conversationID,
		conversation.NewMessage{Role: agent.RoleUser, Content: input},
		conversation.NewMessage{Role: agent.RoleAssistant, Content: answer},
	)
	if err != nil {
		observability.RecordPersistenceError("append_messages")
		logger.Error().Err(err).Str("conversationId", conversationID).Msg("Failed to save messages")
	}

	if err := r.conversations.Touch(ctx, conversationID); err != nil {
		observability.RecordPersistenceError("touch_conversation")
		logger.Error().Err(err).Str("conversationId", conversationID).Msg("Failed to update conversation")
	}

	saved := agent.State{
		Summary:    out.Summary,
		PDFContext: out.PDFContext,
	}
	thread = append([]agent.Message(nil), thread...)
	if prior <= len(out.Messages) {
		thread = append(thread, out.Messages[prior:]...)
	}
	saved.Messages = keepTurns(thread, max(r.historyLimit/2, 1))
	if err := r.checkpoints.Save(ctx, conversationID, saved); err != nil {
		observability.RecordPersistenceError("save_checkpoint")
		logger.Error().Err(err).Str("conversationId", conversationID).Msg("Failed to save checkpoint")
	}
}

// AppendDocument adds extracted document text to the conversation's PDF
// context, in the conversation's lane so a running turn cannot overwrite it.
func (r *TurnRunner) AppendDocument(ctx context.Context, conversationID, filename, text string) error {
	_, err := r.queue.Enqueue(ctx, commandqueue.ConversationLane(conversationID), func(ctx context.Context) (interface{}, error) {
		return nil, checkpoint.AppendPDFContext(ctx, r.checkpoints, conversationID, filename, text)
	})
	return err
}
