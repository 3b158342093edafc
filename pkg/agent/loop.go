package agent

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/PVL-Linh/LegalBot-AI/internal/observability"
	"github.com/PVL-Linh/LegalBot-AI/internal/tracing"
	"github.com/PVL-Linh/LegalBot-AI/pkg/toolexecutor"
)

// DefaultToolCallCeiling is the number of tool-call messages a state may hold
// before the loop refuses to dispatch more.
const DefaultToolCallCeiling = 4

// EventType identifies loop events.
type EventType string

const (
	EventToken     EventType = "token"
	EventToolStart EventType = "tool_start"
	EventToolEnd   EventType = "tool_end"
	EventDone      EventType = "done"
	// EventRetract withdraws Retracted bytes of token text already emitted.
	EventRetract   EventType = "retract"
)

// Event is emitted by the loop while a turn runs.
type Event struct {
	Type             EventType
	Content          string
	ToolCallFragment bool
	Tool             string
	CallID           string
	Success          bool
	Retracted        int
}

// EventSink receives loop events in production order. It may be nil.
type EventSink func(Event)

func (s EventSink) emit(ev Event) {
	if s != nil {
		s(ev)
	}
}

// ModelInvoker performs one inference call.
type ModelInvoker interface {
	Invoke(ctx context.Context, req Request, sink ChunkSink) (*Response, error)
}

// ToolDispatcher executes tool calls by name.
type ToolDispatcher interface {
	Execute(ctx context.Context, toolName, rawArgs string) toolexecutor.ToolResult
	Definitions() []toolexecutor.ToolDefinition
}

// LoopConfig holds loop configuration
type LoopConfig struct {
	Invoker ModelInvoker
	Tools   ToolDispatcher
	Logger  zerolog.Logger
	// Ceiling overrides DefaultToolCallCeiling when positive.
	Ceiling int
}

// Loop runs the AGENT -> (TOOLS -> AGENT)* -> END state machine.
type Loop struct {
	invoker ModelInvoker
	tools   ToolDispatcher
	logger  zerolog.Logger
	ceiling int
}

// NewLoop creates a new control loop
func NewLoop(cfg LoopConfig) (*Loop, error) {
	observability.EnsureRegistered()

	if cfg.Invoker == nil {
		return nil, fmt.Errorf("invoker is required")
	}
	if cfg.Tools == nil {
		return nil, fmt.Errorf("tool dispatcher is required")
	}
	ceiling := cfg.Ceiling
	if ceiling <= 0 {
		ceiling = DefaultToolCallCeiling
	}

	return &Loop{
		invoker: cfg.Invoker,
		tools:   cfg.Tools,
		logger:  cfg.Logger.With().Str("component", "agent").Logger(),
		ceiling: ceiling,
	}, nil
}

// Run appends input as a user message and drives the state machine until the
// model stops asking for tools or the ceiling is hit. The returned state
// carries every message produced during the run. An error is returned only
// when ctx ends.
func (l *Loop) Run(ctx context.Context, state State, input string, sink EventSink) (State, error) {
	ctx, span := tracing.StartSpan(
		ctx,
		"legalbot.agent",
		"agent.loop",
		attribute.String("conversation_id", tracing.GetConversationID(ctx)),
	)
	var runErr error
	defer func() { tracing.EndSpan(span, runErr) }()
	logger := tracing.LoggerFromContext(ctx, l.logger)

	state.Messages = append([]Message(nil), state.Messages...)
	if input != "" {
		state.Messages = append(state.Messages, Message{Role: RoleUser, Content: input})
	}
	tools := l.toolSpecs()

	for step := 0; ; step++ {
		// AGENT
		req := Request{
			SystemPrompt: SystemPrompt(state),
			Messages:     requestMessages(state.Messages),
			Tools:        tools,
		}
		resp, err := l.invoker.Invoke(ctx, req, func(chunk StreamChunk) {
			if chunk.Retracted > 0 {
				sink.emit(Event{Type: EventRetract, Retracted: chunk.Retracted})
				return
			}
			sink.emit(Event{Type: EventToken, Content: chunk.Content, ToolCallFragment: chunk.ToolCallFragment})
		})
		if err != nil {
			runErr = fmt.Errorf("agent step %d: %w", step, err)
			return state, runErr
		}
		state.Messages = append(state.Messages, resp.Message())

		if !resp.Message().HasToolCalls() {
			logger.Debug().Int("step", step).Str("backend", resp.Backend).Msg("Agent finished")
			break
		}
		if n := state.ToolCallMessages(); n > l.ceiling {
			observability.RecordCeilingHit()
			logger.Info().Int("toolCallMessages", n).Int("ceiling", l.ceiling).Msg("Tool call ceiling reached, ending turn")
			break
		}

		// TOOLS
		for _, call := range resp.ToolCalls {
			if err := ctx.Err(); err != nil {
				runErr = err
				return state, runErr
			}
			state.Messages = append(state.Messages, l.dispatch(ctx, call, sink, logger))
		}
	}

	sink.emit(Event{Type: EventDone, Content: state.FinalAnswer()})
	return state, nil
}

func (l *Loop) dispatch(ctx context.Context, call ToolCall, sink EventSink, logger zerolog.Logger) Message {
	sink.emit(Event{Type: EventToolStart, Tool: call.Name, CallID: call.ID})

	execCtx := toolexecutor.ContextWithExecContext(ctx, &toolexecutor.ExecutionContext{
		ConversationID: tracing.GetConversationID(ctx),
		CallID:         call.ID,
	})
	result := l.tools.Execute(execCtx, call.Name, call.Arguments)
	if !result.Success {
		logger.Warn().Str("tool", call.Name).Str("error", result.Error).Msg("Tool returned an error")
	}

	sink.emit(Event{Type: EventToolEnd, Tool: call.Name, CallID: call.ID, Success: result.Success})
	return Message{Role: RoleTool, Content: result.Text(), ToolCallID: call.ID}
}

func (l *Loop) toolSpecs() []ToolSpec {
	defs := l.tools.Definitions()
	specs := make([]ToolSpec, 0, len(defs))
	for _, def := range defs {
		specs = append(specs, ToolSpec{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.JSONSchema(),
		})
	}
	return specs
}

// requestMessages drops tool calls that never received a result, and tool
// results whose call is missing. Providers reject either shape.
func requestMessages(msgs []Message) []Message {
	answered := make(map[string]bool)
	for _, m := range msgs {
		if m.Role == RoleTool && m.ToolCallID != "" {
			answered[m.ToolCallID] = true
		}
	}

	requested := make(map[string]bool)
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		switch {
		case m.Role == RoleAssistant && m.HasToolCalls():
			var calls []ToolCall
			for _, tc := range m.ToolCalls {
				if answered[tc.ID] {
					calls = append(calls, tc)
					requested[tc.ID] = true
				}
			}
			m.ToolCalls = calls
			if len(calls) == 0 && m.Content == "" {
				continue
			}
		case m.Role == RoleTool:
			if !requested[m.ToolCallID] {
				continue
			}
		}
		out = append(out, m)
	}
	return out
}
