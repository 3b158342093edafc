package gateway

import (
	"context"
	"io"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/PVL-Linh/LegalBot-AI/pkg/agent"
	"github.com/PVL-Linh/LegalBot-AI/pkg/auth"
	"github.com/PVL-Linh/LegalBot-AI/pkg/checkpoint"
	"github.com/PVL-Linh/LegalBot-AI/pkg/commandqueue"
	"github.com/PVL-Linh/LegalBot-AI/pkg/conversation"
)

type loopFunc func(ctx context.Context, state agent.State, input string, sink agent.EventSink) (agent.State, error)

func (f loopFunc) Run(ctx context.Context, state agent.State, input string, sink agent.EventSink) (agent.State, error) {
	return f(ctx, state, input, sink)
}

// answeringLoop emits events and then answers like a finished loop.
func answeringLoop(answer string, events ...agent.Event) loopFunc {
	return func(ctx context.Context, state agent.State, input string, sink agent.EventSink) (agent.State, error) {
		for _, ev := range events {
			if sink != nil {
				sink(ev)
			}
		}
		state.Messages = append(state.Messages,
			agent.Message{Role: agent.RoleUser, Content: input},
			agent.Message{Role: agent.RoleAssistant, Content: answer},
		)
		return state, nil
	}
}

type harness struct {
	server      *Server
	http        *httptest.Server
	turns       *TurnRunner
	convs       *conversation.SQLiteStore
	checkpoints *checkpoint.MemoryStore
	validator   *auth.Validator
}

func newHarness(t *testing.T, loop LoopRunner, opts ...func(*Config)) *harness {
	t.Helper()
	logger := zerolog.New(io.Discard)

	convs, err := conversation.OpenSQLite(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = convs.Close() })

	checkpoints := checkpoint.NewMemoryStore(checkpoint.Limits{})
	queue := commandqueue.New()
	t.Cleanup(func() { _ = queue.Close() })

	turns, err := NewTurnRunner(TurnRunnerConfig{
		Loop:          loop,
		Conversations: convs,
		Checkpoints:   checkpoints,
		Queue:         queue,
		Logger:        logger,
	})
	require.NoError(t, err)

	validator, err := auth.NewValidator("test-secret", "HS256")
	require.NoError(t, err)

	cfg := Config{
		Addr:              "127.0.0.1:0",
		Turns:             turns,
		Conversations:     convs,
		Validator:         validator,
		MessagesPerMinute: 6000,
		Logger:            logger,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	srv, err := NewServer(cfg)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &harness{
		server:      srv,
		http:        ts,
		turns:       turns,
		convs:       convs,
		checkpoints: checkpoints,
		validator:   validator,
	}
}

func (h *harness) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := h.validator.Issue(auth.User{ID: userID, Email: userID + "@example.com"}, time.Hour)
	require.NoError(t, err)
	return token
}

func (h *harness) dial(t *testing.T, token, conversationID string) *websocket.Conn {
	t.Helper()
	conn, err := h.tryDial(token, conversationID)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (h *harness) tryDial(token, conversationID string) (*websocket.Conn, error) {
	u := "ws" + strings.TrimPrefix(h.http.URL, "http") + "/ws/chat?token=" + url.QueryEscape(token)
	if conversationID != "" {
		u += "&conversation_id=" + url.QueryEscape(conversationID)
	}
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	return conn, err
}

// readTurn reads events up to and including the terminal one.
func readTurn(conn *websocket.Conn) ([]StreamEvent, error) {
	var events []StreamEvent
	for {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var ev StreamEvent
		if err := conn.ReadJSON(&ev); err != nil {
			return events, err
		}
		events = append(events, ev)
		if ev.Terminal() {
			return events, nil
		}
	}
}

func mustReadTurn(t *testing.T, conn *websocket.Conn) []StreamEvent {
	t.Helper()
	events, err := readTurn(conn)
	require.NoError(t, err)
	return events
}

func eventTypes(events []StreamEvent) []EventType {
	types := make([]EventType, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}

// matchesGrammar checks meta? start (status|token)* (end|error).
func matchesGrammar(events []StreamEvent) bool {
	i := 0
	if i < len(events) && events[i].Type == EventMeta {
		i++
	}
	if i >= len(events) || events[i].Type != EventStart {
		return false
	}
	i++
	for i < len(events) && (events[i].Type == EventStatus || events[i].Type == EventToken) {
		i++
	}
	return i == len(events)-1 && events[i].Terminal()
}
