package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PVL-Linh/LegalBot-AI/pkg/agent"
	"github.com/PVL-Linh/LegalBot-AI/pkg/conversation"
)

func TestNewTurnRunner(t *testing.T) {
	t.Run("should require a loop", func(t *testing.T) {
		_, err := NewTurnRunner(TurnRunnerConfig{Logger: zerolog.New(io.Discard)})
		assert.ErrorContains(t, err, "agent loop is required")
	})
}

func TestTurnRunner_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("should build the state from history and checkpoint", func(t *testing.T) {
		var seen agent.State
		h := newHarness(t, loopFunc(func(ctx context.Context, state agent.State, input string, sink agent.EventSink) (agent.State, error) {
			seen = state
			return answeringLoop("mới")(ctx, state, input, sink)
		}))
		conv, err := h.convs.Create(ctx, "u1", "Sổ đỏ")
		require.NoError(t, err)
		require.NoError(t, h.convs.Append(ctx, conv.ID,
			conversation.NewMessage{Role: agent.RoleUser, Content: "cũ"},
			conversation.NewMessage{Role: agent.RoleAssistant, Content: "đáp cũ"},
		))
		require.NoError(t, h.checkpoints.Save(ctx, conv.ID, agent.State{Summary: "tóm tắt", PDFContext: "tài liệu"}))

		result, err := h.turns.Run(ctx, Turn{Transport: TransportHTTP, UserID: "u1", ConversationID: conv.ID, Input: "hỏi tiếp"})
		require.NoError(t, err)
		assert.Equal(t, "mới", result.Answer)
		assert.Equal(t, conv.ID, result.ConversationID)

		require.Len(t, seen.Messages, 2)
		assert.Equal(t, "cũ", seen.Messages[0].Content)
		assert.Equal(t, "tóm tắt", seen.Summary)
		assert.Equal(t, "tài liệu", seen.PDFContext)

		saved, err := h.checkpoints.Load(ctx, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, "tài liệu", saved.PDFContext)
		require.Len(t, saved.Messages, 2)
		assert.Equal(t, "hỏi tiếp", saved.Messages[0].Content)

		history, err := h.convs.History(ctx, conv.ID, 0)
		require.NoError(t, err)
		assert.Len(t, history, 4)
	})

	t.Run("should carry tool calls of earlier turns into the next turn", func(t *testing.T) {
		var seen []agent.State
		h := newHarness(t, loopFunc(func(ctx context.Context, state agent.State, input string, sink agent.EventSink) (agent.State, error) {
			seen = append(seen, state)
			id := fmt.Sprintf("call_%d", len(seen))
			state.Messages = append(state.Messages,
				agent.Message{Role: agent.RoleUser, Content: input},
				agent.Message{Role: agent.RoleAssistant, ToolCalls: []agent.ToolCall{{ID: id, Name: "legal_assistant", Arguments: `{"query":"x"}`}}},
				agent.Message{Role: agent.RoleTool, ToolCallID: id, Content: "kết quả"},
				agent.Message{Role: agent.RoleAssistant, Content: "đáp " + input},
			)
			return state, nil
		}))
		conv, err := h.convs.Create(ctx, "u1", "Thừa kế")
		require.NoError(t, err)

		_, err = h.turns.Run(ctx, Turn{Transport: TransportHTTP, UserID: "u1", ConversationID: conv.ID, Input: "một"})
		require.NoError(t, err)
		_, err = h.turns.Run(ctx, Turn{Transport: TransportHTTP, UserID: "u1", ConversationID: conv.ID, Input: "hai"})
		require.NoError(t, err)

		require.Len(t, seen, 2)
		second := seen[1]
		assert.Equal(t, 1, second.ToolCallMessages())
		require.Len(t, second.Messages, 4)
		assert.Equal(t, "một", second.Messages[0].Content)
		assert.True(t, second.Messages[1].HasToolCalls())
		assert.Equal(t, "call_1", second.Messages[2].ToolCallID)
		assert.Equal(t, "đáp một", second.Messages[3].Content)

		saved, err := h.checkpoints.Load(ctx, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, saved.ToolCallMessages())
		assert.Len(t, saved.Messages, 8)
	})

	t.Run("should store what Deliver returns", func(t *testing.T) {
		h := newHarness(t, answeringLoop("final"))
		conv, err := h.convs.Create(ctx, "u1", "x")
		require.NoError(t, err)

		_, err = h.turns.Run(ctx, Turn{
			ConversationID: conv.ID,
			Input:          "q",
			Deliver:        func(agent.State) string { return "streamed" },
		})
		require.NoError(t, err)

		history, err := h.convs.History(ctx, conv.ID, 0)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "streamed", history[1].Content)
	})

	t.Run("should store nothing when the loop fails", func(t *testing.T) {
		h := newHarness(t, loopFunc(func(ctx context.Context, state agent.State, input string, sink agent.EventSink) (agent.State, error) {
			return state, errors.New("boom")
		}))
		conv, err := h.convs.Create(ctx, "u1", "x")
		require.NoError(t, err)

		_, err = h.turns.Run(ctx, Turn{ConversationID: conv.ID, Input: "q"})
		require.Error(t, err)

		history, err := h.convs.History(ctx, conv.ID, 0)
		require.NoError(t, err)
		assert.Empty(t, history)
		assert.Equal(t, 0, h.checkpoints.Len())
	})

	t.Run("should not create a conversation without a title", func(t *testing.T) {
		h := newHarness(t, answeringLoop("ok"))

		result, err := h.turns.Run(ctx, Turn{UserID: "u1", Input: "q"})
		require.NoError(t, err)
		assert.Empty(t, result.ConversationID)
		assert.Equal(t, "ok", result.Answer)
	})
}

func TestMergeThread(t *testing.T) {
	user := func(c string) agent.Message { return agent.Message{Role: agent.RoleUser, Content: c} }
	answer := func(c string) agent.Message { return agent.Message{Role: agent.RoleAssistant, Content: c} }
	call := func(id string) agent.Message {
		return agent.Message{Role: agent.RoleAssistant, ToolCalls: []agent.ToolCall{{ID: id, Name: "web_search"}}}
	}
	result := func(id string) agent.Message { return agent.Message{Role: agent.RoleTool, ToolCallID: id, Content: "r"} }

	t.Run("should keep history when there is no thread", func(t *testing.T) {
		history := []agent.Message{user("a"), answer("A")}
		assert.Equal(t, history, mergeThread(history, nil))
	})

	t.Run("should replace matching turns and keep older history", func(t *testing.T) {
		history := []agent.Message{user("a"), answer("A"), user("b"), answer("B")}
		thread := []agent.Message{user("b"), call("c1"), result("c1"), answer("B")}

		assert.Equal(t,
			[]agent.Message{user("a"), answer("A"), user("b"), call("c1"), result("c1"), answer("B")},
			mergeThread(history, thread))
	})

	t.Run("should stop at the first turn that does not match", func(t *testing.T) {
		history := []agent.Message{user("x"), answer("X"), user("b"), answer("B")}
		thread := []agent.Message{user("a"), call("c0"), result("c0"), answer("A"), user("b"), call("c1"), result("c1"), answer("B")}

		assert.Equal(t,
			[]agent.Message{user("x"), answer("X"), user("b"), call("c1"), result("c1"), answer("B")},
			mergeThread(history, thread))
	})

	t.Run("should ignore a thread unrelated to the history", func(t *testing.T) {
		history := []agent.Message{user("a"), answer("A")}
		thread := []agent.Message{user("z"), call("c1"), result("c1"), answer("Z")}
		assert.Equal(t, history, mergeThread(history, thread))
	})
}

func TestKeepTurns(t *testing.T) {
	thread := []agent.Message{
		{Role: agent.RoleAssistant, Content: "orphan"},
		{Role: agent.RoleUser, Content: "1"}, {Role: agent.RoleAssistant, Content: "A1"},
		{Role: agent.RoleUser, Content: "2"}, {Role: agent.RoleAssistant, Content: "A2"},
		{Role: agent.RoleUser, Content: "3"}, {Role: agent.RoleAssistant, Content: "A3"},
	}

	kept := keepTurns(thread, 2)
	require.Len(t, kept, 4)
	assert.Equal(t, "2", kept[0].Content)
	assert.Equal(t, "A3", kept[3].Content)
}
