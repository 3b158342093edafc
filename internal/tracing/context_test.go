package tracing

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextValues(t *testing.T) {
	t.Run("should round trip every key", func(t *testing.T) {
		ctx := context.Background()
		ctx = WithTraceID(ctx, "trace")
		ctx = WithConversationID(ctx, "conv")
		ctx = WithUserID(ctx, "user")
		ctx = WithSessionID(ctx, "sess")
		ctx = WithTurnID(ctx, "turn")

		tc := FromContext(ctx)
		assert.Equal(t, &TraceContext{
			TraceID:        "trace",
			ConversationID: "conv",
			UserID:         "user",
			SessionID:      "sess",
			TurnID:         "turn",
		}, tc)
	})

	t.Run("should return empty strings when unset", func(t *testing.T) {
		ctx := context.Background()
		assert.Empty(t, GetTraceID(ctx))
		assert.Empty(t, GetConversationID(ctx))
		assert.Empty(t, GetUserID(ctx))
	})

	t.Run("should tag a new turn", func(t *testing.T) {
		ctx := NewTurnContext(context.Background(), "conv-1")
		assert.NotEmpty(t, GetTurnID(ctx))
		assert.Equal(t, "conv-1", GetConversationID(ctx))
	})
}

func TestDetach(t *testing.T) {
	parent, cancel := context.WithCancel(WithUserID(WithConversationID(context.Background(), "c"), "u"))
	cancel()

	detached := Detach(parent)
	require.NoError(t, detached.Err())
	assert.Equal(t, "c", GetConversationID(detached))
	assert.Equal(t, "u", GetUserID(detached))
}

func TestMergeContext(t *testing.T) {
	target := WithConversationID(context.Background(), "keep")
	source := WithUserID(WithConversationID(context.Background(), "drop"), "u")

	merged := MergeContext(target, source)
	assert.Equal(t, "keep", GetConversationID(merged))
	assert.Equal(t, "u", GetUserID(merged))
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := WithConversationID(WithTraceID(context.Background(), "t-1"), "c-1")
	logger := LoggerFromContext(ctx, base)
	logger.Info().Msg("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "t-1", entry["traceId"])
	assert.Equal(t, "c-1", entry["conversationId"])
	assert.NotContains(t, entry, "userId")
}

func TestStartSpan(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "legalbot.test", "test.span")
	defer EndSpan(span, nil)
	assert.NotNil(t, ctx)
}
