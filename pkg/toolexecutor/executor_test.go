package toolexecutor

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(t *testing.T) *ToolExecutor {
	t.Helper()
	return New(zerolog.New(io.Discard))
}

func queryTool(name string, handler ToolHandler) ToolDefinition {
	return ToolDefinition{
		Name:        name,
		Description: "test tool",
		Parameters: []ToolParameter{
			{Name: "query", Type: "string", Description: "query text", Required: true},
		},
		Handler: handler,
	}
}

func TestToolExecutor_RegisterTool(t *testing.T) {
	te := newTestExecutor(t)

	t.Run("should register a valid definition", func(t *testing.T) {
		err := te.RegisterTool(queryTool(ToolWebSearch, func(ctx context.Context, call Call) (string, error) {
			return "ok", nil
		}))
		require.NoError(t, err)
		assert.NotNil(t, te.GetTool(ToolWebSearch))
		assert.Equal(t, []string{ToolWebSearch}, te.ListTools())
	})

	t.Run("should reject duplicate names", func(t *testing.T) {
		err := te.RegisterTool(queryTool(ToolWebSearch, func(ctx context.Context, call Call) (string, error) {
			return "", nil
		}))
		assert.Error(t, err)
	})

	tests := []struct {
		name string
		def  ToolDefinition
	}{
		{name: "empty name", def: ToolDefinition{Description: "x", Handler: func(context.Context, Call) (string, error) { return "", nil }}},
		{name: "empty description", def: ToolDefinition{Name: "x", Handler: func(context.Context, Call) (string, error) { return "", nil }}},
		{name: "nil handler", def: ToolDefinition{Name: "x", Description: "x"}},
		{name: "bad parameter type", def: ToolDefinition{
			Name: "x", Description: "x",
			Parameters: []ToolParameter{{Name: "p", Type: "date", Description: "p"}},
			Handler:    func(context.Context, Call) (string, error) { return "", nil },
		}},
	}
	for _, tt := range tests {
		t.Run("should reject "+tt.name, func(t *testing.T) {
			assert.Error(t, te.RegisterTool(tt.def))
		})
	}
}

func TestToolExecutor_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("should pass the decoded call to the handler", func(t *testing.T) {
		te := newTestExecutor(t)
		require.NoError(t, te.RegisterTool(queryTool(ToolLegalAssistant, func(ctx context.Context, call Call) (string, error) {
			args, ok := call.(LegalAssistantCall)
			require.True(t, ok)
			return "answer for " + args.Query, nil
		})))

		res := te.Execute(ctx, ToolLegalAssistant, `{"query":"kết hôn"}`)
		assert.True(t, res.Success)
		assert.Equal(t, "answer for kết hôn", res.Text())
		assert.Equal(t, ToolLegalAssistant, res.Tool)
	})

	t.Run("should return text for unknown tools", func(t *testing.T) {
		te := newTestExecutor(t)
		res := te.Execute(ctx, "delete_everything", `{}`)
		assert.False(t, res.Success)
		assert.Contains(t, res.Text(), "tool not found")
	})

	t.Run("should return text for schema violations", func(t *testing.T) {
		te := newTestExecutor(t)
		require.NoError(t, te.RegisterTool(queryTool(ToolWebSearch, func(context.Context, Call) (string, error) {
			return "unreachable", nil
		})))

		res := te.Execute(ctx, ToolWebSearch, `{"query": 42}`)
		assert.False(t, res.Success)
		assert.Contains(t, res.Text(), "parameter validation failed")

		res = te.Execute(ctx, ToolWebSearch, `{}`)
		assert.False(t, res.Success)
		assert.Contains(t, res.Text(), "query")
	})

	t.Run("should return text for malformed json", func(t *testing.T) {
		te := newTestExecutor(t)
		require.NoError(t, te.RegisterTool(queryTool(ToolWebSearch, func(context.Context, Call) (string, error) {
			return "unreachable", nil
		})))

		res := te.Execute(ctx, ToolWebSearch, `{"query":`)
		assert.False(t, res.Success)
		assert.Contains(t, res.Text(), "invalid arguments")
	})

	t.Run("should convert handler errors and panics", func(t *testing.T) {
		te := newTestExecutor(t)
		require.NoError(t, te.RegisterTool(queryTool(ToolWebSearch, func(context.Context, Call) (string, error) {
			return "", errors.New("upstream down")
		})))
		require.NoError(t, te.RegisterTool(queryTool(ToolLegalAssistant, func(context.Context, Call) (string, error) {
			panic("boom")
		})))

		res := te.Execute(ctx, ToolWebSearch, `{"query":"x"}`)
		assert.Equal(t, "Error: upstream down", res.Text())

		res = te.Execute(ctx, ToolLegalAssistant, `{"query":"x"}`)
		assert.False(t, res.Success)
		assert.Contains(t, res.Text(), "tool panicked: boom")
	})

	t.Run("should time out slow handlers", func(t *testing.T) {
		te := newTestExecutor(t)
		require.NoError(t, te.RegisterTool(queryTool(ToolWebSearch, func(ctx context.Context, call Call) (string, error) {
			<-ctx.Done()
			time.Sleep(10 * time.Millisecond)
			return "late", nil
		})))

		callCtx := ContextWithExecContext(ctx, &ExecutionContext{Timeout: 20 * time.Millisecond})
		res := te.Execute(callCtx, ToolWebSearch, `{"query":"x"}`)
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "timeout")
	})

	t.Run("should apply optional defaults", func(t *testing.T) {
		te := newTestExecutor(t)
		require.NoError(t, te.RegisterTool(ToolDefinition{
			Name:        ToolDateInfo,
			Description: "date",
			Parameters:  []ToolParameter{{Name: "query", Type: "string", Description: "q", Default: "today"}},
			Handler: func(ctx context.Context, call Call) (string, error) {
				return call.(DateInfoCall).Query, nil
			},
		}))

		assert.Equal(t, "today", te.Execute(ctx, ToolDateInfo, "").Text())
	})

	t.Run("should truncate large output", func(t *testing.T) {
		te := newTestExecutor(t)
		require.NoError(t, te.RegisterTool(queryTool(ToolWebSearch, func(context.Context, Call) (string, error) {
			return strings.Repeat("ư", maxOutputSize), nil
		})))

		res := te.Execute(ctx, ToolWebSearch, `{"query":"x"}`)
		assert.True(t, res.Success)
		assert.True(t, res.Truncated)
		assert.True(t, strings.HasSuffix(res.Output, "[output truncated]"))
	})
}

func TestDecodeCall(t *testing.T) {
	t.Run("should decode every known tool", func(t *testing.T) {
		c, err := DecodeCall(ToolCalculateFee, map[string]interface{}{"service": "ly hôn"})
		require.NoError(t, err)
		assert.Equal(t, CalculateFeeCall{Service: "ly hôn"}, c)

		c, err = DecodeCall(ToolFormatDocument, map[string]interface{}{"document_type": "kết hôn"})
		require.NoError(t, err)
		assert.Equal(t, ToolFormatDocument, c.ToolName())

		c, err = DecodeCall(ToolDateInfo, map[string]interface{}{})
		require.NoError(t, err)
		assert.Equal(t, DateInfoCall{Query: "today"}, c)
	})

	t.Run("should reject unknown names", func(t *testing.T) {
		_, err := DecodeCall("nope", nil)
		assert.ErrorIs(t, err, ErrUnknownTool)
	})

	t.Run("should reject missing required fields", func(t *testing.T) {
		_, err := DecodeCall(ToolWebSearch, map[string]interface{}{})
		assert.Error(t, err)
	})
}
