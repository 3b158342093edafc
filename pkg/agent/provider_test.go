package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseChunk(delta map[string]interface{}, finish string) string {
	choice := map[string]interface{}{"index": 0, "delta": delta}
	if finish != "" {
		choice["finish_reason"] = finish
	}
	body, _ := json.Marshal(map[string]interface{}{
		"id":      "chatcmpl-1",
		"object":  "chat.completion.chunk",
		"created": 1,
		"model":   "llama-3.3-70b-versatile",
		"choices": []interface{}{choice},
	})
	return "data: " + string(body) + "\n\n"
}

func newStreamServer(t *testing.T, chunks []string, captured *map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if captured != nil {
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, captured)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range chunks {
			fmt.Fprint(w, c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func TestOpenAIBackend(t *testing.T) {
	t.Run("should stream text deltas and accumulate the message", func(t *testing.T) {
		var captured map[string]interface{}
		server := newStreamServer(t, []string{
			sseChunk(map[string]interface{}{"role": "assistant", "content": "Xin "}, ""),
			sseChunk(map[string]interface{}{"content": "chào"}, ""),
			sseChunk(map[string]interface{}{}, "stop"),
		}, &captured)
		defer server.Close()

		backend := NewOpenAIBackend(BackendConfig{Provider: "groq", Model: "llama-3.3-70b-versatile", APIKey: "gsk_test", BaseURL: server.URL + "/"}, GroqBaseURL)

		var chunks []StreamChunk
		resp, err := backend.Generate(context.Background(), Request{
			SystemPrompt: "sys",
			Messages:     []Message{{Role: RoleUser, Content: "chào"}},
		}, func(c StreamChunk) { chunks = append(chunks, c) })
		require.NoError(t, err)

		assert.Equal(t, "Xin chào", resp.Content)
		assert.Empty(t, resp.ToolCalls)
		assert.Equal(t, []StreamChunk{{Content: "Xin "}, {Content: "chào"}}, chunks)
		assert.Equal(t, "groq", backend.Provider())

		assert.Equal(t, "llama-3.3-70b-versatile", captured["model"])
		assert.Equal(t, float64(0), captured["temperature"])
		msgs := captured["messages"].([]interface{})
		require.Len(t, msgs, 2)
		assert.Equal(t, "system", msgs[0].(map[string]interface{})["role"])
	})

	t.Run("should assemble streamed tool calls and flag their fragments", func(t *testing.T) {
		server := newStreamServer(t, []string{
			sseChunk(map[string]interface{}{"role": "assistant", "tool_calls": []interface{}{map[string]interface{}{
				"index": 0, "id": "call_1", "type": "function",
				"function": map[string]interface{}{"name": "legal_assistant", "arguments": `{"query":`},
			}}}, ""),
			sseChunk(map[string]interface{}{"tool_calls": []interface{}{map[string]interface{}{
				"index": 0, "function": map[string]interface{}{"arguments": `"ly hôn"}`},
			}}}, ""),
			sseChunk(map[string]interface{}{}, "tool_calls"),
		}, nil)
		defer server.Close()

		backend := NewOpenAIBackend(BackendConfig{Model: "m", APIKey: "k", BaseURL: server.URL + "/"}, "")

		var chunks []StreamChunk
		resp, err := backend.Generate(context.Background(), Request{
			Messages: []Message{{Role: RoleUser, Content: "ly hôn"}},
			Tools: []ToolSpec{{Name: "legal_assistant", Description: "d", InputSchema: map[string]interface{}{
				"type": "object", "properties": map[string]interface{}{"query": map[string]interface{}{"type": "string"}},
			}}},
		}, func(c StreamChunk) { chunks = append(chunks, c) })
		require.NoError(t, err)

		require.Len(t, resp.ToolCalls, 1)
		assert.Equal(t, "call_1", resp.ToolCalls[0].ID)
		assert.Equal(t, "legal_assistant", resp.ToolCalls[0].Name)
		assert.JSONEq(t, `{"query":"ly hôn"}`, resp.ToolCalls[0].Arguments)
		for _, c := range chunks {
			assert.True(t, c.ToolCallFragment)
		}
	})

	t.Run("should surface rate limits as classified errors", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error":{"message":"Rate limit reached","type":"tokens"}}`)
		}))
		defer server.Close()

		backend := NewOpenAIBackend(BackendConfig{Model: "m", APIKey: "k", BaseURL: server.URL + "/"}, "")
		_, err := backend.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}}, nil)
		require.Error(t, err)
		assert.Equal(t, ErrorClassRateLimited, ClassifyError(err))
	})

	t.Run("should surface unknown models as not found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":{"message":"The model does not exist"}}`)
		}))
		defer server.Close()

		backend := NewOpenAIBackend(BackendConfig{Model: "m", APIKey: "k", BaseURL: server.URL + "/"}, "")
		_, err := backend.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}}, nil)
		require.Error(t, err)
		assert.Equal(t, ErrorClassNotFound, ClassifyError(err))
	})

	t.Run("should complete a single prompt", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"id":"c","object":"chat.completion","created":1,"model":"m","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"thủ tục ly hôn"}}]}`)
		}))
		defer server.Close()

		backend := NewOpenAIBackend(BackendConfig{Model: "m", APIKey: "k", BaseURL: server.URL + "/"}, "")
		text, err := backend.Complete(context.Background(), "thu tuc li hon")
		require.NoError(t, err)
		assert.Equal(t, "thủ tục ly hôn", text)
	})
}

func TestNewBackend(t *testing.T) {
	t.Run("should build each supported provider", func(t *testing.T) {
		for _, p := range []string{"groq", "gemini", "openai", "anthropic"} {
			b, err := NewBackend(BackendConfig{Provider: p, Model: "m", APIKey: "k"})
			require.NoError(t, err, p)
			assert.Equal(t, p, b.Provider())
		}
	})

	t.Run("should reject missing keys and unknown providers", func(t *testing.T) {
		_, err := NewBackend(BackendConfig{Provider: "groq", Model: "m"})
		assert.Error(t, err)
		_, err = NewBackend(BackendConfig{Provider: "cohere", Model: "m", APIKey: "k"})
		assert.Error(t, err)
	})
}

func TestAnthropicBackendParams(t *testing.T) {
	t.Run("should map tool history and schema", func(t *testing.T) {
		b := NewAnthropicBackend(BackendConfig{Model: "claude", APIKey: "k"})
		params, err := b.params(Request{
			SystemPrompt: "sys",
			Messages: []Message{
				{Role: RoleUser, Content: "a"},
				{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "t1", Name: "web_search", Arguments: `{"query":"x"}`}}},
				{Role: RoleTool, ToolCallID: "t1", Content: "r"},
			},
			Tools: []ToolSpec{{Name: "web_search", Description: "d", InputSchema: map[string]interface{}{
				"properties": map[string]interface{}{}, "required": []string{"query"},
			}}},
		})
		require.NoError(t, err)
		assert.Len(t, params.Messages, 3)
		require.Len(t, params.System, 1)
		assert.Equal(t, "sys", params.System[0].Text)
		require.Len(t, params.Tools, 1)
		assert.Equal(t, []string{"query"}, params.Tools[0].OfTool.InputSchema.Required)
		assert.Equal(t, int64(anthropicDefaultMaxTokens), params.MaxTokens)
	})

	t.Run("should reject unknown roles", func(t *testing.T) {
		b := NewAnthropicBackend(BackendConfig{Model: "claude", APIKey: "k"})
		_, err := b.params(Request{Messages: []Message{{Role: "narrator"}}})
		assert.Error(t, err)
	})
}
