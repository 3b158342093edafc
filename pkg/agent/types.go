package agent

import "strings"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is a tool invocation requested by the model. Arguments is the raw
// JSON object the model produced.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message represents a message in the conversation
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// HasToolCalls reports whether the message requests at least one tool.
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// State is the checkpointed agent state of one conversation.
type State struct {
	Messages   []Message `json:"messages"`
	Summary    string    `json:"summary,omitempty"`
	PDFContext string    `json:"pdf_context,omitempty"`
}

// FinalAnswer returns the content of the last assistant message.
func (s State) FinalAnswer() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return s.Messages[i].Content
		}
	}
	return ""
}

// ToolCallMessages counts messages that carry tool calls.
func (s State) ToolCallMessages() int {
	n := 0
	for _, m := range s.Messages {
		if m.HasToolCalls() {
			n++
		}
	}
	return n
}

// AppendPDFContext concatenates a new document after the existing context.
func (s *State) AppendPDFContext(filename, text string) {
	var b strings.Builder
	b.WriteString(s.PDFContext)
	b.WriteString("\n\n--- DOCUMENT: ")
	b.WriteString(filename)
	b.WriteString(" ---\n")
	b.WriteString(text)
	s.PDFContext = b.String()
}

// ToolSpec is the model-facing description of one tool.
type ToolSpec struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// Request is one inference call.
type Request struct {
	SystemPrompt string
	Messages     []Message
	Tools        []ToolSpec
}

// Response is the assistant message produced by a backend.
type Response struct {
	Content   string
	ToolCalls []ToolCall
	Backend   string
	Usage     *TokenUsage
}

// Message converts the response to an assistant message.
func (r *Response) Message() Message {
	return Message{Role: RoleAssistant, Content: r.Content, ToolCalls: r.ToolCalls}
}

// TokenUsage tracks token consumption
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// StreamChunk is one streamed fragment. ToolCallFragment marks fragments
// that belong to a tool-call request rather than user-visible text.
// A chunk with Retracted > 0 carries no content: it withdraws that many bytes
// of visible text streamed by a backend that then failed.
type StreamChunk struct {
	Content          string
	ToolCallFragment bool
	Retracted        int
}

// ChunkSink receives streamed fragments. It may be nil.
type ChunkSink func(StreamChunk)

func (s ChunkSink) emit(chunk StreamChunk) {
	if s != nil {
		s(chunk)
	}
}
