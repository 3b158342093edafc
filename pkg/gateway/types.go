package gateway

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/PVL-Linh/LegalBot-AI/pkg/auth"
)

// EventType identifies frames sent to chat clients.
type EventType string

const (
	EventMeta   EventType = "meta"
	EventStart  EventType = "start"
	EventStatus EventType = "status"
	EventToken  EventType = "token"
	EventError  EventType = "error"
	EventEnd    EventType = "end"
)

// StreamEvent is one outbound websocket frame.
type StreamEvent struct {
	Type           EventType `json:"type"`
	Content        string    `json:"content,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	FullContent    string    `json:"full_content,omitempty"`
}

// Terminal reports whether the event closes a turn.
func (e StreamEvent) Terminal() bool {
	return e.Type == EventEnd || e.Type == EventError
}

func metaEvent(conversationID string) StreamEvent {
	return StreamEvent{Type: EventMeta, ConversationID: conversationID}
}

func startEvent() StreamEvent { return StreamEvent{Type: EventStart} }

func statusEvent(toolName string) StreamEvent {
	return StreamEvent{Type: EventStatus, Content: "Running tool: " + toolName + "..."}
}

func tokenEvent(content string) StreamEvent {
	return StreamEvent{Type: EventToken, Content: content}
}

func errorEvent(content string) StreamEvent {
	return StreamEvent{Type: EventError, Content: content}
}

func endEvent(fullContent string) StreamEvent {
	return StreamEvent{Type: EventEnd, FullContent: fullContent}
}

// Client-facing messages.
const (
	MsgUnauthorized    = "Unauthorized"
	MsgAccessDenied    = "Access denied to conversation"
	MsgLoopErrorPrefix = "Lỗi hệ thống AI: "
	MsgRateLimited     = "Bạn đang gửi tin nhắn quá nhanh. Vui lòng chờ trong giây lát."
	MsgEmptyAnswer     = "Xin lỗi, tôi chưa thể hoàn tất câu trả lời. Vui lòng thử lại."
	MsgForbiddenChat   = "Không có quyền truy cập đoạn chat này"
	MsgMessageDeleted  = "Message deleted successfully"
	MsgMessageNotFound = "Message not found"
	MsgPDFReadPrefix   = "Lỗi đọc PDF: "
	MsgDatabasePrefix  = "Lỗi lưu Database: "
)

// Session is one authenticated websocket connection.
type Session struct {
	ID             string
	Conn           *websocket.Conn
	User           *auth.User
	ConversationID string
	ConnectedAt    time.Time
	LastActivity   time.Time
	IPAddress      string
	RateLimiter    *SessionRateLimiter
}

// SessionInfo describes a connected session.
type SessionInfo struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	ConnectedAt    time.Time `json:"connected_at"`
	LastActivity   time.Time `json:"last_activity"`
	IPAddress      string    `json:"ip_address"`
	Idle           bool      `json:"idle"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ChatResponse is the reply of POST /chat.
type ChatResponse struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id"`
}

// UploadResponse is the reply of POST /chat/upload/{conversation_id}.
type UploadResponse struct {
	Status        string `json:"status"`
	Filename      string `json:"filename"`
	Message       string `json:"message"`
	ExtractedText string `json:"extracted_text"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}
