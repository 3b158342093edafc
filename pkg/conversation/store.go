package conversation

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned for unknown conversations and messages.
	ErrNotFound = errors.New("not found")
	// ErrAccessDenied is returned when the user does not own the conversation.
	ErrAccessDenied = errors.New("access denied")
)

// DefaultHistoryLimit bounds the history loaded for one turn.
const DefaultHistoryLimit = 20

// Conversation is one chat thread owned by a user.
type Conversation struct {
	ID        string    `json:"id" bson:"_id"`
	UserID    string    `json:"user_id" bson:"user_id"`
	Title     string    `json:"title" bson:"title"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// Message is one persisted turn.
type Message struct {
	ID             string    `json:"id" bson:"_id"`
	ConversationID string    `json:"conversation_id" bson:"conversation_id"`
	Role           string    `json:"role" bson:"role"`
	Content        string    `json:"content" bson:"content"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
	Seq            int64     `json:"-" bson:"seq"`
}

// NewMessage is the input to Append.
type NewMessage struct {
	Role    string
	Content string
}

// Store is the persistence collaborator of the chat endpoints.
type Store interface {
	Create(ctx context.Context, userID, title string) (*Conversation, error)
	Get(ctx context.Context, id string) (*Conversation, error)
	Owns(ctx context.Context, id, userID string) (bool, error)
	History(ctx context.Context, id string, limit int) ([]Message, error)
	Append(ctx context.Context, id string, msgs ...NewMessage) error
	Touch(ctx context.Context, id string) error
	DeleteMessage(ctx context.Context, messageID, userID string) error
	Close() error
}

// NewID returns a fresh conversation or message id.
func NewID() string {
	return uuid.NewString()
}

// Title truncates text to its first n runes and trims whitespace.
func Title(text string, n int) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	return string([]rune(text)[:n])
}

func historyLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return limit
}
