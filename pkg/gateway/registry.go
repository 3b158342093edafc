package gateway

import (
	"sync"
	"time"
)

const idleAfter = 5 * time.Minute

// SessionRegistry tracks connected websocket sessions
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionRegistry creates a new session registry
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*Session),
	}
}

// Add adds a session to the registry
func (r *SessionRegistry) Add(session *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[session.ID] = session
}

// Remove removes a session from the registry
func (r *SessionRegistry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, sessionID)
}

// Get retrieves a session by ID
func (r *SessionRegistry) Get(sessionID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, exists := r.sessions[sessionID]
	return session, exists
}

// GetAll returns all sessions
func (r *SessionRegistry) GetAll() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		sessions = append(sessions, session)
	}
	return sessions
}

// Count returns the number of connected sessions
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

// Infos returns a snapshot of every connected session.
func (r *SessionRegistry) Infos() []SessionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	infos := make([]SessionInfo, 0, len(r.sessions))
	for _, session := range r.sessions {
		info := SessionInfo{
			ID:             session.ID,
			ConversationID: session.ConversationID,
			ConnectedAt:    session.ConnectedAt,
			LastActivity:   session.LastActivity,
			IPAddress:      session.IPAddress,
			Idle:           now.Sub(session.LastActivity) > idleAfter,
		}
		if session.User != nil {
			info.UserID = session.User.ID
		}
		infos = append(infos, info)
	}
	return infos
}

// UpdateActivity updates the last activity time for a session
func (r *SessionRegistry) UpdateActivity(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session, exists := r.sessions[sessionID]; exists {
		session.LastActivity = time.Now()
	}
}

// SetConversation records the conversation a session is bound to.
func (r *SessionRegistry) SetConversation(sessionID, conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session, exists := r.sessions[sessionID]; exists {
		session.ConversationID = conversationID
	}
}
