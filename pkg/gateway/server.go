package gateway

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/PVL-Linh/LegalBot-AI/internal/observability"
	"github.com/PVL-Linh/LegalBot-AI/internal/tracing"
	"github.com/PVL-Linh/LegalBot-AI/pkg/auth"
	"github.com/PVL-Linh/LegalBot-AI/pkg/conversation"
)

// TokenValidator resolves a bearer token to its user.
type TokenValidator interface {
	Validate(token string) (*auth.User, error)
}

// Server serves the chat websocket and the HTTP chat endpoints
type Server struct {
	addr              string
	server            *http.Server
	listener          net.Listener
	upgrader          websocket.Upgrader
	sessions          *SessionRegistry
	turns             *TurnRunner
	conversations     conversation.Store
	validator         TokenValidator
	messagesPerMinute int
	maxUploadBytes    int64
	logger            zerolog.Logger
	isShuttingDown    bool
	shutdownMu        sync.RWMutex
	inFlight          sync.WaitGroup
}

// Config holds server configuration
type Config struct {
	Addr              string
	Turns             *TurnRunner
	Conversations     conversation.Store
	Validator         TokenValidator
	AllowedOrigins    []string
	MessagesPerMinute int
	MaxUploadMB       int
	Logger            zerolog.Logger
}

// NewServer creates a new chat server
func NewServer(cfg Config) (*Server, error) {
	observability.EnsureRegistered()

	if cfg.Addr == "" {
		return nil, fmt.Errorf("listen address is required")
	}
	if cfg.Turns == nil {
		return nil, fmt.Errorf("turn runner is required")
	}
	if cfg.Conversations == nil {
		return nil, fmt.Errorf("conversation store is required")
	}
	if cfg.Validator == nil {
		return nil, fmt.Errorf("token validator is required")
	}
	if cfg.MessagesPerMinute <= 0 {
		cfg.MessagesPerMinute = DefaultMessagesPerMinute
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 20
	}

	s := &Server{
		addr:              cfg.Addr,
		sessions:          NewSessionRegistry(),
		turns:             cfg.Turns,
		conversations:     cfg.Conversations,
		validator:         cfg.Validator,
		messagesPerMinute: cfg.MessagesPerMinute,
		maxUploadBytes:    int64(cfg.MaxUploadMB) << 20,
		logger:            cfg.Logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(cfg.AllowedOrigins),
		},
	}
	return s, nil
}

// originChecker allows every origin when the list is empty or contains "*".
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[origin] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return len(set) == 0 || origin == "" || set[origin]
	}
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/chat", s.handleChatSocket)
	mux.HandleFunc("POST /chat", s.requireUser(s.handleChat))
	mux.HandleFunc("POST /chat/upload/{conversation_id}", s.requireUser(s.handleUpload))
	mux.HandleFunc("DELETE /messages/{message_id}", s.requireUser(s.handleDeleteMessage))
	mux.HandleFunc("GET /conversations/{conversation_id}/messages", s.requireUser(s.handleHistory))
	mux.Handle("/metrics", observability.MetricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

// Start listens on the configured address and serves in the background
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().Str("addr", listener.Addr().String()).Msg("Starting chat server")

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Chat server error")
		}
	}()
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Stop gracefully stops the server
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down chat server")

	// Closing the connections cancels running turns.
	for _, session := range s.sessions.GetAll() {
		session.Conn.Close()
	}

	done := make(chan struct{})
	go func() {
		s.inFlight.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All sessions finished")
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info().Msg("Chat server stopped")
	return nil
}

// Sessions returns information about every connected session
func (s *Server) Sessions() []SessionInfo {
	return s.sessions.Infos()
}

func (s *Server) shuttingDown() bool {
	s.shutdownMu.RLock()
	defer s.shutdownMu.RUnlock()
	return s.isShuttingDown
}

// handleChatSocket upgrades first and authenticates afterwards so failures
// reach the client as events.
func (s *Server) handleChatSocket(w http.ResponseWriter, r *http.Request) {
	if s.shuttingDown() {
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	sessionID, _ := gonanoid.New()
	ctx := tracing.WithSessionID(tracing.NewRequestContext(context.Background()), sessionID)
	logger := tracing.LoggerFromContext(ctx, s.logger)

	s.inFlight.Add(1)
	go s.serveSession(ctx, conn, sessionID, r, logger)
}

func (s *Server) serveSession(ctx context.Context, conn *websocket.Conn, sessionID string, r *http.Request, logger zerolog.Logger) {
	defer s.inFlight.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	writer := newStreamWriter(conn, logger)
	go writer.run(cancel)
	defer func() {
		writer.Close()
		conn.Close()
	}()

	query := r.URL.Query()
	user, err := s.validator.Validate(query.Get("token"))
	if err != nil {
		observability.RecordSecurityAudit(ctx, "ws_connect", r.RemoteAddr, "unauthorized", nil)
		logger.Warn().Err(err).Str("ip", r.RemoteAddr).Msg("Rejected websocket session")
		writer.Send(errorEvent(MsgUnauthorized))
		return
	}
	ctx = tracing.WithUserID(ctx, user.ID)
	logger = tracing.LoggerFromContext(ctx, s.logger)

	conversationID := query.Get("conversation_id")
	if conversationID != "" {
		owns, err := s.conversations.Owns(ctx, conversationID, user.ID)
		if err != nil || !owns {
			observability.RecordSecurityAudit(ctx, "ws_connect", user.ID, "access_denied",
				map[string]interface{}{"conversation_id": conversationID})
			logger.Warn().Err(err).Str("conversationId", conversationID).Msg("Conversation access denied")
			writer.Send(errorEvent(MsgAccessDenied))
			return
		}
	}

	now := time.Now()
	session := &Session{
		ID:             sessionID,
		Conn:           conn,
		User:           user,
		ConversationID: conversationID,
		ConnectedAt:    now,
		LastActivity:   now,
		IPAddress:      r.RemoteAddr,
		RateLimiter:    NewSessionRateLimiter(s.messagesPerMinute),
	}
	s.sessions.Add(session)
	observability.IncActiveSessions()
	defer func() {
		s.sessions.Remove(sessionID)
		observability.DecActiveSessions()
		logger.Info().Msg("Session disconnected")
	}()

	logger.Info().Str("ip", r.RemoteAddr).Str("conversationId", conversationID).Msg("Session connected")

	cs := &chatSession{
		session:        session,
		writer:         writer,
		conversationID: conversationID,
		logger:         logger,
	}
	inbound := make(chan inboundMessage, inboundBuffer)
	go s.readInbound(cs, inbound, cancel)
	go func() {
		// A failed write cancels ctx; unblock the reader too.
		<-ctx.Done()
		_ = conn.SetReadDeadline(time.Now())
	}()

	for msg := range inbound {
		if ctx.Err() != nil {
			continue
		}
		s.serveTurn(ctx, cs, msg)
	}
}
