package gateway

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/PVL-Linh/LegalBot-AI/internal/observability"
	"github.com/PVL-Linh/LegalBot-AI/pkg/agent"
	"github.com/PVL-Linh/LegalBot-AI/pkg/conversation"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
	inboundBuffer  = 16

	titleRunes     = 50
	errorTextRunes = 100
)

// streamWriter owns every write to one connection. Events are written in
// the order Send was called.
type streamWriter struct {
	conn      *websocket.Conn
	send      chan StreamEvent
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	logger    zerolog.Logger
}

func newStreamWriter(conn *websocket.Conn, logger zerolog.Logger) *streamWriter {
	return &streamWriter{
		conn:   conn,
		send:   make(chan StreamEvent, sendBuffer),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// run writes queued events until Close. A failed write calls onFailure.
func (w *streamWriter) run(onFailure func()) {
	defer close(w.done)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev := <-w.send:
			if err := w.write(ev); err != nil {
				w.logger.Debug().Err(err).Str("type", string(ev.Type)).Msg("Failed to send event")
				onFailure()
				return
			}
		case <-ticker.C:
			_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := w.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				onFailure()
				return
			}
		case <-w.quit:
			w.flush()
			_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = w.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (w *streamWriter) write(ev StreamEvent) error {
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := w.conn.WriteJSON(ev); err != nil {
		return err
	}
	observability.RecordStreamEvent(string(ev.Type))
	return nil
}

func (w *streamWriter) flush() {
	for {
		select {
		case ev := <-w.send:
			if err := w.write(ev); err != nil {
				return
			}
		default:
			return
		}
	}
}

// Send queues ev. It reports false once the writer has stopped.
func (w *streamWriter) Send(ev StreamEvent) bool {
	select {
	case <-w.quit:
		return false
	case <-w.done:
		return false
	default:
	}
	select {
	case w.send <- ev:
		return true
	case <-w.done:
		return false
	case <-w.quit:
		return false
	}
}

// Close flushes queued events, sends a close frame and waits for the writer.
func (w *streamWriter) Close() {
	w.closeOnce.Do(func() { close(w.quit) })
	<-w.done
}

type inboundMessage struct {
	text    string
	limited bool
}

// chatSession is the per-connection state owned by the turn goroutine.
type chatSession struct {
	session        *Session
	writer         *streamWriter
	conversationID string
	logger         zerolog.Logger
}

// readInbound reads frames until the peer goes away, then cancels the
// session. It keeps reading while a turn runs so a disconnect is noticed.
func (s *Server) readInbound(cs *chatSession, inbound chan<- inboundMessage, cancel context.CancelFunc) {
	defer close(inbound)
	defer cancel()

	conn := cs.session.Conn
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				cs.logger.Warn().Err(err).Msg("WebSocket error")
			}
			return
		}
		s.sessions.UpdateActivity(cs.session.ID)
		if msgType != websocket.TextMessage {
			continue
		}

		msg := inboundMessage{text: string(data), limited: !cs.session.RateLimiter.Allow()}
		select {
		case inbound <- msg:
		default:
			cs.logger.Warn().Msg("Inbound buffer full, dropping message")
		}
	}
}

// serveTurn answers one inbound message, emitting
// meta? start (status|token)* (end|error).
func (s *Server) serveTurn(ctx context.Context, cs *chatSession, msg inboundMessage) {
	text := strings.TrimSpace(msg.text)
	if text == "" {
		return
	}
	user := cs.session.User

	if msg.limited {
		cs.writer.Send(startEvent())
		cs.writer.Send(errorEvent(MsgRateLimited))
		return
	}

	if cs.conversationID == "" {
		conv, err := s.conversations.Create(ctx, user.ID, conversation.Title(text, titleRunes))
		if err != nil {
			observability.RecordPersistenceError("create_conversation")
			cs.logger.Error().Err(err).Msg("Failed to create conversation")
		} else {
			cs.conversationID = conv.ID
			s.sessions.SetConversation(cs.session.ID, conv.ID)
			cs.writer.Send(metaEvent(conv.ID))
		}
	}

	cs.writer.Send(startEvent())

	var full strings.Builder
	_, err := s.turns.Run(ctx, Turn{
		Transport:      TransportWebSocket,
		UserID:         user.ID,
		ConversationID: cs.conversationID,
		Input:          text,
		Events: func(ev agent.Event) {
			switch ev.Type {
			case agent.EventToolStart:
				cs.writer.Send(statusEvent(ev.Tool))
			case agent.EventToken:
				if ev.ToolCallFragment || ev.Content == "" {
					return
				}
				full.WriteString(ev.Content)
				cs.writer.Send(tokenEvent(ev.Content))
			case agent.EventRetract:
				kept := full.String()
				kept = kept[:len(kept)-min(ev.Retracted, len(kept))]
				full.Reset()
				full.WriteString(kept)
			}
		},
		Deliver: func(state agent.State) string {
			content := full.String()
			if full.Len() == 0 {
				content = state.FinalAnswer()
				if strings.TrimSpace(content) == "" {
					content = MsgEmptyAnswer
				}
				cs.writer.Send(tokenEvent(content))
			}
			cs.writer.Send(endEvent(content))
			return content
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			cs.logger.Info().Msg("Client left during turn, discarding it")
			return
		}
		cs.logger.Error().Err(err).Msg("Agent turn failed")
		cs.writer.Send(errorEvent(MsgLoopErrorPrefix + truncateRunes(err.Error(), errorTextRunes)))
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
