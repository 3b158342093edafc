package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PVL-Linh/LegalBot-AI/internal/observability"
	"github.com/PVL-Linh/LegalBot-AI/internal/tracing"
	"github.com/PVL-Linh/LegalBot-AI/pkg/agent"
	"github.com/PVL-Linh/LegalBot-AI/pkg/auth"
	"github.com/PVL-Linh/LegalBot-AI/pkg/conversation"
	"github.com/PVL-Linh/LegalBot-AI/pkg/documents"
)

const (
	attachmentPreviewRunes = 2000
	maxHistoryLimit        = 500
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// requireUser rejects requests without a valid bearer token.
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.BearerToken(r)
		var user *auth.User
		if err == nil {
			user, err = s.validator.Validate(token)
		}
		if err != nil {
			observability.RecordSecurityAudit(r.Context(), "http_auth", r.RemoteAddr, "unauthorized",
				map[string]interface{}{"path": r.URL.Path})
			writeError(w, http.StatusUnauthorized, MsgUnauthorized)
			return
		}

		ctx := tracing.NewRequestContext(r.Context())
		ctx = tracing.WithUserID(ctx, user.ID)
		next(w, r.WithContext(withUser(ctx, user)))
	}
}

// checkOwnership writes the error response and reports false when the user
// may not use conversationID.
func (s *Server) checkOwnership(w http.ResponseWriter, r *http.Request, conversationID string) bool {
	user := userFromContext(r.Context())
	owns, err := s.conversations.Owns(r.Context(), conversationID, user.ID)
	if err != nil {
		logger := tracing.LoggerFromContext(r.Context(), s.logger)
		logger.Error().Err(err).Msg("Ownership check failed")
		writeError(w, http.StatusInternalServerError, "Ownership check failed")
		return false
	}
	if !owns {
		observability.RecordSecurityAudit(r.Context(), "conversation_access", user.ID, "access_denied",
			map[string]interface{}{"conversation_id": conversationID})
		writeError(w, http.StatusForbidden, MsgForbiddenChat)
		return false
	}
	return true
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	user := userFromContext(r.Context())
	if req.ConversationID != "" && !s.checkOwnership(w, r, req.ConversationID) {
		return
	}

	turn := Turn{
		Transport:      TransportHTTP,
		UserID:         user.ID,
		ConversationID: req.ConversationID,
		Input:          req.Message,
	}
	if req.ConversationID == "" {
		turn.NewTitle = conversation.Title(req.Message, titleRunes) + "..."
	}

	result, err := s.turns.Run(r.Context(), turn)
	if err != nil {
		logger := tracing.LoggerFromContext(r.Context(), s.logger)
		logger.Error().Err(err).Msg("Chat turn failed")
		writeError(w, http.StatusInternalServerError, MsgLoopErrorPrefix+truncateRunes(err.Error(), errorTextRunes))
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Response:       result.Answer,
		ConversationID: result.ConversationID,
	})
}

// attachmentMessage renders the chat message recorded for an uploaded document.
func attachmentMessage(filename, text string) string {
	return fmt.Sprintf("[PDF_ATTACHMENT]\nFilename: %s\nSize: %d chars\n---CONTENT---\n%s\n[/PDF_ATTACHMENT]",
		filename,
		utf8.RuneCountInString(text),
		strings.TrimSpace(truncateRunes(text, attachmentPreviewRunes)),
	)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("conversation_id")
	if !s.checkOwnership(w, r, conversationID) {
		return
	}
	logger := tracing.LoggerFromContext(tracing.WithConversationID(r.Context(), conversationID), s.logger)

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, MsgPDFReadPrefix+err.Error())
		return
	}
	defer file.Close()

	filename := header.Filename
	if filename == "" {
		filename = "unknown.pdf"
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, MsgPDFReadPrefix+err.Error())
		return
	}
	text, err := documents.Extract(filename, data)
	if err != nil {
		writeError(w, http.StatusBadRequest, MsgPDFReadPrefix+err.Error())
		return
	}

	if err := s.turns.AppendDocument(r.Context(), conversationID, filename, text); err != nil {
		observability.RecordPersistenceError("append_pdf_context")
		logger.Warn().Err(err).Str("filename", filename).Msg("Failed to update document context")
	}

	message := attachmentMessage(filename, text)
	silent, _ := strconv.ParseBool(r.URL.Query().Get("silent"))
	if !silent {
		err := s.conversations.Append(r.Context(), conversationID,
			conversation.NewMessage{Role: agent.RoleAssistant, Content: message},
		)
		if err != nil {
			observability.RecordPersistenceError("append_messages")
			logger.Error().Err(err).Msg("Failed to save attachment message")
			writeError(w, http.StatusInternalServerError, MsgDatabasePrefix+err.Error())
			return
		}
	}

	logger.Info().Str("filename", filename).Int("chars", utf8.RuneCountInString(text)).Bool("silent", silent).Msg("Document uploaded")
	writeJSON(w, http.StatusOK, UploadResponse{
		Status:        "success",
		Filename:      filename,
		Message:       message,
		ExtractedText: text,
	})
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	messageID := r.PathValue("message_id")
	user := userFromContext(r.Context())

	err := s.conversations.DeleteMessage(r.Context(), messageID, user.ID)
	switch {
	case errors.Is(err, conversation.ErrNotFound):
		writeError(w, http.StatusNotFound, MsgMessageNotFound)
		return
	case errors.Is(err, conversation.ErrAccessDenied):
		observability.RecordSecurityAudit(r.Context(), "message_delete", user.ID, "access_denied",
			map[string]interface{}{"message_id": messageID})
		writeError(w, http.StatusForbidden, MsgForbiddenChat)
		return
	case err != nil:
		logger := tracing.LoggerFromContext(r.Context(), s.logger)
		logger.Error().Err(err).Str("messageId", messageID).Msg("Failed to delete message")
		writeError(w, http.StatusInternalServerError, MsgDatabasePrefix+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": MsgMessageDeleted})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("conversation_id")
	if !s.checkOwnership(w, r, conversationID) {
		return
	}

	limit := conversation.DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	messages, err := s.conversations.History(r.Context(), conversationID, limit)
	if err != nil {
		logger := tracing.LoggerFromContext(r.Context(), s.logger)
		logger.Error().Err(err).Msg("Failed to load history")
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if messages == nil {
		messages = []conversation.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}
