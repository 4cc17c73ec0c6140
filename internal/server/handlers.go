package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/worker"
)

// APIKeyHeader carries the shared secret when server.api_key is set.
const APIKeyHeader = "x-api-key"

const maxBodyBytes = 1 << 20

const (
	msgNotReady      = "Agent not ready"
	msgUnauthorized  = "Missing or invalid API key"
	msgBadBody       = "invalid request body"
	msgEmptyMessage  = "message is required"
	msgBusy          = "server is busy, try again later"
	msgTimeout       = "request timed out"
	msgUnavailable   = "upstream service unavailable, try again later"
	msgInternalError = "internal error"
)

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse is the body of a successful POST /chat.
type ChatResponse struct {
	Answer    string   `json:"answer"`
	Sources   []string `json:"sources"`
	SessionID string   `json:"session_id"`
}

func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.APIKey != "" {
			got := r.Header.Get(APIKeyHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(s.config.APIKey)) != 1 {
				s.respondError(w, http.StatusUnauthorized, msgUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	asker := s.currentAsker()
	if asker == nil {
		s.respondError(w, http.StatusServiceUnavailable, msgNotReady)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, msgBadBody)
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		s.respondError(w, http.StatusBadRequest, msgEmptyMessage)
		return
	}

	sess := s.sessions.GetOrCreate(req.SessionID)
	s.logger.Debug("chat request", zap.String("session_id", sess.ID), zap.Int("history_turns", sess.Memory.Len()))

	ctx, cancel := context.WithCancel(r.Context())
	if s.config.RequestTimeout > 0 {
		ctx, cancel = context.WithTimeout(r.Context(), s.config.RequestTimeout)
	}
	defer cancel()
	var answer *models.Answer
	err := s.pool.Submit(ctx, func(ctx context.Context) error {
		var err error
		answer, err = asker.Ask(ctx, sess.Memory, message)
		return err
	})
	if err != nil {
		status, msg := statusForError(err)
		s.logger.Warn("chat failed", zap.String("session_id", sess.ID), zap.Int("status", status), zap.Error(err))
		s.respondError(w, status, msg)
		return
	}

	s.respondJSON(w, http.StatusOK, &ChatResponse{
		Answer:    answer.Text,
		Sources:   answer.TopSources(s.config.MaxSources),
		SessionID: sess.ID,
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if !s.sessions.Delete(id) {
		s.respondError(w, http.StatusNotFound, "session not found")
		return
	}
	s.logger.Debug("session deleted", zap.String("session_id", id))
	s.respondJSON(w, http.StatusOK, map[string]string{"session_id": id, "status": "deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "ready": s.Ready()})
}

// statusForError maps a pipeline error to an HTTP status and a client-safe message.
func statusForError(err error) (int, string) {
	var capErr *models.CapabilityError
	switch {
	case errors.Is(err, models.ErrEmptyQuery):
		return http.StatusBadRequest, msgEmptyMessage
	case errors.Is(err, worker.ErrQueueFull), errors.Is(err, worker.ErrStopped):
		return http.StatusServiceUnavailable, msgBusy
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, msgTimeout
	case errors.As(err, &capErr):
		return http.StatusServiceUnavailable, msgUnavailable
	case errors.Is(err, models.ErrIndexNotFound), errors.Is(err, models.ErrIndexEmpty):
		return http.StatusServiceUnavailable, msgNotReady
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, msgTimeout
	default:
		return http.StatusInternalServerError, msgInternalError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
