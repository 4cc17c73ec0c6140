// Package server provides the HTTP chat API.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/config"
	"github.com/hyperjump/tanya/internal/memory"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/session"
	"github.com/hyperjump/tanya/internal/worker"
)

// Asker answers a query within a conversation.
type Asker interface {
	Ask(ctx context.Context, mem *memory.Memory, query string) (*models.Answer, error)
}

// Server is the HTTP server for the chat API. It accepts connections before the answering
// pipeline exists and replies 503 to chat requests until MarkReady is called.
type Server struct {
	config   *config.ServerConfig
	sessions *session.Registry
	pool     *worker.Pool
	logger   *zap.Logger
	server   *http.Server

	mu    sync.RWMutex
	asker Asker
}

// NewServer creates a server with the given dependencies.
func NewServer(cfg *config.ServerConfig, sessions *session.Registry, pool *worker.Pool, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		config:   cfg,
		sessions: sessions,
		pool:     pool,
		logger:   logger,
	}
}

// MarkReady installs the answering pipeline and starts serving chat requests.
func (s *Server) MarkReady(asker Asker) {
	s.mu.Lock()
	s.asker = asker
	s.mu.Unlock()
	s.logger.Info("agent ready")
}

// Ready reports whether MarkReady has been called.
func (s *Server) Ready() bool {
	return s.currentAsker() != nil
}

func (s *Server) currentAsker() Asker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.asker
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Group(func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Post("/chat", s.handleChat)
		r.Delete("/chat/{sessionID}", s.handleDeleteSession)
	})
	return r
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port))
}

// Start starts the HTTP server and blocks until it stops. It returns http.ErrServerClosed
// after Stop, including when Stop was called first.
func (s *Server) Start() error {
	addr := s.Addr()
	s.mu.Lock()
	if s.server == nil {
		s.server = &http.Server{
			Addr:              addr,
			Handler:           s.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}
	srv := s.server
	s.mu.Unlock()

	if s.config.APIKey == "" {
		s.logger.Warn("server.api_key is empty: chat endpoints accept unauthenticated requests")
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return srv.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.server == nil {
		s.server = &http.Server{}
	}
	srv := s.server
	s.mu.Unlock()
	return srv.Shutdown(ctx)
}
