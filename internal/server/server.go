// Package server provides the HTTP and websocket API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nvoronin/periscope/internal/auth"
	"github.com/nvoronin/periscope/internal/llm"
	"github.com/nvoronin/periscope/internal/metrics"
	"github.com/nvoronin/periscope/internal/models"
	"github.com/nvoronin/periscope/internal/modes"
)

// Store is the persistence surface the handlers need. *db.Client
// implements it.
type Store interface {
	CreateChat(ctx context.Context, ownerID, chatID, title string) (*models.Chat, error)
	GetChat(ctx context.Context, chatID string) (*models.Chat, error)
	ListChats(ctx context.Context, ownerID string) ([]models.Chat, error)
	UpdateChatTitle(ctx context.Context, chatID, title string) (*models.Chat, error)
	DeleteChat(ctx context.Context, chatID string) error
	AppendMessage(ctx context.Context, chatID string, msg models.NewMessage) (*models.Message, error)
	GetMessage(ctx context.Context, messageID string) (*models.Message, error)
	CountRecords(ctx context.Context) (map[string]int, error)
}

// Server wires the HTTP API together.
type Server struct {
	store     Store
	auth      *auth.Service
	modes     *modes.Registry
	streamer  llm.ChatStreamer
	suggester *llm.Suggester
	collector *metrics.Collector
	logger    *slog.Logger

	engine *gin.Engine
	http   *http.Server
}

// Options configures a Server. Streamer and Suggester may be nil, which
// disables /api/stream.
type Options struct {
	Store     Store
	Auth      *auth.Service
	Modes     *modes.Registry
	Streamer  llm.ChatStreamer
	Suggester *llm.Suggester
	Collector *metrics.Collector
	Logger    *slog.Logger
}

// New builds the server and its routes.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Collector == nil {
		opts.Collector = metrics.NewCollector()
	}
	if opts.Modes == nil {
		opts.Modes = modes.NewRegistry()
	}

	s := &Server{
		store:     opts.Store,
		auth:      opts.Auth,
		modes:     opts.Modes,
		streamer:  opts.Streamer,
		suggester: opts.Suggester,
		collector: opts.Collector,
		logger:    opts.Logger,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(s.logger))
	s.routes(engine)
	s.engine = engine
	return s
}

func (s *Server) routes(engine *gin.Engine) {
	api := engine.Group("/api")

	api.POST("/auth/register", s.handleRegister)
	api.POST("/auth/login", s.handleLogin)

	authed := api.Group("", s.requireAuth())
	authed.GET("/auth/me", s.handleCurrentUser)

	authed.GET("/modes", s.handleListModes)
	authed.GET("/stats", s.handleStats)

	chats := authed.Group("/chats")
	chats.POST("", idempotency(), s.handleCreateChat)
	chats.GET("", s.handleListChats)
	chats.GET("/:id", s.handleGetChat)
	chats.PUT("/:id", s.handleRenameChat)
	chats.DELETE("/:id", s.handleDeleteChat)
	chats.POST("/:id/messages", s.handleAppendMessage)

	authed.GET("/stream", s.handleStream)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down http server")
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
