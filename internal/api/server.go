package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/arenakernel/internal/events"
	"github.com/mattjoyce/arenakernel/internal/kernel"
	"github.com/mattjoyce/arenakernel/internal/task"
	"github.com/mattjoyce/arenakernel/internal/work"
)

// Kernel is the part of *kernel.Kernel the API drives.
type Kernel interface {
	Submit(w task.Work, args []any, kwargs map[string]any) int64
	Task(id int64) (*task.Task, error)
	Arenas() []kernel.ArenaView
	HandleFailState(index int) error
	SaveState(ctx context.Context, location string) error
	LoadState(ctx context.Context, location string) error
	Stats() kernel.Stats
	Run() error
	Stop(ctx context.Context) error
}

// EventSource feeds GET /events.
type EventSource interface {
	Since(lastID int64) []events.Record
	Watch() (<-chan events.Record, func())
}

// Config holds API server configuration
type Config struct {
	Listen string
	APIKey string
	// StateLocation is used by /state/save and /state/load when the request names none.
	StateLocation string
}

// Server represents the HTTP API server
type Server struct {
	config    Config
	kernel    Kernel
	registry  *work.Registry
	events    EventSource
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a new API server instance
func New(config Config, k Kernel, registry *work.Registry, src EventSource, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:    config,
		kernel:    k,
		registry:  registry,
		events:    src,
		logger:    logger.With(slog.String("component", "api")),
		startedAt: time.Now(),
	}
}

// Start serves until ctx is cancelled (blocking).
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // /events streams indefinitely
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Unauthenticated ops endpoints.
	r.Get("/healthz", s.handleHealthz)
	r.Get("/openapi.json", s.handleOpenAPI)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/tasks", s.handleSubmit)
		r.Get("/tasks/{taskID}", s.handleGetTask)
		r.Get("/arenas", s.handleArenas)
		r.Post("/arenas/{index}/reset", s.handleResetArena)
		r.Post("/kernel/run", s.handleKernelRun)
		r.Post("/kernel/stop", s.handleKernelStop)
		r.Post("/state/save", s.handleSaveState)
		r.Post("/state/load", s.handleLoadState)
		r.Get("/events", s.handleEvents)
	})

	return r
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
