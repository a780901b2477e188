package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"arclight-hq/relay/pkg/config"
	"arclight-hq/relay/pkg/gateway/middleware"
	"arclight-hq/relay/pkg/telemetry/health"
	"arclight-hq/relay/pkg/telemetry/tracing"
)

// Server is the gateway's HTTP server: the forwarding routes, the
// admin surface and the health/metrics endpoints behind one listener.
type Server struct {
	config       config.ServerConfig
	authSecret   string
	pipeline     *Pipeline
	admin        *Admin
	health       *health.Handler
	metrics      http.Handler
	tracer       *tracing.Tracer
	logger       *slog.Logger
	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// ServerConfig wires the server's collaborators.
type ServerConfig struct {
	Config config.ServerConfig

	// AuthSecret guards the chat and admin routes. Empty disables
	// inbound authentication.
	AuthSecret string

	Pipeline *Pipeline
	Admin    *Admin

	// Health may be nil to skip the /health route.
	Health *health.Handler

	// Metrics may be nil to skip the /metrics route.
	Metrics http.Handler

	// Tracer may be nil to skip request spans.
	Tracer *tracing.Tracer

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// NewServer creates the gateway server.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:       cfg.Config,
		authSecret:   cfg.AuthSecret,
		pipeline:     cfg.Pipeline,
		admin:        cfg.Admin,
		health:       cfg.Health,
		metrics:      cfg.Metrics,
		tracer:       cfg.Tracer,
		logger:       logger,
		shutdownChan: make(chan struct{}),
	}
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	handler := s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           s.config.ListenAddress,
		Handler:        handler,
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting gateway server", "address", s.config.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	case <-s.shutdownChan:
		s.logger.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown", "timeout", config.DefaultShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, config.DefaultShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("gateway server stopped")
	})

	return shutdownErr
}

// setupRoutes configures HTTP routes and the middleware chain.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	auth := middleware.Auth(s.authSecret, s.logger)

	mux.Handle("GET /{flag}/{provider}/v1/models", auth(http.HandlerFunc(s.pipeline.HandleModels)))
	mux.Handle("POST /{flag}/{provider}/v1/chat/completions", auth(http.HandlerFunc(s.pipeline.HandleChat)))

	if s.admin != nil {
		mux.Handle("POST /auths", auth(http.HandlerFunc(s.admin.HandleSync)))
		mux.Handle("PUT /auths", auth(http.HandlerFunc(s.admin.HandlePull)))
		mux.Handle("POST /show_chat", auth(http.HandlerFunc(s.admin.HandleShowChat)))
	}

	if s.health != nil {
		mux.Handle("GET /{$}", s.health)
		mux.Handle("GET /health", s.health)
	}
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	var handler http.Handler = mux

	handler = middleware.Tracing(s.tracer)(handler)
	handler = middleware.Logging(s.logger)(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Recovery(handler)

	return handler
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the configured HTTP handler, for tests and for
// embedding behind another listener.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}
