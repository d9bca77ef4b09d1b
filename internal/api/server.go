// Package api wires the HTTP server: echo setup, global middleware, the metrics
// endpoint and the v1 API controller.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	v1 "github.com/pipeconf/pipeconf/internal/api/v1"
	"github.com/pipeconf/pipeconf/internal/conf"
	"github.com/pipeconf/pipeconf/internal/datastore"
	"github.com/pipeconf/pipeconf/internal/logger"
	"github.com/pipeconf/pipeconf/internal/observability"
)

// Server is the HTTP server of the editing service.
type Server struct {
	echo     *echo.Echo
	config   *Config
	settings *conf.Settings

	backend   v1.Backend
	dataStore datastore.Interface
	metrics   *observability.Metrics

	apiController *v1.Controller

	wg        sync.WaitGroup
	startTime time.Time
	errCh     chan error
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithBackend sets the engine client. It is required.
func WithBackend(be v1.Backend) ServerOption {
	return func(s *Server) {
		s.backend = be
	}
}

// WithDataStore enables the revision archive.
func WithDataStore(ds datastore.Interface) ServerOption {
	return func(s *Server) {
		s.dataStore = ds
	}
}

// WithMetrics enables request metrics and the /metrics endpoint.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// New creates the server. It does not start listening.
func New(settings *conf.Settings, opts ...ServerOption) (*Server, error) {
	config := ConfigFromSettings(settings)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}

	s := &Server{
		config:    config,
		settings:  settings,
		startTime: time.Now(),
		errCh:     make(chan error, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.backend == nil {
		return nil, fmt.Errorf("invalid server configuration: backend client is required")
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Debug = config.Debug

	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout

	s.setupMiddleware()
	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("failed to setup routes: %w", err)
	}

	GetLogger().Info("HTTP server initialized",
		logger.String("address", config.Address()),
		logger.Bool("debug", config.Debug),
		logger.Bool("metrics", s.metricsEnabled()))

	return s, nil
}

// setupMiddleware installs the middleware shared by every route. CORS and body limits
// are applied by the API group.
func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())
	s.echo.Use(echomw.GzipWithConfig(echomw.GzipConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))
}

func (s *Server) setupRoutes() error {
	s.echo.GET("/health", s.healthCheck)

	if s.metricsEnabled() {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	opts := []v1.Option{}
	if s.dataStore != nil {
		opts = append(opts, v1.WithDataStore(s.dataStore))
	}
	if s.metrics != nil {
		opts = append(opts, v1.WithMetrics(s.metrics))
	}

	controller, err := v1.New(s.echo, s.settings, s.backend, opts...)
	if err != nil {
		return fmt.Errorf("failed to initialize API v1: %w", err)
	}
	s.apiController = controller

	GetLogger().Debug("routes initialized", logger.String("api_version", "v1"))
	return nil
}

func (s *Server) metricsEnabled() bool {
	return s.metrics != nil && s.config.Metrics
}

func (s *Server) healthCheck(c echo.Context) error {
	uptime := time.Since(s.startTime)
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "healthy",
		"version":        s.settings.Version,
		"uptime":         uptime.Round(time.Second).String(),
		"uptime_seconds": uptime.Seconds(),
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}

// Start serves HTTP requests in a background goroutine and returns immediately. A
// listener failure is delivered on Errors.
func (s *Server) Start() {
	s.wg.Go(func() {
		if err := s.startBlocking(); err != nil {
			GetLogger().Error("server error", logger.Error(err))
			s.errCh <- err
		}
	})
	GetLogger().Info("HTTP server starting", logger.String("address", s.config.Address()))
}

func (s *Server) startBlocking() error {
	err := s.echo.Start(s.config.Address())
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Errors returns a channel receiving the error that stopped the listener, if any.
func (s *Server) Errors() <-chan error {
	return s.errCh
}

// StartWithGracefulShutdown starts the server and shuts it down on SIGINT or SIGTERM,
// when ctx is cancelled or when the listener fails.
func (s *Server) StartWithGracefulShutdown(ctx context.Context) error {
	s.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		GetLogger().Info("shutdown signal received", logger.String("signal", sig.String()))
	case <-ctx.Done():
		GetLogger().Info("context cancelled, shutting down")
	case err := <-s.errCh:
		_ = s.Shutdown()
		return err
	}
	return s.Shutdown()
}

// Shutdown stops accepting requests and waits for in-flight ones up to the configured
// shutdown timeout.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if s.apiController != nil {
		s.apiController.Shutdown()
	}

	if err := s.echo.Shutdown(ctx); err != nil {
		GetLogger().Error("error during server shutdown", logger.Error(err))
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.wg.Wait()

	GetLogger().Info("server shutdown complete")
	return nil
}

// APIController returns the v1 API controller.
func (s *Server) APIController() *v1.Controller {
	return s.apiController
}

// Echo returns the echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Config returns the server configuration.
func (s *Server) Config() *Config {
	return s.config
}
