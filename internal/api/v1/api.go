// Package api implements the v1 HTTP API of the config editor. Each editing session
// holds a config with undo history, the last validation result of the engine and an
// optional import in progress.
package api

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/pipeconf/pipeconf/internal/backend"
	"github.com/pipeconf/pipeconf/internal/conf"
	"github.com/pipeconf/pipeconf/internal/datastore"
	"github.com/pipeconf/pipeconf/internal/dspconfig"
	"github.com/pipeconf/pipeconf/internal/errors"
	"github.com/pipeconf/pipeconf/internal/logger"
	"github.com/pipeconf/pipeconf/internal/observability"
	"github.com/pipeconf/pipeconf/internal/validation"
)

// GetLogger returns the api module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}

// Backend is the subset of the engine client the API uses.
type Backend interface {
	GetConfig(ctx context.Context) (*dspconfig.Config, error)
	SetConfig(ctx context.Context, cfg *dspconfig.Config, filename string) error
	SaveConfigFile(ctx context.Context, filename string, cfg *dspconfig.Config) error
	ValidateConfig(ctx context.Context, cfg *dspconfig.Config) (validation.Errors, error)
	StoredConfigs(ctx context.Context) ([]backend.StoredConfig, error)
	GetConfigFile(ctx context.Context, name string) (*dspconfig.Config, error)
	YAMLToJSON(ctx context.Context, yaml []byte) (map[string]any, error)
	EQAPOToJSON(ctx context.Context, text []byte) (map[string]any, error)
}

// Controller manages the API routes and handlers
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	Settings *conf.Settings
	Backend  Backend
	DS       datastore.Interface // optional revision archive
	Sessions *SessionStore

	metrics     *observability.Metrics
	ownSessions bool
	startTime   time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithDataStore enables the revision archive endpoints.
func WithDataStore(ds datastore.Interface) Option {
	return func(c *Controller) {
		c.DS = ds
	}
}

// WithMetrics records request and operation metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithSessionStore uses an existing session store. The controller does not close it.
func WithSessionStore(st *SessionStore) Option {
	return func(c *Controller) {
		c.Sessions = st
	}
}

// New creates the controller and registers its routes under /api/v1.
func New(e *echo.Echo, settings *conf.Settings, be Backend, opts ...Option) (*Controller, error) {
	return NewWithOptions(e, settings, be, true, opts...)
}

// NewWithOptions creates the controller. With initializeRoutes false no route is
// registered, which lets tests call handlers directly.
func NewWithOptions(e *echo.Echo, settings *conf.Settings, be Backend, initializeRoutes bool, opts ...Option) (*Controller, error) {
	if settings == nil {
		return nil, errors.Newf("settings must not be nil").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if be == nil {
		return nil, errors.Newf("backend client must not be nil").
			Category(errors.CategoryConfiguration).
			Build()
	}

	c := &Controller{
		Echo:      e,
		Settings:  settings,
		Backend:   be,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.Sessions == nil {
		c.ownSessions = true
		c.Sessions = NewSessionStore(SessionStoreConfig{
			TTL:             settings.Session.TTL,
			CleanupInterval: settings.Session.CleanupInterval,
			MaxHistory:      settings.Session.MaxHistory,
			OnCountChange: func(n int) {
				if c.metrics != nil {
					c.metrics.SetActiveSessions(n)
				}
			},
		})
	}

	c.Group = e.Group("/api/v1")
	c.Group.Use(middleware.Recover())
	c.Group.Use(c.LoggingMiddleware())
	if c.metrics != nil {
		c.Group.Use(c.MetricsMiddleware())
	}
	if settings.Server.MaxBodySize != "" {
		c.Group.Use(middleware.BodyLimit(settings.Server.MaxBodySize))
	}
	c.Group.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
	}))

	if initializeRoutes {
		c.initRoutes()
	}
	return c, nil
}

// LoggingMiddleware logs every API request with its status and latency.
func (c *Controller) LoggingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)

			req := ctx.Request()
			fields := []logger.Field{
				logger.String("method", req.Method),
				logger.String("path", req.URL.Path),
				logger.String("query", req.URL.RawQuery),
				logger.Int("status", ctx.Response().Status),
				logger.String("ip", ctx.RealIP()),
				logger.Int64("latency_ms", time.Since(start).Milliseconds()),
			}
			if err != nil {
				fields = append(fields, logger.Error(err))
			}
			GetLogger().Debug("API request", fields...)
			return err
		}
	}
}

// MetricsMiddleware records request counts and durations per route pattern.
func (c *Controller) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)

			status := ctx.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			c.metrics.RecordHTTPRequest(ctx.Request().Method, ctx.Path(), status, time.Since(start).Seconds())
			return err
		}
	}
}

// initRoutes registers all API endpoints
func (c *Controller) initRoutes() {
	c.Group.GET("/health", c.HealthCheck)

	routeInitializers := []struct {
		name string
		fn   func()
	}{
		{"session routes", c.initSessionRoutes},
		{"entity routes", c.initEntityRoutes},
		{"mixer routes", c.initMixerRoutes},
		{"pipeline routes", c.initPipelineRoutes},
		{"history routes", c.initHistoryRoutes},
		{"engine routes", c.initEngineRoutes},
		{"import routes", c.initImportRoutes},
		{"revision routes", c.initRevisionRoutes},
		{"catalog routes", c.initCatalogRoutes},
	}

	for _, initializer := range routeInitializers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					GetLogger().Error("panic during route initialization",
						logger.String("routes", initializer.name),
						logger.Any("panic", r))
				}
			}()
			initializer.fn()
			GetLogger().Debug("routes initialized", logger.String("routes", initializer.name))
		}()
	}
}

// HealthCheck handles the API health check endpoint
func (c *Controller) HealthCheck(ctx echo.Context) error {
	response := map[string]any{
		"status":    "healthy",
		"version":   c.Settings.Version,
		"timestamp": time.Now().Format(time.RFC3339),
		"sessions":  c.Sessions.Count(),
	}

	if c.Settings.Debug || c.Settings.Server.Debug {
		response["environment"] = "development"
	} else {
		response["environment"] = "production"
	}

	if c.DS != nil {
		dbStatus := "connected"
		if _, err := c.DS.ListRevisions(ctx.Request().Context(), 1); err != nil {
			dbStatus = "disconnected"
			response["database_error"] = err.Error()
		}
		response["database_status"] = dbStatus
	}

	uptime := time.Since(c.startTime)
	response["uptime"] = uptime.Round(time.Second).String()
	response["uptime_seconds"] = uptime.Seconds()

	return ctx.JSON(http.StatusOK, response)
}

// Shutdown releases the resources owned by the controller.
func (c *Controller) Shutdown() {
	if c.ownSessions {
		c.Sessions.Close()
	}
	GetLogger().Debug("API controller shut down")
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates a new API error response
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

// generateCorrelationID returns 8 random alphanumeric characters.
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// HandleError logs err and writes an error response with the given status.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	resp := NewErrorResponse(err, message, code)

	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("message", message),
		logger.Int("code", code),
		logger.String("path", ctx.Request().URL.Path),
		logger.String("method", ctx.Request().Method),
		logger.Error(err),
	}
	if code >= http.StatusInternalServerError {
		GetLogger().Error("API error", fields...)
	} else {
		GetLogger().Info("API request rejected", fields...)
	}

	return ctx.JSON(code, resp)
}

// fail writes err with the status implied by its category.
func (c *Controller) fail(ctx echo.Context, err error, message string) error {
	return c.HandleError(ctx, err, message, statusFor(err))
}

// statusFor maps an error category to an HTTP status.
func statusFor(err error) int {
	switch categoryOf(err) {
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryNameCollision, errors.CategoryImport, errors.CategoryState:
		return http.StatusConflict
	case errors.CategoryValidation, errors.CategoryFileParsing:
		return http.StatusBadRequest
	case errors.CategoryOutOfRange:
		return http.StatusUnprocessableEntity
	case errors.CategoryNetwork, errors.CategoryHTTP:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// categoryOf prefers the outermost enhanced error, which may override the category of
// the error it wraps.
func categoryOf(err error) errors.ErrorCategory {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) && ee.Category != "" {
		return ee.Category
	}
	var ce errors.CategorizedError
	if errors.As(err, &ce) {
		return ce.ErrorCategory()
	}
	return errors.CategoryGeneric
}

// badRequest builds a validation error for malformed input.
func badRequest(format string, args ...any) error {
	return errors.New(fmt.Errorf(format, args...)).
		Category(errors.CategoryValidation).
		Build()
}

// record counts an editing operation when metrics are enabled.
func (c *Controller) record(operation string, err error) {
	if c.metrics != nil {
		c.metrics.RecordOperation(operation, err)
	}
}
