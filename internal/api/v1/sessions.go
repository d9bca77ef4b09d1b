package api

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"gopkg.in/yaml.v3"

	"github.com/pipeconf/pipeconf/internal/dspconfig"
	"github.com/pipeconf/pipeconf/internal/errors"
	"github.com/pipeconf/pipeconf/internal/logger"
)

// Sources of the initial config of a new session.
const (
	SessionSourceDefault = "default"
	SessionSourceEngine  = "engine"
	SessionSourceFile    = "file"
)

// CreateSessionRequest is the body of POST /sessions. Config takes precedence over Source.
type CreateSessionRequest struct {
	Config *dspconfig.Config `json:"config"`
	Source string            `json:"source"`
	File   string            `json:"file"`
}

// SessionResponse describes a session and its current config.
type SessionResponse struct {
	ID       string            `json:"id"`
	Filename string            `json:"filename,omitempty"`
	Config   *dspconfig.Config `json:"config"`
	State    SessionState      `json:"state"`
}

// ConfigResponse is returned by every operation that changes the session config.
type ConfigResponse struct {
	Config *dspconfig.Config `json:"config"`
	State  SessionState      `json:"state"`
}

func (c *Controller) initSessionRoutes() {
	c.Group.POST("/sessions", c.CreateSession)
	c.Group.GET("/sessions/:id", c.GetSession)
	c.Group.DELETE("/sessions/:id", c.DeleteSession)
	c.Group.GET("/sessions/:id/config", c.GetConfig)
	c.Group.PUT("/sessions/:id/config", c.ReplaceConfig)
	c.Group.GET("/sessions/:id/export", c.ExportConfig)
}

// CreateSession starts a session from a posted config, the engine's active config, a
// stored config file or the default config.
func (c *Controller) CreateSession(ctx echo.Context) error {
	var req CreateSessionRequest
	if ctx.Request().ContentLength != 0 {
		if err := ctx.Bind(&req); err != nil {
			return c.HandleError(ctx, err, "Invalid session request", http.StatusBadRequest)
		}
	}

	cfg, filename := req.Config, ""
	if cfg == nil {
		var err error
		switch req.Source {
		case "", SessionSourceDefault:
			cfg = dspconfig.DefaultConfig()
		case SessionSourceEngine:
			cfg, err = c.Backend.GetConfig(ctx.Request().Context())
		case SessionSourceFile:
			if req.File == "" {
				return c.fail(ctx, badRequest("file is required for source %q", req.Source), "Invalid session request")
			}
			cfg, err = c.Backend.GetConfigFile(ctx.Request().Context(), req.File)
			filename = req.File
		default:
			return c.fail(ctx, badRequest("unknown session source %q", req.Source), "Invalid session request")
		}
		if err != nil {
			return c.fail(ctx, err, "Failed to load initial config")
		}
	}

	s := c.Sessions.Create(cfg)
	s.SetFilename(filename)
	c.record("create_session", nil)

	return ctx.JSON(http.StatusCreated, c.sessionResponse(s))
}

// GetSession returns the session with its current config.
func (c *Controller) GetSession(ctx echo.Context) error {
	s, err := c.session(ctx)
	if err != nil {
		return c.fail(ctx, err, "Session not found")
	}
	return ctx.JSON(http.StatusOK, c.sessionResponse(s))
}

// DeleteSession ends a session.
func (c *Controller) DeleteSession(ctx echo.Context) error {
	if !c.Sessions.Delete(ctx.Param("id")) {
		return c.fail(ctx, sessionNotFound(ctx.Param("id")), "Session not found")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// GetConfig returns the current config of a session.
func (c *Controller) GetConfig(ctx echo.Context) error {
	s, err := c.session(ctx)
	if err != nil {
		return c.fail(ctx, err, "Session not found")
	}
	return ctx.JSON(http.StatusOK, s.Config())
}

// ReplaceConfig records a whole new config in the session history.
func (c *Controller) ReplaceConfig(ctx echo.Context) error {
	s, err := c.session(ctx)
	if err != nil {
		return c.fail(ctx, err, "Session not found")
	}
	body, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to read request body", http.StatusBadRequest)
	}
	cfg, err := dspconfig.Parse(body)
	if err != nil {
		return c.fail(ctx, err, "Invalid config")
	}
	s.Replace(cfg)
	c.record("replace_config", nil)
	return c.configResponse(ctx, s)
}

// ExportConfig returns the current config as a JSON or YAML document.
func (c *Controller) ExportConfig(ctx echo.Context) error {
	s, err := c.session(ctx)
	if err != nil {
		return c.fail(ctx, err, "Session not found")
	}
	cfg := s.Config()

	switch format := ctx.QueryParam("format"); format {
	case "", "json":
		return ctx.JSON(http.StatusOK, cfg)
	case "yaml":
		tree, err := cfg.ToTree()
		if err != nil {
			return c.fail(ctx, err, "Failed to encode config")
		}
		out, err := yaml.Marshal(tree)
		if err != nil {
			return c.fail(ctx, err, "Failed to encode config")
		}
		return ctx.Blob(http.StatusOK, "application/yaml", out)
	default:
		return c.fail(ctx, badRequest("unsupported export format %q", format), "Invalid export format")
	}
}

// session resolves the :id route parameter.
func (c *Controller) session(ctx echo.Context) (*Session, error) {
	id := ctx.Param("id")
	s, ok := c.Sessions.Get(id)
	if !ok {
		return nil, sessionNotFound(id)
	}
	return s, nil
}

func sessionNotFound(id string) error {
	return errors.Newf("session %q not found", id).
		Category(errors.CategoryNotFound).
		Context("session_id", id).
		Build()
}

func (c *Controller) sessionResponse(s *Session) SessionResponse {
	return SessionResponse{
		ID:       s.ID,
		Filename: s.Filename(),
		Config:   s.Config(),
		State:    s.State(),
	}
}

// change applies fn to the session config and replies with the result.
func (c *Controller) change(ctx echo.Context, operation string, fn func(*dspconfig.Config) error) error {
	s, err := c.session(ctx)
	if err != nil {
		return c.fail(ctx, err, "Session not found")
	}
	_, err = s.Change(fn)
	c.record(operation, err)
	if err != nil {
		GetLogger().Debug("config change rejected",
			logger.String("session_id", s.ID),
			logger.String("operation", operation),
			logger.Error(err))
		return c.fail(ctx, err, "Operation "+operation+" failed")
	}
	return c.configResponse(ctx, s)
}

func (c *Controller) configResponse(ctx echo.Context, s *Session) error {
	state := s.State()
	if c.metrics != nil {
		c.metrics.ObserveHistoryDepth(state.UndoDepth)
	}
	return ctx.JSON(http.StatusOK, ConfigResponse{Config: s.Config(), State: state})
}
