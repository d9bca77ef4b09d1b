package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/pipeconf/pipeconf/internal/datastore"
	"github.com/pipeconf/pipeconf/internal/dspconfig"
	"github.com/pipeconf/pipeconf/internal/logger"
	"github.com/pipeconf/pipeconf/internal/validation"
)

// ValidationResponse is the result of validating the session config with the engine.
type ValidationResponse struct {
	Valid  bool              `json:"valid"`
	Errors validation.Errors `json:"errors"`
	Text   string            `json:"text,omitempty"`
}

// ErrorsResponse is a view of the stored validation result. Stale is true when the
// config changed after validation.
type ErrorsResponse struct {
	Path     string            `json:"path"`
	Message  string            `json:"message"`
	Errors   validation.Errors `json:"errors"`
	HasError bool              `json:"has_errors"`
	Stale    bool              `json:"stale"`
}

// SaveRequest is the body of the save endpoint. An empty filename reuses the file the
// session was loaded from.
type SaveRequest struct {
	Filename string `json:"filename"`
}

// LoadRequest selects what replaces the session config: a stored file by name, or the
// engine's active config when Name is empty.
type LoadRequest struct {
	Name string `json:"name"`
}

func (c *Controller) initEngineRoutes() {
	c.Group.POST("/sessions/:id/validate", c.ValidateConfig)
	c.Group.GET("/sessions/:id/errors", c.GetErrors)
	c.Group.POST("/sessions/:id/apply", c.ApplyConfig)
	c.Group.POST("/sessions/:id/save", c.SaveConfig)
	c.Group.POST("/sessions/:id/load", c.LoadConfig)
	c.Group.GET("/storedconfigs", c.ListStoredConfigs)
}

// ValidateConfig sends the current config to the engine and stores the result.
func (c *Controller) ValidateConfig(ctx echo.Context) error {
	s, err := c.session(ctx)
	if err != nil {
		return c.fail(ctx, err, "Session not found")
	}
	cfg := s.Config()
	errs, err := c.Backend.ValidateConfig(ctx.Request().Context(), cfg)
	c.record("validate", err)
	if err != nil {
		return c.fail(ctx, err, "Validation request failed")
	}
	s.SetErrors(cfg, errs)

	return ctx.JSON(http.StatusOK, ValidationResponse{
		Valid:  errs.Empty(),
		Errors: errs,
		Text:   errs.AsText(),
	})
}

// GetErrors returns the stored validation errors. With ?path (slash separated, numeric
// segments are indices) only the entries below that path are returned, with the prefix
// stripped, and Message holds the messages attached to the path itself, or to every node
// below it with ?children=true.
func (c *Controller) GetErrors(ctx echo.Context) error {
	s, err := c.session(ctx)
	if err != nil {
		return c.fail(ctx, err, "Session not found")
	}
	children, err := queryBool(ctx, "children")
	if err != nil {
		return c.fail(ctx, err, "Invalid children flag")
	}

	errs, stale := s.Errors()
	raw := ctx.QueryParam("path")
	path := validation.ParsePath(raw)

	return ctx.JSON(http.StatusOK, ErrorsResponse{
		Path:     path.String(),
		Message:  validation.ErrorsForPath(errs.Entries(), path, children),
		Errors:   errs.ForSubpath(path...),
		HasError: errs.HasErrorsUnder(path...),
		Stale:    stale,
	})
}

// ApplyConfig makes the session config the engine's active config.
func (c *Controller) ApplyConfig(ctx echo.Context) error {
	s, err := c.session(ctx)
	if err != nil {
		return c.fail(ctx, err, "Session not found")
	}
	cfg, filename := s.Config(), s.Filename()
	err = c.Backend.SetConfig(ctx.Request().Context(), cfg, filename)
	c.record("apply", err)
	if err != nil {
		return c.fail(ctx, err, "Failed to apply config")
	}
	c.archive(ctx, cfg, datastore.SourceApply, filename)
	return ctx.JSON(http.StatusOK, map[string]any{"applied": true, "filename": filename})
}

// SaveConfig stores the session config as a file on the engine host.
func (c *Controller) SaveConfig(ctx echo.Context) error {
	s, err := c.session(ctx)
	if err != nil {
		return c.fail(ctx, err, "Session not found")
	}
	var req SaveRequest
	if ctx.Request().ContentLength != 0 {
		if err := ctx.Bind(&req); err != nil {
			return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
		}
	}
	filename := req.Filename
	if filename == "" {
		filename = s.Filename()
	}

	cfg := s.Config()
	err = c.Backend.SaveConfigFile(ctx.Request().Context(), filename, cfg)
	c.record("save", err)
	if err != nil {
		return c.fail(ctx, err, "Failed to save config")
	}
	s.SetFilename(filename)
	c.archive(ctx, cfg, datastore.SourceSave, filename)
	return ctx.JSON(http.StatusOK, map[string]any{"saved": true, "filename": filename})
}

// LoadConfig replaces the session config with a stored file or the engine's active
// config. The replacement is recorded in the history and can be undone.
func (c *Controller) LoadConfig(ctx echo.Context) error {
	s, err := c.session(ctx)
	if err != nil {
		return c.fail(ctx, err, "Session not found")
	}
	var req LoadRequest
	if ctx.Request().ContentLength != 0 {
		if err := ctx.Bind(&req); err != nil {
			return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
		}
	}

	var cfg *dspconfig.Config
	if req.Name == "" {
		cfg, err = c.Backend.GetConfig(ctx.Request().Context())
	} else {
		cfg, err = c.Backend.GetConfigFile(ctx.Request().Context(), req.Name)
	}
	c.record("load", err)
	if err != nil {
		return c.fail(ctx, err, "Failed to load config")
	}

	s.Replace(cfg)
	s.SetFilename(req.Name)
	return c.configResponse(ctx, s)
}

// ListStoredConfigs lists the config files kept by the engine.
func (c *Controller) ListStoredConfigs(ctx echo.Context) error {
	files, err := c.Backend.StoredConfigs(ctx.Request().Context())
	if err != nil {
		return c.fail(ctx, err, "Failed to list stored configs")
	}
	return ctx.JSON(http.StatusOK, files)
}

// archive records cfg in the revision archive. Failures are logged and do not fail the
// request.
func (c *Controller) archive(ctx echo.Context, cfg *dspconfig.Config, source datastore.Source, filename string) {
	if c.DS == nil {
		return
	}
	rev, err := datastore.NewRevision(cfg, source, filename)
	if err == nil {
		rev, err = c.DS.SaveRevision(ctx.Request().Context(), rev)
	}
	if err != nil {
		GetLogger().Warn("failed to archive config revision",
			logger.String("source", string(source)),
			logger.Error(err))
		return
	}
	if c.metrics != nil {
		c.metrics.RecordRevision(string(source))
	}
	ctx.Response().Header().Set("X-Revision-ID", strconv.FormatUint(uint64(rev.ID), 10))
}
