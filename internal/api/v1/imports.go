package api

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pipeconf/pipeconf/internal/datastore"
	"github.com/pipeconf/pipeconf/internal/dspconfig"
	"github.com/pipeconf/pipeconf/internal/errors"
	"github.com/pipeconf/pipeconf/internal/importer"
	"github.com/pipeconf/pipeconf/internal/logger"
)

// Formats accepted by the import endpoint.
const (
	ImportFormatJSON  = "json"
	ImportFormatYAML  = "yaml"
	ImportFormatEQAPO = "eqapo"
)

// ToggleRequest selects or deselects a section, or one element of it when Element is set.
type ToggleRequest struct {
	Section string `json:"section"`
	Element string `json:"element"`
	Action  string `json:"action"`
}

// ImportElement is the selection state of one second level element.
type ImportElement struct {
	Name     string `json:"name"`
	Imported bool   `json:"imported"`
	Editable bool   `json:"editable"`
}

// ImportSection is the selection state of one top level section.
type ImportSection struct {
	Name     string          `json:"name"`
	State    importer.State  `json:"state"`
	Elements []ImportElement `json:"elements,omitempty"`
}

// ImportResponse describes an import in progress.
type ImportResponse struct {
	State      importer.State      `json:"state"`
	Sections   []ImportSection     `json:"sections"`
	Collisions map[string][]string `json:"collisions"`
	Fragment   map[string]any      `json:"fragment"`
}

func (c *Controller) initImportRoutes() {
	c.Group.POST("/sessions/:id/import", c.StartImport)
	c.Group.GET("/sessions/:id/import", c.GetImport)
	c.Group.POST("/sessions/:id/import/toggle", c.ToggleImport)
	c.Group.POST("/sessions/:id/import/apply", c.ApplyImport)
	c.Group.DELETE("/sessions/:id/import", c.CancelImport)
}

// StartImport loads a foreign document and starts an empty selection over it. The
// document is the request body in ?format (json, yaml or eqapo), or the stored file
// named by ?file. YAML is parsed locally unless ?via=engine asks the engine to convert it.
func (c *Controller) StartImport(ctx echo.Context) error {
	s, err := c.session(ctx)
	if err != nil {
		return c.fail(ctx, err, "Session not found")
	}

	source, err := c.importSource(ctx)
	c.record("start_import", err)
	if err != nil {
		return c.fail(ctx, err, "Failed to read import document")
	}

	im := importer.New(source)
	s.StartImport(im)
	GetLogger().Info("import started",
		logger.String("session_id", s.ID),
		logger.Int("sections", len(source)))

	return c.importResponse(ctx, s, http.StatusCreated)
}

func (c *Controller) importSource(ctx echo.Context) (map[string]any, error) {
	reqCtx := ctx.Request().Context()
	if name := ctx.QueryParam("file"); name != "" {
		cfg, err := c.Backend.GetConfigFile(reqCtx, name)
		if err != nil {
			return nil, err
		}
		return cfg.ToTree()
	}

	body, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return nil, errors.New(err).Category(errors.CategoryValidation).Build()
	}
	switch format := ctx.QueryParam("format"); format {
	case "", ImportFormatJSON:
		return importer.ParseJSON(body)
	case ImportFormatYAML:
		if ctx.QueryParam("via") == "engine" {
			return c.Backend.YAMLToJSON(reqCtx, body)
		}
		return importer.ParseYAML(body)
	case ImportFormatEQAPO:
		return c.Backend.EQAPOToJSON(reqCtx, body)
	default:
		return nil, badRequest("unsupported import format %q", format)
	}
}

// GetImport returns the selection state of the import in progress.
func (c *Controller) GetImport(ctx echo.Context) error {
	s, err := c.session(ctx)
	if err != nil {
		return c.fail(ctx, err, "Session not found")
	}
	return c.importResponse(ctx, s, http.StatusOK)
}

// ToggleImport selects or deselects part of the import document. Deselecting an entity
// that a selected pipeline step references fails with 409.
func (c *Controller) ToggleImport(ctx echo.Context) error {
	s, err := c.session(ctx)
	if err != nil {
		return c.fail(ctx, err, "Session not found")
	}
	var req ToggleRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	action, err := importer.ParseAction(req.Action)
	if err != nil {
		return c.fail(ctx, errors.New(err).Category(errors.CategoryValidation).Build(), "Invalid import action")
	}
	if req.Section == "" {
		return c.fail(ctx, badRequest("section is required"), "Invalid toggle request")
	}

	err = s.WithImport(func(im *importer.Import, _ *dspconfig.Config) error {
		if req.Element == "" {
			return im.ToggleTopLevel(req.Section, action)
		}
		return im.ToggleSecondLevel(req.Section, req.Element, action)
	})
	c.record("toggle_import", err)
	if err != nil {
		return c.fail(ctx, err, "Toggle failed")
	}
	return c.importResponse(ctx, s, http.StatusOK)
}

// ApplyImport merges the selection into the session config and ends the import.
func (c *Controller) ApplyImport(ctx echo.Context) error {
	s, err := c.session(ctx)
	if err != nil {
		return c.fail(ctx, err, "Session not found")
	}
	cfg, err := s.ApplyImport()
	c.record("apply_import", err)
	if err != nil {
		return c.fail(ctx, err, "Failed to apply import")
	}
	c.archive(ctx, cfg, datastore.SourceImport, s.Filename())
	return c.configResponse(ctx, s)
}

// CancelImport discards the import in progress.
func (c *Controller) CancelImport(ctx echo.Context) error {
	s, err := c.session(ctx)
	if err != nil {
		return c.fail(ctx, err, "Session not found")
	}
	if !s.EndImport() {
		err := errors.Newf("no import in progress").Category(errors.CategoryNotFound).Build()
		return c.fail(ctx, err, "No import in progress")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (c *Controller) importResponse(ctx echo.Context, s *Session, status int) error {
	var resp ImportResponse
	err := s.WithImport(func(im *importer.Import, current *dspconfig.Config) error {
		resp = describeImport(im, current)
		return nil
	})
	if err != nil {
		return c.fail(ctx, err, "No import in progress")
	}
	return ctx.JSON(status, resp)
}

// describeImport lists the sections present in the import document in display order.
func describeImport(im *importer.Import, current *dspconfig.Config) ImportResponse {
	source := im.Source()
	resp := ImportResponse{
		State:      im.IsWholeConfigImported(),
		Sections:   []ImportSection{},
		Collisions: im.Collisions(current),
		Fragment:   im.ConfigToImport(),
	}
	for _, name := range importer.Sections {
		if _, ok := source[name]; !ok {
			continue
		}
		section := ImportSection{Name: name, State: im.IsTopLevelImported(name)}
		for _, element := range im.Elements(name) {
			section.Elements = append(section.Elements, ImportElement{
				Name:     element,
				Imported: im.IsSecondLevelImported(name, element),
				Editable: im.IsSecondLevelEditable(name, element),
			})
		}
		resp.Sections = append(resp.Sections, section)
	}
	return resp
}
