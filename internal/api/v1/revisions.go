package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/pipeconf/pipeconf/internal/datastore"
	"github.com/pipeconf/pipeconf/internal/dspconfig"
)

// RevisionResponse is an archived revision with its decoded config.
type RevisionResponse struct {
	datastore.Revision
	Config *dspconfig.Config `json:"config"`
}

const defaultRevisionLimit = 50

// initRevisionRoutes registers the archive endpoints. They exist only with a datastore.
func (c *Controller) initRevisionRoutes() {
	if c.DS == nil {
		return
	}
	c.Group.GET("/revisions", c.ListRevisions)
	c.Group.GET("/revisions/:rid", c.GetRevision)
	c.Group.DELETE("/revisions/:rid", c.DeleteRevision)
	c.Group.POST("/sessions/:id/revisions/:rid/restore", c.RestoreRevision)
}

// ListRevisions returns the newest revisions without their content. ?limit defaults
// to 50; 0 lists everything.
func (c *Controller) ListRevisions(ctx echo.Context) error {
	limit := defaultRevisionLimit
	if v := ctx.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return c.fail(ctx, badRequest("invalid limit %q", v), "Invalid limit")
		}
		limit = n
	}
	revs, err := c.DS.ListRevisions(ctx.Request().Context(), limit)
	if err != nil {
		return c.fail(ctx, err, "Failed to list revisions")
	}
	return ctx.JSON(http.StatusOK, revs)
}

// GetRevision returns one revision with its config.
func (c *Controller) GetRevision(ctx echo.Context) error {
	rev, err := c.revision(ctx)
	if err != nil {
		return c.fail(ctx, err, "Revision not found")
	}
	cfg, err := rev.Config()
	if err != nil {
		return c.fail(ctx, err, "Failed to decode revision")
	}
	rev.Content = ""
	return ctx.JSON(http.StatusOK, RevisionResponse{Revision: *rev, Config: cfg})
}

// DeleteRevision removes a revision from the archive.
func (c *Controller) DeleteRevision(ctx echo.Context) error {
	id, err := revisionID(ctx)
	if err != nil {
		return c.fail(ctx, err, "Invalid revision id")
	}
	if err := c.DS.DeleteRevision(ctx.Request().Context(), id); err != nil {
		return c.fail(ctx, err, "Failed to delete revision")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// RestoreRevision replaces the session config with an archived revision.
func (c *Controller) RestoreRevision(ctx echo.Context) error {
	s, err := c.session(ctx)
	if err != nil {
		return c.fail(ctx, err, "Session not found")
	}
	rev, err := c.revision(ctx)
	if err != nil {
		return c.fail(ctx, err, "Revision not found")
	}
	cfg, err := rev.Config()
	c.record("restore_revision", err)
	if err != nil {
		return c.fail(ctx, err, "Failed to decode revision")
	}
	s.Replace(cfg)
	if rev.Filename != "" {
		s.SetFilename(rev.Filename)
	}
	return c.configResponse(ctx, s)
}

func (c *Controller) revision(ctx echo.Context) (*datastore.Revision, error) {
	id, err := revisionID(ctx)
	if err != nil {
		return nil, err
	}
	return c.DS.GetRevision(ctx.Request().Context(), id)
}

func revisionID(ctx echo.Context) (uint, error) {
	v := ctx.Param("rid")
	id, err := strconv.ParseUint(v, 10, 0)
	if err != nil {
		return 0, badRequest("invalid revision id %q", v)
	}
	return uint(id), nil
}
