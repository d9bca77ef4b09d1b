package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pipeconf/pipeconf/internal/errors"
)

func (c *Controller) initHistoryRoutes() {
	c.Group.GET("/sessions/:id/history", c.GetHistory)
	c.Group.POST("/sessions/:id/undo", c.Undo)
	c.Group.POST("/sessions/:id/redo", c.Redo)
}

// GetHistory returns the undo/redo state with a summary of the next changes.
func (c *Controller) GetHistory(ctx echo.Context) error {
	s, err := c.session(ctx)
	if err != nil {
		return c.fail(ctx, err, "Session not found")
	}
	return ctx.JSON(http.StatusOK, s.State())
}

// Undo restores the previous config. It fails with 409 when there is nothing to undo.
func (c *Controller) Undo(ctx echo.Context) error {
	s, err := c.session(ctx)
	if err != nil {
		return c.fail(ctx, err, "Session not found")
	}
	if !s.Undo() {
		err := errors.Newf("nothing to undo").Category(errors.CategoryState).Build()
		c.record("undo", err)
		return c.fail(ctx, err, "Undo failed")
	}
	c.record("undo", nil)
	return c.configResponse(ctx, s)
}

// Redo reapplies the last undone change. It fails with 409 when there is nothing to redo.
func (c *Controller) Redo(ctx echo.Context) error {
	s, err := c.session(ctx)
	if err != nil {
		return c.fail(ctx, err, "Session not found")
	}
	if !s.Redo() {
		err := errors.Newf("nothing to redo").Category(errors.CategoryState).Build()
		c.record("redo", err)
		return c.fail(ctx, err, "Redo failed")
	}
	c.record("redo", nil)
	return c.configResponse(ctx, s)
}
