package api

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pipeconf/pipeconf/internal/dspconfig"
	"github.com/pipeconf/pipeconf/internal/errors"
)

// MoveStepRequest moves a pipeline step to a new index.
type MoveStepRequest struct {
	To int `json:"to"`
}

// ChannelsResponse is the channel count flowing into a pipeline step.
type ChannelsResponse struct {
	Index    int `json:"index"`
	Channels int `json:"channels"`
}

func (c *Controller) initPipelineRoutes() {
	c.Group.GET("/sessions/:id/pipeline", c.GetPipeline)
	c.Group.POST("/sessions/:id/pipeline", c.AddPipelineStep)
	c.Group.DELETE("/sessions/:id/pipeline/:index", c.DeletePipelineStep)
	c.Group.POST("/sessions/:id/pipeline/:index/move", c.MovePipelineStep)
	c.Group.GET("/sessions/:id/pipeline/:index/channels", c.GetStepChannels)
}

// GetPipeline returns the pipeline steps in order.
func (c *Controller) GetPipeline(ctx echo.Context) error {
	s, err := c.session(ctx)
	if err != nil {
		return c.fail(ctx, err, "Session not found")
	}
	return ctx.JSON(http.StatusOK, s.Config().Pipeline)
}

// AddPipelineStep appends a step. A filter step posted without a channel uses
// channel 0 and no filter names.
func (c *Controller) AddPipelineStep(ctx echo.Context) error {
	body, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to read request body", http.StatusBadRequest)
	}
	step, err := dspconfig.ParsePipelineStep(body)
	if err != nil {
		return c.fail(ctx, errors.New(err).Category(errors.CategoryValidation).Build(), "Invalid pipeline step")
	}
	return c.change(ctx, "add_pipeline_step", func(cfg *dspconfig.Config) error {
		cfg.AddPipelineStep(step)
		return nil
	})
}

// DeletePipelineStep removes the step at :index.
func (c *Controller) DeletePipelineStep(ctx echo.Context) error {
	index, err := pathInt(ctx, "index")
	if err != nil {
		return c.fail(ctx, err, "Invalid step index")
	}
	return c.change(ctx, "remove_pipeline_step", func(cfg *dspconfig.Config) error {
		return cfg.RemovePipelineStep(index)
	})
}

// MovePipelineStep moves the step at :index so that it ends up at the requested index.
func (c *Controller) MovePipelineStep(ctx echo.Context) error {
	index, err := pathInt(ctx, "index")
	if err != nil {
		return c.fail(ctx, err, "Invalid step index")
	}
	var req MoveStepRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	return c.change(ctx, "move_pipeline_step", func(cfg *dspconfig.Config) error {
		return cfg.MovePipelineStep(index, req.To)
	})
}

// GetStepChannels returns the channel count available to the step at :index. An index
// equal to the pipeline length gives the count leaving the pipeline.
func (c *Controller) GetStepChannels(ctx echo.Context) error {
	s, err := c.session(ctx)
	if err != nil {
		return c.fail(ctx, err, "Session not found")
	}
	index, err := pathInt(ctx, "index")
	if err != nil {
		return c.fail(ctx, err, "Invalid step index")
	}
	cfg := s.Config()
	if index < 0 || index > len(cfg.Pipeline) {
		return c.fail(ctx, &dspconfig.OutOfRangeError{Message: "pipeline index out of range"}, "Invalid step index")
	}
	return ctx.JSON(http.StatusOK, ChannelsResponse{Index: index, Channels: cfg.MaxChannelCount(index)})
}
