package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pipeconf/pipeconf/internal/dspconfig"
	"github.com/pipeconf/pipeconf/internal/errors"
)

// ChannelsRequest sets the channel counts of a mixer.
type ChannelsRequest struct {
	In  int `json:"in"`
	Out int `json:"out"`
}

// CellRequest connects an input channel to an output channel.
type CellRequest struct {
	Source int `json:"source"`
	Dest   int `json:"dest"`
}

// CellUpdate changes the settings of a mixer cell. Absent fields are left unchanged.
type CellUpdate struct {
	Gain     *float64         `json:"gain"`
	Scale    *dspconfig.Scale `json:"scale"`
	Inverted *bool            `json:"inverted"`
	Mute     *bool            `json:"mute"`
}

// CellResponse is a mixer cell with the label of its output channel.
type CellResponse struct {
	Source dspconfig.Source `json:"source"`
	Label  string           `json:"label"`
}

func (c *Controller) initMixerRoutes() {
	c.Group.PUT("/sessions/:id/mixers/:name/channels", c.SetMixerChannels)
	c.Group.POST("/sessions/:id/mixers/:name/cells", c.AddMixerCell)
	c.Group.GET("/sessions/:id/mixers/:name/cells/:dest/:source", c.GetMixerCell)
	c.Group.PUT("/sessions/:id/mixers/:name/cells/:dest/:source", c.UpdateMixerCell)
	c.Group.DELETE("/sessions/:id/mixers/:name/cells/:dest/:source", c.DeleteMixerCell)
}

// SetMixerChannels changes the channel counts and drops cells outside the new range.
func (c *Controller) SetMixerChannels(ctx echo.Context) error {
	var req ChannelsRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	return c.changeMixer(ctx, "set_mixer_channels", func(m *dspconfig.Mixer) error {
		return m.SetChannels(req.In, req.Out)
	})
}

// AddMixerCell connects an input to an output channel with unity gain.
func (c *Controller) AddMixerCell(ctx echo.Context) error {
	var req CellRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	return c.changeMixer(ctx, "add_mixer_cell", func(m *dspconfig.Mixer) error {
		return m.AddCell(req.Source, req.Dest)
	})
}

// GetMixerCell returns one cell.
func (c *Controller) GetMixerCell(ctx echo.Context) error {
	s, err := c.session(ctx)
	if err != nil {
		return c.fail(ctx, err, "Session not found")
	}
	source, dest, err := cellParams(ctx)
	if err != nil {
		return c.fail(ctx, err, "Invalid cell")
	}
	name := ctx.Param("name")
	m, ok := s.Config().Mixers[name]
	if !ok {
		return c.fail(ctx, entityNotFound(dspconfig.KindMixer, name), "Mixer not found")
	}
	cell, ok := m.Cell(source, dest)
	if !ok {
		err := errors.Newf("output channel %d has no source %d", dest, source).
			Category(errors.CategoryNotFound).
			Build()
		return c.fail(ctx, err, "Cell not found")
	}
	return ctx.JSON(http.StatusOK, CellResponse{Source: cell, Label: m.Label(dest)})
}

// UpdateMixerCell changes gain, scale, inversion or mute of a cell.
func (c *Controller) UpdateMixerCell(ctx echo.Context) error {
	source, dest, err := cellParams(ctx)
	if err != nil {
		return c.fail(ctx, err, "Invalid cell")
	}
	var req CellUpdate
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	return c.changeMixer(ctx, "update_mixer_cell", func(m *dspconfig.Mixer) error {
		return m.UpdateCell(source, dest, func(src *dspconfig.Source) {
			if req.Gain != nil {
				src.Gain = req.Gain
			}
			if req.Scale != nil {
				src.Scale = req.Scale
			}
			if req.Inverted != nil {
				src.Inverted = req.Inverted
			}
			if req.Mute != nil {
				src.Mute = req.Mute
			}
		})
	})
}

// DeleteMixerCell disconnects a cell. Deleting a missing cell succeeds.
func (c *Controller) DeleteMixerCell(ctx echo.Context) error {
	source, dest, err := cellParams(ctx)
	if err != nil {
		return c.fail(ctx, err, "Invalid cell")
	}
	return c.changeMixer(ctx, "delete_mixer_cell", func(m *dspconfig.Mixer) error {
		m.DeleteCell(source, dest)
		return nil
	})
}

// changeMixer applies fn to the mixer named by the :name parameter.
func (c *Controller) changeMixer(ctx echo.Context, operation string, fn func(*dspconfig.Mixer) error) error {
	name := ctx.Param("name")
	return c.change(ctx, operation, func(cfg *dspconfig.Config) error {
		m, ok := cfg.Mixers[name]
		if !ok {
			return entityNotFound(dspconfig.KindMixer, name)
		}
		if err := fn(&m); err != nil {
			return err
		}
		cfg.Mixers[name] = m
		return nil
	})
}

func cellParams(ctx echo.Context) (source, dest int, err error) {
	if dest, err = pathInt(ctx, "dest"); err != nil {
		return 0, 0, err
	}
	if source, err = pathInt(ctx, "source"); err != nil {
		return 0, 0, err
	}
	return source, dest, nil
}
