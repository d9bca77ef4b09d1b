package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pipeconf/pipeconf/internal/dspconfig"
)

// FilterType describes a filter type, its subtypes and their default parameters.
type FilterType struct {
	Type     string                          `json:"type"`
	Subtypes []string                        `json:"subtypes,omitempty"`
	Defaults map[string]dspconfig.Parameters `json:"defaults"`
}

// ProcessorType describes a processor type and its default parameters.
type ProcessorType struct {
	Type     string               `json:"type"`
	Defaults dspconfig.Parameters `json:"defaults"`
}

// ReferencesResponse reports how the pipeline uses the registries.
type ReferencesResponse struct {
	Referenced              map[string][]string `json:"referenced"`
	Dangling                map[string][]string `json:"dangling"`
	PlaybackChannelMismatch bool                `json:"playback_channel_mismatch"`
	OutputChannels          int                 `json:"output_channels"`
}

func (c *Controller) initCatalogRoutes() {
	c.Group.GET("/catalog/filters", c.GetFilterCatalog)
	c.Group.GET("/catalog/processors", c.GetProcessorCatalog)
	c.Group.GET("/sessions/:id/references", c.GetReferences)
}

// GetFilterCatalog lists the known filter types with their default parameters.
func (c *Controller) GetFilterCatalog(ctx echo.Context) error {
	types := dspconfig.FilterTypes()
	out := make([]FilterType, 0, len(types))
	for _, typ := range types {
		ft := FilterType{Type: typ, Subtypes: dspconfig.FilterSubtypes(typ), Defaults: map[string]dspconfig.Parameters{}}
		if len(ft.Subtypes) == 0 {
			if params, ok := dspconfig.DefaultFilterParameters(typ, ""); ok {
				ft.Defaults[""] = params
			}
		}
		for _, sub := range ft.Subtypes {
			if params, ok := dspconfig.DefaultFilterParameters(typ, sub); ok {
				ft.Defaults[sub] = params
			}
		}
		out = append(out, ft)
	}
	return ctx.JSON(http.StatusOK, out)
}

// GetProcessorCatalog lists the known processor types with their default parameters.
func (c *Controller) GetProcessorCatalog(ctx echo.Context) error {
	types := dspconfig.ProcessorTypes()
	out := make([]ProcessorType, 0, len(types))
	for _, typ := range types {
		params, _ := dspconfig.DefaultProcessorParameters(typ)
		out = append(out, ProcessorType{Type: typ, Defaults: params})
	}
	return ctx.JSON(http.StatusOK, out)
}

// GetReferences reports the entities used by the pipeline, references without an
// entity and whether the pipeline output matches the playback device.
func (c *Controller) GetReferences(ctx echo.Context) error {
	s, err := c.session(ctx)
	if err != nil {
		return c.fail(ctx, err, "Session not found")
	}
	cfg := s.Config()

	resp := ReferencesResponse{
		Referenced:              map[string][]string{},
		Dangling:                map[string][]string{},
		PlaybackChannelMismatch: cfg.PlaybackChannelMismatch(),
		OutputChannels:          cfg.MaxChannelCount(len(cfg.Pipeline)),
	}
	for _, kind := range entityKinds {
		resp.Referenced[kind.Section()] = append([]string{}, cfg.References(kind)...)
	}
	for kind, names := range cfg.DanglingReferences() {
		resp.Dangling[kind.Section()] = names
	}
	return ctx.JSON(http.StatusOK, resp)
}
