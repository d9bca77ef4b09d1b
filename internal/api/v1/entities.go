package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/pipeconf/pipeconf/internal/dspconfig"
	"github.com/pipeconf/pipeconf/internal/errors"
)

// NamedEntity pairs an entity with its registry name.
type NamedEntity struct {
	Name   string `json:"name"`
	Entity any    `json:"entity"`
}

// CreateEntityRequest is the body of POST /sessions/:id/{filters,mixers,processors}.
// Without Entity a default entity is created, optionally of Type and Subtype. Without
// Name a free generated name is used.
type CreateEntityRequest struct {
	Name    string          `json:"name"`
	Type    string          `json:"type"`
	Subtype string          `json:"subtype"`
	Entity  json.RawMessage `json:"entity"`
}

// RenameRequest is the body of the rename endpoints.
type RenameRequest struct {
	Name string `json:"name"`
}

var entityKinds = []dspconfig.EntityKind{dspconfig.KindFilter, dspconfig.KindMixer, dspconfig.KindProcessor}

func (c *Controller) initEntityRoutes() {
	for _, kind := range entityKinds {
		base := "/sessions/:id/" + kind.Section()
		c.Group.GET(base, c.listEntities(kind))
		c.Group.POST(base, c.createEntity(kind))
		c.Group.GET(base+"/:name", c.getEntity(kind))
		c.Group.PUT(base+"/:name", c.updateEntity(kind))
		c.Group.DELETE(base+"/:name", c.deleteEntity(kind))
		c.Group.POST(base+"/:name/rename", c.renameEntity(kind))
	}
}

// listEntities returns the entities of kind ordered by ?sort (name by default) and
// ?reverse.
func (c *Controller) listEntities(kind dspconfig.EntityKind) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		s, err := c.session(ctx)
		if err != nil {
			return c.fail(ctx, err, "Session not found")
		}
		key, err := dspconfig.ParseSortKey(kind, ctx.QueryParam("sort"))
		if err != nil {
			return c.fail(ctx, err, "Invalid sort key")
		}
		reverse, err := queryBool(ctx, "reverse")
		if err != nil {
			return c.fail(ctx, err, "Invalid reverse flag")
		}

		cfg := s.Config()
		names := cfg.SortedNames(kind, key, reverse)
		out := make([]NamedEntity, 0, len(names))
		for _, name := range names {
			entity, _ := lookupEntity(cfg, kind, name)
			out = append(out, NamedEntity{Name: name, Entity: entity})
		}
		return ctx.JSON(http.StatusOK, out)
	}
}

func (c *Controller) getEntity(kind dspconfig.EntityKind) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		s, err := c.session(ctx)
		if err != nil {
			return c.fail(ctx, err, "Session not found")
		}
		name := ctx.Param("name")
		entity, ok := lookupEntity(s.Config(), kind, name)
		if !ok {
			return c.fail(ctx, entityNotFound(kind, name), kind.String()+" not found")
		}
		return ctx.JSON(http.StatusOK, NamedEntity{Name: name, Entity: entity})
	}
}

func (c *Controller) createEntity(kind dspconfig.EntityKind) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		var req CreateEntityRequest
		if ctx.Request().ContentLength != 0 {
			if err := ctx.Bind(&req); err != nil {
				return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
			}
		}
		return c.change(ctx, "add_"+singular(kind), func(cfg *dspconfig.Config) error {
			name := req.Name
			if name == "" {
				name = generatedName(cfg, kind)
			}
			return addEntity(cfg, kind, name, req)
		})
	}
}

func (c *Controller) updateEntity(kind dspconfig.EntityKind) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		body, err := io.ReadAll(ctx.Request().Body)
		if err != nil {
			return c.HandleError(ctx, err, "Failed to read request body", http.StatusBadRequest)
		}
		name := ctx.Param("name")
		return c.change(ctx, "update_"+singular(kind), func(cfg *dspconfig.Config) error {
			if _, ok := lookupEntity(cfg, kind, name); !ok {
				return entityNotFound(kind, name)
			}
			return setEntity(cfg, kind, name, body)
		})
	}
}

// deleteEntity removes the entity and every pipeline reference to it.
func (c *Controller) deleteEntity(kind dspconfig.EntityKind) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		name := ctx.Param("name")
		return c.change(ctx, "remove_"+singular(kind), func(cfg *dspconfig.Config) error {
			if _, ok := lookupEntity(cfg, kind, name); !ok {
				return entityNotFound(kind, name)
			}
			cfg.Remove(kind, name)
			return nil
		})
	}
}

// renameEntity renames the entity and rewrites its pipeline references. A taken name
// yields 409 and leaves the config unchanged.
func (c *Controller) renameEntity(kind dspconfig.EntityKind) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		var req RenameRequest
		if err := ctx.Bind(&req); err != nil {
			return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
		}
		oldName := ctx.Param("name")
		return c.change(ctx, "rename_"+singular(kind), func(cfg *dspconfig.Config) error {
			return cfg.Rename(kind, oldName, req.Name)
		})
	}
}

func lookupEntity(cfg *dspconfig.Config, kind dspconfig.EntityKind, name string) (any, bool) {
	switch kind {
	case dspconfig.KindFilter:
		f, ok := cfg.Filters[name]
		return f, ok
	case dspconfig.KindMixer:
		m, ok := cfg.Mixers[name]
		return m, ok
	default:
		p, ok := cfg.Processors[name]
		return p, ok
	}
}

func generatedName(cfg *dspconfig.Config, kind dspconfig.EntityKind) string {
	switch kind {
	case dspconfig.KindFilter:
		return cfg.NewFilterName()
	case dspconfig.KindMixer:
		return cfg.NewMixerName()
	default:
		return cfg.NewProcessorName()
	}
}

func addEntity(cfg *dspconfig.Config, kind dspconfig.EntityKind, name string, req CreateEntityRequest) error {
	switch kind {
	case dspconfig.KindFilter:
		f := dspconfig.DefaultFilter()
		switch {
		case len(req.Entity) > 0:
			if err := decodeEntity(req.Entity, &f); err != nil {
				return err
			}
		case req.Type != "":
			var ok bool
			if f, ok = dspconfig.NewFilter(req.Type, req.Subtype); !ok {
				return badRequest("unknown filter type %q subtype %q", req.Type, req.Subtype)
			}
		}
		return cfg.AddFilter(name, f)
	case dspconfig.KindMixer:
		m := dspconfig.DefaultMixer()
		if len(req.Entity) > 0 {
			if err := decodeEntity(req.Entity, &m); err != nil {
				return err
			}
		}
		return cfg.AddMixer(name, m)
	default:
		p := dspconfig.DefaultProcessor()
		switch {
		case len(req.Entity) > 0:
			if err := decodeEntity(req.Entity, &p); err != nil {
				return err
			}
		case req.Type != "":
			params, ok := dspconfig.DefaultProcessorParameters(req.Type)
			if !ok {
				return badRequest("unknown processor type %q", req.Type)
			}
			p = dspconfig.Processor{Type: req.Type, Parameters: params}
		}
		return cfg.AddProcessor(name, p)
	}
}

func setEntity(cfg *dspconfig.Config, kind dspconfig.EntityKind, name string, body []byte) error {
	switch kind {
	case dspconfig.KindFilter:
		var f dspconfig.Filter
		if err := decodeEntity(body, &f); err != nil {
			return err
		}
		cfg.Filters[name] = f
	case dspconfig.KindMixer:
		var m dspconfig.Mixer
		if err := decodeEntity(body, &m); err != nil {
			return err
		}
		cfg.Mixers[name] = m
	default:
		var p dspconfig.Processor
		if err := decodeEntity(body, &p); err != nil {
			return err
		}
		cfg.Processors[name] = p
	}
	return nil
}

func decodeEntity(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return errors.New(err).
			Category(errors.CategoryFileParsing).
			Context("operation", "decode_entity").
			Build()
	}
	return nil
}

func entityNotFound(kind dspconfig.EntityKind, name string) error {
	return errors.New(fmt.Errorf("%s '%s': %w", kind, name, dspconfig.ErrNotFound)).
		Category(errors.CategoryNotFound).
		Context("kind", kind.String()).
		Context("name", name).
		Build()
}

func singular(kind dspconfig.EntityKind) string {
	switch kind {
	case dspconfig.KindFilter:
		return "filter"
	case dspconfig.KindMixer:
		return "mixer"
	default:
		return "processor"
	}
}

// queryBool parses an optional boolean query parameter.
func queryBool(ctx echo.Context, name string) (bool, error) {
	v := ctx.QueryParam(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, badRequest("invalid %s value %q", name, v)
	}
	return b, nil
}

// pathInt parses an integer route parameter.
func pathInt(ctx echo.Context, name string) (int, error) {
	v := ctx.Param(name)
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequest("invalid %s %q", name, v)
	}
	return n, nil
}
