package dspconfig

import (
	"maps"
	"slices"
	"strconv"

	"github.com/pipeconf/pipeconf/internal/errors"
	"github.com/pipeconf/pipeconf/internal/logger"
)

// EntityKind identifies one of the three named entity registries.
type EntityKind int

const (
	KindFilter EntityKind = iota
	KindMixer
	KindProcessor
)

func (k EntityKind) String() string {
	switch k {
	case KindFilter:
		return "Filter"
	case KindMixer:
		return "Mixer"
	case KindProcessor:
		return "Processor"
	default:
		return "Entity(" + strconv.Itoa(int(k)) + ")"
	}
}

// ParseEntityKind maps the plural section names used in documents and URLs
// ("filters", "mixers", "processors") to a kind.
func ParseEntityKind(section string) (EntityKind, bool) {
	switch section {
	case "filters":
		return KindFilter, true
	case "mixers":
		return KindMixer, true
	case "processors":
		return KindProcessor, true
	}
	return 0, false
}

// Section returns the top-level document key of the registry.
func (k EntityKind) Section() string {
	switch k {
	case KindMixer:
		return "mixers"
	case KindProcessor:
		return "processors"
	default:
		return "filters"
	}
}

// Prefixes of generated names. Entities carrying them sort after named ones.
const (
	UnnamedPrefix          = "Unnamed "
	UnnamedFilterPrefix    = "Unnamed Filter "
	UnnamedMixerPrefix     = "Unnamed Mixer "
	UnnamedProcessorPrefix = "Unnamed Processor "
)

// NewName returns prefix+N for the smallest N >= 1 not present in existing.
func NewName(prefix string, existing []string) string {
	taken := make(map[string]struct{}, len(existing))
	for _, name := range existing {
		taken[name] = struct{}{}
	}
	for n := 1; ; n++ {
		candidate := prefix + strconv.Itoa(n)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}

func (c *Config) NewFilterName() string {
	return NewName(UnnamedFilterPrefix, c.FilterNames())
}

func (c *Config) NewMixerName() string {
	return NewName(UnnamedMixerPrefix, c.MixerNames())
}

func (c *Config) NewProcessorName() string {
	return NewName(UnnamedProcessorPrefix, c.ProcessorNames())
}

// FilterNames returns the filter names in byte order.
func (c *Config) FilterNames() []string {
	return slices.Sorted(maps.Keys(c.Filters))
}

// MixerNames returns the mixer names in byte order.
func (c *Config) MixerNames() []string {
	return slices.Sorted(maps.Keys(c.Mixers))
}

// ProcessorNames returns the processor names in byte order.
func (c *Config) ProcessorNames() []string {
	return slices.Sorted(maps.Keys(c.Processors))
}

// Names returns the names registered for kind in byte order.
func (c *Config) Names(kind EntityKind) []string {
	switch kind {
	case KindMixer:
		return c.MixerNames()
	case KindProcessor:
		return c.ProcessorNames()
	default:
		return c.FilterNames()
	}
}

// IsNameFree reports whether name can be used for a new entity of kind.
// The empty string is never free since it marks an unset reference.
func (c *Config) IsNameFree(kind EntityKind, name string) bool {
	if name == "" {
		return false
	}
	return !slices.Contains(c.Names(kind), name)
}

// AddFilter registers a filter under name.
func (c *Config) AddFilter(name string, f Filter) error {
	if err := c.checkNewName(KindFilter, name); err != nil {
		return err
	}
	c.Filters[name] = f
	return nil
}

// AddMixer registers a mixer under name.
func (c *Config) AddMixer(name string, m Mixer) error {
	if err := c.checkNewName(KindMixer, name); err != nil {
		return err
	}
	c.Mixers[name] = m
	return nil
}

// AddProcessor registers a processor under name.
func (c *Config) AddProcessor(name string, p Processor) error {
	if err := c.checkNewName(KindProcessor, name); err != nil {
		return err
	}
	c.Processors[name] = p
	return nil
}

func (c *Config) checkNewName(kind EntityKind, name string) error {
	c.normalize()
	if name == "" {
		return errors.ValidationError(kind.String() + " name must not be empty")
	}
	if !c.IsNameFree(kind, name) {
		return &NameCollisionError{Kind: kind, Name: name}
	}
	return nil
}

// RemoveFilter deletes the filter and every occurrence of its name from filter steps.
// Steps left without names are kept.
func (c *Config) RemoveFilter(name string) {
	delete(c.Filters, name)
	for i, step := range c.Pipeline {
		fs, ok := step.(FilterStep)
		if !ok || !slices.Contains(fs.Names, name) {
			continue
		}
		fs.Names = slices.DeleteFunc(slices.Clone(fs.Names), func(n string) bool { return n == name })
		c.Pipeline[i] = fs
	}
	GetLogger().Debug("filter removed", logger.String("name", name))
}

// RemoveMixer deletes the mixer and every mixer step referencing it.
func (c *Config) RemoveMixer(name string) {
	delete(c.Mixers, name)
	c.Pipeline = slices.DeleteFunc(c.Pipeline, func(step PipelineStep) bool {
		ms, ok := step.(MixerStep)
		return ok && ms.Name == name
	})
	GetLogger().Debug("mixer removed", logger.String("name", name))
}

// RemoveProcessor deletes the processor and every processor step referencing it.
func (c *Config) RemoveProcessor(name string) {
	delete(c.Processors, name)
	c.Pipeline = slices.DeleteFunc(c.Pipeline, func(step PipelineStep) bool {
		ps, ok := step.(ProcessorStep)
		return ok && ps.Name == name
	})
	GetLogger().Debug("processor removed", logger.String("name", name))
}

// Remove deletes the named entity of kind with pipeline cascade.
func (c *Config) Remove(kind EntityKind, name string) {
	switch kind {
	case KindMixer:
		c.RemoveMixer(name)
	case KindProcessor:
		c.RemoveProcessor(name)
	default:
		c.RemoveFilter(name)
	}
}

// RenameFilter moves the filter to newName and rewrites every reference in filter steps.
func (c *Config) RenameFilter(oldName, newName string) error {
	if err := renameEntry(c.Filters, KindFilter, oldName, newName); err != nil {
		return err
	}
	for i, step := range c.Pipeline {
		fs, ok := step.(FilterStep)
		if !ok || !slices.Contains(fs.Names, oldName) {
			continue
		}
		names := slices.Clone(fs.Names)
		for j, n := range names {
			if n == oldName {
				names[j] = newName
			}
		}
		fs.Names = names
		c.Pipeline[i] = fs
	}
	GetLogger().Debug("filter renamed", logger.String("from", oldName), logger.String("to", newName))
	return nil
}

// RenameMixer moves the mixer to newName and rewrites every mixer step referencing it.
func (c *Config) RenameMixer(oldName, newName string) error {
	if err := renameEntry(c.Mixers, KindMixer, oldName, newName); err != nil {
		return err
	}
	for i, step := range c.Pipeline {
		if ms, ok := step.(MixerStep); ok && ms.Name == oldName {
			ms.Name = newName
			c.Pipeline[i] = ms
		}
	}
	GetLogger().Debug("mixer renamed", logger.String("from", oldName), logger.String("to", newName))
	return nil
}

// RenameProcessor moves the processor to newName and rewrites every processor step referencing it.
func (c *Config) RenameProcessor(oldName, newName string) error {
	if err := renameEntry(c.Processors, KindProcessor, oldName, newName); err != nil {
		return err
	}
	for i, step := range c.Pipeline {
		if ps, ok := step.(ProcessorStep); ok && ps.Name == oldName {
			ps.Name = newName
			c.Pipeline[i] = ps
		}
	}
	GetLogger().Debug("processor renamed", logger.String("from", oldName), logger.String("to", newName))
	return nil
}

// Rename dispatches to the rename operation of kind.
func (c *Config) Rename(kind EntityKind, oldName, newName string) error {
	switch kind {
	case KindMixer:
		return c.RenameMixer(oldName, newName)
	case KindProcessor:
		return c.RenameProcessor(oldName, newName)
	default:
		return c.RenameFilter(oldName, newName)
	}
}

// renameEntry validates and performs the registry part of a rename.
// Renaming an entity to its own name is a no-op.
func renameEntry[V any](m map[string]V, kind EntityKind, oldName, newName string) error {
	v, ok := m[oldName]
	if !ok {
		return notFound(kind, oldName)
	}
	if oldName == newName {
		return nil
	}
	if newName == "" {
		return errors.ValidationError(kind.String() + " name must not be empty")
	}
	if _, taken := m[newName]; taken {
		return &NameCollisionError{Kind: kind, Name: newName}
	}
	m[newName] = v
	delete(m, oldName)
	return nil
}

// References returns the names of entities of kind used by the pipeline, in pipeline order
// and without duplicates.
func (c *Config) References(kind EntityKind) []string {
	var out []string
	add := func(name string) {
		if name != "" && !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	for _, step := range c.Pipeline {
		switch s := step.(type) {
		case FilterStep:
			if kind == KindFilter {
				for _, n := range s.Names {
					add(n)
				}
			}
		case MixerStep:
			if kind == KindMixer {
				add(s.Name)
			}
		case ProcessorStep:
			if kind == KindProcessor {
				add(s.Name)
			}
		}
	}
	return out
}
