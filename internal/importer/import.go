// Package importer selects parts of a foreign config document and merges them into the
// config being edited.
//
// The selection mirrors the source document sparsely. Arrays keep their length and use
// nil slots for unselected elements, so a selection index always addresses the same
// element in the source, even when the array holds duplicate values. The derived
// fragment that is actually merged strips those slots and pulls in every entity the
// selected pipeline steps reference.
package importer

import (
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/pipeconf/pipeconf/internal/dspconfig"
	"github.com/pipeconf/pipeconf/internal/errors"
	"github.com/pipeconf/pipeconf/internal/jsontree"
	"github.com/pipeconf/pipeconf/internal/logger"
)

// Top level sections of a config document.
const (
	SectionDevices     = "devices"
	SectionFilters     = "filters"
	SectionMixers      = "mixers"
	SectionProcessors  = "processors"
	SectionPipeline    = "pipeline"
	SectionTitle       = "title"
	SectionDescription = "description"
)

// Sections lists the top level sections in display order.
var Sections = []string{
	SectionDevices, SectionFilters, SectionMixers, SectionProcessors,
	SectionPipeline, SectionTitle, SectionDescription,
}

// ErrLocked is returned when an entity is deselected while a selected pipeline step
// still references it.
var ErrLocked = errors.NewStd("referenced by a selected pipeline step")

// Import holds the selection state for one foreign document. It is not safe for
// concurrent use.
type Import struct {
	source   map[string]any
	selected map[string]any
	derived  map[string]any
}

// New starts an empty selection over source. Null sections of source are ignored.
func New(source map[string]any) *Import {
	src := jsontree.CloneObject(source)
	if src == nil {
		src = map[string]any{}
	}
	maps.DeleteFunc(src, func(_ string, v any) bool { return v == nil })
	im := &Import{source: src, selected: map[string]any{}}
	im.derive()
	return im
}

// Source returns a copy of the foreign document.
func (im *Import) Source() map[string]any {
	return jsontree.CloneObject(im.source)
}

// Selection returns a copy of the raw selection, placeholders included.
func (im *Import) Selection() map[string]any {
	return jsontree.CloneObject(im.selected)
}

// ConfigToImport returns a copy of the fragment that would be merged.
func (im *Import) ConfigToImport() map[string]any {
	return jsontree.CloneObject(im.derived)
}

// ToggleTopLevel selects or deselects a whole section.
func (im *Import) ToggleTopLevel(name string, action Action) error {
	switch action {
	case ActionImport:
		v, ok := im.source[name]
		if !ok {
			return im.missing(name, "")
		}
		im.selected[name] = jsontree.Clone(v)
	case ActionRemove:
		delete(im.selected, name)
	default:
		return fmt.Errorf("unknown import action %q", action)
	}
	im.derive()
	GetLogger().Debug("top level selection toggled",
		logger.String("section", name),
		logger.String("action", string(action)))
	return nil
}

// ToggleSecondLevel selects or deselects one element of a section: a named entry of an
// object section, or the element at index name of an array section.
func (im *Import) ToggleSecondLevel(parent, name string, action Action) error {
	if action != ActionImport && action != ActionRemove {
		return fmt.Errorf("unknown import action %q", action)
	}
	switch src := im.source[parent].(type) {
	case map[string]any:
		item, ok := src[name]
		if !ok {
			return im.missing(parent, name)
		}
		if err := im.toggleObjectItem(parent, name, item, action); err != nil {
			return err
		}
	case []any:
		index, err := strconv.Atoi(name)
		if err != nil || index < 0 || index >= len(src) {
			return im.missing(parent, name)
		}
		im.toggleArrayItem(parent, src, index, action)
	case nil:
		return im.missing(parent, "")
	default:
		return errors.Newf("section %s has no elements", parent).
			Category(errors.CategoryImport).
			Context("section", parent).
			Build()
	}
	im.derive()
	GetLogger().Debug("element selection toggled",
		logger.String("section", parent),
		logger.String("element", name),
		logger.String("action", string(action)))
	return nil
}

func (im *Import) toggleObjectItem(parent, name string, item any, action Action) error {
	sel, _ := im.selected[parent].(map[string]any)
	if action == ActionImport {
		if sel == nil {
			sel = map[string]any{}
			im.selected[parent] = sel
		}
		sel[name] = jsontree.Clone(item)
		return nil
	}
	if !im.IsSecondLevelEditable(parent, name) {
		return errors.New(fmt.Errorf("%s %q: %w", parent, name, ErrLocked)).
			Category(errors.CategoryImport).
			Context("section", parent).
			Context("element", name).
			Build()
	}
	if sel == nil {
		return nil
	}
	delete(sel, name)
	if len(sel) == 0 {
		delete(im.selected, parent)
	}
	return nil
}

func (im *Import) toggleArrayItem(parent string, src []any, index int, action Action) {
	sel, _ := im.selected[parent].([]any)
	if action == ActionImport {
		if len(sel) != len(src) {
			sel = make([]any, len(src))
			im.selected[parent] = sel
		}
		sel[index] = jsontree.Clone(src[index])
		return
	}
	if sel == nil {
		return
	}
	sel[index] = nil
	if !slices.ContainsFunc(sel, func(v any) bool { return v != nil }) {
		delete(im.selected, parent)
	}
}

func (im *Import) missing(section, element string) error {
	b := errors.Newf("nothing to import at %s", joinPath(section, element)).
		Category(errors.CategoryNotFound).
		Context("section", section)
	if element != "" {
		b = b.Context("element", element)
	}
	return b.Build()
}

func joinPath(section, element string) string {
	if element == "" {
		return section
	}
	return section + "/" + element
}

// derive recomputes the fragment to merge from the raw selection.
func (im *Import) derive() {
	out := jsontree.CloneObject(im.selected)
	for key, v := range out {
		if arr, ok := v.([]any); ok {
			out[key] = slices.DeleteFunc(arr, func(e any) bool { return e == nil })
		}
	}
	steps, _ := out[SectionPipeline].([]any)
	for _, step := range steps {
		for _, ref := range stepReferences(step) {
			im.pull(out, ref.section, ref.name)
		}
	}
	im.derived = out
}

type reference struct {
	section string
	name    string
}

// stepReferences returns the entities a pipeline step in tree form refers to.
func stepReferences(step any) []reference {
	s, ok := step.(map[string]any)
	if !ok {
		return nil
	}
	switch dspconfig.StepType(fmt.Sprint(s["type"])) {
	case dspconfig.StepMixer:
		if name, _ := s["name"].(string); name != "" {
			return []reference{{SectionMixers, name}}
		}
	case dspconfig.StepProcessor:
		if name, _ := s["name"].(string); name != "" {
			return []reference{{SectionProcessors, name}}
		}
	case dspconfig.StepFilter:
		names, _ := s["names"].([]any)
		refs := make([]reference, 0, len(names))
		for _, n := range names {
			if name, _ := n.(string); name != "" {
				refs = append(refs, reference{SectionFilters, name})
			}
		}
		return refs
	}
	return nil
}

func (im *Import) pull(out map[string]any, section, name string) {
	src, _ := im.source[section].(map[string]any)
	item, ok := src[name]
	if !ok {
		return
	}
	dst, _ := out[section].(map[string]any)
	if dst == nil {
		dst = map[string]any{}
		out[section] = dst
	}
	if _, present := dst[name]; !present {
		dst[name] = jsontree.Clone(item)
	}
}

// IsWholeConfigImported compares the derived fragment with the whole source.
func (im *Import) IsWholeConfigImported() State {
	switch {
	case len(im.derived) == 0:
		return NotImported
	case jsontree.Equal(im.derived, im.source):
		return Imported
	default:
		return PartiallyImported
	}
}

// IsTopLevelImported compares one section of the derived fragment with the source.
func (im *Import) IsTopLevelImported(name string) State {
	v, ok := im.derived[name]
	switch {
	case !ok:
		return NotImported
	case jsontree.Equal(v, im.source[name]):
		return Imported
	case jsontree.IsEmpty(v):
		return NotImported
	default:
		return PartiallyImported
	}
}

// IsSecondLevelImported reports whether one element is selected. When its section was
// never selected, an element locked by a selected pipeline step counts as imported.
func (im *Import) IsSecondLevelImported(parent, name string) bool {
	sel, ok := im.selected[parent]
	if !ok {
		return !im.IsSecondLevelEditable(parent, name)
	}
	selItem, selOK := elementOf(sel, name)
	srcItem, srcOK := elementOf(im.source[parent], name)
	return selOK && srcOK && selItem != nil && jsontree.Equal(selItem, srcItem)
}

// IsSecondLevelEditable is false for an entity referenced by a selected pipeline step.
func (im *Import) IsSecondLevelEditable(parent, name string) bool {
	if parent != SectionFilters && parent != SectionMixers && parent != SectionProcessors {
		return true
	}
	steps, _ := im.selected[SectionPipeline].([]any)
	for _, step := range steps {
		if step == nil {
			continue
		}
		if slices.Contains(stepReferences(step), reference{parent, name}) {
			return false
		}
	}
	return true
}

func elementOf(container any, name string) (any, bool) {
	switch c := container.(type) {
	case map[string]any:
		v, ok := c[name]
		return v, ok
	case []any:
		i, err := strconv.Atoi(name)
		if err != nil || i < 0 || i >= len(c) {
			return nil, false
		}
		return c[i], true
	}
	return nil, false
}

// Elements lists the second level element names of a source section: sorted keys for
// object sections, indices for arrays, nil for scalars.
func (im *Import) Elements(section string) []string {
	switch c := im.source[section].(type) {
	case map[string]any:
		return jsontree.SortedKeys(c)
	case []any:
		out := make([]string, len(c))
		for i := range c {
			out[i] = strconv.Itoa(i)
		}
		return out
	}
	return nil
}

// Collisions returns, per entity section, the names of the derived fragment that
// already exist in target and would be overwritten by a merge.
func (im *Import) Collisions(target *dspconfig.Config) map[string][]string {
	out := map[string][]string{}
	for _, section := range []string{SectionFilters, SectionMixers, SectionProcessors} {
		kind, _ := dspconfig.ParseEntityKind(section)
		items, _ := im.derived[section].(map[string]any)
		for _, name := range jsontree.SortedKeys(items) {
			if !target.IsNameFree(kind, name) {
				out[section] = append(out[section], name)
			}
		}
	}
	return out
}

// ApplyTo merges the derived fragment into a copy of target.
func (im *Import) ApplyTo(target *dspconfig.Config) (*dspconfig.Config, error) {
	tree, err := target.ToTree()
	if err != nil {
		return nil, err
	}
	merged := MergeTopLevelObjectsAndAppendTopLevelArrays(tree, im.ConfigToImport())
	cfg, err := dspconfig.FromTree(merged)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryImport).
			Context("operation", "apply_import").
			Build()
	}
	GetLogger().Info("import applied", logger.Int("sections", len(im.derived)))
	return cfg, nil
}

// MergeTopLevelObjectsAndAppendTopLevelArrays merges fragment into a copy of target.
// For each top level key of fragment, arrays are appended to the target array, objects
// are merged key by key with fragment entries overwriting, and anything else replaces
// the target value.
func MergeTopLevelObjectsAndAppendTopLevelArrays(target, fragment map[string]any) map[string]any {
	out := jsontree.CloneObject(target)
	if out == nil {
		out = map[string]any{}
	}
	for key, value := range fragment {
		value = jsontree.Clone(value)
		switch fv := value.(type) {
		case []any:
			if tv, ok := out[key].([]any); ok {
				out[key] = append(slices.Clip(tv), fv...)
				continue
			}
		case map[string]any:
			if tv, ok := out[key].(map[string]any); ok {
				maps.Copy(tv, fv)
				continue
			}
		}
		out[key] = value
	}
	return out
}
