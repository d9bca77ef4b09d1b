package importer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipeconf/pipeconf/internal/dspconfig"
	"github.com/pipeconf/pipeconf/internal/errors"
)

const foreignJSON = `{
  "title": "Foreign",
  "description": null,
  "devices": {"samplerate": 96000, "chunksize": 4096},
  "filters": {
    "f1": {"type": "Gain", "description": null, "parameters": {"gain": -3}},
    "f2": {"type": "Biquad", "description": null, "parameters": {"type": "Lowpass", "freq": 80, "q": 0.7}},
    "f3": {"type": "Delay", "description": null, "parameters": {"delay": 1, "unit": "ms", "subsample": false}}
  },
  "mixers": {
    "m1": {"description": null, "channels": {"in": 2, "out": 2}, "mapping": []}
  },
  "processors": {},
  "pipeline": [
    {"type": "Mixer", "name": "m1", "description": null, "bypassed": null},
    {"type": "Filter", "channel": 0, "names": ["f1", "f2"], "description": null, "bypassed": null},
    {"type": "Filter", "channel": 1, "names": ["f1", "f2"], "description": null, "bypassed": null}
  ]
}`

func newForeignImport(t *testing.T) *Import {
	t.Helper()
	doc, err := ParseJSON([]byte(foreignJSON))
	require.NoError(t, err)
	return New(doc)
}

func TestNewIgnoresNullSections(t *testing.T) {
	t.Parallel()

	im := newForeignImport(t)
	assert.NotContains(t, im.Source(), "description")
	assert.Empty(t, im.ConfigToImport())
	assert.Equal(t, NotImported, im.IsWholeConfigImported())
}

func TestPipelineImportPullsReferencedEntities(t *testing.T) {
	t.Parallel()

	im := newForeignImport(t)
	require.NoError(t, im.ToggleTopLevel(SectionPipeline, ActionImport))

	got := im.ConfigToImport()
	filters := got[SectionFilters].(map[string]any)
	assert.Contains(t, filters, "f1")
	assert.Contains(t, filters, "f2")
	assert.NotContains(t, filters, "f3")
	assert.Contains(t, got[SectionMixers], "m1")
	assert.NotContains(t, im.Selection(), SectionFilters, "auto-pull does not touch the raw selection")

	assert.Equal(t, Imported, im.IsTopLevelImported(SectionPipeline))
	assert.Equal(t, PartiallyImported, im.IsTopLevelImported(SectionFilters))
	assert.Equal(t, Imported, im.IsTopLevelImported(SectionMixers))
	assert.Equal(t, NotImported, im.IsTopLevelImported(SectionDevices))
	assert.Equal(t, PartiallyImported, im.IsWholeConfigImported())
}

func TestSingleFilterStepPullsItsNames(t *testing.T) {
	t.Parallel()

	im := newForeignImport(t)
	require.NoError(t, im.ToggleSecondLevel(SectionPipeline, "1", ActionImport))

	got := im.ConfigToImport()
	assert.Len(t, got[SectionPipeline], 1)
	assert.Len(t, got[SectionFilters], 2)
	assert.NotContains(t, got, SectionMixers)
}

func TestArrayRemovalKeepsIndexAlignment(t *testing.T) {
	t.Parallel()

	im := newForeignImport(t)
	require.NoError(t, im.ToggleTopLevel(SectionPipeline, ActionImport))

	require.NoError(t, im.ToggleSecondLevel(SectionPipeline, "1", ActionRemove))
	sel := im.Selection()[SectionPipeline].([]any)
	require.Len(t, sel, 3, "removal leaves a placeholder")
	assert.Nil(t, sel[1])
	assert.NotNil(t, sel[2])
	assert.Len(t, im.ConfigToImport()[SectionPipeline], 2)

	// Steps 1 and 2 are equal; toggling index 1 back restores exactly that slot.
	require.NoError(t, im.ToggleSecondLevel(SectionPipeline, "1", ActionImport))
	sel = im.Selection()[SectionPipeline].([]any)
	assert.Equal(t, im.Source()[SectionPipeline], sel)
	assert.True(t, im.IsSecondLevelImported(SectionPipeline, "1"))
}

func TestDuplicateValuesToggleIndependently(t *testing.T) {
	t.Parallel()

	im := New(map[string]any{"list": []any{"a", "b", "b"}})
	require.NoError(t, im.ToggleSecondLevel("list", "2", ActionImport))

	assert.Equal(t, []any{nil, nil, "b"}, im.Selection()["list"])
	assert.False(t, im.IsSecondLevelImported("list", "1"))
	assert.True(t, im.IsSecondLevelImported("list", "2"))

	require.NoError(t, im.ToggleSecondLevel("list", "1", ActionImport))
	require.NoError(t, im.ToggleSecondLevel("list", "2", ActionRemove))
	assert.Equal(t, []any{nil, "b", nil}, im.Selection()["list"])
	assert.Equal(t, []any{"b"}, im.ConfigToImport()["list"])
}

func TestRemovingLastElementDropsSection(t *testing.T) {
	t.Parallel()

	im := newForeignImport(t)
	require.NoError(t, im.ToggleSecondLevel(SectionPipeline, "0", ActionImport))
	require.NoError(t, im.ToggleSecondLevel(SectionPipeline, "0", ActionRemove))
	assert.NotContains(t, im.Selection(), SectionPipeline)

	require.NoError(t, im.ToggleSecondLevel(SectionFilters, "f3", ActionImport))
	require.NoError(t, im.ToggleSecondLevel(SectionFilters, "f3", ActionRemove))
	assert.NotContains(t, im.Selection(), SectionFilters)
	assert.Empty(t, im.ConfigToImport())
}

func TestEditability(t *testing.T) {
	t.Parallel()

	im := newForeignImport(t)
	assert.True(t, im.IsSecondLevelEditable(SectionFilters, "f1"))

	require.NoError(t, im.ToggleSecondLevel(SectionPipeline, "1", ActionImport))
	assert.False(t, im.IsSecondLevelEditable(SectionFilters, "f1"))
	assert.False(t, im.IsSecondLevelEditable(SectionFilters, "f2"))
	assert.True(t, im.IsSecondLevelEditable(SectionFilters, "f3"))
	assert.True(t, im.IsSecondLevelEditable(SectionMixers, "m1"))
	assert.True(t, im.IsSecondLevelEditable(SectionDevices, "samplerate"))

	err := im.ToggleSecondLevel(SectionFilters, "f1", ActionRemove)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, im.ToggleSecondLevel(SectionPipeline, "1", ActionRemove))
	assert.True(t, im.IsSecondLevelEditable(SectionFilters, "f1"))
}

// The filters section was never selected, so locked filters report imported and free
// ones report not imported. Once the section holds any selection, the answer comes from
// the selection alone, even for locked entries.
func TestSecondLevelImportedFallsBackToEditability(t *testing.T) {
	t.Parallel()

	im := newForeignImport(t)
	require.NoError(t, im.ToggleSecondLevel(SectionPipeline, "1", ActionImport))

	assert.True(t, im.IsSecondLevelImported(SectionFilters, "f1"))
	assert.False(t, im.IsSecondLevelImported(SectionFilters, "f3"))

	require.NoError(t, im.ToggleSecondLevel(SectionFilters, "f3", ActionImport))
	assert.True(t, im.IsSecondLevelImported(SectionFilters, "f3"))
	assert.False(t, im.IsSecondLevelImported(SectionFilters, "f1"))
}

func TestWholeConfigImport(t *testing.T) {
	t.Parallel()

	im := newForeignImport(t)
	for _, section := range Sections {
		if _, ok := im.Source()[section]; ok {
			require.NoError(t, im.ToggleTopLevel(section, ActionImport))
		}
	}
	assert.Equal(t, Imported, im.IsWholeConfigImported())

	require.NoError(t, im.ToggleSecondLevel(SectionDevices, "chunksize", ActionRemove))
	assert.Equal(t, PartiallyImported, im.IsWholeConfigImported())
	assert.Equal(t, PartiallyImported, im.IsTopLevelImported(SectionDevices))
	assert.Equal(t, Imported, im.IsTopLevelImported(SectionTitle))
	assert.Equal(t, Imported, im.IsTopLevelImported(SectionProcessors), "empty source section imports as equal")
}

func TestToggleErrors(t *testing.T) {
	t.Parallel()

	im := newForeignImport(t)

	err := im.ToggleTopLevel(SectionDescription, ActionImport)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err), "null sections have nothing to import")

	require.Error(t, im.ToggleSecondLevel(SectionFilters, "nope", ActionImport))
	require.Error(t, im.ToggleSecondLevel(SectionPipeline, "7", ActionImport))
	require.Error(t, im.ToggleSecondLevel(SectionPipeline, "x", ActionImport))
	require.Error(t, im.ToggleSecondLevel(SectionTitle, "0", ActionImport))
	require.Error(t, im.ToggleTopLevel(SectionTitle, Action("keep")))
	require.NoError(t, im.ToggleTopLevel(SectionTitle, ActionRemove), "removing an unselected section is a no-op")
}

func TestMergeTopLevelObjectsAndAppendTopLevelArrays(t *testing.T) {
	t.Parallel()

	target := map[string]any{
		"filters":  map[string]any{"f1": "old", "keep": "kept"},
		"pipeline": []any{"s0"},
		"title":    "mine",
		"devices":  map[string]any{"samplerate": 44100.0, "chunksize": 1024.0},
	}
	fragment := map[string]any{
		"filters":  map[string]any{"f1": "new", "f9": "added"},
		"pipeline": []any{"s1", "s2"},
		"title":    "theirs",
		"devices":  map[string]any{"samplerate": 96000.0},
		"mixers":   map[string]any{"m1": "m"},
	}

	got := MergeTopLevelObjectsAndAppendTopLevelArrays(target, fragment)

	assert.Equal(t, map[string]any{"f1": "new", "keep": "kept", "f9": "added"}, got["filters"])
	assert.Equal(t, []any{"s0", "s1", "s2"}, got["pipeline"])
	assert.Equal(t, "theirs", got["title"])
	assert.Equal(t, map[string]any{"samplerate": 96000.0, "chunksize": 1024.0}, got["devices"])
	assert.Equal(t, map[string]any{"m1": "m"}, got["mixers"])
	assert.Equal(t, []any{"s0"}, target["pipeline"], "target is not modified")
	assert.Equal(t, "old", target["filters"].(map[string]any)["f1"])
}

func TestApplyToAndCollisions(t *testing.T) {
	t.Parallel()

	target := dspconfig.DefaultConfig()
	target.Filters["f1"] = dspconfig.DefaultFilter()
	target.Pipeline = dspconfig.Pipeline{dspconfig.FilterStep{Channel: 0, Names: []string{"f1"}}}

	im := newForeignImport(t)
	require.NoError(t, im.ToggleSecondLevel(SectionPipeline, "1", ActionImport))

	assert.Equal(t, map[string][]string{SectionFilters: {"f1"}}, im.Collisions(target))

	merged, err := im.ApplyTo(target)
	require.NoError(t, err)
	require.Len(t, merged.Pipeline, 2)
	assert.Equal(t, "Gain", merged.Filters["f1"].Type, "imported entity overwrites")
	assert.Contains(t, merged.Filters, "f2")
	assert.Equal(t, "Biquad", target.Filters["f1"].Type, "target is not modified")
}

func TestParseYAML(t *testing.T) {
	t.Parallel()

	doc, err := ParseYAML([]byte(`
filters:
  hp:
    type: Biquad
    parameters:
      type: Highpass
      freq: 80
      q: 0.5
pipeline:
  - type: Filter
    channel: 0
    names: [hp, hp]
`))
	require.NoError(t, err)

	im := New(doc)
	require.NoError(t, im.ToggleTopLevel(SectionPipeline, ActionImport))
	filters := im.ConfigToImport()[SectionFilters].(map[string]any)
	hp := filters["hp"].(map[string]any)
	assert.Equal(t, 80.0, hp["parameters"].(map[string]any)["freq"])

	_, err = ParseYAML([]byte("- just\n- a list\n"))
	require.Error(t, err)
	_, err = ParseJSON([]byte("{"))
	require.Error(t, err)

	doc, err = ParseYAML([]byte(""))
	require.NoError(t, err)
	assert.Empty(t, doc)
}

func TestReadFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "eq.yml")
	jsonPath := filepath.Join(dir, "eq.json")
	require.NoError(t, os.WriteFile(yamlPath, []byte("title: from yaml\n"), 0o600))
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"title": "from json"}`), 0o600))

	doc, err := ReadFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "from yaml", doc[SectionTitle])

	doc, err = ReadFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "from json", doc[SectionTitle])

	_, err = ReadFile(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))
}

func TestStateJSON(t *testing.T) {
	t.Parallel()

	for _, s := range []State{NotImported, Imported, PartiallyImported} {
		data, err := s.MarshalJSON()
		require.NoError(t, err)
		var back State
		require.NoError(t, back.UnmarshalJSON(data))
		assert.Equal(t, s, back)
	}
	assert.Equal(t, "partially", PartiallyImported.String())

	_, err := ParseAction("skip")
	require.Error(t, err)
}

func TestElements(t *testing.T) {
	t.Parallel()

	im := newForeignImport(t)
	assert.Equal(t, []string{"f1", "f2", "f3"}, im.Elements(SectionFilters))
	assert.Equal(t, []string{"0", "1", "2"}, im.Elements(SectionPipeline))
	assert.Nil(t, im.Elements(SectionTitle))
}
