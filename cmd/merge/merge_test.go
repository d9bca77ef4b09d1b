package merge

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/pipeconf/pipeconf/internal/conf"
	"github.com/pipeconf/pipeconf/internal/dspconfig"
)

func writeJSON(t *testing.T, dir, name string, cfg *dspconfig.Config) string {
	t.Helper()
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func writeYAML(t *testing.T, dir, name string, cfg *dspconfig.Config) string {
	t.Helper()
	tree, err := cfg.ToTree()
	require.NoError(t, err)
	data, err := yaml.Marshal(tree)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := Command(&conf.Settings{})
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.ExecuteContext(t.Context())
	return out.String(), errOut.String(), err
}

// fixtures writes a base config with a "bass" filter and an import document whose
// pipeline uses its own "bass" and "treble" filters.
func fixtures(t *testing.T) (base, imp string) {
	t.Helper()
	dir := t.TempDir()

	b := dspconfig.DefaultConfig()
	b.Filters["bass"] = dspconfig.DefaultFilter()
	b.AddPipelineStep(dspconfig.FilterStep{Channel: 0, Names: []string{"bass"}})

	i := dspconfig.DefaultConfig()
	i.Filters["bass"], _ = dspconfig.NewFilter("Gain", "")
	i.Filters["treble"], _ = dspconfig.NewFilter("Gain", "")
	i.Filters["unused"], _ = dspconfig.NewFilter("Gain", "")
	i.AddPipelineStep(dspconfig.FilterStep{Channel: 1, Names: []string{"bass", "treble"}})

	return writeJSON(t, dir, "base.json", b), writeYAML(t, dir, "eq.yml", i)
}

func parse(t *testing.T, out string) *dspconfig.Config {
	t.Helper()
	cfg, err := dspconfig.Parse([]byte(out))
	require.NoError(t, err)
	return cfg
}

func TestMergePipelineElement(t *testing.T) {
	base, imp := fixtures(t)

	out, stderr, err := execute(t, base, imp, "--element", "pipeline/0")
	require.NoError(t, err)

	merged := parse(t, out)
	assert.Len(t, merged.Pipeline, 2, "pipeline steps are appended")
	assert.Equal(t, "Gain", merged.Filters["bass"].Type, "referenced filters come along and overwrite")
	assert.Contains(t, merged.Filters, "treble")
	assert.NotContains(t, merged.Filters, "unused")
	assert.Contains(t, stderr, `filters "bass" replaces an existing entry`)
}

func TestMergeWholeDocument(t *testing.T) {
	base, imp := fixtures(t)

	out, _, err := execute(t, base, imp)
	require.NoError(t, err)

	merged := parse(t, out)
	assert.Len(t, merged.Filters, 3)
	assert.Len(t, merged.Pipeline, 2)
}

func TestMergeSectionToYAMLFile(t *testing.T) {
	base, imp := fixtures(t)
	output := filepath.Join(t.TempDir(), "merged.yaml")

	out, _, err := execute(t, base, imp, "--section", "filters", "-o", output)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	var tree map[string]any
	require.NoError(t, yaml.Unmarshal(data, &tree))
	filters, ok := tree["filters"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, filters, 3)
	assert.Len(t, tree["pipeline"], 1, "only filters were selected")
}

func TestMergeErrors(t *testing.T) {
	base, imp := fixtures(t)

	tests := []struct {
		name string
		args []string
	}{
		{name: "unknown element", args: []string{base, imp, "--element", "filters/nope"}},
		{name: "malformed element", args: []string{base, imp, "--element", "filters"}},
		{name: "unknown section", args: []string{base, imp, "--section", "nope"}},
		{name: "unsupported format", args: []string{base, imp, "--format", "toml"}},
		{name: "missing base", args: []string{filepath.Join(t.TempDir(), "none.json"), imp}},
		{name: "one argument", args: []string{base}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			require.Error(t, err)
		})
	}
}
