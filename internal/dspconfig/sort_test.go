package dspconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sortFixture() map[string]Filter {
	return map[string]Filter{
		"Unnamed Filter 1": {Type: "Gain", Parameters: Parameters{"gain": -3.0}},
		"bass":             {Type: "Biquad", Parameters: Parameters{"type": "Lowshelf", "freq": 100.0, "q": 0.7, "gain": 3.0}},
		"treble":           {Type: "Biquad", Parameters: Parameters{"type": "Highshelf", "freq": 8000.0, "gain": -2.0}},
		"delay":            {Type: "Delay", Parameters: Parameters{"delay": 2.0}},
		"Alpha":            {Type: "Biquad", Parameters: Parameters{"type": "Peaking", "freq": 1000.0, "q": 1.0, "gain": 0.0}},
	}
}

func TestFiltersSortedOnKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key     SortKey
		reverse bool
		want    []string
	}{
		{SortByName, false, []string{"Alpha", "bass", "delay", "treble", "Unnamed Filter 1"}},
		{SortByName, true, []string{"treble", "delay", "bass", "Alpha", "Unnamed Filter 1"}},
		{SortByType, false, []string{"Alpha", "bass", "treble", "delay", "Unnamed Filter 1"}},
		{SortBySubtype, false, []string{"treble", "bass", "Alpha", "delay", "Unnamed Filter 1"}},
		{SortByFrequency, false, []string{"bass", "Alpha", "treble", "delay", "Unnamed Filter 1"}},
		{SortByFrequency, true, []string{"delay", "treble", "Alpha", "bass", "Unnamed Filter 1"}},
		{SortByQ, false, []string{"bass", "Alpha", "delay", "treble", "Unnamed Filter 1"}},
		{SortByGain, false, []string{"treble", "Alpha", "bass", "delay", "Unnamed Filter 1"}},
	}
	for _, tt := range tests {
		name := string(tt.key)
		if tt.reverse {
			name += " reverse"
		}
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, FiltersSortedOnKey(sortFixture(), tt.key, tt.reverse))
		})
	}
}

func TestTypeKeysUseCollation(t *testing.T) {
	t.Parallel()

	filters := map[string]Filter{
		"first":  {Type: "Beta", Parameters: Parameters{"type": "Bandpass"}},
		"second": {Type: "alpha", Parameters: Parameters{"type": "Bandpass"}},
		"third":  {Type: "Beta", Parameters: Parameters{"type": "allpass"}},
	}

	assert.Equal(t, []string{"second", "first", "third"}, FiltersSortedOnKey(filters, SortByType, false))
	assert.Equal(t, []string{"second", "third", "first"}, FiltersSortedOnKey(filters, SortBySubtype, false))
}

func TestUnnamedSortLastInBothDirections(t *testing.T) {
	t.Parallel()

	filters := map[string]Filter{
		"Unnamed Filter 2":  DefaultFilter(),
		"Unnamed Filter 10": DefaultFilter(),
		"zeta":              DefaultFilter(),
	}

	assert.Equal(t, []string{"zeta", "Unnamed Filter 10", "Unnamed Filter 2"}, FiltersSortedOnKey(filters, SortByName, false))
	assert.Equal(t, []string{"zeta", "Unnamed Filter 2", "Unnamed Filter 10"}, FiltersSortedOnKey(filters, SortByName, true))
}

func TestProcessorsSortedOnKey(t *testing.T) {
	t.Parallel()

	processors := map[string]Processor{
		"gate":                {Type: "NoiseGate"},
		"comp":                {Type: "Compressor"},
		"agc":                 {Type: "NoiseGate"},
		"Unnamed Processor 1": {Type: "Compressor"},
	}

	assert.Equal(t, []string{"agc", "comp", "gate", "Unnamed Processor 1"}, ProcessorsSortedOnKey(processors, SortByName, false))
	assert.Equal(t, []string{"comp", "agc", "gate", "Unnamed Processor 1"}, ProcessorsSortedOnKey(processors, SortByType, false))
	assert.Equal(t, []string{"agc", "comp", "gate", "Unnamed Processor 1"}, ProcessorsSortedOnKey(processors, SortByGain, false),
		"unsupported keys fall back to name")
}

func TestParseSortKey(t *testing.T) {
	t.Parallel()

	key, err := ParseSortKey(KindFilter, "freq")
	require.NoError(t, err)
	assert.Equal(t, SortByFrequency, key)

	key, err = ParseSortKey(KindProcessor, "")
	require.NoError(t, err)
	assert.Equal(t, SortByName, key)

	_, err = ParseSortKey(KindProcessor, "freq")
	require.Error(t, err)
}

func TestSortedNamesOnConfig(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig()
	cfg.Mixers["Unnamed Mixer 1"] = DefaultMixer()
	cfg.Mixers["downmix"] = DefaultMixer()

	assert.Equal(t, []string{"gain", "lowpass"}, cfg.SortedFilterNames())
	assert.Equal(t, []string{"downmix", "stereo", "Unnamed Mixer 1"}, cfg.SortedMixerNames())
	assert.Equal(t, []string{"stereo", "downmix", "Unnamed Mixer 1"}, cfg.SortedNames(KindMixer, SortByName, true))
	assert.Equal(t, []string{"comp"}, cfg.SortedProcessorNames())
}
