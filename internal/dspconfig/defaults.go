package dspconfig

import (
	"maps"
	"slices"

	"github.com/pipeconf/pipeconf/internal/jsontree"
)

// filterDefaults maps filter type to subtype to the default parameter set.
// Types without subtypes use the empty subtype key.
var filterDefaults = map[string]map[string]Parameters{
	"Biquad": {
		"Free":              {"type": "Free", "a1": 0.0, "a2": 0.0, "b0": 1.0, "b1": 0.0, "b2": 0.0},
		"Highpass":          {"type": "Highpass", "freq": 1000.0, "q": 0.707},
		"Lowpass":           {"type": "Lowpass", "freq": 1000.0, "q": 0.707},
		"HighpassFO":        {"type": "HighpassFO", "freq": 1000.0},
		"LowpassFO":         {"type": "LowpassFO", "freq": 1000.0},
		"Highshelf":         {"type": "Highshelf", "freq": 1000.0, "q": 0.707, "gain": 0.0},
		"Lowshelf":          {"type": "Lowshelf", "freq": 1000.0, "q": 0.707, "gain": 0.0},
		"HighshelfFO":       {"type": "HighshelfFO", "freq": 1000.0, "gain": 0.0},
		"LowshelfFO":        {"type": "LowshelfFO", "freq": 1000.0, "gain": 0.0},
		"Peaking":           {"type": "Peaking", "freq": 1000.0, "q": 0.707, "gain": 0.0},
		"Notch":             {"type": "Notch", "freq": 1000.0, "q": 0.707},
		"GeneralNotch":      {"type": "GeneralNotch", "freq_p": 1000.0, "freq_z": 1000.0, "q_p": 0.707, "normalize_at_dc": false},
		"Bandpass":          {"type": "Bandpass", "freq": 1000.0, "q": 0.707},
		"Allpass":           {"type": "Allpass", "freq": 1000.0, "q": 0.707},
		"AllpassFO":         {"type": "AllpassFO", "freq": 1000.0},
		"LinkwitzTransform": {"type": "LinkwitzTransform", "freq_act": 100.0, "q_act": 1.2, "freq_target": 25.0, "q_target": 0.7},
	},
	"BiquadCombo": {
		"ButterworthHighpass":   {"type": "ButterworthHighpass", "freq": 1000.0, "order": 2.0},
		"ButterworthLowpass":    {"type": "ButterworthLowpass", "freq": 1000.0, "order": 2.0},
		"LinkwitzRileyHighpass": {"type": "LinkwitzRileyHighpass", "freq": 1000.0, "order": 2.0},
		"LinkwitzRileyLowpass":  {"type": "LinkwitzRileyLowpass", "freq": 1000.0, "order": 2.0},
		"Tilt":                  {"type": "Tilt", "gain": 0.0},
		"FivePointPeq":          {"type": "FivePointPeq", "fls": 100.0, "qls": 0.7, "gls": 0.0, "fp1": 300.0, "qp1": 1.0, "gp1": 0.0, "fp2": 1000.0, "qp2": 1.0, "gp2": 0.0, "fp3": 3000.0, "qp3": 1.0, "gp3": 0.0, "fhs": 10000.0, "qhs": 0.7, "ghs": 0.0},
		"GraphicEqualizer":      {"type": "GraphicEqualizer", "freq_min": 20.0, "freq_max": 20000.0, "gains": []any{0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0}},
	},
	"Conv": {
		"Raw":    {"type": "Raw", "filename": "", "format": "TEXT", "skip_bytes_lines": 0.0, "read_bytes_lines": 0.0},
		"Wav":    {"type": "Wav", "filename": "", "channel": 0.0},
		"Values": {"type": "Values", "values": []any{1.0}},
	},
	"Delay": {
		"": {"delay": 0.0, "unit": "ms", "subsample": false},
	},
	"Gain": {
		"": {"gain": 0.0, "inverted": false, "mute": false, "scale": "dB"},
	},
	"Volume": {
		"": {"ramp_time": 400.0, "fader": "Aux1"},
	},
	"Loudness": {
		"": {"fader": "Main", "reference_level": -25.0, "high_boost": 7.0, "low_boost": 7.0, "attenuate_mid": false},
	},
	"DiffEq": {
		"": {"a": []any{1.0, 0.0}, "b": []any{1.0, 0.0}},
	},
	"Dither": {
		"Simple":            {"type": "Simple", "bits": 16.0},
		"None":              {"type": "None", "bits": 16.0},
		"Flat":              {"type": "Flat", "bits": 16.0, "amplitude": 2.0},
		"Highpass":          {"type": "Highpass", "bits": 16.0},
		"Fweighted441":      {"type": "Fweighted441", "bits": 16.0},
		"FweightedLong441":  {"type": "FweightedLong441", "bits": 16.0},
		"FweightedShort441": {"type": "FweightedShort441", "bits": 16.0},
		"Gesemann441":       {"type": "Gesemann441", "bits": 16.0},
		"Gesemann48":        {"type": "Gesemann48", "bits": 16.0},
		"Lipshitz441":       {"type": "Lipshitz441", "bits": 16.0},
		"LipshitzLong441":   {"type": "LipshitzLong441", "bits": 16.0},
		"Shibata441":        {"type": "Shibata441", "bits": 16.0},
		"Shibata48":         {"type": "Shibata48", "bits": 16.0},
		"ShibataLow441":     {"type": "ShibataLow441", "bits": 16.0},
		"ShibataLow48":      {"type": "ShibataLow48", "bits": 16.0},
	},
	"Limiter": {
		"": {"clip_limit": 0.0, "soft_clip": false},
	},
}

var processorDefaults = map[string]map[string]Parameters{
	"Compressor": {
		"": {"channels": 2.0, "attack": 0.025, "release": 1.0, "threshold": -25.0, "factor": 5.0, "makeup_gain": 0.0, "soft_clip": false, "clip_limit": 0.0, "monitor_channels": []any{0.0, 1.0}, "process_channels": []any{0.0, 1.0}},
	},
	"NoiseGate": {
		"": {"channels": 2.0, "attack": 0.025, "release": 1.0, "threshold": -25.0, "attenuation": 30.0, "monitor_channels": []any{0.0, 1.0}, "process_channels": []any{0.0, 1.0}},
	},
}

// FilterTypes returns the known filter types in byte order.
func FilterTypes() []string {
	return slices.Sorted(maps.Keys(filterDefaults))
}

// FilterSubtypes returns the subtypes of a filter type in byte order. Types without
// subtypes return nil.
func FilterSubtypes(filterType string) []string {
	return subtypesOf(filterDefaults[filterType])
}

// ProcessorTypes returns the known processor types in byte order.
func ProcessorTypes() []string {
	return slices.Sorted(maps.Keys(processorDefaults))
}

func subtypesOf(table map[string]Parameters) []string {
	var out []string
	for _, k := range slices.Sorted(maps.Keys(table)) {
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}

// DefaultFilterParameters returns a fresh copy of the default parameters for a filter type
// and subtype. ok is false for unknown combinations.
func DefaultFilterParameters(filterType, subtype string) (Parameters, bool) {
	return lookupDefaults(filterDefaults, filterType, subtype)
}

// DefaultProcessorParameters returns a fresh copy of the default parameters for a processor type.
func DefaultProcessorParameters(processorType string) (Parameters, bool) {
	return lookupDefaults(processorDefaults, processorType, "")
}

func lookupDefaults(table map[string]map[string]Parameters, typ, subtype string) (Parameters, bool) {
	subtypes, ok := table[typ]
	if !ok {
		return nil, false
	}
	if subtype == "" && len(subtypes) > 0 {
		if _, plain := subtypes[""]; !plain {
			subtype = subtypesOf(subtypes)[0]
		}
	}
	params, ok := subtypes[subtype]
	if !ok {
		return nil, false
	}
	return Parameters(jsontree.CloneObject(params)), true
}

// DefaultFilter returns the filter created by the editor for a new entry.
func DefaultFilter() Filter {
	params, _ := DefaultFilterParameters("Biquad", "Lowpass")
	return Filter{Type: "Biquad", Parameters: params}
}

// DefaultProcessor returns the processor created by the editor for a new entry.
func DefaultProcessor() Processor {
	params, _ := DefaultProcessorParameters("Compressor")
	return Processor{Type: "Compressor", Parameters: params}
}

// NewFilter returns a filter of the given type and subtype with default parameters.
func NewFilter(filterType, subtype string) (Filter, bool) {
	params, ok := DefaultFilterParameters(filterType, subtype)
	if !ok {
		return Filter{}, false
	}
	return Filter{Type: filterType, Parameters: params}, true
}

// DefaultMixer returns a 2 in, 2 out identity mixer.
func DefaultMixer() Mixer {
	return Mixer{
		Channels: MixerChannels{In: 2, Out: 2},
		Mapping: []Mapping{
			{Dest: 0, Sources: []Source{newSource(0)}, Mute: Ptr(false)},
			{Dest: 1, Sources: []Source{newSource(1)}, Mute: Ptr(false)},
		},
	}
}

// DefaultDevices returns a stereo stdin to stdout device section.
func DefaultDevices() Devices {
	return Devices{
		Samplerate: 48000,
		Chunksize:  1024,
		Capture: Device{
			Type:     "Stdin",
			Channels: 2,
			Settings: map[string]any{"format": "S32LE"},
		},
		Playback: Device{
			Type:     "Stdout",
			Channels: 2,
			Settings: map[string]any{"format": "S32LE"},
		},
	}
}

// DefaultConfig returns an empty, well-formed config.
func DefaultConfig() *Config {
	return &Config{
		Devices:    DefaultDevices(),
		Filters:    map[string]Filter{},
		Mixers:     map[string]Mixer{},
		Processors: map[string]Processor{},
		Pipeline:   Pipeline{},
	}
}

// NewFilterStep returns a filter step on channel without filters.
func NewFilterStep(channel int) FilterStep {
	return FilterStep{Channel: channel, Names: []string{}}
}
