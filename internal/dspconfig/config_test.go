package dspconfig

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `{
  "title": "Living room",
  "description": null,
  "devices": {
    "samplerate": 44100,
    "chunksize": 2048,
    "queuelimit": 4,
    "silence_threshold": null,
    "silence_timeout": null,
    "enable_rate_adjust": true,
    "target_level": null,
    "adjust_period": null,
    "resampler": {"type": "AsyncSinc", "profile": "Balanced"},
    "capture_samplerate": null,
    "stop_on_rate_change": null,
    "rate_measure_interval": null,
    "volume_ramp_time": null,
    "capture": {"type": "Alsa", "channels": 2, "device": "hw:Loopback,0,0", "format": "S32LE"},
    "playback": {"type": "Alsa", "channels": 4, "device": "hw:Generic_1", "format": "S24LE3"}
  },
  "filters": {
    "tweeter_hp": {"type": "BiquadCombo", "description": null, "parameters": {"type": "LinkwitzRileyHighpass", "freq": 2500, "order": 4}},
    "vol": {"type": "Volume", "description": "main", "parameters": {"ramp_time": 200, "fader": "Main"}}
  },
  "mixers": {
    "to4": {
      "description": null,
      "channels": {"in": 2, "out": 4},
      "mapping": [
        {"dest": 0, "sources": [{"channel": 0, "gain": 0, "scale": "dB", "inverted": false, "mute": false}], "mute": false},
        {"dest": 2, "sources": [{"channel": 0, "gain": -3, "scale": "dB", "inverted": false, "mute": null}], "mute": null}
      ],
      "labels": ["L woofer", null, "L tweeter", null]
    }
  },
  "processors": null,
  "pipeline": [
    {"type": "Mixer", "name": "to4", "description": null, "bypassed": null},
    {"type": "Filter", "channel": 2, "names": ["tweeter_hp", "vol"], "description": null, "bypassed": false}
  ]
}`

func TestParseConfig(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "Living room", *cfg.Title)
	assert.Nil(t, cfg.Description)
	assert.Equal(t, 44100, cfg.Devices.Samplerate)
	assert.Equal(t, 4, *cfg.Devices.Queuelimit)
	assert.Equal(t, "Alsa", cfg.Devices.Capture.Type)
	assert.Equal(t, 2, cfg.Devices.Capture.Channels)
	assert.Equal(t, "hw:Loopback,0,0", cfg.Devices.Capture.Settings["device"])
	assert.NotContains(t, cfg.Devices.Capture.Settings, "type")
	require.NotNil(t, cfg.Devices.Resampler)
	assert.Equal(t, "AsyncSinc", cfg.Devices.Resampler.Type)

	assert.Equal(t, "LinkwitzRileyHighpass", cfg.Filters["tweeter_hp"].Parameters.Subtype())
	freq, ok := cfg.Filters["tweeter_hp"].Parameters.Number("freq")
	require.True(t, ok)
	assert.Equal(t, 2500.0, freq)

	assert.NotNil(t, cfg.Processors, "null sections decode as empty")
	require.Len(t, cfg.Pipeline, 2)
	assert.Equal(t, MixerStep{Name: "to4"}, cfg.Pipeline[0])
	fs, ok := cfg.Pipeline[1].(FilterStep)
	require.True(t, ok)
	assert.Equal(t, []string{"tweeter_hp", "vol"}, fs.Names)
	assert.False(t, *fs.Bypassed)

	assert.Equal(t, "L tweeter", cfg.Mixers["to4"].Label(2))
}

func TestParseConfigRejectsUnknownStep(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`{"pipeline": [{"type": "Splitter", "name": "x"}]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown step type")
}

func TestConfigRoundTrip(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	var tree map[string]any
	require.NoError(t, json.Unmarshal(data, &tree))
	steps := tree["pipeline"].([]any)
	assert.Equal(t, "Mixer", steps[0].(map[string]any)["type"])
	assert.Equal(t, "Filter", steps[1].(map[string]any)["type"])
	capture := tree["devices"].(map[string]any)["capture"].(map[string]any)
	assert.Equal(t, "hw:Loopback,0,0", capture["device"])
	assert.Equal(t, 2.0, capture["channels"])

	again, err := Parse(data)
	require.NoError(t, err)
	assert.True(t, Equal(cfg, again))
}

func TestUnknownDeviceKeysSurviveRoundTrip(t *testing.T) {
	t.Parallel()

	doc := `{"devices": {"samplerate": 48000, "chunksize": 1024, "multithreaded": true,
		"worker_threads": 4, "capture": {"type": "Stdin", "channels": 2},
		"playback": {"type": "Stdout", "channels": 2}}}`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, 48000, cfg.Devices.Samplerate)
	assert.Equal(t, map[string]any{"multithreaded": true, "worker_threads": 4.0}, cfg.Devices.Extra)

	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	var tree map[string]any
	require.NoError(t, json.Unmarshal(data, &tree))
	devices := tree["devices"].(map[string]any)
	assert.Equal(t, true, devices["multithreaded"])
	assert.Equal(t, 4.0, devices["worker_threads"])
	assert.Equal(t, 48000.0, devices["samplerate"])
	assert.Contains(t, devices, "queuelimit", "known optional keys are still written")

	clone := cfg.Clone()
	clone.Devices.Extra["worker_threads"] = 8.0
	assert.Equal(t, 4.0, cfg.Devices.Extra["worker_threads"])

	tree, err = cfg.ToTree()
	require.NoError(t, err)
	back, err := FromTree(tree)
	require.NoError(t, err)
	assert.True(t, Equal(cfg, back))
	assert.Equal(t, cfg.Devices.Extra, back.Devices.Extra)
}

func TestTreeConversion(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig()
	tree, err := cfg.ToTree()
	require.NoError(t, err)
	assert.Contains(t, tree["filters"], "lowpass")

	back, err := FromTree(tree)
	require.NoError(t, err)
	assert.True(t, Equal(cfg, back))

	_, err = FromTree(map[string]any{"filters": "nope"})
	require.Error(t, err)
}

func TestCloneIsIndependent(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig()
	cfg.Devices.Resampler = &Resampler{Type: "Synchronous", Settings: map[string]any{}}
	clone := cfg.Clone()
	require.Equal(t, cfg, clone)

	clone.Filters["lowpass"].Parameters["freq"] = 50.0
	clone.Pipeline[1].(FilterStep).Names[0] = "changed"
	clone.Devices.Capture.Settings["format"] = "FLOAT32LE"
	clone.Mixers["stereo"].Mapping[0].Sources[0].Channel = 1
	*clone.Mixers["stereo"].Mapping[0].Mute = true
	clone.Devices.Resampler.Type = "AsyncPoly"

	assert.Equal(t, 1000.0, cfg.Filters["lowpass"].Parameters["freq"])
	assert.Equal(t, "lowpass", cfg.Pipeline[1].(FilterStep).Names[0])
	assert.Equal(t, "S32LE", cfg.Devices.Capture.Settings["format"])
	assert.Equal(t, 0, cfg.Mixers["stereo"].Mapping[0].Sources[0].Channel)
	assert.False(t, *cfg.Mixers["stereo"].Mapping[0].Mute)
	assert.Equal(t, "Synchronous", cfg.Devices.Resampler.Type)
}

func TestPipelineStepEditing(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig()
	cfg.AddPipelineStep(NewFilterStep(1))
	require.Len(t, cfg.Pipeline, 4)

	require.NoError(t, cfg.MovePipelineStep(3, 0))
	assert.Equal(t, StepFilter, cfg.Pipeline[0].StepType())
	assert.Equal(t, StepMixer, cfg.Pipeline[1].StepType())

	require.NoError(t, cfg.RemovePipelineStep(0))
	assert.Len(t, cfg.Pipeline, 3)

	var oor *OutOfRangeError
	require.ErrorAs(t, cfg.RemovePipelineStep(3), &oor)
	require.ErrorAs(t, cfg.MovePipelineStep(0, 5), &oor)
}

func TestDefaults(t *testing.T) {
	t.Parallel()

	assert.Contains(t, FilterTypes(), "Biquad")
	assert.Contains(t, FilterSubtypes("Biquad"), "Peaking")
	assert.Nil(t, FilterSubtypes("Gain"))
	assert.Equal(t, []string{"Compressor", "NoiseGate"}, ProcessorTypes())

	params, ok := DefaultFilterParameters("Biquad", "Peaking")
	require.True(t, ok)
	params["freq"] = 1.0
	fresh, _ := DefaultFilterParameters("Biquad", "Peaking")
	assert.Equal(t, 1000.0, fresh["freq"], "defaults are copied")

	params, ok = DefaultFilterParameters("Dither", "")
	require.True(t, ok, "empty subtype picks the first subtype")
	assert.NotEmpty(t, params.Subtype())

	_, ok = DefaultFilterParameters("Biquad", "Nope")
	assert.False(t, ok)
	_, ok = NewFilter("Nope", "")
	assert.False(t, ok)

	m := DefaultMixer()
	assert.Equal(t, MixerChannels{In: 2, Out: 2}, m.Channels)
	assert.Len(t, m.Mapping, 2)
}

func TestParsePipelineStep(t *testing.T) {
	step, err := ParsePipelineStep([]byte(`{"type":"Filter","channel":1}`))
	require.NoError(t, err)
	fs, ok := step.(FilterStep)
	require.True(t, ok)
	assert.Equal(t, 1, fs.Channel)
	assert.NotNil(t, fs.Names)

	step, err = ParsePipelineStep([]byte(`{"type":"Mixer","name":"m","bypassed":true}`))
	require.NoError(t, err)
	assert.Equal(t, MixerStep{Name: "m", Bypassed: Ptr(true)}, step)

	_, err = ParsePipelineStep([]byte(`{"type":"Splitter"}`))
	assert.Error(t, err)
}
