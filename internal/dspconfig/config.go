// Package dspconfig models the configuration document of the audio processing engine
// and implements the editing operations applied to it: naming, renaming and removal of
// entities with pipeline cascade, channel tracking, mixer cell editing and ordering.
//
// Operations on *Config mutate the receiver. Callers that need the previous state
// (history, sessions) work on a Clone.
package dspconfig

import (
	"encoding/json"
	"fmt"
	"maps"
)

// Config is the whole configuration document.
type Config struct {
	Devices     Devices              `json:"devices"`
	Filters     map[string]Filter    `json:"filters"`
	Mixers      map[string]Mixer     `json:"mixers"`
	Processors  map[string]Processor `json:"processors"`
	Pipeline    Pipeline             `json:"pipeline"`
	Title       *string              `json:"title"`
	Description *string              `json:"description"`
}

// UnmarshalJSON decodes a config and replaces null sections with empty ones.
func (c *Config) UnmarshalJSON(data []byte) error {
	type plain Config
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = Config(p)
	c.normalize()
	return nil
}

func (c *Config) normalize() {
	if c.Filters == nil {
		c.Filters = map[string]Filter{}
	}
	if c.Mixers == nil {
		c.Mixers = map[string]Mixer{}
	}
	if c.Processors == nil {
		c.Processors = map[string]Processor{}
	}
	if c.Pipeline == nil {
		c.Pipeline = Pipeline{}
	}
}

// Devices holds the capture/playback endpoints and stream parameters.
type Devices struct {
	Samplerate          int        `json:"samplerate"`
	Chunksize           int        `json:"chunksize"`
	Queuelimit          *int       `json:"queuelimit"`
	SilenceThreshold    *float64   `json:"silence_threshold"`
	SilenceTimeout      *float64   `json:"silence_timeout"`
	Capture             Device     `json:"capture"`
	Playback            Device     `json:"playback"`
	EnableRateAdjust    *bool      `json:"enable_rate_adjust"`
	TargetLevel         *int       `json:"target_level"`
	AdjustPeriod        *float64   `json:"adjust_period"`
	Resampler           *Resampler `json:"resampler"`
	CaptureSamplerate   *int       `json:"capture_samplerate"`
	StopOnRateChange    *bool      `json:"stop_on_rate_change"`
	RateMeasureInterval *float64   `json:"rate_measure_interval"`
	VolumeRampTime      *float64   `json:"volume_ramp_time"`

	// Extra keeps keys this model does not interpret, written back unchanged.
	Extra map[string]any `json:"-"`
}

// MarshalJSON writes the known fields followed by the uninterpreted keys.
func (d Devices) MarshalJSON() ([]byte, error) {
	type plain Devices
	data, err := json.Marshal(plain(d))
	if err != nil || len(d.Extra) == 0 {
		return data, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	for k, v := range d.Extra {
		if _, known := out[k]; !known {
			out[k] = v
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the known fields and collects every other key into Extra.
func (d *Devices) UnmarshalJSON(data []byte) error {
	type plain Devices
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		if _, known := deviceKeys[k]; known {
			continue
		}
		if p.Extra == nil {
			p.Extra = map[string]any{}
		}
		p.Extra[k] = v
	}
	*d = Devices(p)
	return nil
}

// deviceKeys holds the JSON names of the fields Devices interprets.
var deviceKeys = func() map[string]struct{} {
	type plain Devices
	data, err := json.Marshal(plain{})
	if err != nil {
		panic(err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		panic(err)
	}
	keys := make(map[string]struct{}, len(fields))
	for k := range fields {
		keys[k] = struct{}{}
	}
	return keys
}()

// Device is a capture or playback endpoint. Only the type and channel count are
// interpreted; the backend specific keys (device, format, filename, ...) are kept
// verbatim in Settings.
type Device struct {
	Type     string
	Channels int
	Settings map[string]any
}

// MarshalJSON writes type and channels inline with the remaining settings.
func (d Device) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Settings)+2)
	maps.Copy(out, d.Settings)
	out["type"] = d.Type
	out["channels"] = d.Channels
	return json.Marshal(out)
}

// UnmarshalJSON splits type and channels from the remaining settings.
func (d *Device) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	dev := Device{Settings: map[string]any{}}
	for k, v := range raw {
		switch k {
		case "type":
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("device type must be a string, got %T", v)
			}
			dev.Type = s
		case "channels":
			n, ok := v.(float64)
			if !ok {
				return fmt.Errorf("device channels must be a number, got %T", v)
			}
			dev.Channels = int(n)
		default:
			dev.Settings[k] = v
		}
	}
	*d = dev
	return nil
}

// Resampler selects the resampler type; other keys depend on the type.
type Resampler struct {
	Type     string
	Settings map[string]any
}

func (r Resampler) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Settings)+1)
	maps.Copy(out, r.Settings)
	out["type"] = r.Type
	return json.Marshal(out)
}

func (r *Resampler) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	res := Resampler{Settings: map[string]any{}}
	for k, v := range raw {
		if k == "type" {
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("resampler type must be a string, got %T", v)
			}
			res.Type = s
			continue
		}
		res.Settings[k] = v
	}
	*r = res
	return nil
}

// Parameters is the type-specific parameter set of a filter or processor.
// Numbers are float64 and lists are []any, as decoded from JSON.
type Parameters map[string]any

// Subtype returns the "type" parameter, which selects the filter variant.
func (p Parameters) Subtype() string {
	s, _ := p["type"].(string)
	return s
}

// Number returns a numeric parameter. ok is false when the key is missing or not numeric.
func (p Parameters) Number(key string) (float64, bool) {
	switch v := p[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// Filter is a named processing unit referenced by filter steps.
type Filter struct {
	Type        string     `json:"type"`
	Description *string    `json:"description"`
	Parameters  Parameters `json:"parameters"`
}

// Processor is a named multichannel processing unit referenced by processor steps.
type Processor struct {
	Type        string     `json:"type"`
	Description *string    `json:"description"`
	Parameters  Parameters `json:"parameters"`
}

// Scale is the unit of a mixer source gain.
type Scale string

const (
	ScaleDB     Scale = "dB"
	ScaleLinear Scale = "linear"
)

// Mixer routes input channels to output channels.
type Mixer struct {
	Description *string       `json:"description"`
	Channels    MixerChannels `json:"channels"`
	Mapping     []Mapping     `json:"mapping"`
	Labels      []*string     `json:"labels,omitempty"`
}

// MixerChannels is the input and output channel count of a mixer.
type MixerChannels struct {
	In  int `json:"in"`
	Out int `json:"out"`
}

// Mapping collects the sources summed into one output channel.
type Mapping struct {
	Dest    int      `json:"dest"`
	Sources []Source `json:"sources"`
	Mute    *bool    `json:"mute"`
}

// Source is one input channel contributing to a mapping.
type Source struct {
	Channel  int      `json:"channel"`
	Gain     *float64 `json:"gain"`
	Scale    *Scale   `json:"scale"`
	Inverted *bool    `json:"inverted"`
	Mute     *bool    `json:"mute"`
}

// Ptr returns a pointer to v. Used for the nullable fields of the model.
func Ptr[T any](v T) *T {
	return &v
}
