package dspconfig

import (
	"encoding/json"
	"maps"
	"slices"

	"github.com/pipeconf/pipeconf/internal/errors"
	"github.com/pipeconf/pipeconf/internal/jsontree"
)

// Parse decodes a JSON config document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileParsing).
			Context("operation", "parse_config").
			Build()
	}
	return &cfg, nil
}

// ToTree converts the config into its generic JSON tree form.
func (c *Config) ToTree() (map[string]any, error) {
	tree, err := jsontree.From(c)
	if err != nil {
		return nil, err
	}
	obj, _ := tree.(map[string]any)
	return obj, nil
}

// FromTree decodes a generic JSON tree into a config.
func FromTree(tree map[string]any) (*Config, error) {
	var cfg Config
	if err := jsontree.Into(tree, &cfg); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryValidation).
			Context("operation", "config_from_tree").
			Build()
	}
	cfg.normalize()
	return &cfg, nil
}

// Clone returns a deep copy that shares no mutable state with c.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := &Config{
		Devices:     c.Devices.clone(),
		Filters:     make(map[string]Filter, len(c.Filters)),
		Mixers:      make(map[string]Mixer, len(c.Mixers)),
		Processors:  make(map[string]Processor, len(c.Processors)),
		Pipeline:    c.Pipeline.Clone(),
		Title:       clonePtr(c.Title),
		Description: clonePtr(c.Description),
	}
	for name, f := range c.Filters {
		f.Description = clonePtr(f.Description)
		f.Parameters = Parameters(jsontree.CloneObject(f.Parameters))
		out.Filters[name] = f
	}
	for name, p := range c.Processors {
		p.Description = clonePtr(p.Description)
		p.Parameters = Parameters(jsontree.CloneObject(p.Parameters))
		out.Processors[name] = p
	}
	for name, m := range c.Mixers {
		out.Mixers[name] = m.Clone()
	}
	if out.Pipeline == nil {
		out.Pipeline = Pipeline{}
	}
	return out
}

// Clone returns a deep copy of the mixer.
func (m Mixer) Clone() Mixer {
	m.Description = clonePtr(m.Description)
	if m.Labels != nil {
		labels := make([]*string, len(m.Labels))
		for i, l := range m.Labels {
			labels[i] = clonePtr(l)
		}
		m.Labels = labels
	}
	if m.Mapping != nil {
		mappings := make([]Mapping, len(m.Mapping))
		for i, mp := range m.Mapping {
			mp.Mute = clonePtr(mp.Mute)
			if mp.Sources != nil {
				sources := make([]Source, len(mp.Sources))
				for j, s := range mp.Sources {
					sources[j] = Source{
						Channel:  s.Channel,
						Gain:     clonePtr(s.Gain),
						Scale:    clonePtr(s.Scale),
						Inverted: clonePtr(s.Inverted),
						Mute:     clonePtr(s.Mute),
					}
				}
				mp.Sources = sources
			}
			mappings[i] = mp
		}
		m.Mapping = mappings
	}
	return m
}

func (d Devices) clone() Devices {
	out := d
	out.Queuelimit = clonePtr(d.Queuelimit)
	out.SilenceThreshold = clonePtr(d.SilenceThreshold)
	out.SilenceTimeout = clonePtr(d.SilenceTimeout)
	out.EnableRateAdjust = clonePtr(d.EnableRateAdjust)
	out.TargetLevel = clonePtr(d.TargetLevel)
	out.AdjustPeriod = clonePtr(d.AdjustPeriod)
	out.CaptureSamplerate = clonePtr(d.CaptureSamplerate)
	out.StopOnRateChange = clonePtr(d.StopOnRateChange)
	out.RateMeasureInterval = clonePtr(d.RateMeasureInterval)
	out.VolumeRampTime = clonePtr(d.VolumeRampTime)
	out.Capture.Settings = jsontree.CloneObject(d.Capture.Settings)
	out.Playback.Settings = jsontree.CloneObject(d.Playback.Settings)
	out.Extra = jsontree.CloneObject(d.Extra)
	if d.Resampler != nil {
		out.Resampler = &Resampler{Type: d.Resampler.Type, Settings: jsontree.CloneObject(d.Resampler.Settings)}
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Equal reports whether two configs encode to the same document.
func Equal(a, b *Config) bool {
	at, aerr := a.ToTree()
	bt, berr := b.ToTree()
	if aerr != nil || berr != nil {
		return false
	}
	return jsontree.Equal(at, bt)
}

// DanglingReferences returns, per kind, the names referenced by the pipeline that have no
// entity. The empty sentinel is not reported.
func (c *Config) DanglingReferences() map[EntityKind][]string {
	out := map[EntityKind][]string{}
	for _, kind := range []EntityKind{KindFilter, KindMixer, KindProcessor} {
		names := c.Names(kind)
		for _, ref := range c.References(kind) {
			if !slices.Contains(names, ref) {
				out[kind] = append(out[kind], ref)
			}
		}
	}
	maps.DeleteFunc(out, func(_ EntityKind, v []string) bool { return len(v) == 0 })
	return out
}
