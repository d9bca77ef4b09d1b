package dspconfig

import (
	"fmt"
	"slices"
)

// DefaultMapping returns a new mapping targeting the next free output slot.
func DefaultMapping(outChannels int, existing []Mapping) (Mapping, error) {
	if len(existing) >= outChannels {
		return Mapping{}, &OutOfRangeError{
			Message: fmt.Sprintf("Cannot add more than %d (out) mappings", outChannels),
		}
	}
	return Mapping{
		Dest:    len(existing),
		Sources: []Source{DefaultSource(0, nil)},
		Mute:    Ptr(false),
	}, nil
}

// DefaultSource returns a unity gain source for the next input channel, wrapping
// to channel 0 once every input is used.
func DefaultSource(inChannels int, existing []Source) Source {
	channel := len(existing)
	if channel >= inChannels {
		channel = 0
	}
	return newSource(channel)
}

func newSource(channel int) Source {
	return Source{
		Channel:  channel,
		Gain:     Ptr(0.0),
		Scale:    Ptr(ScaleDB),
		Inverted: Ptr(false),
		Mute:     Ptr(false),
	}
}

// Prune drops mappings and sources referring to channels outside the current channel counts.
func (m *Mixer) Prune() {
	mappings := make([]Mapping, 0, len(m.Mapping))
	for _, mp := range m.Mapping {
		if mp.Dest >= m.Channels.Out {
			continue
		}
		mp.Sources = slices.DeleteFunc(slices.Clone(mp.Sources), func(s Source) bool {
			return s.Channel >= m.Channels.In
		})
		mappings = append(mappings, mp)
	}
	m.Mapping = mappings
}

// PruneMixer returns a pruned copy of m.
func PruneMixer(m Mixer) Mixer {
	m.Prune()
	return m
}

// SetChannels changes the channel counts, prunes the mapping and resizes labels to match
// the output count.
func (m *Mixer) SetChannels(in, out int) error {
	if in < 1 || out < 1 {
		return &OutOfRangeError{Message: fmt.Sprintf("mixer channel counts must be positive, got in=%d out=%d", in, out)}
	}
	m.Channels = MixerChannels{In: in, Out: out}
	m.Prune()
	if m.Labels != nil {
		labels := slices.Clone(m.Labels)
		if len(labels) > out {
			labels = labels[:out]
		}
		for len(labels) < out {
			labels = append(labels, nil)
		}
		m.Labels = labels
	}
	return nil
}

// FindMapping returns the index of the mapping targeting dest, or -1.
func (m *Mixer) FindMapping(dest int) int {
	return slices.IndexFunc(m.Mapping, func(mp Mapping) bool { return mp.Dest == dest })
}

// FindSource returns the index of the source reading channel, or -1.
func (mp *Mapping) FindSource(channel int) int {
	return slices.IndexFunc(mp.Sources, func(s Source) bool { return s.Channel == channel })
}

// Cell returns the source connecting input channel source to output channel dest.
func (m *Mixer) Cell(source, dest int) (Source, bool) {
	mi := m.FindMapping(dest)
	if mi < 0 {
		return Source{}, false
	}
	si := m.Mapping[mi].FindSource(source)
	if si < 0 {
		return Source{}, false
	}
	return m.Mapping[mi].Sources[si], true
}

// AddCell connects input channel source to output channel dest with default settings.
// The mapping for dest is created when missing. Adding an existing cell is a no-op.
func (m *Mixer) AddCell(source, dest int) error {
	if err := m.checkCell(source, dest); err != nil {
		return err
	}
	mappings := slices.Clone(m.Mapping)
	mi := m.FindMapping(dest)
	if mi < 0 {
		mappings = append(mappings, Mapping{Dest: dest, Sources: []Source{newSource(source)}, Mute: Ptr(false)})
		m.Mapping = mappings
		return nil
	}
	mp := mappings[mi]
	if mp.FindSource(source) >= 0 {
		return nil
	}
	mp.Sources = append(slices.Clip(mp.Sources), newSource(source))
	mappings[mi] = mp
	m.Mapping = mappings
	return nil
}

// DeleteCell removes the connection between source and dest. A mapping left without
// sources is removed. Deleting a missing cell is a no-op.
func (m *Mixer) DeleteCell(source, dest int) {
	mi := m.FindMapping(dest)
	if mi < 0 {
		return
	}
	mappings := slices.Clone(m.Mapping)
	mp := mappings[mi]
	si := mp.FindSource(source)
	if si < 0 {
		return
	}
	mp.Sources = slices.Delete(slices.Clone(mp.Sources), si, si+1)
	if len(mp.Sources) == 0 {
		m.Mapping = slices.Delete(mappings, mi, mi+1)
		return
	}
	mappings[mi] = mp
	m.Mapping = mappings
}

// UpdateCell applies update to the source connecting source and dest.
func (m *Mixer) UpdateCell(source, dest int, update func(*Source)) error {
	mi := m.FindMapping(dest)
	if mi < 0 {
		return &OutOfRangeError{Message: fmt.Sprintf("no mapping for output channel %d", dest)}
	}
	mappings := slices.Clone(m.Mapping)
	mp := mappings[mi]
	si := mp.FindSource(source)
	if si < 0 {
		return &OutOfRangeError{Message: fmt.Sprintf("output channel %d has no source %d", dest, source)}
	}
	sources := slices.Clone(mp.Sources)
	update(&sources[si])
	sources[si].Channel = source
	mp.Sources = sources
	mappings[mi] = mp
	m.Mapping = mappings
	return nil
}

func (m *Mixer) checkCell(source, dest int) error {
	if source < 0 || source >= m.Channels.In {
		return &OutOfRangeError{Message: fmt.Sprintf("input channel %d out of range [0,%d)", source, m.Channels.In)}
	}
	if dest < 0 || dest >= m.Channels.Out {
		return &OutOfRangeError{Message: fmt.Sprintf("output channel %d out of range [0,%d)", dest, m.Channels.Out)}
	}
	return nil
}

// Label returns the label of output channel dest, or "" when unset.
func (m Mixer) Label(dest int) string {
	if dest < 0 || dest >= len(m.Labels) || m.Labels[dest] == nil {
		return ""
	}
	return *m.Labels[dest]
}
