package dspconfig

import (
	"encoding/json"
	"fmt"
	"slices"
)

// StepType discriminates pipeline steps on the wire.
type StepType string

const (
	StepMixer     StepType = "Mixer"
	StepFilter    StepType = "Filter"
	StepProcessor StepType = "Processor"
)

// PipelineStep is one of MixerStep, FilterStep or ProcessorStep.
type PipelineStep interface {
	StepType() StepType
	pipelineStep()
}

// MixerStep applies a named mixer to all channels.
type MixerStep struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Bypassed    *bool   `json:"bypassed"`
}

// ProcessorStep applies a named processor.
type ProcessorStep struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Bypassed    *bool   `json:"bypassed"`
}

// FilterStep applies a chain of named filters to one channel.
type FilterStep struct {
	Channel     int      `json:"channel"`
	Names       []string `json:"names"`
	Description *string  `json:"description"`
	Bypassed    *bool    `json:"bypassed"`
}

func (MixerStep) StepType() StepType     { return StepMixer }
func (ProcessorStep) StepType() StepType { return StepProcessor }
func (FilterStep) StepType() StepType    { return StepFilter }

func (MixerStep) pipelineStep()     {}
func (ProcessorStep) pipelineStep() {}
func (FilterStep) pipelineStep()    {}

func (s MixerStep) MarshalJSON() ([]byte, error) {
	type plain MixerStep
	return json.Marshal(struct {
		Type StepType `json:"type"`
		plain
	}{StepMixer, plain(s)})
}

func (s ProcessorStep) MarshalJSON() ([]byte, error) {
	type plain ProcessorStep
	return json.Marshal(struct {
		Type StepType `json:"type"`
		plain
	}{StepProcessor, plain(s)})
}

func (s FilterStep) MarshalJSON() ([]byte, error) {
	type plain FilterStep
	if s.Names == nil {
		s.Names = []string{}
	}
	return json.Marshal(struct {
		Type StepType `json:"type"`
		plain
	}{StepFilter, plain(s)})
}

// Pipeline is the ordered list of processing steps.
type Pipeline []PipelineStep

// UnmarshalJSON decodes each step according to its "type" field.
func (p *Pipeline) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Pipeline, 0, len(raw))
	for i, r := range raw {
		step, err := decodeStep(r)
		if err != nil {
			return fmt.Errorf("pipeline step %d: %w", i, err)
		}
		out = append(out, step)
	}
	*p = out
	return nil
}

// ParsePipelineStep decodes a single step document.
func ParsePipelineStep(data []byte) (PipelineStep, error) {
	return decodeStep(data)
}

func decodeStep(data json.RawMessage) (PipelineStep, error) {
	var head struct {
		Type StepType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	switch head.Type {
	case StepMixer:
		var s MixerStep
		err := json.Unmarshal(data, &s)
		return s, err
	case StepProcessor:
		var s ProcessorStep
		err := json.Unmarshal(data, &s)
		return s, err
	case StepFilter:
		var s FilterStep
		err := json.Unmarshal(data, &s)
		if s.Names == nil {
			s.Names = []string{}
		}
		return s, err
	default:
		return nil, fmt.Errorf("unknown step type %q", head.Type)
	}
}

// Clone returns a copy of the pipeline that shares no slices with p.
func (p Pipeline) Clone() Pipeline {
	if p == nil {
		return nil
	}
	out := make(Pipeline, len(p))
	for i, step := range p {
		if fs, ok := step.(FilterStep); ok {
			fs.Names = slices.Clone(fs.Names)
			step = fs
		}
		out[i] = step
	}
	return out
}

// AddPipelineStep appends a step to the end of the pipeline.
func (c *Config) AddPipelineStep(step PipelineStep) {
	c.Pipeline = append(slices.Clip(c.Pipeline), step)
}

// RemovePipelineStep removes the step at index.
func (c *Config) RemovePipelineStep(index int) error {
	if index < 0 || index >= len(c.Pipeline) {
		return newOutOfRangeError("pipeline step", index, len(c.Pipeline))
	}
	c.Pipeline = slices.Delete(slices.Clone(c.Pipeline), index, index+1)
	return nil
}

// MovePipelineStep moves the step at from so that it ends up at index to.
func (c *Config) MovePipelineStep(from, to int) error {
	n := len(c.Pipeline)
	if from < 0 || from >= n {
		return newOutOfRangeError("pipeline step", from, n)
	}
	if to < 0 || to >= n {
		return newOutOfRangeError("pipeline step", to, n)
	}
	step := c.Pipeline[from]
	p := slices.Delete(slices.Clone(c.Pipeline), from, from+1)
	c.Pipeline = slices.Insert(p, to, step)
	return nil
}
