package dspconfig

// newTestConfig returns a config with one entity of each kind and a pipeline using them.
func newTestConfig() *Config {
	cfg := DefaultConfig()
	cfg.Filters["lowpass"] = DefaultFilter()
	cfg.Filters["gain"], _ = NewFilter("Gain", "")
	cfg.Mixers["stereo"] = DefaultMixer()
	cfg.Processors["comp"] = DefaultProcessor()
	cfg.Pipeline = Pipeline{
		MixerStep{Name: "stereo"},
		FilterStep{Channel: 0, Names: []string{"lowpass", "gain"}},
		ProcessorStep{Name: "comp"},
	}
	return cfg
}
