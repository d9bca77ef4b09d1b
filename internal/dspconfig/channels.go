package dspconfig

// MaxChannelCount returns the number of channels flowing into the pipeline step at index.
// The last mixer step before index that names an existing mixer decides the count;
// without one the capture device channel count applies.
func (c *Config) MaxChannelCount(index int) int {
	index = min(index, len(c.Pipeline))
	for i := index - 1; i >= 0; i-- {
		ms, ok := c.Pipeline[i].(MixerStep)
		if !ok || ms.Name == "" {
			continue
		}
		if mixer, ok := c.Mixers[ms.Name]; ok {
			return mixer.Channels.Out
		}
	}
	return c.Devices.Capture.Channels
}

// PlaybackChannelMismatch reports whether the channel count leaving the pipeline differs
// from the playback device channel count.
func (c *Config) PlaybackChannelMismatch() bool {
	return c.MaxChannelCount(len(c.Pipeline)) != c.Devices.Playback.Channels
}
