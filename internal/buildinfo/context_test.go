package buildinfo

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextAccessors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                    string
		ctx                     *Context
		version, date, revision string
	}{
		{name: "nil context", ctx: nil, version: UnknownValue, date: UnknownValue, revision: UnknownValue},
		{name: "empty values", ctx: NewContext("", "", ""), version: UnknownValue, date: UnknownValue, revision: UnknownValue},
		{name: "pre-release", ctx: NewContext("1.0.0-beta.1", "2026-10-01", "a1b2c3d"), version: "1.0.0-beta.1", date: "2026-10-01", revision: "a1b2c3d"},
		{name: "build metadata", ctx: NewContext("1.0.0+build.123", "", "abc"), version: "1.0.0+build.123", date: UnknownValue, revision: "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.version, tt.ctx.Version())
			assert.Equal(t, tt.date, tt.ctx.BuildDate())
			assert.Equal(t, tt.revision, tt.ctx.Commit())
		})
	}
}

func TestContextString(t *testing.T) {
	t.Parallel()

	var info BuildInfo = NewContext("2.1.0", "2026-10-19", "deadbeef")
	assert.Equal(t, "2.1.0", info.Version())

	banner := NewContext("2.1.0", "2026-10-19", "deadbeef").String()
	assert.Contains(t, banner, "pipeconf 2.1.0")
	assert.Contains(t, banner, "commit deadbeef")
	assert.Contains(t, banner, runtime.Version())

	var missing *Context
	assert.Contains(t, missing.String(), "pipeconf unknown")
}
