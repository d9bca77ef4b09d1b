// Package buildinfo carries build-time metadata, kept apart from user configuration.
package buildinfo

import (
	"fmt"
	"runtime"
)

// UnknownValue is reported for metadata that was not injected at build time.
const UnknownValue = "unknown"

// BuildInfo provides access to build-time metadata.
type BuildInfo interface {
	Version() string
	BuildDate() string
	Commit() string
}

// Context holds the metadata injected through -ldflags at build time.
type Context struct {
	version   string
	buildDate string
	commit    string
}

// NewContext returns build metadata. Empty values report as UnknownValue.
func NewContext(version, buildDate, commit string) *Context {
	return &Context{version: version, buildDate: buildDate, commit: commit}
}

// Version returns the release version.
func (c *Context) Version() string {
	if c == nil {
		return UnknownValue
	}
	return orUnknown(c.version)
}

// BuildDate returns when the binary was built.
func (c *Context) BuildDate() string {
	if c == nil {
		return UnknownValue
	}
	return orUnknown(c.buildDate)
}

// Commit returns the source revision the binary was built from.
func (c *Context) Commit() string {
	if c == nil {
		return UnknownValue
	}
	return orUnknown(c.commit)
}

// String renders the one line version banner.
func (c *Context) String() string {
	return fmt.Sprintf("pipeconf %s (commit %s, built %s, %s %s/%s)",
		c.Version(), c.Commit(), c.BuildDate(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func orUnknown(s string) string {
	if s == "" {
		return UnknownValue
	}
	return s
}
