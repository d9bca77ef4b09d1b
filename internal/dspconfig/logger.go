package dspconfig

import "github.com/pipeconf/pipeconf/internal/logger"

// GetLogger returns the dspconfig module logger. It is resolved on every call so that a
// central logger installed after package init is picked up.
func GetLogger() logger.Logger {
	return logger.Global().Module("dspconfig")
}
