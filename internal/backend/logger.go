package backend

import "github.com/pipeconf/pipeconf/internal/logger"

// GetLogger returns the backend client logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("backend")
}
