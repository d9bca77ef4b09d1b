package history

import "github.com/pipeconf/pipeconf/internal/logger"

// GetLogger returns the history module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("history")
}
