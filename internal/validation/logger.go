package validation

import "github.com/pipeconf/pipeconf/internal/logger"

// GetLogger returns the validation module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("validation")
}
