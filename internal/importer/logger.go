package importer

import "github.com/pipeconf/pipeconf/internal/logger"

// GetLogger returns the importer module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("importer")
}
