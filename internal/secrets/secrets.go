// Package secrets resolves credentials that should not be written into the config file:
// environment references like ${DB_PASSWORD} and mounted secret files such as
// /run/secrets/db_password.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pipeconf/pipeconf/internal/errors"
	"github.com/pipeconf/pipeconf/internal/logger"
)

// maxFileSize bounds secret file reads. Secrets are tokens and passwords.
const maxFileSize = 64 * 1024

// GetLogger returns the secrets module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("secrets")
}

// ExpandString replaces ${VAR} and ${VAR:-fallback} references with environment values.
// A reference to an unset or empty variable without a fallback is an error.
func ExpandString(s string) (string, error) {
	var missing []string
	expanded := os.Expand(s, func(key string) string {
		name, fallback, hasFallback := strings.Cut(key, ":-")
		if value := os.Getenv(name); value != "" {
			return value
		}
		if !hasFallback {
			missing = append(missing, name)
		}
		return fallback
	})

	if len(missing) > 0 {
		return "", errors.Newf("missing required environment variable(s): %s", strings.Join(missing, ", ")).
			Category(errors.CategoryConfiguration).
			Build()
	}
	return expanded, nil
}

// ReadFile returns the contents of a secret file without trailing line breaks. Files
// readable by group or others are accepted with a warning.
func ReadFile(path string) (string, error) {
	if path == "" {
		return "", errors.ValidationError("secret file path is empty")
	}
	clean := filepath.Clean(path)

	info, err := os.Stat(clean)
	if err != nil {
		return "", fileError(err, clean)
	}
	if !info.Mode().IsRegular() {
		return "", fileError(fmt.Errorf("secret path is not a regular file"), clean)
	}
	if info.Size() > maxFileSize {
		return "", fileError(fmt.Errorf("secret file exceeds %d bytes", maxFileSize), clean)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		GetLogger().Warn("secret file is accessible by group or others",
			logger.String("path", clean),
			logger.String("mode", fmt.Sprintf("%04o", perm)))
	}

	data, err := os.ReadFile(clean)
	if err != nil {
		return "", fileError(err, clean)
	}
	secret := strings.TrimRight(string(data), "\r\n")
	if secret == "" {
		return "", fileError(fmt.Errorf("secret file is empty"), clean)
	}
	return secret, nil
}

// Resolve returns the secret from filePath when set, otherwise value with environment
// references expanded. Both empty yields an empty secret.
func Resolve(filePath, value string) (string, error) {
	if filePath != "" {
		return ReadFile(filePath)
	}
	if value == "" {
		return "", nil
	}
	return ExpandString(value)
}

func fileError(err error, path string) error {
	return errors.New(err).
		Category(errors.CategoryFileIO).
		Context("path", path).
		Build()
}
