package conf

import (
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pipeconf/pipeconf/internal/errors"
)

// GetDefaultConfigPaths returns the directories searched for config.yaml, in order.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "get-home-directory").
			Build()
	}

	if runtime.GOOS == "windows" {
		return []string{".", filepath.Join(homeDir, "AppData", "Roaming", "pipeconf")}, nil
	}
	return []string{".", filepath.Join(homeDir, ".config", "pipeconf"), "/etc/pipeconf"}, nil
}

// FindConfigFile returns the first existing config.yaml in the default paths.
func FindConfigFile() (string, error) {
	paths, err := GetDefaultConfigPaths()
	if err != nil {
		return "", err
	}
	for _, dir := range paths {
		candidate := filepath.Join(dir, "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", errors.Newf("config file not found in %v", paths).
		Category(errors.CategoryNotFound).
		Build()
}

// moveFile copies src to dst and removes src.
func moveFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
