package importer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pipeconf/pipeconf/internal/errors"
	"github.com/pipeconf/pipeconf/internal/jsontree"
)

// ParseJSON decodes a complete or partial config document.
func ParseJSON(data []byte) (map[string]any, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, parseError(err, "json")
	}
	return asDocument(doc, "json")
}

// ParseYAML decodes a complete or partial config document written in YAML.
func ParseYAML(data []byte) (map[string]any, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, parseError(err, "yaml")
	}
	return asDocument(jsontree.Normalize(doc), "yaml")
}

// ReadFile reads a config document from disk. Files ending in .yml or .yaml are decoded
// as YAML, everything else as JSON.
func ReadFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}

func asDocument(doc any, format string) (map[string]any, error) {
	if doc == nil {
		return map[string]any{}, nil
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, parseError(fmt.Errorf("document root must be an object, got %T", doc), format)
	}
	return obj, nil
}

func parseError(err error, format string) error {
	return errors.New(err).
		Category(errors.CategoryFileParsing).
		Context("format", format).
		Build()
}
