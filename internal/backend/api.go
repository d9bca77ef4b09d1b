package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/antonholmquist/jason"

	"github.com/pipeconf/pipeconf/internal/dspconfig"
	"github.com/pipeconf/pipeconf/internal/errors"
	"github.com/pipeconf/pipeconf/internal/importer"
	"github.com/pipeconf/pipeconf/internal/logger"
	"github.com/pipeconf/pipeconf/internal/validation"
)

// Backend endpoint paths.
const (
	PathGetConfig      = "/api/getconfig"
	PathSetConfig      = "/api/setconfig"
	PathSaveConfigFile = "/api/saveconfigfile"
	PathValidateConfig = "/api/validateconfig"
	PathYAMLToJSON     = "/api/yamltojson"
	PathEQAPOToJSON    = "/api/eqapotojson"
	PathStoredConfigs  = "/api/storedconfigs"
	PathGetConfigFile  = "/api/getconfigfile"
)

// StoredConfig describes a config file kept by the backend.
type StoredConfig struct {
	Name         string    `json:"name"`
	LastModified time.Time `json:"last_modified,omitzero"`
}

type configRequest struct {
	Filename string            `json:"filename,omitempty"`
	Config   *dspconfig.Config `json:"config"`
}

// GetConfig returns the config currently active in the engine.
func (c *Client) GetConfig(ctx context.Context) (*dspconfig.Config, error) {
	data, err := c.get(ctx, PathGetConfig, nil)
	if err != nil {
		return nil, err
	}
	return dspconfig.Parse(data)
}

// SetConfig sends cfg to the engine. filename, if set, is recorded as the config's origin.
func (c *Client) SetConfig(ctx context.Context, cfg *dspconfig.Config, filename string) error {
	_, _, err := c.request(ctx, http.MethodPost, PathSetConfig, nil, configRequest{Filename: filename, Config: cfg})
	if err == nil {
		GetLogger().Info("config applied", logger.String("filename", filename))
	}
	return err
}

// SaveConfigFile stores cfg on the backend under filename.
func (c *Client) SaveConfigFile(ctx context.Context, filename string, cfg *dspconfig.Config) error {
	if filename == "" {
		return errors.ValidationError("filename is required")
	}
	_, _, err := c.request(ctx, http.MethodPost, PathSaveConfigFile, nil, configRequest{Filename: filename, Config: cfg})
	if err == nil {
		GetLogger().Info("config saved", logger.String("filename", filename))
	}
	return err
}

// ValidateConfig asks the backend to validate cfg. A valid config yields empty Errors.
// Replies with status 406 or 422 carry a JSON list of [path, message] pairs.
func (c *Client) ValidateConfig(ctx context.Context, cfg *dspconfig.Config) (validation.Errors, error) {
	status, data, err := c.request(ctx, http.MethodPost, PathValidateConfig, nil, cfg,
		http.StatusOK, http.StatusNotAcceptable, http.StatusUnprocessableEntity)
	if err != nil {
		return validation.Errors{}, err
	}
	if status == http.StatusOK {
		return validation.NewErrors(), nil
	}
	return decodeValidationReply(data)
}

// YAMLToJSON converts a YAML config document to a generic JSON document.
func (c *Client) YAMLToJSON(ctx context.Context, yamlDoc []byte) (map[string]any, error) {
	_, data, err := c.request(ctx, http.MethodPost, PathYAMLToJSON, nil, yamlDoc)
	if err != nil {
		return nil, err
	}
	return importer.ParseJSON(data)
}

// EQAPOToJSON converts an Equalizer APO config to a generic JSON document.
func (c *Client) EQAPOToJSON(ctx context.Context, eqapo []byte) (map[string]any, error) {
	_, data, err := c.request(ctx, http.MethodPost, PathEQAPOToJSON, nil, eqapo)
	if err != nil {
		return nil, err
	}
	return importer.ParseJSON(data)
}

// StoredConfigs lists the config files known to the backend.
func (c *Client) StoredConfigs(ctx context.Context) ([]StoredConfig, error) {
	data, err := c.get(ctx, PathStoredConfigs, nil)
	if err != nil {
		return nil, err
	}
	return decodeStoredConfigs(data)
}

// GetConfigFile loads a stored config file by name.
func (c *Client) GetConfigFile(ctx context.Context, name string) (*dspconfig.Config, error) {
	data, err := c.get(ctx, PathGetConfigFile, url.Values{"name": {name}})
	if err != nil {
		return nil, err
	}
	return dspconfig.Parse(data)
}

// decodeValidationReply reads [[path, message], ...]. A reply that is a bare string or
// an object with a "message" key becomes a single root error.
func decodeValidationReply(data []byte) (validation.Errors, error) {
	v, err := jason.NewValueFromBytes(data)
	if err != nil {
		return validation.Errors{}, invalidReply(err, data)
	}

	if msg, err := v.String(); err == nil {
		return validation.NewErrors(validation.Entry{Path: validation.NewPath(), Message: msg}), nil
	}
	if obj, err := v.Object(); err == nil {
		msg, err := obj.GetString("message")
		if err != nil {
			return validation.Errors{}, invalidReply(err, data)
		}
		return validation.NewErrors(validation.Entry{Path: validation.NewPath(), Message: msg}), nil
	}

	items, err := v.Array()
	if err != nil {
		return validation.Errors{}, invalidReply(err, data)
	}

	errs, err := validation.FromValues(items)
	if err != nil {
		return validation.Errors{}, invalidReply(err, data)
	}
	return errs, nil
}

// decodeStoredConfigs accepts a list of names or of objects with name and lastModified
// (seconds since the epoch) keys.
func decodeStoredConfigs(data []byte) ([]StoredConfig, error) {
	v, err := jason.NewValueFromBytes(data)
	if err != nil {
		return nil, invalidReply(err, data)
	}
	items, err := v.Array()
	if err != nil {
		return nil, invalidReply(err, data)
	}

	configs := make([]StoredConfig, 0, len(items))
	for _, item := range items {
		if name, err := item.String(); err == nil {
			configs = append(configs, StoredConfig{Name: name})
			continue
		}
		obj, err := item.Object()
		if err != nil {
			return nil, invalidReply(err, data)
		}
		name, err := obj.GetString("name")
		if err != nil {
			return nil, invalidReply(err, data)
		}
		sc := StoredConfig{Name: name}
		if ts, err := obj.GetFloat64("lastModified"); err == nil {
			sec := int64(ts)
			sc.LastModified = time.Unix(sec, int64((ts-float64(sec))*1e9)).UTC()
		}
		configs = append(configs, sc)
	}
	return configs, nil
}

func invalidReply(err error, data []byte) error {
	if len(data) > maxErrorBody {
		data = data[:maxErrorBody]
	}
	return errors.New(fmt.Errorf("unexpected backend reply: %w", err)).
		Category(errors.CategoryHTTP).
		Context("body", string(data)).
		Build()
}
