// Package conf loads and persists the application settings.
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/pipeconf/pipeconf/internal/errors"
	"github.com/pipeconf/pipeconf/internal/logger"
	"github.com/pipeconf/pipeconf/internal/secrets"
)

// ServerSettings configures the editing session HTTP service.
type ServerSettings struct {
	Listen          string        // listen address, host:port
	Debug           bool          // true to enable echo debug mode
	ReadTimeout     time.Duration // maximum duration for reading a request
	WriteTimeout    time.Duration // maximum duration for writing a response
	ShutdownTimeout time.Duration // grace period for in-flight requests on shutdown
	MaxBodySize     string        // request body limit, echo notation (e.g. "4M")
}

// BackendSettings configures the connection to the processing engine's backend.
type BackendSettings struct {
	URL       string        // base URL of the backend, e.g. http://localhost:5005
	Timeout   time.Duration // default request timeout
	UserAgent string        // User-Agent sent with every request
	RateLimit float64       // requests per second, 0 disables limiting
	Burst     int           // burst size for the rate limiter
}

// SessionSettings configures editing sessions.
type SessionSettings struct {
	TTL             time.Duration // idle time after which a session expires
	CleanupInterval time.Duration // how often expired sessions are purged
	MaxHistory      int           // undo depth per session, 0 for unbounded
}

// SQLiteSettings configures the SQLite revision archive.
type SQLiteSettings struct {
	Path string // database file path
}

// MySQLSettings configures the MySQL revision archive.
type MySQLSettings struct {
	Host     string
	Port     string
	Username string
	Password string // may reference environment variables, e.g. ${DB_PASSWORD}
	Database string

	PasswordFile string // file holding the password, takes precedence over Password
}

// DatastoreSettings configures the archive of applied and saved configs.
type DatastoreSettings struct {
	Enabled bool   // true to record revisions
	Type    string // "sqlite" or "mysql"
	SQLite  SQLiteSettings
	MySQL   MySQLSettings
	Retain  int // revisions kept, 0 keeps all
}

// TelemetrySettings configures error reporting and metrics.
type TelemetrySettings struct {
	Enabled   bool   // true to report errors to Sentry
	SentryDSN string // Sentry project DSN, may reference environment variables
	Metrics   bool   // true to expose Prometheus metrics on /metrics

	SentryDSNFile string // file holding the DSN, takes precedence over SentryDSN
}

// Settings is the root of the application configuration.
type Settings struct {
	Debug bool // true to enable debug mode

	Version string `yaml:"-" mapstructure:"-"` // build version, runtime value

	Server    ServerSettings
	Backend   BackendSettings
	Session   SessionSettings
	Datastore DatastoreSettings
	Logging   logger.LoggingConfig
	Telemetry TelemetrySettings
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
	configFile       string // explicit config file, empty to search the default paths
)

// Load reads the configuration file, environment variables and bound flags.
// A missing configuration file is not an error; defaults apply.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal_settings").
			Build()
	}

	if err := resolveSecrets(settings); err != nil {
		return nil, err
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper registers defaults, config search paths and environment bindings, then
// reads the config file if one exists.
func initViper() error {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")

		configPaths, err := GetDefaultConfigPaths()
		if err != nil {
			return fmt.Errorf("error getting default config paths: %w", err)
		}
		for _, path := range configPaths {
			viper.AddConfigPath(path)
		}
	}

	setDefaultConfig()

	if err := bindEnvVars(); err != nil {
		GetLogger().Warn("environment configuration issues", logger.Error(err))
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			GetLogger().Info("no config file found, using defaults")
			return nil
		}
		return errors.New(err).
			Category(errors.CategoryFileParsing).
			Context("operation", "read_config").
			Build()
	}

	GetLogger().Info("config file loaded", logger.String("path", viper.ConfigFileUsed()))
	return nil
}

// resolveSecrets replaces credential settings with their environment or file values.
func resolveSecrets(settings *Settings) error {
	for _, secret := range []struct {
		name  string
		file  string
		value *string
	}{
		{"datastore.mysql.password", settings.Datastore.MySQL.PasswordFile, &settings.Datastore.MySQL.Password},
		{"telemetry.sentrydsn", settings.Telemetry.SentryDSNFile, &settings.Telemetry.SentryDSN},
	} {
		resolved, err := secrets.Resolve(secret.file, *secret.value)
		if err != nil {
			return errors.New(fmt.Errorf("failed to resolve %s: %w", secret.name, err)).
				Category(errors.CategoryConfiguration).
				Context("setting", secret.name).
				Build()
		}
		*secret.value = resolved
	}
	return nil
}

// SetConfigFile makes Load read path instead of searching the default locations.
// An empty path restores the search.
func SetConfigFile(path string) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	configFile = path
}

// GetSettings returns the settings loaded by the last successful Load, or nil.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath. The file is replaced atomically; comments
// and ordering of an existing file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "create_temp_config").
			Build()
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		// rename fails across devices; fall back to copy
		if err := moveFile(tempFileName, configPath); err != nil {
			return fmt.Errorf("error copying config file: %w", err)
		}
	}

	GetLogger().Info("settings saved", logger.String("path", configPath))
	return nil
}
