package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// envBinding maps an environment variable onto a config key.
type envBinding struct {
	ConfigKey string
	EnvVar    string
	Validate  func(string) error
}

func getEnvBindings() []envBinding {
	return []envBinding{
		{"server.listen", "PIPECONF_LISTEN", nil},
		{"backend.url", "PIPECONF_BACKEND_URL", validateEnvURL},
		{"backend.timeout", "PIPECONF_BACKEND_TIMEOUT", nil},
		{"session.maxhistory", "PIPECONF_MAX_HISTORY", validateEnvNonNegativeInt},
		{"datastore.enabled", "PIPECONF_DATASTORE_ENABLED", validateEnvBool},
		{"datastore.type", "PIPECONF_DATASTORE_TYPE", validateEnvDatastoreType},
		{"datastore.sqlite.path", "PIPECONF_SQLITE_PATH", nil},
		{"logging.default_level", "PIPECONF_LOG_LEVEL", validateEnvLogLevel},
		{"datastore.mysql.password", "PIPECONF_MYSQL_PASSWORD", nil},
		{"datastore.mysql.passwordfile", "PIPECONF_MYSQL_PASSWORD_FILE", nil},
		{"telemetry.sentrydsn", "PIPECONF_SENTRY_DSN", nil},
		{"telemetry.sentrydsnfile", "PIPECONF_SENTRY_DSN_FILE", nil},
	}
}

// bindEnvVars binds the environment variables and reports invalid values. Invalid values
// are still bound; ValidateSettings rejects them later.
func bindEnvVars() error {
	var warnings []string
	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to bind %s: %v", binding.EnvVar, err))
			continue
		}
		if binding.Validate == nil {
			continue
		}
		if value := os.Getenv(binding.EnvVar); value != "" {
			if err := binding.Validate(value); err != nil {
				warnings = append(warnings, fmt.Sprintf("invalid %s value %q: %v", binding.EnvVar, value, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	_, err := strconv.ParseBool(value)
	return err
}

func validateEnvNonNegativeInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	return nil
}

func validateEnvDatastoreType(value string) error {
	switch strings.ToLower(value) {
	case "sqlite", "mysql":
		return nil
	}
	return fmt.Errorf("must be sqlite or mysql")
}

func validateEnvLogLevel(value string) error {
	switch strings.ToLower(value) {
	case "trace", "debug", "info", "warn", "warning", "error":
		return nil
	}
	return fmt.Errorf("unknown log level")
}
