package conf

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/labstack/gommon/bytes"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	for _, validate := range []func(*Settings) error{
		validateServerSettings,
		validateBackendSettings,
		validateSessionSettings,
		validateDatastoreSettings,
		validateTelemetrySettings,
	} {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateServerSettings(s *Settings) error {
	var errs []string
	if _, _, err := net.SplitHostPort(s.Server.Listen); err != nil {
		errs = append(errs, fmt.Sprintf("server.listen %q is not host:port", s.Server.Listen))
	}
	if s.Server.MaxBodySize != "" {
		if _, err := bytes.Parse(s.Server.MaxBodySize); err != nil {
			errs = append(errs, fmt.Sprintf("server.maxbodysize %q is invalid", s.Server.MaxBodySize))
		}
	}
	return joinErrors("server", errs)
}

func validateBackendSettings(s *Settings) error {
	var errs []string
	u, err := url.Parse(s.Backend.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Sprintf("backend.url %q must be an absolute http(s) URL", s.Backend.URL))
	}
	if s.Backend.Timeout < 0 {
		errs = append(errs, "backend.timeout must not be negative")
	}
	if s.Backend.RateLimit < 0 {
		errs = append(errs, "backend.ratelimit must not be negative")
	}
	if s.Backend.RateLimit > 0 && s.Backend.Burst < 1 {
		errs = append(errs, "backend.burst must be at least 1 when rate limiting is enabled")
	}
	return joinErrors("backend", errs)
}

func validateSessionSettings(s *Settings) error {
	var errs []string
	if s.Session.TTL <= 0 {
		errs = append(errs, "session.ttl must be positive")
	}
	if s.Session.CleanupInterval <= 0 {
		errs = append(errs, "session.cleanupinterval must be positive")
	}
	if s.Session.MaxHistory < 0 {
		errs = append(errs, "session.maxhistory must not be negative")
	}
	return joinErrors("session", errs)
}

func validateDatastoreSettings(s *Settings) error {
	if !s.Datastore.Enabled {
		return nil
	}
	var errs []string
	switch strings.ToLower(s.Datastore.Type) {
	case "sqlite":
		if s.Datastore.SQLite.Path == "" {
			errs = append(errs, "datastore.sqlite.path is required")
		}
	case "mysql":
		if s.Datastore.MySQL.Host == "" || s.Datastore.MySQL.Database == "" {
			errs = append(errs, "datastore.mysql host and database are required")
		}
	default:
		errs = append(errs, fmt.Sprintf("datastore.type %q must be sqlite or mysql", s.Datastore.Type))
	}
	if s.Datastore.Retain < 0 {
		errs = append(errs, "datastore.retain must not be negative")
	}
	return joinErrors("datastore", errs)
}

func validateTelemetrySettings(s *Settings) error {
	if s.Telemetry.Enabled && s.Telemetry.SentryDSN == "" {
		return fmt.Errorf("telemetry settings errors: telemetry.sentrydsn is required when telemetry is enabled")
	}
	return nil
}

func joinErrors(section string, errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s settings errors: %s", section, strings.Join(errs, ", "))
}
