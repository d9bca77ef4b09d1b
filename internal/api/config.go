package api

import (
	"fmt"
	"net"
	"time"

	"github.com/pipeconf/pipeconf/internal/conf"
	"github.com/pipeconf/pipeconf/internal/logger"
)

// GetLogger returns the server module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("server")
}

// Default server configuration values
const (
	DefaultHost            = "127.0.0.1"
	DefaultPort            = "5006"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// Config holds the HTTP server configuration.
type Config struct {
	Host string // Host to bind to (empty for all interfaces)
	Port string // Port to listen on

	ReadTimeout     time.Duration // Maximum duration for reading request
	WriteTimeout    time.Duration // Maximum duration for writing response
	IdleTimeout     time.Duration // Maximum time to wait for next request
	ShutdownTimeout time.Duration // Maximum time to wait for graceful shutdown

	Debug   bool // Enable echo debug mode
	Metrics bool // Serve Prometheus metrics on /metrics
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:            DefaultHost,
		Port:            DefaultPort,
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// ConfigFromSettings builds the server configuration from application settings. Zero
// settings keep the defaults.
func ConfigFromSettings(settings *conf.Settings) *Config {
	cfg := DefaultConfig()

	if settings.Server.Listen != "" {
		if host, port, err := net.SplitHostPort(settings.Server.Listen); err == nil {
			cfg.Host, cfg.Port = host, port
		} else {
			// Leave the raw value for Validate to report.
			cfg.Host, cfg.Port = settings.Server.Listen, ""
		}
	}
	if settings.Server.ReadTimeout > 0 {
		cfg.ReadTimeout = settings.Server.ReadTimeout
	}
	if settings.Server.WriteTimeout > 0 {
		cfg.WriteTimeout = settings.Server.WriteTimeout
	}
	if settings.Server.ShutdownTimeout > 0 {
		cfg.ShutdownTimeout = settings.Server.ShutdownTimeout
	}

	cfg.Debug = settings.Server.Debug || settings.Debug
	cfg.Metrics = settings.Telemetry.Metrics
	return cfg
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required, got listen address %q", c.Host)
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	return nil
}

// Address returns the listen address.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c *Config) String() string {
	return fmt.Sprintf("Server Config: address=%s, debug=%v, metrics=%v", c.Address(), c.Debug, c.Metrics)
}
