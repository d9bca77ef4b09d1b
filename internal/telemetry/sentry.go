// Package telemetry wires optional Sentry error reporting.
package telemetry

import (
	"fmt"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/pipeconf/pipeconf/internal/conf"
	"github.com/pipeconf/pipeconf/internal/errors"
	"github.com/pipeconf/pipeconf/internal/logger"
)

var (
	initMu      sync.Mutex
	initialized bool
)

// Init enables Sentry reporting of built errors when telemetry is enabled in settings.
// It is a no-op otherwise.
func Init(settings *conf.Settings) error {
	return initSentry(settings, nil)
}

func initSentry(settings *conf.Settings, transport sentry.Transport) error {
	initMu.Lock()
	defer initMu.Unlock()

	if !settings.Telemetry.Enabled {
		GetLogger().Debug("error telemetry disabled")
		return nil
	}
	if settings.Telemetry.SentryDSN == "" {
		return errors.Newf("telemetry enabled without a sentry DSN").
			Category(errors.CategoryConfiguration).
			Context("setting", "telemetry.sentrydsn").
			Build()
	}

	environment := "production"
	if settings.Debug {
		environment = "development"
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.Telemetry.SentryDSN,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      environment,
		ServerName:       "",
		Release:          fmt.Sprintf("pipeconf@%s", settings.Version),
		Transport:        transport,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	})
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	initialized = true
	GetLogger().Info("error telemetry enabled", logger.String("environment", environment))
	return nil
}

// Flush waits for queued events to be delivered and disables reporting.
func Flush(timeout time.Duration) {
	initMu.Lock()
	defer initMu.Unlock()

	if !initialized {
		return
	}
	if !sentry.Flush(timeout) {
		GetLogger().Warn("sentry flush timed out", logger.Duration("timeout", timeout))
	}
	errors.SetTelemetryReporter(nil)
	initialized = false
}

// applyPrivacyFilters removes host identifying data from an event.
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}

	for k := range event.Extra {
		if k != "error_type" && k != "component" {
			delete(event.Extra, k)
		}
	}

	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}

	return event
}

// GetLogger returns the telemetry module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("telemetry")
}
