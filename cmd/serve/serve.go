// Package serve implements the serve command, which runs the editing API.
package serve

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pipeconf/pipeconf/internal/api"
	"github.com/pipeconf/pipeconf/internal/backend"
	"github.com/pipeconf/pipeconf/internal/conf"
	"github.com/pipeconf/pipeconf/internal/datastore"
	"github.com/pipeconf/pipeconf/internal/logger"
	"github.com/pipeconf/pipeconf/internal/observability"
)

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		SilenceUsage:  true,
		SilenceErrors: true,

		Use:   "serve",
		Short: "Run the config editing API",
		Long:  "Start the HTTP API that edits pipeline configs and relays them to the engine backend.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		panic(err)
	}
	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.Server.Listen, "listen", viper.GetString("server.listen"), "Listen address of the API")
	cmd.Flags().StringVar(&settings.Backend.URL, "backend", viper.GetString("backend.url"), "Base URL of the engine config backend")
	cmd.Flags().BoolVar(&settings.Telemetry.Metrics, "metrics", viper.GetBool("telemetry.metrics"), "Expose Prometheus metrics on /metrics")
	cmd.Flags().BoolVar(&settings.Datastore.Enabled, "archive", viper.GetBool("datastore.enabled"), "Archive applied and saved configs")

	for key, flag := range map[string]string{
		"server.listen":     "listen",
		"backend.url":       "backend",
		"telemetry.metrics": "metrics",
		"datastore.enabled": "archive",
	} {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flags: %w", err)
		}
	}
	return nil
}

// Run wires the backend client, the optional revision archive and metrics into the HTTP
// server and serves until ctx is cancelled or a termination signal arrives.
func Run(ctx context.Context, settings *conf.Settings) error {
	log := logger.Global().Module("serve")

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	client, err := backend.New(backend.ConfigFromSettings(settings, func(path string, status int, elapsed time.Duration) {
		metrics.RecordBackendRequest(path, status, elapsed.Seconds())
	}))
	if err != nil {
		return err
	}
	defer client.Close()

	opts := []api.ServerOption{api.WithBackend(client), api.WithMetrics(metrics)}

	if settings.Datastore.Enabled {
		ds, err := datastore.New(settings)
		if err != nil {
			return err
		}
		if err := ds.Open(); err != nil {
			return fmt.Errorf("failed to open revision archive: %w", err)
		}
		defer func() {
			if err := ds.Close(); err != nil {
				log.Warn("failed to close revision archive", logger.Error(err))
			}
		}()
		opts = append(opts, api.WithDataStore(ds))
	}

	server, err := api.New(settings, opts...)
	if err != nil {
		return err
	}

	log.Info("starting pipeconf",
		logger.String("version", settings.Version),
		logger.String("listen", server.Config().Address()),
		logger.String("backend", client.BaseURL()),
		logger.Bool("archive", settings.Datastore.Enabled))

	return server.StartWithGracefulShutdown(ctx)
}
