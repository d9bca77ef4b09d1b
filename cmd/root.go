// Package cmd assembles the command line interface.
package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pipeconf/pipeconf/cmd/merge"
	"github.com/pipeconf/pipeconf/cmd/revisions"
	"github.com/pipeconf/pipeconf/cmd/serve"
	"github.com/pipeconf/pipeconf/cmd/validate"
	"github.com/pipeconf/pipeconf/internal/buildinfo"
	"github.com/pipeconf/pipeconf/internal/conf"
	"github.com/pipeconf/pipeconf/internal/logger"
	"github.com/pipeconf/pipeconf/internal/telemetry"
)

const telemetryFlushTimeout = 2 * time.Second

// RootCommand creates and returns the root command. settings is filled in place once
// the configuration has been loaded, before any subcommand runs.
func RootCommand(settings *conf.Settings, info buildinfo.BuildInfo) *cobra.Command {
	var configFile string
	var central *logger.CentralLogger

	rootCmd := &cobra.Command{
		Use:           "pipeconf",
		Short:         "Pipeline config editor for the processing engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	if err := setupFlags(rootCmd, settings, &configFile); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		serve.Command(settings),
		validate.Command(settings),
		merge.Command(settings),
		revisions.Command(settings),
		versionCommand(info),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Skip setup for the version command
		if cmd.Name() == "version" {
			return nil
		}
		conf.SetConfigFile(configFile)
		cl, err := initialize(settings)
		central = cl
		return err
	}

	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		telemetry.Flush(telemetryFlushTimeout)
		if central != nil {
			_ = central.Close()
		}
	}

	return rootCmd
}

func versionCommand(info buildinfo.BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), info)
		},
	}
}

// initialize loads the configuration and sets up logging and error telemetry.
func initialize(settings *conf.Settings) (*logger.CentralLogger, error) {
	loaded, err := conf.Load()
	if err != nil {
		return nil, err
	}
	loaded.Version = settings.Version
	*settings = *loaded

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)

	if err := telemetry.Init(settings); err != nil {
		return central, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	return central, nil
}

// setupFlags defines flags that are global to the command line interface.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings, configFile *string) error {
	rootCmd.PersistentFlags().StringVarP(configFile, "config", "c", "", "Path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")

	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
