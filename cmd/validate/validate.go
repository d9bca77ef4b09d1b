// Package validate implements the validate command.
package validate

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pipeconf/pipeconf/internal/backend"
	"github.com/pipeconf/pipeconf/internal/conf"
	"github.com/pipeconf/pipeconf/internal/dspconfig"
	"github.com/pipeconf/pipeconf/internal/importer"
	"github.com/pipeconf/pipeconf/internal/validation"
)

// newClient builds the backend client used with --engine. Tests replace it.
var newClient = func(settings *conf.Settings) (*backend.Client, error) {
	return backend.New(backend.ConfigFromSettings(settings, nil))
}

type options struct {
	engine bool
	format string
}

// Command creates the validate command.
func Command(settings *conf.Settings) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		SilenceUsage:  true,
		SilenceErrors: true,

		Use:   "validate [config file]",
		Short: "Check a config file",
		Long: "Parse a JSON or YAML config file and report pipeline steps that reference missing " +
			"entities. With --engine the document is also checked by the engine backend.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, settings, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.engine, "engine", false, "Also validate through the engine backend")
	cmd.Flags().StringVar(&opts.format, "format", "text", "Report format (text, json)")
	return cmd
}

func run(cmd *cobra.Command, settings *conf.Settings, opts *options, path string) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("unsupported format %q", opts.format)
	}

	doc, err := importer.ReadFile(path)
	if err != nil {
		return err
	}
	cfg, err := dspconfig.FromTree(doc)
	if err != nil {
		return err
	}

	entries := danglingEntries(cfg)

	if opts.engine {
		client, err := newClient(settings)
		if err != nil {
			return err
		}
		defer client.Close()

		result, err := client.ValidateConfig(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("engine validation failed: %w", err)
		}
		entries = append(entries, result.Entries()...)
	}

	errs := validation.NewErrors(entries...)
	if err := report(cmd.OutOrStdout(), errs, opts.format); err != nil {
		return err
	}
	if !errs.Empty() {
		return fmt.Errorf("%s: %d problem(s) found", path, errs.Len())
	}
	return nil
}

// danglingEntries reports each name the pipeline references without a matching entity.
func danglingEntries(cfg *dspconfig.Config) []validation.Entry {
	var entries []validation.Entry
	dangling := cfg.DanglingReferences()
	for _, kind := range []dspconfig.EntityKind{dspconfig.KindFilter, dspconfig.KindMixer, dspconfig.KindProcessor} {
		for _, name := range dangling[kind] {
			entries = append(entries, validation.Entry{
				Path:    validation.NewPath("pipeline"),
				Message: fmt.Sprintf("%s %q is not defined", strings.ToLower(kind.String()), name),
			})
		}
	}
	return entries
}

func report(w io.Writer, errs validation.Errors, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(errs)
	}
	if errs.Empty() {
		_, err := fmt.Fprintln(w, "config is valid")
		return err
	}
	_, err := fmt.Fprintln(w, errs.AsText())
	return err
}
