// Package merge implements the merge command, the offline counterpart of the import
// workflow.
package merge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pipeconf/pipeconf/internal/conf"
	"github.com/pipeconf/pipeconf/internal/dspconfig"
	"github.com/pipeconf/pipeconf/internal/importer"
	"github.com/pipeconf/pipeconf/internal/logger"
)

type options struct {
	sections []string
	elements []string
	format   string
	output   string
}

// Command creates the merge command.
func Command(_ *conf.Settings) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		SilenceUsage:  true,
		SilenceErrors: true,

		Use:   "merge [base file] [import file]",
		Short: "Merge parts of one config into another",
		Long: "Select sections or single elements of the import file and merge them into the " +
			"base config. Entity sections are merged by name, the pipeline is appended. " +
			"Without --section or --element the whole import file is merged.",
		Example: "  pipeconf merge base.yml eq.yml --element pipeline/0 --element filters/bass",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args[0], args[1])
		},
	}

	cmd.Flags().StringSliceVar(&opts.sections, "section", nil, "Top level section to import (repeatable)")
	cmd.Flags().StringSliceVar(&opts.elements, "element", nil, "Element to import as section/name or section/index (repeatable)")
	cmd.Flags().StringVar(&opts.format, "format", "", "Output format (json, yaml); defaults to the output file extension or json")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write the result to a file instead of stdout")
	return cmd
}

func run(cmd *cobra.Command, opts *options, basePath, importPath string) error {
	log := logger.Global().Module("merge")

	format, err := outputFormat(opts.format, opts.output)
	if err != nil {
		return err
	}

	baseDoc, err := importer.ReadFile(basePath)
	if err != nil {
		return err
	}
	base, err := dspconfig.FromTree(baseDoc)
	if err != nil {
		return err
	}
	source, err := importer.ReadFile(importPath)
	if err != nil {
		return err
	}

	im := importer.New(source)
	if err := selectParts(im, opts); err != nil {
		return err
	}

	collisions := im.Collisions(base)
	for _, section := range importer.Sections {
		for _, name := range collisions[section] {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s %q replaces an existing entry\n", section, name)
		}
	}

	merged, err := im.ApplyTo(base)
	if err != nil {
		return err
	}
	data, err := encode(merged, format)
	if err != nil {
		return err
	}

	if opts.output == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(opts.output, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", opts.output, err)
	}
	log.Info("merged config written", logger.String("path", opts.output))
	return nil
}

// selectParts applies the requested selection. An empty selection imports every section
// of the source.
func selectParts(im *importer.Import, opts *options) error {
	sections := opts.sections
	if len(sections) == 0 && len(opts.elements) == 0 {
		source := im.Source()
		for _, section := range importer.Sections {
			if _, ok := source[section]; ok {
				sections = append(sections, section)
			}
		}
	}

	for _, section := range sections {
		if err := im.ToggleTopLevel(section, importer.ActionImport); err != nil {
			return err
		}
	}
	for _, element := range opts.elements {
		section, name, ok := strings.Cut(element, "/")
		if !ok || section == "" || name == "" {
			return fmt.Errorf("element %q must be written as section/name", element)
		}
		if err := im.ToggleSecondLevel(section, name, importer.ActionImport); err != nil {
			return err
		}
	}
	return nil
}

func outputFormat(format, output string) (string, error) {
	if format == "" {
		switch strings.ToLower(filepath.Ext(output)) {
		case ".yml", ".yaml":
			format = "yaml"
		default:
			format = "json"
		}
	}
	if !slices.Contains([]string{"json", "yaml"}, format) {
		return "", fmt.Errorf("unsupported format %q", format)
	}
	return format, nil
}

func encode(cfg *dspconfig.Config, format string) ([]byte, error) {
	tree, err := cfg.ToTree()
	if err != nil {
		return nil, err
	}
	if format == "yaml" {
		return yaml.Marshal(tree)
	}
	data, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
