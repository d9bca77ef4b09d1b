// Package revisions implements the revisions command, which inspects the config archive.
package revisions

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pipeconf/pipeconf/internal/conf"
	"github.com/pipeconf/pipeconf/internal/datastore"
)

const defaultLimit = 20

// Command creates the revisions command and its subcommands.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		SilenceUsage:  true,
		SilenceErrors: true,

		Use:   "revisions",
		Short: "Inspect archived config revisions",
	}
	cmd.AddCommand(listCommand(settings), showCommand(settings), deleteCommand(settings))
	return cmd
}

func listCommand(settings *conf.Settings) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recent revisions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(settings, func(ds datastore.Interface) error {
				revs, err := ds.ListRevisions(cmd.Context(), limit)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tCREATED\tSOURCE\tFILENAME\tTITLE")
				for _, rev := range revs {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
						rev.ID, rev.CreatedAt.Format(time.RFC3339), rev.Source, rev.Filename, rev.Title)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", defaultLimit, "Maximum number of revisions to list")
	return cmd
}

func showCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Print the config document of a revision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withStore(settings, func(ds datastore.Interface) error {
				rev, err := ds.GetRevision(cmd.Context(), id)
				if err != nil {
					return err
				}
				cfg, err := rev.Config()
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			})
		},
	}
}

func deleteCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a revision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withStore(settings, func(ds datastore.Interface) error {
				if err := ds.DeleteRevision(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "revision %d deleted\n", id)
				return nil
			})
		},
	}
}

// withStore opens the configured archive for the duration of fn. The archive is opened
// even when serve would not record revisions, so old archives stay readable.
func withStore(settings *conf.Settings, fn func(datastore.Interface) error) error {
	ds, err := datastore.New(settings)
	if err != nil {
		return err
	}
	if err := ds.Open(); err != nil {
		return fmt.Errorf("failed to open revision archive: %w", err)
	}
	defer ds.Close()
	return fn(ds)
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid revision id %q", s)
	}
	return uint(id), nil
}
