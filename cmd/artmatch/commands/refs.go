// ABOUTME: Refs commands inspect, export and import stored reference sets
// ABOUTME: Export files are portable between the sqlite and Charm stores
package commands

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/artmatch/internal/models"
	"github.com/harper/artmatch/internal/storage"
)

// NewRefsCmd creates the refs command group
func NewRefsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refs",
		Short: "Show stored reference sets",
		Long: `Show stored reference sets.

Each embedding model has its own reference set. Without a subcommand, refs
lists every stored set with its size and build time.`,
		RunE: runRefsStats,
	}

	cmd.AddCommand(newRefsExportCmd())
	cmd.AddCommand(newRefsImportCmd())

	return cmd
}

func runRefsStats(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, setupOptions{store: true})
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.store.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read reference stats: %w", err)
	}
	if stats == nil {
		stats = []models.ReferenceStats{}
	}

	if len(stats) == 0 && resolveFormat(cmd.OutOrStdout()) == formatTable {
		if !quiet {
			fmt.Fprintln(cmd.OutOrStdout(), "No reference sets stored, run 'artmatch index'")
		}
		return nil
	}

	return writeOutput(cmd, stats, func(w *tabwriter.Writer) {
		fmt.Fprintf(w, "MODEL\tENTRIES\tARTWORKS\tDIMENSION\tBUILT\n")
		fmt.Fprintf(w, "-----\t-------\t--------\t---------\t-----\n")
		for _, s := range stats {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\n",
				truncate(s.Model, 45), s.Entries, s.Artworks, s.Dimension, formatTime(s.BuiltAt))
		}
	})
}

func newRefsExportCmd() *cobra.Command {
	var (
		model  string
		output string
		format string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a reference set as YAML or JSON",
		Example: `  artmatch refs export -o refs.yaml
  artmatch refs export --model histogram-rgb444-q2 --as json > refs.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, setupOptions{embedder: model == "", store: true})
			if err != nil {
				return err
			}
			defer a.Close()

			if model == "" {
				model = a.embedder.Model()
			}

			data, err := storage.Export(cmd.Context(), a.store, model)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}

			if err := storage.WriteExport(w, data, format); err != nil {
				return err
			}

			if output != "" && !quiet {
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d entries for %s to %s\n", len(data.Entries), data.Model, output)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "Model to export (default the configured embedder)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to file instead of stdout")
	cmd.Flags().StringVar(&format, "as", "yaml", "Export encoding: yaml or json")

	return cmd
}

func newRefsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace a model's reference set from an export file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer f.Close()

			data, err := storage.ReadExport(f)
			if err != nil {
				return err
			}

			a, err := newApp(cmd, setupOptions{store: true})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := storage.Import(cmd.Context(), a.store, data); err != nil {
				return err
			}

			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d entries for %s\n", len(data.Entries), data.Model)
			}
			return nil
		},
	}
}
