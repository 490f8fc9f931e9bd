// ABOUTME: Index command builds the reference set from the catalog
// ABOUTME: Downloads and embeds every artwork image, then swaps the stored set
package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/harper/artmatch/internal/gallery"
	"github.com/harper/artmatch/internal/logging"
)

// NewIndexCmd creates the index command
func NewIndexCmd() *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the reference set from the gallery catalog",
		Long: `Build the reference set from the gallery catalog.

Every image of every artwork is downloaded and embedded with the configured
embedder. The stored set is replaced only when the build finishes; an
interrupted or failed build keeps the previous set.`,
		Example: `  # Build with the default histogram embedder
  artmatch index

  # Build with OpenAI embeddings, 8 images at a time
  ARTMATCH_EMBEDDER=openai artmatch index --concurrency 8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, concurrency)
		},
	}

	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "Images embedded in parallel (default INDEX_CONCURRENCY)")

	return cmd
}

func runIndex(cmd *cobra.Command, concurrency int) error {
	a, err := newApp(cmd, setupOptions{embedder: true, store: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if concurrency == 0 {
		concurrency = a.cfg.IndexConcurrency
	}
	if err := validatePositiveInt(concurrency, "concurrency"); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []gallery.Option{
		gallery.WithConcurrency(concurrency),
		gallery.WithLogger(logging.Component(a.log, "gallery")),
	}
	if !quiet {
		errOut := cmd.ErrOrStderr()
		opts = append(opts, gallery.WithProgress(func(done, total int) {
			fmt.Fprintf(errOut, "\rEmbedded %d/%d images", done, total)
			if done == total {
				fmt.Fprintln(errOut)
			}
		}))
	}

	builder := gallery.NewBuilder(a.catalog, a.embedder, a.store, opts...)
	report, err := builder.Build(ctx)
	if err != nil {
		return fmt.Errorf("index failed: %w", err)
	}

	return writeOutput(cmd, report, func(w *tabwriter.Writer) {
		fmt.Fprintf(w, "Model:\t%s\n", report.Model)
		fmt.Fprintf(w, "Artworks:\t%d\n", report.Artworks)
		fmt.Fprintf(w, "Images:\t%d\n", report.Images)
		fmt.Fprintf(w, "Embedded:\t%d\n", report.Embedded)
		fmt.Fprintf(w, "Failed:\t%d\n", report.Failed)
		fmt.Fprintf(w, "Duration:\t%s\n", report.Duration.Round(time.Millisecond))
	})
}
