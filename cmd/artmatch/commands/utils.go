// ABOUTME: Shared helpers for CLI commands
// ABOUTME: Output formatting and the config/logger/catalog/store bootstrap
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/harper/artmatch/internal/catalog"
	"github.com/harper/artmatch/internal/config"
	"github.com/harper/artmatch/internal/embed"
	"github.com/harper/artmatch/internal/logging"
	"github.com/harper/artmatch/internal/storage"
)

// Output formats accepted by --format
const (
	formatAuto  = "auto"
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// resolveFormat turns auto into json when stdout is piped and table otherwise
func resolveFormat(w io.Writer) string {
	if outputFormat != formatAuto && outputFormat != "" {
		return outputFormat
	}
	if f, ok := w.(*os.File); ok && !isatty.IsTerminal(f.Fd()) {
		return formatJSON
	}
	return formatTable
}

// writeOutput renders v as json or yaml, or calls table for the table format
func writeOutput(cmd *cobra.Command, v any, table func(w *tabwriter.Writer)) error {
	out := cmd.OutOrStdout()

	switch resolveFormat(out) {
	case formatJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Fprintf(out, "%s\n", data)
	case formatYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		return enc.Close()
	default:
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		table(w)
		return w.Flush()
	}
	return nil
}

// truncate shortens a string to maxLen, adding "..." if truncated
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// formatTime formats a time for display
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	if time.Since(t) > 30*24*time.Hour {
		return t.Format("2006-01-02")
	}
	return humanize.Time(t)
}

// formatScore prints a similarity, or "-" when nothing was compared
func formatScore(score float64, found bool) string {
	if !found {
		return "-"
	}
	return fmt.Sprintf("%.3f", score)
}

// validatePositiveInt returns error if n is not positive
func validatePositiveInt(n int, name string) error {
	if n <= 0 {
		return fmt.Errorf("%s must be positive, got %d", name, n)
	}
	return nil
}

// app bundles the collaborators most commands need
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	catalog  *catalog.Client
	embedder embed.Embedder
	store    storage.ReferenceStore
}

// setupOptions chooses which collaborators newApp builds
type setupOptions struct {
	embedder bool
	store    bool
}

// newApp loads .env and config, then builds the requested collaborators
func newApp(cmd *cobra.Command, opts setupOptions) (*app, error) {
	// Missing .env is fine, the environment may already be set
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a := &app{cfg: cfg, log: newLogger(cmd, cfg)}

	a.catalog = catalog.NewClient(cfg.StrapiURL, cfg.StrapiToken,
		catalog.WithTimeout(cfg.HTTPTimeout),
		catalog.WithRetries(cfg.MaxRetries, cfg.RetryDelay),
		catalog.WithLogger(logging.Component(a.log, "catalog")))

	if opts.embedder {
		a.embedder, err = embed.New(cfg, logging.Component(a.log, "embed"))
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
	}

	if opts.store {
		a.store, err = storage.Open(cfg, logging.Component(a.log, "storage"))
		if err != nil {
			return nil, err
		}
	}

	return a, nil
}

// Close releases the store
func (a *app) Close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("error closing reference store")
	}
}

// newLogger honours --quiet and --verbose over LOG_LEVEL
func newLogger(cmd *cobra.Command, cfg *config.Config) zerolog.Logger {
	if quiet {
		return logging.Nop()
	}
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	return logging.New(level, cmd.ErrOrStderr())
}
