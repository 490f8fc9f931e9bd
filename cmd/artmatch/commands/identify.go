// ABOUTME: Identify command matches image files against the reference set
// ABOUTME: Prints the best match, its acceptance and optional ranked candidates
package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/artmatch/internal/logging"
	"github.com/harper/artmatch/internal/models"
	"github.com/harper/artmatch/internal/scan"
	"github.com/harper/artmatch/internal/storage"
)

// identifyResult is one row of identify output
type identifyResult struct {
	File   string               `json:"file" yaml:"file"`
	Result *scan.Identification `json:"result,omitempty" yaml:"result,omitempty"`
	Error  string               `json:"error,omitempty" yaml:"error,omitempty"`
}

// NewIdentifyCmd creates the identify command
func NewIdentifyCmd() *cobra.Command {
	var (
		top       int
		threshold float64
		noLookup  bool
	)

	cmd := &cobra.Command{
		Use:   "identify <image>...",
		Short: "Identify which artwork each image shows",
		Long: `Identify which artwork each image shows.

Each image is embedded and compared against the stored reference set for
the configured embedder. A match is accepted when its similarity exceeds
the threshold; accepted matches are looked up in the catalog.`,
		Example: `  artmatch identify photo.jpg
  artmatch identify --top 3 --threshold 0.8 *.jpg`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if top < 0 {
				return fmt.Errorf("top must not be negative, got %d", top)
			}
			if cmd.Flags().Changed("threshold") && (threshold < -1 || threshold > 1) {
				return fmt.Errorf("threshold must be between -1 and 1, got %f", threshold)
			}
			return runIdentify(cmd, args, top, threshold, noLookup)
		},
	}

	cmd.Flags().IntVarP(&top, "top", "t", 0, "Also show the N best candidates")
	cmd.Flags().Float64Var(&threshold, "threshold", scan.DefaultThreshold, "Similarity a match must exceed (default MATCH_THRESHOLD)")
	cmd.Flags().BoolVar(&noLookup, "no-lookup", false, "Skip the catalog lookup of accepted matches")

	return cmd
}

func runIdentify(cmd *cobra.Command, files []string, top int, threshold float64, noLookup bool) error {
	a, err := newApp(cmd, setupOptions{embedder: true, store: true})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()

	refs, err := a.store.Snapshot(ctx, a.embedder.Model())
	if errors.Is(err, storage.ErrNoReferences) {
		return fmt.Errorf("no reference set for %s, run 'artmatch index' first", a.embedder.Model())
	}
	if err != nil {
		return fmt.Errorf("failed to load references: %w", err)
	}

	policy := scan.Policy{Threshold: a.cfg.MatchThreshold}
	if cmd.Flags().Changed("threshold") {
		policy.Threshold = threshold
	}

	opts := []scan.SessionOption{
		scan.WithCandidates(top),
		scan.WithLogger(logging.Component(a.log, "scan")),
	}
	if !noLookup {
		opts = append(opts, scan.WithResolver(a.catalog))
	}
	session := scan.NewSession(refs, a.embedder, policy, opts...)

	results := make([]identifyResult, 0, len(files))
	failures := 0
	for _, file := range files {
		res := identifyResult{File: file}

		frame, err := os.ReadFile(file)
		if err == nil {
			res.Result, err = session.Identify(ctx, frame)
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			res.Error = err.Error()
			failures++
			a.log.Warn().Err(err).Str("file", file).Msg("failed to identify image")
		}
		results = append(results, res)
	}

	err = writeOutput(cmd, results, func(w *tabwriter.Writer) {
		fmt.Fprintf(w, "FILE\tMATCH\tSCORE\tACCEPTED\tARTWORK\n")
		fmt.Fprintf(w, "----\t-----\t-----\t--------\t-------\n")
		for _, r := range results {
			name := truncate(filepath.Base(r.File), 30)
			id := r.Result
			if id == nil {
				fmt.Fprintf(w, "%s\t-\t-\terror\t%s\n", name, truncate(r.Error, 50))
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				name,
				truncate(labelOrDash(id.Match), 30),
				formatScore(id.Match.Score, id.Match.Found),
				yesNo(id.Accepted),
				truncate(artworkSummary(id.Artwork), 50))
			for _, c := range id.Candidates {
				fmt.Fprintf(w, "\t  %s\t%.3f\t\t\n", truncate(c.Label, 28), c.Score)
			}
		}
	})
	if err != nil {
		return err
	}

	if failures == len(files) {
		return fmt.Errorf("no image could be identified")
	}
	return nil
}

func labelOrDash(m models.MatchResult) string {
	if !m.Found {
		return "-"
	}
	return m.Label
}

func artworkSummary(art *models.Artwork) string {
	if art == nil {
		return ""
	}
	return fmt.Sprintf("%s, %s", art.Title, art.Artist)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
