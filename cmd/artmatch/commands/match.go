// ABOUTME: Match command runs the matcher over vectors stored in files
// ABOUTME: Needs no catalog, embedder or store, useful for checking vectors offline
package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/harper/artmatch/internal/matcher"
	"github.com/harper/artmatch/internal/models"
	"github.com/harper/artmatch/internal/scan"
	"github.com/harper/artmatch/internal/storage"
)

// matchOutput is the result of the match command
type matchOutput struct {
	Match      models.MatchResult `json:"match" yaml:"match"`
	Accepted   bool               `json:"accepted" yaml:"accepted"`
	Threshold  float64            `json:"threshold" yaml:"threshold"`
	Candidates []matcher.Ranked   `json:"candidates,omitempty" yaml:"candidates,omitempty"`
}

// NewMatchCmd creates the match command
func NewMatchCmd() *cobra.Command {
	var (
		top       int
		threshold float64
	)

	cmd := &cobra.Command{
		Use:   "match <query.json> <refs>",
		Short: "Match a query vector against reference vectors from files",
		Long: `Match a query vector against reference vectors from files.

The query file holds a JSON array of numbers, or an object with a "vector"
array. The references file is either a JSON array of reference entries or
a file written by 'artmatch refs export'.`,
		Example: `  artmatch match query.json refs.yaml
  artmatch match --top 5 --format json query.json refs.json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if top < 0 {
				return fmt.Errorf("top must not be negative, got %d", top)
			}
			if threshold < -1 || threshold > 1 {
				return fmt.Errorf("threshold must be between -1 and 1, got %f", threshold)
			}

			query, err := loadQueryVector(args[0])
			if err != nil {
				return err
			}
			refs, err := loadReferences(args[1])
			if err != nil {
				return err
			}

			out, err := matchVectors(query, refs, top, scan.Policy{Threshold: threshold})
			if err != nil {
				return err
			}

			if out.Match.AllSkipped() && !quiet {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: none of the %d references has the query's dimension %d\n", out.Match.Skipped, len(query))
			}

			return writeOutput(cmd, out, func(w *tabwriter.Writer) {
				fmt.Fprintf(w, "Best:\t%s\n", labelOrDash(out.Match))
				fmt.Fprintf(w, "Score:\t%s\n", formatScore(out.Match.Score, out.Match.Found))
				fmt.Fprintf(w, "Accepted:\t%s (threshold %.3f)\n", yesNo(out.Accepted), out.Threshold)
				fmt.Fprintf(w, "Compared:\t%d\n", out.Match.Compared)
				fmt.Fprintf(w, "Skipped:\t%d\n", out.Match.Skipped)
				for i, c := range out.Candidates {
					fmt.Fprintf(w, "#%d\t%s\t%.4f\n", i+1, c.Label, c.Score)
				}
			})
		},
	}

	cmd.Flags().IntVarP(&top, "top", "t", 0, "Also list the N best candidates")
	cmd.Flags().Float64Var(&threshold, "threshold", scan.DefaultThreshold, "Similarity a match must exceed")

	return cmd
}

// matchVectors runs the matcher and applies the policy
func matchVectors(query models.FeatureVector, refs []models.ReferenceEntry, top int, policy scan.Policy) (*matchOutput, error) {
	out := &matchOutput{Threshold: policy.Threshold}

	var err error
	if top > 0 {
		out.Candidates, out.Match, err = matcher.Rank(query, refs, top)
	} else {
		out.Match, err = matcher.FindBestMatch(query, refs)
	}
	if err != nil {
		return nil, fmt.Errorf("match failed: %w", err)
	}

	out.Accepted = policy.Accept(out.Match)
	return out, nil
}

// loadQueryVector reads a bare JSON array or an object's "vector" field
func loadQueryVector(path string) (models.FeatureVector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read query: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("query %s is not valid JSON", path)
	}

	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		root = root.Get("vector")
	}
	if !root.IsArray() {
		return nil, fmt.Errorf("query %s has no vector array", path)
	}

	var vec models.FeatureVector
	for _, v := range root.Array() {
		if v.Type != gjson.Number {
			return nil, fmt.Errorf("query %s: vector holds a non-number %q", path, v.Raw)
		}
		vec = append(vec, v.Float())
	}
	return vec, nil
}

// loadReferences reads a JSON array of entries or an export file
func loadReferences(path string) ([]models.ReferenceEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read references: %w", err)
	}

	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		var refs []models.ReferenceEntry
		if err := json.Unmarshal(trimmed, &refs); err != nil {
			return nil, fmt.Errorf("failed to parse references: %w", err)
		}
		return refs, nil
	}

	export, err := storage.ReadExport(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return export.Entries, nil
}
