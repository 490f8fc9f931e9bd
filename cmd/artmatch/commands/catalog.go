// ABOUTME: Catalog commands list artworks and exhibitions from the gallery API
// ABOUTME: Supports simple text and sale-status filters for artworks
package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/artmatch/internal/catalog"
	"github.com/harper/artmatch/internal/models"
)

// NewArtworksCmd creates the artworks command
func NewArtworksCmd() *cobra.Command {
	var (
		query  string
		status string
	)

	cmd := &cobra.Command{
		Use:   "artworks",
		Short: "List gallery artworks",
		Example: `  artmatch artworks
  artmatch artworks --query sunset --status available`,
		RunE: func(cmd *cobra.Command, args []string) error {
			saleStatus := models.SaleStatus(strings.ToLower(status))
			if saleStatus != "" && !saleStatus.IsValid() {
				return fmt.Errorf("unknown sale status %q", status)
			}

			a, err := newApp(cmd, setupOptions{})
			if err != nil {
				return err
			}

			artworks, err := a.catalog.ListArtworks(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list artworks: %w", err)
			}
			artworks = catalog.FilterArtworks(artworks, query, saleStatus)

			if len(artworks) == 0 && resolveFormat(cmd.OutOrStdout()) == formatTable {
				if !quiet {
					fmt.Fprintln(cmd.OutOrStdout(), "No artworks found")
				}
				return nil
			}

			return writeOutput(cmd, artworks, func(w *tabwriter.Writer) {
				fmt.Fprintf(w, "TITLE\tARTIST\tSTATUS\tIMAGES\tSLUG\n")
				fmt.Fprintf(w, "-----\t------\t------\t------\t----\n")
				for _, art := range artworks {
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
						truncate(art.Title, 30),
						truncate(art.Artist, 20),
						art.SaleStatus,
						len(art.Images),
						art.Slug)
				}
				if !quiet {
					fmt.Fprintf(w, "\nTotal: %d artwork(s)\n", len(artworks))
				}
			})
		},
	}

	cmd.Flags().StringVar(&query, "query", "", "Only artworks whose title or artist contains this text")
	cmd.Flags().StringVar(&status, "status", "", "Only artworks with this sale status (available, sold, reserved, unknown)")

	return cmd
}

// NewExhibitionsCmd creates the exhibitions command
func NewExhibitionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exhibitions",
		Short: "List gallery exhibitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, setupOptions{})
			if err != nil {
				return err
			}

			exhibitions, err := a.catalog.ListExhibitions(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list exhibitions: %w", err)
			}

			return writeOutput(cmd, exhibitions, func(w *tabwriter.Writer) {
				fmt.Fprintf(w, "TITLE\tSTART\tEND\n")
				fmt.Fprintf(w, "-----\t-----\t---\n")
				for _, ex := range exhibitions {
					fmt.Fprintf(w, "%s\t%s\t%s\n", truncate(ex.Title, 40), ex.StartDate, ex.EndDate)
				}
			})
		},
	}
}
