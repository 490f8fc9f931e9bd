// ABOUTME: Client-side filtering of catalog artworks
// ABOUTME: Shared by the CLI and the MCP list_artworks tool
package catalog

import (
	"strings"

	"github.com/harper/artmatch/internal/models"
)

// FilterArtworks keeps artworks whose title or artist contains query
// (case-insensitive) and whose sale status equals status. Empty values match all.
func FilterArtworks(artworks []models.Artwork, query string, status models.SaleStatus) []models.Artwork {
	query = strings.ToLower(strings.TrimSpace(query))

	filtered := make([]models.Artwork, 0, len(artworks))
	for _, art := range artworks {
		if status != "" && art.SaleStatus != status {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(art.Title), query) &&
			!strings.Contains(strings.ToLower(art.Artist), query) {
			continue
		}
		filtered = append(filtered, art)
	}
	return filtered
}
