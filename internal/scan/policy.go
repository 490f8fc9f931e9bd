// ABOUTME: Acceptance policy applied to matcher results
// ABOUTME: A match counts only when found and strictly above the configured threshold
package scan

import "github.com/harper/artmatch/internal/models"

// DefaultThreshold is used when no threshold is configured
const DefaultThreshold = 0.7

// Policy decides whether a match result identifies an artwork
type Policy struct {
	Threshold float64
}

// Accept reports whether r is a confident identification
func (p Policy) Accept(r models.MatchResult) bool {
	return r.Found && r.Score > p.Threshold
}
