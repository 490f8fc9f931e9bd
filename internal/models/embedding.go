// ABOUTME: Feature vector, reference entry and match result models
// ABOUTME: Shared by the matcher, reference stores and the scanning flow
package models

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// FeatureVector is an embedding produced from an image. Vectors compared
// together must share a dimension.
type FeatureVector []float64

// Norm returns the Euclidean length of the vector
func (v FeatureVector) Norm() float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// Clone returns a copy that does not share backing storage with v
func (v FeatureVector) Clone() FeatureVector {
	if v == nil {
		return nil
	}
	out := make(FeatureVector, len(v))
	copy(out, v)
	return out
}

// ValidateDimension checks that the vector is non-empty and has the expected length
func (v FeatureVector) ValidateDimension(expected int) error {
	if len(v) == 0 {
		return fmt.Errorf("vector cannot be empty")
	}
	if len(v) != expected {
		return fmt.Errorf("dimension mismatch: expected %d, got %d", expected, len(v))
	}
	return nil
}

// ReferenceEntry pairs a known artwork image with its feature vector
type ReferenceEntry struct {
	ID        string        `json:"id" yaml:"id"`
	Label     string        `json:"label" yaml:"label"`
	ArtworkID string        `json:"artwork_id,omitempty" yaml:"artwork_id,omitempty"`
	Slug      string        `json:"slug,omitempty" yaml:"slug,omitempty"`
	ImageURL  string        `json:"image_url,omitempty" yaml:"image_url,omitempty"`
	Model     string        `json:"model" yaml:"model"`
	Position  int           `json:"position" yaml:"position"`
	Vector    FeatureVector `json:"vector" yaml:"vector,flow"`
	CreatedAt time.Time     `json:"created_at" yaml:"created_at"`
}

// NoMatchScore is the score reported when nothing could be compared
var NoMatchScore = math.Inf(-1)

// MatchResult is the outcome of a nearest-reference search
type MatchResult struct {
	Label    string  `json:"label,omitempty" yaml:"label,omitempty"`
	Score    float64 `json:"score" yaml:"score"`
	Found    bool    `json:"found" yaml:"found"`
	Index    int     `json:"index" yaml:"index"`
	Compared int     `json:"compared" yaml:"compared"`
	Skipped  int     `json:"skipped" yaml:"skipped"`
}

// NoMatch returns the result for a search that compared nothing
func NoMatch() MatchResult {
	return MatchResult{Score: NoMatchScore, Index: -1}
}

// MarshalJSON writes a non-finite score as null since JSON has no infinities
func (r MatchResult) MarshalJSON() ([]byte, error) {
	type plain MatchResult
	out := struct {
		plain
		Score *float64 `json:"score"`
	}{plain: plain(r)}
	if !math.IsInf(r.Score, 0) && !math.IsNaN(r.Score) {
		score := r.Score
		out.Score = &score
	}
	return json.Marshal(out)
}

// AllSkipped reports whether entries were present but none could be compared
func (r MatchResult) AllSkipped() bool {
	return !r.Found && r.Skipped > 0
}

// ReferenceStats summarizes the stored reference set for one embedding model
type ReferenceStats struct {
	Model     string    `json:"model" yaml:"model"`
	Entries   int       `json:"entries" yaml:"entries"`
	Artworks  int       `json:"artworks" yaml:"artworks"`
	Dimension int       `json:"dimension" yaml:"dimension"`
	BuiltAt   time.Time `json:"built_at" yaml:"built_at"`
}
