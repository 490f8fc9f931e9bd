// ABOUTME: Nearest-reference matching by cosine similarity
// ABOUTME: Pure functions over feature vectors, safe for concurrent use
package matcher

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/harper/artmatch/internal/models"
)

var (
	// ErrDimensionMismatch is returned when compared vectors differ in length
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrDegenerateVector is returned for empty, zero-norm or non-finite vectors
	ErrDegenerateVector = errors.New("degenerate vector")
)

// CosineSimilarity returns dot(a,b) / (|a|*|b|).
// The result is clamped to [-1, 1].
func CosineSimilarity(a, b models.FeatureVector) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("%w: empty vector", ErrDegenerateVector)
	}

	scaleA, err := scale(a, "first")
	if err != nil {
		return 0, err
	}
	scaleB, err := scale(b, "second")
	if err != nil {
		return 0, err
	}

	// Terms are scaled into [-1, 1] before summing
	var dot, normA, normB neumaier
	for i := range a {
		x, y := a[i]/scaleA, b[i]/scaleB
		dot.add(x * y)
		normA.add(x * x)
		normB.add(y * y)
	}

	score := dot.sum() / (math.Sqrt(normA.sum()) * math.Sqrt(normB.sum()))
	if math.IsNaN(score) {
		return 0, fmt.Errorf("%w: similarity is not a number", ErrDegenerateVector)
	}
	return clamp(score), nil
}

// FindBestMatch scans refs once and returns the entry most similar to query.
//
// A degenerate query is an error. Entries that cannot be compared are skipped
// and counted. An empty refs slice yields models.NoMatch(). Ties keep the
// earliest entry.
func FindBestMatch(query models.FeatureVector, refs []models.ReferenceEntry) (models.MatchResult, error) {
	if err := ValidateQuery(query); err != nil {
		return models.NoMatch(), err
	}

	best := models.NoMatch()
	for i := range refs {
		score, err := CosineSimilarity(query, refs[i].Vector)
		if err != nil {
			best.Skipped++
			continue
		}
		best.Compared++
		if !best.Found || score > best.Score {
			best.Found = true
			best.Score = score
			best.Label = refs[i].Label
			best.Index = i
		}
	}

	return best, nil
}

// Ranked is one scored candidate from Rank
type Ranked struct {
	Entry *models.ReferenceEntry `json:"-" yaml:"-"`
	Label string                 `json:"label" yaml:"label"`
	Score float64                `json:"score" yaml:"score"`
	Index int                    `json:"index" yaml:"index"`
}

// Rank scores every entry and returns the k best in descending order.
// Equal scores keep collection order. k <= 0 returns every comparable entry.
// The MatchResult mirrors what FindBestMatch would return for the same input.
func Rank(query models.FeatureVector, refs []models.ReferenceEntry, k int) ([]Ranked, models.MatchResult, error) {
	if err := ValidateQuery(query); err != nil {
		return nil, models.NoMatch(), err
	}

	best := models.NoMatch()
	ranked := make([]Ranked, 0, len(refs))
	for i := range refs {
		score, err := CosineSimilarity(query, refs[i].Vector)
		if err != nil {
			best.Skipped++
			continue
		}
		best.Compared++
		ranked = append(ranked, Ranked{
			Entry: &refs[i],
			Label: refs[i].Label,
			Score: score,
			Index: i,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if len(ranked) > 0 {
		best.Found = true
		best.Label = ranked[0].Label
		best.Score = ranked[0].Score
		best.Index = ranked[0].Index
	}

	if k > 0 && len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked, best, nil
}

// ValidateQuery rejects query vectors that cannot be compared to anything
func ValidateQuery(query models.FeatureVector) error {
	if len(query) == 0 {
		return fmt.Errorf("query: %w: empty vector", ErrDegenerateVector)
	}
	if _, err := scale(query, "query"); err != nil {
		return fmt.Errorf("query: %w", err)
	}
	return nil
}

// scale returns the largest absolute component of v.
// It fails when v is all zeros or holds NaN or Inf.
func scale(v models.FeatureVector, which string) (float64, error) {
	var m float64
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, fmt.Errorf("%w: %s vector is not finite", ErrDegenerateVector, which)
		}
		if ax := math.Abs(x); ax > m {
			m = ax
		}
	}
	if m == 0 {
		return 0, fmt.Errorf("%w: %s vector has zero norm", ErrDegenerateVector, which)
	}
	return m, nil
}

func clamp(x float64) float64 {
	if x > 1 {
		return 1
	}
	if x < -1 {
		return -1
	}
	return x
}

// neumaier is a compensated float64 accumulator
type neumaier struct {
	s, c float64
}

func (n *neumaier) add(x float64) {
	t := n.s + x
	if math.Abs(n.s) >= math.Abs(x) {
		n.c += (n.s - t) + x
	} else {
		n.c += (x - t) + n.s
	}
	n.s = t
}

func (n *neumaier) sum() float64 {
	return n.s + n.c
}
