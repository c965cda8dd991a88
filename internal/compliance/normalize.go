package compliance

import (
	"fmt"

	"regaudit/internal/domain"
	"regaudit/internal/vectorstore"
)

// Normalizer maps a metric's raw similarity onto a [0,1] match score.
type Normalizer string

const (
	// NormalizeLinear maps the similarity range linearly onto [0,1]:
	// (s+1)/2 for cosine and for dot products of unit vectors, and the
	// identity for euclidean, whose similarity 1/(1+d) is already in (0,1].
	NormalizeLinear Normalizer = "linear"
	// NormalizeClamp keeps the raw similarity and clips it to [0,1].
	NormalizeClamp Normalizer = "clamp"
)

func ParseNormalizer(s string) (Normalizer, error) {
	switch Normalizer(s) {
	case "", NormalizeLinear:
		return NormalizeLinear, nil
	case NormalizeClamp:
		return NormalizeClamp, nil
	default:
		return "", fmt.Errorf("%w: unknown normalization %q", domain.ErrInvalidConfig, s)
	}
}

// Score converts a similarity under metric into a score in [0,1].
func (n Normalizer) Score(metric vectorstore.Metric, similarity float64) float64 {
	s := similarity
	if n != NormalizeClamp && metric != vectorstore.Euclidean {
		s = (similarity + 1) / 2
	}
	return clamp01(s)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
