// Package hashing implements an offline embedder that hashes tokens into a
// fixed number of buckets. It needs no corpus preparation, so corpus and
// documents embedded at different times share the same vector space.
package hashing

import (
	"context"
	"hash/fnv"
	"math"

	"regaudit/internal/domain"
	"regaudit/internal/textutil"
)

const DefaultDimension = 512

// Embedder produces L2-normalized sublinear term-frequency vectors over
// hashed unigrams and bigrams.
type Embedder struct {
	dimension int
}

// NewEmbedder creates a hashing embedder; dimension <= 0 uses DefaultDimension.
func NewEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{dimension: dimension}
}

func (e *Embedder) Name() string   { return "hashing" }
func (e *Embedder) Dimension() int { return e.dimension }

// Embed is deterministic. Text without tokens yields the zero vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := domain.ContextErr(ctx); err != nil {
		return nil, err
	}
	vec := make([]float64, e.dimension)
	tokens := textutil.Tokens(text)
	if len(tokens) == 0 {
		return vec, nil
	}
	tf := make(map[int]float64)
	for i, tok := range tokens {
		idx, sign := e.bucket(tok)
		tf[idx] += sign
		if i > 0 {
			// bigrams carry half weight so word order matters a little
			idx, sign = e.bucket(tokens[i-1] + " " + tok)
			tf[idx] += 0.5 * sign
		}
	}
	for idx, count := range tf {
		if count == 0 {
			continue
		}
		// Sublinear TF
		vec[idx] = math.Copysign(1+math.Log(math.Abs(count)+1), count)
	}
	// L2 normalize
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

// bucket returns the bucket of a feature and a ±1 sign that keeps hash
// collisions from always adding up.
func (e *Embedder) bucket(feature string) (int, float64) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()
	sign := 1.0
	if sum>>63 == 1 {
		sign = -1
	}
	return int(sum % uint64(e.dimension)), sign
}
