package hashing

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regaudit/internal/domain"
)

func cos(a, b []float64) float64 {
	var d, na, nb float64
	for i := range a {
		d += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return d / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestEmbedder_DeterministicAndNormalized(t *testing.T) {
	ctx := context.Background()
	e := NewEmbedder(128)
	a, err := e.Embed(ctx, "Log all automated decisions")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "Log all automated decisions")
	require.NoError(t, err)

	assert.Len(t, a, 128)
	assert.Equal(t, a, b)
	norm := 0.0
	for _, v := range a {
		norm += v * v
	}
	assert.InDelta(t, 1, norm, 1e-9)
}

func TestEmbedder_SimilarTextsScoreHigher(t *testing.T) {
	ctx := context.Background()
	e := NewEmbedder(0)
	req, _ := e.Embed(ctx, "Provide a data protection impact assessment before processing personal data")
	near, _ := e.Embed(ctx, "We run a data protection impact assessment for personal data processing")
	far, _ := e.Embed(ctx, "The cafeteria opens at noon on weekdays")

	assert.Greater(t, cos(req, near), cos(req, far))
}

func TestEmbedder_EmptyTextAndCancellation(t *testing.T) {
	e := NewEmbedder(16)
	v, err := e.Embed(context.Background(), "the and of")
	require.NoError(t, err)
	assert.Equal(t, make([]float64, 16), v)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Embed(ctx, "text")
	assert.ErrorIs(t, err, domain.ErrCancelled)
}
