package vectorstore

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regaudit/internal/domain"
)

func batchOf(vecs ...[]float64) Batch {
	var b Batch
	for i, v := range vecs {
		b.Upserts = append(b.Upserts, domain.RequirementClause{ID: string(rune('A' + i)), Text: "t", Vector: v})
	}
	return b
}

func TestValidateBatch(t *testing.T) {
	tests := []struct {
		name   string
		metric Metric
		dim    int
		batch  Batch
		want   int
		err    error
	}{
		{"sets dimension", Cosine, 0, batchOf([]float64{1, 0}), 2, nil},
		{"keeps dimension", Cosine, 2, batchOf([]float64{0, 1}), 2, nil},
		{"dimension drift", Cosine, 2, batchOf([]float64{1, 0, 0}), 0, domain.ErrDimensionMismatch},
		{"empty vector", Cosine, 0, batchOf([]float64{}), 0, domain.ErrDimensionMismatch},
		{"zero vector under cosine", Cosine, 0, batchOf([]float64{0, 0}), 0, domain.ErrInvalidCorpus},
		{"zero vector under euclidean", Euclidean, 0, batchOf([]float64{0, 0}), 2, nil},
		{"nan component", Dot, 0, batchOf([]float64{math.NaN(), 1}), 0, domain.ErrInvalidCorpus},
		{"inf component", Euclidean, 0, batchOf([]float64{math.Inf(-1), 1}), 0, domain.ErrInvalidCorpus},
		{"later clause bad", Cosine, 0, batchOf([]float64{1, 0}, []float64{0, 0}), 0, domain.ErrInvalidCorpus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateBatch(tt.metric, tt.dim, tt.batch)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRank_TiesByID(t *testing.T) {
	hits := Rank([]Hit{{ID: "b", Distance: 0.2}, {ID: "a", Distance: 0.2}, {ID: "c", Distance: 0.1}}, 2)
	assert.Equal(t, []Hit{{ID: "c", Distance: 0.1}, {ID: "a", Distance: 0.2}}, hits)
}
