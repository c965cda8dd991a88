package compliance

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"regaudit/internal/domain"
	"regaudit/internal/vectorstore"
	"regaudit/internal/vectorstore/memory"
)

// exampleIndex holds R1 and R2 on orthogonal axes so that a segment's
// cosine with each clause is simply its first or second coordinate.
func exampleIndex(t *testing.T) *memory.Storage {
	t.Helper()
	idx := memory.NewStorage(vectorstore.Cosine)
	require.NoError(t, idx.Apply(context.Background(), vectorstore.Batch{Upserts: []domain.RequirementClause{
		{ID: "R1", SourceStandard: domain.StandardGDPR, Text: "Provide a data protection impact assessment", Vector: []float64{1, 0, 0}, Version: 1},
		{ID: "R2", SourceStandard: domain.StandardAIAct, Text: "Log all automated decisions", Vector: []float64{0, 1, 0}, Version: 1},
	}}))
	return idx
}

// unit returns a unit vector whose cosines with the x and y axes are x and y.
func unit(x, y float64) []float64 {
	return []float64{x, y, math.Sqrt(1 - x*x - y*y)}
}

func exampleSegments() []domain.DocumentSegment {
	return []domain.DocumentSegment{
		{ID: 0, Position: 0, Text: "We perform a DPIA before deployment", Vector: unit(0.9, 0.1)},
		{ID: 1, Position: 1, Text: "No logging is implemented", Vector: unit(0.1, 0.1)},
	}
}

func exampleConfig() Config {
	return Config{
		K:                  2,
		MinScore:           0.2,
		PartialThreshold:   0.4,
		SatisfiedThreshold: 0.7,
		EvidenceLimit:      3,
		Normalization:      NormalizeClamp,
		Workers:            2,
	}
}
