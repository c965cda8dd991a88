package chromem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regaudit/internal/domain"
	"regaudit/internal/vectorstore"
	"regaudit/internal/vectorstore/memory"
)

func clause(id string, vec ...float64) domain.RequirementClause {
	return domain.RequirementClause{ID: id, SourceStandard: domain.StandardISO, Text: "control " + id, Vector: vec, Version: 1}
}

func seed() []domain.RequirementClause {
	return []domain.RequirementClause{
		clause("ISO-1", 1, 0, 0),
		clause("ISO-2", 0.9, 0.1, 0),
		clause("ISO-3", 0, 1, 0),
		clause("ISO-4", 0, 0, 1),
	}
}

func TestStorage_MatchesBruteForce(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, "", vectorstore.Cosine)
	require.NoError(t, err)
	exact := memory.NewStorage(vectorstore.Cosine)

	batch := vectorstore.Batch{Upserts: seed()}
	require.NoError(t, s.Apply(ctx, batch))
	require.NoError(t, exact.Apply(ctx, batch))

	for _, q := range [][]float64{{1, 0.05, 0}, {0, 0.2, 1}, {0.3, 0.7, 0}} {
		got, err := s.Query(ctx, q, 2, "")
		require.NoError(t, err)
		want, err := exact.Query(ctx, q, 2, "")
		require.NoError(t, err)
		require.Len(t, got, len(want))
		assert.Equal(t, want[0].ID, got[0].ID, "top-1 must agree with brute force")
		for i := range want {
			assert.InDelta(t, want[i].Distance, got[i].Distance, 1e-5)
		}
	}
}

func TestStorage_RejectsOtherMetrics(t *testing.T) {
	_, err := Open(context.Background(), "", vectorstore.Euclidean)
	require.ErrorIs(t, err, domain.ErrMetricMismatch)

	s, err := Open(context.Background(), "", "")
	require.NoError(t, err)
	_, err = s.Query(context.Background(), []float64{1}, 1, vectorstore.Dot)
	require.ErrorIs(t, err, domain.ErrMetricMismatch)
}

func TestStorage_UpsertDeleteAndDimension(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, "", vectorstore.Cosine)
	require.NoError(t, err)
	require.NoError(t, s.Apply(ctx, vectorstore.Batch{Upserts: seed()}))

	require.ErrorIs(t, s.Upsert(ctx, clause("ISO-5", 1, 0)), domain.ErrDimensionMismatch)
	assert.Equal(t, 4, s.Len())

	require.NoError(t, s.Delete(ctx, "ISO-1"))
	require.NoError(t, s.Delete(ctx, "ISO-1"))
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, 3, s.collection.Count())

	hits, err := s.Query(ctx, []float64{1, 0, 0}, 1, "")
	require.NoError(t, err)
	assert.Equal(t, "ISO-2", hits[0].ID)

	require.NoError(t, s.Reset(ctx))
	assert.Equal(t, 0, s.Dimension())
	assert.Equal(t, 0, s.collection.Count())
}

func TestStorage_PersistentReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := Open(ctx, dir, vectorstore.Cosine)
	require.NoError(t, err)
	require.NoError(t, s.Apply(ctx, vectorstore.Batch{Upserts: seed()}))
	require.NoError(t, s.Close())

	reopened, err := Open(ctx, dir, vectorstore.Cosine)
	require.NoError(t, err)
	assert.Equal(t, 4, reopened.Len())
	assert.Equal(t, 3, reopened.Dimension())

	got, ok, err := reopened.Get(ctx, "ISO-3")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "control ISO-3", got.Text)
	assert.Equal(t, domain.StandardISO, got.SourceStandard)
	assert.Equal(t, 1, got.Version)
}

func TestStorage_RejectsZeroVector(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, "", vectorstore.Cosine)
	require.NoError(t, err)
	require.NoError(t, s.Apply(ctx, vectorstore.Batch{Upserts: seed()[:1]}))

	err = s.Upsert(ctx, clause("ISO-Z", 0, 0, 0))
	require.ErrorIs(t, err, domain.ErrInvalidCorpus)
	assert.Equal(t, 1, s.Len())

	hits, err := s.Query(ctx, []float64{1, 0, 0}, 5, "")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "ISO-1", hits[0].ID)
}
