package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regaudit/internal/domain"
	"regaudit/internal/vectorstore"
)

func clause(id string, version int, vec ...float64) domain.RequirementClause {
	return domain.RequirementClause{ID: id, SourceStandard: domain.StandardAIAct, Text: "clause " + id, Vector: vec, Version: version}
}

func TestStorage_PersistAndReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	s, err := Open(ctx, path, vectorstore.Cosine)
	require.NoError(t, err)
	require.NoError(t, s.Apply(ctx, vectorstore.Batch{Upserts: []domain.RequirementClause{
		clause("R1", 1, 1, 0, 0),
		clause("R2", 1, 0, 1, 0),
		clause("R3", 1, 0, 0, 1),
	}}))
	require.NoError(t, s.Upsert(ctx, clause("R2", 2, 0, 0.5, 0.5)))
	require.NoError(t, s.Delete(ctx, "R3"))
	require.NoError(t, s.Close())

	reopened, err := Open(ctx, path, vectorstore.Cosine)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, 2, reopened.Len())
	assert.Equal(t, 3, reopened.Dimension())
	r2, ok, err := reopened.Get(ctx, "R2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, r2.Version)
	assert.Equal(t, []float64{0, 0.5, 0.5}, r2.Vector)
	assert.Equal(t, domain.StandardAIAct, r2.SourceStandard)

	hits, err := reopened.Query(ctx, []float64{1, 0, 0}, 1, "")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "R1", hits[0].ID)
}

func TestStorage_MetricIsFixedPerIndex(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")
	s, err := Open(ctx, path, vectorstore.Euclidean)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(ctx, path, vectorstore.Cosine)
	require.ErrorIs(t, err, domain.ErrMetricMismatch)
}

func TestStorage_DimensionGuardLeavesDiskUntouched(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")
	s, err := Open(ctx, path, vectorstore.Cosine)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, clause("R1", 1, 1, 0)))

	err = s.Apply(ctx, vectorstore.Batch{
		Upserts: []domain.RequirementClause{clause("R2", 1, 1, 1), clause("R3", 1, 1, 1, 1)},
		Deletes: []string{"R1"},
	})
	require.ErrorIs(t, err, domain.ErrDimensionMismatch)
	require.NoError(t, s.Close())

	reopened, err := Open(ctx, path, vectorstore.Cosine)
	require.NoError(t, err)
	defer reopened.Close()
	all, err := reopened.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "R1", all[0].ID)
}

func TestStorage_ResetForgetsDimension(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")
	s, err := Open(ctx, path, vectorstore.Cosine)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, clause("R1", 1, 1, 0)))
	require.NoError(t, s.Delete(ctx, "R1"))
	assert.Equal(t, 2, s.Dimension())

	require.NoError(t, s.Reset(ctx))
	require.NoError(t, s.Close())

	reopened, err := Open(ctx, path, vectorstore.Cosine)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, 0, reopened.Dimension())
	require.NoError(t, reopened.Upsert(ctx, clause("R9", 1, 1, 2, 3, 4)))
	assert.Equal(t, 4, reopened.Dimension())
}

func TestVectorCodecRoundTrip(t *testing.T) {
	in := []float64{0, -1.5, 3.25, 1e-300}
	out, err := decodeVector(encodeVector(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
