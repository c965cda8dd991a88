// Package vectorstore defines the requirement-clause index contract and the
// helpers its backends share.
package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"

	"regaudit/internal/domain"
)

// Metric names the distance function an index is built with.
type Metric string

const (
	Cosine    Metric = "cosine"
	Dot       Metric = "dot"
	Euclidean Metric = "euclidean"
)

// ParseMetric maps a configuration value onto a Metric. Empty means Cosine.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case "", Cosine:
		return Cosine, nil
	case Dot, Euclidean:
		return Metric(s), nil
	default:
		return "", fmt.Errorf("%w: unknown metric %q", domain.ErrInvalidConfig, s)
	}
}

// Distance returns the distance between a and b; smaller is closer.
// Cosine distance is 1-cos and treats zero vectors as orthogonal.
func (m Metric) Distance(a, b []float64) float64 {
	switch m {
	case Dot:
		return -dot(a, b)
	case Euclidean:
		sum := 0.0
		for i := range a {
			d := a[i] - b[i]
			sum += d * d
		}
		return math.Sqrt(sum)
	default:
		return CosineDistance(a, b, Norm(a), Norm(b))
	}
}

// Similarity converts a distance back to the metric's raw similarity:
// cos in [-1,1] for Cosine, the dot product for Dot and 1/(1+d) in (0,1]
// for Euclidean.
func (m Metric) Similarity(distance float64) float64 {
	switch m {
	case Dot:
		return -distance
	case Euclidean:
		return 1 / (1 + distance)
	default:
		return 1 - distance
	}
}

// CosineDistance computes 1-cos from precomputed norms.
func CosineDistance(a, b []float64, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 1
	}
	cos := dot(a, b) / (na * nb)
	// rounding can push |cos| slightly past 1
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return 1 - cos
}

func Norm(v []float64) float64 { return math.Sqrt(dot(v, v)) }

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Hit is one query result.
type Hit struct {
	ID       string
	Distance float64
}

// Batch is a set of changes applied atomically by Index.Apply.
type Batch struct {
	Upserts []domain.RequirementClause
	Deletes []string
}

func (b Batch) Empty() bool { return len(b.Upserts) == 0 && len(b.Deletes) == 0 }

// Index stores requirement clauses and answers exact nearest-neighbour queries.
// Implementations allow concurrent queries and serialize writes against them.
type Index interface {
	// Upsert inserts or replaces a clause by ID.
	Upsert(ctx context.Context, clause domain.RequirementClause) error
	// Delete removes a clause; deleting an absent ID is not an error.
	Delete(ctx context.Context, id string) error
	// Apply validates the whole batch and then commits all of it or nothing.
	Apply(ctx context.Context, batch Batch) error
	// Query returns up to k hits by ascending distance, ties by ascending ID.
	// An empty metric means the index metric.
	Query(ctx context.Context, vector []float64, k int, metric Metric) ([]Hit, error)
	Get(ctx context.Context, id string) (domain.RequirementClause, bool, error)
	// List returns every clause ordered by ID.
	List(ctx context.Context) ([]domain.RequirementClause, error)
	// Dimension is 0 until the first insert and survives deletes until Reset.
	Dimension() int
	Metric() Metric
	Len() int
	Reset(ctx context.Context) error
	Close() error
}

// ValidateBatch checks a batch against the current dimension (0 when unset)
// and returns the dimension the index will have after applying it. Vectors
// must be finite, and non-zero under Cosine.
func ValidateBatch(metric Metric, dimension int, b Batch) (int, error) {
	seen := make(map[string]struct{}, len(b.Upserts))
	for _, c := range b.Upserts {
		if c.ID == "" {
			return 0, fmt.Errorf("%w: clause with empty id", domain.ErrInvalidCorpus)
		}
		if _, dup := seen[c.ID]; dup {
			return 0, fmt.Errorf("%w: clause %s upserted twice in one batch", domain.ErrInvalidCorpus, c.ID)
		}
		seen[c.ID] = struct{}{}
		if len(c.Vector) == 0 {
			return 0, fmt.Errorf("%w: clause %s has no vector", domain.ErrDimensionMismatch, c.ID)
		}
		if dimension == 0 {
			dimension = len(c.Vector)
		} else if len(c.Vector) != dimension {
			return 0, domain.DimensionError("clause "+c.ID, dimension, len(c.Vector))
		}
		if err := checkVector(metric, c.Vector); err != nil {
			return 0, fmt.Errorf("%w: clause %s %v", domain.ErrInvalidCorpus, c.ID, err)
		}
	}
	return dimension, nil
}

func checkVector(metric Metric, v []float64) error {
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("has non-finite component %d", i)
		}
	}
	if metric == Cosine && Norm(v) == 0 {
		return fmt.Errorf("has a zero vector")
	}
	return nil
}

// CheckQuery validates a query against an index's metric and dimension.
func CheckQuery(indexMetric Metric, dimension int, vector []float64, metric Metric) error {
	if metric != "" && metric != indexMetric {
		return fmt.Errorf("%w: index uses %s, query asked for %s", domain.ErrMetricMismatch, indexMetric, metric)
	}
	if dimension > 0 && len(vector) != dimension {
		return domain.DimensionError("query vector", dimension, len(vector))
	}
	return nil
}

// Rank sorts hits by ascending distance, ties by ascending ID, and keeps k.
func Rank(hits []Hit, k int) []Hit {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].ID < hits[j].ID
	})
	if k >= 0 && k < len(hits) {
		hits = hits[:k]
	}
	return hits
}

// CloneClause deep-copies the vector so callers cannot mutate index state.
func CloneClause(c domain.RequirementClause) domain.RequirementClause {
	c.Vector = append([]float64(nil), c.Vector...)
	return c
}
