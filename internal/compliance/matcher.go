package compliance

import (
	"context"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"regaudit/internal/domain"
	"regaudit/internal/vectorstore"
)

// MatchOptions tunes retrieval. K and MinScore have no built-in defaults.
type MatchOptions struct {
	K        int
	MinScore float64
	// Metric is the metric queries name; empty means the index metric.
	Metric     vectorstore.Metric
	Normalizer Normalizer
	Workers    int
}

// Match queries idx with every segment and keeps the candidates scoring at
// least MinScore. Segments are queried concurrently. The result is ordered
// by segment ID, then descending score, then requirement ID.
func Match(ctx context.Context, segments []domain.DocumentSegment, idx vectorstore.Index, opts MatchOptions) ([]domain.Match, error) {
	if err := domain.ContextErr(ctx); err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return []domain.Match{}, nil
	}
	if err := checkSegments(segments, idx.Dimension()); err != nil {
		return nil, err
	}
	metric := opts.Metric
	if metric == "" {
		metric = idx.Metric()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}

	perSegment := make([][]domain.Match, len(segments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, seg := range segments {
		g.Go(func() error {
			hits, err := idx.Query(gctx, seg.Vector, opts.K, metric)
			if err != nil {
				return fmt.Errorf("query segment %d: %w", seg.ID, err)
			}
			for _, h := range hits {
				score := opts.Normalizer.Score(metric, metric.Similarity(h.Distance))
				if math.IsNaN(score) || score < opts.MinScore {
					continue
				}
				perSegment[i] = append(perSegment[i], domain.Match{SegmentID: seg.ID, RequirementID: h.ID, Score: score})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if cerr := domain.ContextErr(ctx); cerr != nil {
			return nil, cerr
		}
		return nil, err
	}

	matches := []domain.Match{}
	for _, ms := range perSegment {
		matches = append(matches, ms...)
	}
	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.SegmentID != b.SegmentID {
			return a.SegmentID < b.SegmentID
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.RequirementID < b.RequirementID
	})
	return matches, nil
}

// checkSegments requires every vector to have the index dimension, or the
// same length as the first segment while the index is empty.
func checkSegments(segments []domain.DocumentSegment, dim int) error {
	for _, s := range segments {
		if dim == 0 {
			dim = len(s.Vector)
		}
		if len(s.Vector) == 0 || len(s.Vector) != dim {
			return domain.DimensionError(fmt.Sprintf("segment %d", s.ID), dim, len(s.Vector))
		}
	}
	return nil
}
