package memory

import (
	"context"
	"sort"
	"sync"

	"regaudit/internal/domain"
	"regaudit/internal/vectorstore"
)

// scanCheckEvery is how many entries a query scans between cancellation checks.
const scanCheckEvery = 256

// Storage is an in-memory index using exact brute-force search.
type Storage struct {
	mu        sync.RWMutex
	metric    vectorstore.Metric
	dimension int
	entries   map[string]entry
}

type entry struct {
	clause domain.RequirementClause
	norm   float64
}

// NewStorage creates an empty index fixed to the given metric.
func NewStorage(metric vectorstore.Metric) *Storage {
	if metric == "" {
		metric = vectorstore.Cosine
	}
	return &Storage{metric: metric, entries: make(map[string]entry)}
}

func (s *Storage) Upsert(ctx context.Context, clause domain.RequirementClause) error {
	return s.Apply(ctx, vectorstore.Batch{Upserts: []domain.RequirementClause{clause}})
}

func (s *Storage) Delete(ctx context.Context, id string) error {
	return s.Apply(ctx, vectorstore.Batch{Deletes: []string{id}})
}

func (s *Storage) Apply(ctx context.Context, batch vectorstore.Batch) error {
	if err := domain.ContextErr(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dim, err := vectorstore.ValidateBatch(s.metric, s.dimension, batch)
	if err != nil {
		return err
	}
	s.applyLocked(dim, batch)
	return nil
}

// applyLocked commits a batch already validated against dim. Callers hold mu.
func (s *Storage) applyLocked(dim int, batch vectorstore.Batch) {
	s.dimension = dim
	for _, id := range batch.Deletes {
		delete(s.entries, id)
	}
	for _, c := range batch.Upserts {
		c = vectorstore.CloneClause(c)
		s.entries[c.ID] = entry{clause: c, norm: vectorstore.Norm(c.Vector)}
	}
}

// Query scans every entry; the index is small enough that exact search
// beats maintaining an approximate structure.
func (s *Storage) Query(ctx context.Context, vector []float64, k int, metric vectorstore.Metric) ([]vectorstore.Hit, error) {
	if err := domain.ContextErr(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := vectorstore.CheckQuery(s.metric, s.dimension, vector, metric); err != nil {
		return nil, err
	}
	if k <= 0 || len(s.entries) == 0 {
		return nil, nil
	}
	qnorm := vectorstore.Norm(vector)
	hits := make([]vectorstore.Hit, 0, len(s.entries))
	n := 0
	for id, e := range s.entries {
		n++
		if n%scanCheckEvery == 0 {
			if err := domain.ContextErr(ctx); err != nil {
				return nil, err
			}
		}
		var d float64
		if s.metric == vectorstore.Cosine {
			d = vectorstore.CosineDistance(e.clause.Vector, vector, e.norm, qnorm)
		} else {
			d = s.metric.Distance(e.clause.Vector, vector)
		}
		hits = append(hits, vectorstore.Hit{ID: id, Distance: d})
	}
	return vectorstore.Rank(hits, k), nil
}

func (s *Storage) Get(_ context.Context, id string) (domain.RequirementClause, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return domain.RequirementClause{}, false, nil
	}
	return vectorstore.CloneClause(e.clause), true, nil
}

func (s *Storage) List(_ context.Context) ([]domain.RequirementClause, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.RequirementClause, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, vectorstore.CloneClause(e.clause))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Storage) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

func (s *Storage) Metric() vectorstore.Metric { return s.metric }

func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Reset drops every entry and forgets the dimension.
func (s *Storage) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = 0
	s.entries = make(map[string]entry)
	return nil
}

func (s *Storage) Close() error { return nil }

// Restore replaces the contents with clauses loaded from a persistent
// backend, without re-validating against the current dimension.
func (s *Storage) Restore(dimension int, clauses []domain.RequirementClause) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]entry, len(clauses))
	s.applyLocked(dimension, vectorstore.Batch{Upserts: clauses})
}

// Validate checks a batch against the current state without applying it.
func (s *Storage) Validate(batch vectorstore.Batch) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return vectorstore.ValidateBatch(s.metric, s.dimension, batch)
}

// Commit applies a batch that the caller validated and persisted elsewhere.
// It revalidates so a concurrent writer cannot slip in a conflicting dimension.
func (s *Storage) Commit(batch vectorstore.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dim, err := vectorstore.ValidateBatch(s.metric, s.dimension, batch)
	if err != nil {
		return err
	}
	s.applyLocked(dim, batch)
	return nil
}

var _ vectorstore.Index = (*Storage)(nil)
