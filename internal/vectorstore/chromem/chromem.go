// Package chromem adapts a chromem-go collection to the requirement index.
// chromem-go searches exhaustively with cosine similarity, so it is exact but
// supports only the cosine metric.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"regaudit/internal/domain"
	"regaudit/internal/vectorstore"
	"regaudit/internal/vectorstore/memory"
)

const (
	collectionName = "requirements"
	metaCollection = "regaudit_meta"
	dimensionDocID = "dimension"
)

var errNoEmbedding = errors.New("chromem index stores precomputed embeddings only")

// Storage keeps clauses in chromem-go and mirrors their metadata in memory
// for Get/List. chromem normalizes vectors on insert, so clauses read back
// after a reopen carry unit-length vectors.
type Storage struct {
	writeMu    sync.Mutex
	db         *chromem.DB
	collection *chromem.Collection
	meta       *chromem.Collection
	mirror     *memory.Storage
}

// Open creates an in-memory collection when dir is empty, otherwise a
// persistent one rooted at dir.
func Open(ctx context.Context, dir string, metric vectorstore.Metric) (*Storage, error) {
	if metric != "" && metric != vectorstore.Cosine {
		return nil, fmt.Errorf("%w: chromem supports only %s, configured %s", domain.ErrMetricMismatch, vectorstore.Cosine, metric)
	}
	var (
		db  *chromem.DB
		err error
	)
	if dir == "" {
		db = chromem.NewDB()
	} else if db, err = chromem.NewPersistentDB(dir, true); err != nil {
		return nil, fmt.Errorf("open chromem db: %w", err)
	}
	s := &Storage{db: db, mirror: memory.NewStorage(vectorstore.Cosine)}
	if err := s.openCollections(); err != nil {
		return nil, err
	}
	if err := s.hydrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Storage) openCollections() error {
	col, err := s.db.GetOrCreateCollection(collectionName, nil, noEmbedding)
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	meta, err := s.db.GetOrCreateCollection(metaCollection, nil, noEmbedding)
	if err != nil {
		return fmt.Errorf("create meta collection: %w", err)
	}
	s.collection, s.meta = col, meta
	return nil
}

func noEmbedding(context.Context, string) ([]float32, error) { return nil, errNoEmbedding }

// hydrate rebuilds the mirror from a persisted collection.
func (s *Storage) hydrate(ctx context.Context) error {
	if s.meta.Count() == 0 {
		return nil
	}
	res, err := s.meta.QueryEmbedding(ctx, []float32{1}, 1, nil, nil)
	if err != nil {
		return fmt.Errorf("read index dimension: %w", err)
	}
	if len(res) == 0 {
		return nil
	}
	dim, err := strconv.Atoi(res[0].Metadata["dimension"])
	if err != nil {
		return fmt.Errorf("corrupt index dimension: %w", err)
	}
	count := s.collection.Count()
	if count == 0 || dim == 0 {
		s.mirror.Restore(dim, nil)
		return nil
	}
	probe := make([]float32, dim)
	probe[0] = 1
	results, err := s.collection.QueryEmbedding(ctx, probe, count, nil, nil)
	if err != nil {
		return fmt.Errorf("chromem hydrate: %w", err)
	}
	clauses := make([]domain.RequirementClause, 0, len(results))
	for _, r := range results {
		version, _ := strconv.Atoi(r.Metadata["version"])
		clauses = append(clauses, domain.RequirementClause{
			ID:             r.ID,
			SourceStandard: domain.Standard(r.Metadata["source_standard"]),
			Text:           r.Content,
			Version:        version,
			Vector:         toFloat64(r.Embedding),
		})
	}
	s.mirror.Restore(dim, clauses)
	return nil
}

func (s *Storage) Upsert(ctx context.Context, clause domain.RequirementClause) error {
	return s.Apply(ctx, vectorstore.Batch{Upserts: []domain.RequirementClause{clause}})
}

func (s *Storage) Delete(ctx context.Context, id string) error {
	return s.Apply(ctx, vectorstore.Batch{Deletes: []string{id}})
}

// Apply validates the batch against the mirror, then writes it to chromem
// without honouring cancellation so that a started batch always completes.
// On a storage failure the previous versions of touched clauses are put back.
func (s *Storage) Apply(ctx context.Context, batch vectorstore.Batch) error {
	if err := domain.ContextErr(ctx); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	dim, err := s.mirror.Validate(batch)
	if err != nil {
		return err
	}
	if batch.Empty() {
		return nil
	}
	wctx := context.WithoutCancel(ctx)
	if err := s.write(wctx, dim, batch); err != nil {
		s.rollback(wctx, batch)
		return err
	}
	return s.mirror.Commit(batch)
}

func (s *Storage) write(ctx context.Context, dim int, batch vectorstore.Batch) error {
	if dim != s.mirror.Dimension() {
		if err := s.recordDimension(ctx, dim); err != nil {
			return err
		}
	}
	for _, id := range batch.Deletes {
		if _, ok, _ := s.mirror.Get(ctx, id); !ok {
			continue
		}
		if err := s.collection.Delete(ctx, nil, nil, id); err != nil {
			return fmt.Errorf("chromem delete %s: %w", id, err)
		}
	}
	for _, c := range batch.Upserts {
		if err := s.collection.AddDocument(ctx, toDocument(c)); err != nil {
			return fmt.Errorf("chromem upsert %s: %w", c.ID, err)
		}
	}
	return nil
}

func (s *Storage) rollback(ctx context.Context, batch vectorstore.Batch) {
	restore := func(id string) {
		if prev, ok, _ := s.mirror.Get(ctx, id); ok {
			_ = s.collection.AddDocument(ctx, toDocument(prev))
			return
		}
		_ = s.collection.Delete(ctx, nil, nil, id)
	}
	for _, id := range batch.Deletes {
		restore(id)
	}
	for _, c := range batch.Upserts {
		restore(c.ID)
	}
	_ = s.recordDimension(ctx, s.mirror.Dimension())
}

func (s *Storage) recordDimension(ctx context.Context, dim int) error {
	err := s.meta.AddDocument(ctx, chromem.Document{
		ID:        dimensionDocID,
		Metadata:  map[string]string{"dimension": strconv.Itoa(dim)},
		Embedding: []float32{1},
	})
	if err != nil {
		return fmt.Errorf("record index dimension: %w", err)
	}
	return nil
}

func (s *Storage) Query(ctx context.Context, vector []float64, k int, metric vectorstore.Metric) ([]vectorstore.Hit, error) {
	if err := domain.ContextErr(ctx); err != nil {
		return nil, err
	}
	if err := vectorstore.CheckQuery(vectorstore.Cosine, s.mirror.Dimension(), vector, metric); err != nil {
		return nil, err
	}
	count := s.collection.Count()
	if k <= 0 || count == 0 {
		return nil, nil
	}
	if vectorstore.Norm(vector) == 0 {
		// chromem cannot normalize a zero query; it is orthogonal to everything
		all, err := s.mirror.List(ctx)
		if err != nil {
			return nil, err
		}
		hits := make([]vectorstore.Hit, len(all))
		for i, c := range all {
			hits[i] = vectorstore.Hit{ID: c.ID, Distance: 1}
		}
		return vectorstore.Rank(hits, k), nil
	}
	if k > count {
		k = count
	}
	results, err := s.collection.QueryEmbedding(ctx, toFloat32(vector), k, nil, nil)
	if err != nil {
		if cerr := domain.ContextErr(ctx); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("chromem query: %w", err)
	}
	hits := make([]vectorstore.Hit, len(results))
	for i, r := range results {
		hits[i] = vectorstore.Hit{ID: r.ID, Distance: 1 - float64(r.Similarity)}
	}
	return vectorstore.Rank(hits, k), nil
}

func (s *Storage) Get(ctx context.Context, id string) (domain.RequirementClause, bool, error) {
	return s.mirror.Get(ctx, id)
}

func (s *Storage) List(ctx context.Context) ([]domain.RequirementClause, error) {
	return s.mirror.List(ctx)
}

func (s *Storage) Dimension() int             { return s.mirror.Dimension() }
func (s *Storage) Metric() vectorstore.Metric { return vectorstore.Cosine }
func (s *Storage) Len() int                   { return s.mirror.Len() }

func (s *Storage) Reset(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	for _, name := range []string{collectionName, metaCollection} {
		if err := s.db.DeleteCollection(name); err != nil {
			return fmt.Errorf("drop collection %s: %w", name, err)
		}
	}
	if err := s.openCollections(); err != nil {
		return err
	}
	return s.mirror.Reset(ctx)
}

func (s *Storage) Close() error { return nil }

func toDocument(c domain.RequirementClause) chromem.Document {
	return chromem.Document{
		ID: c.ID,
		Metadata: map[string]string{
			"source_standard": string(c.SourceStandard),
			"version":         strconv.Itoa(c.Version),
		},
		Embedding: toFloat32(c.Vector),
		Content:   c.Text,
	}
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}

var _ vectorstore.Index = (*Storage)(nil)
