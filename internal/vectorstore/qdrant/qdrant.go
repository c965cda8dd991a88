package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"regaudit/internal/domain"
	"regaudit/internal/vectorstore"
	"regaudit/internal/vectorstore/memory"
)

// pointNamespace derives stable point UUIDs from clause IDs, since Qdrant
// accepts only integers and UUIDs as point IDs.
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("regaudit/requirement-clause"))

const scrollPage = 256

// Storage is a minimal REST client to a Qdrant collection. Clause metadata
// is mirrored in memory so Get and List do not round-trip.
type Storage struct {
	url        string
	apiKey     string
	collection string
	metric     vectorstore.Metric
	client     *http.Client

	writeMu sync.Mutex
	mirror  *memory.Storage
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Metric     vectorstore.Metric
	Timeout    time.Duration
}

// Open connects to the collection and loads its points, if it exists.
// A collection created with another distance fails with ErrMetricMismatch.
func Open(ctx context.Context, cfg Config) (*Storage, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	metric := cfg.Metric
	if metric == "" {
		metric = vectorstore.Cosine
	}
	s := &Storage{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		metric:     metric,
		client:     &http.Client{Timeout: timeout},
		mirror:     memory.NewStorage(metric),
	}
	if err := s.hydrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func distanceName(m vectorstore.Metric) string {
	switch m {
	case vectorstore.Dot:
		return "Dot"
	case vectorstore.Euclidean:
		return "Euclid"
	default:
		return "Cosine"
	}
}

type collectionInfo struct {
	Result struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	} `json:"result"`
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float64      `json:"vector,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

func (s *Storage) hydrate(ctx context.Context) error {
	var info collectionInfo
	found, err := s.do(ctx, http.MethodGet, s.collectionURL(), nil, &info)
	if err != nil || !found {
		return err
	}
	vec := info.Result.Config.Params.Vectors
	if vec.Distance != distanceName(s.metric) {
		return fmt.Errorf("%w: collection %s uses %s, configured %s", domain.ErrMetricMismatch, s.collection, vec.Distance, s.metric)
	}
	var clauses []domain.RequirementClause
	var offset any
	for {
		req := map[string]any{"limit": scrollPage, "with_payload": true, "with_vector": true}
		if offset != nil {
			req["offset"] = offset
		}
		var resp struct {
			Result struct {
				Points         []point `json:"points"`
				NextPageOffset any     `json:"next_page_offset"`
			} `json:"result"`
		}
		if _, err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/scroll", req, &resp); err != nil {
			return err
		}
		for _, p := range resp.Result.Points {
			clauses = append(clauses, fromPayload(p))
		}
		if resp.Result.NextPageOffset == nil {
			break
		}
		offset = resp.Result.NextPageOffset
	}
	s.mirror.Restore(vec.Size, clauses)
	return nil
}

func (s *Storage) Upsert(ctx context.Context, clause domain.RequirementClause) error {
	return s.Apply(ctx, vectorstore.Batch{Upserts: []domain.RequirementClause{clause}})
}

func (s *Storage) Delete(ctx context.Context, id string) error {
	return s.Apply(ctx, vectorstore.Batch{Deletes: []string{id}})
}

// Apply sends deletes then upserts. Qdrant has no multi-request transaction,
// so a failed upsert puts back the points the batch had deleted or replaced.
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
	if dim == 0 {
		// nothing was ever stored, so there is nothing to delete
		return s.mirror.Commit(batch)
	}
	wctx := context.WithoutCancel(ctx)
	if s.mirror.Dimension() == 0 {
		if err := s.createCollection(wctx, dim); err != nil {
			return err
		}
	}
	if len(batch.Deletes) > 0 {
		ids := make([]string, len(batch.Deletes))
		for i, id := range batch.Deletes {
			ids[i] = pointID(id)
		}
		body := map[string]any{"points": ids}
		if _, err := s.do(wctx, http.MethodPost, s.collectionURL()+"/points/delete?wait=true", body, nil); err != nil {
			return err
		}
	}
	if len(batch.Upserts) > 0 {
		if err := s.putPoints(wctx, batch.Upserts); err != nil {
			s.rollback(wctx, batch)
			return err
		}
	}
	return s.mirror.Commit(batch)
}

func (s *Storage) rollback(ctx context.Context, batch vectorstore.Batch) {
	var prev []domain.RequirementClause
	for _, id := range batch.Deletes {
		if c, ok, _ := s.mirror.Get(ctx, id); ok {
			prev = append(prev, c)
		}
	}
	if len(prev) > 0 {
		_ = s.putPoints(ctx, prev)
	}
}

func (s *Storage) createCollection(ctx context.Context, dim int) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dim,
			"distance": distanceName(s.metric),
		},
	}
	_, err := s.do(ctx, http.MethodPut, s.collectionURL(), body, nil)
	return err
}

func (s *Storage) putPoints(ctx context.Context, clauses []domain.RequirementClause) error {
	points := make([]point, len(clauses))
	for i, c := range clauses {
		points[i] = point{
			ID:     pointID(c.ID),
			Vector: c.Vector,
			Payload: map[string]any{
				"clause_id":       c.ID,
				"source_standard": string(c.SourceStandard),
				"text":            c.Text,
				"version":         c.Version,
			},
		}
	}
	_, err := s.do(ctx, http.MethodPut, s.collectionURL()+"/points?wait=true", map[string]any{"points": points}, nil)
	return err
}

func (s *Storage) Query(ctx context.Context, vector []float64, k int, metric vectorstore.Metric) ([]vectorstore.Hit, error) {
	if err := domain.ContextErr(ctx); err != nil {
		return nil, err
	}
	if err := vectorstore.CheckQuery(s.metric, s.mirror.Dimension(), vector, metric); err != nil {
		return nil, err
	}
	if k <= 0 || s.mirror.Len() == 0 {
		return nil, nil
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if _, err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/search", req, &resp); err != nil {
		if cerr := domain.ContextErr(ctx); cerr != nil {
			return nil, cerr
		}
		return nil, err
	}
	hits := make([]vectorstore.Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		id, _ := r.Payload["clause_id"].(string)
		hits = append(hits, vectorstore.Hit{ID: id, Distance: s.distance(r.Score)})
	}
	return vectorstore.Rank(hits, k), nil
}

// distance maps a Qdrant score onto the index distance convention.
func (s *Storage) distance(score float64) float64 {
	switch s.metric {
	case vectorstore.Dot:
		return -score
	case vectorstore.Euclidean:
		return score
	default:
		return 1 - score
	}
}

func (s *Storage) Get(ctx context.Context, id string) (domain.RequirementClause, bool, error) {
	return s.mirror.Get(ctx, id)
}

func (s *Storage) List(ctx context.Context) ([]domain.RequirementClause, error) {
	return s.mirror.List(ctx)
}

func (s *Storage) Dimension() int             { return s.mirror.Dimension() }
func (s *Storage) Metric() vectorstore.Metric { return s.metric }
func (s *Storage) Len() int                   { return s.mirror.Len() }

// Reset drops the collection; it is recreated on the next write.
func (s *Storage) Reset(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.do(ctx, http.MethodDelete, s.collectionURL(), nil, nil); err != nil {
		return err
	}
	return s.mirror.Reset(ctx)
}

func (s *Storage) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *Storage) collectionURL() string {
	return fmt.Sprintf("%s/collections/%s", s.url, s.collection)
}

// do sends a JSON request and decodes the JSON response into out.
// It reports found=false for 404 instead of an error.
func (s *Storage) do(ctx context.Context, method, url string, body, out any) (bool, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return false, fmt.Errorf("qdrant encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return false, fmt.Errorf("qdrant %s %s: %w", method, url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("qdrant %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode >= 300 {
		return false, fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return true, fmt.Errorf("qdrant decode %s: %w", url, err)
		}
	}
	return true, nil
}

func pointID(clauseID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(clauseID)).String()
}

func fromPayload(p point) domain.RequirementClause {
	c := domain.RequirementClause{Vector: p.Vector}
	if v, ok := p.Payload["clause_id"].(string); ok {
		c.ID = v
	}
	if v, ok := p.Payload["source_standard"].(string); ok {
		c.SourceStandard = domain.Standard(v)
	}
	if v, ok := p.Payload["text"].(string); ok {
		c.Text = v
	}
	if v, ok := p.Payload["version"].(float64); ok {
		c.Version = int(v)
	}
	return c
}

var _ vectorstore.Index = (*Storage)(nil)
