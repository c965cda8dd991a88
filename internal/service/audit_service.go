package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"regaudit/internal/compliance"
	"regaudit/internal/corpus"
	"regaudit/internal/domain"
	"regaudit/internal/embedding"
	"regaudit/internal/report"
	"regaudit/internal/vectorstore"
)

// Options wires the collaborators of an AuditService.
type Options struct {
	Segmenter domain.Segmenter
	Embedder  embedding.Embedder
	Index     vectorstore.Index
	Loader    *corpus.Loader
	Engine    *compliance.Engine
	Audit     compliance.Config
	// Workers bounds concurrent segment embedding.
	Workers int
	// DebugDumpPath, when set, receives a JSON copy of every report.
	DebugDumpPath string
	Logger        *slog.Logger
}

// AuditService reads documents and corpora from disk and drives the engine.
type AuditService struct {
	opts Options
}

func NewAuditService(opts Options) *AuditService {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &AuditService{opts: opts}
}

// Audit is one completed run with the segments its evidence points into.
type Audit struct {
	Report   *domain.Report
	Segments []domain.DocumentSegment
	Files    []string
}

// IndexStats describes the loaded index.
type IndexStats struct {
	Clauses    int                     `json:"clauses" yaml:"clauses"`
	Dimension  int                     `json:"dimension" yaml:"dimension"`
	Metric     vectorstore.Metric      `json:"metric" yaml:"metric"`
	Embedder   string                  `json:"embedder" yaml:"embedder"`
	ByStandard map[domain.Standard]int `json:"by_standard" yaml:"by_standard"`
}

// LoadCorpus synchronizes the index with the corpus file at path.
func (s *AuditService) LoadCorpus(ctx context.Context, path string, format corpus.Format) (corpus.Stats, error) {
	sources, err := corpus.ReadFile(path, format)
	if err != nil {
		return corpus.Stats{}, err
	}
	return s.opts.Loader.Load(ctx, sources, s.opts.Index)
}

// AuditFiles audits the concatenation of the given .txt and .md files.
// Glob patterns are expanded; other extensions are skipped.
func (s *AuditService) AuditFiles(ctx context.Context, paths []string) (*Audit, error) {
	files, err := expand(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .txt or .md documents found")
	}
	var inputs []domain.SegmentInput
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}
		segs, err := s.opts.Segmenter.Segment(string(data))
		if err != nil {
			return nil, fmt.Errorf("segment %s: %w", f, err)
		}
		s.opts.Logger.Debug("document segmented", "file", f, "segments", len(segs))
		inputs = append(inputs, segs...)
	}
	audit, err := s.AuditSegments(ctx, inputs)
	if err != nil {
		return nil, err
	}
	audit.Files = files
	return audit, nil
}

// AuditText segments and audits a single in-memory document.
func (s *AuditService) AuditText(ctx context.Context, text string) (*Audit, error) {
	inputs, err := s.opts.Segmenter.Segment(text)
	if err != nil {
		return nil, err
	}
	return s.AuditSegments(ctx, inputs)
}

// AuditSegments embeds pre-split segments and runs the engine. Segment IDs
// and positions follow input order across all documents.
func (s *AuditService) AuditSegments(ctx context.Context, inputs []domain.SegmentInput) (*Audit, error) {
	segments, err := s.embedSegments(ctx, inputs)
	if err != nil {
		return nil, err
	}
	r, err := s.opts.Engine.RunAudit(ctx, segments, s.opts.Index, s.opts.Audit)
	if err != nil {
		return nil, err
	}
	if s.opts.DebugDumpPath != "" {
		if err := report.WriteFile(s.opts.DebugDumpPath, r, report.FormatJSON); err != nil {
			s.opts.Logger.Warn("debug dump failed", "path", s.opts.DebugDumpPath, "err", err)
		}
	}
	return &Audit{Report: r, Segments: segments}, nil
}

func (s *AuditService) embedSegments(ctx context.Context, inputs []domain.SegmentInput) ([]domain.DocumentSegment, error) {
	segments := make([]domain.DocumentSegment, len(inputs))
	dim := s.opts.Index.Dimension()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, in := range inputs {
		segments[i] = domain.DocumentSegment{ID: i, Position: i, Text: in.Text}
		g.Go(func() error {
			vec, err := s.opts.Embedder.Embed(gctx, in.Text)
			if err != nil {
				return fmt.Errorf("embed segment %d: %w", i, err)
			}
			if err := embedding.Validate(vec, dim, fmt.Sprintf("segment %d", i)); err != nil {
				return err
			}
			segments[i].Vector = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if cerr := domain.ContextErr(ctx); cerr != nil {
			return nil, cerr
		}
		return nil, err
	}
	return segments, nil
}

// IndexStats reports what the index currently holds.
func (s *AuditService) IndexStats(ctx context.Context) (IndexStats, error) {
	clauses, err := s.opts.Index.List(ctx)
	if err != nil {
		return IndexStats{}, err
	}
	st := IndexStats{
		Clauses:    len(clauses),
		Dimension:  s.opts.Index.Dimension(),
		Metric:     s.opts.Index.Metric(),
		Embedder:   s.opts.Embedder.Name(),
		ByStandard: make(map[domain.Standard]int),
	}
	for _, c := range clauses {
		st.ByStandard[c.SourceStandard]++
	}
	return st, nil
}

// ResetIndex drops every clause and the fixed dimension.
func (s *AuditService) ResetIndex(ctx context.Context) error {
	if err := s.opts.Index.Reset(ctx); err != nil {
		return err
	}
	s.opts.Logger.Info("index reset")
	return nil
}

func expand(paths []string) ([]string, error) {
	var files []string
	seen := make(map[string]struct{})
	for _, p := range paths {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, err
		}
		if matches == nil {
			matches = []string{p}
		}
		sort.Strings(matches)
		for _, m := range matches {
			ext := strings.ToLower(filepath.Ext(m))
			if ext != ".txt" && ext != ".md" {
				continue
			}
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	return files, nil
}
