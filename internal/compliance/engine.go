package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"regaudit/internal/domain"
	"regaudit/internal/vectorstore"
)

// Config carries every tunable of one audit run.
type Config struct {
	K                  int
	MinScore           float64
	PartialThreshold   float64
	SatisfiedThreshold float64
	EvidenceLimit      int

	Metric        vectorstore.Metric
	Normalization Normalizer
	Workers       int
	SnippetRunes  int
}

func (c Config) Thresholds() Thresholds {
	return Thresholds{Partial: c.PartialThreshold, Satisfied: c.SatisfiedThreshold, EvidenceLimit: c.EvidenceLimit}
}

// Validate rejects configurations before any work is done.
func (c Config) Validate() error {
	if err := c.Thresholds().Validate(); err != nil {
		return err
	}
	if c.K < 1 {
		return fmt.Errorf("%w: k must be at least 1, got %d", domain.ErrInvalidConfig, c.K)
	}
	if c.MinScore < 0 || c.MinScore > 1 {
		return fmt.Errorf("%w: min score must lie in [0,1], got %g", domain.ErrInvalidConfig, c.MinScore)
	}
	if _, err := ParseNormalizer(string(c.Normalization)); err != nil {
		return err
	}
	if c.Metric != "" {
		if _, err := vectorstore.ParseMetric(string(c.Metric)); err != nil {
			return err
		}
	}
	return nil
}

// Engine runs audits against a loaded index.
type Engine struct {
	logger *slog.Logger
}

func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// RunAudit matches segments against idx and assembles the report. Any error
// means no report; cancellation surfaces as domain.ErrCancelled.
func (e *Engine) RunAudit(ctx context.Context, segments []domain.DocumentSegment, idx vectorstore.Index, cfg Config) (*domain.Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := checkSegmentIDs(segments); err != nil {
		return nil, err
	}
	start := time.Now()
	clauses, err := idx.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list requirements: %w", err)
	}
	requirements := make(map[string]domain.RequirementClause, len(clauses))
	ids := make([]string, 0, len(clauses))
	for _, c := range clauses {
		requirements[c.ID] = c
		ids = append(ids, c.ID)
	}

	normalizer, _ := ParseNormalizer(string(cfg.Normalization))
	matches, err := Match(ctx, segments, idx, MatchOptions{
		K:          cfg.K,
		MinScore:   cfg.MinScore,
		Metric:     cfg.Metric,
		Normalizer: normalizer,
		Workers:    cfg.Workers,
	})
	if err != nil {
		return nil, err
	}
	if err := domain.ContextErr(ctx); err != nil {
		return nil, err
	}

	verdicts := Aggregate(matches, ids, cfg.Thresholds())
	report, err := Assemble(verdicts, requirements, segments, AssembleOptions{SnippetRunes: cfg.SnippetRunes})
	if err != nil {
		e.logger.Error("report assembly failed", "err", err)
		return nil, err
	}
	report.RunID = uuid.NewString()
	e.logger.Info("audit complete",
		"run_id", report.RunID,
		"segments", len(segments),
		"requirements", len(ids),
		"matches", len(matches),
		"satisfied", report.Summary.Satisfied,
		"partial", report.Summary.Partial,
		"unaddressed", report.Summary.Unaddressed,
		"elapsed", time.Since(start))
	return report, nil
}

func checkSegmentIDs(segments []domain.DocumentSegment) error {
	seen := make(map[int]struct{}, len(segments))
	for _, s := range segments {
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("%w: duplicate segment id %d", domain.ErrInvalidConfig, s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	return nil
}
