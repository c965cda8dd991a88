package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"regaudit/internal/domain"
	"regaudit/internal/embedding"
	"regaudit/internal/progress"
	"regaudit/internal/vectorstore"
)

// Stats summarizes what a Load changed.
type Stats struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Deleted   int `json:"deleted"`
	Unchanged int `json:"unchanged"`
	// Embedded counts embedder calls; metadata-only updates are not embedded.
	Embedded int `json:"embedded"`
}

// Loader synchronizes an index with a requirement corpus.
type Loader struct {
	embedder embedding.Embedder
	workers  int
	reporter progress.Reporter
	logger   *slog.Logger
}

func NewLoader(embedder embedding.Embedder, workers int, reporter progress.Reporter, logger *slog.Logger) *Loader {
	if workers <= 0 {
		workers = 4
	}
	if reporter == nil {
		reporter = progress.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{embedder: embedder, workers: workers, reporter: reporter, logger: logger}
}

type pending struct {
	clause domain.RequirementClause
	embed  bool
	insert bool
}

// Load makes idx hold exactly the given sources. Clauses whose text did not
// change keep their vector and version. Every change is committed with one
// Apply, so a failure leaves idx as it was. An id that was deleted and
// later loaded again starts over at version 1.
func (l *Loader) Load(ctx context.Context, sources []Source, idx vectorstore.Index) (Stats, error) {
	var stats Stats
	if err := domain.ContextErr(ctx); err != nil {
		return stats, err
	}
	if err := Validate(sources); err != nil {
		return stats, err
	}
	existing, err := idx.List(ctx)
	if err != nil {
		return stats, fmt.Errorf("list index: %w", err)
	}
	current := make(map[string]domain.RequirementClause, len(existing))
	for _, c := range existing {
		current[c.ID] = c
	}

	var work []pending
	wanted := make(map[string]struct{}, len(sources))
	for _, src := range sources {
		wanted[src.ID] = struct{}{}
		old, ok := current[src.ID]
		switch {
		case !ok:
			work = append(work, pending{
				clause: domain.RequirementClause{ID: src.ID, SourceStandard: src.SourceStandard, Text: src.Text, Version: 1},
				embed:  true,
				insert: true,
			})
		case old.Text != src.Text:
			work = append(work, pending{
				clause: domain.RequirementClause{ID: src.ID, SourceStandard: src.SourceStandard, Text: src.Text, Version: old.Version + 1},
				embed:  true,
			})
		case old.SourceStandard != src.SourceStandard:
			old.SourceStandard = src.SourceStandard
			work = append(work, pending{clause: old})
		default:
			stats.Unchanged++
		}
	}

	if err := l.embedAll(ctx, work, idx.Dimension()); err != nil {
		return Stats{}, err
	}

	var batch vectorstore.Batch
	for _, p := range work {
		batch.Upserts = append(batch.Upserts, p.clause)
		if p.embed {
			stats.Embedded++
		}
		if p.insert {
			stats.Inserted++
		} else {
			stats.Updated++
		}
	}
	for _, c := range existing {
		if _, ok := wanted[c.ID]; !ok {
			batch.Deletes = append(batch.Deletes, c.ID)
		}
	}
	sort.Strings(batch.Deletes)
	stats.Deleted = len(batch.Deletes)

	if !batch.Empty() {
		if err := idx.Apply(ctx, batch); err != nil {
			return Stats{}, fmt.Errorf("apply corpus: %w", err)
		}
	}
	l.logger.Info("corpus loaded",
		"embedder", l.embedder.Name(),
		"clauses", len(sources),
		"inserted", stats.Inserted,
		"updated", stats.Updated,
		"deleted", stats.Deleted,
		"unchanged", stats.Unchanged,
		"dimension", idx.Dimension())
	return stats, nil
}

// embedAll fills in vectors for every pending clause that needs one and
// checks all lengths agree with dim, or with each other while dim is 0.
func (l *Loader) embedAll(ctx context.Context, work []pending, dim int) error {
	var todo []int
	for i, p := range work {
		if p.embed {
			todo = append(todo, i)
		}
	}
	if len(todo) == 0 {
		return nil
	}
	if dim == 0 {
		dim = l.embedder.Dimension()
	}

	l.reporter.Start(len(todo), "embedding clauses")
	defer l.reporter.Finish()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for _, i := range todo {
		g.Go(func() error {
			if err := domain.ContextErr(gctx); err != nil {
				return err
			}
			c := &work[i].clause
			vec, err := l.embedder.Embed(gctx, c.Text)
			if err != nil {
				return fmt.Errorf("embed clause %s: %w", c.ID, err)
			}
			if err := embedding.Validate(vec, dim, "clause "+c.ID); err != nil {
				return err
			}
			c.Vector = vec
			l.reporter.Step(c.ID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if cerr := domain.ContextErr(ctx); cerr != nil {
			return cerr
		}
		return err
	}
	if dim == 0 {
		want := len(work[todo[0]].clause.Vector)
		for _, i := range todo[1:] {
			c := work[i].clause
			if len(c.Vector) != want {
				return domain.DimensionError("clause "+c.ID, want, len(c.Vector))
			}
		}
	}
	return nil
}
