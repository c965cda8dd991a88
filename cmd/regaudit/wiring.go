package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"regaudit/internal/compliance"
	"regaudit/internal/config"
	"regaudit/internal/corpus"
	"regaudit/internal/domain"
	"regaudit/internal/embedding"
	"regaudit/internal/embedding/hashing"
	"regaudit/internal/embedding/openai"
	"regaudit/internal/progress"
	"regaudit/internal/segment"
	"regaudit/internal/service"
	"regaudit/internal/vectorstore"
	"regaudit/internal/vectorstore/chromem"
	"regaudit/internal/vectorstore/memory"
	"regaudit/internal/vectorstore/qdrant"
	"regaudit/internal/vectorstore/sqlite"
)

// app holds the components assembled from the configuration.
type app struct {
	cfg   *config.AppConfig
	index vectorstore.Index
	svc   *service.AuditService
}

func (a *app) Close() error { return a.index.Close() }

func newApp(ctx context.Context, cfg *config.AppConfig) (*app, error) {
	logger := slog.Default()

	emb, err := newEmbedder(cfg.Embedder)
	if err != nil {
		return nil, err
	}

	var seg domain.Segmenter
	switch cfg.Segmenter.Type {
	case "sentence", "":
		seg = segment.NewSentenceSegmenter(cfg.Segmenter.SentencesPerSegment, cfg.Segmenter.OverlapSentences)
	default:
		return nil, fmt.Errorf("unknown segmenter: %s", cfg.Segmenter.Type)
	}

	idx, err := openIndex(ctx, cfg.Index)
	if err != nil {
		return nil, err
	}

	svc := service.NewAuditService(service.Options{
		Segmenter:     seg,
		Embedder:      emb,
		Index:         idx,
		Loader:        corpus.NewLoader(emb, cfg.Embedder.Workers, progress.NewReporter(), logger),
		Engine:        compliance.NewEngine(logger),
		Audit:         cfg.Audit(),
		Workers:       cfg.Embedder.Workers,
		DebugDumpPath: cfg.Report.DebugDumpPath,
		Logger:        logger,
	})
	return &app{cfg: cfg, index: idx, svc: svc}, nil
}

func newEmbedder(cfg config.EmbedderConfig) (embedding.Embedder, error) {
	switch cfg.Type {
	case "hashing", "":
		return hashing.NewEmbedder(cfg.Dimension), nil
	case "openai":
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("openai embedder config missing")
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:    cfg.OpenAI.BaseURL,
			APIKeyEnv:  cfg.OpenAI.APIKeyEnv,
			Model:      cfg.OpenAI.Model,
			Dimensions: cfg.OpenAI.Dimensions,
			Timeout:    config.Seconds(cfg.OpenAI.TimeoutSecs, 30*time.Second),
			MaxRetries: cfg.OpenAI.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
}

func openIndex(ctx context.Context, cfg config.IndexConfig) (vectorstore.Index, error) {
	metric, err := vectorstore.ParseMetric(cfg.Metric)
	if err != nil {
		return nil, err
	}
	switch cfg.Type {
	case "memory":
		return memory.NewStorage(metric), nil
	case "sqlite", "":
		if cfg.SQLite == nil {
			return nil, fmt.Errorf("sqlite index config missing")
		}
		return sqlite.Open(ctx, cfg.SQLite.Path, metric)
	case "chromem":
		dir := ""
		if cfg.Chromem != nil {
			dir = cfg.Chromem.Dir
		}
		return chromem.Open(ctx, dir, metric)
	case "qdrant":
		if cfg.Qdrant == nil {
			return nil, fmt.Errorf("qdrant config missing")
		}
		return qdrant.Open(ctx, qdrant.Config{
			URL:        cfg.Qdrant.URL,
			APIKey:     os.Getenv(cfg.Qdrant.APIKeyEnv),
			Collection: cfg.Qdrant.Collection,
			Metric:     metric,
			Timeout:    config.Seconds(cfg.Qdrant.TimeoutSecs, 30*time.Second),
		})
	default:
		return nil, fmt.Errorf("unknown index: %s", cfg.Type)
	}
}

// withApp builds the app for one command and closes it afterwards.
func withApp(ctx context.Context, fn func(*app) error) error {
	a, err := newApp(ctx, appConfig)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Warn("closing index", "err", err)
		}
	}()
	return fn(a)
}
