package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"regaudit/internal/compliance"
	"regaudit/internal/corpus"
	"regaudit/internal/domain"
	"regaudit/internal/evaluation"
	"regaudit/internal/report"
	"regaudit/internal/vectorstore"
)

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	Dimensions  int    `yaml:"dimensions,omitempty"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string                `yaml:"type"`
	Dimension int                   `yaml:"dimension"`
	Workers   int                   `yaml:"workers"`
	OpenAI    *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// SegmenterConfig configures how documents are split into segments.
type SegmenterConfig struct {
	Type                string `yaml:"type"`
	SentencesPerSegment int    `yaml:"sentences_per_segment"`
	OverlapSentences    int    `yaml:"overlap_sentences"`
}

// IndexConfig selects and configures the requirement index backend.
type IndexConfig struct {
	Type    string         `yaml:"type"`
	Metric  string         `yaml:"metric"`
	SQLite  *SQLiteConfig  `yaml:"sqlite,omitempty"`
	Chromem *ChromemConfig `yaml:"chromem,omitempty"`
	Qdrant  *QdrantConfig  `yaml:"qdrant,omitempty"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type ChromemConfig struct {
	// Dir persists the collection; empty keeps it in memory.
	Dir string `yaml:"dir"`
}

// QdrantConfig contains connection details for a Qdrant collection.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// MatchingConfig tunes retrieval.
type MatchingConfig struct {
	K             int     `yaml:"k"`
	MinScore      float64 `yaml:"min_score"`
	Normalization string  `yaml:"normalization"`
	Workers       int     `yaml:"workers"`
}

// VerdictConfig holds the classification thresholds.
type VerdictConfig struct {
	PartialThreshold   float64 `yaml:"partial_threshold"`
	SatisfiedThreshold float64 `yaml:"satisfied_threshold"`
	EvidenceLimit      int     `yaml:"evidence_limit"`
}

type CorpusConfig struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format"`
}

type ReportConfig struct {
	Format        string `yaml:"format"`
	SnippetRunes  int    `yaml:"snippet_runes"`
	DebugDumpPath string `yaml:"debug_dump_path,omitempty"`
}

type EvaluationConfig struct {
	MetricsOutput string            `yaml:"metrics_output"`
	Cases         []evaluation.Case `yaml:"cases,omitempty"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder   EmbedderConfig   `yaml:"embedder"`
	Segmenter  SegmenterConfig  `yaml:"segmenter"`
	Index      IndexConfig      `yaml:"index"`
	Matching   MatchingConfig   `yaml:"matching"`
	Verdict    VerdictConfig    `yaml:"verdict"`
	Corpus     CorpusConfig     `yaml:"corpus"`
	Report     ReportConfig     `yaml:"report"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Log        LogConfig        `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrInvalidConfig, path, err)
	}
	applyConfigDefaults(cfg)
	return cfg, nil
}

// LoadDefault tries ./regaudit.yaml first, then ~/.config/regaudit/config.yaml.
// If neither exists, it writes defaults to ~/.config/regaudit/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "regaudit.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects configurations that would fail mid-run. Threshold
// ordering errors match domain.ErrInvalidThresholds.
func (c *AppConfig) Validate() error {
	switch c.Embedder.Type {
	case "hashing":
	case "openai":
		if c.Embedder.OpenAI == nil {
			return fmt.Errorf("%w: embedder.openai section missing", domain.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown embedder %q", domain.ErrInvalidConfig, c.Embedder.Type)
	}
	if c.Segmenter.Type != "sentence" {
		return fmt.Errorf("%w: unknown segmenter %q", domain.ErrInvalidConfig, c.Segmenter.Type)
	}
	switch c.Index.Type {
	case "memory", "chromem":
	case "sqlite":
		if c.Index.SQLite == nil || c.Index.SQLite.Path == "" {
			return fmt.Errorf("%w: index.sqlite.path missing", domain.ErrInvalidConfig)
		}
	case "qdrant":
		if c.Index.Qdrant == nil || c.Index.Qdrant.URL == "" {
			return fmt.Errorf("%w: index.qdrant.url missing", domain.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown index %q", domain.ErrInvalidConfig, c.Index.Type)
	}
	metric, err := vectorstore.ParseMetric(c.Index.Metric)
	if err != nil {
		return err
	}
	if c.Index.Type == "chromem" && metric != vectorstore.Cosine {
		return fmt.Errorf("%w: chromem supports cosine only", domain.ErrMetricMismatch)
	}
	if _, err := corpus.ParseFormat(c.Corpus.Format); err != nil {
		return err
	}
	if _, err := report.ParseFormat(c.Report.Format); err != nil {
		return err
	}
	return c.Audit().Validate()
}

// Audit returns the engine configuration.
func (c *AppConfig) Audit() compliance.Config {
	metric, _ := vectorstore.ParseMetric(c.Index.Metric)
	return compliance.Config{
		K:                  c.Matching.K,
		MinScore:           c.Matching.MinScore,
		PartialThreshold:   c.Verdict.PartialThreshold,
		SatisfiedThreshold: c.Verdict.SatisfiedThreshold,
		EvidenceLimit:      c.Verdict.EvidenceLimit,
		Metric:             metric,
		Normalization:      compliance.Normalizer(c.Matching.Normalization),
		Workers:            c.Matching.Workers,
		SnippetRunes:       c.Report.SnippetRunes,
	}
}

// Seconds converts a *_secs field, falling back to def when unset.
func Seconds(secs int, def time.Duration) time.Duration {
	if secs <= 0 {
		return def
	}
	return time.Duration(secs) * time.Second
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "regaudit", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Embedder:  EmbedderConfig{Type: "hashing", Dimension: 512, Workers: 4},
		Segmenter: SegmenterConfig{Type: "sentence", SentencesPerSegment: 3, OverlapSentences: 1},
		Index: IndexConfig{
			Type:   "sqlite",
			Metric: "cosine",
			SQLite: &SQLiteConfig{Path: "regaudit.db"},
		},
		Matching: MatchingConfig{K: 5, MinScore: 0.55, Normalization: "linear", Workers: 4},
		Verdict:  VerdictConfig{PartialThreshold: 0.6, SatisfiedThreshold: 0.75, EvidenceLimit: 3},
		Corpus:   CorpusConfig{Path: "corpus.yaml", Format: "clauses"},
		Report:   ReportConfig{Format: "json", SnippetRunes: 240},
		Evaluation: EvaluationConfig{
			MetricsOutput: "metrics/eval.json",
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
	return cfg
}

// applyConfigDefaults fills zero values a partial file left behind.
func applyConfigDefaults(cfg *AppConfig) {
	def := defaultConfig()
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = def.Embedder.Type
	}
	if cfg.Embedder.Dimension == 0 {
		cfg.Embedder.Dimension = def.Embedder.Dimension
	}
	if cfg.Embedder.Workers == 0 {
		cfg.Embedder.Workers = def.Embedder.Workers
	}
	if cfg.Segmenter.Type == "" {
		cfg.Segmenter.Type = def.Segmenter.Type
	}
	if cfg.Segmenter.SentencesPerSegment == 0 {
		cfg.Segmenter.SentencesPerSegment = def.Segmenter.SentencesPerSegment
	}
	if cfg.Index.Type == "" {
		cfg.Index.Type = def.Index.Type
	}
	if cfg.Index.Type == "sqlite" && cfg.Index.SQLite == nil {
		cfg.Index.SQLite = def.Index.SQLite
	}
	if cfg.Index.Type == "qdrant" && cfg.Index.Qdrant != nil {
		if cfg.Index.Qdrant.Collection == "" {
			cfg.Index.Qdrant.Collection = "regaudit_requirements"
		}
		if cfg.Index.Qdrant.APIKeyEnv == "" {
			cfg.Index.Qdrant.APIKeyEnv = "QDRANT_API_KEY"
		}
		if cfg.Index.Qdrant.TimeoutSecs == 0 {
			cfg.Index.Qdrant.TimeoutSecs = 30
		}
	}
	if cfg.Embedder.Type == "openai" && cfg.Embedder.OpenAI != nil {
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
		if cfg.Embedder.OpenAI.MaxRetries == 0 {
			cfg.Embedder.OpenAI.MaxRetries = 5
		}
	}
	if cfg.Matching.K == 0 {
		cfg.Matching.K = def.Matching.K
	}
	if cfg.Matching.Workers == 0 {
		cfg.Matching.Workers = def.Matching.Workers
	}
	if cfg.Verdict.EvidenceLimit == 0 {
		cfg.Verdict.EvidenceLimit = def.Verdict.EvidenceLimit
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
}
