// Package evaluation scores audit reports against auditor ground truth.
package evaluation

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"regaudit/internal/domain"
	"regaudit/internal/service"
)

// Case pairs an audited document with the auditor's scores for it.
type Case struct {
	Name         string `yaml:"name"`
	DocumentPath string `yaml:"document_path"`
	TruthPath    string `yaml:"ground_truth_path"`
}

type CaseResult struct {
	Name  string  `json:"name"`
	Pairs int     `json:"num_pairs"`
	MAE   float64 `json:"mae_score"`
}

type Summary struct {
	TotalCases  int          `json:"total_cases"`
	TotalPairs  int          `json:"total_pairs"`
	WeightedMAE float64      `json:"weighted_mae_score"`
	Cases       []CaseResult `json:"cases"`
}

// Auditor is the part of the audit service evaluation needs.
type Auditor interface {
	AuditFiles(ctx context.Context, paths []string) (*service.Audit, error)
}

type Evaluator struct {
	auditor Auditor
	logger  *slog.Logger
}

func NewEvaluator(auditor Auditor, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{auditor: auditor, logger: logger}
}

// Run audits every case. Cases whose files are missing are skipped with a
// warning; any other failure stops the run.
func (e *Evaluator) Run(ctx context.Context, cases []Case) (Summary, error) {
	summary := Summary{Cases: []CaseResult{}}
	for _, c := range cases {
		if !exists(c.DocumentPath) {
			e.logger.Warn("document not found, skipping case", "case", c.Name, "path", c.DocumentPath)
			continue
		}
		if !exists(c.TruthPath) {
			e.logger.Warn("ground truth not found, skipping case", "case", c.Name, "path", c.TruthPath)
			continue
		}
		truth, err := ReadGroundTruth(c.TruthPath)
		if err != nil {
			return Summary{}, fmt.Errorf("case %s: %w", c.Name, err)
		}
		audit, err := e.auditor.AuditFiles(ctx, []string{c.DocumentPath})
		if err != nil {
			return Summary{}, fmt.Errorf("case %s: %w", c.Name, err)
		}
		res := Compare(audit.Report, truth)
		res.Name = c.Name
		e.logger.Info("case evaluated", "case", c.Name, "pairs", res.Pairs, "mae", res.MAE)
		summary.Cases = append(summary.Cases, res)
	}

	summary.TotalCases = len(summary.Cases)
	weighted := 0.0
	for _, r := range summary.Cases {
		summary.TotalPairs += r.Pairs
		weighted += r.MAE * float64(r.Pairs)
	}
	if summary.TotalPairs > 0 {
		summary.WeightedMAE = weighted / float64(summary.TotalPairs)
	}
	return summary, nil
}

// Compare computes the mean absolute error between report scores and the
// ground truth over the requirements present in both.
func Compare(report *domain.Report, truth map[string]float64) CaseResult {
	var res CaseResult
	sum := 0.0
	for _, e := range report.Entries() {
		want, ok := truth[e.RequirementID]
		if !ok {
			continue
		}
		sum += math.Abs(want - float64(e.Score))
		res.Pairs++
	}
	if res.Pairs > 0 {
		res.MAE = sum / float64(res.Pairs)
	}
	return res
}

// ReadGroundTruth reads an auditor CSV keyed by the Mapped_ID column with
// scores in "Score (0-5)". Rows without an id or with an unparsable score
// are skipped. Files that are not UTF-8 are read as Latin-1.
func ReadGroundTruth(path string) (map[string]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	if !utf8.Valid(data) {
		if data, err = charmap.ISO8859_1.NewDecoder().Bytes(data); err != nil {
			return nil, fmt.Errorf("ground truth %s: %w", path, err)
		}
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("ground truth %s: %w", path, err)
	}
	idCol, scoreCol := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case "Mapped_ID", "Mapped ID":
			if idCol < 0 {
				idCol = i
			}
		case "Score (0-5)":
			scoreCol = i
		}
	}
	if idCol < 0 || scoreCol < 0 {
		return nil, fmt.Errorf("ground truth %s: need Mapped_ID and Score (0-5) columns", path)
	}

	truth := make(map[string]float64)
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ground truth %s: %w", path, err)
		}
		if idCol >= len(rec) || scoreCol >= len(rec) {
			continue
		}
		id := strings.TrimSpace(rec[idCol])
		if id == "" {
			continue
		}
		score, err := strconv.ParseFloat(strings.TrimSpace(rec[scoreCol]), 64)
		if err != nil {
			continue
		}
		truth[id] = score
	}
	return truth, nil
}

// WriteMetrics writes the summary as indented JSON.
func WriteMetrics(path string, s Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
