package evaluation

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regaudit/internal/domain"
	"regaudit/internal/service"
)

func report(scores map[string]int) *domain.Report {
	g := domain.StandardGroup{Standard: domain.StandardISO}
	for _, id := range []string{"A.5", "A.6", "A.7"} {
		if s, ok := scores[id]; ok {
			g.Entries = append(g.Entries, domain.ReportEntry{RequirementID: id, Score: s})
		}
	}
	return &domain.Report{Groups: []domain.StandardGroup{g}}
}

type fakeAuditor struct {
	reports map[string]*domain.Report
	calls   []string
}

func (f *fakeAuditor) AuditFiles(_ context.Context, paths []string) (*service.Audit, error) {
	f.calls = append(f.calls, paths...)
	return &service.Audit{Report: f.reports[paths[0]]}, nil
}

func write(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func TestReadGroundTruth(t *testing.T) {
	dir := t.TempDir()
	csvData := "\ufeffMapped_ID,Requirement_Name,Score (0-5)\nA.5,Policies,4\nA.6,\"Roles, duties\",2.5\n,orphan,3\nA.7,Bad,n/a\n"
	got, err := ReadGroundTruth(write(t, dir, "gt.csv", []byte(csvData)))
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"A.5": 4, "A.6": 2.5}, got)
}

func TestReadGroundTruth_Latin1(t *testing.T) {
	dir := t.TempDir()
	// "Sécurité" in Latin-1
	data := []byte("Mapped ID,Requirement_Name,Score (0-5)\nA.5,S\xe9curit\xe9,3\n")
	got, err := ReadGroundTruth(write(t, dir, "gt.csv", data))
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"A.5": 3}, got)
}

func TestReadGroundTruth_MissingColumns(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadGroundTruth(write(t, dir, "gt.csv", []byte("id,score\nA.5,3\n")))
	require.Error(t, err)
}

func TestCompare(t *testing.T) {
	res := Compare(report(map[string]int{"A.5": 5, "A.6": 0, "A.7": 3}), map[string]float64{"A.5": 4, "A.6": 2, "X": 1})
	assert.Equal(t, 2, res.Pairs)
	assert.InDelta(t, 1.5, res.MAE, 1e-12)
}

func TestEvaluator_Run(t *testing.T) {
	dir := t.TempDir()
	doc1 := write(t, dir, "doc1.txt", []byte("x"))
	doc2 := write(t, dir, "doc2.txt", []byte("y"))
	gt1 := write(t, dir, "gt1.csv", []byte("Mapped_ID,Score (0-5)\nA.5,4\n"))
	gt2 := write(t, dir, "gt2.csv", []byte("Mapped_ID,Score (0-5)\nA.5,5\nA.6,1\nA.7,3\n"))

	auditor := &fakeAuditor{reports: map[string]*domain.Report{
		doc1: report(map[string]int{"A.5": 2}),
		doc2: report(map[string]int{"A.5": 5, "A.6": 2, "A.7": 3}),
	}}
	summary, err := NewEvaluator(auditor, nil).Run(context.Background(), []Case{
		{Name: "one", DocumentPath: doc1, TruthPath: gt1},
		{Name: "missing", DocumentPath: filepath.Join(dir, "nope.txt"), TruthPath: gt1},
		{Name: "two", DocumentPath: doc2, TruthPath: gt2},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{doc1, doc2}, auditor.calls)
	assert.Equal(t, 2, summary.TotalCases)
	assert.Equal(t, 4, summary.TotalPairs)
	// case one: |4-2| = 2 over 1 pair; case two: (0+1+0)/3 over 3 pairs
	assert.InDelta(t, 0.75, summary.WeightedMAE, 1e-12)

	out := filepath.Join(dir, "metrics", "eval.json")
	require.NoError(t, WriteMetrics(out, summary))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.EqualValues(t, 4, decoded["total_pairs"])
}

func TestEvaluator_NoCases(t *testing.T) {
	summary, err := NewEvaluator(&fakeAuditor{}, nil).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, Summary{Cases: []CaseResult{}}, summary)
}
