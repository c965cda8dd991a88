package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regaudit/internal/domain"
	"regaudit/internal/service"
)

func sampleAudit() *service.Audit {
	return &service.Audit{
		Segments: []domain.DocumentSegment{
			{ID: 0, Text: "Intro. We perform a data protection impact assessment."},
		},
		Report: &domain.Report{
			Summary: domain.ReportSummary{Requirements: 2, Satisfied: 1, Unaddressed: 1, Coverage: 0.5},
			Groups: []domain.StandardGroup{
				{Standard: domain.StandardAIAct, Entries: []domain.ReportEntry{
					{RequirementID: "R2", SourceStandard: domain.StandardAIAct, Text: "Log all automated decisions", Status: domain.StatusUnaddressed},
				}},
				{Standard: domain.StandardGDPR, Entries: []domain.ReportEntry{
					{RequirementID: "R1", SourceStandard: domain.StandardGDPR, Text: "Provide a data protection impact assessment",
						Status: domain.StatusSatisfied, Confidence: 0.9, Score: 5,
						Evidence: []domain.EvidenceRecord{{SegmentID: 0, Score: 0.9}}},
				}},
			},
		},
	}
}

func TestFilterEntries(t *testing.T) {
	all := sampleAudit().Report.Entries()
	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"R2", "R1"}},
		{"gdpr", []string{"R1"}},
		{"unaddressed", []string{"R2"}},
		{"impact assessment", []string{"R1"}},
		{"impact logging", nil},
		{"r2", []string{"R2"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			var got []string
			for _, e := range filterEntries(all, tt.query) {
				got = append(got, e.RequirementID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestModel_NavigationAndFilter(t *testing.T) {
	var m tea.Model = New(sampleAudit())
	m, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	model := m.(Model)
	assert.Equal(t, "2 requirements", model.status)
	assert.Contains(t, model.renderCurrentEntry(), "R2")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	model = m.(Model)
	assert.Equal(t, 1, model.cursor)
	assert.Contains(t, model.renderCurrentEntry(), "Segment 0")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("gdpr")})
	model = m.(Model)
	require.Len(t, model.entries, 1)
	assert.Equal(t, 0, model.cursor)
	assert.True(t, strings.HasPrefix(model.status, "1 of 2"))
}

func TestHighlightBestSentence(t *testing.T) {
	out := highlightBestSentence("Intro. We perform a data protection impact assessment.", "data protection impact assessment")
	assert.Contains(t, out, "Intro.")
	assert.Contains(t, out, "assessment.")
}
