package compliance

import (
	"fmt"
	"math"
	"sort"

	"regaudit/internal/domain"
	"regaudit/internal/textutil"
)

// AssembleOptions controls evidence snippets.
type AssembleOptions struct {
	// SnippetRunes truncates snippets; 0 keeps the whole sentence.
	SnippetRunes int
}

// Assemble builds the report. The verdict and requirement key sets must be
// equal and every evidence segment must be present in segments; anything
// else is an internal inconsistency and fails the whole report.
func Assemble(verdicts map[string]domain.Verdict, requirements map[string]domain.RequirementClause, segments []domain.DocumentSegment, opts AssembleOptions) (*domain.Report, error) {
	for id := range verdicts {
		if _, ok := requirements[id]; !ok {
			return nil, fmt.Errorf("%w: verdict for %s", domain.ErrUnknownRequirement, id)
		}
	}
	segByID := make(map[int]domain.DocumentSegment, len(segments))
	for _, s := range segments {
		segByID[s.ID] = s
	}

	ids := make([]string, 0, len(requirements))
	for id := range requirements {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	report := &domain.Report{Groups: []domain.StandardGroup{}}
	groups := make(map[domain.Standard]int)
	for _, id := range ids {
		req := requirements[id]
		v, ok := verdicts[id]
		if !ok {
			return nil, fmt.Errorf("%w: requirement %s", domain.ErrMissingVerdict, id)
		}
		entry := domain.ReportEntry{
			RequirementID:  id,
			SourceStandard: req.SourceStandard,
			Text:           req.Text,
			Version:        req.Version,
			Status:         v.Status,
			Confidence:     v.Confidence,
			Score:          auditorScore(v),
			Evidence:       make([]domain.EvidenceRecord, 0, len(v.Evidence)),
		}
		for _, ev := range v.Evidence {
			seg, ok := segByID[ev.SegmentID]
			if !ok {
				return nil, fmt.Errorf("%w: segment %d cited for %s", domain.ErrUnknownSegment, ev.SegmentID, id)
			}
			entry.Evidence = append(entry.Evidence, domain.EvidenceRecord{
				SegmentID: seg.ID,
				Position:  seg.Position,
				Score:     ev.Score,
				Snippet:   snippet(seg.Text, req.Text, opts.SnippetRunes),
			})
		}

		gi, ok := groups[req.SourceStandard]
		if !ok {
			gi = len(report.Groups)
			groups[req.SourceStandard] = gi
			report.Groups = append(report.Groups, domain.StandardGroup{Standard: req.SourceStandard})
		}
		report.Groups[gi].Entries = append(report.Groups[gi].Entries, entry)
		countStatus(&report.Summary, v.Status)
	}
	sort.SliceStable(report.Groups, func(i, j int) bool { return report.Groups[i].Standard < report.Groups[j].Standard })

	s := &report.Summary
	s.Requirements = len(ids)
	if s.Requirements > 0 {
		s.Coverage = (float64(s.Satisfied) + 0.5*float64(s.Partial)) / float64(s.Requirements)
	}
	return report, nil
}

func countStatus(s *domain.ReportSummary, status domain.Status) {
	switch status {
	case domain.StatusSatisfied:
		s.Satisfied++
	case domain.StatusPartial:
		s.Partial++
	default:
		s.Unaddressed++
	}
}

// auditorScore expresses the verdict on the 0-5 scale auditors use.
func auditorScore(v domain.Verdict) int {
	if v.Status == domain.StatusUnaddressed {
		return 0
	}
	return int(math.Round(v.Confidence * 5))
}

// snippet picks the segment sentence that best overlaps the clause text.
func snippet(segment, clause string, runes int) string {
	sentences := textutil.Sentences(segment)
	if len(sentences) == 0 {
		return ""
	}
	return textutil.Truncate(sentences[textutil.BestSentence(sentences, clause)], runes)
}
