package compliance

import (
	"fmt"
	"sort"

	"regaudit/internal/domain"
)

// Thresholds classify a requirement by its best match score.
type Thresholds struct {
	Partial   float64
	Satisfied float64
	// EvidenceLimit caps the evidence list of each verdict.
	EvidenceLimit int
}

func (t Thresholds) Validate() error {
	if t.Partial < 0 || t.Partial > 1 || t.Satisfied < 0 || t.Satisfied > 1 {
		return fmt.Errorf("%w: thresholds must lie in [0,1], got partial=%g satisfied=%g", domain.ErrInvalidThresholds, t.Partial, t.Satisfied)
	}
	if t.Partial > t.Satisfied {
		return fmt.Errorf("%w: partial %g exceeds satisfied %g", domain.ErrInvalidThresholds, t.Partial, t.Satisfied)
	}
	if t.EvidenceLimit < 1 {
		return fmt.Errorf("%w: evidence limit must be at least 1, got %d", domain.ErrInvalidConfig, t.EvidenceLimit)
	}
	return nil
}

// Aggregate turns matches into exactly one verdict per requirement ID.
// Matches for IDs outside requirementIDs are ignored. Thresholds are assumed
// validated.
func Aggregate(matches []domain.Match, requirementIDs []string, t Thresholds) map[string]domain.Verdict {
	byReq := make(map[string][]domain.Match, len(requirementIDs))
	for _, id := range requirementIDs {
		byReq[id] = nil
	}
	for _, m := range matches {
		if _, ok := byReq[m.RequirementID]; ok {
			byReq[m.RequirementID] = append(byReq[m.RequirementID], m)
		}
	}

	verdicts := make(map[string]domain.Verdict, len(byReq))
	for id, ms := range byReq {
		verdicts[id] = verdictFor(id, ms, t)
	}
	return verdicts
}

func verdictFor(id string, ms []domain.Match, t Thresholds) domain.Verdict {
	v := domain.Verdict{RequirementID: id, Status: domain.StatusUnaddressed, Evidence: []domain.Evidence{}}
	if len(ms) == 0 {
		return v
	}
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].Score != ms[j].Score {
			return ms[i].Score > ms[j].Score
		}
		return ms[i].SegmentID < ms[j].SegmentID
	})
	best := ms[0].Score
	switch {
	case best >= t.Satisfied:
		v.Status = domain.StatusSatisfied
	case best >= t.Partial:
		v.Status = domain.StatusPartial
	default:
		// below partial counts as no qualifying match
		return v
	}
	v.Confidence = best
	for _, m := range ms {
		if len(v.Evidence) == t.EvidenceLimit || m.Score < t.Partial {
			break
		}
		v.Evidence = append(v.Evidence, domain.Evidence{SegmentID: m.SegmentID, Score: m.Score})
	}
	return v
}
