package domain

// Report is the structured compliance report for one audit run.
// Groups are ordered by standard and entries by requirement ID so that
// two runs over the same inputs serialize identically.
type Report struct {
	RunID   string          `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Summary ReportSummary   `json:"summary" yaml:"summary"`
	Groups  []StandardGroup `json:"groups" yaml:"groups"`
}

type ReportSummary struct {
	Requirements int     `json:"requirements" yaml:"requirements"`
	Satisfied    int     `json:"satisfied" yaml:"satisfied"`
	Partial      int     `json:"partial" yaml:"partial"`
	Unaddressed  int     `json:"unaddressed" yaml:"unaddressed"`
	Coverage     float64 `json:"coverage" yaml:"coverage"`
}

type StandardGroup struct {
	Standard Standard      `json:"source_standard" yaml:"source_standard"`
	Entries  []ReportEntry `json:"entries" yaml:"entries"`
}

// ReportEntry is the report record of one requirement.
type ReportEntry struct {
	RequirementID  string   `json:"requirement_id" yaml:"requirement_id"`
	SourceStandard Standard `json:"source_standard" yaml:"source_standard"`
	Text           string   `json:"text" yaml:"text"`
	Version        int      `json:"version" yaml:"version"`
	Status         Status   `json:"status" yaml:"status"`
	Confidence     float64  `json:"confidence" yaml:"confidence"`
	// Score is the confidence on the 0-5 auditor scale; 0 when unaddressed.
	Score    int              `json:"score" yaml:"score"`
	Evidence []EvidenceRecord `json:"evidence" yaml:"evidence"`
}

type EvidenceRecord struct {
	SegmentID int     `json:"segment_id" yaml:"segment_id"`
	Position  int     `json:"position" yaml:"position"`
	Score     float64 `json:"score" yaml:"score"`
	Snippet   string  `json:"snippet" yaml:"snippet"`
}

// Entries returns all entries in report order.
func (r *Report) Entries() []ReportEntry {
	var out []ReportEntry
	for _, g := range r.Groups {
		out = append(out, g.Entries...)
	}
	return out
}
