package domain

import "strings"

// Standard tags the regulation or standard a clause belongs to.
// The set is open; the constants cover the corpora shipped today.
type Standard string

const (
	StandardAIAct Standard = "AI_ACT"
	StandardGDPR  Standard = "GDPR"
	StandardISO   Standard = "ISO"
)

// Valid reports whether s is a usable tag: non-empty, upper case, no spaces.
func (s Standard) Valid() bool {
	if s == "" {
		return false
	}
	str := string(s)
	return str == strings.ToUpper(str) && !strings.ContainsAny(str, " \t\n")
}

// RequirementClause is one normative statement indexed for matching.
type RequirementClause struct {
	ID             string
	SourceStandard Standard
	Text           string
	Vector         []float64
	// Version starts at 1 and is bumped whenever Text changes.
	Version int
}

// DocumentSegment is one unit of the audited document.
type DocumentSegment struct {
	ID       int
	Position int
	Text     string
	Vector   []float64
}

// SegmentInput is an un-embedded segment as produced by a Segmenter.
type SegmentInput struct {
	Position int
	Text     string
}

// Match links a segment to a requirement with a normalized score in [0,1].
type Match struct {
	SegmentID     int
	RequirementID string
	Score         float64
}

// Status is the compliance classification of a requirement.
type Status string

const (
	StatusSatisfied   Status = "SATISFIED"
	StatusPartial     Status = "PARTIAL"
	StatusUnaddressed Status = "UNADDRESSED"
)

// Evidence points at a segment supporting a verdict.
type Evidence struct {
	SegmentID int
	Score     float64
}

// Verdict is the per-requirement outcome of aggregation.
type Verdict struct {
	RequirementID string
	Status        Status
	Confidence    float64
	Evidence      []Evidence
}

// Segmenter turns plain text into ordered segments. Implementations never
// embed; they only split.
type Segmenter interface {
	Segment(text string) ([]SegmentInput, error)
}
