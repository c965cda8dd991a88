package segment

import (
	"strings"

	"regaudit/internal/domain"
	"regaudit/internal/textutil"
)

// SentenceSegmenter splits text into sentence-based segments with overlap.
type SentenceSegmenter struct {
	sentencesPerSegment int
	overlapSentences    int
}

func NewSentenceSegmenter(sentencesPerSegment, overlapSentences int) *SentenceSegmenter {
	if sentencesPerSegment <= 0 {
		sentencesPerSegment = 3
	}
	if overlapSentences < 0 {
		overlapSentences = 0
	}
	// overlap must leave room to advance
	if overlapSentences >= sentencesPerSegment {
		overlapSentences = sentencesPerSegment - 1
	}
	return &SentenceSegmenter{
		sentencesPerSegment: sentencesPerSegment,
		overlapSentences:    overlapSentences,
	}
}

// Segment returns ordered segments; positions start at 0. Blank text yields none.
func (s *SentenceSegmenter) Segment(text string) ([]domain.SegmentInput, error) {
	sentences := textutil.Sentences(text)
	if len(sentences) == 0 {
		return nil, nil
	}
	var segments []domain.SegmentInput
	i := 0
	for pos := 0; i < len(sentences); pos++ {
		end := min(i+s.sentencesPerSegment, len(sentences))
		segments = append(segments, domain.SegmentInput{
			Position: pos,
			Text:     strings.Join(sentences[i:end], " "),
		})
		if end == len(sentences) {
			break
		}
		i = end - s.overlapSentences
	}
	return segments, nil
}

var _ domain.Segmenter = (*SentenceSegmenter)(nil)
