package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regaudit/internal/domain"
)

func TestSentenceSegmenter(t *testing.T) {
	tests := []struct {
		name    string
		per     int
		overlap int
		text    string
		want    []domain.SegmentInput
	}{
		{
			name: "blank",
			per:  2,
			text: "  \n\t",
			want: nil,
		},
		{
			name: "no terminator",
			per:  2,
			text: "  a single fragment without punctuation ",
			want: []domain.SegmentInput{{Position: 0, Text: "a single fragment without punctuation"}},
		},
		{
			name: "groups without overlap",
			per:  2,
			text: "One. Two! Three? Four.",
			want: []domain.SegmentInput{
				{Position: 0, Text: "One. Two!"},
				{Position: 1, Text: "Three? Four."},
			},
		},
		{
			name:    "overlap",
			per:     2,
			overlap: 1,
			text:    "One. Two. Three.",
			want: []domain.SegmentInput{
				{Position: 0, Text: "One. Two."},
				{Position: 1, Text: "Two. Three."},
			},
		},
		{
			name:    "overlap clamped below segment size",
			per:     1,
			overlap: 4,
			text:    "One. Two.",
			want: []domain.SegmentInput{
				{Position: 0, Text: "One."},
				{Position: 1, Text: "Two."},
			},
		},
		{
			name: "trailing fragment kept",
			per:  5,
			text: "We log decisions. Retention is thirty days",
			want: []domain.SegmentInput{{Position: 0, Text: "We log decisions. Retention is thirty days"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewSentenceSegmenter(tt.per, tt.overlap).Segment(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
