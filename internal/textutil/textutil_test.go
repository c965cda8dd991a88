package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"we", "perform", "dpia", "deployment"}, Tokens("We perform a DPIA before the deployment."))
	assert.Nil(t, Tokens("   "))
	assert.Equal(t, []string{"article", "13"}, Tokens("Article 13"))
}

func TestSentences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "blank", in: "  \n ", want: nil},
		{name: "no terminator", in: "just a heading", want: []string{"just a heading"}},
		{name: "two sentences", in: "First one. Second one!", want: []string{"First one.", "Second one!"}},
		{name: "trailing fragment", in: "Done. And more", want: []string{"Done.", "And more"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sentences(tt.in))
		})
	}
}

func TestBestSentence(t *testing.T) {
	sentences := []string{"The weather is nice.", "Automated decisions are logged daily.", "Nothing else."}
	assert.Equal(t, 1, BestSentence(sentences, "Log all automated decisions"))
	assert.Equal(t, 0, BestSentence(sentences, "zzz"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abc…", Truncate("abcdef", 3))
	assert.Equal(t, "abcdef", Truncate("abcdef", 0))
}
