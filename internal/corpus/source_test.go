package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regaudit/internal/domain"
)

func TestParse_Clauses(t *testing.T) {
	data := []byte(`
- id: R2
  source_standard: AI_ACT
  text: |
    Log all automated decisions.
- id: R1
  source_standard: GDPR
  text: Provide a data protection impact assessment
`)
	got, err := Parse(data, FormatClauses)
	require.NoError(t, err)
	assert.Equal(t, []Source{
		{ID: "R2", SourceStandard: domain.StandardAIAct, Text: "Log all automated decisions."},
		{ID: "R1", SourceStandard: domain.StandardGDPR, Text: "Provide a data protection impact assessment"},
	}, got)
}

func TestReadFile_MappingJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "Risk management": {
    "id": "REQ-02",
    "iso_control_text": "Establish a risk management process.",
    "ai_act_articles": [
      {"text": "Article 9: a risk management system shall be established."}
    ]
  },
  "Transparency": {
    "ai_act_articles": [{"text": "Article 13: transparency to deployers."}]
  }
}`), 0o644))

	got, err := ReadFile(path, FormatMapping)
	require.NoError(t, err)
	assert.Equal(t, []Source{
		{ID: "REQ-02", SourceStandard: domain.StandardISO, Text: "Establish a risk management process. Article 9: a risk management system shall be established."},
		{ID: "Transparency", SourceStandard: domain.StandardAIAct, Text: "Article 13: transparency to deployers."},
	}, got)
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte("id: [unclosed"), FormatClauses)
	require.ErrorIs(t, err, domain.ErrInvalidCorpus)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatClauses, f)

	_, err = ParseFormat("csv")
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
}
