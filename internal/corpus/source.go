package corpus

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"regaudit/internal/domain"
)

// Source is one requirement clause as read from a corpus file, before embedding.
type Source struct {
	ID             string          `yaml:"id"`
	SourceStandard domain.Standard `yaml:"source_standard"`
	Text           string          `yaml:"text"`
}

// Format names a corpus file layout.
type Format string

const (
	// FormatClauses is a flat list of {id, source_standard, text}.
	FormatClauses Format = "clauses"
	// FormatMapping is a requirement-name keyed mapping of ISO control text
	// and the AI Act articles that implement it.
	FormatMapping Format = "mapping"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatClauses:
		return FormatClauses, nil
	case FormatMapping:
		return FormatMapping, nil
	default:
		return "", fmt.Errorf("%w: unknown corpus format %q", domain.ErrInvalidConfig, s)
	}
}

// ReadFile reads a YAML or JSON corpus file.
func ReadFile(path string, format Format) ([]Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sources, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("corpus %s: %w", path, err)
	}
	return sources, nil
}

// Parse decodes corpus bytes. Clauses keep file order; mapping entries are
// ordered by ID.
func Parse(data []byte, format Format) ([]Source, error) {
	switch format {
	case "", FormatClauses:
		var sources []Source
		if err := yaml.Unmarshal(data, &sources); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidCorpus, err)
		}
		for i := range sources {
			sources[i].Text = strings.TrimSpace(sources[i].Text)
		}
		return sources, nil
	case FormatMapping:
		return parseMapping(data)
	default:
		return nil, fmt.Errorf("%w: unknown corpus format %q", domain.ErrInvalidConfig, format)
	}
}

type mappingEntry struct {
	ID             string `yaml:"id"`
	ISOControlText string `yaml:"iso_control_text"`
	AIActArticles  []struct {
		Text string `yaml:"text"`
	} `yaml:"ai_act_articles"`
}

func parseMapping(data []byte) ([]Source, error) {
	var mapping map[string]mappingEntry
	if err := yaml.Unmarshal(data, &mapping); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidCorpus, err)
	}
	sources := make([]Source, 0, len(mapping))
	for name, e := range mapping {
		id := e.ID
		if id == "" {
			id = name
		}
		parts := []string{strings.TrimSpace(e.ISOControlText)}
		for _, a := range e.AIActArticles {
			parts = append(parts, strings.TrimSpace(a.Text))
		}
		standard := domain.StandardISO
		if parts[0] == "" {
			standard = domain.StandardAIAct
		}
		sources = append(sources, Source{
			ID:             id,
			SourceStandard: standard,
			Text:           strings.Join(strings.Fields(strings.Join(parts, " ")), " "),
		})
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].ID < sources[j].ID })
	return sources, nil
}

// Validate rejects empty ids or texts, malformed standards and duplicate ids.
func Validate(sources []Source) error {
	seen := make(map[string]struct{}, len(sources))
	for i, s := range sources {
		if s.ID == "" {
			return fmt.Errorf("%w: entry %d has no id", domain.ErrInvalidCorpus, i)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("%w: duplicate id %s", domain.ErrInvalidCorpus, s.ID)
		}
		seen[s.ID] = struct{}{}
		if strings.TrimSpace(s.Text) == "" {
			return fmt.Errorf("%w: clause %s has no text", domain.ErrInvalidCorpus, s.ID)
		}
		if !s.SourceStandard.Valid() {
			return fmt.Errorf("%w: clause %s has invalid source standard %q", domain.ErrInvalidCorpus, s.ID, s.SourceStandard)
		}
	}
	return nil
}
