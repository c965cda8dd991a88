// Package report renders audit reports as JSON, YAML, Markdown or HTML.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"gopkg.in/yaml.v3"

	"regaudit/internal/domain"
)

type Format string

const (
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "", FormatJSON:
		return FormatJSON, nil
	case "yml":
		return FormatYAML, nil
	case "md":
		return FormatMarkdown, nil
	case FormatYAML, FormatMarkdown, FormatHTML:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown report format %q", domain.ErrInvalidConfig, s)
	}
}

// Render writes r to w in the given format. Output depends only on r.
func Render(w io.Writer, r *domain.Report, f Format) error {
	switch f {
	case "", FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case FormatMarkdown:
		_, err := io.WriteString(w, Markdown(r))
		return err
	case FormatHTML:
		return renderHTML(w, r)
	default:
		return fmt.Errorf("%w: unknown report format %q", domain.ErrInvalidConfig, f)
	}
}

// WriteFile renders r into path, creating parent directories.
func WriteFile(path string, r *domain.Report, f Format) error {
	var buf bytes.Buffer
	if err := Render(&buf, r, f); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Markdown renders one table per standard followed by the evidence lists.
func Markdown(r *domain.Report) string {
	var b strings.Builder
	b.WriteString("# Compliance report\n\n")
	if r.RunID != "" {
		fmt.Fprintf(&b, "Run `%s`\n\n", r.RunID)
	}
	s := r.Summary
	fmt.Fprintf(&b, "| Requirements | Satisfied | Partial | Unaddressed | Coverage |\n|---|---|---|---|---|\n| %d | %d | %d | %d | %.1f%% |\n",
		s.Requirements, s.Satisfied, s.Partial, s.Unaddressed, s.Coverage*100)

	for _, g := range r.Groups {
		fmt.Fprintf(&b, "\n## %s\n\n", g.Standard)
		b.WriteString("| Requirement | Status | Confidence | Score | Evidence |\n|---|---|---|---|---|\n")
		for _, e := range g.Entries {
			fmt.Fprintf(&b, "| %s | %s | %.3f | %d/5 | %d |\n",
				cell(e.RequirementID), e.Status, e.Confidence, e.Score, len(e.Evidence))
		}
		for _, e := range g.Entries {
			fmt.Fprintf(&b, "\n### %s (v%d)\n\n> %s\n", e.RequirementID, e.Version, oneLine(e.Text))
			if len(e.Evidence) == 0 {
				b.WriteString("\nNo supporting segment.\n")
				continue
			}
			b.WriteString("\n")
			for _, ev := range e.Evidence {
				fmt.Fprintf(&b, "- segment %d (position %d, score %.3f): %s\n", ev.SegmentID, ev.Position, ev.Score, oneLine(ev.Snippet))
			}
		}
	}
	return b.String()
}

func cell(s string) string { return strings.ReplaceAll(oneLine(s), "|", `\|`) }

func oneLine(s string) string { return strings.Join(strings.Fields(s), " ") }

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithXHTML()),
)

var page = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Compliance report</title>
<style>
body { font-family: sans-serif; max-width: 960px; margin: 2rem auto; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 4px 8px; }
blockquote { color: #555; }
</style>
</head>
<body>
{{.}}
</body>
</html>
`))

func renderHTML(w io.Writer, r *domain.Report) error {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(Markdown(r)), &body); err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	// goldmark escapes raw HTML in the source, so the body is safe to embed
	return page.Execute(w, template.HTML(body.String()))
}
