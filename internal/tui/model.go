package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"regaudit/internal/domain"
	"regaudit/internal/service"
	"regaudit/internal/textutil"
)

// Model is the Bubble Tea model of the report browser.
type Model struct {
	audit    *service.Audit
	segments map[int]domain.DocumentSegment
	all      []domain.ReportEntry
	entries  []domain.ReportEntry
	input    textinput.Model
	viewport viewport.Model
	status   string
	cursor   int
	ready    bool
}

// New creates a browser over a finished audit.
func New(audit *service.Audit) Model {
	ti := textinput.New()
	ti.Prompt = "filter> "
	ti.Placeholder = "id, standard, status or words from the clause"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)

	segs := make(map[int]domain.DocumentSegment, len(audit.Segments))
	for _, s := range audit.Segments {
		segs[s.ID] = s
	}
	all := audit.Report.Entries()
	m := Model{audit: audit, segments: segs, all: all, entries: all, input: ti, viewport: vp}
	m.status = m.countStatus()
	return m
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := entryBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header and summary, status, spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderCurrentEntry())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.String() {
		case "down":
			if len(m.entries) > 0 {
				m.cursor = (m.cursor + 1) % len(m.entries)
				m.viewport.SetContent(m.renderCurrentEntry())
			}
			return m, nil
		case "up":
			if len(m.entries) > 0 {
				m.cursor = (m.cursor - 1 + len(m.entries)) % len(m.entries)
				m.viewport.SetContent(m.renderCurrentEntry())
			}
			return m, nil
		case "pgdown":
			m.viewport.HalfViewDown()
			return m, nil
		case "pgup":
			m.viewport.HalfViewUp()
			return m, nil
		}
	}
	var cmd tea.Cmd
	before := m.input.Value()
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != before {
		m.applyFilter()
	}
	return m, cmd
}

func (m *Model) applyFilter() {
	m.entries = filterEntries(m.all, m.input.Value())
	m.cursor = 0
	m.status = m.countStatus()
	m.viewport.SetContent(m.renderCurrentEntry())
	m.viewport.GotoTop()
}

func (m Model) countStatus() string {
	if len(m.entries) == len(m.all) {
		return fmt.Sprintf("%d requirements", len(m.all))
	}
	return fmt.Sprintf("%d of %d requirements match %q", len(m.entries), len(m.all), strings.TrimSpace(m.input.Value()))
}

// View renders the TUI layout and current entry.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	s := m.audit.Report.Summary
	header := lipgloss.NewStyle().Bold(true).Render("Compliance report")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(fmt.Sprintf(
		"%d satisfied, %d partial, %d unaddressed, coverage %.0f%%", s.Satisfied, s.Partial, s.Unaddressed, s.Coverage*100))
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	body := entryBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + body + "\n" + input + "\n" + status
}

func (m Model) renderCurrentEntry() string {
	if len(m.entries) == 0 {
		return "No requirements match."
	}
	e := m.entries[m.cursor]
	var b strings.Builder
	fmt.Fprintf(&b, "%d/%d  %s  [%s]  %s  confidence=%.3f  score=%d/5\n\n",
		m.cursor+1, len(m.entries), e.RequirementID, e.SourceStandard,
		statusStyle(e.Status).Render(string(e.Status)), e.Confidence, e.Score)
	b.WriteString(e.Text)
	b.WriteString("\n")
	if len(e.Evidence) == 0 {
		b.WriteString("\nNo supporting segment.")
		return b.String()
	}
	for _, ev := range e.Evidence {
		fmt.Fprintf(&b, "\nSegment %d (position %d) score=%.3f\n", ev.SegmentID, ev.Position, ev.Score)
		text := ev.Snippet
		if seg, ok := m.segments[ev.SegmentID]; ok {
			text = seg.Text
		}
		b.WriteString(highlightBestSentence(text, e.Text))
		b.WriteString("\n")
	}
	return b.String()
}

var (
	entryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

func statusStyle(s domain.Status) lipgloss.Style {
	switch s {
	case domain.StatusSatisfied:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	case domain.StatusPartial:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	}
}

// filterEntries keeps entries whose id, standard or status contains the
// query, or whose clause text shares every query token.
func filterEntries(entries []domain.ReportEntry, query string) []domain.ReportEntry {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return entries
	}
	tokens := textutil.Tokens(q)
	var out []domain.ReportEntry
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.RequirementID), q) ||
			strings.Contains(strings.ToLower(string(e.SourceStandard)), q) ||
			strings.Contains(strings.ToLower(string(e.Status)), q) ||
			containsAll(textutil.TokenSet(e.Text), tokens) {
			out = append(out, e)
		}
	}
	return out
}

func containsAll(set map[string]struct{}, tokens []string) bool {
	if len(tokens) == 0 {
		return false
	}
	for _, t := range tokens {
		if _, ok := set[t]; !ok {
			return false
		}
	}
	return true
}

func highlightBestSentence(text, clause string) string {
	sentences := textutil.Sentences(text)
	if len(sentences) == 0 {
		return text
	}
	best := textutil.BestSentence(sentences, clause)
	for i := range sentences {
		if i == best {
			sentences[i] = highlightStyle.Render(sentences[i])
		}
	}
	return strings.Join(sentences, " ")
}
