package commands

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/cbegin/rhythmkit-go/internal/ensemble"
	"github.com/cbegin/rhythmkit-go/internal/notation"
	"github.com/cbegin/rhythmkit-go/internal/pattern"
)

var (
	accentColor = lipgloss.Color("#00ff9f")
	dimColor    = lipgloss.Color("#6e7681")
)

type gridStyles struct {
	Title   lipgloss.Style
	Measure lipgloss.Style
	Note    lipgloss.Style
	Accent  lipgloss.Style
	Rest    lipgloss.Style
	Label   lipgloss.Style
}

func newGridStyles() gridStyles {
	return gridStyles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(accentColor),
		Measure: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(dimColor).Padding(0, 1),
		Note:    lipgloss.NewStyle(),
		Accent:  lipgloss.NewStyle().Bold(true).Foreground(accentColor),
		Rest:    lipgloss.NewStyle().Foreground(dimColor),
		Label:   lipgloss.NewStyle().Foreground(dimColor),
	}
}

// cellText is the token printed for one event: its value code, "r:" for
// rests and ">" for accents, matching the pattern text form.
func cellText(e pattern.Event) string {
	return pattern.FormatMeasure([]pattern.Event{e})
}

// renderMeasure lays out one measure as two rows, events above syllables,
// each column as wide as its widest entry.
func renderMeasure(st gridStyles, events []pattern.Event, syllables []string) string {
	top := make([]string, len(events))
	bottom := make([]string, len(events))
	for i, e := range events {
		text := cellText(e)
		syl := ""
		if i < len(syllables) {
			syl = syllables[i]
		}
		width := max(len(text), len(syl))
		style := st.Note
		switch {
		case e.IsRest():
			style = st.Rest
		case e.Accent:
			style = st.Accent
		}
		top[i] = style.Render(fmt.Sprintf("%-*s", width, text))
		bottom[i] = st.Label.Render(fmt.Sprintf("%-*s", width, syl))
	}
	body := strings.Join(top, " ")
	if hasSyllables(syllables) {
		body += "\n" + strings.Join(bottom, " ")
	}
	return st.Measure.Render(body)
}

func hasSyllables(s []string) bool {
	for _, v := range s {
		if v != "" {
			return true
		}
	}
	return false
}

// renderPattern prints the measures of p side by side, perRow to a line.
func renderPattern(st gridStyles, p *pattern.Pattern, perRow int) string {
	if perRow <= 0 {
		perRow = 4
	}
	syllables := notation.Syllables(p, p.Settings.CountingSystem)
	var rows []string
	for start := 0; start < len(p.Measures); start += perRow {
		end := min(start+perRow, len(p.Measures))
		boxes := make([]string, 0, end-start)
		for i := start; i < end; i++ {
			boxes = append(boxes, renderMeasure(st, p.Measures[i].Events, syllables[i]))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func renderHeader(st gridStyles, s pattern.Settings) string {
	return st.Title.Render(fmt.Sprintf("%s  %d BPM  %s", s.TimeSignature, s.Tempo, s.Sound)) +
		"  " + st.Label.Render(notation.CountingSystemName(s.CountingSystem))
}

func renderEnsemble(st gridStyles, e *ensemble.Ensemble, perRow int) string {
	blocks := []string{st.Title.Render(ensemble.ModeDisplayName(e.Mode))}
	for i, part := range e.Parts {
		label := fmt.Sprintf("%d. %s (%s)", i+1, part.Label, part.Sound)
		switch {
		case part.Muted:
			label += " [muted]"
		case part.Soloed:
			label += " [solo]"
		}
		blocks = append(blocks, st.Label.Render(label), renderPattern(st, part.Pattern, perRow))
	}
	return lipgloss.JoinVertical(lipgloss.Left, blocks...)
}
