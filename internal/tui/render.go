package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	labelWidth = 28
	barWidth   = 30
	maxISBNs   = 20
)

type styles struct {
	title   lipgloss.Style
	section lipgloss.Style
	box     lipgloss.Style
	label   lipgloss.Style
	bar     lipgloss.Style
	count   lipgloss.Style
	faint   lipgloss.Style
}

func newStyles() styles {
	asciiBorder := lipgloss.Border{
		Top:         "-",
		Bottom:      "-",
		Left:        "|",
		Right:       "|",
		TopLeft:     "+",
		TopRight:    "+",
		BottomLeft:  "+",
		BottomRight: "+",
	}

	return styles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("254")),
		section: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("110")),
		box: lipgloss.NewStyle().
			Border(asciiBorder).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1),
		label: lipgloss.NewStyle().
			Width(labelWidth).
			Foreground(lipgloss.Color("252")),
		bar: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")),
		count: lipgloss.NewStyle().
			Foreground(lipgloss.Color("178")),
		faint: lipgloss.NewStyle().
			Foreground(lipgloss.Color("247")).
			Faint(true),
	}
}

// Render draws the dashboard as a string for the terminal.
func Render(d Dashboard) string {
	s := newStyles()

	header := lipgloss.JoinVertical(lipgloss.Left,
		s.title.Render("Book Data Dashboard"),
		s.faint.Render(fmt.Sprintf("%d books, %d columns", d.Rows, len(d.Columns))),
		s.faint.Render(fmt.Sprintf("enriched: publisher %d/%d, subject %d/%d",
			d.Enriched["publisher"], d.Rows, d.Enriched["subject"], d.Rows)),
	)

	authors := s.chart("Top Authors", d.TopAuthors, 0)
	isbns := s.chart("ISBN Distribution", d.ISBNDistribution, maxISBNs)

	return lipgloss.JoinVertical(lipgloss.Left,
		s.box.Render(header),
		s.box.Render(authors),
		s.box.Render(isbns),
	) + "\n"
}

func (s styles) chart(title string, counts []Count, limit int) string {
	lines := []string{s.section.Render(title)}
	if len(counts) == 0 {
		lines = append(lines, s.faint.Render("No data"))
		return strings.Join(lines, "\n")
	}

	shown := counts
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}

	maxN := 0
	for _, c := range shown {
		if c.N > maxN {
			maxN = c.N
		}
	}

	for _, c := range shown {
		width := 1
		if maxN > 0 {
			width = c.N * barWidth / maxN
			if width < 1 {
				width = 1
			}
		}
		line := lipgloss.JoinHorizontal(lipgloss.Top,
			s.label.Render(truncate(c.Label, labelWidth-1)),
			s.bar.Render(strings.Repeat("#", width)),
			" ",
			s.count.Render(fmt.Sprintf("%d", c.N)),
		)
		lines = append(lines, line)
	}
	if hidden := len(counts) - len(shown); hidden > 0 {
		lines = append(lines, s.faint.Render(fmt.Sprintf("... %d more", hidden)))
	}
	return strings.Join(lines, "\n")
}

func truncate(value string, width int) string {
	value = strings.Join(strings.Fields(value), " ")
	if width <= 0 || len(value) <= width {
		return value
	}
	if width <= 3 {
		return value[:width]
	}
	return value[:width-3] + "..."
}
