package main

import "github.com/charmbracelet/lipgloss"

var (
	colorOK    = lipgloss.Color("#2E9E44")
	colorWarn  = lipgloss.Color("#E08A00")
	colorError = lipgloss.Color("#D0312D")
	colorDim   = lipgloss.Color("#7A7A7A")
)

var (
	styleTitle  = lipgloss.NewStyle().Bold(true).Underline(true)
	styleOK     = lipgloss.NewStyle().Foreground(colorOK).Bold(true)
	styleWarn   = lipgloss.NewStyle().Foreground(colorWarn).Bold(true)
	styleError  = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	styleDim    = lipgloss.NewStyle().Foreground(colorDim)
	styleHeader = lipgloss.NewStyle().Bold(true)
	styleCell   = lipgloss.NewStyle()
)

// table renders rows as left-aligned columns. Column widths come from the
// widest cell, measured the way the terminal will show it.
func table(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	lines := make([]string, 0, len(rows)+1)
	cells := make([]string, len(header))
	for i, h := range header {
		cells[i] = styleHeader.Width(widths[i] + 2).Render(h)
	}
	lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	for _, row := range rows {
		cells := make([]string, len(header))
		for i := range header {
			v := ""
			if i < len(row) {
				v = row[i]
			}
			cells[i] = styleCell.Width(widths[i] + 2).Render(v)
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
