package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Table renders rows aligned on columns without borders. Cell widths are
// measured with lipgloss so styled cells align too.
type Table struct {
	rows      [][]string
	colWidths []int
	padding   int
}

// NewTable creates a table with cols columns.
func NewTable(cols int) *Table {
	return &Table{colWidths: make([]int, cols), padding: 2}
}

// AddRow adds a row. Missing cells are blank and extra cells are dropped.
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.colWidths))
	for i := 0; i < len(row) && i < len(cells); i++ {
		row[i] = cells[i]
		if w := lipgloss.Width(cells[i]); w > t.colWidths[i] {
			t.colWidths[i] = w
		}
	}
	t.rows = append(t.rows, row)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Render lays the table out within width columns, truncating the last
// column when needed. width <= 0 disables truncation.
func (t *Table) Render(width int) string {
	if len(t.rows) == 0 {
		return ""
	}

	var sb strings.Builder
	pad := strings.Repeat(" ", t.padding)
	for _, row := range t.rows {
		used := 0
		for i, cell := range row {
			if i > 0 {
				sb.WriteString(pad)
				used += t.padding
			}
			if i < len(row)-1 {
				sb.WriteString(cell)
				sb.WriteString(strings.Repeat(" ", t.colWidths[i]-lipgloss.Width(cell)))
				used += t.colWidths[i]
				continue
			}
			if width > 0 && used+lipgloss.Width(cell) > width {
				cell = truncate(cell, width-used)
			}
			sb.WriteString(cell)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// String renders the table without truncation.
func (t *Table) String() string {
	return t.Render(0)
}

func truncate(s string, max int) string {
	if max <= 1 {
		return "…"
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
