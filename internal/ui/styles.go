package ui

import "github.com/charmbracelet/lipgloss"

// Palette: default text, a soft purple accent for ids and highlights, gray
// for secondary info. Status is shown with symbols, not colour.
var (
	Accent     = lipgloss.NewStyle().Foreground(lipgloss.Color("#A78BFA"))
	Muted      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
	Bold       = lipgloss.NewStyle().Bold(true)
	AccentBold = lipgloss.NewStyle().Foreground(lipgloss.Color("#A78BFA")).Bold(true)
)
