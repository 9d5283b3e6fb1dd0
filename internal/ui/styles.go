package ui

import "github.com/charmbracelet/lipgloss"

// ANSI 16-color palette so output stays legible on any terminal theme.
var (
	ColorCyan   = lipgloss.Color("6")
	ColorYellow = lipgloss.Color("3")
	ColorRed    = lipgloss.Color("1")
	ColorGreen  = lipgloss.Color("2")
	ColorGray   = lipgloss.Color("8")
)

var (
	// Progress lines ("Provisioning...", "Draining...")
	StatusStyle = lipgloss.NewStyle().Foreground(ColorGray).Italic(true)

	ErrorStyle   = lipgloss.NewStyle().Foreground(ColorRed).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(ColorYellow)
	SuccessStyle = lipgloss.NewStyle().Foreground(ColorGreen)
	MutedStyle   = lipgloss.NewStyle().Foreground(ColorGray)

	// Field names in key/value output
	LabelStyle = lipgloss.NewStyle().Foreground(ColorCyan).Bold(true)

	// Log group/stream identities
	StreamStyle = lipgloss.NewStyle().Foreground(ColorYellow)

	SectionTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorCyan)
)
