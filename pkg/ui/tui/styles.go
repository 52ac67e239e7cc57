package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette
var (
	ocean  = lipgloss.Color("#3FA7D6")
	moss   = lipgloss.Color("#59CD90")
	sand   = lipgloss.Color("#FAC05E")
	sunset = lipgloss.Color("#F79D84")
	ember  = lipgloss.Color("#EE6352")
	night  = lipgloss.Color("#0B1D2A")
	dusk   = lipgloss.Color("#16324A")
	fog    = lipgloss.Color("#C2CCD6")
	slate  = lipgloss.Color("#5C6F7E")
)

var (
	baseStyle = lipgloss.NewStyle().Background(night).Foreground(fog)

	logoStyle = lipgloss.NewStyle().
			Foreground(ocean).
			Bold(true).
			Padding(1, 0).
			Align(lipgloss.Center)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ocean).
			Background(dusk).
			Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
			Background(ocean).
			Foreground(night).
			Bold(true).
			Padding(0, 1)

	statsLabelStyle = lipgloss.NewStyle().Foreground(ocean).Bold(true)
	statsValueStyle = lipgloss.NewStyle().Foreground(sand)
	speedStyle      = lipgloss.NewStyle().Foreground(moss)

	successStyle = lipgloss.NewStyle().Foreground(moss).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(sunset).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(ember).Bold(true)

	logTimestampStyle = lipgloss.NewStyle().Foreground(slate)
	logMessageStyle   = lipgloss.NewStyle().Foreground(fog)

	helpStyle = lipgloss.NewStyle().Foreground(slate).Padding(1, 0, 0, 2)
)

// GetProgressBarStyle colours the percentage label under the bar
func GetProgressBarStyle(percentage float64) lipgloss.Style {
	s := lipgloss.NewStyle().Bold(true)
	switch {
	case percentage >= 100:
		return s.Foreground(moss)
	case percentage >= 50:
		return s.Foreground(sand)
	default:
		return s.Foreground(sunset)
	}
}

// GetPhaseStyle colours the harvest phase
func GetPhaseStyle(p Phase) lipgloss.Style {
	switch p {
	case PhaseFinished:
		return successStyle
	case PhaseHalted:
		return warningStyle
	case PhaseFailed:
		return errorStyle
	default:
		return statsValueStyle
	}
}

// GetSplitStyle shades the split counter as partitioning gets deeper
func GetSplitStyle(splits int) lipgloss.Style {
	switch {
	case splits >= 100:
		return errorStyle
	case splits >= 10:
		return warningStyle
	default:
		return successStyle
	}
}
