package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// View renders the entire TUI
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, m.renderLogo())

	mainContent := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderLeftColumn(),
		"  ",
		m.renderRightColumn(),
	)
	sections = append(sections, mainContent)

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("Press ? for help"))
	}

	return baseStyle.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

func (m *Model) renderLogo() string {
	logo := `
╔══════════════════════════════════════════════════════╗
║   F L I C K R   H A R V E S T                        ║
║   geotagged photo metadata, one box at a time        ║
╚══════════════════════════════════════════════════════╝`

	return logoStyle.Width(m.width).Render(logo)
}

func (m *Model) renderLeftColumn() string {
	width := (m.width - 4) / 2
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatsPanel(width),
		m.renderProgressPanel(width),
	)
}

func (m *Model) renderRightColumn() string {
	width := (m.width - 4) / 2
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderRegionPanel(width),
		m.renderLogsPanel(width),
	)
}

// renderStatsPanel shows phase, counts and throughput
func (m *Model) renderStatsPanel(width int) string {
	title := titleStyle.Render(" HARVEST ")

	phase := GetPhaseStyle(m.phase).Render(m.phase.String())
	if !m.phase.Done() {
		phase = m.spinner.View() + " " + phase
	}
	if m.cancelling && !m.phase.Done() {
		phase += warningStyle.Render("  (cancelling)")
	}

	stats := []string{
		fmt.Sprintf("%s %s", statsLabelStyle.Render("State:"), phase),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Elapsed:"), statsValueStyle.Render(formatDuration(m.elapsed()))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Fetched:"), statsValueStyle.Render(fmt.Sprintf("%d of %d", m.progress, m.total))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Rate:"), speedStyle.Render(FormatRate(m.Rate()))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("ETA:"), statsValueStyle.Render(formatDuration(m.ETA()))),
	}
	if m.hasRecords {
		stats = append(stats, fmt.Sprintf("%s %s", statsLabelStyle.Render("Records:"),
			successStyle.Render(fmt.Sprintf("%d unique", m.records))))
	}
	if m.errors > 0 {
		stats = append(stats, errorStyle.Render(m.lastError))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, stats...)),
	)
}

func (m *Model) renderProgressPanel(width int) string {
	title := titleStyle.Render(" PROGRESS ")
	fraction := m.Fraction()

	bar := m.bar.ViewAs(fraction)
	label := GetProgressBarStyle(fraction * 100).Render(fmt.Sprintf("%.0f%%", fraction*100))

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, bar, label),
	)
}

// renderRegionPanel shows the root box and how often it was divided
func (m *Model) renderRegionPanel(width int) string {
	title := titleStyle.Render(" REGION ")

	area := m.area
	if area == "" {
		area = "-"
	}
	run := m.runID
	if run == "" {
		run = "-"
	}

	content := []string{
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Run:"), statsValueStyle.Render(run)),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Box:"), statsValueStyle.Render(area)),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Splits:"), GetSplitStyle(m.splits).Render(fmt.Sprintf("%d", m.splits))),
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(content, "\n")),
	)
}

func (m *Model) renderLogsPanel(width int) string {
	title := titleStyle.Render(" LOG ")

	start := max(len(m.logMessages)-10, 0)

	var logs []string
	for _, log := range m.logMessages[start:] {
		timestamp := logTimestampStyle.Render(log.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(log.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", log.Level))

		text := log.Message
		if maxLen := width - 25; maxLen > 3 && len(text) > maxLen {
			text = text[:maxLen-3] + "..."
		}
		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, logMessageStyle.Render(text)))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = lipgloss.NewStyle().Foreground(fog).Render("No messages yet...")
	}

	logsHeight := max(m.height-30, 5)

	return panelStyle.Width(width).Height(logsHeight).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

func (m *Model) renderHelp() string {
	help := `
  Keys:
    c/C      - Cancel the harvest (partial results are discarded)
    q/Q      - Cancel if running, then quit
    ctrl+l   - Clear the log
    ?        - Toggle this help

  States:
    ` + successStyle.Render("Green") + `    - Finished
    ` + warningStyle.Render("Orange") + `   - Halted
    ` + errorStyle.Render("Red") + `      - Failed
`

	return panelStyle.Width(m.width).Render(help)
}

// formatDuration formats a duration as mm:ss or hh:mm:ss
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "00:00"
	}

	h := int(d.Hours())
	mins := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, mins, s)
	}
	return fmt.Sprintf("%02d:%02d", mins, s)
}
