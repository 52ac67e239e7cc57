package tui

import (
	"time"

	"flickrharvest/pkg/notify"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// EventMsg carries one harvest event into the program
type EventMsg struct {
	Event notify.Event
}

// StreamClosedMsg is sent once the event channel is closed
type StreamClosedMsg struct{}

// TickMsg is sent periodically to refresh the clock
type TickMsg time.Time

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(msg.Width/2-12, 10)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		updated, cmd := m.bar.Update(msg)
		if bar, ok := updated.(progress.Model); ok {
			m.bar = bar
		}
		return m, cmd

	case TickMsg:
		if m.phase.Done() {
			return m, nil
		}
		return m, tickCmd()

	case EventMsg:
		m.Apply(msg.Event)
		return m, waitForEvent(m.events)

	case StreamClosedMsg:
		m.events = nil
		return m, nil
	}

	return m, nil
}

// handleKeyPress handles keyboard input
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		if !m.phase.Done() && !m.cancelling {
			m.requestCancel()
		}
		return m, tea.Quit

	case "c", "C":
		if !m.phase.Done() && !m.cancelling {
			m.requestCancel()
		}
		return m, nil

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		m.logMessages = []LogMessage{}
		return m, nil
	}

	return m, nil
}

func (m *Model) requestCancel() {
	m.cancelling = true
	m.AddLogMessage("WARN", "cancel requested by user")
	m.cancel()
}

// Commands

// waitForEvent blocks on the next harvest event
func waitForEvent(events <-chan notify.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return StreamClosedMsg{}
		}
		return EventMsg{Event: e}
	}
}

// tickCmd returns a command that sends a tick message
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
