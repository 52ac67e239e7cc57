package tui

import (
	"fmt"
	"strings"
	"time"

	"flickrharvest/pkg/notify"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Phase is what the dashboard believes the harvest is doing
type Phase int

const (
	PhaseConnecting Phase = iota
	PhaseSearching
	PhaseDraining
	PhaseFinished
	PhaseHalted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "CONNECTING"
	case PhaseSearching:
		return "SEARCHING"
	case PhaseDraining:
		return "DRAINING"
	case PhaseFinished:
		return "FINISHED"
	case PhaseHalted:
		return "HALTED"
	case PhaseFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Done reports whether the harvest has ended
func (p Phase) Done() bool { return p >= PhaseFinished }

// Model is the harvest dashboard
type Model struct {
	spinner spinner.Model
	bar     progress.Model

	events <-chan notify.Event
	cancel func()

	// Harvest state
	runID      string
	area       string
	phase      Phase
	total      int
	progress   int
	records    int
	hasRecords bool
	splits     int
	errors     int
	lastError  string
	started    time.Time
	ended      time.Time

	// UI state
	width          int
	height         int
	showHelp       bool
	cancelling     bool
	logMessages    []LogMessage
	maxLogMessages int
}

// LogMessage is one line of the log panel
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// NewModel creates a dashboard reading from events. cancel is called when
// the user asks the harvest to stop; area labels the region being
// harvested.
func NewModel(events <-chan notify.Event, cancel func(), area string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ocean)

	bar := progress.New(progress.WithGradient(string(ocean), string(moss)))
	bar.Width = 40

	if cancel == nil {
		cancel = func() {}
	}

	return Model{
		spinner:        s,
		bar:            bar,
		events:         events,
		cancel:         cancel,
		area:           area,
		started:        time.Now(),
		maxLogMessages: 50,
	}
}

// Init starts the spinner, the clock and the event pump
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd(), waitForEvent(m.events))
}

// Apply folds one harvest event into the model
func (m *Model) Apply(e notify.Event) {
	if m.runID == "" {
		m.runID = e.RunID
	}

	switch e.Kind {
	case notify.KindTotal:
		m.total = e.Count
		m.progress = 0
		if m.phase == PhaseConnecting {
			m.phase = PhaseSearching
		}
	case notify.KindProgress:
		m.progress = e.Count
	case notify.KindMessage:
		m.applyMessage(e.Text)
	case notify.KindError:
		m.errors++
		m.lastError = e.Text
		m.AddLogMessage("ERROR", e.Text)
	case notify.KindFinished:
		m.ended = time.Now()
		switch {
		case e.Dataset != nil:
			m.phase = PhaseFinished
			m.records = e.Dataset.Len()
			m.hasRecords = true
			m.AddLogMessage("SUCCESS", fmt.Sprintf("harvest finished with %d records", m.records))
		case m.errors > 0:
			m.phase = PhaseFailed
		default:
			m.phase = PhaseHalted
			m.AddLogMessage("WARN", "harvest halted")
		}
	}
}

func (m *Model) applyMessage(text string) {
	level := "INFO"
	switch {
	case text == "Connection OK":
		m.phase = PhaseSearching
		level = "SUCCESS"
	case strings.Contains(text, "dividing"):
		m.splits++
	case strings.HasPrefix(text, "Finished downloading"):
		m.phase = PhaseDraining
		level = "SUCCESS"
	case strings.HasPrefix(text, "fetched page"):
		level = "DEBUG"
	case text == "worker halted forcefully":
		level = "WARN"
	}
	m.AddLogMessage(level, text)
}

// AddLogMessage appends to the log panel, keeping the newest entries
func (m *Model) AddLogMessage(level, message string) {
	color := fog
	switch level {
	case "ERROR":
		color = ember
	case "WARN":
		color = sunset
	case "SUCCESS":
		color = moss
	case "INFO":
		color = ocean
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   color,
	})
	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// Fraction is progress over total, in [0, 1]
func (m *Model) Fraction() float64 {
	if m.total <= 0 {
		if m.phase == PhaseFinished {
			return 1
		}
		return 0
	}
	return min(float64(m.progress)/float64(m.total), 1)
}

// Phase returns the current phase
func (m *Model) Phase() Phase { return m.phase }

// Counts returns progress, total and the number of spatial or temporal
// splits seen so far.
func (m *Model) Counts() (progress, total, splits int) {
	return m.progress, m.total, m.splits
}

// Rate is records per second since the dashboard started
func (m *Model) Rate() float64 {
	elapsed := m.elapsed().Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(m.progress) / elapsed
}

// ETA estimates the time left for the current progress counter
func (m *Model) ETA() time.Duration {
	rate := m.Rate()
	if rate <= 0 || m.total <= m.progress {
		return 0
	}
	return time.Duration(float64(m.total-m.progress)/rate) * time.Second
}

func (m *Model) elapsed() time.Duration {
	if !m.ended.IsZero() {
		return m.ended.Sub(m.started)
	}
	return time.Since(m.started)
}

// FormatRate formats a records-per-second figure
func FormatRate(perSecond float64) string {
	if perSecond >= 1 || perSecond == 0 {
		return fmt.Sprintf("%.1f rec/s", perSecond)
	}
	return fmt.Sprintf("%.1f rec/min", perSecond*60)
}
