package tui

import (
	"context"
	"io"

	"flickrharvest/pkg/notify"

	tea "github.com/charmbracelet/bubbletea"
)

// TUI is the full-screen harvest dashboard. Hand Observer to the harvester
// and call Run on the main goroutine.
type TUI struct {
	program  *tea.Program
	model    *Model
	observer *notify.ChannelObserver
}

// Option tweaks the underlying program
type Option func(*options)

type options struct {
	altScreen bool
	input     io.Reader
	output    io.Writer
	ctx       context.Context
}

// WithoutAltScreen renders inline instead of taking over the terminal
func WithoutAltScreen() Option { return func(o *options) { o.altScreen = false } }

// WithIO replaces the terminal with explicit streams
func WithIO(in io.Reader, out io.Writer) Option {
	return func(o *options) { o.input, o.output = in, out }
}

// WithContext stops the program when ctx is done
func WithContext(ctx context.Context) Option { return func(o *options) { o.ctx = ctx } }

// NewTUI creates a dashboard for one harvest. cancel is invoked when the
// user asks to stop; area labels the region.
func NewTUI(cancel func(), area string, opts ...Option) *TUI {
	o := options{altScreen: true}
	for _, opt := range opts {
		opt(&o)
	}

	observer := notify.NewChannelObserver(256)
	model := NewModel(observer.Events(), cancel, area)

	var programOpts []tea.ProgramOption
	if o.altScreen {
		programOpts = append(programOpts, tea.WithAltScreen())
	}
	if o.input != nil {
		programOpts = append(programOpts, tea.WithInput(o.input))
	}
	if o.output != nil {
		programOpts = append(programOpts, tea.WithOutput(o.output))
	}
	if o.ctx != nil {
		programOpts = append(programOpts, tea.WithContext(o.ctx))
	}

	return &TUI{
		program:  tea.NewProgram(&model, programOpts...),
		model:    &model,
		observer: observer,
	}
}

// Observer receives the harvest's events
func (t *TUI) Observer() notify.Observer { return t.observer }

// Run blocks until the user quits. Events arriving afterwards are drained
// so the harvester never blocks on a closed dashboard.
func (t *TUI) Run() error {
	_, err := t.program.Run()
	go func() {
		for range t.observer.Events() {
		}
	}()
	return err
}

// Close ends the event stream; the dashboard stays up until the user quits
func (t *TUI) Close() {
	t.observer.Close()
}

// Stop quits the program
func (t *TUI) Stop() {
	t.program.Quit()
}
