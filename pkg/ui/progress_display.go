package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"flickrharvest/pkg/notify"
)

// ProgressDisplay renders harvest events as a single updating progress
// line plus the harvester's status messages. It implements notify.Observer.
type ProgressDisplay struct {
	mu        sync.Mutex
	out       io.Writer
	label     string
	total     int
	progress  int
	pages     int
	errors    int
	startTime time.Time
	isDebug   bool
	onLine    bool
}

// NewProgressDisplay creates a display labelled with the harvested box.
// In debug mode every page message is printed on its own line.
func NewProgressDisplay(label string, debug bool) *ProgressDisplay {
	return NewProgressDisplayTo(os.Stdout, label, debug)
}

// NewProgressDisplayTo writes to out instead of stdout
func NewProgressDisplayTo(out io.Writer, label string, debug bool) *ProgressDisplay {
	return &ProgressDisplay{
		out:       out,
		label:     label,
		startTime: time.Now(),
		isDebug:   debug,
	}
}

// Notify implements notify.Observer
func (p *ProgressDisplay) Notify(e notify.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e.Kind {
	case notify.KindTotal:
		p.total = e.Count
		p.progress = 0
	case notify.KindProgress:
		p.progress = e.Count
		p.printProgress()
	case notify.KindMessage:
		p.message(e.Text)
	case notify.KindError:
		p.errors++
		p.println(Red("✗ " + e.Text))
	case notify.KindFinished:
		p.complete(e)
	}
}

func (p *ProgressDisplay) message(text string) {
	switch {
	case strings.HasPrefix(text, "fetched page"):
		p.pages++
		if p.isDebug {
			p.println(Dim(text))
		}
	case strings.Contains(text, "dividing"):
		p.println(Magenta("→ ") + text)
	case text == "Connection OK":
		p.println(Green("✓ ") + text)
	case text == "worker halted forcefully" || text == "no results":
		p.println(Yellow("⚠ ") + text)
	default:
		p.println(Cyan("• ") + text)
	}
}

// printProgress redraws the progress line in place
func (p *ProgressDisplay) printProgress() {
	fraction := 0.0
	if p.total > 0 {
		fraction = min(float64(p.progress)/float64(p.total), 1)
	}
	barWidth := 20
	filled := int(fraction * float64(barWidth))
	bar := strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)

	elapsed := time.Since(p.startTime)
	rate := 0.0
	if elapsed > 0 {
		rate = float64(p.progress) / elapsed.Minutes()
	}

	line := fmt.Sprintf("%s [%s] %d/%d • %.0f/min • %d pages • %s",
		Cyan(p.label),
		bar,
		p.progress,
		p.total,
		rate,
		p.pages,
		p.calculateETA(),
	)
	if p.errors > 0 {
		line += fmt.Sprintf(" • %s", Red(fmt.Sprintf("%d errors", p.errors)))
	}

	fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", 120), line)
	p.onLine = true
}

// println ends the progress line before printing text
func (p *ProgressDisplay) println(text string) {
	if p.onLine {
		fmt.Fprintln(p.out)
		p.onLine = false
	}
	fmt.Fprintln(p.out, text)
}

func (p *ProgressDisplay) complete(e notify.Event) {
	elapsed := time.Since(p.startTime)

	if e.Dataset == nil {
		p.println(Yellow(fmt.Sprintf("Harvest of %s ended without a dataset after %s", p.label, p.formatDuration(elapsed))))
		return
	}

	ds := e.Dataset
	p.println("")
	p.println(fmt.Sprintf("%s %d unique records from %s", Green("✓"), ds.Len(), p.label))
	p.println(fmt.Sprintf("  %s %d fetched, %d duplicates removed, %d pages in %s",
		Dim("•"),
		ds.Harvested,
		ds.DuplicatesRemoved,
		p.pages,
		p.formatDuration(elapsed),
	))
	if p.errors > 0 {
		p.println(fmt.Sprintf("  %s %d errors", Dim("•"), p.errors))
	}
}

// calculateETA estimates time remaining
func (p *ProgressDisplay) calculateETA() string {
	if p.progress == 0 || p.total <= p.progress {
		return "calculating..."
	}

	rate := float64(p.progress) / time.Since(p.startTime).Seconds()
	if rate == 0 {
		return "calculating..."
	}
	eta := time.Duration(float64(p.total-p.progress)/rate) * time.Second
	return p.formatDuration(eta)
}

// formatDuration formats a duration in a human-readable way
func (p *ProgressDisplay) formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
