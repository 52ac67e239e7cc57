// Package notify carries harvest notifications from the worker to whoever
// is watching: a UI, a log, an HTTP status endpoint, or a NATS subject.
//
// Observers are called synchronously on the worker's goroutine, in emission
// order. A progress event is only emitted after its records are in the
// accumulator, so observers never see progress ahead of data.
package notify

import (
	"sync"
	"time"

	"flickrharvest/pkg/dataset"
)

// Kind names a notification
type Kind string

const (
	KindMessage  Kind = "message"
	KindError    Kind = "error"
	KindProgress Kind = "progress"
	KindTotal    Kind = "total"
	KindFinished Kind = "finished"
)

// Event is one notification. Count is set for progress and total; Dataset
// is set on finished and is nil for a halted or failed run.
type Event struct {
	Kind    Kind             `json:"kind"`
	RunID   string           `json:"run_id,omitempty"`
	Text    string           `json:"text,omitempty"`
	Count   int              `json:"count,omitempty"`
	Time    time.Time        `json:"time"`
	Dataset *dataset.Dataset `json:"-"`
}

// Observer receives events
type Observer interface {
	Notify(Event)
}

// Func adapts a function to Observer
type Func func(Event)

func (f Func) Notify(e Event) { f(e) }

// Multi fans events out to several observers in order
type Multi []Observer

func (m Multi) Notify(e Event) {
	for _, o := range m {
		if o != nil {
			o.Notify(e)
		}
	}
}

// Nop discards events
type Nop struct{}

func (Nop) Notify(Event) {}

// ChannelObserver forwards events to a buffered channel. When the buffer is
// full, progress events are dropped; every other kind blocks.
type ChannelObserver struct {
	ch     chan Event
	once   sync.Once
	closed bool
	mu     sync.Mutex
}

// NewChannelObserver creates an observer with the given buffer
func NewChannelObserver(buffer int) *ChannelObserver {
	return &ChannelObserver{ch: make(chan Event, buffer)}
}

// Events is the receive side
func (c *ChannelObserver) Events() <-chan Event { return c.ch }

func (c *ChannelObserver) Notify(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if e.Kind == KindProgress {
		select {
		case c.ch <- e:
		default:
		}
		return
	}
	c.ch <- e
}

// Close closes the channel; later events are discarded
func (c *ChannelObserver) Close() {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.ch)
		c.mu.Unlock()
	})
}

// Recorder keeps every event in memory
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Notify(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of what was recorded
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Of returns the recorded events of one kind
func (r *Recorder) Of(kind Kind) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
