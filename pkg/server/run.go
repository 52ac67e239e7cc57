package server

import (
	"sync"
	"time"

	"flickrharvest/pkg/dataset"
	"flickrharvest/pkg/harvester"
	"flickrharvest/pkg/notify"
)

// maxMessages bounds the message log kept per run
const maxMessages = 500

// run tracks one harvest started through the API. It is the harvester's
// observer, so its counters only move after the worker has appended data.
type run struct {
	id        string
	started   time.Time
	harvester *harvester.Harvester

	mu       sync.Mutex
	total    int
	progress int
	messages []string
	errors   []string
	dataset  *dataset.Dataset
	ended    time.Time
	err      error
}

func (r *run) Notify(e notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e.Kind {
	case notify.KindMessage:
		r.messages = append(r.messages, e.Text)
		if len(r.messages) > maxMessages {
			r.messages = r.messages[len(r.messages)-maxMessages:]
		}
	case notify.KindError:
		r.errors = append(r.errors, e.Text)
	case notify.KindTotal:
		r.total = e.Count
	case notify.KindProgress:
		r.progress = e.Count
	case notify.KindFinished:
		r.dataset = e.Dataset
		r.ended = e.Time
	}
}

func (r *run) finish(res harvester.Result) {
	r.mu.Lock()
	r.err = res.Err
	if r.ended.IsZero() {
		r.ended = time.Now()
	}
	r.mu.Unlock()
}

// Status is the JSON view of a run
type Status struct {
	ID        string     `json:"id"`
	State     string     `json:"state"`
	Total     int        `json:"total"`
	Progress  int        `json:"progress"`
	Records   *int       `json:"records,omitempty"`
	Started   time.Time  `json:"started"`
	Ended     *time.Time `json:"ended,omitempty"`
	Messages  []string   `json:"messages,omitempty"`
	Errors    []string   `json:"errors,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

func (r *run) status(withMessages bool) Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := Status{
		ID:       r.id,
		State:    r.harvester.State().String(),
		Total:    r.total,
		Progress: r.progress,
		Started:  r.started,
		Errors:   append([]string(nil), r.errors...),
	}
	if withMessages {
		st.Messages = append([]string(nil), r.messages...)
	}
	if r.dataset != nil {
		n := r.dataset.Len()
		st.Records = &n
	}
	if !r.ended.IsZero() {
		ended := r.ended
		st.Ended = &ended
	}
	if r.err != nil {
		st.LastError = r.err.Error()
	}
	return st
}

func (r *run) result() *dataset.Dataset {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dataset
}
