package harvester

import "sync/atomic"

// State is the lifecycle position of a harvest run
type State int32

const (
	StateIdle State = iota
	StateValidating
	StateRunning
	StateDraining
	StateHalted
	StateFailed
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateHalted:
		return "halted"
	case StateFailed:
		return "failed"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can happen
func (s State) Terminal() bool {
	return s == StateHalted || s == StateFailed || s == StateFinished
}

type stateBox struct {
	v atomic.Int32
}

func (b *stateBox) load() State { return State(b.v.Load()) }

func (b *stateBox) store(s State) { b.v.Store(int32(s)) }

func (b *stateBox) compareAndSwap(old, next State) bool {
	return b.v.CompareAndSwap(int32(old), int32(next))
}
