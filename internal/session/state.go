package session

// state.go implements the Offline -> Connecting -> Registered state
// machine, plus the Backoff detour on a failed handshake, exactly as drawn
// in the design notes' state diagram.
//
// © 2025 worker authors. MIT License.

import "sync/atomic"

// State is one node of the session state machine.
type State int32

const (
	StateOffline State = iota
	StateConnecting
	StateBackoff
	StateRegistered
)

func (s State) String() string {
	switch s {
	case StateOffline:
		return "offline"
	case StateConnecting:
		return "connecting"
	case StateBackoff:
		return "backoff"
	case StateRegistered:
		return "registered"
	default:
		return "unknown"
	}
}

// stateHolder is an atomically-updated State, read by health/inspection
// tooling without taking any lock.
type stateHolder struct {
	v atomic.Int32
}

func (h *stateHolder) set(s State)  { h.v.Store(int32(s)) }
func (h *stateHolder) get() State   { return State(h.v.Load()) }
