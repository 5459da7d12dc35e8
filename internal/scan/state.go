package scan

import (
	"fmt"
)

// State is a step of one attempt's lifecycle.
type State int

// Lifecycle states.
const (
	StateIdle State = iota
	StateSubmitted
	StateDecoding
	StateReconstructing
	StateResolved
	StateFailed
)

var stateNames = [...]string{"idle", "submitted", "decoding", "reconstructing", "resolved", "failed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transition is allowed.
func (s State) Terminal() bool {
	return s == StateResolved || s == StateFailed
}

// transitions lists forward edges. Any non-terminal state may also move to
// StateFailed.
var transitions = map[State][]State{
	StateIdle:           {StateSubmitted},
	StateSubmitted:      {StateDecoding, StateResolved},
	StateDecoding:       {StateResolved, StateReconstructing},
	StateReconstructing: {StateResolved},
}

// Machine tracks a single attempt. It is not safe for concurrent use; each
// attempt owns its own machine.
type Machine struct {
	state State
	path  []State
}

// NewMachine starts in StateIdle.
func NewMachine() *Machine {
	return &Machine{state: StateIdle, path: []State{StateIdle}}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Path returns the visited states in order.
func (m *Machine) Path() []State {
	out := make([]State, len(m.path))
	copy(out, m.path)
	return out
}

// To moves to next or returns ErrIllegalTransition.
func (m *Machine) To(next State) error {
	if !m.allowed(next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, m.state, next)
	}
	m.state = next
	m.path = append(m.path, next)
	return nil
}

func (m *Machine) allowed(next State) bool {
	if m.state.Terminal() {
		return false
	}
	if next == StateFailed {
		return m.state != StateIdle
	}
	for _, s := range transitions[m.state] {
		if s == next {
			return true
		}
	}
	return false
}
