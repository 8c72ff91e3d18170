package state

import (
	"fmt"
	"sync"

	"github.com/obinexus/polycall-sub002/protocol/common"
)

// --------------------------------------------------------------------------
// State Definition
// --------------------------------------------------------------------------

// State is the lifecycle state of a protocol connection.
type State int

const (
	StateInit State = iota
	StateHandshake
	StateAuth
	StateReady
	StateError
	StateClosed
)

// String returns the string representation of a State.
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateHandshake:
		return "handshake"
	case StateAuth:
		return "auth"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// legalEdges is the transition table. Closed is absent: it has no
// outbound edges. The edge to Closed is administrative and legal from
// every other state, so it is handled separately.
var legalEdges = map[State][]State{
	StateInit:      {StateHandshake, StateError},
	StateHandshake: {StateAuth, StateReady, StateError},
	StateAuth:      {StateReady, StateError},
	StateReady:     {StateError},
	StateError:     {},
}

// --------------------------------------------------------------------------
// State Machine
// --------------------------------------------------------------------------

// ChangeFunc observes a completed transition. It is invoked
// synchronously, before the call that triggered the transition returns.
type ChangeFunc func(old, new State)

// Machine drives one connection through its lifecycle. All methods are
// safe for concurrent use; observers run while the internal lock is
// held, so they must not call back into the machine.
type Machine struct {
	mu        sync.Mutex
	current   State
	observers []ChangeFunc
}

// NewMachine creates a machine in the Init state.
func NewMachine() *Machine {
	return &Machine{current: StateInit}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// OnChange registers an observer for every completed transition.
func (m *Machine) OnChange(fn ChangeFunc) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// CanTransition reports whether the edge from the current state to
// target is defined.
func (m *Machine) CanTransition(target State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return canTransition(m.current, target)
}

// TransitionTo moves the machine to target. Illegal edges fail with
// common.ErrInvalidState and leave the state unchanged; there are no
// partial transitions. Each successful transition notifies every
// observer exactly once.
func (m *Machine) TransitionTo(target State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !canTransition(m.current, target) {
		return fmt.Errorf("%w: no transition %s -> %s", common.ErrInvalidState, m.current, target)
	}

	old := m.current
	m.current = target

	for _, fn := range m.observers {
		fn(old, target)
	}

	return nil
}

// canTransition checks the edge table. Caller must hold m.mu.
func canTransition(from, to State) bool {
	if from == StateClosed {
		return false
	}
	if to == StateClosed {
		// administrative edge, legal from every non-terminal state
		return true
	}
	for _, s := range legalEdges[from] {
		if s == to {
			return true
		}
	}
	return false
}
