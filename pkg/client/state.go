package client

import "sync"

// State is the connection lifecycle state visible to the application.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// stateMachine tracks the connection state and the automatic-retry budget.
// Once the budget is exhausted it settles in disconnected and stays there
// until a fresh external Connect resets it.
type stateMachine struct {
	mu          sync.Mutex
	state       State
	attempts    int
	maxAttempts int
	onChange    func(State)
}

func newStateMachine(maxAttempts int, onChange func(State)) *stateMachine {
	return &stateMachine{
		state:       StateDisconnected,
		maxAttempts: maxAttempts,
		onChange:    onChange,
	}
}

func (m *stateMachine) current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *stateMachine) set(s State) {
	m.mu.Lock()
	changed := m.state != s
	m.state = s
	if s == StateConnected || s == StateConnecting {
		m.attempts = 0
	}
	onChange := m.onChange
	m.mu.Unlock()

	if changed && onChange != nil {
		onChange(s)
	}
}

// nextAttempt consumes one retry from the budget. It returns false when the
// ceiling is reached, at which point the machine drops to disconnected.
func (m *stateMachine) nextAttempt() bool {
	m.mu.Lock()
	if m.attempts >= m.maxAttempts {
		m.mu.Unlock()
		m.set(StateDisconnected)
		return false
	}
	m.attempts++
	m.mu.Unlock()
	m.set(StateReconnecting)
	return true
}
