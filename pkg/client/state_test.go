package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "reconnecting", StateReconnecting.String())
}

func TestRetryBudgetExhaustionDropsToDisconnected(t *testing.T) {
	m := newStateMachine(3, nil)

	for i := 0; i < 3; i++ {
		assert.True(t, m.nextAttempt())
		assert.Equal(t, StateReconnecting, m.current())
	}

	// Ceiling reached: automatic retries cease.
	assert.False(t, m.nextAttempt())
	assert.Equal(t, StateDisconnected, m.current())
	assert.False(t, m.nextAttempt())
}

func TestSuccessfulConnectResetsBudget(t *testing.T) {
	m := newStateMachine(2, nil)
	m.nextAttempt()
	m.nextAttempt()
	m.set(StateConnected)

	// A fresh connection restores the full budget.
	assert.True(t, m.nextAttempt())
	assert.True(t, m.nextAttempt())
	assert.False(t, m.nextAttempt())
}

func TestStateChangeCallback(t *testing.T) {
	var seen []State
	m := newStateMachine(5, func(s State) { seen = append(seen, s) })

	m.set(StateConnecting)
	m.set(StateConnected)
	m.set(StateConnected) // no change, no callback
	m.nextAttempt()

	assert.Equal(t, []State{StateConnecting, StateConnected, StateReconnecting}, seen)
}
