package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState_Transitions(t *testing.T) {
	cases := []struct {
		from, to State
		ok       bool
	}{
		{StateEntering, StateValidatingContact, true},
		{StateEntering, StateInvalidEntry, true},
		{StateValidatingContact, StateAwaitingBooking, true},
		{StateAwaitingBooking, StateAwaitingPayment, true},
		{StateAwaitingBooking, StateValidatingContact, true},
		{StateAwaitingPayment, StateRedirected, true},
		{StateAwaitingPayment, StateFailed, true},

		{StateValidatingContact, StateAwaitingPayment, false},
		{StateEntering, StateAwaitingBooking, false},
		{StateAwaitingPayment, StateValidatingContact, false},
		{StateRedirected, StateValidatingContact, false},
		{StateInvalidEntry, StateValidatingContact, false},
		{StateFailed, StateEntering, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestState_FailedReachableFromEveryNonTerminal(t *testing.T) {
	for _, s := range []State{StateEntering, StateValidatingContact, StateAwaitingBooking, StateAwaitingPayment} {
		assert.False(t, s.IsTerminal())
		assert.True(t, s.CanTransitionTo(StateFailed), s.String())
	}
	for _, s := range []State{StateRedirected, StateFailed, StateInvalidEntry} {
		assert.True(t, s.IsTerminal())
	}
}
