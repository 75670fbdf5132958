package checkout

// State is the single authoritative position of one booking attempt.
type State string

const (
	StateEntering          State = "ENTERING"
	StateValidatingContact State = "VALIDATING_CONTACT"
	StateAwaitingBooking   State = "AWAITING_BOOKING_CREATION"
	StateAwaitingPayment   State = "AWAITING_PAYMENT"
	StateRedirected        State = "REDIRECTED"
	StateFailed            State = "FAILED"
	StateInvalidEntry      State = "INVALID_ENTRY"
)

// A failed booking call returns to contact entry with the form intact.
var transitions = map[State][]State{
	StateEntering:          {StateValidatingContact, StateInvalidEntry, StateFailed},
	StateValidatingContact: {StateAwaitingBooking, StateFailed},
	StateAwaitingBooking:   {StateAwaitingPayment, StateValidatingContact, StateFailed},
	StateAwaitingPayment:   {StateRedirected, StateFailed},
}

func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s State) IsTerminal() bool {
	return s == StateRedirected || s == StateFailed || s == StateInvalidEntry
}

func (s State) String() string {
	return string(s)
}
