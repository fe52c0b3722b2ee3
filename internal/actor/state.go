package actor

// State is the session lifecycle position
type State string

const (
	// StateLoggedOut means no portal session exists
	StateLoggedOut State = "logged_out"
	// StateLoggingIn means a login attempt is in flight
	StateLoggingIn State = "logging_in"
	// StateActive means the portal session is authenticated and usable
	StateActive State = "active"
	// StateDegraded means the session looks expired and needs recovery
	StateDegraded State = "degraded"
)

// validTransitions is the complete transition table. Anything not listed
// is a programming error.
var validTransitions = map[State][]State{
	StateLoggedOut: {StateLoggingIn},
	StateLoggingIn: {StateActive, StateLoggedOut},
	StateActive:    {StateDegraded, StateLoggedOut},
	StateDegraded:  {StateLoggingIn, StateLoggedOut},
}

func canTransition(from, to State) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
