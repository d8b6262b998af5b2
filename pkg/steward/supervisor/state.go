// Package supervisor – state.go holds the single mutable intervention
// record and the dispatch lock discipline around it.
package supervisor

import "time"

// State is the one shared mutable record of the engine. The supervisor
// owns it exclusively: every other component only reads it.
type State struct {
	// InFlight is true for the entire duration of one dispatch. No
	// second dispatch may begin while it is set.
	InFlight bool

	// LastInterventionAt is updated only on a successful dispatch,
	// never on suppression or failure.
	LastInterventionAt time.Time

	// LastInstruction is the text most recently sent to the executor;
	// used by the echo check.
	LastInstruction string

	// LastFingerprint is the fingerprint of the content that triggered
	// the last dispatch.
	LastFingerprint string
}

// TryAcquire sets the in-flight flag. Returns false when a dispatch is
// already in flight, which the supervisor treats as an internal
// invariant violation: skip the tick, never crash.
func (s *State) TryAcquire() bool {
	if s.InFlight {
		return false
	}
	s.InFlight = true
	return true
}

// Release clears the in-flight flag. Safe to call on every exit path;
// the supervisor defers it immediately after a successful acquire so no
// failure mode can wedge the lock past the current tick.
func (s *State) Release() {
	s.InFlight = false
}
