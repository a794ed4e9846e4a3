package session

import "errors"

var (
	// ErrSessionActive is returned by Start when the learner already has
	// an active session. Expected under multi-device use; the caller
	// decides how to resolve it.
	ErrSessionActive = errors.New("session: session already active for learner")

	// ErrNoSession is returned when an operation targets a learner with
	// no active session (never started, or already ended/expired).
	ErrNoSession = errors.New("session: no active session for learner")

	// ErrOutOfOrder is returned when a submitted outcome does not match
	// the card at the cursor. No state changes; the caller may re-fetch
	// the current card and resubmit.
	ErrOutOfOrder = errors.New("session: outcome does not match current card")

	// ErrQueueExhausted signals that every card in the session snapshot
	// has been served. It is a terminal signal, not a failure.
	ErrQueueExhausted = errors.New("session: queue exhausted")
)
