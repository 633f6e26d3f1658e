package session

import "errors"

var (
	// ErrDuplicateSession is returned when a call ID is already active.
	ErrDuplicateSession = errors.New("session: call already active")

	// ErrUnknownSession is returned for events on a call ID with no
	// active session.
	ErrUnknownSession = errors.New("session: unknown call")

	// ErrInvalidState is returned when an event arrives in a state that
	// cannot accept it, such as audio outside Listening.
	ErrInvalidState = errors.New("session: invalid state for event")

	// ErrSessionEnded is returned for events on a session that already
	// reached its terminal state.
	ErrSessionEnded = errors.New("session: call has ended")
)

// ErrKind labels the failure that forced a session to end. Recorded on
// the session for observability.
type ErrKind string

const (
	ErrKindNone          ErrKind = ""
	ErrKindTranscription ErrKind = "transcription"
	ErrKindPolicy        ErrKind = "policy"
	ErrKindSynthesis     ErrKind = "synthesis"
	ErrKindTimeout       ErrKind = "timeout"
)
