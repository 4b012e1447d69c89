package session

import (
	"errors"
)

// ErrInvalidTransition is returned when a connection is asked to move to a
// state it cannot reach from its current one.
var ErrInvalidTransition = errors.New("invalid state transition")

// State is the lifecycle state of a connection.
type State int

const (
	Connecting State = iota
	Handshaking
	Active
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Handshaking:
		return "handshaking"
	case Active:
		return "active"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// CanTransition reports whether a connection in state s may move to next.
// Every state may give up and close; Closed is terminal.
func (s State) CanTransition(next State) bool {
	switch s {
	case Connecting:
		return next == Handshaking || next == Closed
	case Handshaking:
		return next == Active || next == Closed
	case Active:
		return next == Closing || next == Closed
	case Closing:
		return next == Closed
	default:
		return false
	}
}
