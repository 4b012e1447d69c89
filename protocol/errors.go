package protocol

import (
	"errors"
)

var (
	// ErrTransport wraps failures of the underlying connection: dial, accept,
	// read, write and deadline errors.
	ErrTransport = errors.New("transport error")

	// ErrFraming means the byte stream could not be split into frames: a
	// truncated header or payload, or an oversized length prefix.
	ErrFraming = errors.New("framing error")

	// ErrSchema means a frame did not hold a message the reader accepts, or a
	// valid message arrived when the protocol does not allow it.
	ErrSchema = errors.New("schema error")

	// ErrHandshakeRejected is returned when the server refuses the auth request.
	ErrHandshakeRejected = errors.New("handshake rejected")

	// ErrUnexpectedClose means the peer hung up while a message was still owed.
	ErrUnexpectedClose = errors.New("connection closed unexpectedly")
)

// Classify names the error class of err. It is used for log fields and metric
// labels.
func Classify(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrHandshakeRejected):
		return "handshake_rejected"
	case errors.Is(err, ErrUnexpectedClose):
		return "unexpected_close"
	case errors.Is(err, ErrFraming):
		return "framing"
	case errors.Is(err, ErrSchema):
		return "schema"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return "other"
	}
}
