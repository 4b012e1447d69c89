package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// FrameHeaderSize is the size of the big-endian length prefix.
	FrameHeaderSize = 4

	// MaxFrameSize bounds the payload of a single frame.
	MaxFrameSize = 8 * 1024 * 1024
)

// WriteFrame writes payload to w prefixed with its length. The header and the
// payload go out in a single Write so concurrent writers never interleave
// partial frames.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("%w: frame of %d bytes exceeds maximum %d",
			ErrFraming, len(payload), MaxFrameSize)
	}

	buf := make([]byte, FrameHeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[FrameHeaderSize:], payload)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("%w: write frame: %w", ErrTransport, err)
	}

	return nil
}

// ReadFrame reads one frame from r and returns its payload.
//
// It returns io.EOF, unwrapped, when r ends on a frame boundary. A stream that
// ends part way through a header or payload is ErrFraming.
//
// ReadFrame issues many small reads; r should be buffered.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [FrameHeaderSize]byte

	if _, err := io.ReadFull(r, header[:]); err != nil {
		switch {
		case errors.Is(err, io.EOF):
			return nil, io.EOF

		case errors.Is(err, io.ErrUnexpectedEOF):
			return nil, fmt.Errorf("%w: stream ended inside a frame header", ErrFraming)

		default:
			return nil, fmt.Errorf("%w: read frame header: %w", ErrTransport, err)
		}
	}

	length := binary.BigEndian.Uint32(header[:])
	if length > MaxFrameSize {
		return nil, fmt.Errorf("%w: announced frame of %d bytes exceeds maximum %d",
			ErrFraming, length, MaxFrameSize)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: stream ended inside a %d byte frame", ErrFraming, length)
		}

		return nil, fmt.Errorf("%w: read frame payload: %w", ErrTransport, err)
	}

	return payload, nil
}
