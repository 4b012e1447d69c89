package protocol

import (
	"bufio"
	"io"
)

// WriteMessage encodes m and writes it to w as a single frame.
func WriteMessage(w io.Writer, m Message) error {
	payload, err := Encode(m)
	if err != nil {
		return err
	}

	return WriteFrame(w, payload)
}

// Reader turns a byte stream into the sequence of messages it carries. Use one
// Reader per connection for its whole life: it buffers, so bytes belonging to
// the next frame may already be inside it.
type Reader struct {
	r   *bufio.Reader
	dir Direction
}

// NewReader returns a Reader decoding messages travelling in direction dir.
func NewReader(r io.Reader, dir Direction) *Reader {
	return &Reader{
		r:   bufio.NewReader(r),
		dir: dir,
	}
}

// Read returns the next message. It returns io.EOF once the stream has ended
// cleanly between frames.
func (r *Reader) Read() (Message, error) {
	payload, err := ReadFrame(r.r)
	if err != nil {
		return nil, err
	}

	return Decode(payload, r.dir)
}

// Direction reports which direction this reader decodes.
func (r *Reader) Direction() Direction {
	return r.dir
}
