// Package session implements the connection state machine shared by chatter
// clients and servers.
//
// A Conn is owned by exactly one goroutine, its driver, which is the only
// goroutine allowed to change its state. The single exception is ReadLoop,
// which only reads and so may run beside the driver.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/chatter/protocol"
)

// goodbyeTimeout bounds how long sending a goodbye may block. Nobody waits for
// a reply, so a peer that won't read doesn't get to hold the connection open.
const goodbyeTimeout = time.Second

// Observer is told about every state change of a connection. It is called on
// the connection's driver goroutine.
type Observer interface {
	StateChanged(c *Conn, from, to State)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(c *Conn, from, to State)

func (f ObserverFunc) StateChanged(c *Conn, from, to State) {
	f(c, from, to)
}

type Options struct {
	// ID identifies the connection to observers and in logs.
	ID string

	Observer Observer

	Log *zap.Logger
}

// Conn is one chat connection: the transport, the username it authenticated
// as and where it is in its lifecycle.
type Conn struct {
	id          string
	conn        net.Conn
	reader      *protocol.Reader
	connectedAt time.Time

	username string
	state    State

	observer Observer
	log      *zap.Logger
}

// NewClientConn wraps an outbound connection. It starts in Connecting.
func NewClientConn(conn net.Conn, options Options) *Conn {
	return newConn(conn, protocol.ToClient, options)
}

// NewServerConn wraps an accepted connection. It starts in Connecting.
func NewServerConn(conn net.Conn, options Options) *Conn {
	return newConn(conn, protocol.ToServer, options)
}

func newConn(conn net.Conn, dir protocol.Direction, options Options) *Conn {
	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	return &Conn{
		id:          options.ID,
		conn:        conn,
		reader:      protocol.NewReader(conn, dir),
		connectedAt: time.Now(),
		state:       Connecting,
		observer:    options.Observer,
		log:         log,
	}
}

func (c *Conn) ID() string {
	return c.id
}

// Username is empty until the handshake succeeds.
func (c *Conn) Username() string {
	return c.username
}

func (c *Conn) State() State {
	return c.state
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *Conn) ConnectedAt() time.Time {
	return c.connectedAt
}

// Send writes one message to the peer.
func (c *Conn) Send(m protocol.Message) error {
	if err := protocol.WriteMessage(c.conn, m); err != nil {
		return err
	}

	c.log.Debug("Sent message", zap.String("kind", string(m.Kind())))
	return nil
}

// Receive blocks until the next message from the peer arrives.
func (c *Conn) Receive() (protocol.Message, error) {
	msg, err := c.reader.Read()
	if err != nil {
		return nil, err
	}

	c.log.Debug("Received message", zap.String("kind", string(msg.Kind())))
	return msg, nil
}

// Close moves the connection to Closed and closes the transport. Closing a
// closed connection does nothing.
func (c *Conn) Close() error {
	if c.state == Closed {
		return nil
	}

	err := c.transition(Closed)

	if cerr := c.conn.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
		err = multierr.Append(err, fmt.Errorf("%w: close: %w", protocol.ErrTransport, cerr))
	}

	return err
}

func (c *Conn) transition(next State) error {
	if !c.state.CanTransition(next) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, c.state, next)
	}

	prev := c.state
	c.state = next

	c.log.Debug("State changed", zap.Stringer("from", prev), zap.Stringer("to", next))

	if c.observer != nil {
		c.observer.StateChanged(c, prev, next)
	}

	return nil
}

// fail closes the connection because of err and returns err.
func (c *Conn) fail(err error) error {
	if cerr := c.Close(); cerr != nil {
		c.log.Debug("Failed to close connection cleanly", zap.Error(cerr))
	}

	return err
}

// sendGoodbye sends a goodbye and moves to Closing. It does not wait for a
// reply.
func (c *Conn) sendGoodbye(reason string) error {
	var err error

	if derr := c.conn.SetWriteDeadline(time.Now().Add(goodbyeTimeout)); derr != nil {
		err = fmt.Errorf("%w: set write deadline: %w", protocol.ErrTransport, derr)
	} else {
		err = c.Send(protocol.NewGoodbye(reason))
	}

	return multierr.Append(err, c.transition(Closing))
}

// interrupt unblocks a pending Receive.
func (c *Conn) interrupt() {
	_ = c.conn.SetReadDeadline(time.Now())
}

// watch interrupts pending reads once ctx is done. The returned function
// reports false if the interrupt already fired.
func (c *Conn) watch(ctx context.Context) (stop func() bool) {
	return context.AfterFunc(ctx, c.interrupt)
}

// peerGone reports whether err means the peer hung up.
func peerGone(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrClosedPipe)
}

func timedOut(err error) bool {
	return errors.Is(err, os.ErrDeadlineExceeded)
}
