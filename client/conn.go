package client

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/chatter/protocol"
	"github.com/luma/chatter/session"
)

const (
	DefaultIdleTimeout = 5 * time.Second

	reasonTimedOut    = "timed out"
	reasonInterrupted = "interrupted"
)

type Options struct {
	// IdleTimeout is how long the client stays connected after the
	// handshake before it says goodbye.
	IdleTimeout time.Duration

	// OnGreeting is called with each message of the day. Optional.
	OnGreeting func(motd string)

	Log *zap.Logger
}

// Client is one chat client connection and the goroutine that drives it.
type Client struct {
	conn       *session.Conn
	dialFailed bool

	idleTimeout time.Duration
	onGreeting  func(motd string)

	log *zap.Logger
}

func New(options Options) *Client {
	idleTimeout := options.IdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}

	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		idleTimeout: idleTimeout,
		onGreeting:  options.OnGreeting,
		log:         log,
	}
}

// Dial connects to the server at addr.
func (c *Client) Dial(ctx context.Context, addr string) error {
	var dialer net.Dialer

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		c.dialFailed = true
		return fmt.Errorf("%w: connect to %s: %w", protocol.ErrTransport, addr, err)
	}

	c.log.Info("Connected", zap.String("addr", addr))

	c.conn = session.NewClientConn(conn, session.Options{
		ID:  conn.LocalAddr().String(),
		Log: c.log,
	})

	return nil
}

// Run authenticates as username and then waits for whichever comes first: the
// idle timeout, the server ending the session or ctx being cancelled. The
// client says goodbye on timeout and on cancellation, both of which return nil.
//
// The connection is closed when Run returns.
func (c *Client) Run(ctx context.Context, username string) error {
	if c.conn == nil {
		return fmt.Errorf("%w: not connected", protocol.ErrTransport)
	}

	if _, err := c.conn.Handshake(ctx, username); err != nil {
		return err
	}

	readDone := make(chan error, 1)
	go func() {
		readDone <- c.conn.ReadLoop(c.greeted)
	}()

	timer := time.NewTimer(c.idleTimeout)
	defer timer.Stop()

	select {
	case <-timer.C:
		c.log.Info("Idle timeout reached", zap.Duration("timeout", c.idleTimeout))
		return c.leave(reasonTimedOut, readDone)

	case <-ctx.Done():
		return c.leave(reasonInterrupted, readDone)

	case err := <-readDone:
		return multierr.Append(err, c.conn.Close())
	}
}

// Username is the name the server accepted, empty until Run authenticates.
func (c *Client) Username() string {
	if c.conn == nil {
		return ""
	}

	return c.conn.Username()
}

func (c *Client) State() session.State {
	if c.conn == nil {
		if c.dialFailed {
			return session.Closed
		}

		return session.Connecting
	}

	return c.conn.State()
}

// Close drops the connection. It is safe to call after Run.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

func (c *Client) greeted(g protocol.Greeting) {
	if c.onGreeting != nil {
		c.onGreeting(g.Motd)
	}
}

// leave says goodbye, closes the connection and waits for the reader to
// notice. Whatever the reader saw after the goodbye is not an error.
func (c *Client) leave(reason string, readDone <-chan error) error {
	err := c.conn.SayGoodbye(reason)
	err = multierr.Append(err, c.conn.Close())

	if rerr := <-readDone; rerr != nil {
		c.log.Debug("Reader stopped", zap.Error(rerr))
	}

	return err
}
