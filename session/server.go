package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/chatter/protocol"
)

const (
	DefaultMotd             = "Hello, world!"
	DefaultHandshakeTimeout = 5 * time.Second

	shutdownReason = "server shutting down"
)

// Policy decides whether a username may join. It returns the name to bind to
// the connection, which may be a normalised form of the requested one, or an
// error whose text is sent back to the client as the rejection reason.
type Policy func(username string) (string, error)

// AcceptAll is the default Policy: every username is accepted verbatim.
func AcceptAll(username string) (string, error) {
	return username, nil
}

type ServerOptions struct {
	// Motd is sent to every client once it has authenticated.
	Motd string

	// HandshakeTimeout bounds the wait for the client's auth request. Zero
	// means DefaultHandshakeTimeout, a negative value waits forever.
	HandshakeTimeout time.Duration

	// Policy defaults to AcceptAll.
	Policy Policy
}

func (o ServerOptions) withDefaults() ServerOptions {
	if o.HandshakeTimeout == 0 {
		o.HandshakeTimeout = DefaultHandshakeTimeout
	}

	if o.Policy == nil {
		o.Policy = AcceptAll
	}

	return o
}

// Serve runs the server side of a session on c until the session ends, then
// closes c.
//
// The client gets one chance to authenticate. Once it has, it is greeted and
// Serve waits for its goodbye, which ends the session cleanly with a nil
// error. Hanging up without a goodbye is protocol.ErrUnexpectedClose and a
// second auth request is protocol.ErrSchema.
//
// Cancelling ctx ends the session: an authenticated client is sent a goodbye
// first. Shutdown is not an error.
func Serve(ctx context.Context, c *Conn, options ServerOptions) error {
	options = options.withDefaults()

	stop := c.watch(ctx)
	defer stop()

	defer func() {
		if err := c.Close(); err != nil {
			c.log.Debug("Failed to close connection cleanly", zap.Error(err))
		}
	}()

	if err := c.acceptHandshake(ctx, options); err != nil {
		if ctx.Err() != nil {
			c.log.Info("Shutting down before the handshake completed")
			return nil
		}

		return err
	}

	if err := c.Send(protocol.Greeting{Motd: options.Motd}); err != nil {
		return err
	}

	for {
		if ctx.Err() != nil {
			return c.shutdown()
		}

		msg, err := c.Receive()
		if err != nil {
			if ctx.Err() != nil {
				return c.shutdown()
			}

			if peerGone(err) {
				return fmt.Errorf("%w: %s left without saying goodbye: %w",
					protocol.ErrUnexpectedClose, c.username, err)
			}

			return err
		}

		switch m := msg.(type) {
		case protocol.Goodbye:
			c.log.Info("Client said goodbye",
				zap.String("username", c.username),
				zap.Stringp("reason", m.Reason))

			return c.transition(Closing)

		case protocol.AuthRequest:
			return fmt.Errorf("%w: %s sent a second auth request", protocol.ErrSchema, c.username)

		default:
			c.log.Warn("Ignoring unexpected message", zap.String("kind", string(msg.Kind())))
		}
	}
}

// acceptHandshake waits for the client's auth request and answers it. It
// leaves the connection Active on success.
func (c *Conn) acceptHandshake(ctx context.Context, options ServerOptions) error {
	if err := c.transition(Handshaking); err != nil {
		return err
	}

	if options.HandshakeTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(options.HandshakeTimeout)); err != nil {
			if peerGone(err) {
				return fmt.Errorf("%w: client hung up before sending an auth request: %w",
					protocol.ErrUnexpectedClose, err)
			}

			return fmt.Errorf("%w: set handshake deadline: %w", protocol.ErrTransport, err)
		}

		// The deadline replaces any interrupt that fired before it was set.
		if ctx.Err() != nil {
			c.interrupt()
		}
	}

	msg, err := c.Receive()
	if err != nil {
		switch {
		case peerGone(err):
			return fmt.Errorf("%w: client hung up before sending an auth request: %w",
				protocol.ErrUnexpectedClose, err)

		case timedOut(err):
			return fmt.Errorf("no auth request within %s: %w", options.HandshakeTimeout, err)

		default:
			return err
		}
	}

	req, ok := msg.(protocol.AuthRequest)
	if !ok {
		return fmt.Errorf("%w: expected %s during handshake, got %s",
			protocol.ErrSchema, protocol.KindAuthRequest, msg.Kind())
	}

	username, err := options.Policy(req.Username)
	if err != nil {
		rejected := fmt.Errorf("%w: %q: %s", protocol.ErrHandshakeRejected, req.Username, err)
		return multierr.Append(rejected, c.Send(protocol.Reject(err.Error())))
	}

	if err := c.Send(protocol.Accept(username)); err != nil {
		return err
	}

	if err := c.conn.SetReadDeadline(time.Time{}); err != nil {
		return fmt.Errorf("%w: clear handshake deadline: %w", protocol.ErrTransport, err)
	}

	if ctx.Err() != nil {
		c.interrupt()
	}

	c.username = username
	if err := c.transition(Active); err != nil {
		return err
	}

	c.log.Info("Client authenticated", zap.String("username", username))
	return nil
}

// shutdown says goodbye to an authenticated client because the server is
// stopping.
func (c *Conn) shutdown() error {
	c.log.Info("Server shutting down, saying goodbye", zap.String("username", c.username))

	if err := c.sendGoodbye(shutdownReason); err != nil {
		c.log.Debug("Failed to say goodbye", zap.Error(err))
	}

	return nil
}
