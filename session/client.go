package session

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/luma/chatter/protocol"
)

// Handshake runs the client side of the auth exchange: it sends an
// AuthRequest for username and waits for exactly one reply.
//
// On success the connection is Active and the username the server accepted is
// returned. On any failure the connection is Closed; a refusal wraps
// protocol.ErrHandshakeRejected, a hang up wraps protocol.ErrUnexpectedClose
// and any other reply wraps protocol.ErrSchema. Nothing is retried.
func (c *Conn) Handshake(ctx context.Context, username string) (string, error) {
	if err := c.transition(Handshaking); err != nil {
		return "", err
	}

	stop := c.watch(ctx)
	accepted, err := c.requestAuth(username)

	if !stop() {
		return "", c.fail(fmt.Errorf("%w: handshake interrupted: %w", protocol.ErrTransport, ctx.Err()))
	}

	if err != nil {
		return "", c.fail(err)
	}

	c.username = accepted
	if err := c.transition(Active); err != nil {
		return "", c.fail(err)
	}

	c.log.Info("Authenticated", zap.String("username", accepted))
	return accepted, nil
}

func (c *Conn) requestAuth(username string) (string, error) {
	if err := c.Send(protocol.AuthRequest{Username: username}); err != nil {
		return "", err
	}

	msg, err := c.Receive()
	if err != nil {
		if peerGone(err) {
			return "", fmt.Errorf("%w: server hung up before answering the auth request: %w",
				protocol.ErrUnexpectedClose, err)
		}

		return "", err
	}

	resp, ok := msg.(protocol.AuthResponse)
	if !ok {
		return "", fmt.Errorf("%w: expected %s during handshake, got %s",
			protocol.ErrSchema, protocol.KindAuthResponse, msg.Kind())
	}

	return resp.Result()
}

// ReadLoop consumes server messages on an Active connection until the stream
// ends. Greetings are logged and handed to onGreeting, which may be nil. A
// goodbye from the server or a clean end of stream returns nil. Any other
// message is a protocol violation and ends the loop with protocol.ErrSchema.
//
// ReadLoop never changes the connection state, so it may run on its own
// goroutine while the driver waits on other events. The driver ends it by
// closing the connection.
func (c *Conn) ReadLoop(onGreeting func(protocol.Greeting)) error {
	for {
		msg, err := c.Receive()
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.log.Info("Server closed the connection")
				return nil
			}

			return err
		}

		switch m := msg.(type) {
		case protocol.Greeting:
			c.log.Info("Received greeting", zap.String("motd", m.Motd))

			if onGreeting != nil {
				onGreeting(m)
			}

		case protocol.Goodbye:
			c.log.Info("Server said goodbye", zap.Stringp("reason", m.Reason))
			return nil

		case protocol.FromClient:
			c.log.Debug("Ignoring forwarded message",
				zap.String("source", m.Source),
				zap.String("kind", string(m.Kind())))

		default:
			return fmt.Errorf("%w: unexpected %s message from server", protocol.ErrSchema, msg.Kind())
		}
	}
}

// SayGoodbye tells the server the client is leaving and moves to Closing. It
// does not wait for an answer; call Close afterwards to drop the transport.
func (c *Conn) SayGoodbye(reason string) error {
	c.log.Info("Saying goodbye", zap.String("reason", reason))
	return c.sendGoodbye(reason)
}
