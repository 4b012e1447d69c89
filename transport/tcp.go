package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	reuseport "github.com/kavu/go_reuseport"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/chatter/internal/metrics"
	"github.com/luma/chatter/protocol"
	"github.com/luma/chatter/session"
	"github.com/luma/chatter/storage"
)

const (
	// closeGrace is how long Close lets sessions say goodbye before their
	// connections are closed from under them.
	closeGrace = 2 * time.Second

	maxAcceptDelay = time.Second
)

// TCP accepts chat clients and runs one session per connection.
type TCP struct {
	cancel     context.CancelFunc
	stopWaiter sync.WaitGroup
	closeOnce  sync.Once

	addr         string
	reuseport    bool
	numListeners int
	listeners    []net.Listener

	mu    sync.Mutex
	conns map[*session.Conn]net.Conn

	sessionOptions session.ServerOptions
	store          storage.Store
	metrics        *metrics.Metrics

	log *zap.Logger
}

func NewTCP(options Options) *TCP {
	numListeners := 1

	if options.Reuseport {
		numListeners = options.NumListeners
		if numListeners < 1 {
			numListeners = runtime.NumCPU()
		}
	}

	store := options.Store
	if store == nil {
		store = storage.NewInmemoryStore()
	}

	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	return &TCP{
		addr:           net.JoinHostPort(options.Host, strconv.Itoa(options.Port)),
		reuseport:      options.Reuseport,
		numListeners:   numListeners,
		listeners:      make([]net.Listener, 0, numListeners),
		conns:          make(map[*session.Conn]net.Conn),
		sessionOptions: options.Session,
		store:          store,
		metrics:        options.Metrics,
		log:            log,
	}
}

// Start binds every listener and starts accepting. The listeners are bound
// when Start returns, so Addr is valid; a bind failure is returned.
func (t *TCP) Start(parentCtx context.Context) error {
	ctx, cancel := context.WithCancel(parentCtx)
	t.cancel = cancel

	t.log.Info("Starting tcp listeners", zap.Int("count", t.numListeners))

	addr := t.addr
	for i := 0; i < t.numListeners; i++ {
		listener, err := t.listen(addr)
		if err != nil {
			cancel()
			return multierr.Append(
				fmt.Errorf("%w: listen on %s: %w", protocol.ErrTransport, addr, err),
				t.closeListeners(),
			)
		}

		// The remaining listeners share the port the first one was given.
		addr = listener.Addr().String()
		t.listeners = append(t.listeners, listener)
	}

	for i, listener := range t.listeners {
		t.stopWaiter.Add(1)

		go func(listener net.Listener, log *zap.Logger) {
			defer t.stopWaiter.Done()
			t.acceptLoop(ctx, listener, log)
		}(listener, t.log.Named("listener").With(zap.Int("listener", i)))
	}

	t.log.Info("Listening", zap.Stringer("addr", t.Addr()))
	return nil
}

// Addr is the address the server is listening on, or nil before Start.
func (t *TCP) Addr() net.Addr {
	if len(t.listeners) == 0 {
		return nil
	}

	return t.listeners[0].Addr()
}

// Store holds a record of every live session, keyed by session ID.
func (t *TCP) Store() storage.Store {
	return t.store
}

// Close stops accepting, tells every session to shut down and waits for them.
// Sessions still running after a grace period have their connections closed.
func (t *TCP) Close() (err error) {
	t.closeOnce.Do(func() {
		t.log.Info("Stopping TCP server")

		if t.cancel != nil {
			t.cancel()
		}

		err = t.closeListeners()

		done := make(chan struct{})
		go func() {
			t.stopWaiter.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(closeGrace):
			t.log.Warn("Sessions did not stop in time, closing their connections")
			err = multierr.Append(err, t.closeConns())
			<-done
		}

		t.log.Info("TCP server stopped")
	})

	return err
}

func (t *TCP) listen(addr string) (net.Listener, error) {
	if t.reuseport {
		return reuseport.Listen("tcp", addr)
	}

	return net.Listen("tcp", addr)
}

func (t *TCP) closeListeners() (err error) {
	for _, listener := range t.listeners {
		if cerr := listener.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = multierr.Append(err, cerr)
		}
	}

	return err
}

func (t *TCP) closeConns() (err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, conn := range t.conns {
		if cerr := conn.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = multierr.Append(err, cerr)
		}
	}

	return err
}

func (t *TCP) acceptLoop(ctx context.Context, listener net.Listener, log *zap.Logger) {
	var delay time.Duration

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				log.Info("Stopped accepting new connections")
				return
			}

			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Temporary() { //nolint:staticcheck
				if delay == 0 {
					delay = 5 * time.Millisecond
				} else {
					delay *= 2
				}

				if delay > maxAcceptDelay {
					delay = maxAcceptDelay
				}

				log.Warn("Failed to accept connection, retrying",
					zap.Duration("delay", delay),
					zap.Error(err))

				select {
				case <-time.After(delay):
				case <-ctx.Done():
				}

				continue
			}

			log.Error("Failed to accept connection", zap.Error(err))
			return
		}

		delay = 0

		t.stopWaiter.Add(1)
		go func() {
			defer t.stopWaiter.Done()
			t.serve(ctx, conn)
		}()
	}
}

// serve runs one session to completion. Its error ends the session only.
func (t *TCP) serve(ctx context.Context, nc net.Conn) {
	id := uuid.NewString()
	log := t.log.Named("session").With(
		zap.String("session", id),
		zap.Stringer("remote", nc.RemoteAddr()))

	conn := session.NewServerConn(nc, session.Options{
		ID:       id,
		Observer: t,
		Log:      log,
	})

	t.track(conn, nc)
	defer t.untrack(conn)

	log.Info("Accepted connection")
	t.metrics.ConnectionAccepted()
	t.record(conn)

	if err := session.Serve(ctx, conn, t.sessionOptions); err != nil {
		class := protocol.Classify(err)
		t.metrics.SessionError(class)

		log.Warn("Session ended with an error",
			zap.String("class", class),
			zap.Error(err))

		return
	}

	log.Info("Session ended")
}

// StateChanged keeps the registry and metrics in step with each session.
func (t *TCP) StateChanged(c *session.Conn, from, to session.State) {
	t.metrics.Transition(to.String())

	if from == session.Handshaking {
		if to == session.Active {
			t.metrics.Handshake("accepted")
		} else {
			t.metrics.Handshake("failed")
		}
	}

	if to != session.Closed {
		t.record(c)
		return
	}

	t.metrics.ConnectionClosed()

	if err := t.store.Delete(context.Background(), c.ID()); err != nil {
		t.log.Warn("Failed to remove session from the registry",
			zap.String("session", c.ID()),
			zap.Error(err))
	}
}

func (t *TCP) record(c *session.Conn) {
	record := storage.Session{
		ID:          c.ID(),
		RemoteAddr:  c.RemoteAddr().String(),
		Username:    c.Username(),
		State:       c.State().String(),
		ConnectedAt: c.ConnectedAt(),
	}

	if err := t.store.Set(context.Background(), c.ID(), record); err != nil {
		t.log.Warn("Failed to record session",
			zap.String("session", c.ID()),
			zap.Error(err))
	}
}

func (t *TCP) track(c *session.Conn, nc net.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.conns[c] = nc
}

func (t *TCP) untrack(c *session.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.conns, c)
}

var _ session.Observer = (*TCP)(nil)
