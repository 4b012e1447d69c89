package transport

import (
	"go.uber.org/zap"

	"github.com/luma/chatter/internal/metrics"
	"github.com/luma/chatter/session"
	"github.com/luma/chatter/storage"
)

type Options struct {
	// Host to listen on
	Host string

	// Port to listen on. Zero picks a free port, see TCP.Addr.
	Port int

	// Reuseport controls setting SO_REUSEPORT
	Reuseport bool

	// NumListeners is the number of accept loops. It only has an effect with
	// Reuseport, and defaults to the number of CPUs when it does.
	NumListeners int

	// Session configures the server side of every session.
	Session session.ServerOptions

	// Store receives a record of every live session. Optional.
	Store storage.Store

	// Metrics is optional.
	Metrics *metrics.Metrics

	Log *zap.Logger
}
