package metrics_test

import (
	"strings"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/luma/chatter/internal/metrics"
)

var _ = Describe("Metrics", func() {
	var (
		registry *prometheus.Registry
		m        *metrics.Metrics
	)

	BeforeEach(func() {
		registry = prometheus.NewRegistry()
		m = metrics.New(metrics.WithRegistry(registry))
	})

	It("tracks accepted and active connections", func() {
		m.ConnectionAccepted()
		m.ConnectionAccepted()
		m.ConnectionClosed()

		Expect(testutil.GatherAndCompare(registry, strings.NewReader(`
# HELP chatter_active_sessions Number of connections that have not closed yet
# TYPE chatter_active_sessions gauge
chatter_active_sessions 1
# HELP chatter_connections_accepted_total Total number of TCP connections accepted
# TYPE chatter_connections_accepted_total counter
chatter_connections_accepted_total 2
`), "chatter_active_sessions", "chatter_connections_accepted_total")).To(Succeed())
	})

	It("labels handshakes, errors and transitions", func() {
		m.Handshake("accepted")
		m.Handshake("accepted")
		m.Handshake("failed")
		m.SessionError("unexpected_close")
		m.Transition("active")

		Expect(testutil.GatherAndCount(registry, "chatter_handshakes_total")).To(Equal(2))
		Expect(testutil.GatherAndCount(registry, "chatter_session_errors_total")).To(Equal(1))
		Expect(testutil.GatherAndCount(registry, "chatter_state_transitions_total")).To(Equal(1))
	})

	It("uses the configured namespace", func() {
		other := prometheus.NewRegistry()
		metrics.New(metrics.WithRegistry(other), metrics.WithNamespace("chat")).ConnectionAccepted()

		Expect(testutil.GatherAndCount(other, "chat_connections_accepted_total")).To(Equal(1))
	})

	It("does nothing when nil", func() {
		var none *metrics.Metrics

		Expect(func() {
			none.ConnectionAccepted()
			none.ConnectionClosed()
			none.Handshake("accepted")
			none.SessionError("schema")
			none.Transition("closed")
		}).NotTo(Panic())
	})
})
