package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/luma/chatter/internal/env"
	"github.com/luma/chatter/internal/metrics"
	"github.com/luma/chatter/session"
	"github.com/luma/chatter/storage"
	"github.com/luma/chatter/transport"
)

var _ = Describe("status router", func() {
	var (
		store    *storage.InmemoryStore
		registry *prometheus.Registry
		server   *httptest.Server
	)

	get := func(path string) (int, string) {
		resp, err := http.Get(server.URL + path)
		Expect(err).To(Succeed())
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		Expect(err).To(Succeed())

		return resp.StatusCode, string(body)
	}

	BeforeEach(func() {
		store = storage.NewInmemoryStore()
		registry = prometheus.NewRegistry()
		metrics.New(metrics.WithRegistry(registry)).ConnectionAccepted()

		server = httptest.NewServer(setupRouter(false, zap.NewNop(), store, registry))
	})

	AfterEach(func() {
		server.Close()
		store.Close()
	})

	It("answers pings", func() {
		status, body := get("/ping")
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(Equal("pong"))
	})

	It("lists the live sessions", func() {
		Expect(store.Set(context.Background(), "abc", storage.Session{
			ID:       "abc",
			Username: "alice",
			State:    "active",
		})).To(Succeed())

		status, body := get("/sessions")
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{
			"abc": {
				"id": "abc",
				"remote_addr": "",
				"username": "alice",
				"state": "active",
				"connected_at": "0001-01-01T00:00:00Z"
			}
		}`))
	})

	It("exposes the metrics", func() {
		status, body := get("/metrics")
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(ContainSubstring("chatter_connections_accepted_total 1"))
	})
})

var _ = Describe("applyServeFlags()", func() {
	AfterEach(func() {
		flags := ServeCmd.Flags()

		for name, value := range map[string]string{"host": "127.0.0.1", "motd": session.DefaultMotd} {
			Expect(flags.Set(name, value)).To(Succeed())
			flags.Lookup(name).Changed = false
		}
	})

	It("keeps the environment unless a flag was set", func() {
		conf := &env.Config{Host: "10.0.0.1", Port: 7000, HTTPPort: "7001", Motd: "from env"}

		applyServeFlags(ServeCmd, nil, conf)
		Expect(conf).To(Equal(&env.Config{Host: "10.0.0.1", Port: 7000, HTTPPort: "7001", Motd: "from env"}))
	})

	It("prefers flags and then the HOST argument", func() {
		Expect(ServeCmd.Flags().Set("host", "0.0.0.0")).To(Succeed())
		Expect(ServeCmd.Flags().Set("motd", "from flag")).To(Succeed())

		conf := &env.Config{Host: "10.0.0.1", Motd: "from env"}

		applyServeFlags(ServeCmd, nil, conf)
		Expect(conf.Host).To(Equal("0.0.0.0"))
		Expect(conf.Motd).To(Equal("from flag"))

		applyServeFlags(ServeCmd, []string{"192.168.1.1"}, conf)
		Expect(conf.Host).To(Equal("192.168.1.1"))
	})
})

var _ = Describe("connect", func() {
	It("prints the message of the day and leaves after the idle timeout", func() {
		tcp := transport.NewTCP(transport.Options{
			Host:    "127.0.0.1",
			Session: session.ServerOptions{Motd: session.DefaultMotd},
		})
		Expect(tcp.Start(context.Background())).To(Succeed())
		defer tcp.Close()

		_, port, err := net.SplitHostPort(tcp.Addr().String())
		Expect(err).To(Succeed())

		var out bytes.Buffer
		RootCmd.SetOut(&out)
		RootCmd.SetArgs([]string{"connect", "127.0.0.1", "alice", "--port", port, "--idle-timeout", "50ms"})
		defer RootCmd.SetArgs(nil)

		Expect(RootCmd.Execute()).To(Succeed())
		Expect(out.String()).To(Equal("MOTD: Hello, world!\n"))
	})
})

var _ = Describe("gen man", func() {
	It("writes a page for every command", func() {
		dir, err := os.MkdirTemp("", "chatter-man")
		Expect(err).To(Succeed())
		defer os.RemoveAll(dir)

		var out bytes.Buffer
		RootCmd.SetOut(&out)
		RootCmd.SetArgs([]string{"gen", "man", "--dir", dir})
		defer RootCmd.SetArgs(nil)

		Expect(RootCmd.Execute()).To(Succeed())
		for _, page := range []string{"chatter.1", "chatter-serve.1", "chatter-connect.1", "chatter-version.1"} {
			Expect(filepath.Join(dir, page)).To(BeARegularFile())
		}

		pages, err := filepath.Glob(filepath.Join(dir, "*.1"))
		Expect(err).To(Succeed())
		Expect(out.String()).To(ContainSubstring(fmt.Sprintf("Wrote %d man pages to %s\n", len(pages), dir)))
	})
})
