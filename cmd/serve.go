package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/chatter/internal/env"
	"github.com/luma/chatter/internal/meta"
	"github.com/luma/chatter/internal/metrics"
	"github.com/luma/chatter/session"
	"github.com/luma/chatter/storage"
	"github.com/luma/chatter/transport"
)

var (
	// The host to listen on
	host string

	// The port to listen for http requests on
	httpPort string

	// The port to listen for chat clients on
	port int

	// The message of the day
	motd string
)

func init() {
	flags := ServeCmd.Flags()

	flags.IntVarP(&port, "port", "p", 9999, "The port to listen for client connections on")
	flags.StringVar(&httpPort, "http-port", "9998", "The port to listen to HTTP requests on, empty to disable")
	flags.StringVarP(&host, "host", "a", "127.0.0.1", "The host to listen on")
	flags.StringVar(&motd, "motd", session.DefaultMotd, "The message of the day sent to every client")
}

var ServeCmd = &cobra.Command{
	Use:   "serve [HOST]",
	Short: "Start the chat server",
	Long: `Start the chat server

Flags take precedence over CHAT_* environment variables, which may also be
set in .env.local.

Usage
	chatter serve
	chatter serve 0.0.0.0 --port 9999

`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, signalStop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer signalStop()

		conf, err := env.LoadConfig(ctx)
		if err != nil {
			return err
		}

		applyServeFlags(cmd, args, conf)

		log, err := env.MakeLogger(env.LogOptions{
			Verbosity: verbosity,
			File:      conf.LogFile,
		})
		if err != nil {
			return err
		}

		defer func() {
			_ = log.Sync()
		}()

		fileLimit, err := setFileLimit()
		if err != nil {
			return err
		}

		log.Info("Set file limit", zap.Uint64("fileLimit", fileLimit))

		store := storage.NewInmemoryStore()
		defer store.Close()

		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		tcp := transport.NewTCP(transport.Options{
			Host:      conf.Host,
			Port:      conf.Port,
			Reuseport: true,
			Session: session.ServerOptions{
				Motd:             conf.Motd,
				HandshakeTimeout: conf.HandshakeTimeout,
			},
			Store:   store,
			Metrics: metrics.New(metrics.WithRegistry(registry)),
			Log:     log.Named("transport"),
		})

		if err := tcp.Start(ctx); err != nil {
			return err
		}

		log.Info("Started server",
			zap.String("version", meta.Version),
			zap.Stringer("addr", tcp.Addr()),
			zap.String("motd", conf.Motd),
			zap.Duration("handshakeTimeout", conf.HandshakeTimeout))

		var s *http.Server

		if conf.HTTPPort != "" {
			s = &http.Server{
				Addr:    net.JoinHostPort(conf.Host, conf.HTTPPort),
				Handler: setupRouter(conf.DebugHTTP, log.Named("http"), store, registry),
			}

			// Initializing the server in a goroutine so that
			// it won't block the graceful shutdown handling below
			go func() {
				if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("Http server errored", zap.Error(err))
				}
			}()

			log.Info("Serving status", zap.String("addr", s.Addr))
		}

		// Listen for the interrupt signal.
		<-ctx.Done()

		// Restore default behavior on the interrupt signal and notify user of shutdown.
		signalStop()
		log.Info("Shutting down gracefully, press Ctrl+C again to force")

		if s != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			s.SetKeepAlivesEnabled(false)

			if err := s.Shutdown(shutdownCtx); err != nil {
				log.Error("Http server forced to shutdown", zap.Error(err))
			}
		}

		if err := tcp.Close(); err != nil {
			log.Error("TCP server forced to shutdown", zap.Error(err))
		}

		log.Info("Exiting")
		return nil
	},
}

// applyServeFlags lets flags that were set, and the HOST argument, override
// the environment.
func applyServeFlags(cmd *cobra.Command, args []string, conf *env.Config) {
	flags := cmd.Flags()

	if flags.Changed("host") {
		conf.Host = host
	}

	if len(args) > 0 {
		conf.Host = args[0]
	}

	if flags.Changed("port") {
		conf.Port = port
	}

	if flags.Changed("http-port") {
		conf.HTTPPort = httpPort
	}

	if flags.Changed("motd") {
		conf.Motd = motd
	}
}

func setupRouter(debugHTTP bool, log *zap.Logger, store storage.Store, gatherer prometheus.Gatherer) *gin.Engine {
	gin.DisableConsoleColor()
	if !debugHTTP {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Logs all requests, like a combined access and error log, with UTC
	// RFC3339 timestamps.
	r.Use(ginzap.GinzapWithConfig(log, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/ping"},
	}))

	// Logs all panic to error log
	//   - stack means whether output the stack info.
	r.Use(ginzap.RecoveryWithZap(log, true))

	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	r.GET("/sessions", func(c *gin.Context) {
		sessions, err := store.Backup()
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err) //nolint:errcheck
			return
		}

		c.Data(http.StatusOK, "application/json; charset=utf-8", sessions)
	})

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return r
}

func setFileLimit() (uint64, error) {
	var rLimit syscall.Rlimit

	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		return 0, err
	}

	rLimit.Cur = rLimit.Max
	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		return 0, err
	}

	return rLimit.Cur, nil
}
