package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/luma/chatter/client"
	"github.com/luma/chatter/internal/env"
)

var (
	// The port the server listens on
	connectPort int

	// How long to stay connected after authenticating
	idleTimeout time.Duration
)

func init() {
	flags := ConnectCmd.Flags()

	flags.IntVarP(&connectPort, "port", "p", 9999, "The port the server listens on")
	flags.DurationVar(&idleTimeout, "idle-timeout", client.DefaultIdleTimeout, "How long to stay connected before saying goodbye")
}

var ConnectCmd = &cobra.Command{
	Use:   "connect HOST USERNAME",
	Short: "Connect to a chat server as USERNAME",
	Long: `Connect to a chat server as USERNAME

Prints the server's message of the day, then says goodbye once the idle
timeout passes or on Ctrl+C.

Usage
	chatter connect 127.0.0.1 alice
`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, signalStop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer signalStop()

		log, err := env.MakeLogger(env.LogOptions{Verbosity: verbosity, Console: true})
		if err != nil {
			return err
		}

		defer func() {
			_ = log.Sync()
		}()

		out := cmd.OutOrStdout()

		c := client.New(client.Options{
			IdleTimeout: idleTimeout,
			OnGreeting: func(motd string) {
				fmt.Fprintf(out, "MOTD: %s\n", motd)
			},
			Log: log.Named("client"),
		})

		if err := c.Dial(ctx, net.JoinHostPort(args[0], strconv.Itoa(connectPort))); err != nil {
			return err
		}

		return c.Run(ctx, args[1])
	},
}
