package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/luma/chatter/cmd/gen"
)

// verbosity is the number of times -v was given.
var verbosity int

var RootCmd = &cobra.Command{
	Use:   "chatter",
	Short: "A chat server and client speaking length prefixed JSON over TCP",
	Long: `A chat server and client speaking length prefixed JSON over TCP

Usage
	chatter serve [HOST]
	chatter connect HOST USERNAME
`,
	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Log more, repeat for even more")

	RootCmd.AddCommand(ServeCmd)
	RootCmd.AddCommand(ConnectCmd)
	RootCmd.AddCommand(VersionCmd)
	RootCmd.AddCommand(gen.RootCmd)
}

// Execute runs the command line and exits non-zero if the command failed.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
