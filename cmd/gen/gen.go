package gen

import (
	"github.com/spf13/cobra"
)

// RootCmd groups the generators, currently only man pages.
var RootCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate documentation for chatter",
	Long:  `Generate documentation for chatter`,
	Args:  cobra.NoArgs,
}

func init() {
	RootCmd.AddCommand(ManPagesCmd)
}
