package gen

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"

	"github.com/luma/chatter/internal/meta"
)

var (
	manDir string
)

var ManPagesCmd = &cobra.Command{
	Use:   "man",
	Short: "Write section 1 man pages for chatter",
	Long: `Write one section 1 man page per chatter command, server and client
subcommands included. Pages go to ./man unless --dir says otherwise, and
the directory is created when missing.

Usage
	chatter gen man
	chatter gen man --dir /usr/local/share/man/man1
`,
	Args: cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		dir := filepath.Clean(manDir)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("create man page directory: %w", err)
		}

		root := cmd.Root()
		root.DisableAutoGenTag = true

		header := &doc.GenManHeader{
			Section: "1",
			Manual:  "chatter commands",
			Source:  "chatter " + meta.Version,
		}

		if err := doc.GenManTree(root, header, dir+string(filepath.Separator)); err != nil {
			return fmt.Errorf("write man pages to %s: %w", dir, err)
		}

		pages, err := filepath.Glob(filepath.Join(dir, "chatter*.1"))
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d man pages to %s\n", len(pages), dir)
		return nil
	},
}

func init() {
	ManPagesCmd.PersistentFlags().StringVar(&manDir, "dir", "man", "Where to write the pages")

	if err := ManPagesCmd.MarkPersistentFlagDirname("dir"); err != nil {
		panic(err)
	}
}
