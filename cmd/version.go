package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X github.com/northcutted/bundle-treemap/cmd.Version=...".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(stdout, "bundle-treemap %s\n", Version)
		fmt.Fprintf(stdout, "commit: %s\n", Commit)
		fmt.Fprintf(stdout, "built:  %s\n", Date)
	},
}
