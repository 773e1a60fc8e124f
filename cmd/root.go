package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/northcutted/bundle-treemap/pkg/config"
	"github.com/northcutted/bundle-treemap/pkg/renderer"
)

var (
	configFile    string
	outputFile    string
	format        string
	excludes      []string
	chunkIDs      []string
	groupBy       string
	noAttribution bool
	compression   string
	concatPolicy  string
	concurrency   int
	collapse      bool
	logLevel      string
	verbose       bool
	timeout       time.Duration
	top           int
	sortBy        string
)

// stdout receives rendered reports; logOutput receives log records.
var (
	stdout    io.Writer = os.Stdout
	logOutput io.Writer = os.Stderr
)

var rootCmd = &cobra.Command{
	Use:   "bundle-treemap <stats.json> [bundleDir]",
	Short: "Analyze webpack bundle sizes",
	Long: `Analyze the size of a webpack build from its stats file.

Every chunk is turned into a tree of folders and modules sized three ways:
- declared: the size the bundler reported for the module source
- emitted: the bytes the module occupies in the emitted asset
- compressed: the gzip (or brotli) size of those bytes

Emitted and compressed sizes need the emitted assets and their source maps.
bundleDir defaults to the directory of the stats file.

Settings can be kept in 'bundle-treemap.yaml'; flags override the file.`,
	Example: `  # Print the trees of every chunk as JSON
  bundle-treemap dist/stats.json

  # Markdown summary of the whole build, brotli sizes
  bundle-treemap dist/stats.json dist --group-by combined --compression brotli --format markdown

  # Skip source maps and license files
  bundle-treemap stats.json --exclude '**/*.LICENSE.txt' -o report/treemap.json`,
	Args:          cobra.RangeArgs(1, 2),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnalyze(cmd, args)
	},
}

// Execute runs the root cobra command and exits on error.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		cancel()
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVar(&configFile, "config", "", "Path to config file (default: "+config.DefaultFile+" if present)")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Path to output file or directory (default: stdout)")
	rootCmd.Flags().StringVar(&format, "format", config.FormatJSON, "Output format: json or markdown")
	rootCmd.Flags().StringArrayVar(&excludes, "exclude", nil, "Exclude assets matching a glob (** supported) or re:<regexp>; repeatable")
	rootCmd.Flags().StringArrayVar(&chunkIDs, "chunk", nil, "Only analyze the chunk with this id; repeatable")
	rootCmd.Flags().StringVar(&groupBy, "group-by", "chunk", "One tree per chunk, or one combined tree: chunk or combined")
	rootCmd.Flags().BoolVar(&noAttribution, "no-attribution", false, "Report declared sizes for modules without reading source maps")
	rootCmd.Flags().StringVar(&compression, "compression", "gzip", "Compression used for compressed sizes: gzip or brotli")
	rootCmd.Flags().StringVar(&concatPolicy, "concat-policy", "inclusive", "How concatenated module sizes relate: inclusive or disjoint")
	rootCmd.Flags().IntVar(&concurrency, "concurrency", 0, "Chunks analyzed in parallel (default: number of CPUs)")
	rootCmd.Flags().BoolVar(&collapse, "collapse", false, "Merge chains of single-child folders")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error or silent")
	rootCmd.Flags().BoolVar(&verbose, "verbose", false, "Enable verbose logging (same as --log-level debug)")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 0, "Abort the analysis after this long (0 disables)")
	rootCmd.Flags().IntVar(&top, "top", renderer.DefaultTop, "Modules listed per tree in markdown output (-1 for all)")
	rootCmd.Flags().StringVar(&sortBy, "sort-by", string(renderer.MetricEmitted), "Metric ranking modules in markdown output: declared, emitted or compressed")

	rootCmd.AddCommand(versionCmd)

	// Add version flag as shortcut for "version" command
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("bundle-treemap {{.Version}}\n")
}
