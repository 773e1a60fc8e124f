package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/northcutted/bundle-treemap/pkg/analysis"
	"github.com/northcutted/bundle-treemap/pkg/config"
	"github.com/northcutted/bundle-treemap/pkg/parser"
	"github.com/northcutted/bundle-treemap/pkg/renderer"
	"github.com/northcutted/bundle-treemap/pkg/types"
)

func runAnalyze(cmd *cobra.Command, args []string) error {
	// 1. Config file, then flags on top
	cfgPath, err := findConfig()
	if err != nil {
		return err
	}
	cfg := &config.Config{}
	if cfgPath != "" {
		if cfg, err = config.Load(cfgPath); err != nil {
			return err
		}
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	if cfgPath != "" {
		logger.Debug("using config file", "path", cfgPath)
	}

	// 2. Parse stats
	statsPath := args[0]
	bundleDir := cfg.BundleDir
	if len(args) > 1 {
		bundleDir = args[1]
	}
	if bundleDir == "" {
		bundleDir = filepath.Dir(statsPath)
	}

	meta, err := parser.Parse(statsPath)
	if err != nil {
		return err
	}

	// 3. Analyze
	opts, err := cfg.AnalysisOptions()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	logger.Info("analyzing bundle", "stats", statsPath, "bundleDir", bundleDir)
	roots, err := analysis.Analyze(ctx, meta, bundleDir, opts, logger)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	if roots == nil {
		logger.Warn("nothing to report", "stats", statsPath)
		return nil
	}

	// 4. Render and write
	content, err := render(roots, cfg)
	if err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return writeOutput(logger, content, cfg.Output, cfg.Format)
}

// findConfig returns the explicit --config path, or the default file when it
// exists in the working directory.
func findConfig() (string, error) {
	if configFile != "" {
		return configFile, nil
	}
	if _, err := os.Stat(config.DefaultFile); err == nil {
		return config.DefaultFile, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("failed to check for %s: %w", config.DefaultFile, err)
	}
	return "", nil
}

// applyFlags copies explicitly set flags over the config values.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("output") {
		cfg.Output = outputFile
	}
	if f.Changed("format") || cfg.Format == "" {
		cfg.Format = format
	}
	if f.Changed("exclude") {
		cfg.ExcludeAssets = append(cfg.ExcludeAssets, excludes...)
	}
	if f.Changed("chunk") {
		cfg.Chunks = chunkIDs
	}
	if f.Changed("group-by") {
		cfg.GroupBy = groupBy
	}
	if f.Changed("no-attribution") {
		include := !noAttribution
		cfg.IncludeSourceAttribution = &include
	}
	if f.Changed("compression") {
		cfg.Compression = compression
	}
	if f.Changed("concat-policy") {
		cfg.ConcatPolicy = concatPolicy
	}
	if f.Changed("concurrency") {
		cfg.Concurrency = concurrency
	}
	if f.Changed("collapse") {
		cfg.CollapseFolders = collapse
	}
	if f.Changed("top") || cfg.Top == 0 {
		cfg.Top = top
	}
	if f.Changed("sort-by") {
		cfg.SortBy = sortBy
	}
	if f.Changed("log-level") || cfg.LogLevel == "" {
		cfg.LogLevel = logLevel
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
}

func newLogger(level string) (*slog.Logger, error) {
	lvl, err := config.ParseLogLevel(level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(logOutput, &slog.HandlerOptions{Level: lvl})), nil
}

func render(roots []*types.TreeNode, cfg *config.Config) ([]byte, error) {
	if cfg.Format == config.FormatMarkdown {
		out, err := renderer.RenderSummary(roots, renderer.SummaryOptions{
			Top:    cfg.Top,
			SortBy: renderer.Metric(cfg.SortBy),
		})
		return []byte(out), err
	}
	return renderer.RenderJSON(roots)
}
