// Package config loads the bundle-treemap.yaml configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/northcutted/bundle-treemap/pkg/analysis"
	"github.com/northcutted/bundle-treemap/pkg/normalize"
	"github.com/northcutted/bundle-treemap/pkg/renderer"
)

// DefaultFile is the config file picked up from the working directory.
const DefaultFile = "bundle-treemap.yaml"

// Output formats.
const (
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// Config is the on-disk configuration. Zero values mean "not set" so CLI
// flags and defaults can be layered over it.
type Config struct {
	// BundleDir holds the emitted assets. Relative paths are resolved
	// against the config file's directory.
	BundleDir     string   `yaml:"bundleDir"`
	ExcludeAssets []string `yaml:"excludeAssets"`
	Chunks        []string `yaml:"chunks"`
	GroupBy       string   `yaml:"groupBy"`
	// IncludeSourceAttribution defaults to true when omitted.
	IncludeSourceAttribution *bool  `yaml:"includeSourceAttribution"`
	Compression              string `yaml:"compression"`
	ConcatPolicy             string `yaml:"concatPolicy"`
	Concurrency              int    `yaml:"concurrency"`
	CollapseFolders          bool   `yaml:"collapseFolders"`

	Output   string `yaml:"output"`
	Format   string `yaml:"format"`
	Top      int    `yaml:"top"`
	SortBy   string `yaml:"sortBy"`
	LogLevel string `yaml:"logLevel"`
}

// Load reads and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	cfg.BundleDir = resolvePath(dir, cfg.BundleDir)
	if cfg.Output != "-" {
		out := resolvePath(dir, cfg.Output)
		// keep the trailing separator that marks a directory
		if strings.HasSuffix(cfg.Output, "/") && !strings.HasSuffix(out, "/") {
			out += string(filepath.Separator)
		}
		cfg.Output = out
	}
	return cfg, nil
}

// Parse decodes config YAML. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that can be checked without running an analysis.
func (c *Config) Validate() error {
	switch c.Format {
	case "", FormatJSON, FormatMarkdown:
	default:
		return fmt.Errorf("unknown format %q (expected %s or %s)", c.Format, FormatJSON, FormatMarkdown)
	}
	if c.Top < -1 {
		return errors.New("top must be -1 (all) or more")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	switch renderer.Metric(c.SortBy) {
	case "", renderer.MetricDeclared, renderer.MetricEmitted, renderer.MetricCompressed:
	default:
		return fmt.Errorf("unknown sortBy %q", c.SortBy)
	}
	_, err := c.AnalysisOptions()
	return err
}

// AnalysisOptions converts the config into engine options, starting from
// analysis.DefaultOptions.
func (c *Config) AnalysisOptions() (analysis.Options, error) {
	opts := analysis.DefaultOptions()

	exclude, err := NewMatcher(c.ExcludeAssets)
	if err != nil {
		return opts, err
	}
	opts.ExcludeAssets = exclude
	opts.Chunks = c.Chunks

	if c.GroupBy != "" {
		opts.GroupBy = analysis.GroupBy(c.GroupBy)
	}
	if c.IncludeSourceAttribution != nil {
		opts.IncludeSourceAttribution = *c.IncludeSourceAttribution
	}
	if c.Compression != "" {
		opts.Compression = c.Compression
	}
	if c.ConcatPolicy != "" {
		opts.ConcatPolicy = normalize.ConcatPolicy(c.ConcatPolicy)
	}
	opts.Concurrency = c.Concurrency
	opts.CollapseFolders = c.CollapseFolders

	return opts, opts.Validate()
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
