package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northcutted/bundle-treemap/pkg/analysis"
	"github.com/northcutted/bundle-treemap/pkg/normalize"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFile)
	content := `
bundleDir: dist
excludeAssets:
  - "*.css"
  - "re:^vendor\\."
groupBy: combined
includeSourceAttribution: false
compression: brotli
concatPolicy: disjoint
concurrency: 2
collapseFolders: true
output: report/treemap.json
format: json
top: 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "dist"), cfg.BundleDir)
	assert.Equal(t, filepath.Join(dir, "report/treemap.json"), cfg.Output)
	assert.Equal(t, 5, cfg.Top)

	opts, err := cfg.AnalysisOptions()
	require.NoError(t, err)
	assert.Equal(t, analysis.GroupByCombined, opts.GroupBy)
	assert.False(t, opts.IncludeSourceAttribution)
	assert.Equal(t, "brotli", opts.Compression)
	assert.Equal(t, normalize.ConcatDisjoint, opts.ConcatPolicy)
	assert.Equal(t, 2, opts.Concurrency)
	assert.True(t, opts.CollapseFolders)

	require.NotNil(t, opts.ExcludeAssets)
	assert.True(t, opts.ExcludeAssets("static/app.css"))
	assert.True(t, opts.ExcludeAssets("vendor.js"))
	assert.False(t, opts.ExcludeAssets("main.js"))
}

func TestLoadAbsolutePaths(t *testing.T) {
	dir := t.TempDir()
	abs := filepath.Join(t.TempDir(), "dist")
	path := filepath.Join(dir, DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte("bundleDir: "+abs+"\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, abs, cfg.BundleDir)
	assert.Empty(t, cfg.Output)
}

func TestLoadKeepsDirectoryOutput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte("output: report/\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "report")+string(filepath.Separator), cfg.Output)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)

	opts, err := cfg.AnalysisOptions()
	require.NoError(t, err)
	assert.Equal(t, analysis.DefaultOptions().GroupBy, opts.GroupBy)
	assert.True(t, opts.IncludeSourceAttribution)
	assert.Equal(t, "gzip", opts.Compression)
	assert.Equal(t, normalize.ConcatInclusive, opts.ConcatPolicy)
	assert.Nil(t, opts.ExcludeAssets)
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "bundledir: dist\n"},
		{"bad format", "format: html\n"},
		{"bad group", "groupBy: folder\n"},
		{"bad policy", "concatPolicy: overlap\n"},
		{"bad compression", "compression: zstd\n"},
		{"negative top", "top: -2\n"},
		{"bad sort", "sortBy: gzip\n"},
		{"bad log level", "logLevel: loud\n"},
		{"bad regex", "excludeAssets: [\"re:(\"]\n"},
		{"bad glob", "excludeAssets: [\"[\"]\n"},
		{"not yaml", "groupBy: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestInvalidOptionsWrapped(t *testing.T) {
	cfg := &Config{GroupBy: "folder"}
	_, err := cfg.AnalysisOptions()
	assert.ErrorIs(t, err, analysis.ErrInvalidOptions)
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"silent":  LevelSilent,
		" info ":  slog.LevelInfo,
		"warning": slog.LevelWarn,
	}
	for in, want := range tests {
		got, err := ParseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLogLevel("trace")
	assert.Error(t, err)
}
