package analysis

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/northcutted/bundle-treemap/pkg/normalize"
	"github.com/northcutted/bundle-treemap/pkg/sizes"
)

// GroupBy selects how chunks map to result trees.
type GroupBy string

const (
	// GroupByChunk yields one root per chunk.
	GroupByChunk GroupBy = "chunk"
	// GroupByCombined yields a single root for the whole build.
	GroupByCombined GroupBy = "combined"
)

var (
	// ErrInvalidOptions marks a misconfigured analysis request.
	ErrInvalidOptions = errors.New("invalid analysis options")
	// ErrAssetDir marks an asset directory that cannot be used.
	ErrAssetDir = errors.New("invalid asset directory")
)

// Options controls an analysis run.
type Options struct {
	// Chunks restricts the analysis to the listed chunk ids; empty means all.
	Chunks []string
	// ExcludeAssets drops matching asset names from the report.
	ExcludeAssets func(name string) bool
	GroupBy       GroupBy
	// IncludeSourceAttribution enables module-level emitted and compressed
	// sizes from source maps. When false, modules report declared sizes only.
	IncludeSourceAttribution bool
	// Compression is "gzip" (default) or "brotli".
	Compression  string
	ConcatPolicy normalize.ConcatPolicy
	// Concurrency bounds the number of chunks analyzed at once; 0 means
	// runtime.NumCPU().
	Concurrency     int
	CollapseFolders bool
}

// DefaultOptions returns the options used when the caller sets none.
func DefaultOptions() Options {
	return Options{
		GroupBy:                  GroupByChunk,
		IncludeSourceAttribution: true,
		Compression:              "gzip",
		ConcatPolicy:             normalize.ConcatInclusive,
	}
}

func (o Options) withDefaults() Options {
	if o.GroupBy == "" {
		o.GroupBy = GroupByChunk
	}
	if o.ConcatPolicy == "" {
		o.ConcatPolicy = normalize.ConcatInclusive
	}
	if o.Concurrency == 0 {
		o.Concurrency = runtime.NumCPU()
	}
	return o
}

// Validate reports option values the engine cannot run with.
func (o Options) Validate() error {
	switch o.GroupBy {
	case "", GroupByChunk, GroupByCombined:
	default:
		return fmt.Errorf("%w: unknown groupBy %q", ErrInvalidOptions, o.GroupBy)
	}
	if o.ConcatPolicy != "" && !o.ConcatPolicy.Valid() {
		return fmt.Errorf("%w: unknown concat policy %q", ErrInvalidOptions, o.ConcatPolicy)
	}
	if _, err := sizes.NewCompressor(o.Compression); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	if o.Concurrency < 0 {
		return fmt.Errorf("%w: concurrency must not be negative", ErrInvalidOptions)
	}
	return nil
}
