// Package analysis runs the full pipeline over a parsed build: it normalizes
// each chunk's modules, measures the chunk's emitted assets, attributes bytes
// to modules and folds the result into size trees.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/northcutted/bundle-treemap/pkg/normalize"
	"github.com/northcutted/bundle-treemap/pkg/sizes"
	"github.com/northcutted/bundle-treemap/pkg/tree"
	"github.com/northcutted/bundle-treemap/pkg/types"
)

// CombinedLabel labels the single root produced with GroupByCombined.
const CombinedLabel = "(combined)"

type chunkResult struct {
	root         *types.TreeNode
	modules      []types.SizedModule
	unattributed types.SizeTriple
	assets       []types.AssetInfo
	skipped      bool
}

func (r *chunkResult) hasModules() bool {
	return r != nil && !r.skipped && len(r.modules) > 0
}

// Analyze returns one tree per chunk, in chunk order, or a single combined
// tree. It returns nil, nil when no chunk has any usable module; a chunk
// without modules next to chunks with modules yields an empty root.
//
// assetDir may be empty, in which case every size falls back to the declared
// size. Asset-level problems are logged and never fail the run.
func Analyze(ctx context.Context, meta *types.BuildMetadata, assetDir string, opts Options, logger *slog.Logger) ([]*types.TreeNode, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	if assetDir != "" {
		info, err := os.Stat(assetDir)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAssetDir, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%w: %s is not a directory", ErrAssetDir, assetDir)
		}
	}

	chunks := selectChunks(meta, opts.Chunks)
	if len(chunks) == 0 {
		logger.Error("build metadata contains no chunks to analyze")
		return nil, nil
	}

	compressor, err := sizes.NewCompressor(opts.Compression)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	resolver := &sizes.Resolver{
		Dir:         assetDir,
		Compressor:  compressor,
		Attribution: opts.IncludeSourceAttribution && assetDir != "",
	}

	results := make([]*chunkResult, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = analyzeChunk(gctx, meta, chunk, resolver, opts, logger.With("chunk", chunk.ID))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	found := false
	for _, r := range results {
		if r.hasModules() {
			found = true
			break
		}
	}
	if !found {
		logger.Error("no chunk contains any usable module")
		return nil, nil
	}

	var roots []*types.TreeNode
	if opts.GroupBy == GroupByCombined {
		roots = []*types.TreeNode{combine(results, opts)}
	} else {
		for _, r := range results {
			if r != nil && !r.skipped {
				roots = append(roots, r.root)
			}
		}
	}

	var total types.SizeTriple
	for _, r := range roots {
		total = total.Add(r.SizeTriple)
	}
	logger.Info("analysis complete",
		"trees", len(roots),
		"declared", humanize.Bytes(uint64(total.Declared)),
		"emitted", humanize.Bytes(uint64(total.Emitted)),
		"compressed", humanize.Bytes(uint64(total.Compressed)),
	)
	return roots, nil
}

func selectChunks(meta *types.BuildMetadata, ids []string) []types.Chunk {
	if meta == nil {
		return nil
	}
	if len(ids) == 0 {
		return meta.Chunks
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []types.Chunk
	for _, c := range meta.Chunks {
		if want[c.ID] {
			out = append(out, c)
		}
	}
	return out
}

func analyzeChunk(ctx context.Context, meta *types.BuildMetadata, chunk types.Chunk, r *sizes.Resolver, opts Options, logger *slog.Logger) *chunkResult {
	files := selectAssets(chunk.Files, opts.ExcludeAssets)
	if len(chunk.Files) > 0 && len(files) == 0 {
		logger.Debug("all chunk assets excluded, skipping chunk")
		return &chunkResult{skipped: true}
	}

	modules, diags := normalize.Modules(chunk.Modules, opts.ConcatPolicy)
	types.Emit(ctx, logger, diags)

	var primary *sizes.Asset
	var infos []types.AssetInfo
	for _, name := range files {
		a, d := r.ResolveAsset(name, meta.Assets[name].Size)
		types.Emit(ctx, logger, d)
		infos = append(infos, a.Info())
		if primary == nil && isScript(name) {
			primary = a
		}
	}

	label := chunkLabel(chunk, files, primary)
	if len(modules) == 0 {
		logger.Warn("chunk has no usable modules", "label", label)
		return &chunkResult{
			root:   &types.TreeNode{Label: label, Kind: types.KindChunk, Assets: infos},
			assets: infos,
		}
	}

	sized, d := r.SizeModules(primary, modules)
	types.Emit(ctx, logger, d)

	root := tree.Build(label, sized, tree.Options{CollapseFolders: opts.CollapseFolders})
	res := &chunkResult{root: root, modules: sized, assets: infos}
	if u, ok := r.ResolveUnattributed(primary); ok && !u.IsZero() {
		tree.Append(root, unattributedNode(u))
		tree.Aggregate(root)
		res.unattributed = u
	}
	root.Assets = infos

	logger.Debug("chunk analyzed",
		"label", label,
		"modules", len(modules),
		"declared", humanize.Bytes(uint64(root.Declared)),
		"emitted", humanize.Bytes(uint64(root.Emitted)),
	)
	return res
}

// combine merges the modules of all chunks into one tree. A module listed by
// several chunks is kept once, with the largest declared size seen.
func combine(results []*chunkResult, opts Options) *types.TreeNode {
	var merged []types.SizedModule
	index := make(map[string]int)
	var unattributed types.SizeTriple
	var assets []types.AssetInfo
	seenAsset := make(map[string]bool)

	for _, r := range results {
		if r == nil || r.skipped {
			continue
		}
		for _, m := range r.modules {
			i, ok := index[m.Path]
			switch {
			case !ok:
				index[m.Path] = len(merged)
				merged = append(merged, m)
			case m.Total().Declared > merged[i].Total().Declared:
				merged[i] = m
			}
		}
		unattributed = unattributed.Add(r.unattributed)
		for _, a := range r.assets {
			if !seenAsset[a.Name] {
				seenAsset[a.Name] = true
				assets = append(assets, a)
			}
		}
	}

	root := tree.Build(CombinedLabel, merged, tree.Options{
		Kind:            types.KindCombined,
		CollapseFolders: opts.CollapseFolders,
	})
	if !unattributed.IsZero() {
		tree.Append(root, unattributedNode(unattributed))
		tree.Aggregate(root)
	}
	root.Assets = assets
	return root
}

func unattributedNode(s types.SizeTriple) *types.TreeNode {
	return &types.TreeNode{
		Label:      tree.UnattributedLabel,
		Kind:       types.KindUnattributed,
		SizeTriple: s,
		Attributed: true,
	}
}

// selectAssets strips query strings, drops source maps and applies the
// exclude filter. Order is preserved and names are deduplicated.
func selectAssets(files []string, exclude func(string) bool) []string {
	var out []string
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		name, _, _ := strings.Cut(f, "?")
		if name == "" || seen[name] || strings.HasSuffix(name, ".map") {
			continue
		}
		if exclude != nil && exclude(name) {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

func isScript(name string) bool {
	switch path.Ext(name) {
	case ".js", ".mjs", ".cjs":
		return true
	}
	return false
}

func chunkLabel(chunk types.Chunk, files []string, primary *sizes.Asset) string {
	switch {
	case primary != nil:
		return primary.Name
	case len(files) > 0:
		return files[0]
	case len(chunk.Names) > 0 && chunk.Names[0] != "":
		return chunk.Names[0]
	default:
		return "chunk " + chunk.ID
	}
}
