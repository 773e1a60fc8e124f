package analysis

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northcutted/bundle-treemap/pkg/normalize"
	"github.com/northcutted/bundle-treemap/pkg/sizes"
	"github.com/northcutted/bundle-treemap/pkg/tree"
	"github.com/northcutted/bundle-treemap/pkg/types"
)

func size(n int64) *int64 { return &n }

func mod(name string, n int64) types.ModuleDescriptor {
	return types.ModuleDescriptor{Name: name, Size: size(n)}
}

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func singleChunk(modules ...types.ModuleDescriptor) *types.BuildMetadata {
	return &types.BuildMetadata{
		Chunks: []types.Chunk{{ID: "0", Names: []string{"main"}, Files: []string{"main.js"}, Modules: modules}},
		Assets: map[string]types.Asset{"main.js": {Name: "main.js", Size: 1000}},
	}
}

func TestAnalyzeDeclaredOnly(t *testing.T) {
	meta := singleChunk(
		mod("./src/a/b/x.js", 10),
		mod("./src/a/b/y.js", 20),
		mod("./src/a/z.js", 5),
	)

	roots, err := Analyze(context.Background(), meta, "", DefaultOptions(), discardLogger())
	require.NoError(t, err)
	require.Len(t, roots, 1)

	root := roots[0]
	assert.Equal(t, "main.js", root.Label)
	assert.Equal(t, types.KindChunk, root.Kind)
	assert.Equal(t, types.SizeTriple{Declared: 35, Emitted: 35, Compressed: 35}, root.SizeTriple)

	b := root.Find("src", "a", "b")
	require.NotNil(t, b)
	assert.Equal(t, int64(30), b.Declared)

	require.Len(t, root.Assets, 1)
	assert.Equal(t, "main.js", root.Assets[0].Name)
	assert.Equal(t, int64(1000), root.Assets[0].Declared)
	assert.False(t, root.Assets[0].Missing)
}

func TestAnalyzeNoUsableModules(t *testing.T) {
	meta := singleChunk(types.ModuleDescriptor{Name: "./broken.js"})
	logger, buf := bufferLogger()

	roots, err := Analyze(context.Background(), meta, "", DefaultOptions(), logger)
	require.NoError(t, err)
	assert.Nil(t, roots)
	assert.Contains(t, buf.String(), "skipping module without size")
}

func TestAnalyzeNilMetadata(t *testing.T) {
	roots, err := Analyze(context.Background(), nil, "", DefaultOptions(), discardLogger())
	require.NoError(t, err)
	assert.Nil(t, roots)
}

func TestAnalyzeEmptySiblingChunk(t *testing.T) {
	meta := &types.BuildMetadata{
		Chunks: []types.Chunk{
			{ID: "0", Files: []string{"main.js"}, Modules: []types.ModuleDescriptor{mod("./src/index.js", 42)}},
			{ID: "1", Names: []string{"lazy"}},
		},
		Assets: map[string]types.Asset{"main.js": {Name: "main.js", Size: 42}},
	}
	logger, buf := bufferLogger()

	roots, err := Analyze(context.Background(), meta, "", DefaultOptions(), logger)
	require.NoError(t, err)
	require.Len(t, roots, 2)

	assert.Equal(t, "main.js", roots[0].Label)
	assert.Equal(t, int64(42), roots[0].Declared)

	assert.Equal(t, "lazy", roots[1].Label)
	assert.Empty(t, roots[1].Groups)
	assert.True(t, roots[1].IsZero())
	assert.Contains(t, buf.String(), "chunk has no usable modules")
}

func TestAnalyzeMissingAsset(t *testing.T) {
	meta := singleChunk(mod("./src/index.js", 64))
	logger, buf := bufferLogger()

	roots, err := Analyze(context.Background(), meta, t.TempDir(), DefaultOptions(), logger)
	require.NoError(t, err)
	require.Len(t, roots, 1)

	root := roots[0]
	assert.Equal(t, types.Declared(64), root.SizeTriple)
	require.Len(t, root.Assets, 1)
	assert.True(t, root.Assets[0].Missing)

	out := buf.String()
	assert.Contains(t, out, "error reading bundle asset")
	assert.Contains(t, out, "no such file")
	assert.Contains(t, out, "chunk=0")
}

func writeBundle(t *testing.T, dir string) {
	t.Helper()
	js := "aaaa\nbbbbbb"
	sourceMap := `{"version":3,"sources":["webpack:///./src/a.js","webpack:///./src/b.js"],"names":[],"mappings":"AAAA;AACA"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.js"), []byte(js), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.js.map"), []byte(sourceMap), 0644))
}

func TestAnalyzeSourceAttribution(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir)
	meta := singleChunk(mod("./src/a.js", 100), mod("./src/b.js", 200))

	roots, err := Analyze(context.Background(), meta, dir, DefaultOptions(), discardLogger())
	require.NoError(t, err)
	require.Len(t, roots, 1)
	root := roots[0]

	gz := sizes.Gzip{Level: sizes.DefaultGzipLevel}

	a := root.Find("src", "a.js")
	require.NotNil(t, a)
	assert.True(t, a.Attributed)
	assert.Equal(t, types.SizeTriple{Declared: 100, Emitted: 4, Compressed: gz.Size([]byte("aaaa"))}, a.SizeTriple)

	b := root.Find("src", "b.js")
	require.NotNil(t, b)
	assert.Equal(t, int64(6), b.Emitted)
	assert.Equal(t, gz.Size([]byte("bbbbbb")), b.Compressed)

	u := root.Find(tree.UnattributedLabel)
	require.NotNil(t, u)
	assert.Equal(t, types.KindUnattributed, u.Kind)
	assert.Equal(t, int64(0), u.Declared)
	assert.Equal(t, int64(1), u.Emitted)

	assert.Equal(t, int64(300), root.Declared)
	assert.Equal(t, int64(11), root.Emitted)

	require.Len(t, root.Assets, 1)
	assert.Equal(t, int64(11), root.Assets[0].Emitted)
	assert.Equal(t, gz.Size([]byte("aaaa\nbbbbbb")), root.Assets[0].Compressed)
}

func TestAnalyzeWithoutAttribution(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir)
	meta := singleChunk(mod("./src/a.js", 100), mod("./src/b.js", 200))

	opts := DefaultOptions()
	opts.IncludeSourceAttribution = false
	roots, err := Analyze(context.Background(), meta, dir, opts, discardLogger())
	require.NoError(t, err)
	require.Len(t, roots, 1)

	assert.Nil(t, roots[0].Find(tree.UnattributedLabel))
	assert.Equal(t, types.Declared(100), roots[0].Find("src", "a.js").SizeTriple)
	// The asset itself is still measured on disk.
	assert.Equal(t, int64(11), roots[0].Assets[0].Emitted)
}

func TestAnalyzeIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir)
	meta := singleChunk(mod("./src/a.js", 100), mod("./src/b.js", 200), mod("./src/a.js", 100))

	first, err := Analyze(context.Background(), meta, dir, DefaultOptions(), discardLogger())
	require.NoError(t, err)
	second, err := Analyze(context.Background(), meta, dir, DefaultOptions(), discardLogger())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAnalyzeCombined(t *testing.T) {
	meta := &types.BuildMetadata{
		Chunks: []types.Chunk{
			{ID: "0", Files: []string{"a.js"}, Modules: []types.ModuleDescriptor{mod("./src/shared.js", 50), mod("./src/a.js", 10)}},
			{ID: "1", Files: []string{"b.js"}, Modules: []types.ModuleDescriptor{mod("./src/shared.js", 70), mod("./src/b.js", 20)}},
		},
		Assets: map[string]types.Asset{
			"a.js": {Name: "a.js", Size: 60},
			"b.js": {Name: "b.js", Size: 90},
		},
	}
	opts := DefaultOptions()
	opts.GroupBy = GroupByCombined

	roots, err := Analyze(context.Background(), meta, "", opts, discardLogger())
	require.NoError(t, err)
	require.Len(t, roots, 1)

	root := roots[0]
	assert.Equal(t, CombinedLabel, root.Label)
	assert.Equal(t, types.KindCombined, root.Kind)
	assert.Equal(t, int64(100), root.Declared)

	src := root.Find("src")
	require.NotNil(t, src)
	var labels []string
	for _, g := range src.Groups {
		labels = append(labels, g.Label)
	}
	assert.Equal(t, []string{"shared.js", "a.js", "b.js"}, labels)
	assert.Equal(t, int64(70), root.Find("src", "shared.js").Declared)
	assert.Len(t, root.Assets, 2)
}

func TestAnalyzeExcludedChunkSkipped(t *testing.T) {
	meta := &types.BuildMetadata{
		Chunks: []types.Chunk{
			{ID: "main", Files: []string{"main.js"}, Modules: []types.ModuleDescriptor{mod("./src/index.js", 5)}},
			{ID: "vendor", Files: []string{"vendor.js", "vendor.js.map"}, Modules: []types.ModuleDescriptor{mod("./node_modules/x/index.js", 7)}},
		},
		Assets: map[string]types.Asset{},
	}
	opts := DefaultOptions()
	opts.ExcludeAssets = func(name string) bool { return strings.HasPrefix(name, "vendor") }

	roots, err := Analyze(context.Background(), meta, "", opts, discardLogger())
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, "main.js", roots[0].Label)
}

func TestAnalyzeChunkFilter(t *testing.T) {
	meta := &types.BuildMetadata{
		Chunks: []types.Chunk{
			{ID: "0", Files: []string{"a.js"}, Modules: []types.ModuleDescriptor{mod("./a.js", 1)}},
			{ID: "1", Files: []string{"b.js"}, Modules: []types.ModuleDescriptor{mod("./b.js", 2)}},
		},
	}
	opts := DefaultOptions()
	opts.Chunks = []string{"1"}

	roots, err := Analyze(context.Background(), meta, "", opts, discardLogger())
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, "b.js", roots[0].Label)
}

func TestAnalyzeChunkOrderWithConcurrency(t *testing.T) {
	meta := &types.BuildMetadata{}
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		meta.Chunks = append(meta.Chunks, types.Chunk{
			ID:      id,
			Files:   []string{id + ".js"},
			Modules: []types.ModuleDescriptor{mod("./"+id+".js", 3)},
		})
	}
	opts := DefaultOptions()
	opts.Concurrency = 3

	roots, err := Analyze(context.Background(), meta, "", opts, discardLogger())
	require.NoError(t, err)
	require.Len(t, roots, 6)
	for i, id := range []string{"a", "b", "c", "d", "e", "f"} {
		assert.Equal(t, id+".js", roots[i].Label)
	}
}

func TestAnalyzeConcatPolicies(t *testing.T) {
	concat := types.ModuleDescriptor{
		Name: "./src/index.js + 2 modules",
		Size: size(100),
		Modules: []types.ModuleDescriptor{
			mod("./src/index.js", 30),
			mod("./src/util.js", 50),
		},
	}

	tests := []struct {
		policy normalize.ConcatPolicy
		want   int64
	}{
		{normalize.ConcatInclusive, 100},
		{normalize.ConcatDisjoint, 180},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			opts := DefaultOptions()
			opts.ConcatPolicy = tt.policy
			roots, err := Analyze(context.Background(), singleChunk(concat), "", opts, discardLogger())
			require.NoError(t, err)
			require.Len(t, roots, 1)
			assert.Equal(t, tt.want, roots[0].Declared)
		})
	}
}

func TestAnalyzeConcatenatedRootListedAsChild(t *testing.T) {
	dir := t.TempDir()
	js := "iiii\naaaaa\nbbbbbb"
	sourceMap := `{"version":3,"sources":["webpack:///./src/index.js","webpack:///./src/a.js","webpack:///./src/b.js"],"names":[],"mappings":"AAAA;ACAA;ACAA"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.js"), []byte(js), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.js.map"), []byte(sourceMap), 0644))

	meta := singleChunk(types.ModuleDescriptor{
		Name: "./src/index.js + 2 modules",
		Size: size(300),
		Modules: []types.ModuleDescriptor{
			mod("./src/index.js", 100),
			mod("./src/a.js", 100),
			mod("./src/b.js", 100),
		},
	})

	for _, policy := range []normalize.ConcatPolicy{normalize.ConcatInclusive, normalize.ConcatDisjoint} {
		t.Run(string(policy), func(t *testing.T) {
			opts := DefaultOptions()
			opts.ConcatPolicy = policy
			roots, err := Analyze(context.Background(), meta, dir, opts, discardLogger())
			require.NoError(t, err)
			require.Len(t, roots, 1)

			root := roots[0]
			assert.Equal(t, int64(len(js)), root.Emitted)

			c := root.Find("src", "index.js"+tree.ConcatenatedSuffix)
			require.NotNil(t, c)
			index := c.Find("src", "index.js")
			require.NotNil(t, index)
			assert.True(t, index.Attributed)
			assert.Equal(t, int64(4), index.Emitted)
			assert.Equal(t, int64(15), c.Emitted)
		})
	}
}

func TestAnalyzeParentPathsStayDistinct(t *testing.T) {
	meta := singleChunk(
		mod("../node_modules/x/index.js", 10),
		mod("./node_modules/x/index.js", 20),
	)

	roots, err := Analyze(context.Background(), meta, "", DefaultOptions(), discardLogger())
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, int64(30), roots[0].Declared)
	assert.NotNil(t, roots[0].Find("..", "node_modules", "x", "index.js"))
	assert.NotNil(t, roots[0].Find("node_modules", "x", "index.js"))
}

func TestAnalyzeInvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"group by", Options{GroupBy: "folder"}},
		{"concat policy", Options{ConcatPolicy: "overlap"}},
		{"compression", Options{Compression: "zstd"}},
		{"concurrency", Options{Concurrency: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Analyze(context.Background(), singleChunk(mod("./a.js", 1)), "", tt.opts, discardLogger())
			assert.ErrorIs(t, err, ErrInvalidOptions)
		})
	}
}

func TestAnalyzeAssetDir(t *testing.T) {
	meta := singleChunk(mod("./a.js", 1))

	_, err := Analyze(context.Background(), meta, filepath.Join(t.TempDir(), "missing"), DefaultOptions(), discardLogger())
	assert.ErrorIs(t, err, ErrAssetDir)

	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
	_, err = Analyze(context.Background(), meta, file, DefaultOptions(), discardLogger())
	assert.ErrorIs(t, err, ErrAssetDir)
}

func TestAnalyzeCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Analyze(ctx, singleChunk(mod("./a.js", 1)), "", DefaultOptions(), discardLogger())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyzeDeclaredTotalMatchesModules(t *testing.T) {
	meta := singleChunk(
		mod("./src/index.js", 11),
		mod("./src/index.js", 11),
		mod("webpack/runtime/define property getters", 3),
		mod("./node_modules/lodash/lodash.js", 400),
		mod("css-loader!./src/style.css", 17),
	)
	modules, _ := normalize.Normalize(meta, "0", normalize.ConcatInclusive)
	var want int64
	for _, m := range modules {
		want += m.Total()
	}

	roots, err := Analyze(context.Background(), meta, "", DefaultOptions(), discardLogger())
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, want, roots[0].Declared)
	assert.Equal(t, int64(431), want)
}
