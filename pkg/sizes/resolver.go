// Package sizes computes declared, emitted and compressed sizes for emitted
// assets and for the modules attributed to them.
package sizes

import (
	"encoding/base64"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/northcutted/bundle-treemap/pkg/sourcemap"
	"github.com/northcutted/bundle-treemap/pkg/types"
)

// readFile is swapped in tests.
var readFile = os.ReadFile

// Resolver measures assets under Dir. With Attribution disabled, modules are
// sized from their declared size only.
type Resolver struct {
	Dir         string
	Compressor  Compressor
	Attribution bool
}

// Asset is an emitted file loaded for measuring. It tracks which source map
// entries were already claimed by a module so no byte is counted twice.
// An Asset is not safe for concurrent use.
type Asset struct {
	Name    string
	Missing bool
	Sizes   types.SizeTriple

	attr    *sourcemap.Attribution
	claimed map[int]bool
}

// Attributed reports whether module-level attribution data was loaded.
func (a *Asset) Attributed() bool {
	return a != nil && a.attr != nil
}

// Info returns the asset's measured sizes for reporting.
func (a *Asset) Info() types.AssetInfo {
	return types.AssetInfo{Name: a.Name, Missing: a.Missing, SizeTriple: a.Sizes}
}

// Resolution is the outcome of sizing one module's own bytes.
type Resolution struct {
	Sizes       types.SizeTriple
	Attributed  bool
	Diagnostics []types.Diagnostic
}

func (r *Resolver) compressor() Compressor {
	if r.Compressor == nil {
		return Gzip{Level: DefaultGzipLevel}
	}
	return r.Compressor
}

// ResolveAsset reads the asset file and measures it. A missing file is not
// an error: the asset is marked Missing, its sizes fall back to declared,
// and a warning diagnostic is returned.
func (r *Resolver) ResolveAsset(name string, declared int64) (*Asset, []types.Diagnostic) {
	a := &Asset{Name: name, Sizes: types.Declared(declared)}
	if r.Dir == "" {
		return a, []types.Diagnostic{types.Debug("no bundle directory, using declared asset size", "asset", name)}
	}

	path, ok := r.assetPath(name)
	if !ok {
		a.Missing = true
		return a, []types.Diagnostic{types.Warn("asset path escapes bundle directory, using declared size", "asset", name)}
	}
	data, err := readFile(path)
	if err != nil {
		a.Missing = true
		msg := err.Error()
		if errors.Is(err, fs.ErrNotExist) {
			msg = "no such file"
		}
		return a, []types.Diagnostic{types.Warn("error reading bundle asset", "asset", path, "error", msg)}
	}

	a.Sizes = types.SizeTriple{
		Declared:   declared,
		Emitted:    int64(len(data)),
		Compressed: r.compressor().Size(data),
	}

	var diags []types.Diagnostic
	if r.Attribution {
		m, d := r.loadSourceMap(path, data)
		if d != nil {
			diags = append(diags, *d)
		}
		if m != nil {
			a.attr = m.Attribute(data)
			a.claimed = make(map[int]bool)
		}
	}
	return a, diags
}

// assetPath joins name onto Dir. It reports false when the result falls
// outside Dir.
func (r *Resolver) assetPath(name string) (string, bool) {
	path := filepath.Join(r.Dir, filepath.FromSlash(name))
	rel, err := filepath.Rel(r.Dir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(name) {
		return "", false
	}
	return path, true
}

func (r *Resolver) loadSourceMap(assetPath string, data []byte) (*sourcemap.Map, *types.Diagnostic) {
	url := sourcemap.FindURL(data)

	var raw []byte
	switch {
	case strings.HasPrefix(url, "data:"):
		comma := strings.IndexByte(url, ',')
		if comma < 0 || !strings.Contains(url[:comma], ";base64") {
			d := types.Debug("unsupported inline source map encoding", "asset", assetPath)
			return nil, &d
		}
		decoded, err := base64.StdEncoding.DecodeString(url[comma+1:])
		if err != nil {
			d := types.Debug("invalid inline source map", "asset", assetPath, "error", err)
			return nil, &d
		}
		raw = decoded
	default:
		mapPath := assetPath + ".map"
		if url != "" {
			if i := strings.IndexAny(url, "?#"); i >= 0 {
				url = url[:i]
			}
			mapPath = filepath.Join(filepath.Dir(assetPath), filepath.FromSlash(url))
		}
		content, err := readFile(mapPath)
		if err != nil {
			d := types.Debug("no source map for asset, module sizes fall back to declared", "asset", assetPath)
			return nil, &d
		}
		raw = content
	}

	m, err := sourcemap.Decode(raw)
	if err != nil {
		d := types.Debug("unusable source map", "asset", assetPath, "error", err)
		return nil, &d
	}
	return m, nil
}

// ResolveModule sizes the module's own bytes within asset. Without
// attribution data for the module all three metrics equal the declared size.
func (r *Resolver) ResolveModule(a *Asset, m types.LogicalModule) Resolution {
	res := Resolution{Sizes: types.Declared(m.DeclaredSize)}

	switch {
	case a == nil:
		res.Diagnostics = append(res.Diagnostics, types.Debug("no asset to attribute module to", "module", m.Path))
		return res
	case a.Missing:
		res.Diagnostics = append(res.Diagnostics, types.Debug("asset missing, using declared module size", "module", m.Path, "asset", a.Name))
		return res
	case a.attr == nil:
		res.Diagnostics = append(res.Diagnostics, types.Debug("no attribution data, using declared module size", "module", m.Path))
		return res
	case m.Synthetic || m.Source == "":
		res.Diagnostics = append(res.Diagnostics, types.Debug("module has no source path to attribute", "module", m.Path))
		return res
	}

	matched := a.attr.Match(m.Source)
	if len(matched) == 0 {
		res.Diagnostics = append(res.Diagnostics, types.Debug("module not found in source map", "module", m.Path, "source", m.Source))
		return res
	}
	var owned []int
	for _, i := range matched {
		if !a.claimed[i] {
			owned = append(owned, i)
		}
	}
	if len(owned) == 0 {
		// Every byte of this source already belongs to another module.
		res.Sizes.Emitted, res.Sizes.Compressed = 0, 0
		res.Attributed = true
		res.Diagnostics = append(res.Diagnostics, types.Debug("module bytes already claimed by another module", "module", m.Path, "source", m.Source))
		return res
	}
	for _, i := range owned {
		a.claimed[i] = true
	}

	spans := a.attr.Spans(owned)
	res.Sizes.Emitted = int64(sourcemap.TotalLen(spans))
	res.Sizes.Compressed = r.compressor().Size(a.attr.Bytes(spans))
	res.Attributed = true
	return res
}

// SizeModules resolves modules and their concatenated children in order.
// Children are resolved before their concatenation root, so the root keeps
// only the bytes none of its children claimed. Webpack lists the root's
// own file as its first child.
func (r *Resolver) SizeModules(a *Asset, modules []types.LogicalModule) ([]types.SizedModule, []types.Diagnostic) {
	var diags []types.Diagnostic
	out := make([]types.SizedModule, 0, len(modules))
	for _, m := range modules {
		sm := types.SizedModule{Path: m.Path, Synthetic: m.Synthetic}
		if len(m.Children) > 0 {
			children, d := r.SizeModules(a, m.Children)
			diags = append(diags, d...)
			sm.Children = children
		}
		res := r.ResolveModule(a, m)
		diags = append(diags, res.Diagnostics...)
		sm.Sizes, sm.Attributed = res.Sizes, res.Attributed
		out = append(out, sm)
	}
	return out, diags
}

// ResolveUnattributed measures the bytes of asset that no module claimed.
// It reports false when the asset carries no attribution data.
func (r *Resolver) ResolveUnattributed(a *Asset) (types.SizeTriple, bool) {
	if !a.Attributed() {
		return types.SizeTriple{}, false
	}
	spans := a.attr.Unclaimed(a.claimed)
	return types.SizeTriple{
		Emitted:    int64(sourcemap.TotalLen(spans)),
		Compressed: r.compressor().Size(a.attr.Bytes(spans)),
	}, true
}

// ResolveBytes measures a whole unit of content.
func (r *Resolver) ResolveBytes(b []byte) types.SizeTriple {
	n := int64(len(b))
	return types.SizeTriple{Declared: n, Emitted: n, Compressed: r.compressor().Size(b)}
}
