// Package normalize turns the module descriptors of one chunk into a
// deduplicated list of logical modules.
package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/northcutted/bundle-treemap/pkg/types"
)

// ConcatPolicy decides how the reported size of a concatenation root
// relates to the sizes of its concatenated children.
type ConcatPolicy string

const (
	// ConcatInclusive treats the root's size as covering its children; the
	// root keeps only the remainder as its own bytes.
	ConcatInclusive ConcatPolicy = "inclusive"
	// ConcatDisjoint treats the root's size as its own bytes only.
	ConcatDisjoint ConcatPolicy = "disjoint"
)

// Valid reports whether p is a known policy.
func (p ConcatPolicy) Valid() bool {
	return p == ConcatInclusive || p == ConcatDisjoint
}

// RuntimeFolder is the path prefix given to modules without a real file path.
const RuntimeFolder = "(runtime)"

var concatSuffix = regexp.MustCompile(` \+ \d+ modules?$`)

// Normalize collects the modules of chunkID and resolves duplicates and
// concatenation groups. Malformed descriptors are skipped and reported as
// diagnostics. An unknown chunk or a chunk without usable modules yields an
// empty slice.
func Normalize(meta *types.BuildMetadata, chunkID string, policy ConcatPolicy) ([]types.LogicalModule, []types.Diagnostic) {
	chunk, ok := meta.Chunk(chunkID)
	if !ok {
		return nil, []types.Diagnostic{types.Warn("chunk not found in build metadata", "chunk", chunkID)}
	}
	return Modules(chunk.Modules, policy)
}

// Modules normalizes a flat list of descriptors.
func Modules(descriptors []types.ModuleDescriptor, policy ConcatPolicy) ([]types.LogicalModule, []types.Diagnostic) {
	if !policy.Valid() {
		policy = ConcatInclusive
	}
	n := &normalizer{policy: policy}
	modules := n.merge(descriptors)
	modules = stripConcatenated(modules)
	return modules, n.diags
}

type normalizer struct {
	policy ConcatPolicy
	diags  []types.Diagnostic
}

// merge converts descriptors and folds entries sharing a path into one.
// The merged size is the largest of the duplicates.
func (n *normalizer) merge(descriptors []types.ModuleDescriptor) []types.LogicalModule {
	var out []types.LogicalModule
	index := make(map[string]int)

	for _, d := range descriptors {
		m, ok := n.convert(d)
		if !ok {
			continue
		}
		i, dup := index[m.Path]
		if !dup {
			index[m.Path] = len(out)
			out = append(out, m)
			continue
		}
		existing := &out[i]
		if m.DeclaredSize > existing.DeclaredSize {
			existing.DeclaredSize = m.DeclaredSize
		}
		existing.Children = mergeChildren(existing.Children, m.Children)
	}
	return out
}

func (n *normalizer) convert(d types.ModuleDescriptor) (types.LogicalModule, bool) {
	if d.Size == nil {
		n.diags = append(n.diags, types.Warn("skipping module without size", "module", describe(d)))
		return types.LogicalModule{}, false
	}
	if d.Name == "" && d.Identifier == "" && d.ID == "" {
		n.diags = append(n.diags, types.Warn("skipping module without name or id"))
		return types.LogicalModule{}, false
	}

	m := types.LogicalModule{ID: d.ID}
	path, source, synthetic := ResolvePath(d)
	m.Path, m.Source, m.Synthetic = path, source, synthetic

	if len(d.Modules) > 0 {
		m.Children = n.merge(d.Modules)
	}

	size := *d.Size
	if len(m.Children) > 0 && n.policy == ConcatInclusive {
		var children int64
		for _, c := range m.Children {
			children += c.Total()
		}
		size -= children
		if size < 0 {
			n.diags = append(n.diags, types.Debug("concatenated children exceed reported size",
				"module", m.Path, "size", *d.Size, "children", children))
			size = 0
		}
	}
	m.DeclaredSize = size
	return m, true
}

func mergeChildren(into, from []types.LogicalModule) []types.LogicalModule {
	index := make(map[string]int, len(into))
	for i, c := range into {
		index[c.Path] = i
	}
	for _, c := range from {
		if i, ok := index[c.Path]; ok {
			if c.DeclaredSize > into[i].DeclaredSize {
				into[i].DeclaredSize = c.DeclaredSize
			}
			continue
		}
		index[c.Path] = len(into)
		into = append(into, c)
	}
	return into
}

// stripConcatenated drops top-level modules already listed as a child of a
// concatenation root so each physical module appears once.
func stripConcatenated(modules []types.LogicalModule) []types.LogicalModule {
	nested := make(map[string]bool)
	var collect func([]types.LogicalModule)
	collect = func(ms []types.LogicalModule) {
		for _, m := range ms {
			nested[m.Path] = true
			collect(m.Children)
		}
	}
	for _, m := range modules {
		collect(m.Children)
	}
	if len(nested) == 0 {
		return modules
	}

	out := make([]types.LogicalModule, 0, len(modules))
	for _, m := range modules {
		if nested[m.Path] && len(m.Children) == 0 {
			continue
		}
		out = append(out, m)
	}
	return out
}

// ResolvePath returns the display path of a descriptor, the resource path
// used for source map matching, and whether the path is synthetic.
func ResolvePath(d types.ModuleDescriptor) (path, source string, synthetic bool) {
	if strings.HasPrefix(d.Identifier, "multi ") || strings.HasPrefix(d.Name, "multi ") {
		return syntheticPath("multi " + firstNonEmpty(d.ID, d.Name)), "", true
	}

	name := concatSuffix.ReplaceAllString(d.Name, "")
	if name == "" {
		return syntheticPath("module " + firstNonEmpty(d.ID, d.Identifier)), "", true
	}
	if rest, ok := strings.CutPrefix(name, "webpack/runtime/"); ok {
		return syntheticPath(rest), "", true
	}

	parts := strings.Split(name, "!")
	resource := parts[len(parts)-1]
	var segments []string
	for _, loader := range parts[:len(parts)-1] {
		segments = append(segments, loaderSegments(loader)...)
	}
	resourceSegments := splitPath(resource)
	if len(resourceSegments) == 0 {
		return syntheticPath("module " + firstNonEmpty(d.ID, d.Identifier, name)), "", true
	}
	segments = append(segments, resourceSegments...)

	source = strings.TrimPrefix(resource, "./")
	return strings.Join(segments, "/"), source, false
}

// splitPath cleans a resource path into segments: "." and empty segments
// are dropped, "~" stands for node_modules and ".." pops the segment before
// it. A ".." with nothing to pop is kept, so files above the project root
// stay apart from files inside it.
func splitPath(p string) []string {
	p = strings.ReplaceAll(p, "\\", "/")
	var stack []string
	for _, part := range strings.Split(p, "/") {
		switch part {
		case "", ".":
			continue
		case "..":
			if n := len(stack); n > 0 && stack[n-1] != ".." {
				stack = stack[:n-1]
				continue
			}
		case "~":
			part = "node_modules"
		}
		stack = append(stack, part)
	}
	return stack
}

// loaderSegments renders one loader of a request chain as path segments.
// Loaders resolved into node_modules are shown by package name, others by
// their last path element; the final segment carries a trailing "!" so a
// loader never reads as a plain folder.
func loaderSegments(loader string) []string {
	if i := strings.IndexByte(loader, '?'); i >= 0 {
		loader = loader[:i]
	}
	loader = strings.ReplaceAll(loader, "\\", "/")

	var segs []string
	if i := strings.LastIndex(loader, "node_modules/"); i >= 0 {
		rest := strings.Split(loader[i+len("node_modules/"):], "/")
		segs = rest[:1]
		if strings.HasPrefix(rest[0], "@") && len(rest) > 1 {
			segs = rest[:2]
		}
	} else {
		parts := splitPath(loader)
		if len(parts) == 0 {
			return nil
		}
		segs = parts[len(parts)-1:]
	}

	out := make([]string, len(segs))
	copy(out, segs)
	out[len(out)-1] += "!"
	return out
}

func syntheticPath(label string) string {
	label = strings.TrimSpace(strings.ReplaceAll(label, "/", "_"))
	return RuntimeFolder + "/" + label
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return "unknown"
}

func describe(d types.ModuleDescriptor) string {
	if d.Name != "" {
		return d.Name
	}
	if d.Identifier != "" {
		return d.Identifier
	}
	return fmt.Sprintf("id %s", firstNonEmpty(d.ID))
}
