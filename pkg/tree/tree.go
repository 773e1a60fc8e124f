// Package tree folds sized modules into a folder hierarchy keyed by path
// segments.
package tree

import (
	"strings"

	"github.com/northcutted/bundle-treemap/pkg/types"
)

const (
	// SelfLabel labels the bytes a module owns itself when the module's node
	// also has groups (concatenated content, or files under the same path).
	SelfLabel = "(self)"
	// ConcatenatedSuffix is appended to the label of a concatenation root.
	ConcatenatedSuffix = " (concatenated)"
	// UnattributedLabel labels emitted bytes that no module claimed.
	UnattributedLabel = "(unattributed)"
)

// Options tunes Build.
type Options struct {
	// Kind of the root node; defaults to types.KindChunk.
	Kind types.NodeKind
	// CollapseFolders merges chains of single-child folders into one node
	// labeled "a/b/c".
	CollapseFolders bool
}

// Build inserts modules in order under a new root and aggregates sizes.
// Children keep discovery order.
func Build(label string, modules []types.SizedModule, opts Options) *types.TreeNode {
	kind := opts.Kind
	if kind == "" {
		kind = types.KindChunk
	}
	root := &types.TreeNode{Label: label, Kind: kind}
	b := &builder{children: make(map[*types.TreeNode]map[string]*types.TreeNode)}
	for _, m := range modules {
		b.insert(root, m, false)
	}
	Aggregate(root)
	if opts.CollapseFolders {
		collapse(root, true)
	}
	return root
}

// Append adds node as the last group of parent. Call Aggregate afterwards.
func Append(parent, node *types.TreeNode) {
	node.Path = joinPath(parent.Path, node.Label)
	parent.Groups = append(parent.Groups, node)
}

// Aggregate recomputes every internal node's sizes as the sum of its
// groups, bottom-up, and returns the sizes of n.
func Aggregate(n *types.TreeNode) types.SizeTriple {
	if n.IsLeaf() {
		return n.SizeTriple
	}
	var sum types.SizeTriple
	for _, g := range n.Groups {
		sum = sum.Add(Aggregate(g))
	}
	n.SizeTriple = sum
	return sum
}

// Leaves returns the leaves under n in depth-first order.
func Leaves(n *types.TreeNode) []*types.TreeNode {
	var out []*types.TreeNode
	n.Walk(func(c *types.TreeNode) {
		if c != n && c.IsLeaf() {
			out = append(out, c)
		}
	})
	return out
}

type builder struct {
	// children indexes groups by path segment. Labels may differ from the
	// segment (concatenated nodes), so lookups never go through labels.
	children map[*types.TreeNode]map[string]*types.TreeNode
}

func (b *builder) child(parent *types.TreeNode, key string) *types.TreeNode {
	return b.children[parent][key]
}

func (b *builder) add(parent *types.TreeNode, key string, node *types.TreeNode) *types.TreeNode {
	node.Path = joinPath(parent.Path, key)
	parent.Groups = append(parent.Groups, node)
	m := b.children[parent]
	if m == nil {
		m = make(map[string]*types.TreeNode)
		b.children[parent] = m
	}
	m[key] = node
	return node
}

func (b *builder) insert(parent *types.TreeNode, m types.SizedModule, content bool) {
	folderKind, leafKind := types.KindFolder, types.KindModule
	if content {
		folderKind, leafKind = types.KindContentFolder, types.KindContentModule
	}

	segs := segments(m.Path)
	cur := parent
	for _, seg := range segs[:len(segs)-1] {
		next := b.child(cur, seg)
		switch {
		case next == nil:
			next = b.add(cur, seg, &types.TreeNode{Label: seg, Kind: folderKind})
		case next.IsLeaf():
			// A file already sits where a folder is needed.
			b.demote(next, folderKind)
		}
		cur = next
	}

	name := segs[len(segs)-1]
	if len(m.Children) == 0 {
		b.addLeaf(cur, name, &types.TreeNode{
			Label:      name,
			Kind:       leafKind,
			SizeTriple: m.Sizes,
			Attributed: m.Attributed,
		})
		return
	}

	node := b.child(cur, name)
	switch {
	case node == nil:
		node = b.add(cur, name, &types.TreeNode{Label: name + ConcatenatedSuffix, Kind: types.KindConcatenated})
	case node.IsLeaf():
		b.demote(node, types.KindConcatenated)
		node.Label = name + ConcatenatedSuffix
	case node.Kind != types.KindConcatenated:
		// A folder of the same name; its entries stay alongside the content.
		node.Kind = types.KindConcatenated
		node.Label = name + ConcatenatedSuffix
	}
	if !m.Sizes.IsZero() {
		b.addLeaf(node, SelfLabel, &types.TreeNode{
			Label:      SelfLabel,
			Kind:       types.KindSelf,
			SizeTriple: m.Sizes,
			Attributed: m.Attributed,
		})
	}
	for _, c := range m.Children {
		b.insert(node, c, true)
	}
}

// addLeaf places leaf under key. A leaf already there absorbs the sizes; a
// group already there receives the leaf as its self entry.
func (b *builder) addLeaf(parent *types.TreeNode, key string, leaf *types.TreeNode) {
	existing := b.child(parent, key)
	switch {
	case existing == nil:
		b.add(parent, key, leaf)
	case existing.IsLeaf():
		existing.SizeTriple = existing.Add(leaf.SizeTriple)
		existing.Attributed = existing.Attributed && leaf.Attributed
	default:
		leaf.Label, leaf.Kind = SelfLabel, types.KindSelf
		b.addLeaf(existing, SelfLabel, leaf)
	}
}

// demote turns a leaf into a group of the given kind, keeping its bytes in
// a self entry.
func (b *builder) demote(n *types.TreeNode, kind types.NodeKind) {
	self := &types.TreeNode{
		Label:      SelfLabel,
		Kind:       types.KindSelf,
		SizeTriple: n.SizeTriple,
		Attributed: n.Attributed,
	}
	n.Kind = kind
	n.SizeTriple = types.SizeTriple{}
	n.Attributed = false
	b.add(n, SelfLabel, self)
}

func collapse(n *types.TreeNode, root bool) {
	if !root && (n.Kind == types.KindFolder || n.Kind == types.KindContentFolder) {
		for len(n.Groups) == 1 && n.Groups[0].Kind == n.Kind {
			only := n.Groups[0]
			n.Label += "/" + only.Label
			n.Path = only.Path
			n.Groups = only.Groups
		}
	}
	for _, g := range n.Groups {
		collapse(g, false)
	}
}

func segments(path string) []string {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	if len(segs) == 0 {
		return []string{"(unnamed)"}
	}
	return segs
}

func joinPath(parent, seg string) string {
	if parent == "" {
		return seg
	}
	return parent + "/" + seg
}
