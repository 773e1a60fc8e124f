package types

// SizeTriple holds the three size metrics of a unit of content.
type SizeTriple struct {
	Declared   int64 `json:"declaredSize"`
	Emitted    int64 `json:"emittedSize"`
	Compressed int64 `json:"compressedSize"`
}

// Declared returns a triple reporting the declared size for all three metrics.
func Declared(size int64) SizeTriple {
	return SizeTriple{Declared: size, Emitted: size, Compressed: size}
}

// Add returns the element-wise sum of s and o.
func (s SizeTriple) Add(o SizeTriple) SizeTriple {
	return SizeTriple{
		Declared:   s.Declared + o.Declared,
		Emitted:    s.Emitted + o.Emitted,
		Compressed: s.Compressed + o.Compressed,
	}
}

// IsZero reports whether all three metrics are zero.
func (s SizeTriple) IsZero() bool {
	return s == SizeTriple{}
}

// NodeKind tells a viewer what a TreeNode stands for.
type NodeKind string

const (
	KindChunk         NodeKind = "chunk"
	KindCombined      NodeKind = "combined"
	KindFolder        NodeKind = "folder"
	KindModule        NodeKind = "module"
	KindConcatenated  NodeKind = "concatenated"
	KindSelf          NodeKind = "self"
	KindContentFolder NodeKind = "content-folder"
	KindContentModule NodeKind = "content-module"
	KindUnattributed  NodeKind = "unattributed"
)

// AssetInfo is the measured size of one file emitted for a chunk.
type AssetInfo struct {
	Name    string `json:"name"`
	Missing bool   `json:"missing,omitempty"`
	SizeTriple
}

// TreeNode is one node of the size tree.
type TreeNode struct {
	Label string   `json:"label"`
	Path  string   `json:"path"`
	Kind  NodeKind `json:"kind"`
	SizeTriple
	Attributed bool        `json:"attributed,omitempty"`
	Assets     []AssetInfo `json:"assets,omitempty"`
	Groups     []*TreeNode `json:"groups,omitempty"`
}

// IsLeaf reports whether the node has no groups.
func (n *TreeNode) IsLeaf() bool {
	return len(n.Groups) == 0
}

// Walk calls fn for n and every descendant in depth-first order.
func (n *TreeNode) Walk(fn func(*TreeNode)) {
	if n == nil {
		return
	}
	fn(n)
	for _, g := range n.Groups {
		g.Walk(fn)
	}
}

// Find returns the descendant reached by following labels from n.
func (n *TreeNode) Find(labels ...string) *TreeNode {
	cur := n
	for _, l := range labels {
		var next *TreeNode
		for _, g := range cur.Groups {
			if g.Label == l {
				next = g
				break
			}
		}
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur
}
