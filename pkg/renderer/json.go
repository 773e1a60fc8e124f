package renderer

import (
	"encoding/json"

	"github.com/northcutted/bundle-treemap/pkg/types"
)

// RenderJSON encodes the trees as an indented JSON array. A nil result is
// encoded as an empty array.
func RenderJSON(roots []*types.TreeNode) ([]byte, error) {
	if roots == nil {
		roots = []*types.TreeNode{}
	}
	out, err := json.MarshalIndent(roots, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}
