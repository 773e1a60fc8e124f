// Package parser loads bundler stats files into BuildMetadata.
package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/northcutted/bundle-treemap/pkg/types"
)

// ErrUnrecognizedStats is returned when the input is not a stats object.
var ErrUnrecognizedStats = errors.New("unrecognized stats format")

// flexID accepts chunk and module ids encoded as numbers or strings.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", string(b), err)
	}
	*f = flexID(n.String())
	return nil
}

type statsModule struct {
	ID         flexID        `json:"id"`
	Identifier string        `json:"identifier"`
	Name       string        `json:"name"`
	Size       *float64      `json:"size"`
	Chunks     []flexID      `json:"chunks"`
	Modules    []statsModule `json:"modules"`
}

type statsChunk struct {
	ID      flexID        `json:"id"`
	Names   []string      `json:"names"`
	Files   []string      `json:"files"`
	Modules []statsModule `json:"modules"`
}

type statsAsset struct {
	Name   string   `json:"name"`
	Size   float64  `json:"size"`
	Chunks []flexID `json:"chunks"`
}

type statsFile struct {
	Assets   []statsAsset      `json:"assets"`
	Chunks   []statsChunk      `json:"chunks"`
	Modules  []statsModule     `json:"modules"`
	Children []json.RawMessage `json:"children"`
}

// Parse reads the stats file at path.
func Parse(path string) (*types.BuildMetadata, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read stats file: %w", err)
	}
	meta, err := ParseBytes(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stats file %s: %w", path, err)
	}
	return meta, nil
}

// ParseBytes decodes webpack-style stats JSON. When the top level carries no
// assets but has child compilations, the first child is used.
func ParseBytes(content []byte) (*types.BuildMetadata, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(content, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedStats, err)
	}
	if !hasAnyKey(probe, "assets", "chunks", "modules", "children") {
		return nil, fmt.Errorf("%w: no assets, chunks, modules or children", ErrUnrecognizedStats)
	}

	var stats statsFile
	if err := json.Unmarshal(content, &stats); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedStats, err)
	}

	if len(stats.Assets) == 0 && len(stats.Children) > 0 {
		return ParseBytes(stats.Children[0])
	}

	return buildMetadata(stats), nil
}

func hasAnyKey(m map[string]json.RawMessage, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

func buildMetadata(stats statsFile) *types.BuildMetadata {
	meta := &types.BuildMetadata{Assets: make(map[string]types.Asset)}

	filesByChunk := make(map[string][]string)
	for _, a := range stats.Assets {
		name := StripQuery(a.Name)
		meta.Assets[name] = types.Asset{Name: name, Size: int64(a.Size)}
		for _, c := range a.Chunks {
			filesByChunk[string(c)] = appendUnique(filesByChunk[string(c)], name)
		}
	}

	modulesByChunk := make(map[string][]types.ModuleDescriptor)
	for _, m := range stats.Modules {
		d := toDescriptor(m)
		for _, c := range m.Chunks {
			modulesByChunk[string(c)] = append(modulesByChunk[string(c)], d)
		}
	}

	seen := make(map[string]bool)
	for _, c := range stats.Chunks {
		id := string(c.ID)
		seen[id] = true
		chunk := types.Chunk{ID: id, Names: c.Names}
		for _, f := range c.Files {
			chunk.Files = appendUnique(chunk.Files, StripQuery(f))
		}
		for _, f := range filesByChunk[id] {
			chunk.Files = appendUnique(chunk.Files, f)
		}
		for _, m := range c.Modules {
			chunk.Modules = append(chunk.Modules, toDescriptor(m))
		}
		chunk.Modules = append(chunk.Modules, modulesByChunk[id]...)
		meta.Chunks = append(meta.Chunks, chunk)
	}

	// Older stats list chunks only through asset and module references.
	for _, a := range stats.Assets {
		for _, c := range a.Chunks {
			id := string(c)
			if seen[id] {
				continue
			}
			seen[id] = true
			meta.Chunks = append(meta.Chunks, types.Chunk{
				ID:      id,
				Files:   filesByChunk[id],
				Modules: modulesByChunk[id],
			})
		}
	}

	return meta
}

func toDescriptor(m statsModule) types.ModuleDescriptor {
	d := types.ModuleDescriptor{
		ID:         string(m.ID),
		Identifier: m.Identifier,
		Name:       m.Name,
	}
	if m.Size != nil && *m.Size >= 0 {
		size := int64(*m.Size)
		d.Size = &size
	}
	for _, sub := range m.Modules {
		d.Modules = append(d.Modules, toDescriptor(sub))
	}
	return d
}

// StripQuery removes a "?query" suffix from an asset file name.
func StripQuery(name string) string {
	if i := strings.IndexByte(name, '?'); i >= 0 {
		return name[:i]
	}
	return name
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
