// Package sourcemap decodes version 3 source maps and attributes the bytes
// of a generated file to the original sources they came from.
package sourcemap

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ErrIndexMap is returned for sectioned (index) source maps.
var ErrIndexMap = errors.New("index source maps are not supported")

// Map is a decoded source map.
type Map struct {
	Version    int
	File       string
	SourceRoot string
	Sources    []string
	lines      [][]segment
}

type segment struct {
	col    int // generated column, UTF-16 code units
	source int // -1 when the segment maps to no source
}

type rawMap struct {
	Version    int               `json:"version"`
	File       string            `json:"file"`
	SourceRoot string            `json:"sourceRoot"`
	Sources    []string          `json:"sources"`
	Mappings   string            `json:"mappings"`
	Sections   []json.RawMessage `json:"sections"`
}

// Decode parses source map JSON.
func Decode(data []byte) (*Map, error) {
	var raw rawMap
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal source map: %w", err)
	}
	if len(raw.Sections) > 0 {
		return nil, ErrIndexMap
	}
	if raw.Version != 3 {
		return nil, fmt.Errorf("unsupported source map version %d", raw.Version)
	}

	lines, err := decodeMappings(raw.Mappings, len(raw.Sources))
	if err != nil {
		return nil, err
	}
	return &Map{
		Version:    raw.Version,
		File:       raw.File,
		SourceRoot: raw.SourceRoot,
		Sources:    raw.Sources,
		lines:      lines,
	}, nil
}

func decodeMappings(mappings string, sourceCount int) ([][]segment, error) {
	var (
		lines  [][]segment
		line   []segment
		source int
	)
	for _, group := range strings.Split(mappings, ";") {
		line = nil
		col := 0
		for _, seg := range strings.Split(group, ",") {
			if seg == "" {
				continue
			}
			fields, err := decodeVLQ(seg)
			if err != nil {
				return nil, fmt.Errorf("invalid mapping %q: %w", seg, err)
			}
			col += fields[0]
			s := segment{col: col, source: -1}
			if len(fields) >= 4 {
				source += fields[1]
				if source < 0 || source >= sourceCount {
					return nil, fmt.Errorf("mapping refers to source %d of %d", source, sourceCount)
				}
				s.source = source
			}
			line = append(line, s)
		}
		sort.SliceStable(line, func(i, j int) bool { return line[i].col < line[j].col })
		lines = append(lines, line)
	}
	return lines, nil
}

const base64Chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

var base64Index = func() [256]int8 {
	var t [256]int8
	for i := range t {
		t[i] = -1
	}
	for i := 0; i < len(base64Chars); i++ {
		t[base64Chars[i]] = int8(i)
	}
	return t
}()

func decodeVLQ(s string) ([]int, error) {
	var (
		out   []int
		value int
		shift uint
	)
	for i := 0; i < len(s); i++ {
		digit := base64Index[s[i]]
		if digit < 0 {
			return nil, fmt.Errorf("bad base64 character %q", s[i])
		}
		value += int(digit&31) << shift
		if digit&32 != 0 {
			shift += 5
			if shift > 60 {
				return nil, errors.New("vlq value overflows")
			}
			continue
		}
		if value&1 == 1 {
			out = append(out, -(value >> 1))
		} else {
			out = append(out, value>>1)
		}
		value, shift = 0, 0
	}
	if shift != 0 {
		return nil, errors.New("truncated vlq value")
	}
	if n := len(out); n != 1 && n != 4 && n != 5 {
		return nil, fmt.Errorf("segment has %d fields", n)
	}
	return out, nil
}

var sourceHash = regexp.MustCompile(`\?[0-9a-f]+$`)

// NormalizeSource strips bundler URL schemes and namespaces from a source
// entry so it can be compared with a module's resource path.
//
//	webpack:///./src/a.js        -> src/a.js
//	webpack://my-lib/./src/a.js  -> src/a.js
//	webpack:///node_modules/x.js -> node_modules/x.js
func NormalizeSource(s string) string {
	if rest, ok := strings.CutPrefix(s, "webpack://"); ok {
		if strings.HasPrefix(rest, "/") {
			s = rest[1:]
		} else if i := strings.IndexByte(rest, '/'); i >= 0 {
			s = rest[i+1:]
		} else {
			s = rest
		}
	}
	s = sourceHash.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\\", "/")
	for strings.HasPrefix(s, "./") {
		s = s[2:]
	}
	return s
}

// sourceName returns source i joined with the map's source root.
func (m *Map) sourceName(i int) string {
	s := m.Sources[i]
	if m.SourceRoot == "" || strings.Contains(s, "://") {
		return s
	}
	return strings.TrimSuffix(m.SourceRoot, "/") + "/" + s
}

// FindURL returns the target of the last sourceMappingURL comment in a
// generated file, or "" when there is none.
func FindURL(generated []byte) string {
	const marker = "sourceMappingURL="
	text := string(generated)
	i := strings.LastIndex(text, marker)
	if i < 0 {
		return ""
	}
	prefix := text[:i]
	if !strings.HasSuffix(prefix, "//# ") && !strings.HasSuffix(prefix, "//@ ") && !strings.HasSuffix(prefix, "/*# ") {
		return ""
	}
	url := text[i+len(marker):]
	if j := strings.IndexAny(url, " \t\r\n*"); j >= 0 {
		url = url[:j]
	}
	return strings.TrimSpace(url)
}
