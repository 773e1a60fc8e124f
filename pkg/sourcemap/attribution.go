package sourcemap

import (
	"bytes"
	"sort"
	"strings"
	"unicode/utf8"
)

// Span is a half-open byte range [Start, End) of a generated file.
type Span struct {
	Start int
	End   int
}

// Len returns the number of bytes in s.
func (s Span) Len() int { return s.End - s.Start }

// Attribution records which bytes of a generated file belong to which
// source of a Map.
type Attribution struct {
	data     []byte
	names    []string
	spans    [][]Span
	unmapped []Span
	byName   map[string][]int
}

// Attribute walks the generated file and assigns every byte either to a
// source or to the unmapped set. Columns are UTF-16 code units as the
// source map format defines them.
func (m *Map) Attribute(generated []byte) *Attribution {
	a := &Attribution{
		data:   generated,
		names:  make([]string, len(m.Sources)),
		spans:  make([][]Span, len(m.Sources)),
		byName: make(map[string][]int, len(m.Sources)),
	}
	for i := range m.Sources {
		name := NormalizeSource(m.sourceName(i))
		a.names[i] = name
		a.byName[name] = append(a.byName[name], i)
	}

	lineStart := 0
	for lineNo := 0; lineStart <= len(generated); lineNo++ {
		lineEnd := len(generated)
		if i := indexByteFrom(generated, '\n', lineStart); i >= 0 {
			lineEnd = i
		}

		var segs []segment
		if lineNo < len(m.lines) {
			segs = m.lines[lineNo]
		}
		a.attributeLine(generated, lineStart, lineEnd, segs)

		if lineEnd < len(generated) {
			a.addUnmapped(Span{Start: lineEnd, End: lineEnd + 1})
		}
		lineStart = lineEnd + 1
	}
	return a
}

func (a *Attribution) attributeLine(data []byte, start, end int, segs []segment) {
	c := cursor{line: data[start:end]}
	pos := 0
	owner := -1
	for _, s := range segs {
		next := c.advance(s.col)
		a.assign(owner, start+pos, start+next)
		pos = next
		owner = s.source
	}
	a.assign(owner, start+pos, end)
}

func (a *Attribution) assign(source, start, end int) {
	if end <= start {
		return
	}
	sp := Span{Start: start, End: end}
	if source < 0 {
		a.addUnmapped(sp)
		return
	}
	a.spans[source] = appendSpan(a.spans[source], sp)
}

func (a *Attribution) addUnmapped(sp Span) {
	a.unmapped = appendSpan(a.unmapped, sp)
}

func appendSpan(spans []Span, sp Span) []Span {
	if n := len(spans); n > 0 && spans[n-1].End == sp.Start {
		spans[n-1].End = sp.End
		return spans
	}
	return append(spans, sp)
}

// Match returns the indices of sources that correspond to a module's
// resource path. An exact match wins; otherwise a single source whose path
// ends with the resource (or vice versa) is accepted. Ambiguous suffix
// matches yield nil.
func (a *Attribution) Match(resource string) []int {
	r := NormalizeSource(resource)
	if r == "" {
		return nil
	}
	if idx, ok := a.byName[r]; ok {
		return idx
	}
	var found []int
	for i, name := range a.names {
		if strings.HasSuffix(name, "/"+r) || strings.HasSuffix(r, "/"+name) {
			found = append(found, i)
		}
	}
	if len(found) != 1 {
		return nil
	}
	return found
}

// Spans returns the byte ranges of the given sources merged in file order.
func (a *Attribution) Spans(sources []int) []Span {
	var out []Span
	for _, i := range sources {
		if i >= 0 && i < len(a.spans) {
			out = append(out, a.spans[i]...)
		}
	}
	return sortSpans(out)
}

// Unclaimed returns the unmapped bytes plus the bytes of every source not in
// claimed, in file order.
func (a *Attribution) Unclaimed(claimed map[int]bool) []Span {
	out := append([]Span(nil), a.unmapped...)
	for i, spans := range a.spans {
		if !claimed[i] {
			out = append(out, spans...)
		}
	}
	return sortSpans(out)
}

// Bytes concatenates the generated bytes covered by spans.
func (a *Attribution) Bytes(spans []Span) []byte {
	buf := make([]byte, 0, TotalLen(spans))
	for _, sp := range spans {
		buf = append(buf, a.data[sp.Start:sp.End]...)
	}
	return buf
}

// TotalLen returns the number of bytes covered by spans.
func TotalLen(spans []Span) int {
	n := 0
	for _, sp := range spans {
		n += sp.Len()
	}
	return n
}

func sortSpans(spans []Span) []Span {
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })
	merged := spans[:0]
	for _, sp := range spans {
		merged = appendSpan(merged, sp)
	}
	return merged
}

// cursor converts UTF-16 column offsets into byte offsets within one line.
// Offsets must be requested in ascending order.
type cursor struct {
	line  []byte
	pos   int
	units int
}

func (c *cursor) advance(col int) int {
	for c.units < col && c.pos < len(c.line) {
		r, size := utf8.DecodeRune(c.line[c.pos:])
		c.pos += size
		if r >= 0x10000 {
			c.units += 2
		} else {
			c.units++
		}
	}
	return c.pos
}

func indexByteFrom(b []byte, c byte, from int) int {
	if from >= len(b) {
		return -1
	}
	if i := bytes.IndexByte(b[from:], c); i >= 0 {
		return from + i
	}
	return -1
}
