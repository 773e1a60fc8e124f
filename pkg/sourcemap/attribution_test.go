package sourcemap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDecode(t *testing.T, s string) *Map {
	t.Helper()
	m, err := Decode([]byte(s))
	require.NoError(t, err)
	return m
}

func TestAttributeLines(t *testing.T) {
	m := mustDecode(t, `{"version":3,"sources":["webpack:///./src/a.js","webpack:///./src/b.js"],"mappings":"AAAA;AACA"}`)
	a := m.Attribute([]byte("aaaa\nbbbbbb"))

	assert.Equal(t, []int{0}, a.Match("./src/a.js"))
	assert.Equal(t, []Span{{0, 4}}, a.Spans([]int{0}))
	assert.Equal(t, []Span{{5, 11}}, a.Spans([]int{1}))
	assert.Equal(t, []Span{{4, 5}}, a.Unclaimed(map[int]bool{0: true, 1: true}))
	assert.Equal(t, []Span{{0, 5}}, a.Unclaimed(map[int]bool{1: true}))
	assert.Equal(t, []byte("bbbbbb"), a.Bytes(a.Spans([]int{1})))
}

func TestAttributeLeadingUnmapped(t *testing.T) {
	m := mustDecode(t, `{"version":3,"sources":["a.js"],"mappings":"EAAA,EAAA"}`)
	a := m.Attribute([]byte("//xyz"))

	assert.Equal(t, []Span{{2, 5}}, a.Spans([]int{0}))
	assert.Equal(t, []Span{{0, 2}}, a.Unclaimed(map[int]bool{0: true}))
}

func TestAttributeUnmappedSegment(t *testing.T) {
	// The second segment has a single field and maps to no source.
	m := mustDecode(t, `{"version":3,"sources":["a.js"],"mappings":"AAAA,E"}`)
	a := m.Attribute([]byte("abcd"))

	assert.Equal(t, []Span{{0, 2}}, a.Spans([]int{0}))
	assert.Equal(t, 2, TotalLen(a.Unclaimed(map[int]bool{0: true})))
}

func TestAttributeUTF16Columns(t *testing.T) {
	// "é" is one UTF-16 unit and two bytes, the emoji two units and four bytes.
	m := mustDecode(t, `{"version":3,"sources":["a.js","b.js"],"mappings":"AAAA,GCAA"}`)
	a := m.Attribute([]byte("é😀x"))

	assert.Equal(t, []Span{{0, 6}}, a.Spans([]int{0}))
	assert.Equal(t, []Span{{6, 7}}, a.Spans([]int{1}))
}

func TestAttributeLinesBeyondMappings(t *testing.T) {
	m := mustDecode(t, `{"version":3,"sources":["a.js"],"mappings":"AAAA"}`)
	a := m.Attribute([]byte("ab\ncd\n"))

	assert.Equal(t, []Span{{0, 2}}, a.Spans([]int{0}))
	assert.Equal(t, 4, TotalLen(a.Unclaimed(map[int]bool{0: true})))
}

func TestMatch(t *testing.T) {
	m := mustDecode(t, `{"version":3,"sources":[
		"webpack:///./src/index.js",
		"webpack:///./node_modules/a/util.js",
		"webpack:///./node_modules/b/util.js",
		"webpack:///./node_modules/lodash/lodash.js?abc"
	],"mappings":""}`)
	a := m.Attribute(nil)

	assert.Equal(t, []int{0}, a.Match("./src/index.js"))
	assert.Equal(t, []int{0}, a.Match("index.js"), "unique suffix")
	assert.Equal(t, []int{3}, a.Match("/home/me/app/node_modules/lodash/lodash.js"), "resource longer than source")
	assert.Nil(t, a.Match("util.js"), "ambiguous suffix")
	assert.Nil(t, a.Match("missing.js"))
	assert.Nil(t, a.Match(""))
}

func TestSpansMergeAdjacent(t *testing.T) {
	m := mustDecode(t, `{"version":3,"sources":["a.js","b.js"],"mappings":"AAAA,CCAA,CDAA"}`)
	a := m.Attribute([]byte("xyz"))

	assert.Equal(t, []Span{{0, 1}, {2, 3}}, a.Spans([]int{0}))
	assert.Equal(t, []Span{{0, 3}}, a.Spans([]int{0, 1}))
	assert.Equal(t, 3, TotalLen(a.Spans([]int{1, 0})))
}
