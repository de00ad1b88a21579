package parser

import (
	"bytes"
	"fmt"

	"github.com/dgallion1/docslice/internal/section"
)

// Parse decomposes raw text into its verbatim front-matter block and an
// ordered section tree. The format tag should come from Detect; Parse
// selects one parsing strategy per tag and does no re-detection.
//
// Empty input yields an empty tree. The concatenation of every node's
// heading and content, prefixed with the front matter, is byte-identical to
// raw; that property is what the store's recomposition relies on.
func Parse(raw []byte, format section.Format) (string, *section.Tree, error) {
	fm, body, bodyLine := SplitFrontMatter(raw)
	switch format {
	case section.FormatHeadings:
		t, err := parseHeadings(body, bodyLine, len(fm), false)
		return fm, t, err
	case section.FormatMixed:
		t, err := parseHeadings(body, bodyLine, len(fm), true)
		return fm, t, err
	case section.FormatXMLTags:
		t, err := parseTags(body, bodyLine, len(fm))
		return fm, t, err
	case section.FormatPlain:
		return fm, parsePlain(body, bodyLine), nil
	}
	return "", nil, fmt.Errorf("unknown format %q", format)
}

// parsePlain wraps the whole body in a single untitled top-level section.
func parsePlain(body []byte, base int) *section.Tree {
	b := newBuilder(body, base, 0)
	if len(b.spans) > 0 {
		b.emit(-1, 0, "", "", string(body), 0, len(b.spans)-1)
	}
	return b.tree()
}

// span marks one source line; end includes the line terminator when present.
type span struct{ start, end int }

func lineSpans(body []byte) []span {
	var spans []span
	start := 0
	for i := 0; i < len(body); i++ {
		if body[i] == '\n' {
			spans = append(spans, span{start, i + 1})
			start = i + 1
		}
	}
	if start < len(body) {
		spans = append(spans, span{start, len(body)})
	}
	return spans
}

// builder accumulates section nodes in pre-order while parsing one body.
type builder struct {
	body  []byte
	spans []span
	base  int // absolute 1-based line number of body line 0
	fmOff int // byte offset of the body within the original file
	nodes []section.Node
	order map[int]int // parent index -> next sibling order
}

func newBuilder(body []byte, base, fmOff int) *builder {
	return &builder{
		body:  body,
		spans: lineSpans(body),
		base:  base,
		fmOff: fmOff,
		order: make(map[int]int),
	}
}

// text returns the exact bytes of local lines lo..hi inclusive.
func (b *builder) text(lo, hi int) string {
	if lo > hi || lo < 0 || lo >= len(b.spans) {
		return ""
	}
	if hi >= len(b.spans) {
		hi = len(b.spans) - 1
	}
	return string(b.body[b.spans[lo].start:b.spans[hi].end])
}

// emit appends a node spanning local lines lo..hi and returns its arena index.
func (b *builder) emit(parent, level int, title, heading, content string, lo, hi int) int {
	idx := len(b.nodes)
	b.nodes = append(b.nodes, section.Node{
		Parent:     parent,
		Level:      level,
		Title:      title,
		Heading:    heading,
		Content:    content,
		OrderIndex: b.order[parent],
		LineStart:  b.base + lo,
		LineEnd:    b.base + hi,
	})
	b.order[parent]++
	return idx
}

func (b *builder) tree() *section.Tree {
	return &section.Tree{Nodes: b.nodes}
}

// fenceTracker recognizes triple-backtick and tilde code fences so that
// heading and tag markers inside them stay opaque.
type fenceTracker struct {
	open   bool
	marker byte
	width  int
}

// observe reports whether line is a fence delimiter and updates fence state.
func (f *fenceTracker) observe(line []byte) bool {
	trimmed := bytes.TrimLeft(line, " \t")
	if len(trimmed) < 3 {
		return false
	}
	c := trimmed[0]
	if c != '`' && c != '~' {
		return false
	}
	n := 0
	for n < len(trimmed) && trimmed[n] == c {
		n++
	}
	if n < 3 {
		return false
	}
	if !f.open {
		f.open = true
		f.marker = c
		f.width = n
		return true
	}
	if c == f.marker && n >= f.width {
		f.open = false
		return true
	}
	return false
}
