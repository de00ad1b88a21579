package parser

import (
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/dgallion1/docslice/internal/section"
)

// headingMark is one heading located in the body: its local line index,
// marker depth, and flattened title text.
type headingMark struct {
	line  int
	level int
	title string
}

// parseHeadings decomposes a heading-structured body. Heading levels are
// taken literally from the marker depth; level jumps are preserved as-is.
// Text before the first heading becomes an untitled level-0 section with no
// parent. In mixed mode each section's own body is additionally scanned for
// tag blocks, which become child sections.
func parseHeadings(body []byte, base, fmOff int, mixed bool) (*section.Tree, error) {
	b := newBuilder(body, base, fmOff)
	if len(b.spans) == 0 {
		return b.tree(), nil
	}
	last := len(b.spans) - 1

	fillBody := func(idx, level, lo, hi int) error {
		if mixed {
			return b.emitTagNodes(idx, level, lo, hi)
		}
		b.nodes[idx].Content = b.text(lo, hi)
		return nil
	}

	marks := collectHeadings(body, b.spans)
	if len(marks) == 0 {
		idx := b.emit(-1, 0, "", "", "", 0, last)
		return b.tree(), fillBody(idx, 0, 0, last)
	}

	if first := marks[0].line; first > 0 {
		idx := b.emit(-1, 0, "", "", "", 0, first-1)
		if err := fillBody(idx, 0, 0, first-1); err != nil {
			return nil, err
		}
	}

	type frame struct{ idx, level int }
	var stack []frame
	for i, m := range marks {
		// Own content runs to the next heading of any level; the subtree
		// span runs to the next heading at the same or a shallower level.
		ownEnd := last
		if i+1 < len(marks) {
			ownEnd = marks[i+1].line - 1
		}
		subEnd := last
		for j := i + 1; j < len(marks); j++ {
			if marks[j].level <= m.level {
				subEnd = marks[j].line - 1
				break
			}
		}

		for len(stack) > 0 && stack[len(stack)-1].level >= m.level {
			stack = stack[:len(stack)-1]
		}
		parent := -1
		if len(stack) > 0 {
			parent = stack[len(stack)-1].idx
		}

		idx := b.emit(parent, m.level, m.title, b.text(m.line, m.line), "", m.line, subEnd)
		if err := fillBody(idx, m.level, m.line+1, ownEnd); err != nil {
			return nil, err
		}
		stack = append(stack, frame{idx, m.level})
	}
	return b.tree(), nil
}

// collectHeadings parses the body with goldmark and maps each top-level
// heading node back to its source line. Fenced code blocks are consumed
// whole by goldmark, so heading-like text inside them never surfaces here.
func collectHeadings(body []byte, spans []span) []headingMark {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(body))

	var marks []headingMark
	cursor := 0
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok {
			if lines := n.Lines(); lines.Len() > 0 {
				if stop := lines.At(lines.Len() - 1).Stop; stop > 0 {
					cursor = lineAt(spans, stop-1) + 1
				}
			}
			continue
		}
		line := -1
		if lines := h.Lines(); lines.Len() > 0 {
			line = lineAt(spans, lines.At(0).Start)
		} else {
			// A bare "#" heading has no text segments to locate it by.
			line = scanBareHeading(body, spans, cursor, h.Level)
		}
		if line < 0 {
			continue
		}
		marks = append(marks, headingMark{line: line, level: h.Level, title: string(h.Text(body))})
		cursor = line + 1
	}
	return marks
}

// lineAt returns the index of the line containing byte offset off.
func lineAt(spans []span, off int) int {
	return sort.Search(len(spans), func(i int) bool { return spans[i].end > off })
}

func scanBareHeading(body []byte, spans []span, from, level int) int {
	want := strings.Repeat("#", level)
	for i := from; i < len(spans); i++ {
		if strings.TrimSpace(string(body[spans[i].start:spans[i].end])) == want {
			return i
		}
	}
	return -1
}
