package parser

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/dgallion1/docslice/internal/section"
)

var tagTokenRe = regexp.MustCompile(`</?[A-Za-z_][A-Za-z0-9_.:-]*>`)

// tagToken is one structural tag occurrence outside fenced code.
type tagToken struct {
	name    string
	closing bool
	start   int // byte offsets in the body
	end     int
	line    int
}

// tagBlock is a matched tag pair whose open tag starts its line and whose
// close tag ends its line; only such pairs become sections. Matched pairs
// that sit mid-line stay part of the surrounding content.
type tagBlock struct {
	name   string
	parent int // index of the enclosing candidate block, -1 for none
	lineLo int
	lineHi int
	valid  bool
}

// parseTags decomposes a tag-structured body. Text outside any top-level
// block becomes untitled level-0 sections.
func parseTags(body []byte, base, fmOff int) (*section.Tree, error) {
	b := newBuilder(body, base, fmOff)
	if len(b.spans) == 0 {
		return b.tree(), nil
	}
	if err := b.emitTagNodes(-1, 0, 0, len(b.spans)-1); err != nil {
		return nil, err
	}
	return b.tree(), nil
}

func tokenizeTags(body []byte, spans []span, lo, hi int) []tagToken {
	var toks []tagToken
	var fence fenceTracker
	for i := lo; i <= hi && i < len(spans); i++ {
		sp := spans[i]
		line := body[sp.start:sp.end]
		if fence.observe(line) || fence.open {
			continue
		}
		for _, m := range tagTokenRe.FindAllIndex(line, -1) {
			raw := line[m[0]:m[1]]
			closing := raw[1] == '/'
			name := string(raw[1 : len(raw)-1])
			if closing {
				name = string(raw[2 : len(raw)-1])
			}
			toks = append(toks, tagToken{
				name:    name,
				closing: closing,
				start:   sp.start + m[0],
				end:     sp.start + m[1],
				line:    i,
			})
		}
	}
	return toks
}

// matchTags validates tag nesting over the scanned range and returns the
// candidate blocks. Mis-nested, unmatched, and unclosed tags are structural
// errors at the offending byte offset; nothing is repaired.
func matchTags(b *builder, toks []tagToken) ([]tagBlock, error) {
	type openEntry struct {
		tok   tagToken
		block int
	}
	var stack []openEntry
	var blocks []tagBlock
	cur := -1
	for _, t := range toks {
		if !t.closing {
			bi := -1
			if b.lineInitial(t) {
				bi = len(blocks)
				blocks = append(blocks, tagBlock{name: t.name, parent: cur, lineLo: t.line})
				cur = bi
			}
			stack = append(stack, openEntry{t, bi})
			continue
		}
		if len(stack) == 0 {
			return nil, &section.StructuralParseError{
				Offset: b.fmOff + t.start,
				Msg:    fmt.Sprintf("closing </%s> without matching open tag", t.name),
			}
		}
		top := stack[len(stack)-1]
		if top.tok.name != t.name {
			return nil, &section.StructuralParseError{
				Offset: b.fmOff + t.start,
				Msg:    fmt.Sprintf("<%s> closed by </%s>", top.tok.name, t.name),
			}
		}
		stack = stack[:len(stack)-1]
		if top.block >= 0 {
			if b.lineFinal(t) {
				blocks[top.block].lineHi = t.line
				blocks[top.block].valid = true
			}
			cur = blocks[top.block].parent
		}
	}
	if len(stack) > 0 {
		t := stack[len(stack)-1].tok
		return nil, &section.StructuralParseError{
			Offset: b.fmOff + t.start,
			Msg:    fmt.Sprintf("<%s> is never closed", t.name),
		}
	}
	return blocks, nil
}

// emitTagNodes scans local lines lo..hi for tag blocks and emits them under
// parent. The run of lines before the first block becomes the parent's own
// content; later runs between and after blocks become untitled sibling
// sections so every slice stays contiguous. With parent -1 every run becomes
// an untitled top-level section instead.
func (b *builder) emitTagNodes(parent, parentLevel, lo, hi int) error {
	if lo > hi {
		return nil
	}
	toks := tokenizeTags(b.body, b.spans, lo, hi)
	blocks, err := matchTags(b, toks)
	if err != nil {
		return err
	}

	resolve := func(p int) int {
		for p >= 0 && !blocks[p].valid {
			p = blocks[p].parent
		}
		return p
	}
	kids := make(map[int][]int)
	var tops []int
	for i := range blocks {
		if !blocks[i].valid {
			continue
		}
		rp := resolve(blocks[i].parent)
		if rp < 0 {
			tops = append(tops, i)
		} else {
			kids[rp] = append(kids[rp], i)
		}
	}

	childLevel := parentLevel + 1
	first := true
	cursor := lo
	flushRun := func(runHi int) {
		defer func() { first = false }()
		if cursor > runHi {
			return
		}
		content := b.text(cursor, runHi)
		switch {
		case parent >= 0 && first:
			b.nodes[parent].Content = content
		case parent >= 0:
			b.emit(parent, childLevel, "", "", content, cursor, runHi)
		default:
			b.emit(-1, 0, "", "", content, cursor, runHi)
		}
	}

	if len(tops) == 0 {
		flushRun(hi)
		return nil
	}
	for _, ti := range tops {
		flushRun(blocks[ti].lineLo - 1)
		b.emitTagBlock(blocks, kids, ti, parent, childLevel)
		cursor = blocks[ti].lineHi + 1
	}
	flushRun(hi)
	return nil
}

// emitTagBlock emits one block and, recursively, its nested blocks. A block
// with children keeps the lines up to its first child as its own content;
// the remainder, closing tag line included, lands in untitled child sections.
func (b *builder) emitTagBlock(blocks []tagBlock, kids map[int][]int, bi, parent, level int) {
	blk := blocks[bi]
	children := kids[bi]
	if len(children) == 0 {
		b.emit(parent, level, blk.name, "", b.text(blk.lineLo, blk.lineHi), blk.lineLo, blk.lineHi)
		return
	}

	firstChild := blocks[children[0]]
	idx := b.emit(parent, level, blk.name, "", b.text(blk.lineLo, firstChild.lineLo-1), blk.lineLo, blk.lineHi)
	cursor := firstChild.lineLo
	for _, ci := range children {
		if cursor < blocks[ci].lineLo {
			b.emit(idx, level+1, "", "", b.text(cursor, blocks[ci].lineLo-1), cursor, blocks[ci].lineLo-1)
		}
		b.emitTagBlock(blocks, kids, ci, idx, level+1)
		cursor = blocks[ci].lineHi + 1
	}
	if cursor <= blk.lineHi {
		b.emit(idx, level+1, "", "", b.text(cursor, blk.lineHi), cursor, blk.lineHi)
	}
}

func (b *builder) lineInitial(t tagToken) bool {
	sp := b.spans[t.line]
	line := b.body[sp.start:sp.end]
	i := 0
	for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
		i++
	}
	return sp.start+i == t.start
}

func (b *builder) lineFinal(t tagToken) bool {
	sp := b.spans[t.line]
	line := bytes.TrimRight(b.body[sp.start:sp.end], " \t\r\n")
	return sp.start+len(line) == t.end
}
