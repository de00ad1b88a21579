package parser

import (
	"bytes"
	"regexp"

	"github.com/dgallion1/docslice/internal/section"
)

var (
	openLineRe  = regexp.MustCompile(`^<[A-Za-z_][A-Za-z0-9_.:-]*>`)
	closeLineRe = regexp.MustCompile(`</[A-Za-z_][A-Za-z0-9_.:-]*>\s*$`)
)

// Detect classifies raw text into one of the four structural formats.
// It is a pure function over the input: it always resolves to a tag (worst
// case plain), never errors, and ignores markers inside fenced code blocks
// and inside the front-matter block.
func Detect(raw []byte) section.Format {
	_, body, _ := SplitFrontMatter(raw)

	var fence fenceTracker
	hasHeading, hasOpen, hasClose := false, false, false
	for _, sp := range lineSpans(body) {
		line := body[sp.start:sp.end]
		if fence.observe(line) || fence.open {
			continue
		}
		trimmed := bytes.TrimSpace(line)
		if isHeadingLine(trimmed) {
			hasHeading = true
		}
		if openLineRe.Match(trimmed) {
			hasOpen = true
		}
		if closeLineRe.Match(trimmed) {
			hasClose = true
		}
	}

	hasTags := hasOpen && hasClose
	switch {
	case hasHeading && hasTags:
		return section.FormatMixed
	case hasHeading:
		return section.FormatHeadings
	case hasTags:
		return section.FormatXMLTags
	}
	return section.FormatPlain
}

// isHeadingLine matches ATX headings: one to six '#' followed by whitespace
// or end of line.
func isHeadingLine(trimmed []byte) bool {
	n := 0
	for n < len(trimmed) && trimmed[n] == '#' {
		n++
	}
	if n < 1 || n > 6 {
		return false
	}
	return n == len(trimmed) || trimmed[n] == ' ' || trimmed[n] == '\t'
}
