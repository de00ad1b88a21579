package parser

import (
	"bytes"
	"strings"

	"gopkg.in/yaml.v3"
)

// SplitFrontMatter separates a leading front-matter block from the document
// body. The returned front matter is verbatim, both delimiter lines and
// their terminators included, so recomposition can prepend it untouched.
// bodyLine is the 1-based file line number of the first body line.
//
// A missing closing delimiter means the file has no front matter; that is
// the one deliberately lenient case and never an error.
func SplitFrontMatter(raw []byte) (string, []byte, int) {
	spans := lineSpans(raw)
	if len(spans) == 0 || !isFrontMatterDelimiter(raw, spans[0]) {
		return "", raw, 1
	}
	for i := 1; i < len(spans); i++ {
		if isFrontMatterDelimiter(raw, spans[i]) {
			end := spans[i].end
			return string(raw[:end]), raw[end:], i + 2
		}
	}
	return "", raw, 1
}

func isFrontMatterDelimiter(raw []byte, sp span) bool {
	line := bytes.TrimRight(raw[sp.start:sp.end], "\r\n")
	return string(line) == "---"
}

// TitleFromFrontMatter pulls a title out of a front-matter block for document
// metadata. The block stays opaque otherwise; malformed YAML simply yields no
// title.
func TitleFromFrontMatter(fm string) string {
	inner := strings.TrimSpace(fm)
	inner = strings.TrimPrefix(inner, "---")
	inner = strings.TrimSuffix(inner, "---")

	var m map[string]any
	if err := yaml.Unmarshal([]byte(inner), &m); err != nil {
		return ""
	}
	if t, ok := m["title"].(string); ok {
		return strings.TrimSpace(t)
	}
	return ""
}
