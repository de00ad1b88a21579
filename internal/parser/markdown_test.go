package parser

import (
	"strings"
	"testing"

	"github.com/dgallion1/docslice/internal/section"
)

// reconstruct concatenates the front matter with every node's heading and own
// content in arena order, which is document order.
func reconstruct(fm string, tree *section.Tree) string {
	var b strings.Builder
	b.WriteString(fm)
	for _, n := range tree.Nodes {
		b.WriteString(n.Heading)
		b.WriteString(n.Content)
	}
	return b.String()
}

func TestParseHeadings_Hierarchy(t *testing.T) {
	input := "---\ntitle: Demo\n---\n# A\nalpha\n## A.1\nnested\n# B\nbeta\n"

	if f := Detect([]byte(input)); f != section.FormatHeadings {
		t.Fatalf("expected headings format, got %q", f)
	}

	fm, tree, err := Parse([]byte(input), section.FormatHeadings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fm != "---\ntitle: Demo\n---\n" {
		t.Errorf("front matter not verbatim: %q", fm)
	}
	if len(tree.Nodes) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(tree.Nodes))
	}

	a := tree.Nodes[0]
	if a.Title != "A" || a.Level != 1 || a.Parent != -1 {
		t.Errorf("section A wrong: %+v", a)
	}
	if a.Heading != "# A\n" || a.Content != "alpha\n" {
		t.Errorf("section A text wrong: heading %q content %q", a.Heading, a.Content)
	}
	if a.LineStart != 4 || a.LineEnd != 7 {
		t.Errorf("section A lines: got %d..%d, want 4..7", a.LineStart, a.LineEnd)
	}

	a1 := tree.Nodes[1]
	if a1.Title != "A.1" || a1.Level != 2 || a1.Parent != 0 {
		t.Errorf("section A.1 wrong: %+v", a1)
	}
	if a1.Content != "nested\n" {
		t.Errorf("section A.1 content: %q", a1.Content)
	}
	if a1.LineStart != 6 || a1.LineEnd != 7 {
		t.Errorf("section A.1 lines: got %d..%d, want 6..7", a1.LineStart, a1.LineEnd)
	}

	b := tree.Nodes[2]
	if b.Title != "B" || b.Level != 1 || b.Parent != -1 {
		t.Errorf("section B wrong: %+v", b)
	}
	if b.OrderIndex != 1 {
		t.Errorf("section B order index: got %d, want 1", b.OrderIndex)
	}

	if got := reconstruct(fm, tree); got != input {
		t.Errorf("reconstruction not byte-exact:\nwant %q\ngot  %q", input, got)
	}
}

func TestParseHeadings_ConsecutiveHeadingsEmptyContent(t *testing.T) {
	input := "# A\n## B\ncontent\n"
	fm, tree, err := Parse([]byte(input), section.FormatHeadings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tree.Nodes) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(tree.Nodes))
	}
	if tree.Nodes[0].Content != "" {
		t.Errorf("expected empty content for consecutive heading, got %q", tree.Nodes[0].Content)
	}
	if tree.Nodes[1].Content != "content\n" {
		t.Errorf("child content: %q", tree.Nodes[1].Content)
	}
	if got := reconstruct(fm, tree); got != input {
		t.Errorf("reconstruction not byte-exact: %q", got)
	}
}

func TestParseHeadings_PreambleBeforeFirstHeading(t *testing.T) {
	input := "loose text\nmore\n# First\nbody\n"
	fm, tree, err := Parse([]byte(input), section.FormatHeadings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tree.Nodes) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(tree.Nodes))
	}
	pre := tree.Nodes[0]
	if pre.Title != "" || pre.Level != 0 || pre.Parent != -1 {
		t.Errorf("preamble section wrong: %+v", pre)
	}
	if pre.Content != "loose text\nmore\n" {
		t.Errorf("preamble content: %q", pre.Content)
	}
	if got := reconstruct(fm, tree); got != input {
		t.Errorf("reconstruction not byte-exact: %q", got)
	}
}

func TestParseHeadings_LevelJump(t *testing.T) {
	input := "# Top\n### Deep\nx\n## Mid\ny\n"
	_, tree, err := Parse([]byte(input), section.FormatHeadings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tree.Nodes) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(tree.Nodes))
	}
	// Levels come from marker depth verbatim; Deep stays level 3 under Top.
	if tree.Nodes[1].Level != 3 || tree.Nodes[1].Parent != 0 {
		t.Errorf("deep section: level %d parent %d", tree.Nodes[1].Level, tree.Nodes[1].Parent)
	}
	if tree.Nodes[2].Level != 2 || tree.Nodes[2].Parent != 0 {
		t.Errorf("mid section: level %d parent %d", tree.Nodes[2].Level, tree.Nodes[2].Parent)
	}
}

func TestParseHeadings_FencedCodeOpaque(t *testing.T) {
	input := "# Real\nbefore\n```\n# not a heading\n```\nafter\n"
	fm, tree, err := Parse([]byte(input), section.FormatHeadings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tree.Nodes) != 1 {
		t.Fatalf("expected 1 section, got %d", len(tree.Nodes))
	}
	if tree.Nodes[0].Title != "Real" {
		t.Errorf("title: %q", tree.Nodes[0].Title)
	}
	if got := reconstruct(fm, tree); got != input {
		t.Errorf("reconstruction not byte-exact: %q", got)
	}
}

func TestParse_EmptyInput(t *testing.T) {
	for _, format := range []section.Format{section.FormatPlain, section.FormatHeadings, section.FormatXMLTags, section.FormatMixed} {
		fm, tree, err := Parse(nil, format)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", format, err)
		}
		if fm != "" || len(tree.Nodes) != 0 {
			t.Errorf("%s: expected empty tree, got fm %q and %d nodes", format, fm, len(tree.Nodes))
		}
	}
}

func TestParsePlain_SingleSection(t *testing.T) {
	input := "just text\nno structure\n"
	fm, tree, err := Parse([]byte(input), section.FormatPlain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tree.Nodes) != 1 {
		t.Fatalf("expected 1 section, got %d", len(tree.Nodes))
	}
	n := tree.Nodes[0]
	if n.Level != 0 || n.Title != "" || n.Heading != "" {
		t.Errorf("plain section wrong: %+v", n)
	}
	if n.Content != input {
		t.Errorf("plain content: %q", n.Content)
	}
	if got := reconstruct(fm, tree); got != input {
		t.Errorf("reconstruction not byte-exact: %q", got)
	}
}

func TestParseHeadings_NoTrailingNewline(t *testing.T) {
	input := "# A\nalpha"
	fm, tree, err := Parse([]byte(input), section.FormatHeadings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := reconstruct(fm, tree); got != input {
		t.Errorf("reconstruction not byte-exact: %q", got)
	}
}
