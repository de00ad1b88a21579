package section

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// Format classifies how a document's body is structured.
type Format string

const (
	FormatPlain    Format = "plain"
	FormatHeadings Format = "headings"
	FormatXMLTags  Format = "xml_tags"
	FormatMixed    Format = "mixed"
)

// ParseFormat converts a stored format string back to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatPlain, FormatHeadings, FormatXMLTags, FormatMixed:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown format %q", s)
}

// Node is a parsed section before storage. Nodes live in a Tree arena in
// document (pre-order) order; Parent is an index into that arena, -1 for
// top-level nodes. Keeping parent links as indexes instead of pointers means
// traversal is always an id lookup and the structure cannot form a cycle.
type Node struct {
	Parent     int
	Level      int
	Title      string
	Heading    string // raw heading marker line, verbatim; empty for non-heading sections
	Content    string // own text only, children's text excluded
	OrderIndex int
	LineStart  int // 1-based, inclusive, spans the whole subtree
	LineEnd    int
}

// Tree is the parsed section hierarchy of one document. Nodes are kept in
// pre-order, so a node's parent always precedes it in the slice.
type Tree struct {
	Nodes []Node
}

// Section is a stored, addressable unit of a document.
type Section struct {
	ID         int64  `json:"id"`
	DocumentID int64  `json:"document_id"`
	ParentID   *int64 `json:"parent_id"`
	Level      int    `json:"level"`
	Title      string `json:"title"`
	Heading    string `json:"heading,omitempty"`
	Content    string `json:"content"`
	OrderIndex int    `json:"order_index"`
	LineStart  int    `json:"line_start"`
	LineEnd    int    `json:"line_end"`
}

// Document is the stored metadata for one decomposed file.
type Document struct {
	ID          int64     `json:"id"`
	Path        string    `json:"path"`
	Title       string    `json:"title,omitempty"`
	Format      Format    `json:"format"`
	FrontMatter string    `json:"front_matter,omitempty"`
	ContentHash string    `json:"content_hash"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Hash returns the SHA-256 of data as a hex string. It is the content hash
// checked on every recomposition.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
