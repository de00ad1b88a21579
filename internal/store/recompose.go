package store

import (
	"bytes"
	"context"
	"sort"

	"github.com/dgallion1/docslice/internal/section"
)

// Recompose reproduces the original bytes of a stored document: the verbatim
// front matter followed by every section's heading line and own content,
// walked depth-first in order_index order. Children's content is never
// emitted by the parent because section slices do not overlap.
//
// The result is hashed and compared against the stored content hash; a
// mismatch is a RoundTripIntegrityError and means parse or store has a
// defect — it is surfaced, never retried.
func (s *Store) Recompose(ctx context.Context, pathKey string) ([]byte, error) {
	doc, err := s.GetDocument(ctx, pathKey)
	if err != nil {
		return nil, err
	}
	if err := s.checkShadow(ctx, doc.ID); err != nil {
		return nil, err
	}
	secs, err := s.GetTree(ctx, pathKey)
	if err != nil {
		return nil, err
	}

	// Section ids start at 1, so 0 is a safe key for roots.
	children := make(map[int64][]section.Section)
	for _, sec := range secs {
		var pid int64
		if sec.ParentID != nil {
			pid = *sec.ParentID
		}
		children[pid] = append(children[pid], sec)
	}
	for pid := range children {
		kids := children[pid]
		sort.Slice(kids, func(i, j int) bool { return kids[i].OrderIndex < kids[j].OrderIndex })
	}

	var buf bytes.Buffer
	buf.WriteString(doc.FrontMatter)
	var walk func(pid int64)
	walk = func(pid int64) {
		for _, sec := range children[pid] {
			buf.WriteString(sec.Heading)
			buf.WriteString(sec.Content)
			walk(sec.ID)
		}
	}
	walk(0)

	if got := section.Hash(buf.Bytes()); got != doc.ContentHash {
		return nil, &section.RoundTripIntegrityError{Path: pathKey, Want: doc.ContentHash, Got: got}
	}
	return buf.Bytes(), nil
}
