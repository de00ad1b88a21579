package section

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned for unknown document paths or section ids.
var ErrNotFound = errors.New("not found")

// StructuralParseError reports malformed tag nesting. Parsing never repairs
// structure; the offending byte offset is surfaced to the caller.
type StructuralParseError struct {
	Offset int
	Msg    string
}

func (e *StructuralParseError) Error() string {
	return fmt.Sprintf("structural parse error at byte %d: %s", e.Offset, e.Msg)
}

// RoundTripIntegrityError means a recomposed document no longer hashes to the
// stored content hash. It indicates a defect in parse or store, so it is
// always surfaced and never retried.
type RoundTripIntegrityError struct {
	Path string
	Want string
	Got  string
}

func (e *RoundTripIntegrityError) Error() string {
	return fmt.Sprintf("round-trip integrity failure for %q: stored hash %s, recomposed hash %s", e.Path, e.Want, e.Got)
}

// IndexConsistencyError means a section row and its full-text shadow entry
// have diverged. The store mutates both in one transaction, so this can only
// come from a transaction-boundary violation upstream.
type IndexConsistencyError struct {
	Detail string
}

func (e *IndexConsistencyError) Error() string {
	return "index consistency violation: " + e.Detail
}
