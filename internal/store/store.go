package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver

	"github.com/dgallion1/docslice/internal/section"
	"github.com/dgallion1/docslice/internal/semantic"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    title TEXT NOT NULL DEFAULT '',
    format TEXT NOT NULL,
    front_matter TEXT NOT NULL DEFAULT '',
    content_hash TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sections (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    parent_id INTEGER REFERENCES sections(id),
    level INTEGER NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    heading TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL DEFAULT '',
    order_index INTEGER NOT NULL,
    line_start INTEGER NOT NULL,
    line_end INTEGER NOT NULL,
    embedding BLOB
);
CREATE INDEX IF NOT EXISTS idx_sections_document ON sections(document_id);

CREATE VIRTUAL TABLE IF NOT EXISTS section_fts USING fts5(title, content);
`

// Store owns the SQLite database holding documents, sections, and the
// full-text shadow table section_fts (rowid = section id). Every section
// mutation updates its shadow row inside the same transaction, so readers
// can never observe the two out of sync.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens (creating if needed) the database at path. Pass ":memory:" for
// an ephemeral store.
func Open(path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Single connection: serializes writers, which matches the
	// one-writer-per-document model, and keeps :memory: databases coherent.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Store persists a document and its section tree. Re-storing an existing
// path replaces the document's entire section set and all its shadow rows in
// one transaction; partial replacement is not possible. The new document id
// is returned.
func (s *Store) Store(ctx context.Context, doc section.Document, tree *section.Tree) (int64, error) {
	if doc.Path == "" {
		return 0, errors.New("store: empty document path")
	}
	if tree == nil {
		tree = &section.Tree{}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().Unix()
	var docID int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM documents WHERE path = ?`, doc.Path).Scan(&docID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx,
			`INSERT INTO documents(path, title, format, front_matter, content_hash, created_at, updated_at)
			 VALUES(?, ?, ?, ?, ?, ?, ?)`,
			doc.Path, doc.Title, string(doc.Format), doc.FrontMatter, doc.ContentHash, now, now)
		if err != nil {
			return 0, fmt.Errorf("insert document: %w", err)
		}
		if docID, err = res.LastInsertId(); err != nil {
			return 0, err
		}
	case err != nil:
		return 0, err
	default:
		if _, err := tx.ExecContext(ctx,
			`UPDATE documents SET title = ?, format = ?, front_matter = ?, content_hash = ?, updated_at = ? WHERE id = ?`,
			doc.Title, string(doc.Format), doc.FrontMatter, doc.ContentHash, now, docID); err != nil {
			return 0, fmt.Errorf("update document: %w", err)
		}
		if err := deleteSections(ctx, tx, docID); err != nil {
			return 0, err
		}
	}

	secStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO sections(document_id, parent_id, level, title, heading, content, order_index, line_start, line_end)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer secStmt.Close()
	ftsStmt, err := tx.PrepareContext(ctx, `INSERT INTO section_fts(rowid, title, content) VALUES(?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer ftsStmt.Close()

	ids := make([]int64, len(tree.Nodes))
	for i, n := range tree.Nodes {
		var parent any
		if n.Parent >= 0 {
			parent = ids[n.Parent]
		}
		res, err := secStmt.ExecContext(ctx, docID, parent, n.Level, n.Title, n.Heading, n.Content, n.OrderIndex, n.LineStart, n.LineEnd)
		if err != nil {
			return 0, fmt.Errorf("insert section: %w", err)
		}
		if ids[i], err = res.LastInsertId(); err != nil {
			return 0, err
		}
		if _, err := ftsStmt.ExecContext(ctx, ids[i], n.Title, n.Content); err != nil {
			return 0, fmt.Errorf("insert index entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	s.log.Debug("stored document", "path", doc.Path, "doc_id", docID, "sections", len(tree.Nodes))
	return docID, nil
}

// deleteSections removes a document's sections together with their shadow
// rows. Must run inside the caller's transaction.
func deleteSections(ctx context.Context, tx *sql.Tx, docID int64) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM section_fts WHERE rowid IN (SELECT id FROM sections WHERE document_id = ?)`, docID); err != nil {
		return fmt.Errorf("delete index entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sections WHERE document_id = ?`, docID); err != nil {
		return fmt.Errorf("delete sections: %w", err)
	}
	return nil
}

// GetDocument returns the stored metadata for pathKey.
func (s *Store) GetDocument(ctx context.Context, pathKey string) (section.Document, error) {
	var (
		doc                  section.Document
		format               string
		createdAt, updatedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, path, title, format, front_matter, content_hash, created_at, updated_at FROM documents WHERE path = ?`,
		pathKey).Scan(&doc.ID, &doc.Path, &doc.Title, &format, &doc.FrontMatter, &doc.ContentHash, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return section.Document{}, fmt.Errorf("document %q: %w", pathKey, section.ErrNotFound)
	}
	if err != nil {
		return section.Document{}, err
	}
	doc.Format, err = section.ParseFormat(format)
	if err != nil {
		return section.Document{}, err
	}
	doc.CreatedAt = time.Unix(createdAt, 0).UTC()
	doc.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return doc, nil
}

// ListDocuments returns all stored documents ordered by path.
func (s *Store) ListDocuments(ctx context.Context) ([]section.Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path FROM documents ORDER BY path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	docs := make([]section.Document, 0, len(paths))
	for _, p := range paths {
		doc, err := s.GetDocument(ctx, p)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

const sectionColumns = `id, document_id, parent_id, level, title, heading, content, order_index, line_start, line_end`

// GetSection returns one section by id.
func (s *Store) GetSection(ctx context.Context, id int64) (section.Section, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sectionColumns+` FROM sections WHERE id = ?`, id)
	sec, err := scanSection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return section.Section{}, fmt.Errorf("section %d: %w", id, section.ErrNotFound)
	}
	return sec, err
}

// GetTree returns a document's sections in document (pre-order) order.
func (s *Store) GetTree(ctx context.Context, pathKey string) ([]section.Section, error) {
	doc, err := s.GetDocument(ctx, pathKey)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sectionColumns+` FROM sections WHERE document_id = ? ORDER BY line_start, id`, doc.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var secs []section.Section
	for rows.Next() {
		sec, err := scanSection(rows)
		if err != nil {
			return nil, err
		}
		secs = append(secs, sec)
	}
	return secs, rows.Err()
}

// DeleteDocument removes a document, all its sections, and all their shadow
// rows in one transaction.
func (s *Store) DeleteDocument(ctx context.Context, pathKey string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var docID int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM documents WHERE path = ?`, pathKey).Scan(&docID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("document %q: %w", pathKey, section.ErrNotFound)
	}
	if err != nil {
		return err
	}
	if err := deleteSections(ctx, tx, docID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, docID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.log.Debug("deleted document", "path", pathKey, "doc_id", docID)
	return nil
}

// SetSectionEmbedding attaches an externally produced embedding vector to a
// section. The vector only feeds similarity scoring; it never affects the
// lexical index.
func (s *Store) SetSectionEmbedding(ctx context.Context, id int64, vec []float32) error {
	blob, err := semantic.EncodeEmbedding(vec)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE sections SET embedding = ? WHERE id = ?`, blob, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("section %d: %w", id, section.ErrNotFound)
	}
	return nil
}

// SectionEmbedding returns a section's stored embedding, or nil when none
// has been set. Implements semantic.EmbeddingSource.
func (s *Store) SectionEmbedding(ctx context.Context, id int64) ([]float32, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT embedding FROM sections WHERE id = ?`, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("section %d: %w", id, section.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return semantic.DecodeEmbedding(blob)
}

// SectionsExist reports which of the given section ids are present.
func (s *Store) SectionsExist(ctx context.Context, ids []int64) (map[int64]bool, error) {
	out := make(map[int64]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM sections WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

// Hit is one lexical search match. Score is the bm25 relevance, higher is
// better, not yet normalized.
type Hit struct {
	SectionID int64
	Score     float64
}

var termRe = regexp.MustCompile(`[A-Za-z0-9_]+`)

// ftsMatchQuery turns free-form query text into an FTS5 MATCH expression:
// each token quoted, joined with OR so partial matches still rank.
func ftsMatchQuery(q string) string {
	terms := termRe.FindAllString(q, -1)
	if len(terms) == 0 {
		return ""
	}
	for i := range terms {
		terms[i] = `"` + terms[i] + `"`
	}
	return strings.Join(terms, " OR ")
}

// LexicalSearch ranks sections against the query using the shadow index's
// bm25 weighting. Results come back best-first, ties broken by lowest
// section id. A shadow row with no backing section is an
// IndexConsistencyError, never a silently shortened result list.
func (s *Store) LexicalSearch(ctx context.Context, query string, limit int) ([]Hit, error) {
	match := ftsMatchQuery(query)
	if match == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT f.rowid, bm25(section_fts), s.id
		 FROM section_fts f LEFT JOIN sections s ON s.id = f.rowid
		 WHERE section_fts MATCH ?
		 ORDER BY bm25(section_fts), f.rowid
		 LIMIT ?`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			rowid int64
			rank  float64
			sid   sql.NullInt64
		)
		if err := rows.Scan(&rowid, &rank, &sid); err != nil {
			return nil, err
		}
		if !sid.Valid {
			return nil, &section.IndexConsistencyError{
				Detail: fmt.Sprintf("index entry %d has no section row", rowid),
			}
		}
		// bm25() reports more relevant as more negative.
		hits = append(hits, Hit{SectionID: rowid, Score: -rank})
	}
	return hits, rows.Err()
}

// checkShadow verifies that every section of a document has exactly one
// shadow row.
func (s *Store) checkShadow(ctx context.Context, docID int64) error {
	var nSec, nFts int
	if err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM sections WHERE document_id = ?`, docID).Scan(&nSec); err != nil {
		return err
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM section_fts WHERE rowid IN (SELECT id FROM sections WHERE document_id = ?)`, docID).Scan(&nFts); err != nil {
		return err
	}
	if nSec != nFts {
		return &section.IndexConsistencyError{
			Detail: fmt.Sprintf("document %d has %d sections but %d index entries", docID, nSec, nFts),
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSection(r rowScanner) (section.Section, error) {
	var (
		sec    section.Section
		parent sql.NullInt64
	)
	err := r.Scan(&sec.ID, &sec.DocumentID, &parent, &sec.Level, &sec.Title, &sec.Heading,
		&sec.Content, &sec.OrderIndex, &sec.LineStart, &sec.LineEnd)
	if err != nil {
		return section.Section{}, err
	}
	if parent.Valid {
		p := parent.Int64
		sec.ParentID = &p
	}
	return sec, nil
}
