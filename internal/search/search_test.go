package search

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/dgallion1/docslice/internal/parser"
	"github.com/dgallion1/docslice/internal/section"
	"github.com/dgallion1/docslice/internal/semantic"
	"github.com/dgallion1/docslice/internal/store"
)

func newTestEngine(t *testing.T, raw string) (*Engine, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	data := []byte(raw)
	format := parser.Detect(data)
	fm, tree, err := parser.Parse(data, format)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := st.Store(context.Background(), section.Document{
		Path:        "doc.md",
		Format:      format,
		FrontMatter: fm,
		ContentHash: section.Hash(data),
	}, tree); err != nil {
		t.Fatalf("store: %v", err)
	}
	return NewEngine(st, semantic.NewCosineProvider(st)), st
}

const corpus = "# Python handler\nthe python handler handles python requests\n" +
	"# Python intro\npython appears once here\n" +
	"# Cooking\nrecipes and nothing else\n"

func TestSearch_PureLexical(t *testing.T) {
	e, st := newTestEngine(t, corpus)
	ctx := context.Background()

	results, err := e.Search(ctx, "python handler", Options{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) < 2 {
		t.Fatalf("expected at least 2 results, got %d", len(results))
	}

	best, err := st.GetSection(ctx, results[0].SectionID)
	if err != nil {
		t.Fatalf("get section: %v", err)
	}
	if best.Title != "Python handler" {
		t.Errorf("best result: %q", best.Title)
	}

	for _, r := range results {
		if r.Lexical < 0 || r.Lexical > 1 {
			t.Errorf("lexical score out of range: %v", r)
		}
		if r.Semantic != 0 {
			t.Errorf("semantic score without semantic input: %v", r)
		}
		if r.Combined != r.Lexical {
			t.Errorf("combined should equal lexical in pure lexical mode: %v", r)
		}
	}
	if results[0].Lexical != 1 {
		t.Errorf("best candidate should normalize to 1, got %v", results[0].Lexical)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Combined > results[i-1].Combined {
			t.Errorf("results not sorted descending: %v", results)
		}
	}
}

func TestSearch_WeightExtremes(t *testing.T) {
	e, _ := newTestEngine(t, corpus)
	ctx := context.Background()

	base, err := e.Search(ctx, "python", Options{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(base) < 2 {
		t.Fatalf("expected at least 2 lexical candidates, got %d", len(base))
	}
	worst := base[len(base)-1].SectionID
	sem := map[int64]float64{worst: 1.0}

	// Weight 1: semantic dominates completely.
	results, err := e.Search(ctx, "python", Options{Semantic: sem, Weight: 1})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if results[0].SectionID != worst {
		t.Errorf("with weight 1 the semantic favorite should rank first, got %d", results[0].SectionID)
	}
	if results[0].Combined != 1 {
		t.Errorf("combined: got %v, want 1", results[0].Combined)
	}

	// Weight 0: pure lexical order even with semantic scores present.
	results, err = e.Search(ctx, "python", Options{Semantic: sem, Weight: 0})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if results[0].SectionID != base[0].SectionID {
		t.Errorf("with weight 0 lexical order should hold, got %d want %d", results[0].SectionID, base[0].SectionID)
	}
}

func TestSearch_MissingSemanticScoreIsZero(t *testing.T) {
	e, _ := newTestEngine(t, corpus)
	ctx := context.Background()

	base, err := e.Search(ctx, "python", Options{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	scored := base[0].SectionID
	sem := map[int64]float64{scored: 0.8}

	results, err := e.Search(ctx, "python", Options{Semantic: sem, Weight: 0.5})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for _, r := range results {
		if r.SectionID == scored {
			if r.Semantic != 0.8 {
				t.Errorf("scored section semantic: got %v, want 0.8", r.Semantic)
			}
			continue
		}
		// Candidates without a semantic score participate with 0, they are
		// never excluded.
		if r.Semantic != 0 {
			t.Errorf("unscored section %d semantic: got %v, want 0", r.SectionID, r.Semantic)
		}
		if r.Combined != 0.5*r.Lexical {
			t.Errorf("unscored section %d combined: got %v, want %v", r.SectionID, r.Combined, 0.5*r.Lexical)
		}
	}
}

func TestSearch_SemanticOnlySectionJoins(t *testing.T) {
	e, st := newTestEngine(t, corpus)
	ctx := context.Background()

	// Find the section that never matches "python" lexically.
	secs, err := st.GetTree(ctx, "doc.md")
	if err != nil {
		t.Fatalf("tree: %v", err)
	}
	var cooking int64
	for _, sec := range secs {
		if sec.Title == "Cooking" {
			cooking = sec.ID
		}
	}
	if cooking == 0 {
		t.Fatal("cooking section not found")
	}

	sem := map[int64]float64{cooking: 0.9, 424242: 0.99}
	results, err := e.Search(ctx, "python", Options{Semantic: sem, Weight: 1})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if results[0].SectionID != cooking {
		t.Errorf("semantic-only section should rank first at weight 1, got %d", results[0].SectionID)
	}
	if results[0].Lexical != 0 {
		t.Errorf("semantic-only section lexical: got %v, want 0", results[0].Lexical)
	}
	// The unknown section id must not surface.
	for _, r := range results {
		if r.SectionID == 424242 {
			t.Errorf("nonexistent section leaked into results")
		}
	}
}

func TestSearch_QueryEmbeddingUsesStoredVectors(t *testing.T) {
	e, st := newTestEngine(t, corpus)
	ctx := context.Background()

	base, err := e.Search(ctx, "python", Options{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(base) < 2 {
		t.Fatalf("expected at least 2 candidates, got %d", len(base))
	}
	worst := base[len(base)-1].SectionID

	// Give the lexically worse candidate an embedding aligned with the query.
	if err := st.SetSectionEmbedding(ctx, worst, []float32{1, 0}); err != nil {
		t.Fatalf("set embedding: %v", err)
	}

	results, err := e.Search(ctx, "python", Options{QueryEmbedding: []float32{1, 0}, Weight: 1})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if results[0].SectionID != worst {
		t.Errorf("embedding-aligned section should rank first at weight 1, got %d", results[0].SectionID)
	}
	if results[0].Semantic != 1 {
		t.Errorf("identical vectors should score 1, got %v", results[0].Semantic)
	}
}

func TestSearch_Limit(t *testing.T) {
	e, _ := newTestEngine(t, corpus)
	results, err := e.Search(context.Background(), "python", Options{Limit: 1})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected 1 result, got %d", len(results))
	}
}

func TestNormalize_AllEqualMapsToOne(t *testing.T) {
	hits := []store.Hit{{SectionID: 1, Score: 2.5}, {SectionID: 2, Score: 2.5}}
	out := normalize(hits)
	if out[1] != 1 || out[2] != 1 {
		t.Errorf("equal scores should normalize to 1: %v", out)
	}
}
