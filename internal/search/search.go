// Package search merges lexical ranking from the store's shadow index with
// caller-supplied semantic similarity into one ordered result list.
package search

import (
	"context"
	"sort"

	"github.com/dgallion1/docslice/internal/semantic"
	"github.com/dgallion1/docslice/internal/store"
)

// Result is one ranked search hit. All scores are in [0, 1].
type Result struct {
	SectionID int64   `json:"section_id"`
	Lexical   float64 `json:"lexical_score"`
	Semantic  float64 `json:"semantic_score"`
	Combined  float64 `json:"combined_score"`
}

// Options tunes one search call. Semantic maps section ids to externally
// computed similarity in [0, 1]; nil means pure lexical search, in which
// case Weight is ignored. Weight is the semantic share of the combined
// score and is clamped to [0, 1]. QueryEmbedding, when set and Semantic is
// nil, has the engine's provider score the lexical candidates against it.
type Options struct {
	Semantic       map[int64]float64
	QueryEmbedding []float32
	Weight         float64
	Limit          int
}

const defaultLimit = 20

// Engine ranks sections for a query.
type Engine struct {
	store    *store.Store
	provider semantic.Provider
}

// NewEngine builds an engine. provider may be nil, in which case
// QueryEmbedding options are ignored.
func NewEngine(st *store.Store, provider semantic.Provider) *Engine {
	return &Engine{store: st, provider: provider}
}

// Search runs bm25 lexical ranking over the shadow index, normalizes the
// candidate scores to [0, 1] by min-max rescale, and, when semantic scores
// are supplied, combines them as weight*semantic + (1-weight)*lexical.
// A section with a semantic score but no lexical match still participates
// with lexical 0; a candidate missing a semantic score gets semantic 0,
// never exclusion. The final order is descending combined score; the sort is
// stable, so ties keep the lexical ranked order (lowest section id first).
func (e *Engine) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	hits, err := e.store.LexicalSearch(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	lex := normalize(hits)

	if opts.Semantic == nil && len(opts.QueryEmbedding) > 0 && e.provider != nil {
		ids := make([]int64, len(hits))
		for i, h := range hits {
			ids[i] = h.SectionID
		}
		scores, err := e.provider.Scores(ctx, opts.QueryEmbedding, ids)
		if err != nil {
			return nil, err
		}
		opts.Semantic = scores
	}

	results := make([]Result, 0, len(hits))
	seen := make(map[int64]bool, len(hits))
	for _, h := range hits {
		seen[h.SectionID] = true
		results = append(results, Result{SectionID: h.SectionID, Lexical: lex[h.SectionID]})
	}

	if opts.Semantic == nil {
		for i := range results {
			results[i].Combined = results[i].Lexical
		}
		return truncate(results, limit), nil
	}

	w := clamp01(opts.Weight)

	// Sections that only the semantic side knows about join the candidate
	// set, provided they actually exist in the store.
	var extras []int64
	for id := range opts.Semantic {
		if !seen[id] {
			extras = append(extras, id)
		}
	}
	if len(extras) > 0 {
		exist, err := e.store.SectionsExist(ctx, extras)
		if err != nil {
			return nil, err
		}
		sort.Slice(extras, func(i, j int) bool {
			si, sj := opts.Semantic[extras[i]], opts.Semantic[extras[j]]
			if si != sj {
				return si > sj
			}
			return extras[i] < extras[j]
		})
		for _, id := range extras {
			if exist[id] {
				results = append(results, Result{SectionID: id})
			}
		}
	}

	for i := range results {
		sem := clamp01(opts.Semantic[results[i].SectionID])
		results[i].Semantic = sem
		results[i].Combined = w*sem + (1-w)*results[i].Lexical
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Combined > results[j].Combined })
	return truncate(results, limit), nil
}

// normalize rescales raw bm25 scores to [0, 1] over the candidate set. When
// every candidate scores the same, all map to 1.
func normalize(hits []store.Hit) map[int64]float64 {
	out := make(map[int64]float64, len(hits))
	if len(hits) == 0 {
		return out
	}
	lo, hi := hits[0].Score, hits[0].Score
	for _, h := range hits[1:] {
		if h.Score < lo {
			lo = h.Score
		}
		if h.Score > hi {
			hi = h.Score
		}
	}
	for _, h := range hits {
		if hi == lo {
			out[h.SectionID] = 1
		} else {
			out[h.SectionID] = (h.Score - lo) / (hi - lo)
		}
	}
	return out
}

func truncate(rs []Result, limit int) []Result {
	if len(rs) > limit {
		return rs[:limit]
	}
	return rs
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
