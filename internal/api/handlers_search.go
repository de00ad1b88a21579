package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dgallion1/docslice/internal/search"
	"github.com/dgallion1/docslice/internal/section"
)

// handleSearch ranks sections for a query. Semantic similarity comes either
// precomputed via semantic_scores (section id keyed, [0,1]) or via
// query_embedding, which is scored against stored section embeddings. With
// neither, the search is pure lexical.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query          string             `json:"query"`
		Weight         *float64           `json:"weight,omitempty"`
		Limit          int                `json:"limit,omitempty"`
		SemanticScores map[string]float64 `json:"semantic_scores,omitempty"`
		QueryEmbedding []float32          `json:"query_embedding,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		jsonError(w, "query is required", http.StatusBadRequest)
		return
	}

	opts := search.Options{
		Weight:         s.cfg.SearchWeight,
		Limit:          s.cfg.SearchLimit,
		QueryEmbedding: req.QueryEmbedding,
	}
	if req.Weight != nil {
		opts.Weight = *req.Weight
	}
	if req.Limit > 0 {
		opts.Limit = req.Limit
	}
	if req.SemanticScores != nil {
		opts.Semantic = make(map[int64]float64, len(req.SemanticScores))
		for k, v := range req.SemanticScores {
			id, err := strconv.ParseInt(k, 10, 64)
			if err != nil {
				jsonError(w, "semantic_scores keys must be section ids: "+k, http.StatusBadRequest)
				return
			}
			opts.Semantic[id] = v
		}
	}

	results, err := s.engine.Search(r.Context(), req.Query, opts)
	if err != nil {
		var ice *section.IndexConsistencyError
		if errors.As(err, &ice) {
			s.log.Error("search index inconsistency", "error", err)
		}
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if results == nil {
		results = []search.Result{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   req.Query,
		"results": results,
	})
}
