package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dgallion1/docslice/internal/parser"
	"github.com/dgallion1/docslice/internal/section"
	"github.com/go-chi/chi/v5"
)

// handleStoreDocument decomposes a raw document and stores its section tree
// under the given path key.
func (s *Server) handleStoreDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	var req struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Path == "" {
		jsonError(w, "path is required", http.StatusBadRequest)
		return
	}

	raw := []byte(req.Content)
	format := parser.Detect(raw)
	frontMatter, tree, err := parser.Parse(raw, format)
	if err != nil {
		var perr *section.StructuralParseError
		if errors.As(err, &perr) {
			jsonError(w, perr.Error(), http.StatusUnprocessableEntity)
			return
		}
		jsonError(w, "parse failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	title := parser.TitleFromFrontMatter(frontMatter)
	docID, err := s.store.Store(r.Context(), section.Document{
		Path:        req.Path,
		Title:       title,
		Format:      format,
		FrontMatter: frontMatter,
		ContentHash: section.Hash(raw),
	}, tree)
	if err != nil {
		jsonError(w, "store failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"doc_id":   docID,
		"path":     req.Path,
		"format":   format,
		"sections": len(tree.Nodes),
	})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.ListDocuments(r.Context())
	if err != nil {
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if docs == nil {
		docs = []section.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// handleGetTree returns the stored section hierarchy for a document path.
func (s *Server) handleGetTree(w http.ResponseWriter, r *http.Request) {
	pathKey := r.URL.Query().Get("path")
	if pathKey == "" {
		jsonError(w, "path query parameter is required", http.StatusBadRequest)
		return
	}

	doc, err := s.store.GetDocument(r.Context(), pathKey)
	if err != nil {
		if errors.Is(err, section.ErrNotFound) {
			jsonError(w, "document not found", http.StatusNotFound)
			return
		}
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	secs, err := s.store.GetTree(r.Context(), pathKey)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if secs == nil {
		secs = []section.Section{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"document": doc,
		"sections": secs,
	})
}

// handleRecompose returns the byte-exact original document text.
func (s *Server) handleRecompose(w http.ResponseWriter, r *http.Request) {
	pathKey := r.URL.Query().Get("path")
	if pathKey == "" {
		jsonError(w, "path query parameter is required", http.StatusBadRequest)
		return
	}

	raw, err := s.store.Recompose(r.Context(), pathKey)
	if err != nil {
		if errors.Is(err, section.ErrNotFound) {
			jsonError(w, "document not found", http.StatusNotFound)
			return
		}
		var rte *section.RoundTripIntegrityError
		var ice *section.IndexConsistencyError
		if errors.As(err, &rte) || errors.As(err, &ice) {
			s.log.Error("recompose integrity failure", "path", pathKey, "error", err)
			jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(raw)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	pathKey := r.URL.Query().Get("path")
	if pathKey == "" {
		jsonError(w, "path query parameter is required", http.StatusBadRequest)
		return
	}

	if err := s.store.DeleteDocument(r.Context(), pathKey); err != nil {
		if errors.Is(err, section.ErrNotFound) {
			jsonError(w, "document not found", http.StatusNotFound)
			return
		}
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": pathKey})
}

func (s *Server) handleGetSection(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "sectionID"), 10, 64)
	if err != nil {
		jsonError(w, "invalid section id", http.StatusBadRequest)
		return
	}

	sec, err := s.store.GetSection(r.Context(), id)
	if err != nil {
		if errors.Is(err, section.ErrNotFound) {
			jsonError(w, "section not found", http.StatusNotFound)
			return
		}
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, sec)
}

// handleSetEmbedding attaches an externally computed embedding vector to a
// section for semantic scoring.
func (s *Server) handleSetEmbedding(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "sectionID"), 10, 64)
	if err != nil {
		jsonError(w, "invalid section id", http.StatusBadRequest)
		return
	}

	var req struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Embedding) == 0 {
		jsonError(w, "embedding is required", http.StatusBadRequest)
		return
	}

	if err := s.store.SetSectionEmbedding(r.Context(), id, req.Embedding); err != nil {
		if errors.Is(err, section.ErrNotFound) {
			jsonError(w, "section not found", http.StatusNotFound)
			return
		}
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"section_id": id,
		"dimensions": len(req.Embedding),
	})
}
