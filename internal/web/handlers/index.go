package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/kozaktomas/face-attend/internal/index"
)

// IndexHandler handles similarity index lifecycle endpoints.
type IndexHandler struct {
	corpus  CorpusSource
	matcher MatcherService
}

// NewIndexHandler creates a new index handler.
func NewIndexHandler(corpus CorpusSource, matcher MatcherService) *IndexHandler {
	return &IndexHandler{corpus: corpus, matcher: matcher}
}

// Rebuild constructs a fresh index from the enrolled gallery and swaps
// it in. Queries in flight keep their snapshot.
func (h *IndexHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	err := h.matcher.Rebuild(h.corpus.Corpus())
	if errors.Is(err, index.ErrEmptyCorpus) {
		respondError(w, http.StatusConflict, "no identities enrolled")
		return
	}
	if errors.Is(err, index.ErrDimensionMismatch) {
		respondError(w, http.StatusUnprocessableEntity, "enrolled embeddings have inconsistent dimensions")
		return
	}
	if err != nil {
		log.Printf("WARNING: index rebuild failed: %v", err)
		respondError(w, http.StatusInternalServerError, "index rebuild failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "rebuilt",
		"index_size": h.matcher.IndexSize(),
		"identities": len(h.corpus.Identities()),
	})
}

// Status reports the current index state.
func (h *IndexHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"ready":      h.matcher.Ready(),
		"index_size": h.matcher.IndexSize(),
		"threshold":  h.matcher.Threshold(),
	})
}
