package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/kozaktomas/face-attend/internal/recognize"
	"github.com/kozaktomas/face-attend/internal/vision"
)

// MatchHandler handles one-shot synchronous identity queries.
type MatchHandler struct {
	detector FaceDetector
	matcher  MatcherService
}

// NewMatchHandler creates a new match handler.
func NewMatchHandler(detector FaceDetector, matcher MatcherService) *MatchHandler {
	return &MatchHandler{detector: detector, matcher: matcher}
}

// Match resolves the identity on an uploaded image and returns the
// verdict immediately, without touching attendance.
func (h *MatchHandler) Match(w http.ResponseWriter, r *http.Request) {
	data, err := readFrameBody(r)
	if err != nil || len(data) == 0 {
		respondError(w, http.StatusBadRequest, "image data is required")
		return
	}

	face, err := h.detector.BestFace(r.Context(), data)
	if errors.Is(err, vision.ErrNoFace) {
		respondError(w, http.StatusUnprocessableEntity, "no face detected in image")
		return
	}
	if err != nil {
		log.Printf("WARNING: face detection failed: %v", err)
		respondError(w, http.StatusBadGateway, "face detection failed")
		return
	}

	result, err := h.matcher.Match(face.Embedding)
	if errors.Is(err, recognize.ErrIndexNotReady) {
		respondError(w, http.StatusConflict, "index not built yet, enroll identities and rebuild")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "match failed")
		return
	}

	respondJSON(w, http.StatusOK, result)
}
