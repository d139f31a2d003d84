package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attend/internal/ingest"
)

// CamerasHandler handles frame ingestion and per-camera queries.
type CamerasHandler struct {
	ingestor FrameIngestor
}

// NewCamerasHandler creates a new cameras handler.
func NewCamerasHandler(ingestor FrameIngestor) *CamerasHandler {
	return &CamerasHandler{ingestor: ingestor}
}

// readFrameBody extracts image bytes from either a multipart upload or a
// raw request body.
func readFrameBody(r *http.Request) ([]byte, error) {
	if file, _, err := r.FormFile("file"); err == nil {
		defer file.Close()
		return io.ReadAll(io.LimitReader(file, maxFrameBytes))
	}
	return io.ReadAll(io.LimitReader(r.Body, maxFrameBytes))
}

// SubmitFrame accepts one camera frame for asynchronous processing.
func (h *CamerasHandler) SubmitFrame(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "id")
	if cameraID == "" {
		respondError(w, http.StatusBadRequest, "camera id is required")
		return
	}

	data, err := readFrameBody(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read frame data")
		return
	}
	if len(data) == 0 {
		respondError(w, http.StatusBadRequest, "empty frame")
		return
	}

	capturedAt := time.Now().UTC()
	if ts := r.URL.Query().Get("captured_at"); ts != "" {
		parsed, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			respondError(w, http.StatusBadRequest, "captured_at must be RFC 3339")
			return
		}
		capturedAt = parsed.UTC()
	}

	err = h.ingestor.SubmitFrame(ingest.Frame{
		CameraID:   cameraID,
		Data:       data,
		CapturedAt: capturedAt,
	})
	switch {
	case errors.Is(err, ingest.ErrQueueFull):
		w.Header().Set("Retry-After", "1")
		respondError(w, http.StatusTooManyRequests, "camera queue full, retry later")
		return
	case errors.Is(err, ingest.ErrNotRunning):
		respondError(w, http.StatusServiceUnavailable, "ingestion not running")
		return
	case err != nil:
		log.Printf("WARNING: frame submit for camera %s failed: %v", sanitizeForLog(cameraID), err)
		respondError(w, http.StatusInternalServerError, "failed to queue frame")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"camera_id": cameraID,
		"status":    "queued",
	})
}

// RecentMatches returns a camera's latest match results, newest first.
func (h *CamerasHandler) RecentMatches(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "id")
	if cameraID == "" {
		respondError(w, http.StatusBadRequest, "camera id is required")
		return
	}

	matches, err := h.ingestor.RecentMatches(cameraID)
	if errors.Is(err, ingest.ErrUnknownCamera) {
		respondError(w, http.StatusNotFound, "unknown camera")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load matches")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"camera_id": cameraID,
		"matches":   matches,
	})
}

// List returns all known cameras and their health.
func (h *CamerasHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"cameras": h.ingestor.Stats(),
	})
}
