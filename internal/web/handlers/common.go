package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kozaktomas/face-attend/internal/attendance"
	"github.com/kozaktomas/face-attend/internal/gallery"
	"github.com/kozaktomas/face-attend/internal/ingest"
	"github.com/kozaktomas/face-attend/internal/recognize"
	"github.com/kozaktomas/face-attend/internal/vision"
)

// maxFrameBytes bounds uploaded frame size.
const maxFrameBytes = 16 << 20

// MatcherService is the identity resolution surface the handlers need.
type MatcherService interface {
	Match(embedding []float32) (recognize.MatchResult, error)
	Rebuild(corpus gallery.Corpus) error
	Ready() bool
	IndexSize() int
	Threshold() float64
}

// CorpusSource provides the enrolled gallery for index rebuilds.
type CorpusSource interface {
	Corpus() gallery.Corpus
	Count() int
	Identities() []string
}

// FrameIngestor accepts frames and reports per-camera state.
type FrameIngestor interface {
	SubmitFrame(frame ingest.Frame) error
	RecentMatches(cameraID string) ([]recognize.MatchResult, error)
	Stats() []ingest.CameraStats
}

// FaceDetector finds faces for the one-shot match endpoint.
type FaceDetector interface {
	BestFace(ctx context.Context, imageData []byte) (vision.Face, error)
}

// AttendanceService exposes committed entries and pending state.
type AttendanceService interface {
	ListRange(ctx context.Context, from, to time.Time) ([]attendance.Entry, error)
	PendingCount() int
}

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
