package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-attend/internal/ingest"
)

// StatsHandler handles statistics endpoints
type StatsHandler struct {
	corpus     CorpusSource
	matcher    MatcherService
	ingestor   FrameIngestor
	attendance AttendanceService
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(corpus CorpusSource, matcher MatcherService, ingestor FrameIngestor, attendance AttendanceService) *StatsHandler {
	return &StatsHandler{
		corpus:     corpus,
		matcher:    matcher,
		ingestor:   ingestor,
		attendance: attendance,
	}
}

// StatsResponse represents the statistics response
type StatsResponse struct {
	EnrolledIdentities int                  `json:"enrolled_identities"`
	EnrolledEmbeddings int                  `json:"enrolled_embeddings"`
	IndexReady         bool                 `json:"index_ready"`
	IndexSize          int                  `json:"index_size"`
	Threshold          float64              `json:"threshold"`
	PendingCommits     int                  `json:"pending_commits"`
	Cameras            []ingest.CameraStats `json:"cameras"`
}

// Get returns statistics about enrollments, the index and cameras
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	stats := &StatsResponse{
		EnrolledIdentities: len(h.corpus.Identities()),
		EnrolledEmbeddings: h.corpus.Count(),
		IndexReady:         h.matcher.Ready(),
		IndexSize:          h.matcher.IndexSize(),
		Threshold:          h.matcher.Threshold(),
		PendingCommits:     h.attendance.PendingCount(),
		Cameras:            h.ingestor.Stats(),
	}
	respondJSON(w, http.StatusOK, stats)
}
