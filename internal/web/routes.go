package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attend/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	camerasHandler := handlers.NewCamerasHandler(s.deps.Ingestor)
	matchHandler := handlers.NewMatchHandler(s.deps.Detector, s.deps.Matcher)
	indexHandler := handlers.NewIndexHandler(s.deps.Corpus, s.deps.Matcher)
	attendanceHandler := handlers.NewAttendanceHandler(s.deps.Attendance)
	statsHandler := handlers.NewStatsHandler(s.deps.Corpus, s.deps.Matcher, s.deps.Ingestor, s.deps.Attendance)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Cameras
		r.Get("/cameras", camerasHandler.List)
		r.Post("/cameras/{id}/frames", camerasHandler.SubmitFrame)
		r.Get("/cameras/{id}/matches", camerasHandler.RecentMatches)

		// One-shot identity resolution
		r.Post("/match", matchHandler.Match)

		// Index lifecycle
		r.Get("/index", indexHandler.Status)
		r.Post("/index/rebuild", indexHandler.Rebuild)

		// Attendance
		r.Get("/attendance", attendanceHandler.List)

		// Stats
		r.Get("/stats", statsHandler.Get)
	})
}
