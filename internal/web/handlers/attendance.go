package handlers

import (
	"net/http"
	"time"

	"github.com/kozaktomas/face-attend/internal/attendance"
)

// AttendanceHandler serves committed attendance records.
type AttendanceHandler struct {
	attendance AttendanceService
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(svc AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendance: svc}
}

// parseRange reads from/to query parameters. Defaults to the current day.
func parseRange(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := now.Truncate(24 * time.Hour)
	to := from.Add(24 * time.Hour)

	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = parsed.UTC()
	}
	if v := r.URL.Query().Get("to"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = parsed.UTC()
	}
	return from, to, nil
}

// List returns committed entries in the requested range.
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "from and to must be RFC 3339 timestamps")
		return
	}
	if !to.After(from) {
		respondError(w, http.StatusBadRequest, "to must be after from")
		return
	}

	entries, err := h.attendance.ListRange(r.Context(), from, to)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load attendance")
		return
	}
	if entries == nil {
		entries = []attendance.Entry{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"from":    from,
		"to":      to,
		"entries": entries,
	})
}
