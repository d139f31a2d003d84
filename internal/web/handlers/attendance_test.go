package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kozaktomas/face-attend/internal/attendance"
)

func TestAttendanceList(t *testing.T) {
	svc := &fakeAttendance{entries: []attendance.Entry{
		{ID: "e1", Identity: "alice", Sightings: 3},
		{ID: "e2", Identity: "bob", Sightings: 1},
	}}
	handler := NewAttendanceHandler(svc)

	req := httptest.NewRequest(http.MethodGet,
		"/attendance?from=2025-03-10T00:00:00Z&to=2025-03-11T00:00:00Z", nil)
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	assertStatusCode(t, rec, http.StatusOK)
	var resp struct {
		From    time.Time          `json:"from"`
		To      time.Time          `json:"to"`
		Entries []attendance.Entry `json:"entries"`
	}
	parseJSONResponse(t, rec, &resp)
	if len(resp.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(resp.Entries))
	}
	if resp.Entries[0].Identity != "alice" {
		t.Errorf("unexpected first entry: %q", resp.Entries[0].Identity)
	}
}

func TestAttendanceList_DefaultsToToday(t *testing.T) {
	handler := NewAttendanceHandler(&fakeAttendance{})

	req := httptest.NewRequest(http.MethodGet, "/attendance", nil)
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	assertStatusCode(t, rec, http.StatusOK)
	var resp struct {
		From    time.Time          `json:"from"`
		To      time.Time          `json:"to"`
		Entries []attendance.Entry `json:"entries"`
	}
	parseJSONResponse(t, rec, &resp)
	if resp.To.Sub(resp.From) != 24*time.Hour {
		t.Errorf("default range should cover one day, got %s", resp.To.Sub(resp.From))
	}
	if resp.Entries == nil {
		t.Error("entries must serialize as an empty array, not null")
	}
}

func TestAttendanceList_BadTimestamps(t *testing.T) {
	handler := NewAttendanceHandler(&fakeAttendance{})

	req := httptest.NewRequest(http.MethodGet, "/attendance?from=yesterday", nil)
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	assertStatusCode(t, rec, http.StatusBadRequest)
}

func TestAttendanceList_InvertedRange(t *testing.T) {
	handler := NewAttendanceHandler(&fakeAttendance{})

	req := httptest.NewRequest(http.MethodGet,
		"/attendance?from=2025-03-11T00:00:00Z&to=2025-03-10T00:00:00Z", nil)
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	assertStatusCode(t, rec, http.StatusBadRequest)
	assertJSONError(t, rec, "to must be after from")
}
