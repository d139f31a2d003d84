package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthCheck(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	HealthCheck(rec, req)

	assertStatusCode(t, rec, http.StatusOK)
	var resp map[string]string
	parseJSONResponse(t, rec, &resp)
	if resp["status"] != "ok" {
		t.Errorf("expected status ok, got %q", resp["status"])
	}
}

func TestRespondError(t *testing.T) {
	rec := httptest.NewRecorder()
	respondError(rec, http.StatusTeapot, "something broke")

	assertStatusCode(t, rec, http.StatusTeapot)
	assertJSONError(t, rec, "something broke")
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got %q", ct)
	}
}

func TestSanitizeForLog(t *testing.T) {
	got := sanitizeForLog("cam\nera\rid")
	if got != "cameraid" {
		t.Errorf("expected newlines stripped, got %q", got)
	}
}
