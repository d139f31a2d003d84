package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attend/internal/attendance"
	"github.com/kozaktomas/face-attend/internal/gallery"
	"github.com/kozaktomas/face-attend/internal/ingest"
	"github.com/kozaktomas/face-attend/internal/recognize"
	"github.com/kozaktomas/face-attend/internal/vision"
)

// fakeMatcher implements MatcherService with canned responses
type fakeMatcher struct {
	matchResult recognize.MatchResult
	matchErr    error
	rebuildErr  error
	ready       bool
	indexSize   int
	threshold   float64
	rebuiltWith gallery.Corpus
}

func (f *fakeMatcher) Match(_ []float32) (recognize.MatchResult, error) {
	return f.matchResult, f.matchErr
}

func (f *fakeMatcher) Rebuild(corpus gallery.Corpus) error {
	f.rebuiltWith = corpus
	return f.rebuildErr
}

func (f *fakeMatcher) Ready() bool        { return f.ready }
func (f *fakeMatcher) IndexSize() int     { return f.indexSize }
func (f *fakeMatcher) Threshold() float64 { return f.threshold }

// fakeCorpus implements CorpusSource
type fakeCorpus struct {
	corpus gallery.Corpus
}

func (f *fakeCorpus) Corpus() gallery.Corpus { return f.corpus }
func (f *fakeCorpus) Count() int             { return f.corpus.Size() }
func (f *fakeCorpus) Identities() []string   { return f.corpus.Identities() }

// fakeIngestor implements FrameIngestor
type fakeIngestor struct {
	submitErr  error
	submitted  []ingest.Frame
	matches    []recognize.MatchResult
	matchesErr error
	stats      []ingest.CameraStats
}

func (f *fakeIngestor) SubmitFrame(frame ingest.Frame) error {
	f.submitted = append(f.submitted, frame)
	return f.submitErr
}

func (f *fakeIngestor) RecentMatches(string) ([]recognize.MatchResult, error) {
	return f.matches, f.matchesErr
}

func (f *fakeIngestor) Stats() []ingest.CameraStats { return f.stats }

// fakeDetector implements FaceDetector
type fakeDetector struct {
	face vision.Face
	err  error
}

func (f *fakeDetector) BestFace(_ context.Context, _ []byte) (vision.Face, error) {
	return f.face, f.err
}

// fakeAttendance implements AttendanceService
type fakeAttendance struct {
	entries []attendance.Entry
	listErr error
	pending int
}

func (f *fakeAttendance) ListRange(_ context.Context, _, _ time.Time) ([]attendance.Entry, error) {
	return f.entries, f.listErr
}

func (f *fakeAttendance) PendingCount() int { return f.pending }

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
