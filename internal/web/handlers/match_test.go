package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-attend/internal/recognize"
	"github.com/kozaktomas/face-attend/internal/vision"
)

func TestMatch(t *testing.T) {
	detector := &fakeDetector{face: vision.Face{Embedding: []float32{1, 0}, DetScore: 0.99}}
	matcher := &fakeMatcher{matchResult: recognize.MatchResult{
		QueryID:    "q1",
		Label:      "alice",
		Similarity: 0.91,
		Accepted:   true,
	}}
	handler := NewMatchHandler(detector, matcher)

	req := httptest.NewRequest(http.MethodPost, "/match", bytes.NewReader([]byte("image")))
	rec := httptest.NewRecorder()

	handler.Match(rec, req)

	assertStatusCode(t, rec, http.StatusOK)
	var result recognize.MatchResult
	parseJSONResponse(t, rec, &result)
	if result.Label != "alice" || !result.Accepted {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestMatch_EmptyBody(t *testing.T) {
	handler := NewMatchHandler(&fakeDetector{}, &fakeMatcher{})

	req := httptest.NewRequest(http.MethodPost, "/match", nil)
	rec := httptest.NewRecorder()

	handler.Match(rec, req)

	assertStatusCode(t, rec, http.StatusBadRequest)
}

func TestMatch_NoFace(t *testing.T) {
	detector := &fakeDetector{err: vision.ErrNoFace}
	handler := NewMatchHandler(detector, &fakeMatcher{})

	req := httptest.NewRequest(http.MethodPost, "/match", bytes.NewReader([]byte("image")))
	rec := httptest.NewRecorder()

	handler.Match(rec, req)

	assertStatusCode(t, rec, http.StatusUnprocessableEntity)
	assertJSONError(t, rec, "no face detected in image")
}

func TestMatch_IndexNotReady(t *testing.T) {
	detector := &fakeDetector{face: vision.Face{Embedding: []float32{1, 0}}}
	matcher := &fakeMatcher{matchErr: recognize.ErrIndexNotReady}
	handler := NewMatchHandler(detector, matcher)

	req := httptest.NewRequest(http.MethodPost, "/match", bytes.NewReader([]byte("image")))
	rec := httptest.NewRecorder()

	handler.Match(rec, req)

	assertStatusCode(t, rec, http.StatusConflict)
}

func TestMatch_RejectedStillOK(t *testing.T) {
	detector := &fakeDetector{face: vision.Face{Embedding: []float32{1, 0}}}
	matcher := &fakeMatcher{matchResult: recognize.MatchResult{
		Label:      recognize.UnknownLabel,
		Similarity: 0.4,
		Accepted:   false,
	}}
	handler := NewMatchHandler(detector, matcher)

	req := httptest.NewRequest(http.MethodPost, "/match", bytes.NewReader([]byte("image")))
	rec := httptest.NewRecorder()

	handler.Match(rec, req)

	assertStatusCode(t, rec, http.StatusOK)
	var result recognize.MatchResult
	parseJSONResponse(t, rec, &result)
	if result.Label != recognize.UnknownLabel {
		t.Errorf("rejected query must report the unknown label, got %q", result.Label)
	}
}
