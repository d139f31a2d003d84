package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-attend/internal/gallery"
	"github.com/kozaktomas/face-attend/internal/ingest"
)

func TestStatsGet(t *testing.T) {
	corpus := &fakeCorpus{corpus: gallery.Corpus{
		"alice": {{1, 0}, {0, 1}},
		"bob":   {{1, 1}},
	}}
	matcher := &fakeMatcher{ready: true, indexSize: 3, threshold: 0.6}
	ingestor := &fakeIngestor{stats: []ingest.CameraStats{{ID: "entrance", State: "active"}}}
	att := &fakeAttendance{pending: 2}

	handler := NewStatsHandler(corpus, matcher, ingestor, att)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()

	handler.Get(rec, req)

	assertStatusCode(t, rec, http.StatusOK)
	var resp StatsResponse
	parseJSONResponse(t, rec, &resp)

	if resp.EnrolledIdentities != 2 {
		t.Errorf("expected 2 identities, got %d", resp.EnrolledIdentities)
	}
	if resp.EnrolledEmbeddings != 3 {
		t.Errorf("expected 3 embeddings, got %d", resp.EnrolledEmbeddings)
	}
	if !resp.IndexReady || resp.IndexSize != 3 {
		t.Errorf("unexpected index state: ready=%v size=%d", resp.IndexReady, resp.IndexSize)
	}
	if resp.PendingCommits != 2 {
		t.Errorf("expected 2 pending commits, got %d", resp.PendingCommits)
	}
	if len(resp.Cameras) != 1 {
		t.Errorf("expected 1 camera, got %d", len(resp.Cameras))
	}
}
