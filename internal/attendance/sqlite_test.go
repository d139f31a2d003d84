package attendance

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestRecorder(t *testing.T) *SQLiteRecorder {
	t.Helper()
	rec, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "attendance.db"))
	if err != nil {
		t.Fatalf("failed to open recorder: %v", err)
	}
	t.Cleanup(func() { rec.Close() })
	return rec
}

func testEntry(identity string, windowStart time.Time) Entry {
	return newEntry(identity, "entrance", windowStart, windowStart.Add(5*time.Minute), 0.82)
}

func TestSQLiteRecorder_CommitAndList(t *testing.T) {
	rec := newTestRecorder(t)
	ctx := context.Background()

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	if err := rec.Commit(ctx, testEntry("alice", day)); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if err := rec.Commit(ctx, testEntry("bob", day)); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	entries, err := rec.ListRange(ctx, day, day.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Identity != "alice" || entries[1].Identity != "bob" {
		t.Errorf("unexpected order: %q, %q", entries[0].Identity, entries[1].Identity)
	}
	if entries[0].CameraID != "entrance" {
		t.Errorf("camera not preserved: %q", entries[0].CameraID)
	}
	if entries[0].BestSimilarity != 0.82 {
		t.Errorf("similarity not preserved: %v", entries[0].BestSimilarity)
	}
}

func TestSQLiteRecorder_CommitIsIdempotent(t *testing.T) {
	rec := newTestRecorder(t)
	ctx := context.Background()

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	entry := testEntry("alice", day)

	if err := rec.Commit(ctx, entry); err != nil {
		t.Fatalf("first commit failed: %v", err)
	}
	// Retried commit after an ambiguous failure must not duplicate.
	if err := rec.Commit(ctx, entry); err != nil {
		t.Fatalf("retried commit failed: %v", err)
	}

	count, err := rec.CountCommitted(ctx)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 row after retried commit, got %d", count)
	}
}

func TestSQLiteRecorder_ConflictKeepsBestStats(t *testing.T) {
	rec := newTestRecorder(t)
	ctx := context.Background()

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	first := testEntry("alice", day)
	if err := rec.Commit(ctx, first); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	// Same window committed again with fresher stats, for example after
	// a restart wiped the in-memory state.
	second := testEntry("alice", day)
	second.LastSeen = day.Add(time.Hour)
	second.Sightings = 7
	second.BestSimilarity = 0.95
	if err := rec.Commit(ctx, second); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	entries, err := rec.ListRange(ctx, day, day.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected a single row, got %d", len(entries))
	}
	if entries[0].Sightings != 7 {
		t.Errorf("expected merged sightings 7, got %d", entries[0].Sightings)
	}
	if entries[0].BestSimilarity != 0.95 {
		t.Errorf("expected merged similarity 0.95, got %v", entries[0].BestSimilarity)
	}
	if !entries[0].LastSeen.Equal(day.Add(time.Hour)) {
		t.Errorf("expected merged last seen, got %v", entries[0].LastSeen)
	}
}

func TestSQLiteRecorder_ListRangeBounds(t *testing.T) {
	rec := newTestRecorder(t)
	ctx := context.Background()

	monday := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	tuesday := monday.Add(24 * time.Hour)
	wednesday := monday.Add(48 * time.Hour)

	rec.Commit(ctx, testEntry("alice", monday))
	rec.Commit(ctx, testEntry("alice", tuesday))
	rec.Commit(ctx, testEntry("alice", wednesday))

	entries, err := rec.ListRange(ctx, tuesday, wednesday)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only tuesday's entry, got %d", len(entries))
	}
	if !entries[0].WindowStart.Equal(tuesday) {
		t.Errorf("wrong window: %v", entries[0].WindowStart)
	}
}

func TestSQLiteRecorder_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attendance.db")
	ctx := context.Background()

	rec, err := NewSQLiteRecorder(path)
	if err != nil {
		t.Fatalf("failed to open recorder: %v", err)
	}
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	if err := rec.Commit(ctx, testEntry("alice", day)); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	rec.Close()

	reopened, err := NewSQLiteRecorder(path)
	if err != nil {
		t.Fatalf("failed to reopen recorder: %v", err)
	}
	defer reopened.Close()

	count, err := reopened.CountCommitted(ctx)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected entry to survive reopen, got %d rows", count)
	}
}
