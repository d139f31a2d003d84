// Package attendance turns a stream of accepted match results into
// at-most-one attendance record per identity and time window. Every
// accepted sighting inside a window updates the window's open entry;
// only the first one creates it and only one commit ever reaches the
// recorder.
package attendance

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// State tracks an entry through its window lifecycle.
type State int

const (
	// Idle means no entry exists for the identity in the current window.
	Idle State = iota
	// Open means the entry has been created but not yet durably recorded.
	Open
	// Committed means the recorder accepted the entry. Further sightings
	// in the same window only bump counters.
	Committed
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Committed:
		return "committed"
	default:
		return "idle"
	}
}

// Entry is one attendance record: a single identity seen in a single
// window, with sighting statistics accumulated over the window.
type Entry struct {
	ID             string    `json:"id"`
	Identity       string    `json:"identity"`
	CameraID       string    `json:"camera_id,omitempty"`
	WindowStart    time.Time `json:"window_start"`
	FirstSeen      time.Time `json:"first_seen"`
	LastSeen       time.Time `json:"last_seen"`
	Sightings      int       `json:"sightings"`
	BestSimilarity float64   `json:"best_similarity"`
}

func newEntry(identity, cameraID string, windowStart, seen time.Time, similarity float64) Entry {
	return Entry{
		ID:             uuid.NewString(),
		Identity:       identity,
		CameraID:       cameraID,
		WindowStart:    windowStart,
		FirstSeen:      seen,
		LastSeen:       seen,
		Sightings:      1,
		BestSimilarity: similarity,
	}
}

// Recorder persists committed entries. Commit must be idempotent per
// entry ID so a retried commit after an ambiguous failure stays safe.
type Recorder interface {
	Commit(ctx context.Context, entry Entry) error
	ListRange(ctx context.Context, from, to time.Time) ([]Entry, error)
	Close() error
}
