// Package recognize resolves query embeddings to enrolled identities.
// The matcher serves reads from an immutable index snapshot; rebuilds
// construct a new index off to the side and swap a single pointer, so
// in-flight queries finish against the snapshot they started with.
package recognize

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-attend/internal/gallery"
	"github.com/kozaktomas/face-attend/internal/index"
)

// ErrIndexNotReady is returned when matching before the first index build.
var ErrIndexNotReady = errors.New("similarity index not built yet")

// MatchResult is the outcome of one identity resolution query.
type MatchResult struct {
	QueryID    string    `json:"query_id"`
	CameraID   string    `json:"camera_id,omitempty"`
	Label      string    `json:"label"`
	Similarity float64   `json:"similarity"`
	Distance   float64   `json:"distance"`
	Decision   Decision  `json:"-"`
	Accepted   bool      `json:"accepted"`
	Timestamp  time.Time `json:"timestamp"`
}

// snapshot boxes the index interface so it can live in an atomic.Pointer.
type snapshot struct {
	idx index.Index
}

// Matcher answers identity queries against the current index snapshot.
type Matcher struct {
	dim       int
	threshold float64
	opts      index.Options
	current   atomic.Pointer[snapshot]
}

// NewMatcher creates a matcher with a fixed threshold and expected query
// dimension. The matcher starts without an index; Match fails with
// ErrIndexNotReady until the first Rebuild.
func NewMatcher(dim int, threshold float64, opts index.Options) (*Matcher, error) {
	if threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold must be in (0, 1], got %g", threshold)
	}
	if dim <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dim)
	}
	return &Matcher{dim: dim, threshold: threshold, opts: opts}, nil
}

// Rebuild constructs a fresh index from the corpus and atomically replaces
// the served snapshot. The previous snapshot stays valid for queries that
// already hold it and is reclaimed by the GC once the last one finishes.
func (m *Matcher) Rebuild(corpus gallery.Corpus) error {
	idx, err := index.Build(corpus, m.opts)
	if err != nil {
		return fmt.Errorf("rebuilding index: %w", err)
	}
	if idx.Dim() != m.dim {
		return fmt.Errorf("corpus dimension %d does not match configured %d: %w",
			idx.Dim(), m.dim, index.ErrDimensionMismatch)
	}

	m.current.Store(&snapshot{idx: idx})
	return nil
}

// Adopt installs a prebuilt index, typically one loaded from disk, as the
// served snapshot. Swap semantics are the same as Rebuild's.
func (m *Matcher) Adopt(idx index.Index) error {
	if idx == nil {
		return errors.New("adopting nil index")
	}
	if idx.Dim() != m.dim {
		return fmt.Errorf("index dimension %d does not match configured %d: %w",
			idx.Dim(), m.dim, index.ErrDimensionMismatch)
	}

	m.current.Store(&snapshot{idx: idx})
	return nil
}

// Ready reports whether an index has been built.
func (m *Matcher) Ready() bool {
	return m.current.Load() != nil
}

// IndexSize returns the number of embeddings in the served snapshot.
func (m *Matcher) IndexSize() int {
	snap := m.current.Load()
	if snap == nil {
		return 0
	}
	return snap.idx.Len()
}

// Threshold returns the configured acceptance threshold.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Match resolves a single query embedding. A reject is a normal result with
// the "unknown" label; Match errors only on malformed input or when no index
// has been built.
func (m *Matcher) Match(embedding []float32) (MatchResult, error) {
	if len(embedding) != m.dim {
		return MatchResult{}, fmt.Errorf("query has dimension %d, expected %d: %w",
			len(embedding), m.dim, index.ErrDimensionMismatch)
	}

	snap := m.current.Load()
	if snap == nil {
		return MatchResult{}, ErrIndexNotReady
	}

	// Identity resolution is a single best-match problem, k=1 by policy.
	neighbors, err := snap.idx.Search(embedding, 1)
	if err != nil {
		return MatchResult{}, fmt.Errorf("index search: %w", err)
	}

	nearest := neighbors[0]
	similarity := index.Similarity(nearest.Distance)
	decision := Decide(similarity, m.threshold)

	result := MatchResult{
		QueryID:    uuid.NewString(),
		Label:      UnknownLabel,
		Similarity: similarity,
		Distance:   nearest.Distance,
		Decision:   decision,
		Accepted:   decision == Accept,
		Timestamp:  time.Now().UTC(),
	}
	if decision == Accept {
		result.Label = nearest.Label
	}
	return result, nil
}
