package attendance

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Sighting is one accepted identity resolution handed to the deduplicator.
type Sighting struct {
	Identity   string
	CameraID   string
	Similarity float64
	At         time.Time
}

// Options configure the deduplication policy.
type Options struct {
	// Window is the wall-clock period within which an identity is
	// recorded at most once. Windows are aligned by truncation, so a
	// 24h window rolls over at midnight UTC.
	Window time.Duration
	// DebounceHits is how many accepted sightings an identity needs in
	// a window before its entry is committed. 1 commits on first sight.
	DebounceHits int
	// CommitRetries bounds synchronous retries when the recorder fails.
	// A commit that still fails stays open and is retried by the flush
	// loop, never dropped.
	CommitRetries int
	// FlushInterval is the period of the background retry/cleanup loop.
	FlushInterval time.Duration
	// PerCamera scopes the one-commit guarantee to (identity, camera)
	// instead of identity alone.
	PerCamera bool
}

type slotKey struct {
	identity string
	camera   string
	window   int64
}

// slot is the per-key state machine. Its mutex serializes all
// transitions for one (identity, window) pair, so check-and-commit is
// atomic even when many cameras report the same person simultaneously.
type slot struct {
	mu    sync.Mutex
	state State
	entry Entry
	hits  int
	dirty bool // entry stats changed after the last successful commit
}

// Deduplicator guarantees at most one committed attendance entry per
// identity and window, no matter how many accepted sightings arrive.
type Deduplicator struct {
	recorder Recorder
	opts     Options
	now      func() time.Time

	mu    sync.Mutex
	slots map[slotKey]*slot
}

// NewDeduplicator validates the policy and wires the recorder.
func NewDeduplicator(recorder Recorder, opts Options) (*Deduplicator, error) {
	if recorder == nil {
		return nil, fmt.Errorf("recorder must not be nil")
	}
	if opts.Window <= 0 {
		return nil, fmt.Errorf("window must be positive, got %s", opts.Window)
	}
	if opts.DebounceHits < 1 {
		return nil, fmt.Errorf("debounce hits must be at least 1, got %d", opts.DebounceHits)
	}
	if opts.CommitRetries < 0 {
		return nil, fmt.Errorf("commit retries must not be negative, got %d", opts.CommitRetries)
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 30 * time.Second
	}
	return &Deduplicator{
		recorder: recorder,
		opts:     opts,
		now:      time.Now,
		slots:    make(map[slotKey]*slot),
	}, nil
}

func (d *Deduplicator) key(identity, camera string, windowStart time.Time) slotKey {
	k := slotKey{identity: identity, window: windowStart.Unix()}
	if d.opts.PerCamera {
		k.camera = camera
	}
	return k
}

func (d *Deduplicator) slotFor(k slotKey) *slot {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.slots[k]
	if !ok {
		s = &slot{}
		d.slots[k] = s
	}
	return s
}

// Observe processes one accepted sighting. It returns the entry state
// for the sighting's window and whether this particular call performed
// the commit. A recorder failure leaves the entry open and is reported
// as an error; the sighting itself is never lost.
func (d *Deduplicator) Observe(ctx context.Context, s Sighting) (Entry, bool, error) {
	if s.Identity == "" {
		return Entry{}, false, fmt.Errorf("sighting has no identity")
	}
	at := s.At
	if at.IsZero() {
		at = d.now()
	}
	at = at.UTC()
	windowStart := at.Truncate(d.opts.Window)

	slot := d.slotFor(d.key(s.Identity, s.CameraID, windowStart))
	slot.mu.Lock()
	defer slot.mu.Unlock()

	switch slot.state {
	case Idle:
		slot.entry = newEntry(s.Identity, s.CameraID, windowStart, at, s.Similarity)
		slot.state = Open
		slot.hits = 1
	case Open, Committed:
		slot.entry.LastSeen = at
		slot.entry.Sightings++
		if s.Similarity > slot.entry.BestSimilarity {
			slot.entry.BestSimilarity = s.Similarity
		}
		slot.hits++
		if slot.state == Committed {
			slot.dirty = true
		}
	}

	if slot.state == Committed || slot.hits < d.opts.DebounceHits {
		return slot.entry, false, nil
	}

	if err := d.commit(ctx, slot.entry); err != nil {
		log.Printf("WARNING: attendance commit for %q failed, entry stays open: %v", s.Identity, err)
		return slot.entry, false, fmt.Errorf("committing attendance for %q: %w", s.Identity, err)
	}
	slot.state = Committed
	return slot.entry, true, nil
}

// commit pushes one entry to the recorder with bounded exponential
// backoff. The entry ID is stable across attempts, so an ambiguous
// failure that actually landed is deduplicated by the recorder.
func (d *Deduplicator) commit(ctx context.Context, entry Entry) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(d.opts.CommitRetries)),
		ctx,
	)
	return backoff.Retry(func() error {
		return d.recorder.Commit(ctx, entry)
	}, policy)
}

// Run drives the background flush loop until the context is cancelled.
// Each tick retries open entries and drops state for expired windows.
func (d *Deduplicator) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Last chance for open entries before shutdown.
			d.Flush(context.WithoutCancel(ctx))
			return ctx.Err()
		case <-ticker.C:
			d.Flush(ctx)
		}
	}
}

// Flush retries every open entry that has cleared its debounce, pushes
// updated stats for entries that kept collecting sightings after their
// commit, and evicts slots whose window ended more than one window ago.
func (d *Deduplicator) Flush(ctx context.Context) {
	cutoff := d.now().UTC().Add(-2 * d.opts.Window).Unix()

	d.mu.Lock()
	keys := make([]slotKey, 0, len(d.slots))
	for k := range d.slots {
		keys = append(keys, k)
	}
	d.mu.Unlock()

	for _, k := range keys {
		d.mu.Lock()
		s, ok := d.slots[k]
		d.mu.Unlock()
		if !ok {
			continue
		}

		s.mu.Lock()
		switch {
		case s.state == Open && s.hits >= d.opts.DebounceHits:
			if err := d.commit(ctx, s.entry); err != nil {
				log.Printf("WARNING: attendance flush retry for %q failed: %v", k.identity, err)
			} else {
				s.state = Committed
			}
		case s.state == Committed && s.dirty:
			// Re-push so the stored row covers the whole window; the
			// recorder merges by unique key, keeping the larger counters.
			if err := d.commit(ctx, s.entry); err != nil {
				log.Printf("WARNING: attendance stats update for %q failed: %v", k.identity, err)
			} else {
				s.dirty = false
			}
		}
		expired := s.state != Open && !s.dirty && k.window < cutoff
		s.mu.Unlock()

		if expired {
			d.mu.Lock()
			delete(d.slots, k)
			d.mu.Unlock()
		}
	}
}

// PendingCount reports how many entries are open but not yet committed.
func (d *Deduplicator) PendingCount() int {
	d.mu.Lock()
	slots := make([]*slot, 0, len(d.slots))
	for _, s := range d.slots {
		slots = append(slots, s)
	}
	d.mu.Unlock()

	pending := 0
	for _, s := range slots {
		s.mu.Lock()
		if s.state == Open {
			pending++
		}
		s.mu.Unlock()
	}
	return pending
}

// ListRange returns committed entries overlapping [from, to).
func (d *Deduplicator) ListRange(ctx context.Context, from, to time.Time) ([]Entry, error) {
	return d.recorder.ListRange(ctx, from, to)
}
