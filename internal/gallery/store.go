// Package gallery holds the enrolled identities and their embeddings. The
// store is append-only in the serving path; identities change only through
// enrollment and rebuild.
package gallery

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

var (
	// ErrCorruptStore is returned when a persisted gallery fails its
	// consistency checks on load.
	ErrCorruptStore = errors.New("gallery store is corrupt")
	// ErrDimensionMismatch is returned when an appended embedding does not
	// match the store's configured dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

const storeMetaVersion = 1

// storeMeta is written next to the gob file for validation on load.
type storeMeta struct {
	Version int       `json:"version"`
	Count   int       `json:"count"`
	Dim     int       `json:"dim"`
	SavedAt time.Time `json:"saved_at"`
}

// storeData is the gob-encoded payload.
type storeData struct {
	Labels  []string
	Vectors [][]float32
}

// Store is the append-only embedding store. Labels are normalized on append,
// embeddings keep their insertion order per identity.
type Store struct {
	mu      sync.RWMutex
	dim     int
	labels  []string
	vectors [][]float32
}

// NewStore creates an empty store for embeddings of the given dimension.
func NewStore(dim int) (*Store, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("store dimension must be positive, got %d", dim)
	}
	return &Store{dim: dim}, nil
}

// Append adds one labeled embedding. The label is normalized; appending the
// same person under "Jan-Novák" and "jan novak" extends one identity.
func (s *Store) Append(label string, embedding []float32) error {
	normalized := NormalizeLabel(label)
	if normalized == "" {
		return errors.New("identity label is empty")
	}
	if len(embedding) != s.dim {
		return fmt.Errorf("embedding for %q has dimension %d, store expects %d: %w",
			normalized, len(embedding), s.dim, ErrDimensionMismatch)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.labels = append(s.labels, normalized)
	s.vectors = append(s.vectors, embedding)
	return nil
}

// Corpus returns a snapshot of the store grouped by identity. The returned
// map is independent of later appends; the embedding slices are shared and
// must be treated as read-only.
func (s *Store) Corpus() Corpus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	corpus := make(Corpus)
	for i, label := range s.labels {
		corpus[label] = append(corpus[label], s.vectors[i])
	}
	return corpus
}

// Count returns the total number of stored embeddings.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}

// Dim returns the configured embedding dimension.
func (s *Store) Dim() int {
	return s.dim
}

// Identities returns the distinct normalized labels in the store.
func (s *Store) Identities() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{}, len(s.labels))
	var out []string
	for _, label := range s.labels {
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	return out
}

// Save persists the store to path (gob) plus a .meta JSON file used for
// corruption checks on load.
func (s *Store) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(storeData{Labels: s.labels, Vectors: s.vectors}); err != nil {
		return fmt.Errorf("failed to encode gallery: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write gallery file: %w", err)
	}

	meta := storeMeta{
		Version: storeMetaVersion,
		Count:   len(s.vectors),
		Dim:     s.dim,
		SavedAt: time.Now().UTC(),
	}
	metaData, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal gallery metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta", metaData, 0600); err != nil {
		return fmt.Errorf("failed to write gallery metadata: %w", err)
	}
	return nil
}

// Load reads a store persisted by Save. Count or dimension inconsistencies
// are reported as ErrCorruptStore, never repaired silently.
func Load(path string) (*Store, error) {
	metaData, err := os.ReadFile(path + ".meta")
	if err != nil {
		return nil, fmt.Errorf("failed to read gallery metadata: %w", err)
	}
	var meta storeMeta
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal gallery metadata: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read gallery file: %w", err)
	}
	var payload storeData
	dec := gob.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode gallery: %w", err)
	}

	if len(payload.Labels) != len(payload.Vectors) {
		return nil, fmt.Errorf("gallery has %d labels but %d embeddings: %w",
			len(payload.Labels), len(payload.Vectors), ErrCorruptStore)
	}
	if len(payload.Vectors) != meta.Count {
		return nil, fmt.Errorf("gallery metadata says %d embeddings, file has %d: %w",
			meta.Count, len(payload.Vectors), ErrCorruptStore)
	}
	for i, vec := range payload.Vectors {
		if len(vec) != meta.Dim {
			return nil, fmt.Errorf("embedding %d has dimension %d, expected %d: %w",
				i, len(vec), meta.Dim, ErrCorruptStore)
		}
	}

	store, err := NewStore(meta.Dim)
	if err != nil {
		return nil, err
	}
	store.labels = payload.Labels
	store.vectors = payload.Vectors
	return store, nil
}
