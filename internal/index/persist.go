package index

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// ErrCorruptIndex is returned when a persisted index fails its consistency
// checks on load.
var ErrCorruptIndex = errors.New("index file is corrupt")

const indexMetaVersion = 1

// indexMeta is written next to the gob file for validation on load.
type indexMeta struct {
	Version int       `json:"version"`
	Count   int       `json:"count"`
	Dim     int       `json:"dim"`
	SavedAt time.Time `json:"saved_at"`
}

// indexData is the gob-encoded payload. Slice position is the insertion
// ordinal, so file order carries the tie-break order.
type indexData struct {
	Labels  []string
	Vectors [][]float32
}

// SaveIndex persists a built index to path (gob) plus a .meta JSON file.
// Only the embedding snapshot is stored; the search structure is rebuilt
// on load.
func SaveIndex(idx Index, path string) error {
	labels, vectors := idx.entries()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(indexData{Labels: labels, Vectors: vectors}); err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write index file: %w", err)
	}

	meta := indexMeta{
		Version: indexMetaVersion,
		Count:   idx.Len(),
		Dim:     idx.Dim(),
		SavedAt: time.Now().UTC(),
	}
	metaData, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal index metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta", metaData, 0600); err != nil {
		return fmt.Errorf("failed to write index metadata: %w", err)
	}
	return nil
}

// LoadIndex reads an index persisted by SaveIndex and rebuilds the search
// structure over the stored snapshot. Stored order is preserved, so the
// loaded index ranks equal distances exactly like the one that was saved.
// Count or dimension inconsistencies are reported as ErrCorruptIndex,
// never repaired silently.
func LoadIndex(path string, opts Options) (Index, error) {
	metaData, err := os.ReadFile(path + ".meta")
	if err != nil {
		return nil, fmt.Errorf("failed to read index metadata: %w", err)
	}
	var meta indexMeta
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal index metadata: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read index file: %w", err)
	}
	var payload indexData
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode index: %w", err)
	}

	if len(payload.Labels) != len(payload.Vectors) {
		return nil, fmt.Errorf("index has %d labels but %d embeddings: %w",
			len(payload.Labels), len(payload.Vectors), ErrCorruptIndex)
	}
	if len(payload.Vectors) != meta.Count {
		return nil, fmt.Errorf("index metadata says %d embeddings, file has %d: %w",
			meta.Count, len(payload.Vectors), ErrCorruptIndex)
	}
	if meta.Count == 0 {
		return nil, fmt.Errorf("index file holds no embeddings: %w", ErrCorruptIndex)
	}
	for i, vec := range payload.Vectors {
		if len(vec) != meta.Dim {
			return nil, fmt.Errorf("embedding %d has dimension %d, expected %d: %w",
				i, len(vec), meta.Dim, ErrCorruptIndex)
		}
	}

	if opts.HNSWThreshold > 0 && len(payload.Vectors) > opts.HNSWThreshold {
		return newHNSW(payload.Labels, payload.Vectors, meta.Dim), nil
	}
	return newFlat(payload.Labels, payload.Vectors, meta.Dim), nil
}
