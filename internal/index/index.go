// Package index provides nearest-neighbor search over enrolled face
// embeddings. Small galleries use an exact flat scan, large ones an HNSW
// graph. Indexes are immutable once built; a rebuild produces a new index.
package index

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrEmptyIndex is returned when searching an index with zero embeddings.
	ErrEmptyIndex = errors.New("index holds no embeddings")
	// ErrEmptyCorpus is returned when building from a corpus with no
	// identities or an identity with no embeddings.
	ErrEmptyCorpus = errors.New("corpus is empty")
	// ErrDimensionMismatch is returned when vector dimensions are inconsistent.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Neighbor is a single nearest-neighbor search result.
type Neighbor struct {
	// Label is the enrolled identity the stored embedding belongs to.
	Label string
	// Ord is the embedding's insertion ordinal, used as a deterministic
	// tie-breaker for equal distances.
	Ord int
	// Distance is the cosine distance between query and stored embedding.
	Distance float64
}

// Index answers k-nearest-neighbor queries over an immutable embedding snapshot.
type Index interface {
	// Search returns the k nearest stored embeddings by cosine distance.
	// k greater than Len() is clamped, k < 1 is an error, and searching an
	// empty index returns ErrEmptyIndex.
	Search(query []float32, k int) ([]Neighbor, error)
	// Len returns the number of stored embeddings.
	Len() int
	// Dim returns the embedding dimension.
	Dim() int
	// entries returns the stored labels and embeddings in insertion order.
	entries() (labels []string, vectors [][]float32)
}

// Options controls index construction.
type Options struct {
	// HNSWThreshold is the embedding count above which the approximate
	// HNSW graph is used. Zero or negative always selects the flat index.
	HNSWThreshold int
}

// Build constructs an index from a labeled corpus. Identities are processed
// in sorted label order and embeddings in enrollment order, so rebuilding
// from the same corpus yields identical ordinals.
func Build(corpus map[string][][]float32, opts Options) (Index, error) {
	if len(corpus) == 0 {
		return nil, fmt.Errorf("building index: %w", ErrEmptyCorpus)
	}

	labels := make([]string, 0, len(corpus))
	for label := range corpus {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var flatLabels []string
	var vectors [][]float32
	dim := 0
	for _, label := range labels {
		embeddings := corpus[label]
		if len(embeddings) == 0 {
			return nil, fmt.Errorf("identity %q has no embeddings: %w", label, ErrEmptyCorpus)
		}
		for _, vec := range embeddings {
			if dim == 0 {
				dim = len(vec)
			}
			if len(vec) != dim || dim == 0 {
				return nil, fmt.Errorf("identity %q has embedding of dimension %d, expected %d: %w",
					label, len(vec), dim, ErrDimensionMismatch)
			}
			flatLabels = append(flatLabels, label)
			vectors = append(vectors, vec)
		}
	}

	if opts.HNSWThreshold > 0 && len(vectors) > opts.HNSWThreshold {
		return newHNSW(flatLabels, vectors, dim), nil
	}
	return newFlat(flatLabels, vectors, dim), nil
}

// clampK validates and clamps k against the index size.
func clampK(k, total int) (int, error) {
	if total == 0 {
		return 0, ErrEmptyIndex
	}
	if k < 1 {
		return 0, fmt.Errorf("k must be >= 1, got %d", k)
	}
	if k > total {
		k = total
	}
	return k, nil
}

// checkQueryDim validates the query vector against the index dimension.
func checkQueryDim(query []float32, dim int) error {
	if len(query) != dim {
		return fmt.Errorf("query has dimension %d, index has %d: %w",
			len(query), dim, ErrDimensionMismatch)
	}
	return nil
}
