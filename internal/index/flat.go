package index

import "sort"

// Flat is an exact brute-force index. Search cost is linear in the gallery
// size, which is fine for small-to-moderate galleries and gives exact,
// fully deterministic results.
type Flat struct {
	labels  []string
	vectors [][]float32
	dim     int
}

func newFlat(labels []string, vectors [][]float32, dim int) *Flat {
	return &Flat{labels: labels, vectors: vectors, dim: dim}
}

// Search scans every stored embedding and returns the k nearest.
// Equal distances are broken by ascending insertion ordinal, so repeated
// queries on the same index are reproducible.
func (f *Flat) Search(query []float32, k int) ([]Neighbor, error) {
	k, err := clampK(k, len(f.vectors))
	if err != nil {
		return nil, err
	}
	if err := checkQueryDim(query, f.dim); err != nil {
		return nil, err
	}

	neighbors := make([]Neighbor, len(f.vectors))
	for i, vec := range f.vectors {
		neighbors[i] = Neighbor{
			Label:    f.labels[i],
			Ord:      i,
			Distance: CosineDistance(query, vec),
		}
	}

	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Distance != neighbors[j].Distance {
			return neighbors[i].Distance < neighbors[j].Distance
		}
		return neighbors[i].Ord < neighbors[j].Ord
	})

	return neighbors[:k], nil
}

// Len returns the number of stored embeddings.
func (f *Flat) Len() int {
	return len(f.vectors)
}

// Dim returns the embedding dimension.
func (f *Flat) Dim() int {
	return f.dim
}

func (f *Flat) entries() ([]string, [][]float32) {
	return f.labels, f.vectors
}
