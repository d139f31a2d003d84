package index

import (
	"sort"

	"github.com/coder/hnsw"
)

// HNSW graph parameters for 512-dim face embeddings.
const (
	// hnswMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	hnswMaxNeighbors = 16

	// hnswSearchMultiplier requests more candidates from the graph than k
	// to improve recall before the exact re-ranking pass.
	hnswSearchMultiplier = 3
)

// HNSW is an approximate index backed by a hierarchical navigable small
// world graph. Used above the configured gallery-size threshold to keep
// query latency bounded as the gallery grows.
type HNSW struct {
	graph   *hnsw.Graph[int]
	labels  []string
	vectors [][]float32
	dim     int
}

func newHNSW(labels []string, vectors [][]float32, dim int) *HNSW {
	g := hnsw.NewGraph[int]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.CosineDistance

	for i, vec := range vectors {
		g.Add(hnsw.MakeNode(i, vec))
	}

	return &HNSW{graph: g, labels: labels, vectors: vectors, dim: dim}
}

// Search queries the graph for candidates and re-ranks them with the exact
// cosine distance, breaking distance ties by insertion ordinal.
func (h *HNSW) Search(query []float32, k int) ([]Neighbor, error) {
	k, err := clampK(k, len(h.vectors))
	if err != nil {
		return nil, err
	}
	if err := checkQueryDim(query, h.dim); err != nil {
		return nil, err
	}

	searchK := k * hnswSearchMultiplier
	if searchK > len(h.vectors) {
		searchK = len(h.vectors)
	}

	nodes := h.graph.Search(query, searchK)

	neighbors := make([]Neighbor, 0, len(nodes))
	for _, n := range nodes {
		neighbors = append(neighbors, Neighbor{
			Label:    h.labels[n.Key],
			Ord:      n.Key,
			Distance: CosineDistance(query, h.vectors[n.Key]),
		})
	}

	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Distance != neighbors[j].Distance {
			return neighbors[i].Distance < neighbors[j].Distance
		}
		return neighbors[i].Ord < neighbors[j].Ord
	})

	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

// Len returns the number of stored embeddings.
func (h *HNSW) Len() int {
	return len(h.vectors)
}

// Dim returns the embedding dimension.
func (h *HNSW) Dim() int {
	return h.dim
}

func (h *HNSW) entries() ([]string, [][]float32) {
	return h.labels, h.vectors
}
