package gallery

import "time"

// Corpus maps a normalized identity label to its enrollment embeddings.
// It is the unit of exchange between the gallery and the index builder.
type Corpus map[string][][]float32

// Enrollment is a single labeled embedding as stored in the gallery.
type Enrollment struct {
	Label     string
	Embedding []float32
	CreatedAt time.Time
}

// Identities returns the labels present in the corpus.
func (c Corpus) Identities() []string {
	labels := make([]string, 0, len(c))
	for label := range c {
		labels = append(labels, label)
	}
	return labels
}

// Size returns the total number of embeddings across all identities.
func (c Corpus) Size() int {
	total := 0
	for _, embeddings := range c {
		total += len(embeddings)
	}
	return total
}
