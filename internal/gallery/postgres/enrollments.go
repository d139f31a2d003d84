package postgres

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-attend/internal/gallery"
)

// EnrollmentRepository stores labeled enrollment embeddings in PostgreSQL.
type EnrollmentRepository struct {
	pool *Pool
}

// NewEnrollmentRepository creates a repository backed by the given pool.
func NewEnrollmentRepository(pool *Pool) *EnrollmentRepository {
	return &EnrollmentRepository{pool: pool}
}

// Append stores one labeled embedding. The label is normalized the same way
// the in-memory store normalizes it, so both backends agree on identities.
func (r *EnrollmentRepository) Append(ctx context.Context, label string, embedding []float32) error {
	normalized := gallery.NormalizeLabel(label)
	if normalized == "" {
		return fmt.Errorf("identity label %q normalizes to empty", label)
	}
	if len(embedding) != r.pool.dim {
		return fmt.Errorf("embedding for %q has dimension %d, expected %d: %w",
			normalized, len(embedding), r.pool.dim, gallery.ErrDimensionMismatch)
	}

	_, err := r.pool.db.ExecContext(ctx,
		"INSERT INTO enrollments (label, embedding) VALUES ($1, $2)",
		normalized, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("insert enrollment: %w", err)
	}
	return nil
}

// LoadCorpus reads all enrollments grouped by identity, in insertion order.
func (r *EnrollmentRepository) LoadCorpus(ctx context.Context) (gallery.Corpus, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		"SELECT label, embedding FROM enrollments ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query enrollments: %w", err)
	}
	defer rows.Close()

	corpus := make(gallery.Corpus)
	for rows.Next() {
		var label string
		var vec pgvector.Vector
		if err := rows.Scan(&label, &vec); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		corpus[label] = append(corpus[label], vec.Slice())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrollments: %w", err)
	}
	return corpus, nil
}

// Count returns the total number of stored enrollments.
func (r *EnrollmentRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM enrollments").Scan(&count); err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return count, nil
}

// DeleteIdentity removes all enrollments for a label. Used for explicit
// re-enrollment; the serving index keeps the old identity until rebuilt.
func (r *EnrollmentRepository) DeleteIdentity(ctx context.Context, label string) (int64, error) {
	res, err := r.pool.db.ExecContext(ctx,
		"DELETE FROM enrollments WHERE label = $1", gallery.NormalizeLabel(label))
	if err != nil {
		return 0, fmt.Errorf("delete enrollments: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
