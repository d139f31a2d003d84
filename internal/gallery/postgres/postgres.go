// Package postgres provides optional PostgreSQL-backed gallery persistence
// using pgvector. The serving path still queries the in-memory index; this
// backend is the durable source the corpus is reloaded from.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attend/internal/config"
	_ "github.com/lib/pq"
)

// Pool manages a PostgreSQL connection pool.
type Pool struct {
	db  *sql.DB
	dim int
}

// NewPool creates a new PostgreSQL connection pool for enrollments of the
// given embedding dimension.
func NewPool(cfg *config.DatabaseConfig, dim int) (*Pool, error) {
	if cfg.PostgresURL == "" {
		return nil, errors.New("database URL is required")
	}
	if dim <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", dim)
	}

	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Pool{db: db, dim: dim}, nil
}

// Migrate creates the pgvector extension and the enrollments table.
func (p *Pool) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS enrollments (
			id         BIGSERIAL PRIMARY KEY,
			label      VARCHAR(255) NOT NULL,
			embedding  vector(%d) NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`, p.dim)
	if _, err := p.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create enrollments table: %w", err)
	}

	if _, err := p.db.ExecContext(ctx,
		"CREATE INDEX IF NOT EXISTS idx_enrollments_label ON enrollments (label)"); err != nil {
		return fmt.Errorf("failed to create label index: %w", err)
	}
	return nil
}

// DB returns the underlying sql.DB for direct access.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}
