package attendance

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS attendance (
	id              TEXT PRIMARY KEY,
	identity        TEXT NOT NULL,
	camera          TEXT NOT NULL DEFAULT '',
	window_start    INTEGER NOT NULL,
	first_seen      INTEGER NOT NULL,
	last_seen       INTEGER NOT NULL,
	sightings       INTEGER NOT NULL,
	best_similarity REAL NOT NULL,
	UNIQUE (identity, camera, window_start)
);
CREATE INDEX IF NOT EXISTS idx_attendance_window ON attendance (window_start);
`

// SQLiteRecorder persists attendance entries in a local SQLite file.
// The unique constraint on (identity, camera, window_start) is a second
// line of defense behind the in-process deduplicator: even if state is
// lost across a restart, a window can never collect two rows.
type SQLiteRecorder struct {
	db *sql.DB
}

// NewSQLiteRecorder opens (and creates if needed) the database file and
// applies the schema.
func NewSQLiteRecorder(path string) (*SQLiteRecorder, error) {
	if path == "" {
		path = "attendance.db"
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc's driver serializes writes through a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteRecorder{db: db}, nil
}

// Commit inserts an entry, or refreshes its sighting statistics when
// the same window row already exists. Safe to call repeatedly with the
// same entry.
func (r *SQLiteRecorder) Commit(ctx context.Context, entry Entry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance (
			id, identity, camera, window_start,
			first_seen, last_seen, sightings, best_similarity
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (identity, camera, window_start) DO UPDATE SET
			last_seen       = MAX(last_seen, excluded.last_seen),
			sightings       = MAX(sightings, excluded.sightings),
			best_similarity = MAX(best_similarity, excluded.best_similarity)`,
		entry.ID, entry.Identity, entry.CameraID, entry.WindowStart.Unix(),
		entry.FirstSeen.Unix(), entry.LastSeen.Unix(),
		entry.Sightings, entry.BestSimilarity,
	)
	if err != nil {
		return fmt.Errorf("insert attendance for %q: %w", entry.Identity, err)
	}
	return nil
}

// ListRange returns entries whose window starts in [from, to), newest first.
func (r *SQLiteRecorder) ListRange(ctx context.Context, from, to time.Time) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, identity, camera, window_start,
		       first_seen, last_seen, sightings, best_similarity
		FROM attendance
		WHERE window_start >= ? AND window_start < ?
		ORDER BY window_start DESC, identity ASC`,
		from.Unix(), to.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var windowStart, firstSeen, lastSeen int64
		if err := rows.Scan(&e.ID, &e.Identity, &e.CameraID, &windowStart,
			&firstSeen, &lastSeen, &e.Sightings, &e.BestSimilarity); err != nil {
			return nil, fmt.Errorf("scan attendance row: %w", err)
		}
		e.WindowStart = time.Unix(windowStart, 0).UTC()
		e.FirstSeen = time.Unix(firstSeen, 0).UTC()
		e.LastSeen = time.Unix(lastSeen, 0).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountCommitted returns the total number of persisted entries.
func (r *SQLiteRecorder) CountCommitted(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendance`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count attendance: %w", err)
	}
	return count, nil
}

func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
