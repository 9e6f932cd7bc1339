package thumbnail

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore is the persistent thumbnail tier, keyed by image id and
// detail level. Payloads are encoded PNG bytes.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the thumbnail database under dataDir.
// If dataDir is empty it defaults to ~/.spheroid-editor/cache.
func NewSQLiteStore(dataDir string) (*SQLiteStore, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".spheroid-editor", "cache")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "thumbnails.db")

	// WAL mode keeps reads cheap while the sweep goroutine writes.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening thumbnail database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS thumbnails (
			image_id   TEXT NOT NULL,
			lod        INTEGER NOT NULL,
			payload    BLOB NOT NULL,
			cached_at  DATETIME NOT NULL,
			expires_at DATETIME NOT NULL,
			PRIMARY KEY (image_id, lod)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating thumbnails table: %w", err)
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Get retrieves a thumbnail payload. A missing or expired row reports
// ok=false with no error.
func (s *SQLiteStore) Get(ctx context.Context, imageID string, lod LOD) ([]byte, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT payload, expires_at FROM thumbnails
		WHERE image_id = ? AND lod = ?
	`, imageID, int(lod))

	var payload []byte
	var expiresAt time.Time
	if err := row.Scan(&payload, &expiresAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("scanning thumbnail: %w", err)
	}

	if time.Now().After(expiresAt) {
		return nil, false, nil
	}
	return payload, true, nil
}

// Put stores or replaces a thumbnail payload.
func (s *SQLiteStore) Put(ctx context.Context, imageID string, lod LOD, payload []byte, cachedAt, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO thumbnails (image_id, lod, payload, cached_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(image_id, lod) DO UPDATE SET
			payload = excluded.payload,
			cached_at = excluded.cached_at,
			expires_at = excluded.expires_at
	`, imageID, int(lod), payload, cachedAt.UTC(), expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("saving thumbnail: %w", err)
	}
	return nil
}

// DeleteImage removes every detail level for one image.
func (s *SQLiteStore) DeleteImage(ctx context.Context, imageID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM thumbnails WHERE image_id = ?", imageID)
	if err != nil {
		return fmt.Errorf("deleting thumbnails: %w", err)
	}
	return nil
}

// Clear drops all stored thumbnails.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM thumbnails")
	if err != nil {
		return fmt.Errorf("clearing thumbnails: %w", err)
	}
	return nil
}

// SweepExpired deletes rows past their expiry, returning how many were
// removed.
func (s *SQLiteStore) SweepExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM thumbnails WHERE expires_at <= ?", time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("sweeping expired thumbnails: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting swept thumbnails: %w", err)
	}
	return n, nil
}
