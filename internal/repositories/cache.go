package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/a2yt/internal/cache"
)

// CacheRepository implements cache.Store on the cache_entries table.
//
// Entries are keyed by (kind, remote_id); saving an existing key replaces its payload and stored_at.
type CacheRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewCacheRepository creates a new CacheRepository with the given database connection
func NewCacheRepository(db *sql.DB) *CacheRepository {
	return &CacheRepository{db: db, now: time.Now}
}

// Load retrieves an entry, returning [cache.ErrMiss] when none exists
func (r *CacheRepository) Load(kind cache.Kind, id string) (cache.Entry, error) {
	query := `SELECT payload, stored_at FROM cache_entries WHERE kind = ? AND remote_id = ?`

	var entry cache.Entry
	err := r.db.QueryRow(query, string(kind), id).Scan(&entry.Data, &entry.StoredAt)
	if err == sql.ErrNoRows {
		return cache.Entry{}, cache.ErrMiss
	}
	if err != nil {
		return cache.Entry{}, fmt.Errorf("failed to load cache entry: %w", err)
	}
	return entry, nil
}

// Save inserts or replaces an entry
func (r *CacheRepository) Save(kind cache.Kind, id string, data []byte) error {
	query := `
		INSERT INTO cache_entries (kind, remote_id, payload, stored_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(kind, remote_id) DO UPDATE SET payload = excluded.payload, stored_at = excluded.stored_at
	`

	if _, err := r.db.Exec(query, string(kind), id, data, r.now()); err != nil {
		return fmt.Errorf("failed to save cache entry: %w", err)
	}
	return nil
}

// Clear deletes every entry
func (r *CacheRepository) Clear() error {
	if _, err := r.db.Exec(`DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

// Count returns the number of entries
func (r *CacheRepository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM cache_entries`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return count, nil
}

var _ cache.Store = (*CacheRepository)(nil)
