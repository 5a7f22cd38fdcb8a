package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ArtifactCacheRepository indexes artifacts downloaded from remote repositories
type ArtifactCacheRepository struct {
	db *Database
}

// NewArtifactCacheRepository creates a new artifact cache repository
func NewArtifactCacheRepository(db *Database) *ArtifactCacheRepository {
	return &ArtifactCacheRepository{db: db}
}

// Upsert inserts a cache entry or replaces the one recorded for the same coordinate
func (r *ArtifactCacheRepository) Upsert(entry *ArtifactCacheEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	entry.CreatedAt = time.Now()
	entry.LastUsedAt = entry.CreatedAt
	if entry.UseCount == 0 {
		entry.UseCount = 1
	}

	_, err := r.db.DB().Exec(`
		INSERT INTO artifact_cache (id, coordinate, remote_key, checksum, cache_path,
			size_bytes, created_at, last_used_at, use_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(coordinate) DO UPDATE SET
			remote_key = excluded.remote_key,
			checksum = excluded.checksum,
			cache_path = excluded.cache_path,
			size_bytes = excluded.size_bytes,
			last_used_at = excluded.last_used_at`,
		entry.ID, entry.Coordinate, entry.RemoteKey, entry.Checksum, entry.CachePath,
		entry.SizeBytes, entry.CreatedAt, entry.LastUsedAt, entry.UseCount,
	)
	if err != nil {
		return fmt.Errorf("failed to record artifact cache entry: %w", err)
	}
	return nil
}

// GetByCoordinate retrieves a cache entry by coordinate, nil when absent
func (r *ArtifactCacheRepository) GetByCoordinate(coordinate string) (*ArtifactCacheEntry, error) {
	row := r.db.DB().QueryRow(`
		SELECT id, coordinate, remote_key, checksum, cache_path, size_bytes,
			created_at, last_used_at, use_count
		FROM artifact_cache WHERE coordinate = ?`,
		coordinate,
	)
	return r.scanEntry(row)
}

// TouchLastUsed updates last_used_at and increments use_count
func (r *ArtifactCacheRepository) TouchLastUsed(id string) error {
	_, err := r.db.DB().Exec(`
		UPDATE artifact_cache SET last_used_at = ?, use_count = use_count + 1 WHERE id = ?`,
		time.Now(), id,
	)
	return err
}

// Delete removes a cache entry by ID
func (r *ArtifactCacheRepository) Delete(id string) error {
	result, err := r.db.DB().Exec(`DELETE FROM artifact_cache WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete artifact cache entry: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("artifact cache entry not found: %s", id)
	}
	return nil
}

// ListLRU returns cache entries ordered by least recently used (oldest first).
// A non-positive limit returns every entry.
func (r *ArtifactCacheRepository) ListLRU(limit int) ([]ArtifactCacheEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.DB().Query(`
		SELECT id, coordinate, remote_key, checksum, cache_path, size_bytes,
			created_at, last_used_at, use_count
		FROM artifact_cache ORDER BY last_used_at ASC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifact cache entries: %w", err)
	}
	defer rows.Close()

	var entries []ArtifactCacheEntry
	for rows.Next() {
		var e ArtifactCacheEntry
		if err := rows.Scan(
			&e.ID, &e.Coordinate, &e.RemoteKey, &e.Checksum, &e.CachePath,
			&e.SizeBytes, &e.CreatedAt, &e.LastUsedAt, &e.UseCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan artifact cache entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// TotalSize returns the sum of all cached artifact sizes in bytes
func (r *ArtifactCacheRepository) TotalSize() (int64, error) {
	var total sql.NullInt64
	err := r.db.DB().QueryRow(`SELECT SUM(size_bytes) FROM artifact_cache`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to get total cache size: %w", err)
	}
	if !total.Valid {
		return 0, nil
	}
	return total.Int64, nil
}

// Count returns the number of entries in the cache
func (r *ArtifactCacheRepository) Count() (int, error) {
	var count int
	err := r.db.DB().QueryRow(`SELECT COUNT(*) FROM artifact_cache`).Scan(&count)
	return count, err
}

// scanEntry scans a single row into an ArtifactCacheEntry
func (r *ArtifactCacheRepository) scanEntry(row *sql.Row) (*ArtifactCacheEntry, error) {
	var e ArtifactCacheEntry
	err := row.Scan(
		&e.ID, &e.Coordinate, &e.RemoteKey, &e.Checksum, &e.CachePath,
		&e.SizeBytes, &e.CreatedAt, &e.LastUsedAt, &e.UseCount,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan artifact cache entry: %w", err)
	}
	return &e, nil
}
