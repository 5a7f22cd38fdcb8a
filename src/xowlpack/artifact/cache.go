package artifact

import (
	"fmt"
	"os"

	"github.com/cenotelie/xowl-toolkit/src/xowlpack/db"
)

// CacheStats summarizes the artifact cache
type CacheStats struct {
	Entries   int   `json:"entries"`
	SizeBytes int64 `json:"size_bytes"`
}

// Cache manages the files downloaded by a RemoteRepository
type Cache struct {
	index *db.ArtifactCacheRepository
}

// NewCache creates a cache manager over the cache index
func NewCache(index *db.ArtifactCacheRepository) *Cache {
	return &Cache{index: index}
}

// Entries returns every cache entry, least recently used first
func (c *Cache) Entries() ([]db.ArtifactCacheEntry, error) {
	return c.index.ListLRU(0)
}

// Stats returns the number of entries and their total size
func (c *Cache) Stats() (CacheStats, error) {
	total, err := c.index.TotalSize()
	if err != nil {
		return CacheStats{}, err
	}
	count, err := c.index.Count()
	if err != nil {
		return CacheStats{}, err
	}
	return CacheStats{Entries: count, SizeBytes: total}, nil
}

// Prune evicts least recently used entries until the cache holds at most maxBytes.
// It returns the evicted entries.
func (c *Cache) Prune(maxBytes int64) ([]db.ArtifactCacheEntry, error) {
	if maxBytes < 0 {
		return nil, fmt.Errorf("invalid cache size limit %d", maxBytes)
	}

	total, err := c.index.TotalSize()
	if err != nil {
		return nil, fmt.Errorf("failed to get cache size: %w", err)
	}
	if total <= maxBytes {
		return nil, nil
	}

	entries, err := c.index.ListLRU(0)
	if err != nil {
		return nil, fmt.Errorf("failed to list LRU entries: %w", err)
	}

	var evicted []db.ArtifactCacheEntry
	for _, entry := range entries {
		if total <= maxBytes {
			break
		}
		if err := os.Remove(entry.CachePath); err != nil && !os.IsNotExist(err) {
			log.Warn("Failed to delete cached artifact", "cache_path", entry.CachePath, "error", err)
			continue
		}
		if err := c.index.Delete(entry.ID); err != nil {
			return evicted, fmt.Errorf("failed to delete cache entry: %w", err)
		}
		log.Info("Evicted cache entry", "coordinate", entry.Coordinate, "size", entry.SizeBytes)
		total -= entry.SizeBytes
		evicted = append(evicted, entry)
	}
	return evicted, nil
}
