package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cenotelie/xowl-toolkit/src/common/errors"
	"github.com/cenotelie/xowl-toolkit/src/common/paths"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/db"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/storage"
)

// RemoteRepository resolves artifacts from a storage backend laid out like a
// Maven repository, keeping downloaded files in a local cache directory.
// Reads of cached files are safe across concurrent builds: downloads land in a
// temporary file that is renamed into place once complete.
type RemoteRepository struct {
	backend  storage.Backend
	cacheDir string
	index    *db.ArtifactCacheRepository
}

// NewRemoteRepository creates a resolver over a storage backend.
// index may be nil, in which case the cache directory alone tracks downloads.
func NewRemoteRepository(backend storage.Backend, cacheDir string, index *db.ArtifactCacheRepository) *RemoteRepository {
	return &RemoteRepository{
		backend:  backend,
		cacheDir: paths.Expand(cacheDir),
		index:    index,
	}
}

// Resolve implements Resolver
func (r *RemoteRepository) Resolve(ctx context.Context, c Coordinate) (string, error) {
	c = c.Normalize()
	if err := c.Validate(); err != nil {
		return "", NewResolutionError(c, err)
	}

	key := c.RepositoryPath()
	localPath := filepath.Join(r.cacheDir, filepath.FromSlash(key))

	if path, ok := r.lookup(c, localPath); ok {
		log.Debug("Artifact cache hit", "artifact", c.FileName(), "path", path)
		return path, nil
	}

	checksum, size, err := r.download(ctx, key, localPath)
	if err != nil {
		return "", NewResolutionError(c, err)
	}

	if err := r.verify(ctx, key, checksum); err != nil {
		os.Remove(localPath)
		return "", NewResolutionError(c, err)
	}

	if r.index != nil {
		entry := &db.ArtifactCacheEntry{
			Coordinate: c.String(),
			RemoteKey:  key,
			Checksum:   checksum,
			CachePath:  localPath,
			SizeBytes:  size,
		}
		if err := r.index.Upsert(entry); err != nil {
			log.Warn("Failed to record cache entry", "artifact", c.FileName(), "error", err)
		}
	}

	log.Info("Artifact downloaded", "artifact", c.FileName(), "size", size, "from", r.backend.Location())
	return localPath, nil
}

// lookup returns the cached file for c when it is present
func (r *RemoteRepository) lookup(c Coordinate, localPath string) (string, bool) {
	if r.index == nil {
		if paths.Exists(localPath) {
			return localPath, true
		}
		return "", false
	}

	entry, err := r.index.GetByCoordinate(c.String())
	if err != nil {
		log.Warn("Cache lookup failed", "artifact", c.FileName(), "error", err)
		return "", false
	}
	if entry == nil {
		return "", false
	}
	if !paths.Exists(entry.CachePath) {
		log.Info("Removing stale cache entry", "artifact", c.FileName())
		if err := r.index.Delete(entry.ID); err != nil {
			log.Warn("Failed to delete stale cache entry", "id", entry.ID, "error", err)
		}
		return "", false
	}
	if err := r.index.TouchLastUsed(entry.ID); err != nil {
		log.Warn("Failed to touch cache entry", "id", entry.ID, "error", err)
	}
	return entry.CachePath, true
}

// download copies the object at key into localPath and returns its sha256 and size
func (r *RemoteRepository) download(ctx context.Context, key, localPath string) (string, int64, error) {
	reader, _, err := r.backend.Download(ctx, key)
	if err != nil {
		if errors.Is(err, errors.ErrStorageNotFound) {
			return "", 0, fmt.Errorf("not found in %s", r.backend.Location())
		}
		return "", 0, err
	}
	defer reader.Close()

	dir := filepath.Dir(localPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", 0, errors.ErrDirectoryCreation.WithMessagef("failed to create cache directory %s", dir).WithCause(err)
	}

	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	hash := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hash), reader)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", 0, fmt.Errorf("failed to download %s: %w", key, err)
	}

	if err := os.Rename(tmpPath, localPath); err != nil {
		return "", 0, fmt.Errorf("failed to move download into cache: %w", err)
	}

	return hex.EncodeToString(hash.Sum(nil)), size, nil
}

// verify compares checksum with the remote sha256 sidecar when one is published
func (r *RemoteRepository) verify(ctx context.Context, key, checksum string) error {
	reader, _, err := r.backend.Download(ctx, key+storage.ChecksumSuffix)
	if err != nil {
		if errors.Is(err, errors.ErrStorageNotFound) {
			return nil
		}
		log.Warn("Failed to fetch checksum sidecar", "key", key, "error", err)
		return nil
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, 1024))
	if err != nil {
		return fmt.Errorf("failed to read checksum for %s: %w", key, err)
	}
	expected := storage.ParseChecksumLine(string(data))
	if expected == "" {
		return nil
	}
	if !strings.EqualFold(expected, checksum) {
		return fmt.Errorf("checksum mismatch for %s: expected %s, got %s", key, expected, checksum)
	}
	return nil
}
