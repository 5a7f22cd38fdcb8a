package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cenotelie/xowl-toolkit/src/common/errors"
	"github.com/cenotelie/xowl-toolkit/src/common/paths"
)

// LocalConfig holds the local filesystem storage configuration
type LocalConfig struct {
	// BasePath is the root directory for storing objects
	BasePath string
}

// LocalBackend implements storage on the local filesystem
type LocalBackend struct {
	basePath string
}

// NewLocal creates a new local filesystem storage backend
func NewLocal(cfg LocalConfig) (*LocalBackend, error) {
	basePath := paths.Expand(cfg.BasePath)

	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, errors.ErrDirectoryCreation.
			WithMessagef("failed to create storage directory %s", basePath).
			WithCause(err)
	}

	return &LocalBackend{
		basePath: basePath,
	}, nil
}

// fullPath returns the full filesystem path for a key
func (b *LocalBackend) fullPath(key string) string {
	cleanKey := filepath.Clean(filepath.FromSlash(key))

	// Strip leading separators and parent references so keys stay under basePath
	for strings.HasPrefix(cleanKey, string(os.PathSeparator)) || strings.HasPrefix(cleanKey, ".."+string(os.PathSeparator)) {
		cleanKey = strings.TrimPrefix(cleanKey, string(os.PathSeparator))
		cleanKey = strings.TrimPrefix(cleanKey, ".."+string(os.PathSeparator))
	}

	fullPath := filepath.Join(b.basePath, cleanKey)

	absBase, _ := filepath.Abs(b.basePath)
	absFull, _ := filepath.Abs(fullPath)
	if absFull != absBase && !strings.HasPrefix(absFull, absBase+string(os.PathSeparator)) {
		return filepath.Join(b.basePath, filepath.Base(cleanKey))
	}

	return fullPath
}

// Upload writes data to the local filesystem through a temporary file
func (b *LocalBackend) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	fullPath := b.fullPath(key)

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	written, err := io.Copy(tmp, reader)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write file %s: %w", fullPath, err)
	}

	if size > 0 && written != size {
		os.Remove(tmpPath)
		return fmt.Errorf("size mismatch: expected %d bytes, wrote %d bytes", size, written)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move file into place %s: %w", fullPath, err)
	}

	return nil
}

// Download opens a file from the local filesystem
func (b *LocalBackend) Download(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	fullPath := b.fullPath(key)

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errors.ErrStorageNotFound.WithMessagef("object not found: %s", key)
		}
		return nil, nil, fmt.Errorf("failed to open file %s: %w", fullPath, err)
	}

	info, err := b.GetInfo(ctx, key)
	if err != nil {
		file.Close()
		return nil, nil, err
	}

	return file, info, nil
}

// Delete deletes a file from the local filesystem
func (b *LocalBackend) Delete(ctx context.Context, key string) error {
	fullPath := b.fullPath(key)

	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete file %s: %w", fullPath, err)
	}

	b.cleanEmptyDirs(filepath.Dir(fullPath))

	return nil
}

// cleanEmptyDirs removes empty parent directories up to basePath
func (b *LocalBackend) cleanEmptyDirs(dir string) {
	for dir != b.basePath && strings.HasPrefix(dir, b.basePath) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			break
		}
		os.Remove(dir)
		dir = filepath.Dir(dir)
	}
}

// Exists checks if a file exists
func (b *LocalBackend) Exists(ctx context.Context, key string) (bool, error) {
	fullPath := b.fullPath(key)
	_, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat file %s: %w", fullPath, err)
	}
	return true, nil
}

// GetInfo retrieves metadata for a file
func (b *LocalBackend) GetInfo(ctx context.Context, key string) (*ObjectInfo, error) {
	fullPath := b.fullPath(key)

	stat, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ErrStorageNotFound.WithMessagef("object not found: %s", key)
		}
		return nil, fmt.Errorf("failed to stat file %s: %w", fullPath, err)
	}

	return &ObjectInfo{
		Key:          key,
		Size:         stat.Size(),
		ContentType:  ContentType(key),
		ETag:         b.generateETag(stat),
		LastModified: stat.ModTime(),
	}, nil
}

// generateETag generates an ETag from file stats
func (b *LocalBackend) generateETag(stat os.FileInfo) string {
	data := fmt.Sprintf("%s-%d-%d", stat.Name(), stat.Size(), stat.ModTime().UnixNano())
	hash := md5.Sum([]byte(data))
	return fmt.Sprintf("\"%s\"", hex.EncodeToString(hash[:]))
}

// List lists files whose slash-separated key starts with prefix
func (b *LocalBackend) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	prefix = strings.TrimPrefix(prefix, "/")

	err := filepath.Walk(b.basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() || strings.HasPrefix(info.Name(), ".upload-") {
			return nil
		}

		relPath, err := filepath.Rel(b.basePath, path)
		if err != nil {
			return nil
		}
		key := filepath.ToSlash(relPath)

		if prefix != "" && !strings.HasPrefix(key, prefix) {
			return nil
		}

		objects = append(objects, ObjectInfo{
			Key:          key,
			Size:         info.Size(),
			ContentType:  ContentType(key),
			ETag:         b.generateETag(info),
			LastModified: info.ModTime(),
		})

		return nil
	})

	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to list files in %s: %w", b.basePath, err)
	}

	return objects, nil
}

// Ping checks if the storage directory is accessible
func (b *LocalBackend) Ping(ctx context.Context) error {
	if _, err := os.Stat(b.basePath); err != nil {
		return errors.ErrStorageUnavailable.WithCause(err)
	}
	return nil
}

// Type returns the storage backend type
func (b *LocalBackend) Type() string {
	return "local"
}

// Location returns the base path
func (b *LocalBackend) Location() string {
	return b.basePath
}

var _ Backend = (*LocalBackend)(nil)
