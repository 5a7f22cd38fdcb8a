// Package storage provides storage backends for published packages and remote artifact repositories.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Backend defines the interface for storage backends
type Backend interface {
	// Upload uploads data to storage
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download downloads an object from storage.
	// A missing object yields an error matching errors.ErrStorageNotFound.
	Download(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error)

	// Delete deletes an object from storage
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)

	// GetInfo retrieves metadata for an object
	GetInfo(ctx context.Context, key string) (*ObjectInfo, error)

	// List lists objects with the given prefix
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Ping checks if the storage is accessible
	Ping(ctx context.Context) error

	// Type returns the storage backend type
	Type() string

	// Location returns a human-readable location description
	Location() string
}

// ObjectInfo holds metadata about a storage object
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type,omitempty"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Config holds the storage configuration
type Config struct {
	// Type is the storage backend type: "s3" or "local"
	Type string

	// Local storage configuration
	Local LocalConfig

	// S3 storage configuration
	S3 S3Config
}

// DefaultConfig returns a default storage configuration (local filesystem)
func DefaultConfig() Config {
	return Config{
		Type: "local",
		Local: LocalConfig{
			BasePath: "~/.xowlpack/published",
		},
	}
}

// New creates a new storage backend based on configuration
func New(cfg Config) (Backend, error) {
	switch cfg.Type {
	case "s3":
		return NewS3(cfg.S3)
	case "local", "":
		return NewLocal(cfg.Local)
	default:
		return nil, fmt.Errorf("unknown storage type %q (expected local or s3)", cfg.Type)
	}
}

// ContentType returns the content type used when uploading a file with the given name
func ContentType(name string) string {
	switch {
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return "application/gzip"
	case strings.HasSuffix(name, ".zip"):
		return "application/zip"
	case strings.HasSuffix(name, ".jar"):
		return "application/java-archive"
	case strings.HasSuffix(name, ".json"), strings.HasSuffix(name, ".descriptor"), strings.HasSuffix(name, ".product"):
		return "application/json"
	case strings.HasSuffix(name, ".sha256"), strings.HasSuffix(name, ".txt"):
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}

// ChecksumSuffix is appended to the key of an object to name its sha256 sidecar
const ChecksumSuffix = ".sha256"

// FileChecksum returns the hex sha256 and the size of a local file
func FileChecksum(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("failed to hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// ChecksumLine formats a sidecar in the sha256sum format
func ChecksumLine(checksum, name string) string {
	return fmt.Sprintf("%s  %s\n", checksum, name)
}

// ParseChecksumLine extracts the checksum from a sidecar in the sha256sum format
func ParseChecksumLine(content string) string {
	fields := strings.Fields(content)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}
