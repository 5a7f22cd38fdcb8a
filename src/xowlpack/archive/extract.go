package archive

import (
	"archive/tar"
	"compress/bzip2"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cenotelie/xowl-toolkit/src/common/errors"
	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

// IsSupported reports whether Extract can read the archive at path
func IsSupported(path string) bool {
	_, ok := compressionOf(path)
	return ok
}

type compression int

const (
	compressionNone compression = iota
	compressionGzip
	compressionBzip2
	compressionXz
)

func compressionOf(path string) (compression, bool) {
	switch {
	case strings.HasSuffix(path, ".tar.gz") || strings.HasSuffix(path, ".tgz"):
		return compressionGzip, true
	case strings.HasSuffix(path, ".tar.bz2") || strings.HasSuffix(path, ".tbz2"):
		return compressionBzip2, true
	case strings.HasSuffix(path, ".tar.xz") || strings.HasSuffix(path, ".txz"):
		return compressionXz, true
	case strings.HasSuffix(path, ".tar"):
		return compressionNone, true
	default:
		return compressionNone, false
	}
}

// extractionError wraps a cause into ErrExtraction naming the archive
func extractionError(archivePath string, cause error) error {
	return errors.ErrExtraction.WithMessagef("failed to extract %s", archivePath).WithCause(cause)
}

// Extract unpacks a tar archive (plain, gzip, bzip2 or xz compressed) into targetDir
// and returns the number of entries written. An archive without any entry is an
// ErrExtraction, as is any entry that would land outside targetDir.
func Extract(ctx context.Context, archivePath, targetDir string) (int, error) {
	kind, ok := compressionOf(archivePath)
	if !ok {
		return 0, errors.ErrUnsupportedArchive.WithMessagef("unsupported archive format: %s", archivePath)
	}

	file, err := os.Open(archivePath)
	if err != nil {
		return 0, extractionError(archivePath, err)
	}
	defer file.Close()

	var reader io.Reader = file
	switch kind {
	case compressionGzip:
		gzReader, err := gzip.NewReader(file)
		if err != nil {
			return 0, extractionError(archivePath, fmt.Errorf("failed to create gzip reader: %w", err))
		}
		defer gzReader.Close()
		reader = gzReader
	case compressionBzip2:
		reader = bzip2.NewReader(file)
	case compressionXz:
		xzReader, err := xz.NewReader(file)
		if err != nil {
			return 0, extractionError(archivePath, fmt.Errorf("failed to create xz reader: %w", err))
		}
		reader = xzReader
	}

	if err := os.MkdirAll(targetDir, DirectoryMode); err != nil {
		return 0, extractionError(archivePath, fmt.Errorf("failed to create directory %s: %w", targetDir, err))
	}
	absTarget, err := filepath.Abs(targetDir)
	if err != nil {
		return 0, extractionError(archivePath, err)
	}

	tarReader := tar.NewReader(reader)
	buf := make([]byte, bufferSize)
	count := 0

	for {
		select {
		case <-ctx.Done():
			return count, ctx.Err()
		default:
		}

		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, extractionError(archivePath, fmt.Errorf("failed to read tar header: %w", err))
		}

		target, err := safeJoin(absTarget, header.Name)
		if err != nil {
			return count, extractionError(archivePath, err)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, DirectoryMode); err != nil {
				return count, extractionError(archivePath, fmt.Errorf("failed to create directory: %w", err))
			}

		case tar.TypeReg:
			if err := writeEntry(target, header, tarReader, buf); err != nil {
				return count, extractionError(archivePath, err)
			}

		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), DirectoryMode); err != nil {
				return count, extractionError(archivePath, fmt.Errorf("failed to create parent directory: %w", err))
			}
			linkTarget := header.Linkname
			if !filepath.IsAbs(linkTarget) {
				linkTarget = filepath.Join(filepath.Dir(target), linkTarget)
			}
			if !within(absTarget, linkTarget) {
				return count, extractionError(archivePath, fmt.Errorf("symlink %s escapes the target directory", header.Name))
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return count, extractionError(archivePath, fmt.Errorf("failed to create symlink: %w", err))
			}

		case tar.TypeLink:
			linkTarget, err := safeJoin(absTarget, header.Linkname)
			if err != nil {
				return count, extractionError(archivePath, err)
			}
			if err := os.MkdirAll(filepath.Dir(target), DirectoryMode); err != nil {
				return count, extractionError(archivePath, fmt.Errorf("failed to create parent directory: %w", err))
			}
			if err := os.Link(linkTarget, target); err != nil {
				return count, extractionError(archivePath, fmt.Errorf("failed to create hard link: %w", err))
			}

		default:
			log.Debug("Skipping tar entry", "archive", archivePath, "entry", header.Name, "type", header.Typeflag)
			continue
		}
		count++
	}

	if count == 0 {
		return 0, errors.ErrExtraction.WithMessagef("archive %s contains no entries", archivePath)
	}

	log.Debug("Extracted archive", "archive", archivePath, "entries", count, "target", targetDir)
	return count, nil
}

// writeEntry streams a regular file entry to target
func writeEntry(target string, header *tar.Header, r io.Reader, buf []byte) error {
	if err := os.MkdirAll(filepath.Dir(target), DirectoryMode); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	var mode os.FileMode = RegularMode
	if header.Mode&0777 == ExecutableMode {
		mode = ExecutableMode
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer out.Close()

	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				return fmt.Errorf("failed to write %s: %w", target, err)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("failed to read entry %s: %w", header.Name, readErr)
		}
	}

	// The umask may have stripped bits at creation time
	if err := out.Chmod(mode); err != nil {
		return fmt.Errorf("failed to set mode of %s: %w", target, err)
	}
	return out.Close()
}

// safeJoin resolves name under base, rejecting absolute names and names escaping base
func safeJoin(base, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid tar path: %s", name)
	}
	target := filepath.Join(base, clean)
	if !within(base, target) {
		return "", fmt.Errorf("invalid tar path: %s", name)
	}
	return target, nil
}

func within(base, target string) bool {
	target = filepath.Clean(target)
	return target == base || strings.HasPrefix(target, base+string(os.PathSeparator))
}

// SingleRoot returns the path of the only entry at the top of dir, which an
// extracted distribution is expected to produce
func SingleRoot(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", errors.ErrExtraction.WithMessagef("failed to list %s", dir).WithCause(err)
	}
	if len(entries) != 1 {
		return "", errors.ErrExtraction.WithMessagef("expected a single top-level entry in %s, found %d", dir, len(entries))
	}
	return filepath.Join(dir, entries[0].Name()), nil
}
