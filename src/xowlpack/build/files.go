package build

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cenotelie/xowl-toolkit/src/common/errors"
)

// copyFile copies source over target, keeping the permission bits of source
func copyFile(source, target string) error {
	in, err := os.Open(source)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.ErrFileNotFound.WithMessagef("file not found: %s", source)
		}
		return errors.ErrRead.WithMessagef("failed to open %s", source).WithCause(err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return errors.ErrRead.WithMessagef("failed to stat %s", source).WithCause(err)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return errors.ErrDirectoryCreation.WithMessagef("failed to create %s", filepath.Dir(target)).WithCause(err)
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return errors.ErrIO.WithMessagef("failed to create %s", target).WithCause(err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return errors.ErrIO.WithMessagef("failed to copy %s to %s", source, target).WithCause(err)
	}
	if err := out.Chmod(info.Mode().Perm()); err != nil {
		return errors.ErrIO.WithMessagef("failed to set mode of %s", target).WithCause(err)
	}
	if err := out.Close(); err != nil {
		return errors.ErrIO.WithMessagef("failed to write %s", target).WithCause(err)
	}
	return nil
}

// copyTree copies source, a file or a directory, to target, depth first,
// overwriting existing files
func copyTree(source, target string) error {
	info, err := os.Stat(source)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.ErrFileNotFound.WithMessagef("file not found: %s", source)
		}
		return errors.ErrRead.WithMessagef("failed to stat %s", source).WithCause(err)
	}
	if !info.IsDir() {
		return copyFile(source, target)
	}

	return filepath.WalkDir(source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.ErrRead.WithMessagef("failed to walk %s", path).WithCause(err)
		}
		rel, err := filepath.Rel(source, path)
		if err != nil {
			return errors.ErrInternal.WithCause(err)
		}
		dest := filepath.Join(target, rel)
		switch {
		case d.IsDir():
			if err := os.MkdirAll(dest, 0755); err != nil {
				return errors.ErrDirectoryCreation.WithMessagef("failed to create %s", dest).WithCause(err)
			}
			return nil
		case d.Type().IsRegular():
			return copyFile(path, dest)
		default:
			log.Warn("Skipping non-regular file", "path", path)
			return nil
		}
	})
}
