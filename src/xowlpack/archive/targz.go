package archive

import (
	"archive/tar"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cenotelie/xowl-toolkit/src/common/errors"
	"github.com/klauspost/compress/gzip"
)

// TarGzWriter appends files and directories to a tar+gzip package
type TarGzWriter struct {
	path   string
	file   *os.File
	gz     *gzip.Writer
	tw     *tar.Writer
	names  map[string]struct{}
	closed bool
}

// CreateTarGz creates a tar+gzip package at path
func CreateTarGz(path string) (*TarGzWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.ErrIO.WithMessagef("failed to create %s", path).WithCause(err)
	}

	gz, err := gzip.NewWriterLevel(f, gzip.BestCompression)
	if err != nil {
		f.Close()
		return nil, errors.ErrIO.WithMessagef("failed to create gzip stream for %s", path).WithCause(err)
	}

	return &TarGzWriter{
		path:  path,
		file:  f,
		gz:    gz,
		tw:    tar.NewWriter(gz),
		names: make(map[string]struct{}),
	}, nil
}

// Path returns the path of the package being written
func (w *TarGzWriter) Path() string {
	return w.path
}

// reserve records name, rejecting duplicates
func (w *TarGzWriter) reserve(name string) error {
	if _, ok := w.names[name]; ok {
		return errors.ErrDuplicateEntry.WithMessagef("duplicate entry %s in %s", name, w.path)
	}
	w.names[name] = struct{}{}
	return nil
}

// AddDir writes an explicit directory entry
func (w *TarGzWriter) AddDir(name string) error {
	entryName, err := EntryName(name)
	if err != nil {
		return errors.ErrIO.WithMessagef("cannot add directory to %s", w.path).WithCause(err)
	}
	entryName += "/"
	if err := w.reserve(entryName); err != nil {
		return err
	}

	header := &tar.Header{
		Typeflag: tar.TypeDir,
		Name:     entryName,
		Mode:     DirectoryMode,
		ModTime:  EntryTime,
		Format:   tar.FormatPAX,
	}
	if err := w.tw.WriteHeader(header); err != nil {
		return errors.ErrIO.WithMessagef("failed to write directory %s to %s", entryName, w.path).WithCause(err)
	}
	return nil
}

// AddFile streams source into a new entry called name. Files carrying any
// execute bit are stored with ExecutableMode, others with RegularMode.
func (w *TarGzWriter) AddFile(source, name string) error {
	entryName, err := EntryName(name)
	if err != nil {
		return errors.ErrIO.WithMessagef("cannot add %s to %s", source, w.path).WithCause(err)
	}
	if _, ok := w.names[entryName]; ok {
		return errors.ErrDuplicateEntry.WithMessagef("duplicate entry %s in %s", entryName, w.path)
	}

	src, info, err := openSource(source)
	if err != nil {
		return err
	}
	defer src.Close()

	header := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     entryName,
		Mode:     fileMode(info.Mode().Perm()),
		Size:     info.Size(),
		ModTime:  EntryTime,
		Format:   tar.FormatPAX,
	}
	if err := w.tw.WriteHeader(header); err != nil {
		return errors.ErrIO.WithMessagef("failed to write entry %s to %s", entryName, w.path).WithCause(err)
	}
	n, err := copyBuffered(w.tw, src)
	if err != nil {
		return errors.ErrIO.WithMessagef("failed to write entry %s to %s", entryName, w.path).WithCause(err)
	}
	if n != info.Size() {
		return errors.ErrIO.WithMessagef("file %s changed while being archived (%d of %d bytes)", source, n, info.Size())
	}

	w.names[entryName] = struct{}{}
	return nil
}

// AddSymlink writes the symbolic link source as an entry called name,
// keeping its target as is
func (w *TarGzWriter) AddSymlink(source, name string) error {
	entryName, err := EntryName(name)
	if err != nil {
		return errors.ErrIO.WithMessagef("cannot add %s to %s", source, w.path).WithCause(err)
	}
	linkTarget, err := os.Readlink(source)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.ErrFileNotFound.WithMessagef("file not found: %s", source)
		}
		return errors.ErrRead.WithMessagef("failed to read link %s", source).WithCause(err)
	}
	if err := w.reserve(entryName); err != nil {
		return err
	}

	header := &tar.Header{
		Typeflag: tar.TypeSymlink,
		Name:     entryName,
		Linkname: filepath.ToSlash(linkTarget),
		Mode:     0777,
		ModTime:  EntryTime,
		Format:   tar.FormatPAX,
	}
	if err := w.tw.WriteHeader(header); err != nil {
		return errors.ErrIO.WithMessagef("failed to write link %s to %s", entryName, w.path).WithCause(err)
	}
	return nil
}

// AddTree writes dir recursively under the entry prefix root. Directories are
// written before their children and siblings are visited in lexical order.
// An empty root places the tree content at the archive root.
func (w *TarGzWriter) AddTree(dir, root string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.ErrFileNotFound.WithMessagef("directory not found: %s", dir)
		}
		return errors.ErrRead.WithMessagef("failed to stat %s", dir).WithCause(err)
	}
	if !info.IsDir() {
		return errors.ErrRead.WithMessagef("%s is not a directory", dir)
	}

	root = strings.Trim(filepath.ToSlash(root), "/")
	if root != "" {
		if err := w.AddDir(root); err != nil {
			return err
		}
	}
	return w.addChildren(dir, root)
}

func (w *TarGzWriter) addChildren(dir, prefix string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.ErrRead.WithMessagef("failed to list %s", dir).WithCause(err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		source := filepath.Join(dir, entry.Name())
		name := entry.Name()
		if prefix != "" {
			name = prefix + "/" + name
		}

		if entry.IsDir() {
			if err := w.AddDir(name); err != nil {
				return err
			}
			if err := w.addChildren(source, name); err != nil {
				return err
			}
			continue
		}
		if entry.Type()&os.ModeSymlink != 0 {
			if err := w.AddSymlink(source, name); err != nil {
				return err
			}
			continue
		}
		if !entry.Type().IsRegular() {
			log.Warn("Skipping non-regular file", "path", source)
			continue
		}
		if err := w.AddFile(source, name); err != nil {
			return err
		}
	}
	return nil
}

// Close finishes the package and releases the file handle. It is safe to call twice.
func (w *TarGzWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	err := w.tw.Close()
	if gerr := w.gz.Close(); err == nil {
		err = gerr
	}
	if ferr := w.file.Close(); err == nil {
		err = ferr
	}
	if err != nil {
		return errors.ErrIO.WithMessagef("failed to finish %s", w.path).WithCause(err)
	}
	return nil
}
