package archive

import (
	"io"
	"os"

	"github.com/cenotelie/xowl-toolkit/src/common/errors"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// DefaultCompressionLevel is the DEFLATE level used for release packages
const DefaultCompressionLevel = 9

// ZipWriter appends files to a zip package
type ZipWriter struct {
	path   string
	file   *os.File
	zw     *zip.Writer
	names  map[string]struct{}
	closed bool
}

// CreateZip creates a zip package at path. Entries are DEFLATE compressed at level
// (0 to 9); any other value selects DefaultCompressionLevel.
func CreateZip(path string, level int) (*ZipWriter, error) {
	if level < flate.NoCompression || level > flate.BestCompression {
		level = DefaultCompressionLevel
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, errors.ErrIO.WithMessagef("failed to create %s", path).WithCause(err)
	}

	zw := zip.NewWriter(f)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})

	return &ZipWriter{
		path:  path,
		file:  f,
		zw:    zw,
		names: make(map[string]struct{}),
	}, nil
}

// Path returns the path of the package being written
func (w *ZipWriter) Path() string {
	return w.path
}

// AddFile streams source into a new entry called name
func (w *ZipWriter) AddFile(source, name string) error {
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

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return errors.ErrIO.WithMessagef("failed to create header for %s", source).WithCause(err)
	}
	header.Name = entryName
	header.Modified = EntryTime
	header.Method = zip.Deflate
	header.SetMode(os.FileMode(fileMode(info.Mode().Perm())))

	dst, err := w.zw.CreateHeader(header)
	if err != nil {
		return errors.ErrIO.WithMessagef("failed to write entry %s to %s", entryName, w.path).WithCause(err)
	}
	if _, err := copyBuffered(dst, src); err != nil {
		return errors.ErrIO.WithMessagef("failed to write entry %s to %s", entryName, w.path).WithCause(err)
	}

	w.names[entryName] = struct{}{}
	log.Debug("Added zip entry", "archive", w.path, "entry", entryName)
	return nil
}

// AddEntries adds every entry in order
func (w *ZipWriter) AddEntries(entries []Entry) error {
	for _, e := range entries {
		if err := w.AddFile(e.Source, e.Name); err != nil {
			return err
		}
	}
	return nil
}

// Close finishes the package and releases the file handle. It is safe to call twice.
func (w *ZipWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	err := w.zw.Close()
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.ErrIO.WithMessagef("failed to finish %s", w.path).WithCause(err)
	}
	return nil
}
