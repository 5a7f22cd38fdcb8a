// Package archive writes zip and tar+gzip packages and extracts base
// distribution archives.
package archive

import (
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/cenotelie/xowl-toolkit/src/common/errors"
	"github.com/cenotelie/xowl-toolkit/src/common/logs"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the archive package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

const (
	// ExecutableMode is the mode stored for files carrying any execute bit
	ExecutableMode = 0755
	// RegularMode is the mode stored for every other file
	RegularMode = 0644
	// DirectoryMode is the mode stored for directories
	DirectoryMode = 0755

	// bufferSize is the copy buffer used when streaming entries
	bufferSize = 8192
)

// EntryTime is the modification time stored for every entry, so that packages
// built from the same inputs are byte-identical
var EntryTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// Entry pairs an archive entry name with the local file providing its content
type Entry struct {
	Name   string
	Source string
}

// EntryName normalizes a name into a forward-slash path relative to the archive root.
// It rejects names that are empty or escape the root.
func EntryName(name string) (string, error) {
	clean := path.Clean(strings.ReplaceAll(name, "\\", "/"))
	clean = strings.TrimLeft(clean, "/")
	if clean == "" || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("invalid archive entry name %q", name)
	}
	return clean, nil
}

// openSource opens a file to be archived, reporting a vanished file as ErrFileNotFound
func openSource(source string) (*os.File, os.FileInfo, error) {
	f, err := os.Open(source)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errors.ErrFileNotFound.WithMessagef("file not found: %s", source)
		}
		return nil, nil, errors.ErrRead.WithMessagef("failed to open %s", source).WithCause(err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, errors.ErrRead.WithMessagef("failed to stat %s", source).WithCause(err)
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, errors.ErrRead.WithMessagef("%s is a directory", source)
	}
	return f, info, nil
}

// copyBuffered streams src into dst until src is exhausted
func copyBuffered(dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, bufferSize)
	return io.CopyBuffer(dst, src, buf)
}

// fileMode returns the mode stored for a file with the given permissions
func fileMode(perm os.FileMode) int64 {
	if perm&0111 != 0 {
		return ExecutableMode
	}
	return RegularMode
}
