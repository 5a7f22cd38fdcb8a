package archive_test

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	stdzip "archive/zip"

	"github.com/cenotelie/xowl-toolkit/src/common/errors"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/archive"
)

func writeFile(t *testing.T, path, content string, mode os.FileMode) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if err := os.Chmod(path, mode); err != nil {
		t.Fatalf("failed to chmod: %v", err)
	}
}

// =============================================================================
// Entry Name Tests
// =============================================================================

func TestEntryName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{"descriptor.json", "descriptor.json", false},
		{"/felix/bundle/a.jar", "felix/bundle/a.jar", false},
		{"felix\\bin\\run.sh", "felix/bin/run.sh", false},
		{"./a/../b.txt", "b.txt", false},
		{"", "", true},
		{"../escape", "", true},
		{"/", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := archive.EntryName(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got %q", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Fatalf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

// =============================================================================
// Zip Writer Tests
// =============================================================================

func TestZipWriter_AddFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "descriptor.json"), "{}\n", 0644)
	writeFile(t, filepath.Join(dir, "cache", "tool-1.0.jar"), strings.Repeat("jar", 1000), 0644)

	zipPath := filepath.Join(dir, "addon-1.0.zip")
	zw, err := archive.CreateZip(zipPath, archive.DefaultCompressionLevel)
	if err != nil {
		t.Fatalf("failed to create zip: %v", err)
	}
	if err := zw.AddFile(filepath.Join(dir, "descriptor.json"), "descriptor.json"); err != nil {
		t.Fatalf("failed to add descriptor: %v", err)
	}
	if err := zw.AddFile(filepath.Join(dir, "cache", "tool-1.0.jar"), "org.acme.tool-1.0.jar"); err != nil {
		t.Fatalf("failed to add bundle: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("second close should be a no-op: %v", err)
	}

	zr, err := stdzip.OpenReader(zipPath)
	if err != nil {
		t.Fatalf("failed to open zip: %v", err)
	}
	defer zr.Close()

	if len(zr.File) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(zr.File))
	}
	if zr.File[0].Name != "descriptor.json" || zr.File[1].Name != "org.acme.tool-1.0.jar" {
		t.Fatalf("unexpected entries %s, %s", zr.File[0].Name, zr.File[1].Name)
	}
	for _, f := range zr.File {
		if f.Method != stdzip.Deflate {
			t.Fatalf("expected DEFLATE for %s, got %d", f.Name, f.Method)
		}
	}

	rc, err := zr.File[1].Open()
	if err != nil {
		t.Fatalf("failed to open entry: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != strings.Repeat("jar", 1000) {
		t.Fatal("entry content mismatch")
	}
}

func TestZipWriter_DuplicateEntry(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.jar"), "a", 0644)

	zw, err := archive.CreateZip(filepath.Join(dir, "out.zip"), 9)
	if err != nil {
		t.Fatalf("failed to create zip: %v", err)
	}
	defer zw.Close()

	if err := zw.AddFile(filepath.Join(dir, "a.jar"), "bundle.jar"); err != nil {
		t.Fatalf("failed to add file: %v", err)
	}
	err = zw.AddFile(filepath.Join(dir, "a.jar"), "/bundle.jar")
	if !errors.Is(err, errors.ErrDuplicateEntry) {
		t.Fatalf("expected ErrDuplicateEntry, got %v", err)
	}
}

func TestZipWriter_MissingSource(t *testing.T) {
	dir := t.TempDir()

	zw, err := archive.CreateZip(filepath.Join(dir, "out.zip"), 9)
	if err != nil {
		t.Fatalf("failed to create zip: %v", err)
	}
	defer zw.Close()

	missing := filepath.Join(dir, "vanished.jar")
	err = zw.AddFile(missing, "vanished.jar")
	if !errors.Is(err, errors.ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), missing) {
		t.Fatalf("expected error to name the file, got %s", err.Error())
	}
}

func TestCreateZip_InvalidTarget(t *testing.T) {
	_, err := archive.CreateZip(filepath.Join(t.TempDir(), "missing", "out.zip"), 9)
	if !errors.Is(err, errors.ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
}

// =============================================================================
// Tar+gzip Writer Tests
// =============================================================================

func readTarHeaders(t *testing.T, path string) []*tar.Header {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("failed to open gzip stream: %v", err)
	}
	defer gz.Close()

	var headers []*tar.Header
	tr := tar.NewReader(gz)
	for {
		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("failed to read header: %v", err)
		}
		headers = append(headers, h)
	}
	return headers
}

func TestTarGzWriter_AddTree_PreOrder(t *testing.T) {
	dir := t.TempDir()
	tree := filepath.Join(dir, "distribution")
	writeFile(t, filepath.Join(tree, "felix", "bin", "start.sh"), "#!/bin/sh\n", 0755)
	writeFile(t, filepath.Join(tree, "felix", "bundle", "a.jar"), "a", 0644)
	writeFile(t, filepath.Join(tree, "descriptor.json"), "{}", 0644)

	out := filepath.Join(dir, "platform-1.0.tar.gz")
	tw, err := archive.CreateTarGz(out)
	if err != nil {
		t.Fatalf("failed to create archive: %v", err)
	}
	if err := tw.AddTree(tree, "platform"); err != nil {
		t.Fatalf("failed to add tree: %v", err)
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}

	var names []string
	modes := map[string]int64{}
	for _, h := range readTarHeaders(t, out) {
		names = append(names, h.Name)
		modes[h.Name] = h.Mode
	}

	expected := []string{
		"platform/",
		"platform/descriptor.json",
		"platform/felix/",
		"platform/felix/bin/",
		"platform/felix/bin/start.sh",
		"platform/felix/bundle/",
		"platform/felix/bundle/a.jar",
	}
	if strings.Join(names, ",") != strings.Join(expected, ",") {
		t.Fatalf("expected %v, got %v", expected, names)
	}
	if modes["platform/felix/bin/start.sh"] != archive.ExecutableMode {
		t.Fatalf("expected executable mode, got %o", modes["platform/felix/bin/start.sh"])
	}
	if modes["platform/descriptor.json"] != archive.RegularMode {
		t.Fatalf("expected regular mode, got %o", modes["platform/descriptor.json"])
	}
	if modes["platform/felix/"] != archive.DirectoryMode {
		t.Fatalf("expected directory mode, got %o", modes["platform/felix/"])
	}
}

func TestTarGzWriter_LongNames(t *testing.T) {
	dir := t.TempDir()
	long := strings.Repeat("segment-", 20) + "file.txt"
	writeFile(t, filepath.Join(dir, "src.txt"), "content", 0644)

	out := filepath.Join(dir, "long.tar.gz")
	tw, err := archive.CreateTarGz(out)
	if err != nil {
		t.Fatalf("failed to create archive: %v", err)
	}
	if err := tw.AddFile(filepath.Join(dir, "src.txt"), "root/"+long); err != nil {
		t.Fatalf("failed to add file: %v", err)
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}

	headers := readTarHeaders(t, out)
	if len(headers) != 1 || headers[0].Name != "root/"+long {
		t.Fatalf("expected long name to survive, got %v", headers)
	}
}

func TestTarGzWriter_MissingSource(t *testing.T) {
	dir := t.TempDir()

	tw, err := archive.CreateTarGz(filepath.Join(dir, "out.tar.gz"))
	if err != nil {
		t.Fatalf("failed to create archive: %v", err)
	}
	defer tw.Close()

	if err := tw.AddFile(filepath.Join(dir, "gone"), "gone"); !errors.Is(err, errors.ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
	if err := tw.AddTree(filepath.Join(dir, "gone-dir"), "root"); !errors.Is(err, errors.ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
}

func TestTarGzWriter_Symlinks(t *testing.T) {
	dir := t.TempDir()
	tree := filepath.Join(dir, "distribution")
	writeFile(t, filepath.Join(tree, "lib", "v1", "core.jar"), "core", 0644)
	if err := os.Symlink("v1", filepath.Join(tree, "lib", "current")); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}

	out := filepath.Join(dir, "platform.tar.gz")
	tw, err := archive.CreateTarGz(out)
	if err != nil {
		t.Fatalf("failed to create archive: %v", err)
	}
	if err := tw.AddTree(tree, "platform"); err != nil {
		t.Fatalf("failed to add tree: %v", err)
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}

	var link *tar.Header
	for _, h := range readTarHeaders(t, out) {
		if h.Name == "platform/lib/current" {
			link = h
		}
	}
	if link == nil {
		t.Fatal("expected platform/lib/current in the archive")
	}
	if link.Typeflag != tar.TypeSymlink || link.Linkname != "v1" {
		t.Fatalf("expected symlink to v1, got type %c target %q", link.Typeflag, link.Linkname)
	}

	target := filepath.Join(dir, "extracted")
	if _, err := archive.Extract(context.Background(), out, target); err != nil {
		t.Fatalf("failed to extract: %v", err)
	}
	got, err := os.Readlink(filepath.Join(target, "platform", "lib", "current"))
	if err != nil {
		t.Fatalf("expected symlink after extraction: %v", err)
	}
	if got != "v1" {
		t.Fatalf("expected link target v1, got %s", got)
	}
}

// =============================================================================
// Reproducibility Tests
// =============================================================================

func TestPackages_Reproducible(t *testing.T) {
	dir := t.TempDir()
	tree := filepath.Join(dir, "tree")
	writeFile(t, filepath.Join(tree, "bin", "run.sh"), "#!/bin/sh\n", 0755)
	writeFile(t, filepath.Join(tree, "bundle.jar"), "bundle", 0644)

	build := func(name string) ([]byte, []byte) {
		t.Helper()

		zipPath := filepath.Join(dir, name+".zip")
		zw, err := archive.CreateZip(zipPath, archive.DefaultCompressionLevel)
		if err != nil {
			t.Fatalf("failed to create zip: %v", err)
		}
		if err := zw.AddFile(filepath.Join(tree, "bundle.jar"), "bundle.jar"); err != nil {
			t.Fatalf("failed to add file: %v", err)
		}
		if err := zw.Close(); err != nil {
			t.Fatalf("failed to close zip: %v", err)
		}

		tarPath := filepath.Join(dir, name+".tar.gz")
		tw, err := archive.CreateTarGz(tarPath)
		if err != nil {
			t.Fatalf("failed to create archive: %v", err)
		}
		if err := tw.AddTree(tree, "root"); err != nil {
			t.Fatalf("failed to add tree: %v", err)
		}
		if err := tw.Close(); err != nil {
			t.Fatalf("failed to close archive: %v", err)
		}

		zipData, _ := os.ReadFile(zipPath)
		tarData, _ := os.ReadFile(tarPath)
		return zipData, tarData
	}

	firstZip, firstTar := build("first")

	later := time.Now().Add(48 * time.Hour)
	for _, p := range []string{filepath.Join(tree, "bin", "run.sh"), filepath.Join(tree, "bundle.jar"), filepath.Join(tree, "bin"), tree} {
		if err := os.Chtimes(p, later, later); err != nil {
			t.Fatalf("failed to touch %s: %v", p, err)
		}
	}

	secondZip, secondTar := build("second")
	if !bytes.Equal(firstZip, secondZip) {
		t.Fatal("expected identical zip packages for identical content")
	}
	if !bytes.Equal(firstTar, secondTar) {
		t.Fatal("expected identical tar.gz packages for identical content")
	}

	for _, h := range readTarHeaders(t, filepath.Join(dir, "second.tar.gz")) {
		if !h.ModTime.Equal(archive.EntryTime) {
			t.Fatalf("expected entry time %v for %s, got %v", archive.EntryTime, h.Name, h.ModTime)
		}
	}
}

// =============================================================================
// Extraction Tests
// =============================================================================

// snapshot maps every file below root to its content and executable flag
func snapshot(t *testing.T, root string) map[string]string {
	t.Helper()

	files := map[string]string{}
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		if info.IsDir() {
			files[filepath.ToSlash(rel)+"/"] = "dir"
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		exec := "-"
		if info.Mode().Perm()&0111 != 0 {
			exec = "x"
		}
		files[filepath.ToSlash(rel)] = exec + string(data)
		return nil
	})
	if err != nil {
		t.Fatalf("failed to walk %s: %v", root, err)
	}
	return files
}

func TestTarGz_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	tree := filepath.Join(dir, "tree")
	writeFile(t, filepath.Join(tree, "bin", "run.sh"), "#!/bin/sh\necho run\n", 0755)
	writeFile(t, filepath.Join(tree, "conf", "config.properties"), "a=b\n", 0644)
	writeFile(t, filepath.Join(tree, "bundle", "big.jar"), strings.Repeat("0123456789", 5000), 0644)
	writeFile(t, filepath.Join(tree, "README"), "", 0644)

	out := filepath.Join(dir, "tree.tar.gz")
	tw, err := archive.CreateTarGz(out)
	if err != nil {
		t.Fatalf("failed to create archive: %v", err)
	}
	if err := tw.AddTree(tree, ""); err != nil {
		t.Fatalf("failed to add tree: %v", err)
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}

	target := filepath.Join(dir, "extracted")
	count, err := archive.Extract(context.Background(), out, target)
	if err != nil {
		t.Fatalf("failed to extract: %v", err)
	}
	if count != 7 {
		t.Fatalf("expected 7 entries, got %d", count)
	}

	before := snapshot(t, tree)
	after := snapshot(t, target)
	if len(before) != len(after) {
		t.Fatalf("expected %d paths, got %d", len(before), len(after))
	}
	var keys []string
	for k := range before {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if before[k] != after[k] {
			t.Fatalf("mismatch for %s", k)
		}
	}
}

func writeRawTarGz(t *testing.T, path string, entries []*tar.Header, bodies []string) {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for i, h := range entries {
		if err := tw.WriteHeader(h); err != nil {
			t.Fatalf("failed to write header: %v", err)
		}
		if bodies[i] != "" {
			if _, err := tw.Write([]byte(bodies[i])); err != nil {
				t.Fatalf("failed to write body: %v", err)
			}
		}
	}
	tw.Close()
	gz.Close()
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("failed to write archive: %v", err)
	}
}

func TestExtract_EmptyArchive(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "empty.tar.gz")
	writeRawTarGz(t, out, nil, nil)

	_, err := archive.Extract(context.Background(), out, filepath.Join(dir, "target"))
	if !errors.Is(err, errors.ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
	if !strings.Contains(err.Error(), out) {
		t.Fatalf("expected error to name the archive, got %s", err.Error())
	}
}

func TestExtract_Corrupt(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "corrupt.tar.gz")
	if err := os.WriteFile(out, []byte("not a gzip stream"), 0644); err != nil {
		t.Fatalf("failed to write archive: %v", err)
	}

	if _, err := archive.Extract(context.Background(), out, filepath.Join(dir, "target")); !errors.Is(err, errors.ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
}

func TestExtract_PathTraversal(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "evil.tar.gz")
	writeRawTarGz(t, out, []*tar.Header{
		{Typeflag: tar.TypeReg, Name: "../evil.txt", Mode: 0644, Size: 4},
	}, []string{"evil"})

	if _, err := archive.Extract(context.Background(), out, filepath.Join(dir, "target")); !errors.Is(err, errors.ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "evil.txt")); !os.IsNotExist(err) {
		t.Fatal("file escaped the target directory")
	}
}

func TestExtract_ExecutableBit(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "base.tar.gz")
	writeRawTarGz(t, out, []*tar.Header{
		{Typeflag: tar.TypeReg, Name: "felix-framework-6.0/bin/felix.sh", Mode: 0755, Size: 2},
		{Typeflag: tar.TypeReg, Name: "felix-framework-6.0/conf/config.properties", Mode: 0600, Size: 1},
	}, []string{"sh", "c"})

	target := filepath.Join(dir, "target")
	count, err := archive.Extract(context.Background(), out, target)
	if err != nil {
		t.Fatalf("failed to extract: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 entries, got %d", count)
	}

	info, err := os.Stat(filepath.Join(target, "felix-framework-6.0", "bin", "felix.sh"))
	if err != nil {
		t.Fatalf("failed to stat: %v", err)
	}
	if info.Mode().Perm() != 0755 {
		t.Fatalf("expected 0755, got %o", info.Mode().Perm())
	}
	info, _ = os.Stat(filepath.Join(target, "felix-framework-6.0", "conf", "config.properties"))
	if info.Mode().Perm() != 0644 {
		t.Fatalf("expected 0644, got %o", info.Mode().Perm())
	}

	root, err := archive.SingleRoot(target)
	if err != nil {
		t.Fatalf("failed to find single root: %v", err)
	}
	if filepath.Base(root) != "felix-framework-6.0" {
		t.Fatalf("unexpected root %s", root)
	}
}

func TestExtract_Unsupported(t *testing.T) {
	_, err := archive.Extract(context.Background(), "base.rar", t.TempDir())
	if !errors.Is(err, errors.ErrUnsupportedArchive) {
		t.Fatalf("expected ErrUnsupportedArchive, got %v", err)
	}
	if archive.IsSupported("base.rar") || !archive.IsSupported("base.tar.xz") {
		t.Fatal("unexpected IsSupported result")
	}
}

func TestSingleRoot_Multiple(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a"), "a", 0644)
	writeFile(t, filepath.Join(dir, "b"), "b", 0644)

	if _, err := archive.SingleRoot(dir); !errors.Is(err, errors.ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
}
