package paths

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpand_Env(t *testing.T) {
	t.Setenv("XOWLPACK_TEST_DIR", "/opt/xowl")

	if got := Expand("$XOWLPACK_TEST_DIR/cache"); got != "/opt/xowl/cache" {
		t.Errorf("Expand() = %s, want /opt/xowl/cache", got)
	}
}

func TestToSlash(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a/b/c.jar", "a/b/c.jar"},
		{"/a/b", "a/b"},
		{"./a//b/", "a/b"},
		{".", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ToSlash(tt.in); got != tt.want {
				t.Errorf("ToSlash(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsExecutable(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "run.sh")
	plain := filepath.Join(dir, "README")

	if err := os.WriteFile(script, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	if err := os.WriteFile(plain, []byte("text"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	if !IsExecutable(script) {
		t.Error("expected script to be executable")
	}
	if IsExecutable(plain) {
		t.Error("expected plain file not to be executable")
	}
	if IsExecutable(dir) {
		t.Error("expected directory not to be reported as executable")
	}
}
