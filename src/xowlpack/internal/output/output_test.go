package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"testing"
)

// captureStdout captures stdout output during fn execution
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	return buf.String()
}

// =============================================================================
// PrintJSON / PrintYAML Tests
// =============================================================================

func TestPrintJSON_Struct(t *testing.T) {
	type output struct {
		Kind string `json:"kind"`
		Path string `json:"path"`
	}
	out := captureStdout(t, func() {
		if err := PrintJSON(output{Kind: "xowl-addon", Path: "target/a-1.0.zip"}); err != nil {
			t.Fatalf("PrintJSON error: %v", err)
		}
	})
	var result map[string]string
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if result["kind"] != "xowl-addon" {
		t.Errorf("expected kind=xowl-addon, got %v", result)
	}
}

func TestPrintYAML_RespectsJsonTags(t *testing.T) {
	type build struct {
		BuildID    string `json:"build_id"`
		ErrorStage string `json:"error_stage,omitempty"`
	}
	out := captureStdout(t, func() {
		if err := PrintYAML(build{BuildID: "abc"}); err != nil {
			t.Fatalf("PrintYAML error: %v", err)
		}
	})
	if !strings.Contains(out, "build_id: abc") {
		t.Errorf("expected build_id (json tag), got %q", out)
	}
	if strings.Contains(out, "error_stage") {
		t.Errorf("expected omitempty to be honored, got %q", out)
	}
}

// =============================================================================
// PrintTable Tests
// =============================================================================

func TestPrintTable_Alignment(t *testing.T) {
	out := captureStdout(t, func() {
		PrintTable(
			[]string{"ID", "STATUS"},
			[][]string{
				{"1", "done"},
				{"100", "failed"},
			},
		)
	})
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines (header + 2 rows), got %d", len(lines))
	}
	if strings.Index(lines[0], "STATUS") != strings.Index(lines[2], "failed") {
		t.Errorf("expected aligned columns, got %q", out)
	}
}

func TestPrintTable_EmptyRows(t *testing.T) {
	out := captureStdout(t, func() {
		PrintTable([]string{"ID", "STATUS"}, nil)
	})
	if strings.TrimSpace(out) != "ID  STATUS" {
		t.Errorf("expected headers only, got %q", out)
	}
}

// =============================================================================
// Message / Error / Format Tests
// =============================================================================

func TestPrintMessage(t *testing.T) {
	out := captureStdout(t, func() {
		PrintMessage("hello world")
	})
	if strings.TrimSpace(out) != "hello world" {
		t.Errorf("expected 'hello world', got %q", out)
	}
}

func TestPrintError(t *testing.T) {
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	PrintError(fmt.Errorf("test error"))

	w.Close()
	os.Stderr = old

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	if !strings.Contains(buf.String(), "Error: test error") {
		t.Errorf("expected error message on stderr, got %q", buf.String())
	}
}

func TestPrintErrorReport(t *testing.T) {
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	PrintErrorReport(map[string]string{"error": "resolve.not_found", "message": "missing"})

	w.Close()
	os.Stderr = old

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	var decoded map[string]string
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("expected JSON on stderr, got %q: %v", buf.String(), err)
	}
	if decoded["error"] != "resolve.not_found" {
		t.Errorf("expected error code resolve.not_found, got %q", decoded["error"])
	}
}

func TestValidFormat(t *testing.T) {
	for _, f := range []string{"table", "json", "yaml"} {
		if !ValidFormat(f) {
			t.Errorf("expected %s to be valid", f)
		}
	}
	if ValidFormat("xml") {
		t.Errorf("expected xml to be rejected")
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		size     int64
		expected string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := FormatSize(tt.size); got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}
