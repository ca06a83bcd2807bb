package safeio

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestCleanUserPath(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "report.json", want: "report.json"},
		{in: "./out/report.json", want: "out/report.json"},
		{in: "/tmp/report.json", want: "/tmp/report.json"},
		{in: "file.with.dots.txt", want: "file.with.dots.txt"},
		{in: "", want: "."},
		{in: ".", want: "."},
		{in: "..", wantErr: true},
		{in: "../../../etc/passwd", wantErr: true},
		{in: "out/../../escape.txt", wantErr: true},
	}

	for _, tc := range cases {
		got, err := CleanUserPath(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("CleanUserPath(%q): expected error, got %q", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("CleanUserPath(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("CleanUserPath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestWriteFileRestricted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	body := []byte(`{"findings": []}`)

	if err := WriteFileRestricted(path, body); err != nil {
		t.Fatalf("WriteFileRestricted: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != string(body) {
		t.Errorf("content = %q, want %q", got, body)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("permissions = %s, want -rw-------", perm)
	}
}

func TestWriteFileRestrictedTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.txt")

	if err := WriteFileRestricted(path, []byte("a longer first report body")); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteFileRestricted(path, []byte("short")); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != "short" {
		t.Errorf("rewrite did not truncate: %q", got)
	}
}

func TestWriteFileRestrictedRejectsTraversal(t *testing.T) {
	if err := WriteFileRestricted("../outside.txt", []byte("data")); err == nil {
		t.Error("traversal path accepted")
	}
}

func TestWriteFileRestrictedMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "report.json")
	if err := WriteFileRestricted(path, []byte("data")); err == nil {
		t.Error("write into a missing directory should fail")
	}
}

func TestReadFileContained(t *testing.T) {
	base := t.TempDir()
	sub := filepath.Join(base, "pkg")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	script := filepath.Join(sub, "analysis.py")
	body := []byte("import os\n")
	if err := os.WriteFile(script, body, 0o644); err != nil {
		t.Fatal(err)
	}
	outside := filepath.Join(filepath.Dir(base), "outside.py")
	if err := os.WriteFile(outside, []byte("outside"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Remove(outside) })

	got, err := ReadFileContained(base, script)
	if err != nil {
		t.Fatalf("read inside base: %v", err)
	}
	if string(got) != string(body) {
		t.Errorf("content = %q, want %q", got, body)
	}

	if _, err := ReadFileContained(base, outside); err == nil {
		t.Error("sibling of base accepted")
	}
	if _, err := ReadFileContained(sub, filepath.Join(sub, "..", "..", "outside.py")); err == nil {
		t.Error("dot-dot escape accepted")
	}
}

func TestReadFileContainedKeepsNotExist(t *testing.T) {
	// Callers skip files that vanish between discovery and analysis, so
	// the not-exist error must survive the containment wrapper.
	base := t.TempDir()
	_, err := ReadFileContained(base, filepath.Join(base, "vanished.py"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("missing contained file: got %v, want fs.ErrNotExist", err)
	}
}
