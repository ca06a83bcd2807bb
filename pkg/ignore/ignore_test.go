package ignore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeIgnoreFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLayeredMatching(t *testing.T) {
	root := t.TempDir()
	writeIgnoreFixture(t, root, ".gitignore", "*.log\nbuild/\n.temp/\n!.temp/keep.py\n")
	writeIgnoreFixture(t, root, ".pyneatignore", "# local overrides\n*.bak\nsandbox/\n")

	m, err := NewMatcher(root)
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}

	cases := []struct {
		name string
		path string
		dir  bool
		want bool
	}{
		{"git metadata", ".git/config", false, true},
		{"virtualenv file", ".venv/lib/python3.11/site-packages/mod.py", false, true},
		{"bare venv", "venv/bin/activate", false, true},
		{"tox env", ".tox/py311/script.py", false, true},
		{"mypy cache", ".mypy_cache/3.11/mod.meta.json", false, true},
		{"gitignore glob", "error.log", false, true},
		{"gitignore glob nested", "logs/error.log", false, true},
		{"gitignore dir pattern", "build/lib/mod.py", false, true},
		{"gitignore dot dir", ".temp/file.py", false, true},
		{"gitignore negation", ".temp/keep.py", false, false},
		{"pyneatignore glob", "old.bak", false, true},
		{"pyneatignore dir pattern", "sandbox/experiment.py", false, true},
		{"plain script kept", "main.py", false, false},
		{"markdown kept", "README.md", false, false},
		{"nested notebook kept", "notebooks/analysis.ipynb", false, false},

		{"git dir itself", ".git", true, true},
		{"venv dir itself", ".venv", true, true},
		{"tox dir itself", ".tox", true, true},
		{"gitignore temp dir", ".temp", true, true},
		{"gitignore build dir", "build", true, true},
		{"pyneatignore sandbox dir", "sandbox", true, true},
		{"src dir kept", "src", true, false},
		{"notebooks dir kept", "notebooks", true, false},
		{"tests dir kept", "tests", true, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got bool
			if tc.dir {
				got = m.IsIgnoredDir(tc.path)
			} else {
				got = m.IsIgnored(tc.path)
			}
			if got != tc.want {
				t.Errorf("match(%q, dir=%v) = %v, want %v", tc.path, tc.dir, got, tc.want)
			}
		})
	}
}

func TestAbsolutePathsResolveAgainstRoot(t *testing.T) {
	root := t.TempDir()

	m, err := NewMatcher(root)
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}

	// Absolute paths are resolved against the matcher root, not the
	// process working directory.
	if p := filepath.Join(root, ".venv", "lib", "mod.py"); !m.IsIgnored(p) {
		t.Errorf("IsIgnored(%q) = false, want true", p)
	}
	if p := filepath.Join(root, "src", "main.py"); m.IsIgnored(p) {
		t.Errorf("IsIgnored(%q) = true, want false", p)
	}
}

func TestReadIgnoreFileSkipsCommentsAndBlanks(t *testing.T) {
	root := t.TempDir()
	writeIgnoreFixture(t, root, ".pyneatignore", strings.Join([]string{
		"# comment",
		"*.log",
		"",
		"build/",
		"!important.log",
		"",
		"scratch/",
		"",
	}, "\n"))

	lines, err := readIgnoreFile(filepath.Join(root, ".pyneatignore"))
	if err != nil {
		t.Fatalf("readIgnoreFile: %v", err)
	}

	got := strings.Join(lines, ",")
	want := "*.log,build/,!important.log,scratch/"
	if got != want {
		t.Errorf("patterns = %q, want %q", got, want)
	}
}

func TestReadIgnoreFileErrors(t *testing.T) {
	if _, err := readIgnoreFile("/nonexistent/.pyneatignore"); err == nil {
		t.Error("expected error for missing file")
	}

	root := t.TempDir()
	writeIgnoreFixture(t, root, "patterns.txt", "*.log\n")
	if _, err := readIgnoreFile(filepath.Join(root, "patterns.txt")); err == nil {
		t.Error("expected error for a file not named .pyneatignore")
	}
}

func TestSplitPath(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"", ""},
		{".", ""},
		{"file.py", "file.py"},
		{"dir/file.py", "dir|file.py"},
		{"a/b/c/file.py", "a|b|c|file.py"},
		{"/absolute/path", "absolute|path"},
		{"./relative/path", "relative|path"},
		{"path//with/empty//segments", "path|with|empty|segments"},
	}

	for _, tc := range cases {
		if got := strings.Join(splitPath(tc.input), "|"); got != tc.want {
			t.Errorf("splitPath(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestDefaultsApplyWithoutIgnoreFiles(t *testing.T) {
	m, err := NewMatcher(t.TempDir())
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}

	for _, p := range []string{".git/config", ".venv/lib/mod.py", ".pytest_cache/v/cache/nodeids"} {
		if !m.IsIgnored(p) {
			t.Errorf("IsIgnored(%q) = false, want true", p)
		}
	}
	if m.IsIgnored("main.py") {
		t.Error("IsIgnored(main.py) = true, want false")
	}
}
