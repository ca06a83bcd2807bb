// Package ignore provides gitignore-based file filtering using go-git
package ignore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	gitignore "github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// alwaysIgnored names directories that never hold auditable Python sources.
var alwaysIgnored = []string{
	".git/**", ".hg/**", ".svn/**",
	".venv/**", "venv/**", ".tox/**",
	".mypy_cache/**", ".pytest_cache/**", ".ruff_cache/**",
	"node_modules/**",
}

// Matcher provides gitignore-based file filtering rooted at a repository.
type Matcher struct {
	root    string
	matcher gitignore.Matcher
}

// NewMatcher creates a matcher with layered ignore files:
// 1. built-in defaults for directories that never carry auditable sources
// 2. .gitignore and related git ignore files (foundation)
// 3. .pyneatignore (repo overrides)
// 4. ~/.pyneat/.pyneatignore (user overrides)
func NewMatcher(repoRoot string) (*Matcher, error) {
	rootAbs, err := filepath.Abs(repoRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve repository root: %w", err)
	}

	patterns := parseAll(alwaysIgnored)

	// ReadPatterns with a nil domain picks up .gitignore files across the
	// tree plus .git/info/exclude
	if gitPatterns, err := gitignore.ReadPatterns(osfs.New(rootAbs), nil); err == nil {
		patterns = append(patterns, gitPatterns...)
	}

	if repoLines, err := readIgnoreFile(filepath.Join(rootAbs, ".pyneatignore")); err == nil {
		patterns = append(patterns, parseAll(repoLines)...)
	}

	if home, err := os.UserHomeDir(); err == nil {
		if userLines, err := readIgnoreFile(filepath.Join(home, ".pyneat", ".pyneatignore")); err == nil {
			patterns = append(patterns, parseAll(userLines)...)
		}
	}

	return &Matcher{
		root:    rootAbs,
		matcher: gitignore.NewMatcher(patterns),
	}, nil
}

func parseAll(lines []string) []gitignore.Pattern {
	out := make([]gitignore.Pattern, 0, len(lines))
	for _, line := range lines {
		out = append(out, gitignore.ParsePattern(line, nil))
	}
	return out
}

// readIgnoreFile loads pattern lines from a .pyneatignore file. Only files
// with that exact name are readable through this path.
func readIgnoreFile(path string) ([]string, error) {
	cleaned := filepath.Clean(path)
	if !strings.HasSuffix(cleaned, string(os.PathSeparator)+".pyneatignore") {
		return nil, fmt.Errorf("disallowed ignore file path: %s", cleaned)
	}
	content, err := os.ReadFile(cleaned) // #nosec G304 -- name-restricted above
	if err != nil {
		return nil, err
	}

	var lines []string
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// relFromRoot rewrites path relative to the matcher root. Relative inputs are
// assumed to already be root-relative.
func (m *Matcher) relFromRoot(path string) string {
	if filepath.IsAbs(path) {
		if rel, err := filepath.Rel(m.root, path); err == nil {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(path)
}

// IsIgnored reports whether a file path matches the layered ignore patterns.
func (m *Matcher) IsIgnored(path string) bool {
	parts := splitPath(m.relFromRoot(path))
	if len(parts) == 0 {
		return false
	}
	return m.matcher.Match(parts, false)
}

// IsIgnoredDir reports whether a directory should be skipped during traversal.
func (m *Matcher) IsIgnoredDir(path string) bool {
	parts := splitPath(m.relFromRoot(path))
	if len(parts) == 0 {
		return false
	}
	return m.matcher.Match(parts, true)
}

// splitPath converts a slash-separated path into the component slices go-git
// matching expects.
func splitPath(path string) []string {
	if path == "" || path == "." {
		return nil
	}
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	out := parts[:0]
	for _, part := range parts {
		if part != "" && part != "." {
			out = append(out, part)
		}
	}
	return out
}
