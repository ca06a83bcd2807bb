package safeio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CleanUserPath cleans a user-provided path and rejects traversal
// attempts. The result uses forward slashes on every platform.
func CleanUserPath(p string) (string, error) {
	c := filepath.Clean(p)
	if strings.Contains(c, "..") {
		return "", errors.New("path traversal detected")
	}
	return filepath.ToSlash(c), nil
}

// ReadFileContained reads filePath only when it resolves inside baseDir.
// Discovered repository files go through this so a stray symlink or a
// crafted path cannot pull content from outside the audited tree.
func ReadFileContained(baseDir, filePath string) ([]byte, error) {
	resolved, err := contained(baseDir, filePath)
	if err != nil {
		return nil, err
	}
	// #nosec G304 -- resolved is verified to be inside baseDir
	return os.ReadFile(resolved)
}

// contained resolves p against base and errors when p escapes it.
func contained(base, p string) (string, error) {
	baseAbs, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base directory: %w", err)
	}
	pAbs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("failed to resolve file path: %w", err)
	}
	rel, err := filepath.Rel(baseAbs, pAbs)
	if err != nil {
		return "", fmt.Errorf("failed to compute relative path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.New("file path is outside base directory")
	}
	return pAbs, nil
}

// WriteFileRestricted validates the path and writes data with owner-only
// permissions. Report outputs may mention internal file layout, so they
// are not world-readable.
func WriteFileRestricted(path string, data []byte) error {
	clean, err := CleanUserPath(path)
	if err != nil {
		return err
	}
	// #nosec G304 -- clean is validated against traversal above
	return os.WriteFile(clean, data, 0600)
}
