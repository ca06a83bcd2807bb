package cmd

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fulmenhq/pyneat/internal/evaluate"
	"github.com/fulmenhq/pyneat/pkg/exitcode"
)

func writeBatchManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "repos.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestBatchCommand_LocalRepository(t *testing.T) {
	t.Setenv("PYNEAT_HOME", t.TempDir())
	repo, dir := gitInit(t)
	gitCommit(t, repo, dir, map[string]string{"clean.py": cmdCleanScript}, time.Now())

	manifest := writeBatchManifest(t, "repositories:\n  - url: "+dir+"\n")
	out, err := execRoot(t, []string{"batch", manifest, "--format", "json"})
	if err != nil {
		t.Fatalf("batch failed: %v\n%s", err, out)
	}

	var results []struct {
		URL    string           `json:"url"`
		Report *evaluate.Report `json:"report"`
		Error  string           `json:"error"`
	}
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Error != "" {
		t.Fatalf("unexpected repository error: %s", results[0].Error)
	}
	if results[0].Report == nil || results[0].Report.Summary.FilesAnalyzed != 1 {
		t.Errorf("expected a report over 1 file, got %+v", results[0].Report)
	}
}

func TestBatchCommand_ReportsCloneFailure(t *testing.T) {
	t.Setenv("PYNEAT_HOME", t.TempDir())
	missing := filepath.Join(t.TempDir(), "missing-repo")
	manifest := writeBatchManifest(t, "repositories:\n  - url: "+missing+"\n")

	out, err := execRoot(t, []string{"batch", manifest, "--format", "json"})
	if err == nil {
		t.Fatalf("expected failure summary error, output:\n%s", out)
	}
	if !strings.Contains(err.Error(), "1 of 1 repositories failed") {
		t.Errorf("unexpected error: %v", err)
	}

	// The error summary follows the JSON payload on the stream, so decode
	// just the first value.
	var results []struct {
		Error string `json:"error"`
	}
	if jsonErr := json.NewDecoder(strings.NewReader(out)).Decode(&results); jsonErr != nil {
		t.Fatalf("output does not start with a JSON report: %v\n%s", jsonErr, out)
	}
	if len(results) != 1 || results[0].Error == "" {
		t.Errorf("expected a per-repository error entry, got %+v", results)
	}
}

func TestBatchCommand_RejectsEmptyManifest(t *testing.T) {
	manifest := writeBatchManifest(t, "repositories: []\n")

	_, err := execRoot(t, []string{"batch", manifest})
	if err == nil {
		t.Fatal("expected error for empty manifest")
	}
	var coded *codedError
	if !errors.As(err, &coded) || coded.code != exitcode.ConfigError {
		t.Errorf("expected config error exit code, got %v", err)
	}
	if !strings.Contains(err.Error(), "lists no repositories") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestBatchCommand_RejectsEntryWithoutURL(t *testing.T) {
	manifest := writeBatchManifest(t, "repositories:\n  - branch: dev\n")

	_, err := execRoot(t, []string{"batch", manifest})
	if err == nil {
		t.Fatal("expected error for manifest entry without url")
	}
	if !strings.Contains(err.Error(), "has no url") {
		t.Errorf("unexpected error message: %v", err)
	}
}
