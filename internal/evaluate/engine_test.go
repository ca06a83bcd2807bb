package evaluate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulmenhq/pyneat/pkg/config"
)

// scriptedRunner fakes tool execution. The lines callback receives the
// binary and the target path and returns the tool's stdout.
type scriptedRunner struct {
	mu    sync.Mutex
	calls []string
	lines func(bin, path string) string
}

func (r *scriptedRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, int, error) {
	r.mu.Lock()
	r.calls = append(r.calls, name)
	r.mu.Unlock()
	if r.lines == nil {
		return nil, nil, 0, nil
	}
	path := ""
	if len(args) > 0 {
		path = args[len(args)-1]
	}
	out := r.lines(name, path)
	code := 0
	if out != "" {
		code = 1
	}
	return []byte(out), nil, code, nil
}

func (r *scriptedRunner) invoked() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func writeFixture(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

// notebookDoc builds a notebook document with n code cells, each holding a
// single comment line.
func notebookDoc(t *testing.T, n int) string {
	t.Helper()
	type cell struct {
		CellType string   `json:"cell_type"`
		Metadata struct{} `json:"metadata"`
		Source   []string `json:"source"`
	}
	doc := struct {
		Cells         []cell   `json:"cells"`
		Metadata      struct{} `json:"metadata"`
		Nbformat      int      `json:"nbformat"`
		NbformatMinor int      `json:"nbformat_minor"`
	}{Nbformat: 4, NbformatMinor: 5}
	for i := 0; i < n; i++ {
		c := cell{CellType: "code", Source: []string{fmt.Sprintf("# step %d\n", i+1)}}
		doc.Cells = append(doc.Cells, c)
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	return string(data)
}

const cleanScript = `"""Small utility module."""

import os


def cwd_name():
    """Return the base name of the working directory."""
    return os.path.basename(os.getcwd())


if __name__ == "__main__":
    cwd_name()
`

const messyScript = `import subprocess


def run(cmd):
    return subprocess.call(cmd)


print("starting")
`

func fixtureTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFixture(t, root, "clean.py", cleanScript)
	writeFixture(t, root, "messy.py", messyScript)
	writeFixture(t, root, "nb/big.ipynb", notebookDoc(t, 12))
	writeFixture(t, root, "nb/broken.ipynb", "{this is not json")
	writeFixture(t, root, "notes.txt", "not python\n")
	writeFixture(t, root, "src/__pycache__/mod.pyc", "\x00\x01")
	return root
}

func TestNewEngineRequiresTarget(t *testing.T) {
	_, err := NewEngine(Options{})
	require.Error(t, err)
}

func TestNewEngineRejectsUnknownTool(t *testing.T) {
	_, err := NewEngine(Options{
		Target: t.TempDir(),
		Tools:  []string{"ruff"},
		Runner: &scriptedRunner{},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tool")
}

func TestNewEngineInjectedRunnerSkipsAvailabilityGating(t *testing.T) {
	eng, err := NewEngine(Options{
		Target: t.TempDir(),
		Tools:  []string{"pyflakes", "mypy", "pylint", "black"},
		Runner: &scriptedRunner{},
	})
	require.NoError(t, err)
	assert.Len(t, eng.tools, 4)
	assert.GreaterOrEqual(t, eng.workers, 1)
}

func TestEvaluateFullTree(t *testing.T) {
	root := fixtureTree(t)
	runner := &scriptedRunner{}
	eng, err := NewEngine(Options{
		Target:      root,
		Tools:       []string{"pyflakes"},
		Runner:      runner,
		Thresholds:  config.Default().Thresholds,
		Restricted:  []string{"subprocess"},
		Concurrency: 2,
	})
	require.NoError(t, err)

	report, err := eng.Evaluate(context.Background())
	require.NoError(t, err)

	// Sections come back in discovery order, one per analyzed file. The
	// text file and the flagged directory never become sections.
	var paths []string
	for _, s := range report.Sections {
		paths = append(paths, s.Path)
	}
	assert.Equal(t, []string{"clean.py", "messy.py", "nb/big.ipynb", "nb/broken.ipynb"}, paths)

	clean := report.Sections[0]
	assert.False(t, clean.HasFindings())
	assert.Empty(t, clean.Findings)

	messy := report.Sections[1]
	require.Len(t, messy.Findings, 3)
	assert.Equal(t, RuleEncapsulation, messy.Findings[0].Rule)
	assert.Equal(t, 8, messy.Findings[0].Line)
	assert.Equal(t, RuleDocstring, messy.Findings[1].Rule)
	assert.Equal(t, 4, messy.Findings[1].Line)
	assert.Equal(t, RuleRestrictedImport, messy.Findings[2].Rule)
	assert.Equal(t, 1, messy.Findings[2].Line)

	big := report.Sections[2]
	require.NotNil(t, big.Metrics)
	assert.Equal(t, 12, big.Metrics.CellCount)
	require.Len(t, big.Findings, 1)
	assert.Equal(t, RuleCellCount, big.Findings[0].Rule)
	assert.Equal(t, "max number of cells exceeded: 12", big.Findings[0].Message)

	broken := report.Sections[3]
	require.Len(t, broken.Findings, 1)
	assert.Equal(t, RuleNotebookFormat, broken.Findings[0].Rule)
	assert.Equal(t, SeverityHigh, broken.Findings[0].Severity)

	require.Len(t, report.Hygiene, 1)
	assert.Equal(t, "src/__pycache__", report.Hygiene[0].File)
	assert.Equal(t, RuleArtifact, report.Hygiene[0].Rule)

	assert.Equal(t, 4, report.Summary.FilesAnalyzed)
	assert.Equal(t, 3, report.Summary.FilesWithFindings)
	assert.Equal(t, 6, report.Summary.TotalFindings)
	assert.Equal(t, 3, report.Summary.HighCount)
	assert.Equal(t, 2, report.Summary.MediumCount)
	assert.Equal(t, 1, report.Summary.LowCount)

	assert.Equal(t, 2, report.Metadata.Workers)
	assert.Equal(t, "pyneat", report.Metadata.Tool)
	assert.NotZero(t, report.Metadata.ExecutionTime)
}

func TestEvaluateRemapsToolOutput(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "app.py", "x = compute()\n")

	runner := &scriptedRunner{lines: func(bin, path string) string {
		return path + ":1:5: undefined name 'compute'\n"
	}}
	eng, err := NewEngine(Options{
		Target:     root,
		Tools:      []string{"pyflakes"},
		Runner:     runner,
		Thresholds: config.Default().Thresholds,
	})
	require.NoError(t, err)

	report, err := eng.Evaluate(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Sections, 1)

	section := report.Sections[0]
	require.Len(t, section.Tools, 1)
	assert.Equal(t, "pyflakes", section.Tools[0].Tool)
	require.Len(t, section.Tools[0].Findings, 1)
	// Tool ran on the absolute path; the report speaks in relative paths.
	assert.Equal(t, "app.py:1:5: undefined name 'compute'", section.Tools[0].Findings[0])
	assert.Equal(t, []string{"pyflakes"}, runner.invoked())
}

func TestEvaluateExplicitPathsSkipVanished(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "real.py", cleanScript)

	eng, err := NewEngine(Options{
		Target:     root,
		Paths:      []string{"real.py", "gone.py"},
		Tools:      []string{"pyflakes"},
		Runner:     &scriptedRunner{},
		Thresholds: config.Default().Thresholds,
	})
	require.NoError(t, err)

	report, err := eng.Evaluate(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Sections, 1)
	assert.Equal(t, "real.py", report.Sections[0].Path)
}

func TestEvaluateCanceledContext(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "a.py", cleanScript)

	eng, err := NewEngine(Options{
		Target:     root,
		Tools:      []string{"pyflakes"},
		Runner:     &scriptedRunner{},
		Thresholds: config.Default().Thresholds,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = eng.Evaluate(ctx)
	require.Error(t, err)
}

func TestRuleFindingsEncapsulationOnly(t *testing.T) {
	eng, err := NewEngine(Options{
		Target: t.TempDir(),
		Tools:  []string{"pyflakes"},
		Runner: &scriptedRunner{},
	})
	require.NoError(t, err)

	src := []byte("import os\nprint(\"hi\")\n")
	findings := eng.ruleFindings(context.Background(), src, "a.py")
	require.Len(t, findings, 1)
	assert.Equal(t, RuleEncapsulation, findings[0].Rule)
	assert.Equal(t, 2, findings[0].Line)
}

func TestRuleFindingsSyntaxError(t *testing.T) {
	eng, err := NewEngine(Options{
		Target: t.TempDir(),
		Tools:  []string{"pyflakes"},
		Runner: &scriptedRunner{},
	})
	require.NoError(t, err)

	findings := eng.ruleFindings(context.Background(), []byte("def broken(:\n"), "a.py")
	require.Len(t, findings, 1)
	assert.Equal(t, RuleSyntax, findings[0].Rule)
	assert.Equal(t, SeverityHigh, findings[0].Severity)
}
