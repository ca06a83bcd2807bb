/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/

// Package toolrun invokes external Python analyzers and normalizes
// their output into findings lines.
package toolrun

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/fulmenhq/pyneat/pkg/logger"
)

// ProcessRunner abstracts external process execution so adapters are
// testable without real binaries. A nonzero exit is not an error; tools
// signal findings that way. The error return is reserved for failures
// to launch or complete.
type ProcessRunner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, exitCode int, err error)
}

// OSRunner executes tools from the host PATH.
type OSRunner struct{}

func (OSRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, int, error) {
	cmd := exec.CommandContext(ctx, name, args...) // #nosec G204 -- name and args come from the built-in tool table
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), stderr.Bytes(), 0, nil
	}
	if ee, ok := err.(*exec.ExitError); ok {
		return stdout.Bytes(), stderr.Bytes(), ee.ExitCode(), nil
	}
	return stdout.Bytes(), stderr.Bytes(), 0, fmt.Errorf("%s execution failed: %w", name, err)
}

// Tool describes one external analyzer: the binary to run, arguments
// placed before the target path, the summary line that terminates its
// findings, and noise lines dropped from its output.
type Tool struct {
	Name string
	Bin  string
	Args []string
	// Summary matches the line that ends the findings. nil means the
	// tool emits no summary and every non-blank line is a finding.
	Summary *regexp.Regexp
	// Skip matches per-tool noise lines (section headers) dropped
	// before truncation.
	Skip *regexp.Regexp
}

// Available reports whether the tool's binary resolves on PATH.
func (t Tool) Available() bool {
	_, err := exec.LookPath(t.Bin)
	return err == nil
}

// DefaultTools returns the built-in analyzer table in invocation order.
func DefaultTools() []Tool {
	return []Tool{
		{
			Name: "pyflakes",
			Bin:  "pyflakes",
		},
		{
			Name:    "mypy",
			Bin:     "mypy",
			Summary: regexp.MustCompile(`^(Found \d+ error|Success: no issues found)`),
		},
		{
			Name:    "pylint",
			Bin:     "pylint",
			Args:    []string{"--output-format=text"},
			Summary: regexp.MustCompile(`^(-{5,}$|Your code has been rated at )`),
			Skip:    regexp.MustCompile(`^\*+ `),
		},
		{
			Name:    "black",
			Bin:     "black",
			Args:    []string{"--check"},
			Summary: regexp.MustCompile(`^(Oh no!|All done!)`),
		},
	}
}

// ToolsByName resolves configured tool names against the built-in
// table, preserving the requested order.
func ToolsByName(names []string) ([]Tool, error) {
	table := make(map[string]Tool)
	for _, t := range DefaultTools() {
		table[t.Name] = t
	}
	tools := make([]Tool, 0, len(names))
	for _, name := range names {
		t, ok := table[name]
		if !ok {
			return nil, fmt.Errorf("unknown tool %q", name)
		}
		tools = append(tools, t)
	}
	return tools, nil
}

// ToolResult carries one tool's normalized findings for one file.
type ToolResult struct {
	Tool      string
	RawOutput string
	Findings  []string
}

// Invoke runs one tool against one path and returns its raw output. It
// never returns an error: launch failures and timeouts degrade to a
// descriptive string, so a tool crash becomes report text instead of
// aborting the run.
func Invoke(ctx context.Context, runner ProcessRunner, tool Tool, path string) string {
	raw, err := invoke(ctx, runner, tool, path)
	if err != nil {
		return failureText(tool, err)
	}
	return raw
}

// Process runs the full adapter pipeline for one file: invoke, truncate
// at the summary line, remap derived paths back to the original. An
// invocation failure surfaces as a single finding line rather than
// vanishing in truncation.
func Process(ctx context.Context, runner ProcessRunner, tool Tool, derivedPath, originalPath string) ToolResult {
	raw, err := invoke(ctx, runner, tool, derivedPath)
	if err != nil {
		line := failureText(tool, err)
		return ToolResult{Tool: tool.Name, RawOutput: line, Findings: []string{line}}
	}
	findings := TruncateAtSummary(tool, raw)
	findings = RemapPath(findings, derivedPath, originalPath)
	return ToolResult{Tool: tool.Name, RawOutput: raw, Findings: findings}
}

func invoke(ctx context.Context, runner ProcessRunner, tool Tool, path string) (string, error) {
	args := append(append([]string{}, tool.Args...), path)
	stdout, stderr, exitCode, err := runner.Run(ctx, tool.Bin, args...)
	if err != nil {
		logger.Warn(fmt.Sprintf("%s invocation failed: %v", tool.Name, err))
		return "", err
	}
	logger.Debug(fmt.Sprintf("%s exited with code %d on %s", tool.Name, exitCode, path))
	if len(stderr) == 0 {
		return string(stdout), nil
	}
	return string(stdout) + string(stderr), nil
}

func failureText(tool Tool, err error) string {
	return fmt.Sprintf("%s: invocation failed: %v", tool.Name, err)
}

// TruncateAtSummary splits raw output into lines and keeps everything
// before the first line matching the tool's summary pattern; the
// boundary line and everything after it is discarded. Blank lines and
// the tool's noise lines are dropped. When the tool defines a summary
// pattern and no line matches it, the result is empty: a missing
// summary reads as "no findings", never as a parse error.
func TruncateAtSummary(tool Tool, raw string) []string {
	var findings []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if tool.Skip != nil && tool.Skip.MatchString(line) {
			continue
		}
		if tool.Summary != nil && tool.Summary.MatchString(line) {
			return findings
		}
		findings = append(findings, line)
	}
	if tool.Summary != nil {
		return nil
	}
	return findings
}

// RemapPath rewrites tool output lines that point at a derived artifact
// (a notebook's flattened temp script) back to the original path: per
// line, everything before the first ':' is replaced with originalPath
// and the ":line:col: message" suffix is preserved verbatim. Lines
// without a ':' pass through unchanged. Identity when the paths match.
func RemapPath(lines []string, derivedPath, originalPath string) []string {
	if derivedPath == originalPath {
		return lines
	}
	out := make([]string, len(lines))
	for i, line := range lines {
		idx := strings.Index(line, ":")
		if idx < 0 {
			out[i] = line
			continue
		}
		out[i] = originalPath + line[idx:]
	}
	return out
}
