/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package evaluate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/fulmenhq/pyneat/internal/notebook"
	"github.com/fulmenhq/pyneat/internal/pyscan"
	"github.com/fulmenhq/pyneat/internal/toolrun"
	"github.com/fulmenhq/pyneat/pkg/buildinfo"
	"github.com/fulmenhq/pyneat/pkg/config"
	"github.com/fulmenhq/pyneat/pkg/logger"
	"github.com/fulmenhq/pyneat/pkg/safeio"
	"github.com/fulmenhq/pyneat/pkg/work"
)

// Options configures an evaluation run. Target is the repository root;
// everything else has a usable zero value.
type Options struct {
	Target       string
	Paths        []string // explicit files or directories; empty means the whole tree
	Include      []string
	Exclude      []string
	ContentTypes []string
	Branch       string // recorded in the report metadata
	Concurrency  int    // workers; <=0 resolves to half the CPUs, minimum 1
	Tools        []string
	Runner       toolrun.ProcessRunner // nil uses the host runner and LookPath gating
	Thresholds   config.Thresholds
	Restricted   []string
	SchemaCheck  bool
	NoIgnore     bool
	Verbose      bool
}

// Engine runs evaluations. Construct with NewEngine; the zero value is not
// usable.
type Engine struct {
	opts    Options
	tools   []toolrun.Tool
	runner  toolrun.ProcessRunner
	workers int
}

// NewEngine resolves the tool set and worker count for opts. With the host
// runner, tools missing from PATH are dropped here with a log line; injected
// runners get the full configured set.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Target == "" {
		return nil, errors.New("evaluate: target is required")
	}

	runner := opts.Runner
	checkAvailability := runner == nil
	if runner == nil {
		runner = toolrun.OSRunner{}
	}

	var tools []toolrun.Tool
	if len(opts.Tools) == 0 {
		tools = toolrun.DefaultTools()
	} else {
		var err error
		tools, err = toolrun.ToolsByName(opts.Tools)
		if err != nil {
			return nil, err
		}
	}
	if checkAvailability {
		available := make([]toolrun.Tool, 0, len(tools))
		for _, tool := range tools {
			if !tool.Available() {
				logger.Info(fmt.Sprintf("Skipping %s: not installed", tool.Name))
				continue
			}
			available = append(available, tool)
		}
		tools = available
	}

	workers := opts.Concurrency
	if workers <= 0 {
		workers = defaultWorkerCount()
	}

	return &Engine{opts: opts, tools: tools, runner: runner, workers: workers}, nil
}

func defaultWorkerCount() int {
	n := runtime.NumCPU() / 2
	if n < 1 {
		n = 1
	}
	return n
}

// Evaluate discovers sources under the target, analyzes them with a bounded
// worker pool, and returns the aggregated report. Findings never produce an
// error; only discovery or cancellation can.
func (e *Engine) Evaluate(ctx context.Context) (*Report, error) {
	start := time.Now()

	paths := e.opts.Paths
	if len(paths) > 0 {
		paths = existingOnly(paths, e.opts.Target)
	}

	planner, err := work.NewPlanner(work.PlannerConfig{
		Target:          e.opts.Target,
		Paths:           paths,
		IncludePatterns: e.opts.Include,
		ExcludePatterns: e.opts.Exclude,
		ContentTypes:    e.opts.ContentTypes,
		NoIgnore:        e.opts.NoIgnore,
		Verbose:         e.opts.Verbose,
	})
	if err != nil {
		return nil, err
	}

	manifest, err := planner.GenerateManifest()
	if err != nil {
		return nil, fmt.Errorf("source discovery failed: %w", err)
	}
	if err := work.ValidateManifest(manifest); err != nil {
		return nil, err
	}

	proc := &unitProcessor{
		engine:   e,
		sections: make(map[string]*FileSection, len(manifest.WorkItems)),
	}
	dispatcher := work.NewDispatcher(work.DispatcherConfig{MaxWorkers: e.workers}, proc)
	if _, err := dispatcher.ExecuteManifest(ctx, manifest); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{
		Metadata: Metadata{
			GeneratedAt: time.Now().UTC(),
			Tool:        "pyneat",
			Version:     buildinfo.BinaryVersion,
			Target:      e.opts.Target,
			Branch:      e.opts.Branch,
			Workers:     e.workers,
		},
		Thresholds: e.opts.Thresholds,
	}

	// Manifest order is discovery order; vanished files left no section.
	for i := range manifest.WorkItems {
		if section := proc.section(manifest.WorkItems[i].ID); section != nil {
			report.Sections = append(report.Sections, *section)
		}
	}
	for _, artifact := range manifest.FlaggedArtifacts {
		report.Hygiene = append(report.Hygiene, Finding{
			Rule:     RuleArtifact,
			File:     artifact,
			Severity: SeverityLow,
			Message:  "flagged artifact committed to the repository",
		})
	}

	report.Metadata.ExecutionTime = time.Since(start)
	report.recount()
	return report, nil
}

// existingOnly drops paths that no longer exist. Files listed by commit
// history may have been deleted since; that is not worth a warning.
func existingOnly(paths []string, target string) []string {
	var out []string
	for _, p := range paths {
		full := p
		if !filepath.IsAbs(full) {
			full = filepath.Join(target, p)
		}
		if _, err := os.Stat(full); err == nil {
			out = append(out, p)
		}
	}
	return out
}

// unitProcessor analyzes work items and stashes the resulting sections by
// work item ID until the dispatcher drains.
type unitProcessor struct {
	engine   *Engine
	mu       sync.Mutex
	sections map[string]*FileSection
}

func (p *unitProcessor) ProcessWorkItem(ctx context.Context, item *work.WorkItem) work.ExecutionResult {
	result := work.ExecutionResult{WorkItemID: item.ID, Success: true}

	var section *FileSection
	var err error
	switch item.ContentType {
	case work.ContentTypeNotebook:
		section, err = p.engine.analyzeNotebook(ctx, item)
	default:
		section, err = p.engine.analyzeScript(ctx, item)
	}
	if err != nil {
		logger.Warn(fmt.Sprintf("Failed to analyze %s: %v", item.Path, err))
		result.Success = false
		result.Error = err.Error()
		return result
	}
	if section == nil {
		return result
	}

	p.mu.Lock()
	p.sections[item.ID] = section
	p.mu.Unlock()
	return result
}

func (p *unitProcessor) section(id string) *FileSection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sections[id]
}

func (e *Engine) analyzeScript(ctx context.Context, item *work.WorkItem) (*FileSection, error) {
	data, err := safeio.ReadFileContained(e.opts.Target, item.AbsolutePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug(fmt.Sprintf("Skipping %s: vanished after discovery", item.Path))
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", item.Path, err)
	}

	section := &FileSection{Path: item.Path, Kind: item.ContentType}
	section.Findings = e.ruleFindings(ctx, data, item.Path)
	section.Tools = e.runTools(ctx, item.AbsolutePath, item.Path)
	return section, nil
}

func (e *Engine) analyzeNotebook(ctx context.Context, item *work.WorkItem) (*FileSection, error) {
	data, err := safeio.ReadFileContained(e.opts.Target, item.AbsolutePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug(fmt.Sprintf("Skipping %s: vanished after discovery", item.Path))
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", item.Path, err)
	}

	section := &FileSection{Path: item.Path, Kind: item.ContentType}

	if e.opts.SchemaCheck {
		if err := notebook.ValidateStrict(data); err != nil {
			section.Findings = []Finding{{
				Rule:     RuleNotebookFormat,
				File:     item.Path,
				Severity: SeverityHigh,
				Message:  err.Error(),
			}}
			return section, nil
		}
	}

	nb, metrics, err := notebook.Decompose(data)
	if err != nil {
		section.Findings = []Finding{{
			Rule:     RuleNotebookFormat,
			File:     item.Path,
			Severity: SeverityHigh,
			Message:  err.Error(),
		}}
		return section, nil
	}
	section.Metrics = &metrics
	section.Findings = e.thresholdFindings(metrics, item.Path)

	// Rules and tools operate on the flattened script, so their line numbers
	// refer to it rather than to notebook cells.
	flat := nb.Flatten()
	tmpPath, cleanup, err := materialize(flat)
	if err != nil {
		logger.Warn(fmt.Sprintf("Failed to materialize %s for analysis: %v", item.Path, err))
		return section, nil
	}
	defer cleanup()

	section.Findings = append(section.Findings, e.ruleFindings(ctx, []byte(flat), item.Path)...)
	section.Tools = e.runTools(ctx, tmpPath, item.Path)
	return section, nil
}

// materialize writes text to a temporary .py file and returns its path with
// a cleanup function.
func materialize(text string) (string, func(), error) {
	tmp, err := os.CreateTemp("", "pyneat-*.py")
	if err != nil {
		return "", nil, err
	}
	if _, err := tmp.WriteString(text); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", nil, err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", nil, err
	}
	return tmp.Name(), func() { _ = os.Remove(tmp.Name()) }, nil
}

// ruleFindings runs the structural rules on src. Unparseable sources yield a
// single syntax finding; the rules themselves never run on them.
func (e *Engine) ruleFindings(ctx context.Context, src []byte, file string) []Finding {
	script, err := pyscan.Parse(ctx, src)
	if err != nil {
		message := "source is not valid Python; structural checks skipped"
		if !errors.Is(err, pyscan.ErrSyntaxInvalid) {
			message = fmt.Sprintf("structural analysis failed: %v", err)
		}
		return []Finding{{Rule: RuleSyntax, File: file, Severity: SeverityHigh, Message: message}}
	}

	var findings []Finding
	ok, violation := script.CheckEncapsulation()
	if !ok {
		findings = append(findings, Finding{
			Rule:     RuleEncapsulation,
			File:     file,
			Line:     violation.Line,
			Severity: SeverityHigh,
			Message:  fmt.Sprintf("code outside functions or main block (%s)", violation.NodeType),
		})
	}
	for _, fn := range script.UndocumentedFunctions() {
		findings = append(findings, Finding{
			Rule:     RuleDocstring,
			File:     file,
			Line:     fn.Line,
			Severity: SeverityMedium,
			Message:  fmt.Sprintf("function %q has no docstring", fn.Name),
		})
	}
	for _, imp := range script.RestrictedImports(e.opts.Restricted) {
		findings = append(findings, Finding{
			Rule:     RuleRestrictedImport,
			File:     file,
			Line:     imp.Line,
			Severity: SeverityHigh,
			Message:  fmt.Sprintf("restricted module %q imported", imp.Module),
		})
	}
	return findings
}

func (e *Engine) thresholdFindings(metrics notebook.Metrics, file string) []Finding {
	t := e.opts.Thresholds
	var findings []Finding
	if metrics.CellCount > t.MaxCells {
		findings = append(findings, Finding{
			Rule:     RuleCellCount,
			File:     file,
			Severity: SeverityMedium,
			Message:  fmt.Sprintf("max number of cells exceeded: %d", metrics.CellCount),
		})
	}
	if metrics.MaxLinesInCell > t.MaxLinesPerCell {
		findings = append(findings, Finding{
			Rule:     RuleCellLength,
			File:     file,
			Severity: SeverityMedium,
			Message:  fmt.Sprintf("max number of lines per cell exceeded: %d", metrics.MaxLinesInCell),
		})
	}
	if metrics.FunctionDefCount > t.MaxFunctionDefs {
		findings = append(findings, Finding{
			Rule:     RuleFunctionDefs,
			File:     file,
			Severity: SeverityMedium,
			Message:  fmt.Sprintf("function definitions detected: %d", metrics.FunctionDefCount),
		})
	}
	return findings
}

// runTools invokes every configured tool against derivedPath and remaps the
// reported paths back to originalPath.
func (e *Engine) runTools(ctx context.Context, derivedPath, originalPath string) []ToolReport {
	if len(e.tools) == 0 {
		return nil
	}
	reports := make([]ToolReport, 0, len(e.tools))
	for _, tool := range e.tools {
		result := toolrun.Process(ctx, e.runner, tool, derivedPath, originalPath)
		reports = append(reports, ToolReport{Tool: tool.Name, Findings: result.Findings})
	}
	return reports
}
