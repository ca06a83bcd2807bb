/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/

// Package evaluate orchestrates a compliance run: it discovers auditable
// sources, fans them out to analysis workers, folds per-file results into a
// report in discovery order, and renders that report.
package evaluate

import (
	"time"

	"github.com/fulmenhq/pyneat/internal/gitrepo"
	"github.com/fulmenhq/pyneat/internal/notebook"
	"github.com/fulmenhq/pyneat/pkg/config"
)

// Severity classifies a finding for presentation. It never affects control
// flow or the exit code.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Rule identifiers for findings synthesized by the engine itself. Tool
// findings carry the tool name instead.
const (
	RuleSyntax           = "syntax"
	RuleEncapsulation    = "encapsulation"
	RuleDocstring        = "docstring"
	RuleRestrictedImport = "restricted-import"
	RuleNotebookFormat   = "notebook-format"
	RuleCellCount        = "cell-count"
	RuleCellLength       = "cell-length"
	RuleFunctionDefs     = "function-defs"
	RuleArtifact         = "artifact"
)

// Finding is one reported compliance issue.
type Finding struct {
	Rule     string   `json:"rule"`
	File     string   `json:"file"`
	Line     int      `json:"line,omitempty"` // 1-based; 0 = unknown
	Column   int      `json:"column,omitempty"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// ToolReport carries one external tool's findings for one file. Findings are
// the truncated, path-remapped output lines in tool order.
type ToolReport struct {
	Tool     string   `json:"tool"`
	Findings []string `json:"findings,omitempty"`
}

// FileSection aggregates everything one source file produced. Sections sit
// in the report in discovery order; clean files keep an (empty) section so
// the JSON output remains the full record of the run.
type FileSection struct {
	Path     string            `json:"path"`
	Kind     string            `json:"kind"`
	Findings []Finding         `json:"findings,omitempty"`
	Tools    []ToolReport      `json:"tools,omitempty"`
	Metrics  *notebook.Metrics `json:"metrics,omitempty"`
}

// FindingCount returns the total number of findings in the section,
// engine rules and tools combined.
func (s FileSection) FindingCount() int {
	n := len(s.Findings)
	for _, tr := range s.Tools {
		n += len(tr.Findings)
	}
	return n
}

// HasFindings reports whether the section should appear in rendered output.
func (s FileSection) HasFindings() bool {
	return s.FindingCount() > 0
}

// Metadata describes the run that produced a report.
type Metadata struct {
	GeneratedAt   time.Time     `json:"generated_at"`
	Tool          string        `json:"tool"`
	Version       string        `json:"version"`
	Target        string        `json:"target"`
	Branch        string        `json:"branch,omitempty"`
	Workers       int           `json:"workers"`
	ExecutionTime time.Duration `json:"execution_time"`
}

// Summary carries the run totals. Tool findings count as medium severity.
type Summary struct {
	FilesAnalyzed     int `json:"files_analyzed"`
	FilesWithFindings int `json:"files_with_findings"`
	TotalFindings     int `json:"total_findings"`
	HighCount         int `json:"high_count"`
	MediumCount       int `json:"medium_count"`
	LowCount          int `json:"low_count"`
}

// Report is the aggregate result of one evaluation run. Sections are in
// discovery order and are never reordered. Branch fields are populated only
// when branch information was requested.
type Report struct {
	Metadata       Metadata             `json:"metadata"`
	Thresholds     config.Thresholds    `json:"thresholds"`
	Summary        Summary              `json:"summary"`
	Sections       []FileSection        `json:"sections"`
	Hygiene        []Finding            `json:"hygiene,omitempty"`
	Branches       []gitrepo.BranchInfo `json:"branches,omitempty"`
	BranchWarnings []string             `json:"branch_warnings,omitempty"`
}

// recount rebuilds the summary from the sections and hygiene findings.
func (r *Report) recount() {
	s := Summary{FilesAnalyzed: len(r.Sections)}
	for _, section := range r.Sections {
		if section.HasFindings() {
			s.FilesWithFindings++
		}
		for _, f := range section.Findings {
			s.TotalFindings++
			switch f.Severity {
			case SeverityHigh:
				s.HighCount++
			case SeverityLow:
				s.LowCount++
			default:
				s.MediumCount++
			}
		}
		for _, tr := range section.Tools {
			s.TotalFindings += len(tr.Findings)
			s.MediumCount += len(tr.Findings)
		}
	}
	for range r.Hygiene {
		s.TotalFindings++
		s.LowCount++
	}
	r.Summary = s
}
