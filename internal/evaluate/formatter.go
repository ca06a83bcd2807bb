/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package evaluate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aymerick/raymond"
	"github.com/beevik/etree"
	runewidth "github.com/mattn/go-runewidth"

	"github.com/fulmenhq/pyneat/internal/assets"
)

// Format selects the report rendering.
type Format string

const (
	FormatConcise    Format = "concise"
	FormatMarkdown   Format = "markdown"
	FormatJSON       Format = "json"
	FormatHTML       Format = "html"
	FormatCheckstyle Format = "checkstyle"
)

// ParseFormat validates a format name from the CLI. Empty means concise.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case "":
		return FormatConcise, nil
	case FormatConcise, FormatMarkdown, FormatJSON, FormatHTML, FormatCheckstyle:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format: %s (valid: concise, markdown, json, html, checkstyle)", s)
	}
}

// maxFindingsPerGroup caps each finding group in non-verbose human output.
// JSON and checkstyle always carry everything.
const maxFindingsPerGroup = 5

// Formatter renders reports. Clean files never appear in rendered output;
// the sections stay in discovery order.
type Formatter struct {
	format  Format
	verbose bool
}

// NewFormatter creates a report formatter.
func NewFormatter(format Format, verbose bool) *Formatter {
	return &Formatter{format: format, verbose: verbose}
}

// FormatReport renders report according to the configured format.
func (f *Formatter) FormatReport(report *Report) (string, error) {
	switch f.format {
	case FormatConcise:
		return f.formatConcise(report), nil
	case FormatMarkdown:
		return f.formatMarkdown(report), nil
	case FormatJSON:
		return f.formatJSON(report)
	case FormatHTML:
		return f.formatHTML(report)
	case FormatCheckstyle:
		return f.formatCheckstyle(report)
	default:
		return "", fmt.Errorf("unsupported format: %s", f.format)
	}
}

// capFor returns how many findings of a group to show plus the overflow
// marker, empty when nothing is elided.
func (f *Formatter) capFor(total int) (int, string) {
	if f.verbose || total <= maxFindingsPerGroup {
		return total, ""
	}
	return maxFindingsPerGroup, fmt.Sprintf("... and %d more (use --verbose)", total-maxFindingsPerGroup)
}

// formatConcise prints a short, colorized report for terminals.
func (f *Formatter) formatConcise(report *Report) string {
	color := func(code string, s string) string {
		if os.Getenv("NO_COLOR") != "" {
			return s
		}
		return "\x1b[" + code + "m" + s + "\x1b[0m"
	}
	bold := func(s string) string { return color("1", s) }
	green := func(s string) string { return color("32", s) }
	yellow := func(s string) string { return color("33", s) }
	red := func(s string) string { return color("31", s) }

	var sb strings.Builder

	// Preamble: target, branch, counts, active thresholds
	fmt.Fprintf(&sb, "%s %s\n", bold("Pyneat evaluation of"), report.Metadata.Target)
	branch := report.Metadata.Branch
	if branch != "" {
		fmt.Fprintf(&sb, "  branch: %s | files analyzed: %d | time: %s\n",
			green(branch), report.Summary.FilesAnalyzed, formatDuration(report.Metadata.ExecutionTime))
	} else {
		fmt.Fprintf(&sb, "  files analyzed: %d | time: %s\n",
			report.Summary.FilesAnalyzed, formatDuration(report.Metadata.ExecutionTime))
	}
	fmt.Fprintf(&sb, "  thresholds: max cells %d, max lines per cell %d, max function defs %d\n",
		report.Thresholds.MaxCells, report.Thresholds.MaxLinesPerCell, report.Thresholds.MaxFunctionDefs)

	if len(report.Branches) > 0 {
		sb.WriteString("\nRemote branches:\n")
		nameWidth := 0
		for _, b := range report.Branches {
			if w := runewidth.StringWidth(b.Name); w > nameWidth {
				nameWidth = w
			}
		}
		for _, b := range report.Branches {
			fmt.Fprintf(&sb, "  %s  %d ahead, %d behind\n", padRight(b.Name, nameWidth), b.Ahead, b.Behind)
		}
	}
	for _, warning := range report.BranchWarnings {
		fmt.Fprintf(&sb, "%s\n", yellow("Warning: "+warning))
	}

	if len(report.Hygiene) > 0 {
		sb.WriteString("\nRepository hygiene:\n")
		for _, h := range report.Hygiene {
			fmt.Fprintf(&sb, "  %s: %s\n", h.File, h.Message)
		}
	}

	for _, section := range report.Sections {
		if !section.HasFindings() {
			continue
		}
		fmt.Fprintf(&sb, "\n%s\n", bold(section.Path))
		if len(section.Findings) > 0 {
			show, more := f.capFor(len(section.Findings))
			for _, finding := range section.Findings[:show] {
				loc := ""
				if finding.Line > 0 {
					loc = fmt.Sprintf("L%d ", finding.Line)
				}
				sev := string(finding.Severity)
				switch finding.Severity {
				case SeverityHigh:
					sev = red(sev)
				case SeverityMedium:
					sev = yellow(sev)
				}
				fmt.Fprintf(&sb, "  %s[%s] %s: %s\n", loc, sev, finding.Rule, finding.Message)
			}
			if more != "" {
				fmt.Fprintf(&sb, "  %s\n", more)
			}
		}
		for _, tr := range section.Tools {
			if len(tr.Findings) == 0 {
				continue
			}
			show, more := f.capFor(len(tr.Findings))
			fmt.Fprintf(&sb, "  %s found %d issue(s):\n", tr.Tool, len(tr.Findings))
			for _, line := range tr.Findings[:show] {
				fmt.Fprintf(&sb, "    %s\n", line)
			}
			if more != "" {
				fmt.Fprintf(&sb, "    %s\n", more)
			}
		}
	}

	sb.WriteString("\n" + strings.Repeat("-", 80) + "\n")
	rows := [][2]string{
		{"files analyzed", strconv.Itoa(report.Summary.FilesAnalyzed)},
		{"files with findings", strconv.Itoa(report.Summary.FilesWithFindings)},
		{"total findings", strconv.Itoa(report.Summary.TotalFindings)},
		{"high severity", strconv.Itoa(report.Summary.HighCount)},
		{"medium severity", strconv.Itoa(report.Summary.MediumCount)},
		{"low severity", strconv.Itoa(report.Summary.LowCount)},
	}
	labelWidth, numWidth := 0, 0
	for _, row := range rows {
		if w := runewidth.StringWidth(row[0]); w > labelWidth {
			labelWidth = w
		}
		if w := runewidth.StringWidth(row[1]); w > numWidth {
			numWidth = w
		}
	}
	for _, row := range rows {
		fmt.Fprintf(&sb, "  %s  %s\n", padRight(row[0], labelWidth), padLeft(row[1], numWidth))
	}

	if report.Summary.TotalFindings == 0 {
		sb.WriteString(green("✅ No findings") + "\n")
	} else {
		sb.WriteString(yellow(fmt.Sprintf("⚠️ %d finding(s) detected", report.Summary.TotalFindings)) + "\n")
	}

	return sb.String()
}

// formatMarkdown creates a markdown-formatted report.
func (f *Formatter) formatMarkdown(report *Report) string {
	var sb strings.Builder

	sb.WriteString("# Pyneat Evaluation Report\n\n")
	fmt.Fprintf(&sb, "**Generated:** %s\n", report.Metadata.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&sb, "**Version:** %s\n", report.Metadata.Version)
	fmt.Fprintf(&sb, "**Target:** %s\n", report.Metadata.Target)
	if report.Metadata.Branch != "" {
		fmt.Fprintf(&sb, "**Branch:** %s\n", report.Metadata.Branch)
	}
	fmt.Fprintf(&sb, "**Execution Time:** %s\n\n", formatDuration(report.Metadata.ExecutionTime))

	sb.WriteString("## Summary\n\n")
	fmt.Fprintf(&sb, "- **Files Analyzed:** %d\n", report.Summary.FilesAnalyzed)
	fmt.Fprintf(&sb, "- **Files With Findings:** %d\n", report.Summary.FilesWithFindings)
	fmt.Fprintf(&sb, "- **Total Findings:** %d (high %d, medium %d, low %d)\n",
		report.Summary.TotalFindings, report.Summary.HighCount, report.Summary.MediumCount, report.Summary.LowCount)
	fmt.Fprintf(&sb, "- **Thresholds:** max cells %d, max lines per cell %d, max function defs %d\n\n",
		report.Thresholds.MaxCells, report.Thresholds.MaxLinesPerCell, report.Thresholds.MaxFunctionDefs)

	if len(report.Branches) > 0 {
		sb.WriteString("## Remote Branches\n\n")
		sb.WriteString("| Branch | Ahead | Behind |\n")
		sb.WriteString("|--------|-------|--------|\n")
		for _, b := range report.Branches {
			fmt.Fprintf(&sb, "| %s | %d | %d |\n", b.Name, b.Ahead, b.Behind)
		}
		sb.WriteString("\n")
	}
	for _, warning := range report.BranchWarnings {
		fmt.Fprintf(&sb, "> ⚠️ %s\n", warning)
	}
	if len(report.BranchWarnings) > 0 {
		sb.WriteString("\n")
	}

	if len(report.Hygiene) > 0 {
		sb.WriteString("## Repository Hygiene\n\n")
		for _, h := range report.Hygiene {
			fmt.Fprintf(&sb, "- `%s`: %s\n", h.File, h.Message)
		}
		sb.WriteString("\n")
	}

	if report.Summary.FilesWithFindings == 0 {
		sb.WriteString("No findings. Every analyzed file is compliant.\n")
		return sb.String()
	}

	sb.WriteString("## Findings\n\n")
	for _, section := range report.Sections {
		if !section.HasFindings() {
			continue
		}
		fmt.Fprintf(&sb, "### `%s`\n\n", section.Path)
		if len(section.Findings) > 0 {
			show, more := f.capFor(len(section.Findings))
			sb.WriteString("| Line | Severity | Rule | Message |\n")
			sb.WriteString("|------|----------|------|--------|\n")
			for _, finding := range section.Findings[:show] {
				line := ""
				if finding.Line > 0 {
					line = strconv.Itoa(finding.Line)
				}
				fmt.Fprintf(&sb, "| %s | %s | %s | %s |\n", line, finding.Severity, finding.Rule, finding.Message)
			}
			if more != "" {
				fmt.Fprintf(&sb, "\n_%s_\n", more)
			}
			sb.WriteString("\n")
		}
		for _, tr := range section.Tools {
			if len(tr.Findings) == 0 {
				continue
			}
			show, more := f.capFor(len(tr.Findings))
			fmt.Fprintf(&sb, "**%s** found %d issue(s):\n\n```text\n", tr.Tool, len(tr.Findings))
			for _, line := range tr.Findings[:show] {
				sb.WriteString(line + "\n")
			}
			if more != "" {
				sb.WriteString(more + "\n")
			}
			sb.WriteString("```\n\n")
		}
	}

	return sb.String()
}

// formatJSON marshals the full report; nothing is capped or elided.
func (f *Formatter) formatJSON(report *Report) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// Template data shapes mirror the variable names the report template uses.

type templateProject struct {
	Name        string
	DisplayPath string
}

type templateMetadata struct {
	Version       string
	GeneratedAt   string
	ExecutionTime string
}

type templateFinding struct {
	Line     int
	Severity string
	Rule     string
	Message  string
}

type templateFileGroup struct {
	Filename string
	Count    int
	Findings []templateFinding
}

type templateData struct {
	Project    templateProject
	Metadata   templateMetadata
	Summary    Summary
	FileGroups []templateFileGroup
}

// formatHTML renders the report through the handlebars template. The
// embedded template is the default; PYNEAT_TEMPLATE_PATH overrides it.
func (f *Formatter) formatHTML(report *Report) (string, error) {
	data := f.buildTemplateData(report)

	if envPath := strings.TrimSpace(os.Getenv("PYNEAT_TEMPLATE_PATH")); envPath != "" {
		envPath = filepath.Clean(envPath)
		content, err := os.ReadFile(envPath) // #nosec G304 -- explicit user-supplied template override
		if err != nil {
			return "", fmt.Errorf("failed to read template %s: %w", envPath, err)
		}
		return renderHandlebars(string(content), data)
	}

	tpl, ok := assets.ReportTemplate()
	if !ok {
		return "", fmt.Errorf("embedded report template missing")
	}
	return renderHandlebars(string(tpl), data)
}

func (f *Formatter) buildTemplateData(report *Report) templateData {
	name, displayPath := projectInfo(report.Metadata.Target)

	var groups []templateFileGroup
	appendGroup := func(filename string, findings []templateFinding, total int) {
		groups = append(groups, templateFileGroup{Filename: filename, Count: total, Findings: findings})
	}

	for _, section := range report.Sections {
		if !section.HasFindings() {
			continue
		}
		var rows []templateFinding
		if len(section.Findings) > 0 {
			show, more := f.capFor(len(section.Findings))
			for _, finding := range section.Findings[:show] {
				rows = append(rows, templateFinding{
					Line:     finding.Line,
					Severity: string(finding.Severity),
					Rule:     finding.Rule,
					Message:  finding.Message,
				})
			}
			if more != "" {
				rows = append(rows, templateFinding{Severity: string(SeverityLow), Message: more})
			}
		}
		for _, tr := range section.Tools {
			if len(tr.Findings) == 0 {
				continue
			}
			show, more := f.capFor(len(tr.Findings))
			for _, line := range tr.Findings[:show] {
				lineNo, _, msg := parseToolLine(section.Path, line)
				rows = append(rows, templateFinding{
					Line:     lineNo,
					Severity: string(SeverityMedium),
					Rule:     tr.Tool,
					Message:  msg,
				})
			}
			if more != "" {
				rows = append(rows, templateFinding{Severity: string(SeverityLow), Rule: tr.Tool, Message: more})
			}
		}
		appendGroup(section.Path, rows, section.FindingCount())
	}

	for _, h := range report.Hygiene {
		appendGroup(h.File, []templateFinding{{
			Severity: string(h.Severity),
			Rule:     h.Rule,
			Message:  h.Message,
		}}, 1)
	}

	return templateData{
		Project: templateProject{Name: name, DisplayPath: displayPath},
		Metadata: templateMetadata{
			Version:       report.Metadata.Version,
			GeneratedAt:   report.Metadata.GeneratedAt.Format(time.RFC3339),
			ExecutionTime: formatDuration(report.Metadata.ExecutionTime),
		},
		Summary:    report.Summary,
		FileGroups: groups,
	}
}

var helperOnce sync.Once

// registerHelpers installs the template helpers exactly once; raymond
// panics on duplicate registration.
func registerHelpers() {
	raymond.RegisterHelper("gt", func(a, b interface{}) bool {
		aVal, _ := strconv.Atoi(fmt.Sprintf("%v", a))
		bVal, _ := strconv.Atoi(fmt.Sprintf("%v", b))
		return aVal > bVal
	})
}

func renderHandlebars(tpl string, data interface{}) (string, error) {
	helperOnce.Do(registerHelpers)
	out, err := raymond.Render(tpl, data)
	if err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return out, nil
}

// formatCheckstyle emits checkstyle XML for CI ingestion. Full output, no
// verbosity cap.
func (f *Formatter) formatCheckstyle(report *Report) (string, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("checkstyle")
	root.CreateAttr("version", "4.3")

	for _, section := range report.Sections {
		if !section.HasFindings() {
			continue
		}
		fileEl := root.CreateElement("file")
		fileEl.CreateAttr("name", section.Path)
		for _, finding := range section.Findings {
			el := fileEl.CreateElement("error")
			el.CreateAttr("line", strconv.Itoa(finding.Line))
			if finding.Column > 0 {
				el.CreateAttr("column", strconv.Itoa(finding.Column))
			}
			el.CreateAttr("severity", checkstyleSeverity(finding.Severity))
			el.CreateAttr("message", finding.Message)
			el.CreateAttr("source", "pyneat."+finding.Rule)
		}
		for _, tr := range section.Tools {
			for _, line := range tr.Findings {
				lineNo, col, msg := parseToolLine(section.Path, line)
				el := fileEl.CreateElement("error")
				el.CreateAttr("line", strconv.Itoa(lineNo))
				if col > 0 {
					el.CreateAttr("column", strconv.Itoa(col))
				}
				el.CreateAttr("severity", "warning")
				el.CreateAttr("message", msg)
				el.CreateAttr("source", "pyneat."+tr.Tool)
			}
		}
	}

	for _, h := range report.Hygiene {
		fileEl := root.CreateElement("file")
		fileEl.CreateAttr("name", h.File)
		el := fileEl.CreateElement("error")
		el.CreateAttr("line", "0")
		el.CreateAttr("severity", checkstyleSeverity(h.Severity))
		el.CreateAttr("message", h.Message)
		el.CreateAttr("source", "pyneat."+h.Rule)
	}

	doc.Indent(2)
	out, err := doc.WriteToString()
	if err != nil {
		return "", fmt.Errorf("failed to serialize checkstyle XML: %w", err)
	}
	return out, nil
}

func checkstyleSeverity(s Severity) string {
	switch s {
	case SeverityHigh:
		return "error"
	case SeverityLow:
		return "info"
	default:
		return "warning"
	}
}

// parseToolLine splits a remapped tool finding into line, column and
// message. Lines that do not carry the path:line[:col]: shape come back
// whole as the message.
func parseToolLine(path, line string) (int, int, string) {
	rest, ok := strings.CutPrefix(line, path+":")
	if !ok {
		return 0, 0, line
	}
	parts := strings.SplitN(rest, ":", 3)
	lineNo, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, line
	}
	if len(parts) == 1 {
		return lineNo, 0, ""
	}
	col, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return lineNo, 0, strings.TrimSpace(strings.Join(parts[1:], ":"))
	}
	if len(parts) == 3 {
		return lineNo, col, strings.TrimSpace(parts[2])
	}
	return lineNo, col, ""
}

func projectInfo(targetPath string) (name, displayPath string) {
	absPath, err := filepath.Abs(targetPath)
	if err != nil {
		absPath = targetPath
	}
	displayPath = absPath
	if homeDir, err := os.UserHomeDir(); err == nil && strings.HasPrefix(absPath, homeDir) {
		displayPath = "~" + strings.TrimPrefix(absPath, homeDir)
	}
	return filepath.Base(absPath), displayPath
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}

func padRight(s string, width int) string {
	if diff := width - runewidth.StringWidth(s); diff > 0 {
		return s + strings.Repeat(" ", diff)
	}
	return s
}

func padLeft(s string, width int) string {
	if diff := width - runewidth.StringWidth(s); diff > 0 {
		return strings.Repeat(" ", diff) + s
	}
	return s
}
