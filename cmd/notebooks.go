/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fulmenhq/pyneat/internal/notebook"
	"github.com/fulmenhq/pyneat/internal/ops"
	"github.com/fulmenhq/pyneat/pkg/work"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

// notebooksCmd represents the notebooks command
var notebooksCmd = &cobra.Command{
	Use:   "notebooks [target]",
	Short: "List decomposition metrics for every notebook",
	Long: `Notebooks decomposes every Jupyter notebook under the target and prints its
structural metrics: total cells, non-blank code lines, the longest code cell,
and the number of function definitions.

The target does not need to be a Git repository; any directory works.`,
	Example: `  pyneat notebooks               # Notebooks under the current directory
  pyneat notebooks ~/work/etl    # Another tree
  pyneat notebooks --strict      # Validate against the nbformat schema first`,
	Args:         cobra.MaximumNArgs(1),
	RunE:         runNotebooks,
	SilenceUsage: true,
}

func init() {
	if err := ops.RegisterCommand("notebooks", ops.GroupAudit, ops.CategoryStructure, notebooksCmd, "Decomposition metrics for Jupyter notebooks"); err != nil {
		panic(fmt.Sprintf("Failed to register notebooks command: %v", err))
	}

	notebooksCmd.Flags().Bool("strict", false, "Validate each notebook against the nbformat schema")
	notebooksCmd.Flags().Bool("json", false, "Output metrics in JSON format")
}

type notebookRow struct {
	Path    string            `json:"path"`
	Metrics *notebook.Metrics `json:"metrics,omitempty"`
	Error   string            `json:"error,omitempty"`
}

func runNotebooks(cmd *cobra.Command, args []string) error {
	strict, _ := cmd.Flags().GetBool("strict")
	jsonOut, _ := cmd.Flags().GetBool("json")

	target := "."
	if len(args) > 0 {
		target = args[0]
	}
	if info, err := os.Stat(target); err != nil || !info.IsDir() {
		return configErr(fmt.Errorf("%s is not a directory", target))
	}

	planner, err := work.NewPlanner(work.PlannerConfig{
		Target:       target,
		ContentTypes: []string{work.ContentTypeNotebook},
	})
	if err != nil {
		return configErr(err)
	}
	manifest, err := planner.GenerateManifest()
	if err != nil {
		return fmt.Errorf("failed to discover notebooks: %w", err)
	}

	rows := make([]notebookRow, 0, len(manifest.WorkItems))
	for _, item := range manifest.WorkItems {
		rows = append(rows, notebookMetricsRow(item, strict))
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		data, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode notebook metrics: %v", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if len(rows) == 0 {
		fmt.Fprintln(out, "No notebooks found.")
		return nil
	}

	pathWidth := runewidth.StringWidth("NOTEBOOK")
	for _, row := range rows {
		if w := runewidth.StringWidth(row.Path); w > pathWidth {
			pathWidth = w
		}
	}
	fmt.Fprintf(out, "%s  %5s  %10s  %8s  %5s\n", padCell("NOTEBOOK", pathWidth), "CELLS", "CODE LINES", "MAX CELL", "DEFS")
	for _, row := range rows {
		if row.Error != "" {
			fmt.Fprintf(out, "%s  %s\n", padCell(row.Path, pathWidth), row.Error)
			continue
		}
		m := row.Metrics
		fmt.Fprintf(out, "%s  %5d  %10d  %8d  %5d\n",
			padCell(row.Path, pathWidth), m.CellCount, m.TotalCodeLines, m.MaxLinesInCell, m.FunctionDefCount)
	}
	return nil
}

func notebookMetricsRow(item work.WorkItem, strict bool) notebookRow {
	row := notebookRow{Path: item.Path}
	data, err := os.ReadFile(item.AbsolutePath)
	if err != nil {
		row.Error = err.Error()
		return row
	}
	if strict {
		if err := notebook.ValidateStrict(data); err != nil {
			row.Error = err.Error()
			return row
		}
	}
	_, metrics, err := notebook.Decompose(data)
	if err != nil {
		row.Error = err.Error()
		return row
	}
	row.Metrics = &metrics
	return row
}
