/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fulmenhq/pyneat/internal/gitrepo"
	"github.com/fulmenhq/pyneat/internal/ops"
	"github.com/fulmenhq/pyneat/pkg/config"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

// branchesCmd represents the branches command
var branchesCmd = &cobra.Command{
	Use:   "branches [target]",
	Short: "Report branch hygiene for a repository",
	Long: `Branches reports the current branch, every remote branch with its commits
ahead of and behind the configured mainline, and a warning for each branch
whose name falls outside the configured whitelist.`,
	Example: `  pyneat branches                # Current repository
  pyneat branches ~/work/etl     # Another repository
  pyneat branches --json         # Machine-readable report`,
	Args:         cobra.MaximumNArgs(1),
	RunE:         runBranches,
	SilenceUsage: true,
}

func init() {
	if err := ops.RegisterCommand("branches", ops.GroupAudit, ops.CategoryCollaboration, branchesCmd, "Branch hygiene report for a repository"); err != nil {
		panic(fmt.Sprintf("Failed to register branches command: %v", err))
	}

	branchesCmd.Flags().Bool("json", false, "Output branch report in JSON format")
}

func runBranches(cmd *cobra.Command, args []string) error {
	jsonOut, _ := cmd.Flags().GetBool("json")

	target := "."
	if len(args) > 0 {
		target = args[0]
	}

	repo, err := acquireRepository(cmd.Context(), target)
	if err != nil {
		return err
	}
	cfg, err := config.Load(repo.Root())
	if err != nil {
		return configErr(fmt.Errorf("failed to load configuration: %w", err))
	}

	current, err := repo.CurrentBranch()
	if err != nil {
		return fmt.Errorf("failed to determine current branch: %w", err)
	}
	branches, err := repo.ListRemoteBranches(cfg.Branches.Mainline)
	if err != nil {
		return fmt.Errorf("failed to list remote branches: %w", err)
	}
	warnings := gitrepo.NonStandardBranches(branches, cfg.Branches.Whitelist)

	out := cmd.OutOrStdout()
	if jsonOut {
		payload := struct {
			Current     string               `json:"current"`
			Mainline    string               `json:"mainline"`
			Branches    []gitrepo.BranchInfo `json:"branches"`
			NonStandard []string             `json:"non_standard,omitempty"`
		}{current, cfg.Branches.Mainline, branches, warnings}
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode branch report: %v", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintf(out, "Current branch: %s\n", current)
	fmt.Fprintf(out, "Mainline:       %s\n", cfg.Branches.Mainline)
	if len(branches) == 0 {
		fmt.Fprintln(out, "\nNo remote branches found.")
	} else {
		nameWidth := runewidth.StringWidth("BRANCH")
		for _, b := range branches {
			if w := runewidth.StringWidth(b.Name); w > nameWidth {
				nameWidth = w
			}
		}
		fmt.Fprintf(out, "\n%s  %6s  %6s\n", padCell("BRANCH", nameWidth), "AHEAD", "BEHIND")
		for _, b := range branches {
			fmt.Fprintf(out, "%s  %6d  %6d\n", padCell(b.Name, nameWidth), b.Ahead, b.Behind)
		}
	}
	if len(warnings) > 0 {
		fmt.Fprintln(out)
		for _, name := range warnings {
			fmt.Fprintf(out, "Warning: Found non-standard branch '%s'\n", name)
		}
	}
	return nil
}

// padCell pads s with spaces to the given display width.
func padCell(s string, width int) string {
	if pad := width - runewidth.StringWidth(s); pad > 0 {
		return s + strings.Repeat(" ", pad)
	}
	return s
}
