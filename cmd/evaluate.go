/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fulmenhq/pyneat/internal/evaluate"
	"github.com/fulmenhq/pyneat/internal/gitrepo"
	"github.com/fulmenhq/pyneat/internal/ops"
	"github.com/fulmenhq/pyneat/pkg/config"
	"github.com/fulmenhq/pyneat/pkg/logger"
	"github.com/fulmenhq/pyneat/pkg/safeio"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"
)

// evaluateCmd represents the evaluate command
var evaluateCmd = &cobra.Command{
	Use:   "evaluate [target]",
	Short: "Audit a repository for structural compliance",
	Long: `Evaluate audits every Python script and Jupyter notebook in a repository.

The target is a repository directory (default ".") or a remote URL, which is
cloned into the pyneat work directory first. Scripts are checked for
encapsulation, docstring coverage, and restricted imports; notebooks are
additionally measured against the configured cell thresholds. Installed
analyzers (pyflakes, mypy, pylint, black) contribute per-file findings.

Findings never fail the run. The exit code reflects whether the evaluation
itself could be carried out.`,
	Example: `  pyneat evaluate                                  # Current repository
  pyneat evaluate ~/work/pipelines                 # Another repository
  pyneat evaluate https://github.com/acme/etl.git  # Clone and audit
  pyneat evaluate --branch dev --branch-info       # Check out dev, report branch status
  pyneat evaluate --since 2025-01-01               # Only files changed since a date
  pyneat evaluate --format json -o report.json     # Full report to a file`,
	Args:         cobra.MaximumNArgs(1),
	RunE:         runEvaluate,
	SilenceUsage: true,
}

func init() {
	// Register command in ops registry with taxonomy
	if err := ops.RegisterCommand("evaluate", ops.GroupAudit, ops.CategoryCompliance, evaluateCmd, "Structural compliance audit of scripts and notebooks"); err != nil {
		panic(fmt.Sprintf("Failed to register evaluate command: %v", err))
	}

	setupEvaluateFlags(evaluateCmd)
}

// setupEvaluateFlags configures flags for the evaluate command (shared with tests)
func setupEvaluateFlags(cmd *cobra.Command) {
	cmd.Flags().String("branch", "", "Check out this branch before analysis")
	cmd.Flags().String("since", "", "Only analyze files changed on or after this date (YYYY-MM-DD)")
	cmd.Flags().Bool("branch-info", false, "Include remote branch status in the report")
	cmd.Flags().BoolP("verbose", "v", false, "Show every finding instead of capping per file")
	cmd.Flags().String("format", "concise", "Output format (concise, markdown, json, html, checkstyle)")
	cmd.Flags().StringP("output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringSlice("include", []string{}, "Only analyze paths matching these patterns")
	cmd.Flags().StringSlice("exclude", []string{}, "Skip paths matching these patterns")
	cmd.Flags().Int("concurrency", 0, "Number of analysis workers (0 = half the CPUs)")
	cmd.Flags().StringSlice("tools", nil, "External analyzers to run (default from config)")
	cmd.Flags().Bool("no-schema-check", false, "Skip strict notebook schema validation")
	cmd.Flags().Bool("no-ignore", false, "Ignore .gitignore when discovering files")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	branchFlag, _ := flags.GetString("branch")
	sinceFlag, _ := flags.GetString("since")
	branchInfo, _ := flags.GetBool("branch-info")
	verbose, _ := flags.GetBool("verbose")
	formatFlag, _ := flags.GetString("format")
	outputPath, _ := flags.GetString("output")
	include, _ := flags.GetStringSlice("include")
	exclude, _ := flags.GetStringSlice("exclude")
	noSchemaCheck, _ := flags.GetBool("no-schema-check")
	noIgnore, _ := flags.GetBool("no-ignore")

	format, err := evaluate.ParseFormat(formatFlag)
	if err != nil {
		return usageErr(err)
	}

	var since time.Time
	if sinceFlag != "" {
		since, err = time.Parse("2006-01-02", sinceFlag)
		if err != nil {
			return usageErr(fmt.Errorf("invalid --since date %q (want YYYY-MM-DD)", sinceFlag))
		}
	}

	// Suppress runtime logs for JSON output to keep machine output clean
	if format == evaluate.FormatJSON {
		logger.SetOutput(io.Discard)
	}

	target := "."
	if len(args) > 0 {
		target = args[0]
	}

	repo, err := acquireRepository(cmd.Context(), target)
	if err != nil {
		return err
	}
	root := repo.Root()

	cfg, err := config.Load(root)
	if err != nil {
		return configErr(fmt.Errorf("failed to load configuration: %w", err))
	}

	if branchFlag != "" {
		if err := repo.Checkout(branchFlag); err != nil {
			return configErr(fmt.Errorf("failed to check out %q: %w", branchFlag, err))
		}
	}
	branch, err := repo.CurrentBranch()
	if err != nil {
		logger.Warn(fmt.Sprintf("Could not determine current branch: %v", err))
		branch = ""
	}

	var paths []string
	if !since.IsZero() {
		paths, err = repo.FilesChangedSince(since)
		if err != nil {
			return fmt.Errorf("failed to list files changed since %s: %w", sinceFlag, err)
		}
		if len(paths) == 0 {
			logger.Info(fmt.Sprintf("No files changed since %s", sinceFlag))
			// Keep the walk so hygiene findings still surface, but scope
			// the analysis set down to nothing.
			exclude = append(exclude, "**")
		}
	}

	applyEvaluateOverrides(flags, cfg)

	engine, err := evaluate.NewEngine(evaluate.Options{
		Target:      root,
		Paths:       paths,
		Include:     include,
		Exclude:     exclude,
		Branch:      branch,
		Concurrency: cfg.Concurrency,
		Tools:       cfg.Tools,
		Thresholds:  cfg.Thresholds,
		Restricted:  cfg.RestrictedImports,
		SchemaCheck: cfg.SchemaCheck && !noSchemaCheck,
		NoIgnore:    noIgnore,
		Verbose:     verbose,
	})
	if err != nil {
		return usageErr(err)
	}

	logger.Info(fmt.Sprintf("Evaluating %s", root))
	report, err := engine.Evaluate(cmd.Context())
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	if branchInfo {
		attachBranchInfo(repo, cfg, report)
	}

	formatter := evaluate.NewFormatter(format, verbose)
	rendered, err := formatter.FormatReport(report)
	if err != nil {
		return fmt.Errorf("failed to format report: %w", err)
	}

	return emitReport(cmd, outputPath, rendered)
}

// applyEvaluateOverrides lets explicit flags win over the repository
// configuration without touching values the user left alone.
func applyEvaluateOverrides(flags *pflag.FlagSet, cfg *config.Config) {
	if flags.Changed("tools") {
		tools, _ := flags.GetStringSlice("tools")
		cfg.Tools = tools
	}
	if flags.Changed("concurrency") {
		workers, _ := flags.GetInt("concurrency")
		cfg.Concurrency = workers
	}
}

// acquireRepository resolves a local directory to its repository, or clones a
// remote URL into the pyneat work directory. An unresolvable target is a
// configuration error; findings are never involved here.
func acquireRepository(ctx context.Context, target string) (*gitrepo.Repository, error) {
	if info, err := os.Stat(target); err == nil && info.IsDir() {
		repo, err := gitrepo.Resolve(target)
		if err != nil {
			return nil, configErr(fmt.Errorf("%s is not a Git repository", target))
		}
		return repo, nil
	}

	if !looksLikeRepoURL(target) {
		return nil, configErr(fmt.Errorf("%s is neither a directory nor a repository URL", target))
	}
	if !gitrepo.IsRemoteRepo(ctx, target) {
		return nil, configErr(fmt.Errorf("repository %s is not reachable", target))
	}
	workDir, err := config.GetWorkDir()
	if err != nil {
		return nil, configErr(err)
	}
	logger.Info(fmt.Sprintf("Cloning %s", target))
	dir, err := gitrepo.CloneOrFetch(ctx, target, workDir)
	if err != nil {
		return nil, configErr(fmt.Errorf("failed to clone %s: %w", target, err))
	}
	repo, err := gitrepo.Resolve(dir)
	if err != nil {
		return nil, configErr(fmt.Errorf("clone of %s is unusable: %w", target, err))
	}
	return repo, nil
}

func looksLikeRepoURL(target string) bool {
	return strings.Contains(target, "://") || strings.HasPrefix(target, "git@")
}

// attachBranchInfo fills the branch sections of the report. Failures degrade
// to a warning because branch status is advisory.
func attachBranchInfo(repo *gitrepo.Repository, cfg *config.Config, report *evaluate.Report) {
	branches, err := repo.ListRemoteBranches(cfg.Branches.Mainline)
	if err != nil {
		logger.Warn(fmt.Sprintf("Could not list remote branches: %v", err))
		return
	}
	report.Branches = branches
	for _, name := range gitrepo.NonStandardBranches(branches, cfg.Branches.Whitelist) {
		report.BranchWarnings = append(report.BranchWarnings, fmt.Sprintf("Found non-standard branch '%s'", name))
	}
}

// emitReport writes the rendered report to the output file or stdout.
func emitReport(cmd *cobra.Command, outputPath, rendered string) error {
	if !strings.HasSuffix(rendered, "\n") {
		rendered += "\n"
	}
	if outputPath == "" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), rendered)
		return err
	}
	if err := safeio.WriteFileRestricted(outputPath, []byte(rendered)); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", outputPath, err)
	}
	logger.Info(fmt.Sprintf("Report written to %s", outputPath))
	return nil
}
