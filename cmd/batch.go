/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fulmenhq/pyneat/internal/evaluate"
	"github.com/fulmenhq/pyneat/internal/gitrepo"
	"github.com/fulmenhq/pyneat/internal/ops"
	"github.com/fulmenhq/pyneat/pkg/config"
	"github.com/fulmenhq/pyneat/pkg/logger"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <manifest>",
	Short: "Audit every repository listed in a manifest",
	Long: `Batch clones or refreshes every repository listed in a YAML manifest and
evaluates each one, with a bounded number of repositories in flight.

Manifest format:

  repositories:
    - url: https://github.com/acme/etl.git
    - url: https://github.com/acme/reports.git
      branch: dev

A repository that cannot be cloned or evaluated is reported and does not stop
the others.`,
	Example: `  pyneat batch repos.yaml
  pyneat batch repos.yaml --concurrency 4 --format markdown`,
	Args:         cobra.ExactArgs(1),
	RunE:         runBatch,
	SilenceUsage: true,
}

func init() {
	if err := ops.RegisterCommand("batch", ops.GroupAudit, ops.CategoryOrchestration, batchCmd, "Evaluate every repository in a manifest"); err != nil {
		panic(fmt.Sprintf("Failed to register batch command: %v", err))
	}

	batchCmd.Flags().Int("concurrency", 2, "Repositories evaluated in parallel")
	batchCmd.Flags().String("format", "concise", "Output format for each report (concise, markdown, json)")
	batchCmd.Flags().BoolP("verbose", "v", false, "Show every finding instead of capping per file")
}

type batchEntry struct {
	URL    string `yaml:"url"`
	Branch string `yaml:"branch,omitempty"`
}

type batchManifest struct {
	Repositories []batchEntry `yaml:"repositories"`
}

type batchResult struct {
	entry  batchEntry
	report *evaluate.Report
	err    error
}

func runBatch(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("concurrency")
	formatFlag, _ := cmd.Flags().GetString("format")
	verbose, _ := cmd.Flags().GetBool("verbose")

	format, err := evaluate.ParseFormat(formatFlag)
	if err != nil {
		return usageErr(err)
	}
	if limit < 1 {
		limit = 1
	}
	if format == evaluate.FormatJSON {
		logger.SetOutput(io.Discard)
	}

	manifest, err := loadBatchManifest(args[0])
	if err != nil {
		return configErr(err)
	}

	workDir, err := config.GetWorkDir()
	if err != nil {
		return configErr(err)
	}

	results := make([]batchResult, len(manifest.Repositories))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(limit)
	for i, entry := range manifest.Repositories {
		g.Go(func() error {
			report, err := evaluateRemote(ctx, entry, workDir, verbose)
			results[i] = batchResult{entry: entry, report: report, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, res := range results {
		if res.err != nil {
			failed++
		}
	}

	if format == evaluate.FormatJSON {
		if err := renderBatchJSON(out, results); err != nil {
			return err
		}
	} else {
		formatter := evaluate.NewFormatter(format, verbose)
		for _, res := range results {
			fmt.Fprintf(out, "=== %s ===\n", res.entry.URL)
			if res.err != nil {
				fmt.Fprintf(out, "failed: %v\n\n", res.err)
				continue
			}
			rendered, err := formatter.FormatReport(res.report)
			if err != nil {
				return fmt.Errorf("failed to format report for %s: %w", res.entry.URL, err)
			}
			fmt.Fprintln(out, strings.TrimRight(rendered, "\n"))
			fmt.Fprintln(out)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d repositories failed", failed, len(results))
	}
	return nil
}

// renderBatchJSON emits one JSON array for the whole batch so the output
// stays parseable as a single document.
func renderBatchJSON(out io.Writer, results []batchResult) error {
	type entryReport struct {
		URL    string           `json:"url"`
		Branch string           `json:"branch,omitempty"`
		Report *evaluate.Report `json:"report,omitempty"`
		Error  string           `json:"error,omitempty"`
	}
	payload := make([]entryReport, 0, len(results))
	for _, res := range results {
		er := entryReport{URL: res.entry.URL, Branch: res.entry.Branch, Report: res.report}
		if res.err != nil {
			er.Error = res.err.Error()
		}
		payload = append(payload, er)
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode batch report: %v", err)
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

func loadBatchManifest(path string) (*batchManifest, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-supplied manifest path
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var manifest batchManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	if len(manifest.Repositories) == 0 {
		return nil, fmt.Errorf("manifest %s lists no repositories", path)
	}
	for i, entry := range manifest.Repositories {
		if entry.URL == "" {
			return nil, fmt.Errorf("manifest %s: repository %d has no url", path, i+1)
		}
	}
	return &manifest, nil
}

// evaluateRemote clones or refreshes one repository and evaluates it with the
// repository's own configuration.
func evaluateRemote(ctx context.Context, entry batchEntry, workDir string, verbose bool) (*evaluate.Report, error) {
	dir, err := gitrepo.CloneOrFetch(ctx, entry.URL, workDir)
	if err != nil {
		return nil, fmt.Errorf("clone failed: %w", err)
	}
	repo, err := gitrepo.Resolve(dir)
	if err != nil {
		return nil, fmt.Errorf("clone is unusable: %w", err)
	}
	if entry.Branch != "" {
		if err := repo.Checkout(entry.Branch); err != nil {
			return nil, fmt.Errorf("failed to check out %q: %w", entry.Branch, err)
		}
	}
	root := repo.Root()
	cfg, err := config.Load(root)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	branch, err := repo.CurrentBranch()
	if err != nil {
		branch = ""
	}
	engine, err := evaluate.NewEngine(evaluate.Options{
		Target:      root,
		Branch:      branch,
		Concurrency: cfg.Concurrency,
		Tools:       cfg.Tools,
		Thresholds:  cfg.Thresholds,
		Restricted:  cfg.RestrictedImports,
		SchemaCheck: cfg.SchemaCheck,
		Verbose:     verbose,
	})
	if err != nil {
		return nil, err
	}
	logger.Info(fmt.Sprintf("Evaluating %s", entry.URL))
	return engine.Evaluate(ctx)
}
