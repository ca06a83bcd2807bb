/*
Copyright © 2025 3 Leaps <info@3leaps.com>
*/
package cmd

import (
	"errors"
	"os"

	"github.com/fulmenhq/pyneat/internal/ops"
	"github.com/fulmenhq/pyneat/pkg/buildinfo"
	"github.com/fulmenhq/pyneat/pkg/exitcode"
	"github.com/fulmenhq/pyneat/pkg/logger"
	"github.com/spf13/cobra"
)

// newRootCommand builds the root command. Tests construct their own
// instance so flag state is not shared across cases.
func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pyneat",
		Short: "Structural compliance auditing for Python repositories",
		Long: `Pyneat audits Python repositories for structural compliance. Scripts and
notebooks are checked for encapsulation, docstring coverage, and restricted
imports; notebooks are additionally measured against cell-count and
cell-length thresholds, and external analyzers contribute per-file findings.

Examples:
   pyneat evaluate                  # Audit the current repository
   pyneat evaluate --format json    # Machine-readable report
   pyneat branches                  # Branch hygiene for the repository
   pyneat notebooks                 # Notebook metrics table
   pyneat batch repos.yaml          # Audit several repositories
   pyneat version                   # Show version (use --extended for build info)`,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			initializeLogger(cmd)
		},
	}

	// Add global flags
	cmd.PersistentFlags().String("log-level", "info", "Set log level (trace|debug|info|warn|error)")
	cmd.PersistentFlags().Bool("json", false, "Output logs in JSON format")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output")

	// Wire Cobra's built-in --version using pyneat's binary version
	cmd.Version = buildinfo.BinaryVersion
	cmd.SetVersionTemplate("pyneat {{.Version}}\n")

	// Grouped help by command group (Audit → Support)
	cmd.SetHelpFunc(func(cmd *cobra.Command, _ []string) {
		reg := ops.GetRegistry()
		cmd.Println(cmd.Long)
		cmd.Println()
		cmd.Println("Audit Commands:")
		for _, c := range reg.GetCommandsByGroup(ops.GroupAudit) {
			cmd.Printf("  %-12s %s\n", c.Name, c.Description)
		}
		cmd.Println()
		cmd.Println("Support Commands:")
		for _, c := range reg.GetCommandsByGroup(ops.GroupSupport) {
			cmd.Printf("  %-12s %s\n", c.Name, c.Description)
		}
		cmd.Println()
		cmd.Println("Flags:")
		cmd.Print(cmd.UsageString())
	})

	return cmd
}

// registerSubcommands attaches every shipped command. init wires the
// production tree; command tests call it on a fresh root.
func registerSubcommands(cmd *cobra.Command) {
	cmd.AddCommand(evaluateCmd)
	cmd.AddCommand(branchesCmd)
	cmd.AddCommand(notebooksCmd)
	cmd.AddCommand(batchCmd)
	cmd.AddCommand(versionCmd)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = newRootCommand()

// codedError carries the process exit code a command failure maps to.
// Findings never fail a run; only unusable targets, configuration, or
// flag errors do.
type codedError struct {
	code int
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

func usageErr(err error) error  { return &codedError{code: exitcode.UsageError, err: err} }
func configErr(err error) error { return &codedError{code: exitcode.ConfigError, err: err} }

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		logger.Error("Command execution failed", logger.Err(err))
		var coded *codedError
		if errors.As(err, &coded) {
			os.Exit(coded.code)
		}
		os.Exit(exitcode.GeneralError)
	}
}

func init() {
	// Register all subcommands with the production rootCmd
	registerSubcommands(rootCmd)
}

// initializeLogger sets up the logger based on command flags
func initializeLogger(cmd *cobra.Command) {
	logLevelStr, _ := cmd.Flags().GetString("log-level")
	jsonLogs, _ := cmd.Flags().GetBool("json")
	noColor, _ := cmd.Flags().GetBool("no-color")

	config := logger.Config{
		Level:     logger.ParseLevel(logLevelStr),
		UseColor:  !noColor,
		JSON:      jsonLogs,
		Component: "pyneat",
	}

	if err := logger.Initialize(config); err != nil {
		_, _ = os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(exitcode.ConfigError)
	}
}
