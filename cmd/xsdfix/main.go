// Command xsdfix repairs BuildingSync documents using the ordering rules of
// their XML schema.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/agentflare-ai/go-xsdfix"
	"github.com/agentflare-ai/go-xsdfix/batch"
	"github.com/agentflare-ai/go-xsdfix/bsync"
)

var (
	schemaPath string
	configPath string
	workers    int
	dryRun     bool
	verbose    bool
	noColor    bool
)

var rootCmd = &cobra.Command{
	Use:           "xsdfix",
	Short:         "Schema-guided repairs for BuildingSync documents",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&schemaPath, "schema", "", "XSD used for ordering (overrides the config)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "Documents processed at once (overrides the config)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Print a diff per document instead of writing it")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log each document")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.New(color.FgRed, color.Bold).Sprint("error:"), err)
		stop()
		os.Exit(1)
	}
}

func useColor() bool {
	return !noColor && !color.NoColor
}

// loadConfig reads --config, or the defaults, and applies flag overrides.
func loadConfig(cmd *cobra.Command) (batch.Config, error) {
	cfg := batch.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = batch.LoadConfig(configPath); err != nil {
			return cfg, err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("schema") {
		cfg.Schema = schemaPath
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("dry-run") {
		cfg.DryRun = dryRun
	}
	return cfg, cfg.Validate()
}

func newCatalogue(cfg batch.Config) (*bsync.Catalogue, error) {
	engine, err := cfg.Engine(xsdfix.NewSchemaCache(""))
	if err != nil {
		return nil, err
	}
	return bsync.New(engine, cfg.Catalogue), nil
}

// runJobs executes jobs and reports the outcome. Any failed document makes
// the command fail after every other document was processed.
func runJobs(cmd *cobra.Command, cfg batch.Config, jobs []batch.Job) error {
	out := cmd.OutOrStdout()
	runner := batch.NewRunner(cfg)
	runner.Logger = slog.Default()
	runner.DiffOut = out
	if !cfg.DryRun {
		runner.Progress = batch.NewProgress(out, useColor())
	}

	slog.Debug("running jobs", "jobs", len(jobs), "workers", cfg.Workers, "dry_run", cfg.DryRun)
	res, err := runner.Run(cmd.Context(), jobs)
	runner.Progress.Finish()
	batch.WriteSummary(out, res)
	if err != nil {
		return err
	}
	if len(res.Failed) > 0 {
		return fmt.Errorf("%d of %d documents failed", len(res.Failed), len(jobs))
	}
	return nil
}
