package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/agentflare-ai/go-xsdfix/batch"
	"github.com/agentflare-ai/go-xsdfix/bsync"
	"github.com/agentflare-ai/go-xsdfix/errlog"
)

var reprocess bool

var attCmd = &cobra.Command{
	Use:   "att <dir>",
	Short: "Prepare documents for the audit template tool",
	Long: `Prepare every document in <dir> for the audit template tool. Results are
written to <dir>_ATT; documents already present there are skipped unless
--reprocess is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("reprocess") {
			cfg.Reprocess = reprocess
		}
		cat, err := newCatalogue(cfg)
		if err != nil {
			return err
		}
		jobs, err := batch.PlanATT(args[0], cat)
		if err != nil {
			return err
		}
		return runJobs(cmd, cfg, jobs)
	},
}

var v2Cmd = &cobra.Command{
	Use:   "v2 <data-dir> <errors-dir>",
	Short: "Migrate documents to BuildingSync 2.0 from their validation errors",
	Long: `Migrate the documents in <data-dir> to BuildingSync 2.0. <errors-dir> holds
one validation report per document. <data-dir> is copied to <data-dir>_fixed,
which must not exist yet, and the copies are fixed in place. Every element
tag reported as a schema validity error must have a fixer or be configured
as skipped; otherwise nothing is copied.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, errorsDir := args[0], args[1]
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cat, err := newCatalogue(cfg)
		if err != nil {
			return err
		}
		summary, err := errlog.Summarize(errorsDir, nil)
		if err != nil {
			return err
		}
		fixed := batch.SiblingDir(dataDir, batch.FixedSuffix)
		jobs, err := batch.PlanV2(dataDir, fixed, summary, cat)
		if err != nil {
			return err
		}
		if !cfg.DryRun {
			slog.Info("copying documents", "from", dataDir, "to", fixed)
			if err := batch.CopyTree(dataDir, fixed); err != nil {
				return err
			}
		}
		return runJobs(cmd, cfg, jobs)
	},
}

var addIDsCmd = &cobra.Command{
	Use:   "add-ids <dir>",
	Short: "Add an ID to every element whose type declares one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cat, err := newCatalogue(cfg)
		if err != nil {
			return err
		}
		jobs, err := batch.PlanInPlace(args[0], cat.RequiredIDsFix())
		if err != nil {
			return err
		}
		return runJobs(cmd, cfg, jobs)
	},
}

var sortCmd = &cobra.Command{
	Use:   "sort <file> <xpath>",
	Short: "Sort and deduplicate the children of the matched elements",
	Long: `Sort the children of every element in <file> matched by <xpath> into
schema order and drop adjacent duplicates. The auc prefix is bound to the
BuildingSync namespace.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cat, err := newCatalogue(cfg)
		if err != nil {
			return err
		}
		fix, err := cat.SortFix(args[1])
		if err != nil {
			return err
		}
		return runJobs(cmd, cfg, []batch.Job{{Source: args[0], Dest: args[0], Fixes: []bsync.Fix{fix}, Overwrite: true}})
	},
}

func init() {
	attCmd.Flags().BoolVar(&reprocess, "reprocess", false, "Overwrite documents already in the output directory")
	rootCmd.AddCommand(attCmd)
	rootCmd.AddCommand(v2Cmd)
	rootCmd.AddCommand(addIDsCmd)
	rootCmd.AddCommand(sortCmd)
}
