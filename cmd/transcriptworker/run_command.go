package main

import (
	"github.com/spf13/cobra"

	"podnotes/pkg/config"
)

type runFlags struct {
	lastN       int
	maxRequests int
	concurrency int
	noLock      bool
	overwrite   bool
	json        bool
}

func newRunCommand(configFlag *string) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one transcript acquisition pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configFlag)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := applyRunFlags(cmd, &flags, a.cfg); err != nil {
				return err
			}

			w, err := a.buildWorker(cmd.Context())
			if err != nil {
				return err
			}
			summary, runErr := w.Run(cmd.Context())
			if err := writeSummary(cmd.OutOrStdout(), summary, flags.json); err != nil {
				return err
			}
			return runErr
		},
	}

	cmd.Flags().IntVar(&flags.lastN, "last-n", 0, "Reprocess the N most recently transcribed episodes")
	cmd.Flags().IntVar(&flags.maxRequests, "max-requests", 0, "Maximum episodes to process this run")
	cmd.Flags().IntVar(&flags.concurrency, "concurrency", 0, "Episodes processed in parallel")
	cmd.Flags().BoolVar(&flags.noLock, "no-lock", false, "Skip the run lock")
	cmd.Flags().BoolVar(&flags.overwrite, "overwrite", false, "Update existing transcript rows instead of skipping them")
	cmd.Flags().BoolVar(&flags.json, "json", false, "Print the summary as JSON")
	return cmd
}

// applyRunFlags overrides cfg with the flags the user actually set.
func applyRunFlags(cmd *cobra.Command, flags *runFlags, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("last-n") {
		cfg.Worker.LastN = flags.lastN
	}
	if f.Changed("max-requests") {
		cfg.Worker.MaxRequests = flags.maxRequests
	}
	if f.Changed("concurrency") {
		cfg.Worker.Concurrency = flags.concurrency
	}
	if f.Changed("no-lock") {
		cfg.Worker.UseLock = !flags.noLock
	}
	if f.Changed("overwrite") {
		cfg.Worker.BulkOverwrite = flags.overwrite
	}
	return cfg.Validate()
}
