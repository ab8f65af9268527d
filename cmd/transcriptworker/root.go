package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string

	rootCmd := &cobra.Command{
		Use:           "transcriptworker",
		Short:         "Acquire transcripts for recent podcast episodes",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (TOML)")

	rootCmd.AddCommand(newRunCommand(&configFlag))
	rootCmd.AddCommand(newMigrateCommand(&configFlag))
	rootCmd.AddCommand(newHistoryCommand(&configFlag))
	return rootCmd
}
