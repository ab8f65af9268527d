package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCommand(configFlag *string) *cobra.Command {
	var (
		limit    int64
		jsonFlag bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent worker runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configFlag)
			if err != nil {
				return err
			}
			defer a.Close()

			history, err := a.connectHistory(cmd.Context())
			if err != nil {
				return err
			}
			if history == nil {
				return errors.New("run history is disabled: set MONGO_URI")
			}

			runs, err := history.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonFlag || !isTerminal(cmd.OutOrStdout()) {
				return writeJSON(cmd.OutOrStdout(), runs)
			}

			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				status := "ok"
				switch {
				case r.Failed:
					status = "failed"
				case r.LockNotAcquired:
					status = "locked"
				case r.QuotaExhausted:
					status = "quota"
				}
				rows = append(rows, []string{
					r.StartedAt.Local().Format(time.DateTime),
					r.RunID,
					status,
					strconv.Itoa(r.ProcessedEpisodes),
					strconv.Itoa(r.AvailableTranscripts),
					strconv.Itoa(r.ErrorCount),
					strconv.Itoa(r.FallbackAttempts),
					(time.Duration(r.TotalElapsedMs) * time.Millisecond).Round(time.Second).String(),
				})
			}
			headers := []string{"Started", "Run", "Status", "Processed", "Available", "Errors", "Fallbacks", "Elapsed"}
			aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
			return err
		},
	}
	cmd.Flags().Int64Var(&limit, "limit", 10, "Number of runs to show")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Print runs as JSON")
	return cmd
}
