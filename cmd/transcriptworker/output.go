package main

import (
	"encoding/json"
	"io"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"podnotes/pkg/domain"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range r {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeSummary prints a table on a terminal and JSON otherwise.
func writeSummary(w io.Writer, s domain.WorkerSummary, forceJSON bool) error {
	if forceJSON || !isTerminal(w) {
		return writeJSON(w, s)
	}
	_, err := io.WriteString(w, renderSummary(s)+"\n")
	return err
}

func renderSummary(s domain.WorkerSummary) string {
	itoa := strconv.Itoa
	rows := [][]string{
		{"Run", s.RunID},
		{"Total episodes", itoa(s.TotalEpisodes)},
		{"Processed", itoa(s.ProcessedEpisodes)},
		{"Skipped", itoa(s.SkippedEpisodes)},
		{"Available transcripts", itoa(s.AvailableTranscripts)},
		{"Processing", itoa(s.ProcessingCount)},
		{"Not found", itoa(s.NotFoundCount)},
		{"No match", itoa(s.NoMatchCount)},
		{"Errors", itoa(s.ErrorCount)},
		{"Fallback attempts", itoa(s.FallbackAttempts)},
		{"Fallback successes", itoa(s.FallbackSuccesses)},
		{"Fallback failures", itoa(s.FallbackFailures)},
		{"Fallback skipped (budget)", itoa(s.FallbackSkippedBudget)},
		{"Credits consumed", itoa(s.CreditsConsumed)},
		{"Quota exhausted", strconv.FormatBool(s.QuotaExhausted)},
		{"Elapsed", s.TotalElapsed().String()},
		{"Average per episode (ms)", strconv.FormatInt(s.AverageProcessingTimeMs, 10)},
	}
	if s.LockNotAcquired {
		rows = append(rows, []string{"Lock", "held by another run"})
	}
	return renderTable([]string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight})
}
