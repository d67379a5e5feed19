package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/osfidash/internal/admin"
	"github.com/JonMunkholm/osfidash/internal/core"
	"github.com/JonMunkholm/osfidash/internal/history"
)

var historyOpts struct {
	limit int
	reset bool
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List or clear the server's dataset load history",
	Long: `history reads the load log the server writes to HISTORY_DSN. Only the
PostgreSQL and SQLite backends persist between runs, so a DSN is required.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if historyDSN == "" {
			return errors.New("no history database: set --history-dsn or HISTORY_DSN")
		}

		ctx := cmd.Context()
		store, err := history.Open(ctx, historyDSN, historyOpts.limit)
		if err != nil {
			return err
		}
		defer store.Close()

		if historyOpts.reset {
			if err := admin.ResetAll(ctx, admin.Target{Name: "history", Reset: store.Reset}); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "load history cleared")
			return nil
		}

		records, err := store.Recent(ctx, historyOpts.limit)
		if err != nil {
			return err
		}
		return writeHistory(cmd.OutOrStdout(), records)
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyOpts.limit, "limit", "n", history.DefaultLimit, "number of records to show")
	historyCmd.Flags().BoolVar(&historyOpts.reset, "reset", false, "delete every load record")
}

func writeHistory(w io.Writer, records []history.LoadRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "no loads recorded")
		return err
	}

	t := newTable(
		column{header: "Loaded (UTC)"},
		column{header: "File"},
		column{header: "Rows", right: true},
		column{header: "Summary", paint: color.New(color.FgCyan).SprintFunc()},
		column{header: "Took", right: true},
		column{header: "From"},
	)
	for _, r := range records {
		summary := "no"
		if r.HasSummary {
			summary = "yes"
		}
		t.add(
			r.LoadedAt.UTC().Format(time.DateTime),
			r.FileName,
			core.HumanInt(int64(r.Rows)),
			summary,
			r.Duration.Round(time.Millisecond).String(),
			r.IPAddress,
		)
	}
	return t.render(w)
}
