package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"bleep/internal/reports"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent pipeline runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ledger, err := reports.Open(cfg)
			if err != nil {
				return fmt.Errorf("open run history: %w", err)
			}
			defer ledger.Close()

			runs, err := ledger.ListRuns(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded yet")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				outcome := "ok"
				switch {
				case run.Stopped:
					outcome = "stopped"
				case run.Failed > 0:
					outcome = "failures"
				}
				rows = append(rows, []string{
					strconv.FormatInt(run.ID, 10),
					run.Started.Local().Format(time.RFC3339),
					strconv.Itoa(run.Discovered),
					strconv.Itoa(run.Skipped),
					strconv.Itoa(run.Completed),
					strconv.Itoa(run.Failed),
					outcome,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Started", "Discovered", "Skipped", "Completed", "Failed", "Outcome"},
				rows,
				[]int{0, 2, 3, 4, 5},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")
	return cmd
}
