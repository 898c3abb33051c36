package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dkalashnik/telegram-session-log/pkg/chart"
	"github.com/dkalashnik/telegram-session-log/pkg/stats"
)

func newStatsCommand(opts *rootOptions) *cobra.Command {
	var userID int64
	var all bool
	var chartDir string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print session statistics from the record store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && userID == 0 {
				return fmt.Errorf("either --user-id or --all is required")
			}
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			aggregator, err := stats.NewAggregator(a.store, a.questionnaire)
			if err != nil {
				return err
			}

			var reports []stats.Report
			if all {
				reports, err = aggregator.ComputeAll(cmd.Context())
			} else {
				var report stats.Report
				report, err = aggregator.Compute(cmd.Context(), userID)
				reports = []stats.Report{report}
			}
			if err != nil {
				return err
			}
			if len(reports) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No session recorded yet.")
				return nil
			}

			var renderer *chart.Renderer
			if chartDir != "" {
				if renderer, err = chart.NewRenderer(chartDir, a.questionnaire.ResultUnit); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			for _, report := range reports {
				text, err := stats.Summarize(report)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, text)
				if renderer != nil && !report.Empty() {
					path, err := renderer.WriteFile(report.UserID, report.UserName, report.Series)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Chart: %s\n", path)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user-id", 0, "Report for this Telegram user id")
	cmd.Flags().BoolVar(&all, "all", false, "Report for every user in the store")
	cmd.Flags().StringVar(&chartDir, "chart-dir", "", "Also write a PNG chart per user into this directory")
	return cmd
}
