package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dkalashnik/telegram-session-log/pkg/legacy"
)

func newImportLegacyCommand(opts *rootOptions) *cobra.Command {
	var b legacy.Backfill
	var start string

	cmd := &cobra.Command{
		Use:   "import-legacy",
		Short: "Add past sessions known only by their totals",
		Long: `Add past sessions known only by their totals.

The total result and hours are split evenly over --sessions records dated on
consecutive days from --start. Counts are set to 0 and subjective answers to n/a.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			startDate, err := time.Parse("2006-01-02", start)
			if err != nil {
				return fmt.Errorf("invalid --start %q: %w", start, err)
			}
			b.Start = startDate

			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			n, err := b.Apply(cmd.Context(), a.store, a.questionnaire, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d past sessions added for user %d\n", n, b.UserID)
			return nil
		},
	}

	cmd.Flags().Int64Var(&b.UserID, "user-id", 0, "Telegram user id the sessions belong to")
	cmd.Flags().StringVar(&b.UserName, "user-name", "", "Display name stored with the sessions")
	cmd.Flags().IntVar(&b.Sessions, "sessions", 0, "Number of sessions to create")
	cmd.Flags().Float64Var(&b.TotalResult, "total-result", 0, "Total result over all sessions")
	cmd.Flags().Float64Var(&b.TotalHours, "total-hours", 0, "Total hours over all sessions")
	cmd.Flags().StringVar(&start, "start", "2024-06-01", "Date of the first session (YYYY-MM-DD)")
	cmd.Flags().StringVar(&b.Location, "location", legacy.DefaultLocation, "Location stored with the sessions")
	_ = cmd.MarkFlagRequired("user-id")
	_ = cmd.MarkFlagRequired("sessions")
	return cmd
}
