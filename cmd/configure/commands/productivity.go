package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benvon/taskpulse/internal/clock"
	"github.com/benvon/taskpulse/internal/database"
	"github.com/benvon/taskpulse/internal/productivity"
)

// NewProductivityCmd groups maintenance of the cached productivity aggregates
func NewProductivityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "productivity",
		Short: "Maintain productivity aggregates",
	}
	cmd.AddCommand(newProductivityRecomputeCmd())
	return cmd
}

func newProductivityRecomputeCmd() *cobra.Command {
	var userRef string
	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Recompute today's streak and score for a user",
		Long:  "Recalculate the streak and productivity score stored on the user's aggregate for today in APP_TIMEZONE.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := openDatabase()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			calendar, err := clock.New(cfg.AppTimezone)
			if err != nil {
				return err
			}
			userID, err := resolveUser(cmd.Context(), db, userRef)
			if err != nil {
				return err
			}

			updater := productivity.NewUpdater(database.NewDailyAggregateRepository(db), calendar.Today)
			agg, err := updater.RecomputeDerived(cmd.Context(), userID)
			if err != nil {
				return fmt.Errorf("recompute: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Recomputed %s for %s:\n", agg.Day.Format("2006-01-02"), userID)
			fmt.Fprintf(out, "  Created: %d\n", agg.TasksCreated)
			fmt.Fprintf(out, "  Completed: %d\n", agg.TasksCompleted)
			fmt.Fprintf(out, "  Streak: %d\n", agg.StreakDays)
			fmt.Fprintf(out, "  Score: %d\n", agg.ProductivityScore)
			return nil
		},
	}
	cmd.Flags().StringVar(&userRef, "user", "", "User ID or email (required)")
	return cmd
}
