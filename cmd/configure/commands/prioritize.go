package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benvon/taskpulse/internal/clock"
	"github.com/benvon/taskpulse/internal/database"
	"github.com/benvon/taskpulse/internal/models"
	"github.com/benvon/taskpulse/internal/prioritizer"
)

// NewPrioritizeCmd runs the heuristic prioritizer for one user
func NewPrioritizeCmd() *cobra.Command {
	var userRef string
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "prioritize",
		Short: "Re-prioritize a user's open tasks by due date",
		Long:  "Apply the due-date heuristic to every open task of a user. With --dry-run the changes are printed but not stored.",
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

			heuristic := prioritizer.NewHeuristic(database.NewTaskRepository(db), calendar.Now, cfg.PrioritizerConcurrency)
			var updates []models.PriorityUpdate
			if dryRun {
				updates, err = heuristic.Plan(cmd.Context(), userID)
			} else {
				updates, err = heuristic.Prioritize(cmd.Context(), userID)
			}
			out := cmd.OutOrStdout()
			printUpdates(cmd, updates, dryRun)
			if err != nil {
				return fmt.Errorf("prioritize: %w", err)
			}
			if len(updates) == 0 {
				fmt.Fprintln(out, "All open tasks already have the expected priority.")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&userRef, "user", "", "User ID or email (required)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the changes without storing them")
	return cmd
}

func printUpdates(cmd *cobra.Command, updates []models.PriorityUpdate, dryRun bool) {
	verb := "Updated"
	if dryRun {
		verb = "Would update"
	}
	out := cmd.OutOrStdout()
	for _, u := range updates {
		fmt.Fprintf(out, "%s %s %q: %d -> %d\n", verb, u.TaskID, u.Title, u.OldPriority, u.NewPriority)
	}
}
