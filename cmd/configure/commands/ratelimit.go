package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/benvon/taskpulse/internal/database"
	"github.com/benvon/taskpulse/internal/models"
)

// NewRatelimitCmd creates the ratelimit configuration command with list and set subcommands.
func NewRatelimitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Manage rate limit configuration",
		Long:  "List or update the per-client API rate (e.g. 5-S, 100-M). Running servers pick up changes within a minute.",
	}
	cmd.AddCommand(newRatelimitListCmd())
	cmd.AddCommand(newRatelimitSetCmd())
	return cmd
}

func newRatelimitListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the stored rate limit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := openDatabase()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			out := cmd.OutOrStdout()
			c, err := database.NewRatelimitConfigRepository(db).Get(cmd.Context())
			if database.IsNotFound(err) {
				fmt.Fprintf(out, "No rate limit stored; servers use RATE_LIMIT_DEFAULT (%s).\n", cfg.RateLimitDefault)
				return nil
			}
			if err != nil {
				return fmt.Errorf("get ratelimit config: %w", err)
			}
			fmt.Fprintln(out, "Rate limit configuration:")
			fmt.Fprintf(out, "  Rate: %s\n", c.Rate)
			fmt.Fprintf(out, "  Updated: %s\n", c.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
			return nil
		},
	}
}

func newRatelimitSetCmd() *cobra.Command {
	var rate string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store a rate limit",
		Long:  "Update the rate limit (e.g. 5-S, 100-M, 1000-H).",
		RunE: func(cmd *cobra.Command, args []string) error {
			rate = strings.TrimSpace(rate)
			if rate == "" {
				return fmt.Errorf("--rate is required (e.g. 5-S, 100-M)")
			}
			_, db, err := openDatabase()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			c := &models.RatelimitConfig{Rate: rate}
			if err := database.NewRatelimitConfigRepository(db).Set(cmd.Context(), c); err != nil {
				return fmt.Errorf("set ratelimit config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rate limit set to %s.\n", c.Rate)
			return nil
		},
	}
	cmd.Flags().StringVar(&rate, "rate", "", "Rate (e.g. 5-S, 100-M, 1000-H) (required)")
	return cmd
}
