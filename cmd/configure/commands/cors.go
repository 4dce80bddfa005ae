package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/benvon/taskpulse/internal/database"
	"github.com/benvon/taskpulse/internal/models"
)

// NewCorsCmd creates the cors configuration command with list and set subcommands.
func NewCorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cors",
		Short: "Manage CORS configuration",
		Long:  "List or update the browser origins allowed to call the API.",
	}
	cmd.AddCommand(newCorsListCmd())
	cmd.AddCommand(newCorsSetCmd())
	return cmd
}

func newCorsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the stored CORS configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := openDatabase()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			out := cmd.OutOrStdout()
			c, err := database.NewCorsConfigRepository(db).Get(cmd.Context())
			if database.IsNotFound(err) {
				fmt.Fprintf(out, "No CORS configuration stored; servers allow FRONTEND_URL (%s).\n", cfg.FrontendURL)
				return nil
			}
			if err != nil {
				return fmt.Errorf("get cors config: %w", err)
			}
			fmt.Fprintln(out, "CORS configuration:")
			for _, origin := range database.AllowedOriginsSlice(c.AllowedOrigins) {
				fmt.Fprintf(out, "  Origin: %s\n", origin)
			}
			fmt.Fprintf(out, "  Allow credentials: %v\n", c.AllowCredentials)
			fmt.Fprintf(out, "  Max-Age: %d\n", c.MaxAge)
			return nil
		},
	}
}

func newCorsSetCmd() *cobra.Command {
	var origins string
	var allowCreds bool
	var maxAge int
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store a CORS configuration",
		Long:  "Update the allowed origins (comma-separated).",
		RunE: func(cmd *cobra.Command, args []string) error {
			origins = strings.TrimSpace(origins)
			if origins == "" {
				return fmt.Errorf("--origins is required (comma-separated list)")
			}
			_, db, err := openDatabase()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			c := &models.CorsConfig{
				AllowedOrigins:   origins,
				AllowCredentials: allowCreds,
				MaxAge:           maxAge,
			}
			if err := database.NewCorsConfigRepository(db).Set(cmd.Context(), c); err != nil {
				return fmt.Errorf("set cors config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "CORS origins set to %s.\n", c.AllowedOrigins)
			return nil
		},
	}
	cmd.Flags().StringVar(&origins, "origins", "", "Comma-separated allowed origins (required)")
	cmd.Flags().BoolVar(&allowCreds, "allow-credentials", true, "Allow credentials")
	cmd.Flags().IntVar(&maxAge, "max-age", 86400, "Access-Control-Max-Age (seconds)")
	return cmd
}
