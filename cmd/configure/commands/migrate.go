package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewMigrateCmd applies the embedded schema to the configured database
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  "Apply the embedded schema for the configured database. Safe to run repeatedly.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openDatabase()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			if err := db.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrations applied (%s).\n", db.Dialect())
			return nil
		},
	}
}
