// Package commands implements the taskpulse-configure CLI
package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/benvon/taskpulse/internal/config"
	"github.com/benvon/taskpulse/internal/database"
)

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "taskpulse-configure",
		Short:         "Administration tool for the taskpulse API",
		Long:          "Apply migrations, manage runtime settings stored in the database and run maintenance on user data.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(NewMigrateCmd())
	root.AddCommand(NewRatelimitCmd())
	root.AddCommand(NewCorsCmd())
	root.AddCommand(NewProductivityCmd())
	root.AddCommand(NewPrioritizeCmd())
	root.AddCommand(NewOIDCCmd())
	return root
}

// openDatabase loads configuration and connects to its database
func openDatabase() (*config.Config, *database.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return cfg, db, nil
}

// resolveUser accepts a user ID or an email address
func resolveUser(ctx context.Context, db *database.DB, ref string) (uuid.UUID, error) {
	if ref == "" {
		return uuid.Nil, fmt.Errorf("--user is required (user ID or email)")
	}
	if id, err := uuid.Parse(ref); err == nil {
		return id, nil
	}
	user, err := database.NewUserRepository(db).GetByEmail(ctx, ref)
	if err != nil {
		if database.IsNotFound(err) {
			return uuid.Nil, fmt.Errorf("no user with email %q", ref)
		}
		return uuid.Nil, fmt.Errorf("look up user: %w", err)
	}
	return user.ID, nil
}
