package main

import (
	"github.com/spf13/cobra"

	"usersvc/internal/platform/database"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	var recreate bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Run all pending database migrations against the PostgreSQL database.
With --recreate every table is dropped and created again, which deletes all data.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, recreate)
		},
	}

	cmd.Flags().BoolVar(&recreate, "recreate", false, "drop all tables before migrating")

	return cmd
}

func runMigrate(cmd *cobra.Command, recreate bool) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := requireDatabase(cfg); err != nil {
		return err
	}

	ctx := cmd.Context()

	cmd.Println("Connecting to database...")
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if recreate {
		cmd.Println("Recreating database schema...")
		if err := database.Recreate(ctx, db); err != nil {
			return err
		}
	} else {
		cmd.Println("Running migrations...")
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
	}

	cmd.Println("Migrations completed successfully")
	return nil
}
