package main

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"usersvc/internal/app/service"
	"usersvc/internal/common"
	"usersvc/internal/common/security"
	"usersvc/internal/domain/repository"
	"usersvc/internal/platform/database"
)

// Default timeout for seed command.
const defaultSeedTimeout = 30 * time.Second

type seedConfig struct {
	timeout  time.Duration
	password string
}

// seedUsers are created by the seed command.
var seedUsers = []service.AddUserRequest{
	{Username: "bwallad", Email: "bwallad@example.com"},
	{Username: "martinRules", Email: "mrules@example.com"},
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the database with sample users",
		Long: `Creates a fixed set of sample users.
This command is idempotent - users that already exist are skipped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, cfg)
		},
	}

	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")
	cmd.Flags().StringVar(&cfg.password, "password", "", "password for the seeded users (random when empty)")

	return cmd
}

func runSeed(cmd *cobra.Command, sc *seedConfig) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := requireDatabase(cfg); err != nil {
		return err
	}
	hasher, err := security.NewPasswordHasher(cfg.Auth.BcryptLogRounds)
	if err != nil {
		return oops.Code("CONFIG_INVALID").With("operation", "create password hasher").Wrap(err)
	}

	// cmd.Context() carries SIGINT/SIGTERM cancellation.
	ctx, cancel := context.WithTimeout(cmd.Context(), sc.timeout)
	defer cancel()

	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	users := service.NewUserService(repository.NewPgUserRepository(db), hasher)
	return seed(ctx, cmd, users, sc.password)
}

func seed(ctx context.Context, cmd *cobra.Command, users *service.UserService, password string) error {
	for _, req := range seedUsers {
		req.Password = password
		user, err := users.AddUser(ctx, req)
		if errors.Is(err, common.ErrConflict) {
			cmd.Printf("User %s already exists, skipping\n", req.Username)
			continue
		}
		if err != nil {
			return oops.Code("SEED_FAILED").With("username", req.Username).Wrap(err)
		}
		cmd.Printf("Added user %s (id %d)\n", user.Username, user.ID)
	}
	return nil
}
