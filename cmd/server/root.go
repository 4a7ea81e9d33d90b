package main

import (
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"usersvc/internal/platform/config"
	"usersvc/internal/platform/logging"
)

const serviceName = "usersvc"

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command. Without a subcommand it serves HTTP.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   serviceName,
		Short: "User registration and token authentication service",
		Long: `usersvc stores user accounts in PostgreSQL and issues signed bearer
tokens for them. Logged-out tokens are kept in a revocation store until
they expire.`,
		SilenceUsage: true,
		RunE:         runServe,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file path")
	flags.String("port", "", "HTTP listen port")
	flags.String("database-url", "", "PostgreSQL connection URL")
	flags.String("redis-addr", "", "Redis address (host:port)")
	flags.String("revocation-backend", "", "where revoked tokens are kept: postgres, redis or memory")
	flags.String("log-format", "", "log format: json or text")
	flags.String("log-level", "", "log level: debug, info, warn or error")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedCmd())

	return cmd
}

// loadConfig reads the configuration for cmd, letting its changed flags
// override file and environment values.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "load config").Wrap(err)
	}
	return cfg, nil
}

// requireDatabase is the validation used by commands that only touch the
// database.
func requireDatabase(cfg *config.Config) error {
	if cfg.Database.ConnString() == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database connection settings are required")
	}
	return nil
}

func newLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, error) {
	logger, err := logging.Setup(serviceName, version, cfg.Log.Format, cfg.Log.Level, cmd.ErrOrStderr())
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "set up logging").Wrap(err)
	}
	return logger, nil
}
