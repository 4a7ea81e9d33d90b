package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"usersvc/internal/api"
	"usersvc/internal/api/handler"
	"usersvc/internal/app/service"
	"usersvc/internal/app/worker"
	"usersvc/internal/domain/repository"
	"usersvc/internal/platform/cache"
	"usersvc/internal/platform/config"
	"usersvc/internal/platform/database"
	"usersvc/internal/platform/metrics"
)

const sweepLockKey = serviceName + ":revocation-sweep"

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Apply pending migrations, then serve the HTTP API until SIGINT or
SIGTERM. In-flight requests get the configured shutdown timeout to finish.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return oops.Code("CONFIG_INVALID").With("operation", "validate config").Wrap(err)
	}
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		rdb, err = cache.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
	}

	revoked, purger, err := newRevocationStore(cfg.Revocation.Backend, db, rdb)
	if err != nil {
		return err
	}

	m := metrics.New()
	users := repository.NewPgUserRepository(db)
	authService, err := service.NewAuthService(service.AuthConfig{
		SecretKey:  []byte(cfg.Auth.SecretKey),
		BcryptCost: cfg.Auth.BcryptLogRounds,
		TokenTTL:   cfg.Auth.TokenTTL(),
	}, users, revoked)
	if err != nil {
		return oops.Code("CONFIG_INVALID").With("operation", "create auth service").Wrap(err)
	}
	userService := service.NewUserService(users, authService.Hasher())

	checks := []handler.ReadinessCheck{{Name: "database", Check: db.PingContext}}
	if rdb != nil {
		checks = append(checks, handler.ReadinessCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
	}

	var wg sync.WaitGroup
	if purger != nil {
		opts := []worker.SweeperOption{worker.WithMetrics(m)}
		if rdb != nil {
			opts = append(opts, worker.WithLock(cache.NewLock(rdb, sweepLockKey, cfg.Revocation.LockTTL)))
		}
		sweeper := worker.NewRevocationSweeper(purger, cfg.Revocation.SweepInterval, logger, opts...)
		wg.Add(1)
		go func() {
			defer wg.Done()
			sweeper.Start(ctx)
		}()
	}

	server := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      api.NewRouter(authService, userService, checks, logger, m),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", server.Addr, "revocation_backend", cfg.Revocation.Backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down server")
	case err := <-serverErr:
		stop()
		wg.Wait()
		return oops.Code("SERVER_FAILED").With("addr", server.Addr).Wrap(err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return oops.Code("SHUTDOWN_FAILED").Wrap(err)
	}
	wg.Wait()

	logger.Info("server stopped")
	return nil
}

// newRevocationStore picks the revocation backend. The purger is nil for
// backends that expire entries on their own.
func newRevocationStore(backend string, db *sql.DB, rdb *redis.Client) (repository.RevocationStore, worker.Purger, error) {
	switch backend {
	case config.BackendPostgres:
		store := repository.NewPgRevocationStore(db)
		return store, store, nil
	case config.BackendRedis:
		if rdb == nil {
			return nil, nil, oops.Code("CONFIG_INVALID").Errorf("revocation backend redis needs a redis connection")
		}
		return repository.NewRedisRevocationStore(rdb), nil, nil
	case config.BackendMemory:
		store := repository.NewMemoryRevocationStore()
		return store, store, nil
	}
	return nil, nil, oops.Code("CONFIG_INVALID").With("backend", backend).Errorf("unknown revocation backend")
}
