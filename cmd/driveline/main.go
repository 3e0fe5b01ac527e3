package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/driveline/driveline/config"
	"github.com/driveline/driveline/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "driveline exited", "error", err)
		os.Exit(1) //nolint:forbidigo // non-zero exit tells the supervisor to restart us
	}
}

// closers are run in reverse registration order on the way out.
type closers []func() error

func (c *closers) add(fn func() error) { *c = append(*c, fn) }

func (c closers) closeAll(ctx context.Context, logger *slog.Logger) {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			logger.ErrorContext(ctx, "shutdown close failed", "error", err)
		}
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	if err := bootstrap.ValidateServiceConfig(&cfg); err != nil {
		return err
	}
	logger.InfoContext(ctx, "starting driveline",
		"services", bootstrap.GetEnabledServices(&cfg),
		"staging_dir", cfg.Fetch.StagingDir,
		"archive_backend", cfg.Archive.Backend,
	)

	var cleanup closers
	defer func() { cleanup.closeAll(ctx, logger) }()

	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{DBConfig: cfg.Postgres, Logger: logger})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	cleanup.add(db.Close)

	if cfg.Postgres.RunMigrationsOnStart {
		if err := bootstrap.RunMigrations(ctx, db, logger); err != nil {
			return err
		}
	}

	redisClient, err := connectRedis(ctx, &cfg, logger)
	if err != nil {
		return err
	}
	if redisClient != nil {
		cleanup.add(redisClient.Close)
	}

	services, err := bootstrap.NewServices(ctx, &bootstrap.ServiceDeps{
		Config:      &cfg,
		DB:          db,
		RedisClient: redisClient,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("build services: %w", err)
	}
	cleanup.add(services.Observability.MetricsSink.Close)

	return bootstrap.RunServicesWithShutdown(&bootstrap.ServiceOrchestrationConfig{
		Config:      &cfg,
		Services:    services,
		RedisClient: redisClient,
		Logger:      logger,
	})
}

// connectRedis fails only when the intake consumer is enabled. Otherwise
// Redis backs just the display-name cache and the process runs without it.
//
//nolint:ireturn // the concrete client depends on deployment shape.
func connectRedis(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (redis.UniversalClient, error) {
	client, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{RedisConfig: cfg.Redis, Logger: logger})
	if err == nil {
		return client, nil
	}
	enabled, _ := cfg.GetEnabledServices()
	if enabled[config.ServiceModeIntake] {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	logger.WarnContext(ctx, "redis unavailable; display names will not be cached", "error", err)
	return nil, nil
}
