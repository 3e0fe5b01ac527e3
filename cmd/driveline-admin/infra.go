package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/driveline/driveline/config"
	"github.com/driveline/driveline/internal/bootstrap"
	"github.com/driveline/driveline/internal/domain/model"
)

// ledgerOps is the slice of the pipeline the ledger commands drive.
type ledgerOps interface {
	ListFailed(ctx context.Context, recipientID string, windowHours int) ([]model.UploadAttempt, error)
	RetryFailed(ctx context.Context, recipientID string, windowHours int) (model.RetrySummary, error)
	PurgeLedger(ctx context.Context, olderThanDays int) (int64, error)
}

type folderSyncer interface {
	Sync(ctx context.Context, recipientID string) (model.FolderSyncReport, error)
}

// adminServices is what a subcommand runs against. Ledger and Folders are
// nil unless services were requested.
type adminServices struct {
	Migrate func(ctx context.Context) error
	Ledger  ledgerOps
	Folders folderSyncer
	close   func() error
}

// Close releases the underlying connections.
func (s *adminServices) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}

type connectRequest struct {
	Config       *config.AppConfig
	Logger       *slog.Logger
	WantServices bool
}

var errRedisNotConfigured = errors.New("redis not configured")

// connectAdmin opens Postgres and, when services are wanted, an optional
// Redis connection for the display-name cache.
func connectAdmin(ctx context.Context, req connectRequest) (*adminServices, error) {
	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{DBConfig: req.Config.Postgres, Logger: req.Logger})
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	svc := &adminServices{
		Migrate: func(ctx context.Context) error {
			return bootstrap.RunMigrations(ctx, db, req.Logger)
		},
		close: func() error { return closeInfra(db, nil) },
	}
	if !req.WantServices {
		return svc, nil
	}

	redisClient, err := maybeConnectRedis(req.Logger, &req.Config.Redis)
	switch {
	case errors.Is(err, errRedisNotConfigured):
		req.Logger.Info("no redis configuration detected; display names will not be cached")
	case err != nil:
		return nil, errors.Join(err, closeInfra(db, nil))
	}

	services, err := bootstrap.NewServices(ctx, &bootstrap.ServiceDeps{
		Config:      req.Config,
		DB:          db,
		RedisClient: redisClient,
		Logger:      req.Logger,
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("build services: %w", err), closeInfra(db, redisClient))
	}

	svc.Ledger = services.Pipeline
	svc.Folders = services.FolderSync
	svc.close = func() error {
		return errors.Join(services.Observability.MetricsSink.Close(), closeInfra(db, redisClient))
	}
	return svc, nil
}

// maybeConnectRedis returns a connected client when configuration is present.
//
//nolint:ireturn // returning redis.UniversalClient keeps sentinel/cluster support flexible.
func maybeConnectRedis(logger *slog.Logger, cfg *config.RedisConfig) (redis.UniversalClient, error) {
	if !hasRedisConfig(cfg) {
		return nil, errRedisNotConfigured
	}
	client, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{RedisConfig: *cfg, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}

func hasRedisConfig(cfg *config.RedisConfig) bool {
	if cfg == nil {
		return false
	}
	if cfg.UseCluster {
		return len(cfg.ClusterNodes) > 0 || cfg.URI != ""
	}
	if cfg.UseSentinel {
		return len(cfg.SentinelNodes) > 0
	}
	return cfg.URI != ""
}

func closeInfra(db *sql.DB, redisClient redis.UniversalClient) error {
	var closeErr error
	if db != nil {
		if err := db.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close db: %w", err))
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close redis: %w", err))
		}
	}
	return closeErr
}
