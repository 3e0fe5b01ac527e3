package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"

	"github.com/driveline/driveline/config"
	"github.com/driveline/driveline/internal/adapters/archive"
	"github.com/driveline/driveline/internal/adapters/drive"
	"github.com/driveline/driveline/internal/adapters/line"
	redisadapter "github.com/driveline/driveline/internal/adapters/redis"
	"github.com/driveline/driveline/internal/core"
	"github.com/driveline/driveline/internal/observability/statsd"
	"github.com/driveline/driveline/internal/service"
)

// buildChatClient constructs the chat platform client serving downloads,
// display names and push notifications.
func buildChatClient(cfg config.LineConfig, logger *slog.Logger) (*line.Client, error) {
	client, err := line.NewClient(line.Config{
		ChannelAccessToken: cfg.ChannelAccessToken,
		APIBaseURL:         cfg.APIBaseURL,
		DataBaseURL:        cfg.DataBaseURL,
		Timeout:            cfg.Timeout,
		Logger:             logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create line client: %w", err)
	}
	return client, nil
}

func buildDriveFactory(cfg config.DriveConfig) *drive.Factory {
	return drive.NewFactory(drive.FactoryConfig{ChunkSize: cfg.UploadChunkSize})
}

// BuildArchive returns the re-drive archive selected by cfg, or nil when
// retention is disabled.
//
//nolint:ireturn // the backend is chosen at runtime.
func BuildArchive(ctx context.Context, cfg config.ArchiveConfig, fs afero.Fs) (core.BlobArchive, error) {
	switch cfg.Backend {
	case config.ArchiveBackendLocal:
		store, err := archive.NewLocalStore(fs, cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("create local archive: %w", err)
		}
		return store, nil
	case config.ArchiveBackendS3:
		client, err := archive.NewS3Client(ctx, archive.S3Config{
			Region:          cfg.Region,
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		store, err := archive.NewS3Store(client, cfg.Bucket, cfg.Prefix)
		if err != nil {
			return nil, fmt.Errorf("create s3 archive: %w", err)
		}
		return store, nil
	default:
		return nil, nil
	}
}

// IntakeConfig contains configuration for the Redis intake consumer.
type IntakeConfig struct {
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
	Config      config.RedisConfig
	Handler     redisadapter.IngestHandler
}

// RunIntake consumes ingest requests from Redis until ctx is cancelled.
// Requests the pipeline cannot accept right now go back on the list.
func RunIntake(ctx context.Context, cfg IntakeConfig) error {
	consumer, err := redisadapter.NewIntakeConsumer(redisadapter.IntakeConsumerOptions{
		Client:       cfg.RedisClient,
		Key:          cfg.Config.IntakeKey,
		Handler:      cfg.Handler,
		Logger:       cfg.Logger,
		PollTimeout:  cfg.Config.IntakePollTimeout,
		Requeue:      requeueIngest,
		RequeueDelay: time.Second,
	})
	if err != nil {
		return fmt.Errorf("create intake consumer: %w", err)
	}

	return consumer.Run(ctx)
}

func requeueIngest(err error) bool {
	return errors.Is(err, service.ErrQueueFull) || errors.Is(err, service.ErrPipelineStopped)
}

// ReaperConfig carries what the reaper loop sweeps.
type ReaperConfig struct {
	Logger     *slog.Logger
	Config     config.ReaperConfig
	Fs         afero.Fs
	StagingDir string
	Ledger     core.LedgerRepository
	Archive    core.BlobArchive
	// Live keeps the sweep away from files of running jobs in this process.
	Live    service.LiveStagedFiles
	Metrics statsd.Sink
}

// RunReaper runs the retention loop until ctx is cancelled.
func RunReaper(ctx context.Context, cfg ReaperConfig) error {
	if cfg.Ledger == nil {
		return errors.New("reaper requires a ledger")
	}
	reaper, err := service.NewReaperService(service.ReaperServiceOptions{
		Ledger:     cfg.Ledger,
		Config:     cfg.Config,
		Fs:         cfg.Fs,
		StagingDir: cfg.StagingDir,
		Archive:    cfg.Archive,
		Live:       cfg.Live,
		Logger:     cfg.Logger,
		Metrics:    cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create reaper: %w", err)
	}
	return reaper.Run(ctx)
}
