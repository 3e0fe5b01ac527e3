package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"golang.org/x/oauth2"

	"github.com/driveline/driveline/config"
	"github.com/driveline/driveline/internal/adapters/drive"
	"github.com/driveline/driveline/internal/adapters/line"
	"github.com/driveline/driveline/internal/core"
	"github.com/driveline/driveline/internal/data"
	"github.com/driveline/driveline/internal/domain/model"
	"github.com/driveline/driveline/internal/domain/upload"
	"github.com/driveline/driveline/internal/observability/notify/pagerduty"
	"github.com/driveline/driveline/internal/observability/notify/slack"
	"github.com/driveline/driveline/internal/observability/statsd"
	"github.com/driveline/driveline/internal/service"
	"github.com/driveline/driveline/internal/service/opsnotifier"
)

// nameCachePrefix namespaces cached context display names in Redis.
const nameCachePrefix = "driveline:names"

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Pipeline      *service.Pipeline
	Uploader      *service.Uploader
	Fetcher       *service.FetchService
	Folders       *service.FolderService
	FolderSync    *service.FolderSyncService
	Names         *service.NameResolver
	Ledger        core.LedgerRepository
	Archive       core.BlobArchive
	Fs            afero.Fs
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink    *statsd.Client
	MetricsConfig  config.ObservabilityMetricsConfig
	OpsNotifier    *opsnotifier.Service
	NotifierConfig config.ObservabilityNotificationsConfig
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
	// Fs backs staging and the local archive. Defaults to the OS filesystem.
	Fs afero.Fs
}

// serviceRepositories groups data adapters backing service ports.
type serviceRepositories struct {
	Ledger      *data.LedgerRepo
	Mappings    *data.FolderMappingRepo
	Bindings    *data.BindingRepo
	Credentials *data.CredentialRepo
	Cache       core.CacheRepository
}

// serviceAdapters groups the external systems services talk to.
type serviceAdapters struct {
	Chat    *line.Client
	Drives  *drive.Factory
	Archive core.BlobArchive
}

// buildObservability configures metrics and notification adapters.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  "driveline",
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	return ObservabilityContainer{
		MetricsSink:    metricsSink,
		MetricsConfig:  cfg.Metrics,
		OpsNotifier:    buildOpsNotifier(obsLogger, cfg.Notifications),
		NotifierConfig: cfg.Notifications,
	}
}

// buildOpsNotifier registers the enabled operator sinks. A sink that fails
// to build is logged and skipped.
func buildOpsNotifier(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig) *opsnotifier.Service {
	var sinks []opsnotifier.SinkRegistration

	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL: cfg.Slack.WebhookURL,
			Channel:    cfg.Slack.Channel,
			Username:   cfg.Slack.Username,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			logger.Error("failed to initialise slack notifier", "error", err)
		} else {
			sinks = append(sinks, opsnotifier.SinkRegistration{Name: "slack", Sink: client})
		}
	}

	if cfg.PagerDuty.Enabled {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Endpoint:   cfg.PagerDuty.Endpoint,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			logger.Error("failed to initialise pagerduty notifier", "error", err)
		} else {
			sinks = append(sinks, opsnotifier.SinkRegistration{Name: "pagerduty", Sink: client})
		}
	}

	return opsnotifier.NewService(opsnotifier.Options{
		Logger: logger,
		Sinks:  sinks,
		// The recipient already hears about these through chat.
		SkipStatuses: []string{string(model.StatusAuthInvalid)},
	})
}

// buildRepositories builds repositories backing service ports; no business rules here.
func buildRepositories(db *sql.DB, rdb redis.UniversalClient, cfg *config.AppConfig, logger *slog.Logger) *serviceRepositories {
	repos := &serviceRepositories{
		Ledger:   data.NewLedgerRepo(db, nil),
		Mappings: data.NewFolderMappingRepo(db, data.FolderMappingRepoOptions{Logger: logger}),
		Bindings: data.NewBindingRepo(db),
		Credentials: data.NewCredentialRepo(db, data.CredentialRepoOptions{
			OAuth:  oauthConfig(cfg.Drive),
			Logger: logger,
		}),
	}
	if rdb != nil {
		repos.Cache = data.NewRedisCacheRepo(rdb, nameCachePrefix)
	}
	return repos
}

func oauthConfig(cfg config.DriveConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: cfg.TokenURL},
	}
}

func buildAdapters(ctx context.Context, cfg *config.AppConfig, fs afero.Fs, logger *slog.Logger) (*serviceAdapters, error) {
	chat, err := buildChatClient(cfg.Line, logger)
	if err != nil {
		return nil, err
	}
	archive, err := BuildArchive(ctx, cfg.Archive, fs)
	if err != nil {
		return nil, err
	}
	if archive == nil {
		logger.Warn("archive disabled; failed uploads cannot be re-driven")
	}
	return &serviceAdapters{
		Chat:    chat,
		Drives:  buildDriveFactory(cfg.Drive),
		Archive: archive,
	}, nil
}

func newSupervisor(cfg config.PipelineConfig) (*upload.Supervisor, error) {
	policy := upload.DefaultPolicy()
	policy.MaxRetries = cfg.MaxRetries
	policy.InitialDelay = cfg.RetryInitialDelay
	policy.MaxDelay = cfg.RetryMaxDelay
	return upload.NewSupervisor(policy)
}

// NewServices wires repositories, adapters and services.
func NewServices(ctx context.Context, deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps with config are required")
	}
	if deps.DB == nil {
		return ServiceContainer{}, errors.New("database connection is required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fs := deps.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	observability := buildObservability(logger, cfg.Observability)
	repos := buildRepositories(deps.DB, deps.RedisClient, cfg, logger)
	adapters, err := buildAdapters(ctx, cfg, fs, logger)
	if err != nil {
		return ServiceContainer{}, err
	}

	names, err := service.NewNameResolver(service.NameResolverOptions{
		Directory: adapters.Chat,
		Cache:     repos.Cache,
		TTL:       cfg.Redis.NameTTL,
		Logger:    logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create name resolver: %w", err)
	}

	folders, err := service.NewFolderService(service.FolderServiceOptions{
		Repo:           repos.Mappings,
		RootFolderName: cfg.Drive.RootFolderName,
		Logger:         logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create folder service: %w", err)
	}

	supervisor, err := newSupervisor(cfg.Pipeline)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create supervisor: %w", err)
	}

	uploader, err := service.NewUploader(service.UploaderOptions{
		Credentials: repos.Credentials,
		Drives:      adapters.Drives,
		Folders:     folders,
		Ledger:      repos.Ledger,
		Supervisor:  supervisor,
		Fs:          fs,
		Names:       names,
		Notifier:    adapters.Chat,
		Ops:         observability.OpsNotifier,
		Metrics:     observability.MetricsSink,
		Logger:      logger,
		SoftLimit:   cfg.Pipeline.TaskSoftLimit,
		HardLimit:   cfg.Pipeline.TaskHardLimit,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create uploader: %w", err)
	}

	fetcher, err := service.NewFetchService(service.FetchServiceOptions{
		Source:     adapters.Chat,
		Fs:         fs,
		StagingDir: cfg.Fetch.StagingDir,
		MaxRetries: cfg.Fetch.MaxRetries,
		RetryDelay: cfg.Fetch.RetryDelay,
		Timeout:    cfg.Fetch.Timeout,
		Logger:     logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create fetch service: %w", err)
	}

	dispatcher, err := service.NewDispatcher(repos.Bindings)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create dispatcher: %w", err)
	}

	cleaner, err := service.NewStagedFileCleaner(fs, adapters.Archive, logger)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create staged file cleaner: %w", err)
	}

	pipeline, err := service.NewPipeline(service.PipelineOptions{
		Dispatcher:      dispatcher,
		Uploader:        uploader,
		Cleaner:         cleaner,
		Ledger:          repos.Ledger,
		Fs:              fs,
		StagingDir:      cfg.Fetch.StagingDir,
		Fetcher:         fetcher,
		Archive:         adapters.Archive,
		Workers:         cfg.Pipeline.Workers,
		QueueSize:       cfg.Pipeline.QueueSize,
		TaskConcurrency: cfg.Pipeline.TaskConcurrency,
		PurgeBatchSize:  cfg.Reaper.BatchSize,
		Metrics:         observability.MetricsSink,
		Logger:          logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create pipeline: %w", err)
	}

	folderSync, err := service.NewFolderSyncService(service.FolderSyncServiceOptions{
		Mappings:    repos.Mappings,
		Credentials: repos.Credentials,
		Drives:      adapters.Drives,
		Folders:     folders,
		Names:       names,
		Logger:      logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create folder sync service: %w", err)
	}

	return ServiceContainer{
		Pipeline:      pipeline,
		Uploader:      uploader,
		Fetcher:       fetcher,
		Folders:       folders,
		FolderSync:    folderSync,
		Names:         names,
		Ledger:        repos.Ledger,
		Archive:       adapters.Archive,
		Fs:            fs,
		Observability: observability,
	}, nil
}
