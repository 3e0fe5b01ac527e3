package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/driveline/driveline/config"
	"github.com/driveline/driveline/internal/service"
)

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

const (
	// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
	shutdownWaitTimeout = 15 * time.Second
)

// serviceStartupDeps groups dependencies for service startup.
type serviceStartupDeps struct {
	ctx             context.Context
	cfg             *ServiceOrchestrationConfig
	logger          *slog.Logger
	enabledServices map[config.ServiceMode]bool
	errCh           chan error
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
	// stopTimeout overrides shutdownWaitTimeout.
	stopTimeout time.Duration
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	mode        config.ServiceMode
	name        string
	done        <-chan struct{}
	cancel      context.CancelFunc
	stopTimeout time.Duration
}

func launchBackground(
	ctx context.Context,
	deps *serviceStartupDeps,
	descriptor backgroundService,
) (<-chan struct{}, context.CancelFunc) {
	if deps == nil || !deps.enabledServices[descriptor.mode] {
		return nil, nil
	}

	svcCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := descriptor.start(svcCtx); err != nil {
			errMsg := fmt.Errorf("%s failed: %w", descriptor.name, err)
			select {
			case deps.errCh <- errMsg:
			case <-ctx.Done():
			default:
				deps.logger.WarnContext(ctx, "dropping background service error",
					"service", descriptor.name,
					"error", errMsg,
				)
			}
		}
	}()

	deps.logger.InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)

	return done, cancel
}

func startBackgroundServices(deps *serviceStartupDeps, services []backgroundService) []backgroundServiceHandle {
	if deps == nil {
		return nil
	}
	handles := make([]backgroundServiceHandle, 0, len(services))

	for _, svc := range services {
		done, cancel := launchBackground(deps.ctx, deps, svc)
		if done == nil {
			continue
		}

		timeout := svc.stopTimeout
		if timeout <= 0 {
			timeout = shutdownWaitTimeout
		}
		handles = append(handles, backgroundServiceHandle{
			mode:        svc.mode,
			name:        svc.name,
			done:        done,
			cancel:      cancel,
			stopTimeout: timeout,
		})
	}

	return handles
}

// pipelineStopTimeout covers a task that starts its full retry chain just
// before shutdown, since stopping the pipeline does not cancel running tasks.
func pipelineStopTimeout(cfg config.PipelineConfig) time.Duration {
	retries := time.Duration(max(cfg.MaxRetries, 0))
	return (retries+1)*cfg.TaskHardLimit + retries*cfg.RetryMaxDelay + shutdownWaitTimeout
}

func newPipelineBackgroundService(deps *serviceStartupDeps) backgroundService {
	var stopTimeout time.Duration
	if deps.cfg.Config != nil {
		stopTimeout = pipelineStopTimeout(deps.cfg.Config.Pipeline)
	}
	return backgroundService{
		mode: config.ServiceModePipeline,
		name: "pipeline",
		start: func(ctx context.Context) error {
			if deps.cfg.Services.Pipeline == nil {
				return errors.New("pipeline not initialised")
			}
			return deps.cfg.Services.Pipeline.Run(ctx)
		},
		stopTimeout: stopTimeout,
	}
}

func newReaperBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeReaper,
		name: "reaper",
		start: func(ctx context.Context) error {
			var (
				reaperCfg  config.ReaperConfig
				stagingDir string
				live       service.LiveStagedFiles
			)
			if deps.cfg.Config != nil {
				reaperCfg = deps.cfg.Config.Reaper
				stagingDir = deps.cfg.Config.Fetch.StagingDir
			}
			if deps.cfg.Services.Pipeline != nil {
				live = deps.cfg.Services.Pipeline
			}
			return RunReaper(ctx, ReaperConfig{
				Logger:     deps.logger,
				Config:     reaperCfg,
				Fs:         deps.cfg.Services.Fs,
				StagingDir: stagingDir,
				Ledger:     deps.cfg.Services.Ledger,
				Archive:    deps.cfg.Services.Archive,
				Live:       live,
				Metrics:    deps.cfg.Services.Observability.MetricsSink,
			})
		},
	}
}

func newIntakeBackgroundService(deps *serviceStartupDeps) backgroundService {
	var stopTimeout time.Duration
	if deps.cfg.Config != nil {
		// A popped request finishes its download before the consumer exits.
		fetch := deps.cfg.Config.Fetch
		stopTimeout = time.Duration(fetch.MaxRetries+1)*(fetch.Timeout+fetch.RetryDelay) + shutdownWaitTimeout
	}
	return backgroundService{
		mode: config.ServiceModeIntake,
		name: "intake consumer",
		start: func(ctx context.Context) error {
			if deps.cfg.RedisClient == nil {
				return errors.New("intake requires a redis connection")
			}
			var redisCfg config.RedisConfig
			if deps.cfg.Config != nil {
				redisCfg = deps.cfg.Config.Redis
			}
			return RunIntake(ctx, IntakeConfig{
				RedisClient: deps.cfg.RedisClient,
				Logger:      deps.logger,
				Config:      redisCfg,
				Handler:     deps.cfg.Services.Pipeline,
			})
		},
		stopTimeout: stopTimeout,
	}
}

// buildBackgroundServices lists services in start order. Shutdown runs in
// reverse so the intake consumer drains into a live pipeline.
func buildBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	if deps == nil {
		return nil
	}
	return []backgroundService{
		newPipelineBackgroundService(deps),
		newReaperBackgroundService(deps),
		newIntakeBackgroundService(deps),
	}
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	serviceCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	errCh := make(chan error, errorChannelBufferSize(enabledServices))

	deps := &serviceStartupDeps{
		ctx:             serviceCtx,
		cfg:             cfg,
		logger:          logger,
		enabledServices: enabledServices,
		errCh:           errCh,
	}
	handles := startBackgroundServices(deps, buildBackgroundServices(deps))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	return waitForShutdown(shutdownConfig{
		quit:        quit,
		cancel:      cancel,
		errCh:       errCh,
		logger:      logger,
		backgrounds: handles,
	})
}

func errorChannelCapacity(enabled map[config.ServiceMode]bool) int {
	count := 0
	for _, mode := range config.ValidServiceModes() {
		if enabled[mode] {
			count++
		}
	}
	return count
}

func errorChannelBufferSize(enabled map[config.ServiceMode]bool) int {
	return errorChannelCapacity(enabled) + 1
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	quit        <-chan os.Signal
	cancel      context.CancelFunc
	errCh       <-chan error
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	select {
	case <-cfg.quit:
		cfg.logger.Info("shutting down services...")
		gracefulStop(cfg)
		return nil
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		gracefulStop(cfg)
		return err
	}
}

// gracefulStop stops background services in reverse start order, then
// cancels whatever is left.
func gracefulStop(cfg shutdownConfig) {
	for i := len(cfg.backgrounds) - 1; i >= 0; i-- {
		svc := cfg.backgrounds[i]
		if svc.cancel != nil {
			svc.cancel()
		}
		waitForService(svc.done, svc.name, svc.stopTimeout, cfg.logger)
	}
	if cfg.cancel != nil {
		cfg.cancel()
	}
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, timeout time.Duration, logger *slog.Logger) {
	if done == nil {
		return
	}
	if timeout <= 0 {
		timeout = shutdownWaitTimeout
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(timeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
