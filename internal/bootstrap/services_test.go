package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/caarlos0/env/v11"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveline/driveline/config"
	"github.com/driveline/driveline/internal/adapters/archive"
	"github.com/driveline/driveline/internal/data/memstore"
	"github.com/driveline/driveline/internal/service"
)

func TestErrorChannelCapacity(t *testing.T) {
	tests := []struct {
		name  string
		modes []config.ServiceMode
		want  int
	}{
		{
			name: "no services enabled",
			want: 0,
		},
		{
			name:  "pipeline only",
			modes: []config.ServiceMode{config.ServiceModePipeline},
			want:  1,
		},
		{
			name:  "pipeline and intake",
			modes: []config.ServiceMode{config.ServiceModePipeline, config.ServiceModeIntake},
			want:  2,
		},
		{
			name:  "all services enabled",
			modes: config.ValidServiceModes(),
			want:  3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enabled := make(map[config.ServiceMode]bool, len(tt.modes))
			for _, mode := range tt.modes {
				enabled[mode] = true
			}

			if got := errorChannelCapacity(enabled); got != tt.want {
				t.Fatalf("errorChannelCapacity(%v) = %d, want %d", tt.modes, got, tt.want)
			}
			if got := errorChannelBufferSize(enabled); got != tt.want+1 {
				t.Fatalf("errorChannelBufferSize(%v) = %d, want %d", tt.modes, got, tt.want+1)
			}
		})
	}
}

func TestValidateServiceConfig(t *testing.T) {
	tests := []struct {
		name     string
		services string
		wantErr  string
	}{
		{name: "pipeline and intake", services: "pipeline,intake"},
		{name: "reaper alone", services: "reaper"},
		{name: "intake without pipeline", services: "intake", wantErr: "requires the pipeline"},
		{name: "unknown service", services: "http", wantErr: "invalid service name"},
		{name: "empty", services: "", wantErr: "at least one service"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateServiceConfig(&config.AppConfig{Services: tt.services})
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}

	require.Error(t, ValidateServiceConfig(nil))
}

func TestGetEnabledServices_StableOrder(t *testing.T) {
	cfg := &config.AppConfig{Services: "reaper, intake,pipeline"}
	assert.Equal(t, []string{"pipeline", "intake", "reaper"}, GetEnabledServices(cfg))
	assert.Empty(t, GetEnabledServices(&config.AppConfig{Services: "bogus"}))
	assert.Empty(t, GetEnabledServices(nil))
}

func TestRequeueIngest(t *testing.T) {
	assert.True(t, requeueIngest(service.ErrQueueFull))
	assert.True(t, requeueIngest(fmt.Errorf("submit: %w", service.ErrPipelineStopped)))
	assert.False(t, requeueIngest(errors.New("download failed")))
}

func TestBuildArchive(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()

	got, err := BuildArchive(ctx, config.ArchiveConfig{Backend: config.ArchiveBackendNone}, fs)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = BuildArchive(ctx, config.ArchiveConfig{Backend: config.ArchiveBackendLocal, Dir: "/archive"}, fs)
	require.NoError(t, err)
	assert.IsType(t, &archive.LocalStore{}, got)
}

func TestBuildOpsNotifier(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := config.ObservabilityNotificationsConfig{}
	assert.False(t, buildOpsNotifier(logger, cfg).Enabled())

	cfg.Slack = config.SlackNotificationConfig{Enabled: true, WebhookURL: "https://hooks.example.com/x"}
	cfg.PagerDuty = config.PagerDutyNotificationConfig{Enabled: true, RoutingKey: "rk"}
	assert.True(t, buildOpsNotifier(logger, cfg).Enabled())
}

func TestNewServices_RequiresDeps(t *testing.T) {
	_, err := NewServices(context.Background(), nil)
	require.Error(t, err)

	_, err = NewServices(context.Background(), &ServiceDeps{Config: &config.AppConfig{}})
	require.ErrorContains(t, err, "database connection is required")
}

func TestNewServices_WiresEverything(t *testing.T) {
	t.Setenv("LINE_CHANNEL_ACCESS_TOKEN", "token")
	t.Setenv("ARCHIVE_BACKEND", "local")
	t.Setenv("ARCHIVE_DIR", "/archive")
	t.Setenv("FETCH_STAGING_DIR", "/staging")

	var cfg config.AppConfig
	require.NoError(t, env.Parse(&cfg))
	cfg.Sanitize()

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	fs := afero.NewMemMapFs()
	svcs, err := NewServices(context.Background(), &ServiceDeps{
		Config: &cfg,
		DB:     db,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Fs:     fs,
	})
	require.NoError(t, err)

	assert.NotNil(t, svcs.Pipeline)
	assert.NotNil(t, svcs.Uploader)
	assert.NotNil(t, svcs.Fetcher)
	assert.NotNil(t, svcs.FolderSync)
	assert.NotNil(t, svcs.Names)
	assert.NotNil(t, svcs.Ledger)
	assert.IsType(t, &archive.LocalStore{}, svcs.Archive)
	assert.Nil(t, svcs.Observability.MetricsSink)

	ok, err := afero.DirExists(fs, "/staging")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewServices_RequiresChatToken(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.AppConfig{}
	cfg.Sanitize()
	_, err = NewServices(context.Background(), &ServiceDeps{Config: cfg, DB: db, Fs: afero.NewMemMapFs()})
	require.ErrorContains(t, err, "channel access token")
}

func TestGracefulStop_ReverseOrder(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var (
		mu      sync.Mutex
		stopped []string
	)
	handle := func(name string) backgroundServiceHandle {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			<-ctx.Done()
			mu.Lock()
			stopped = append(stopped, name)
			mu.Unlock()
			close(done)
		}()
		return backgroundServiceHandle{name: name, done: done, cancel: cancel, stopTimeout: time.Second}
	}

	rootCancelled := false
	gracefulStop(shutdownConfig{
		cancel: func() { rootCancelled = true },
		logger: logger,
		backgrounds: []backgroundServiceHandle{
			handle("pipeline"),
			handle("reaper"),
			handle("intake consumer"),
		},
	})

	assert.Equal(t, []string{"intake consumer", "reaper", "pipeline"}, stopped)
	assert.True(t, rootCancelled)
}

func TestWaitForShutdown(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("service error is returned", func(t *testing.T) {
		errCh := make(chan error, 1)
		errCh <- errors.New("pipeline failed: boom")
		err := waitForShutdown(shutdownConfig{
			quit:   make(chan os.Signal),
			cancel: func() {},
			errCh:  errCh,
			logger: logger,
		})
		require.EqualError(t, err, "pipeline failed: boom")
	})

	t.Run("signal stops cleanly", func(t *testing.T) {
		quit := make(chan os.Signal, 1)
		quit <- os.Interrupt
		err := waitForShutdown(shutdownConfig{
			quit:   quit,
			cancel: func() {},
			errCh:  make(chan error),
			logger: logger,
		})
		require.NoError(t, err)
	})
}

func TestLaunchBackground_ReportsErrors(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	errCh := make(chan error, 2)
	deps := &serviceStartupDeps{
		ctx:             context.Background(),
		logger:          logger,
		enabledServices: map[config.ServiceMode]bool{config.ServiceModeReaper: true},
		errCh:           errCh,
	}

	handles := startBackgroundServices(deps, []backgroundService{
		{
			mode:  config.ServiceModeReaper,
			name:  "reaper",
			start: func(context.Context) error { return errors.New("boom") },
		},
		{
			mode:  config.ServiceModePipeline,
			name:  "pipeline",
			start: func(context.Context) error { t.Error("disabled service started"); return nil },
		},
	})
	require.Len(t, handles, 1)
	assert.Equal(t, shutdownWaitTimeout, handles[0].stopTimeout)

	select {
	case err := <-errCh:
		require.EqualError(t, err, "reaper failed: boom")
	case <-time.After(time.Second):
		t.Fatal("expected service error")
	}
	<-handles[0].done
	handles[0].cancel()
}

func TestPipelineStopTimeout_CoversRetryChain(t *testing.T) {
	cfg := config.PipelineConfig{
		TaskHardLimit: time.Minute,
		MaxRetries:    2,
		RetryMaxDelay: 10 * time.Second,
	}
	assert.Equal(t, 3*time.Minute+20*time.Second+shutdownWaitTimeout, pipelineStopTimeout(cfg))

	cfg.MaxRetries = -1
	assert.Equal(t, time.Minute+shutdownWaitTimeout, pipelineStopTimeout(cfg))
}

func TestRunReaper(t *testing.T) {
	require.ErrorContains(t, RunReaper(context.Background(), ReaperConfig{}), "requires a ledger")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- RunReaper(ctx, ReaperConfig{
			Ledger: memstore.NewLedger(nil),
			Config: config.ReaperConfig{Interval: time.Hour, LedgerRetentionDays: 7, BatchSize: 10},
			Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		})
	}()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("reaper did not stop")
	}
}
