package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/driveline/driveline/config"
	"github.com/driveline/driveline/internal/core"
	obserrors "github.com/driveline/driveline/internal/observability/errors"
	"github.com/driveline/driveline/internal/observability/metrics"
	"github.com/driveline/driveline/internal/observability/statsd"
)

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Ledger     core.LedgerRepository // Required: upload ledger
	Config     config.ReaperConfig   // Required: reaper configuration
	Fs         afero.Fs              // Optional: staging filesystem; orphan sweep is skipped without it
	StagingDir string                // Optional: staging directory
	Archive    core.BlobArchive      // Optional: re-drive archive
	Live       LiveStagedFiles       // Optional: staged files still owned by running jobs
	Logger     *slog.Logger          // Optional: structured logger
	Metrics    statsd.Sink           // Optional: metrics sink (StatsD-compatible)
	Now        func() time.Time
}

// LiveStagedFiles reports staged files a running job still owns.
type LiveStagedFiles interface {
	IsLive(path string) bool
}

// ReaperService bounds the pipeline's storage.
//
// This service manages:
// - Deleting ledger rows past the retention window.
// - Removing staged files orphaned by a crashed process.
// - Deleting archived blobs past the retention window.
type ReaperService struct {
	ledger     core.LedgerRepository
	config     config.ReaperConfig
	fs         afero.Fs
	stagingDir string
	archive    core.BlobArchive
	live       LiveStagedFiles
	logger     *slog.Logger
	metrics    statsd.Sink
	now        func() time.Time
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Ledger == nil {
		return nil, errors.New("LedgerRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "reaper_service")
		logger.Debug("ReaperService initialized",
			"interval", opts.Config.Interval,
			"ledger_retention_days", opts.Config.LedgerRetentionDays,
			"staging_max_age", opts.Config.StagingMaxAge,
			"archive", opts.Archive != nil,
		)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &ReaperService{
		ledger:     opts.Ledger,
		config:     opts.Config,
		fs:         opts.Fs,
		stagingDir: opts.StagingDir,
		archive:    opts.Archive,
		live:       opts.Live,
		logger:     logger,
		metrics:    opts.Metrics,
		now:        now,
	}, nil
}

// Run starts the reaper loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *ReaperService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting reaper service", "interval", s.config.Interval)
	}

	// Add jitter to prevent thundering herd if multiple instances start together
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if err := s.RunOnce(ctx); err != nil {
		s.logCleanupError(err, "initial cleanup")
	}

	return s.runLoop(ctx, ticker)
}

// waitWithJitter adds a random delay up to 10% of the interval.
func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		}
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

func (s *ReaperService) runLoop(ctx context.Context, ticker *time.Ticker) error {
	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logCleanupError(err, "cleanup")
			}
		}
	}
}

type cleanupFunc func(context.Context) (int64, error)

type cleanupStep struct {
	fn        cleanupFunc
	label     string
	operation string
}

type cleanupStepOutcome struct {
	operation    string
	count        int64
	metricErr    error
	aggregateErr error
	canceled     bool
}

// RunOnce performs one cleanup pass.
func (s *ReaperService) RunOnce(ctx context.Context) error {
	start := s.now()
	var (
		errs               []error
		allContextCanceled = true
		outcomes           []cleanupStepOutcome
	)

	steps := []cleanupStep{
		{fn: s.purgeLedger, label: "purge ledger", operation: "purge_ledger"},
		{fn: s.removeStagingOrphans, label: "remove staging orphans", operation: "remove_staging"},
		{fn: s.purgeArchive, label: "purge archive", operation: "purge_archive"},
	}

	for _, step := range steps {
		outcome := s.executeCleanupStep(ctx, step)
		outcomes = append(outcomes, outcome)
		if outcome.aggregateErr != nil {
			errs = append(errs, outcome.aggregateErr)
			allContextCanceled = allContextCanceled && outcome.canceled
		}
	}

	s.emitCleanupMetrics(outcomes, s.now().Sub(start))

	if len(errs) > 0 {
		joined := errors.Join(errs...)
		if allContextCanceled && isContextCancellation(joined) {
			return context.Canceled
		}
		return fmt.Errorf("cleanup failed: %w", joined)
	}
	return nil
}

func (s *ReaperService) executeCleanupStep(ctx context.Context, step cleanupStep) cleanupStepOutcome {
	count, err := step.fn(ctx)
	outcome := cleanupStepOutcome{
		operation: step.operation,
		count:     count,
		metricErr: suppressContextCancellation(err),
		canceled:  isContextCancellation(err),
	}
	if err != nil {
		outcome.aggregateErr = fmt.Errorf("%s: %w", step.label, err)
	}
	return outcome
}

func (s *ReaperService) purgeLedger(ctx context.Context) (int64, error) {
	total, err := purgeLedgerBatches(ctx, s.ledger, core.PurgeLedgerParams{
		MaxAge:    s.config.LedgerRetention(),
		BatchSize: s.config.BatchSize,
	})
	if errors.Is(err, core.ErrPurgeBusy) {
		// Another instance is purging; the next tick catches up.
		if s.logger != nil {
			s.logger.InfoContext(ctx, "ledger purge skipped, lock held elsewhere")
		}
		err = nil
	}
	if total > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "purged ledger rows",
			"count", total,
			"retention_days", s.config.LedgerRetentionDays,
		)
	}
	return total, err
}

// removeStagingOrphans deletes staged files older than StagingMaxAge that no
// running job owns. Jobs remove their files at the barrier, so what is left
// was orphaned by a crashed process.
func (s *ReaperService) removeStagingOrphans(ctx context.Context) (int64, error) {
	if s.fs == nil || s.stagingDir == "" {
		return 0, nil
	}
	entries, err := afero.ReadDir(s.fs, s.stagingDir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("list staging dir: %w", err)
	}

	cutoff := s.now().Add(-s.config.StagingMaxAge)
	var (
		removed int64
		errs    []error
	)
	for _, e := range entries {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		if e.IsDir() || !e.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(s.stagingDir, e.Name())
		if s.live != nil && s.live.IsLive(path) {
			continue
		}
		if err := s.fs.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	if removed > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "removed orphaned staged files",
			"count", removed,
			"max_age", s.config.StagingMaxAge,
		)
	}
	return removed, errors.Join(errs...)
}

func (s *ReaperService) purgeArchive(ctx context.Context) (int64, error) {
	if s.archive == nil {
		return 0, nil
	}
	n, err := s.archive.PurgeOlderThan(ctx, s.now().Add(-s.config.LedgerRetention()))
	if n > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "purged archived blobs", "count", n)
	}
	return int64(n), err
}

func (s *ReaperService) emitCleanupMetrics(outcomes []cleanupStepOutcome, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}

	var (
		total    int64
		firstErr error
	)
	for _, o := range outcomes {
		total += o.count
		if firstErr == nil {
			firstErr = o.metricErr
		}
	}

	result := metrics.ResultSuccess
	if firstErr != nil {
		result = metrics.ResultError
	} else if total == 0 {
		result = metrics.ResultNoop
	}

	tags := map[string]string{"result": result}
	if firstErr != nil {
		if class := obserrors.Classify(firstErr); class != "" {
			tags["error_class"] = class
		}
	}

	s.metrics.Count("reaper.cleanup", 1, tags)
	if elapsed > 0 {
		s.metrics.Timing("reaper.cleanup_duration", elapsed, metrics.CloneTags(tags))
	}

	for _, o := range outcomes {
		s.emitCleanupOperationMetric(o.operation, o.count, o.metricErr)
	}

	if firstErr == nil {
		s.metrics.Gauge("reaper.last_success_epoch", float64(s.now().Unix()), nil)
	}
}

func (s *ReaperService) emitCleanupOperationMetric(operation string, count int64, err error) {
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	} else if count == 0 {
		result = metrics.ResultNoop
	}

	tags := map[string]string{
		"operation": operation,
		"result":    result,
	}
	if err != nil {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}

	s.metrics.Count("reaper.cleanup_operation", 1, tags)
	if err == nil && count > 0 {
		s.metrics.Count("reaper.items_removed", count, metrics.CloneTags(tags))
	}
}

func (s *ReaperService) logCleanupError(err error, label string) {
	if err == nil || s.logger == nil {
		return
	}
	if isContextCancellation(err) {
		s.logger.Debug(label+" cancelled by context", "error", err)
		return
	}
	s.logger.Error(label+" failed", "error", err)
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func suppressContextCancellation(err error) error {
	if isContextCancellation(err) {
		return nil
	}
	return err
}
