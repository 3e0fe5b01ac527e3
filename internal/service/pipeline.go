package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/sync/semaphore"

	"github.com/driveline/driveline/internal/core"
	"github.com/driveline/driveline/internal/domain/model"
	"github.com/driveline/driveline/internal/domain/upload"
	"github.com/driveline/driveline/internal/observability/metrics"
	"github.com/driveline/driveline/internal/observability/statsd"
)

var (
	// ErrQueueFull is returned by Submit when the job queue has no room.
	ErrQueueFull = errors.New("pipeline queue is full")
	// ErrPipelineStopped is returned by Submit after Run has returned or is shutting down.
	ErrPipelineStopped = errors.New("pipeline is stopped")
	// ErrInvalidWindow is returned for non-positive ledger windows.
	ErrInvalidWindow = errors.New("window must be positive")
)

// Fetcher stages attachments.
type Fetcher interface {
	Fetch(ctx context.Context, req model.FetchRequest) (*model.StagedBlob, error)
}

// TaskRunner drives one upload task to a terminal outcome.
type TaskRunner interface {
	Run(ctx context.Context, task model.UploadTask) model.TaskOutcome
}

// PipelineOptions groups dependencies for Pipeline.
type PipelineOptions struct {
	Dispatcher *Dispatcher           // Required
	Uploader   TaskRunner            // Required
	Cleaner    *StagedFileCleaner    // Required
	Ledger     core.LedgerRepository // Required
	Fs         afero.Fs              // Required: staging filesystem
	StagingDir string                // Required: where re-driven blobs are restored
	Fetcher    Fetcher               // Optional: needed by Ingest
	Archive    core.BlobArchive      // Optional: needed by RetryFailed
	Workers    int
	QueueSize  int
	// TaskConcurrency caps running upload tasks across all jobs.
	TaskConcurrency int
	PurgeBatchSize  int
	// PurgeLockWait bounds how long PurgeLedger waits for a concurrent purge.
	PurgeLockWait time.Duration
	Metrics       statsd.Sink
	Logger        *slog.Logger
	Now           func() time.Time
}

type pipelineJob struct {
	desc       *model.JobDescriptor
	recipients []string
}

// Pipeline accepts staged attachments and fans each out into one upload
// task per recipient.
type Pipeline struct {
	dispatcher *Dispatcher
	uploader   TaskRunner
	cleaner    *StagedFileCleaner
	ledger     core.LedgerRepository
	fs         afero.Fs
	stagingDir string
	fetcher    Fetcher
	archive    core.BlobArchive
	workers    int
	purgeBatch int
	purgeWait  time.Duration
	metrics    statsd.Sink
	logger     *slog.Logger
	now        func() time.Time

	queue chan *pipelineJob
	tasks *semaphore.Weighted
	// quit closes once no further job can be queued.
	quit chan struct{}

	mu      sync.RWMutex
	stopped bool
	running sync.WaitGroup

	// live counts the owners of each staged path until cleanup.
	liveMu sync.Mutex
	live   map[string]int
}

// NewPipeline validates options and constructs a Pipeline.
func NewPipeline(opts PipelineOptions) (*Pipeline, error) {
	switch {
	case opts.Dispatcher == nil:
		return nil, errors.New("dispatcher is required")
	case opts.Uploader == nil:
		return nil, errors.New("uploader is required")
	case opts.Cleaner == nil:
		return nil, errors.New("staged file cleaner is required")
	case opts.Ledger == nil:
		return nil, errors.New("ledger repository is required")
	case opts.Fs == nil:
		return nil, errors.New("staging filesystem is required")
	case opts.StagingDir == "":
		return nil, errors.New("staging dir is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	purgeBatch := opts.PurgeBatchSize
	if purgeBatch <= 0 {
		purgeBatch = 1000
	}
	purgeWait := opts.PurgeLockWait
	if purgeWait <= 0 {
		purgeWait = time.Minute
	}

	return &Pipeline{
		dispatcher: opts.Dispatcher,
		uploader:   opts.Uploader,
		cleaner:    opts.Cleaner,
		ledger:     opts.Ledger,
		fs:         opts.Fs,
		stagingDir: opts.StagingDir,
		fetcher:    opts.Fetcher,
		archive:    opts.Archive,
		workers:    max(opts.Workers, 1),
		purgeBatch: purgeBatch,
		purgeWait:  purgeWait,
		metrics:    opts.Metrics,
		logger:     logger.With("component", "pipeline"),
		now:        now,
		queue:      make(chan *pipelineJob, max(opts.QueueSize, 1)),
		tasks:      semaphore.NewWeighted(int64(max(opts.TaskConcurrency, 1))),
		quit:       make(chan struct{}),
		live:       make(map[string]int),
	}, nil
}

// IsLive reports whether a job or re-drive still owns the staged path.
func (p *Pipeline) IsLive(path string) bool {
	p.liveMu.Lock()
	defer p.liveMu.Unlock()
	return p.live[filepath.Clean(path)] > 0
}

func (p *Pipeline) hold(path string) {
	p.liveMu.Lock()
	defer p.liveMu.Unlock()
	p.live[filepath.Clean(path)]++
}

func (p *Pipeline) release(path string) {
	key := filepath.Clean(path)
	p.liveMu.Lock()
	defer p.liveMu.Unlock()
	if p.live[key] <= 1 {
		delete(p.live, key)
		return
	}
	p.live[key]--
}

// Submit validates a staged job, resolves its recipients and queues the
// fan-out. It returns once the job is queued. The staged file is removed
// when the job is rejected. A shared context without recipients is cleaned
// up immediately.
func (p *Pipeline) Submit(ctx context.Context, desc *model.JobDescriptor) error {
	if err := desc.Validate(); err != nil {
		p.reject(ctx, desc, err)
		return err
	}
	p.hold(desc.StagedPath)
	if desc.ID == "" {
		desc.ID = uuid.NewString()
	}
	if desc.SubmittedAt.IsZero() {
		desc.SubmittedAt = p.now()
	}

	recipients, err := p.dispatcher.Recipients(ctx, desc)
	if err != nil {
		p.reject(ctx, desc, err)
		p.release(desc.StagedPath)
		return fmt.Errorf("dispatch job %s: %w", desc.ID, err)
	}
	job := &pipelineJob{desc: desc, recipients: recipients}

	if len(recipients) == 0 {
		p.logger.InfoContext(ctx, "no recipients bound to context",
			"job_id", desc.ID,
			"context_id", desc.ContextID,
		)
		p.runJob(ctx, job)
		return nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		p.reject(ctx, desc, ErrPipelineStopped)
		p.release(desc.StagedPath)
		return ErrPipelineStopped
	}
	select {
	case p.queue <- job:
	default:
		p.reject(ctx, desc, ErrQueueFull)
		p.release(desc.StagedPath)
		return ErrQueueFull
	}

	metrics.EmitJobLifecycle(p.metrics, metrics.JobMetric{
		ContextKind: desc.ContextKind,
		Transition:  metrics.TransitionSubmitted,
		Result:      metrics.ResultSuccess,
	})
	p.logger.InfoContext(ctx, "job submitted",
		"job_id", desc.ID,
		"context_kind", desc.ContextKind,
		"context_id", desc.ContextID,
		"recipients", len(recipients),
	)
	return nil
}

func (p *Pipeline) reject(ctx context.Context, desc *model.JobDescriptor, err error) {
	if desc == nil {
		return
	}
	p.cleaner.Remove(ctx, desc.StagedPath)
	metrics.EmitJobLifecycle(p.metrics, metrics.JobMetric{
		ContextKind: desc.ContextKind,
		Transition:  metrics.TransitionRejected,
		Result:      metrics.ResultError,
		Err:         err,
	})
	p.logger.WarnContext(ctx, "job rejected", "job_id", desc.ID, "blob", desc.BlobName, "error", err)
}

// Ingest fetches an attachment and submits it as a job.
func (p *Pipeline) Ingest(ctx context.Context, req model.IngestRequest) error {
	if p.fetcher == nil {
		return errors.New("pipeline has no fetcher")
	}
	if err := req.Validate(); err != nil {
		return err
	}
	if p.isStopped() {
		return ErrPipelineStopped
	}
	// Skip the download when the job could not be queued anyway.
	if len(p.queue) == cap(p.queue) {
		return ErrQueueFull
	}

	start := p.now()
	blob, err := p.fetcher.Fetch(ctx, req.Attachment)
	metrics.EmitJobLifecycle(p.metrics, metrics.JobMetric{
		ContextKind: req.ContextKind,
		Transition:  metrics.TransitionFetched,
		Result:      resultOf(err),
		Duration:    p.now().Sub(start),
		Err:         err,
	})
	if err != nil {
		return err
	}

	return p.Submit(ctx, &model.JobDescriptor{
		StagedPath:            blob.Path,
		BlobName:              blob.Name,
		ContextKind:           req.ContextKind,
		ContextID:             req.ContextID,
		OriginatorRecipientID: req.OriginatorRecipientID,
		NotifyHandle:          req.NotifyHandle,
		SubmittedAt:           blob.StagedAt,
	})
}

// Run starts the job workers and blocks until ctx is cancelled and every
// accepted job reached its barrier. Cancelling ctx stops intake only: running
// and queued jobs finish under their soft and hard limits.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.InfoContext(ctx, "starting pipeline", "workers", p.workers, "queue_size", cap(p.queue))

	var wg sync.WaitGroup
	for i := range p.workers {
		wg.Add(1)
		p.running.Add(1)
		go func(id int) {
			defer wg.Done()
			defer p.running.Done()
			p.worker(ctx, id)
		}(i)
	}

	<-ctx.Done()
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	close(p.quit)

	wg.Wait()
	p.logger.InfoContext(context.WithoutCancel(ctx), "pipeline stopped")
	return nil
}

// Wait blocks until all workers have returned.
func (p *Pipeline) Wait() {
	p.running.Wait()
}

func (p *Pipeline) worker(ctx context.Context, id int) {
	logger := p.logger.With("worker", id)
	for {
		select {
		case job := <-p.queue:
			p.runJob(ctx, job)
		case <-p.quit:
			for {
				select {
				case job := <-p.queue:
					logger.WarnContext(ctx, "running queued job during shutdown", "job_id", job.desc.ID)
					p.runJob(ctx, job)
				default:
					return
				}
			}
		}
	}
}

// runJob fans a job out and blocks until its barrier fired.
func (p *Pipeline) runJob(ctx context.Context, job *pipelineJob) {
	ctx = context.WithoutCancel(ctx)
	start := p.now()
	desc := job.desc
	barrier := NewBarrier(func(outcomes []model.TaskOutcome) {
		p.cleaner.Cleanup(ctx, desc, outcomes)
		p.release(desc.StagedPath)
	})
	barrier.Add(len(job.recipients))

	for _, recipient := range job.recipients {
		task := model.UploadTask{
			JobID:        desc.ID,
			StagedPath:   desc.StagedPath,
			BlobName:     desc.BlobName,
			ContextKind:  desc.ContextKind,
			ContextID:    desc.ContextID,
			RecipientID:  recipient,
			NotifyHandle: desc.NotifyHandle,
			ArchiveKey:   desc.ArchiveKey(),
		}
		go func() {
			if err := p.tasks.Acquire(ctx, 1); err == nil {
				defer p.tasks.Release(1)
			}
			barrier.Done(p.uploader.Run(ctx, task))
		}()
	}

	outcomes := barrier.Wait()

	result := metrics.ResultSuccess
	switch {
	case len(outcomes) == 0:
		result = metrics.ResultNoop
	case model.AnyFailed(outcomes):
		result = metrics.ResultError
	}
	metrics.EmitJobLifecycle(p.metrics, metrics.JobMetric{
		ContextKind: desc.ContextKind,
		Transition:  metrics.TransitionCompleted,
		Result:      result,
		Duration:    p.now().Sub(start),
	})
	p.logger.InfoContext(ctx, "job completed",
		"job_id", desc.ID,
		"tasks", len(outcomes),
		"result", result,
	)
}

func (p *Pipeline) isStopped() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stopped
}

// ListFailed returns the non-success ledger rows of a recipient from the
// last windowHours hours, newest first.
func (p *Pipeline) ListFailed(ctx context.Context, recipientID string, windowHours int) ([]model.UploadAttempt, error) {
	if windowHours <= 0 {
		return nil, ErrInvalidWindow
	}
	return p.ledger.ListByRecipient(ctx, model.LedgerQuery{
		RecipientID: recipientID,
		Window:      time.Duration(windowHours) * time.Hour,
		FailedOnly:  true,
	})
}

// RetryFailed re-drives every failed upload of a recipient inside the window.
// Each row is updated in place; no rows are added. Rows whose blob is no
// longer retained become file_missing.
func (p *Pipeline) RetryFailed(ctx context.Context, recipientID string, windowHours int) (model.RetrySummary, error) {
	var summary model.RetrySummary
	rows, err := p.ListFailed(ctx, recipientID, windowHours)
	if err != nil {
		return summary, err
	}

	for _, row := range rows {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		summary.Found++

		key := row.ArchiveKey
		if key == "" {
			key = row.BlobName
		}
		path, err := p.restore(ctx, key, row.BlobName)
		if err == nil {
			p.hold(path)
		}
		if errors.Is(err, upload.ErrBlobNotFound) {
			summary.Missing++
			if err := p.ledger.UpdateStatus(ctx, row.ID, model.StatusFileMissing); err != nil {
				return summary, fmt.Errorf("mark row %d file missing: %w", row.ID, err)
			}
			p.logger.InfoContext(ctx, "re-drive blob missing", "row_id", row.ID, "blob", row.BlobName)
			continue
		}
		if err != nil {
			return summary, fmt.Errorf("restore %s: %w", row.BlobName, err)
		}

		out := p.uploader.Run(ctx, model.UploadTask{
			JobID:        fmt.Sprintf("redrive-%d", row.ID),
			StagedPath:   path,
			BlobName:     row.BlobName,
			ContextKind:  row.ContextKind,
			ContextID:    row.ContextID,
			RecipientID:  row.RecipientID,
			ArchiveKey:   row.ArchiveKey,
			RedriveRowID: row.ID,
		})
		p.cleaner.Remove(ctx, path)
		p.release(path)

		if out.Succeeded() {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}

	p.logger.InfoContext(ctx, "re-drive finished",
		"recipient_id", recipientID,
		"found", summary.Found,
		"missing", summary.Missing,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
	)
	return summary, nil
}

// restore copies the archived blob under key into staging and returns its path.
func (p *Pipeline) restore(ctx context.Context, key, blobName string) (string, error) {
	if p.archive == nil {
		return "", upload.ErrBlobNotFound
	}
	rc, err := p.archive.Get(ctx, key)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	if err := p.fs.MkdirAll(p.stagingDir, 0o750); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}
	path := filepath.Join(p.stagingDir, "redrive-"+uuid.NewString()+"-"+blobName)
	f, err := p.fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return "", fmt.Errorf("create restored file: %w", err)
	}
	_, copyErr := io.Copy(f, rc)
	if err := errors.Join(copyErr, f.Close()); err != nil {
		_ = p.fs.Remove(path)
		return "", fmt.Errorf("write restored file: %w", err)
	}
	return path, nil
}

// PurgeLedger deletes ledger rows older than olderThanDays days in batches
// and returns the number removed. While another instance is purging it waits
// up to the configured lock wait, then returns core.ErrPurgeBusy.
func (p *Pipeline) PurgeLedger(ctx context.Context, olderThanDays int) (int64, error) {
	if olderThanDays <= 0 {
		return 0, ErrInvalidWindow
	}
	params := core.PurgeLedgerParams{
		MaxAge:    time.Duration(olderThanDays) * 24 * time.Hour,
		BatchSize: p.purgeBatch,
	}

	var total int64
	op := func() error {
		n, err := purgeLedgerBatches(ctx, p.ledger, params)
		total += n
		switch {
		case errors.Is(err, core.ErrPurgeBusy):
			p.logger.InfoContext(ctx, "ledger purge lock busy, waiting", "removed", total)
			return err
		case err != nil:
			return backoff.Permanent(err)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = min(500*time.Millisecond, p.purgeWait/10)
	b.MaxElapsedTime = p.purgeWait
	b.Reset()
	err := backoff.Retry(op, backoff.WithContext(b, ctx))
	return total, err
}

// purgeLedgerBatches loops Purge until a batch comes back empty. It stops
// with core.ErrPurgeBusy when another purge holds the lock.
func purgeLedgerBatches(ctx context.Context, ledger core.LedgerRepository, params core.PurgeLedgerParams) (int64, error) {
	var total int64
	for {
		n, err := ledger.Purge(ctx, params)
		if err != nil {
			return total, err
		}
		total += n
		if n == 0 {
			return total, nil
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}
}

func resultOf(err error) string {
	if err != nil {
		return metrics.ResultError
	}
	return metrics.ResultSuccess
}
