package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"

	"github.com/spf13/afero"

	"github.com/driveline/driveline/internal/core"
	"github.com/driveline/driveline/internal/domain/model"
)

// Barrier joins the upload tasks of one job and fires its cleanup exactly
// once, after every task reached a terminal state. A job without tasks fires
// on the first Wait.
type Barrier struct {
	wg       sync.WaitGroup
	once     sync.Once
	mu       sync.Mutex
	outcomes []model.TaskOutcome
	cleanup  func([]model.TaskOutcome)
}

// NewBarrier returns a Barrier that calls cleanup with all outcomes.
func NewBarrier(cleanup func([]model.TaskOutcome)) *Barrier {
	return &Barrier{cleanup: cleanup}
}

// Add registers n pending tasks. It must be called before Wait.
func (b *Barrier) Add(n int) {
	b.wg.Add(n)
}

// Done records a terminal outcome.
func (b *Barrier) Done(out model.TaskOutcome) {
	b.mu.Lock()
	b.outcomes = append(b.outcomes, out)
	b.mu.Unlock()
	b.wg.Done()
}

// Wait blocks until all tasks are done, fires the cleanup once and returns the outcomes.
func (b *Barrier) Wait() []model.TaskOutcome {
	b.wg.Wait()
	outcomes := b.Outcomes()
	b.once.Do(func() {
		if b.cleanup != nil {
			b.cleanup(outcomes)
		}
	})
	return outcomes
}

// Outcomes returns a copy of the outcomes recorded so far.
func (b *Barrier) Outcomes() []model.TaskOutcome {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.TaskOutcome(nil), b.outcomes...)
}

// StagedFileCleaner removes a job's staged file once its barrier fires,
// archiving it first when any upload failed so it can be re-driven.
type StagedFileCleaner struct {
	fs      afero.Fs
	archive core.BlobArchive
	logger  *slog.Logger
}

// NewStagedFileCleaner constructs a cleaner. archive may be nil.
func NewStagedFileCleaner(fsys afero.Fs, archive core.BlobArchive, logger *slog.Logger) (*StagedFileCleaner, error) {
	if fsys == nil {
		return nil, errors.New("staging filesystem is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StagedFileCleaner{
		fs:      fsys,
		archive: archive,
		logger:  logger.With("component", "staged_file_cleaner"),
	}, nil
}

// Cleanup archives on failure and removes the staged file. A file that is
// already gone is fine; other errors are logged, never retried.
func (c *StagedFileCleaner) Cleanup(ctx context.Context, desc *model.JobDescriptor, outcomes []model.TaskOutcome) {
	if model.AnyFailed(outcomes) && c.archive != nil {
		if err := c.archiveStaged(ctx, desc); err != nil {
			c.logger.ErrorContext(ctx, "archive staged file failed",
				"job_id", desc.ID,
				"blob", desc.BlobName,
				"error", err,
			)
		}
	}
	c.Remove(ctx, desc.StagedPath)
}

// Remove deletes a staged file, tolerating a missing one.
func (c *StagedFileCleaner) Remove(ctx context.Context, path string) {
	if path == "" {
		return
	}
	err := c.fs.Remove(path)
	switch {
	case err == nil:
		c.logger.DebugContext(ctx, "staged file removed", "path", path)
	case errors.Is(err, fs.ErrNotExist):
		c.logger.DebugContext(ctx, "staged file already gone", "path", path)
	default:
		c.logger.WarnContext(ctx, "remove staged file failed", "path", path, "error", err)
	}
}

func (c *StagedFileCleaner) archiveStaged(ctx context.Context, desc *model.JobDescriptor) error {
	f, err := c.fs.Open(desc.StagedPath)
	if err != nil {
		return fmt.Errorf("open staged file: %w", err)
	}
	defer f.Close()

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}
	key := desc.ArchiveKey()
	if err := c.archive.Put(ctx, key, f, size); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "staged file archived for re-drive", "job_id", desc.ID, "archive_key", key)
	return nil
}
