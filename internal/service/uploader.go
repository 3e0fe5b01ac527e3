package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"

	"github.com/driveline/driveline/internal/core"
	"github.com/driveline/driveline/internal/domain/model"
	"github.com/driveline/driveline/internal/domain/upload"
	obserrors "github.com/driveline/driveline/internal/observability/errors"
	"github.com/driveline/driveline/internal/observability/metrics"
	"github.com/driveline/driveline/internal/observability/notify"
	"github.com/driveline/driveline/internal/observability/statsd"
)

// Default per-attempt limits.
const (
	DefaultTaskSoftLimit = 270 * time.Second
	DefaultTaskHardLimit = 300 * time.Second
)

// Chat messages pushed after a terminal outcome.
const (
	msgUploadSucceeded = "Uploaded %s to your Google Drive.\nLink: %s"
	msgReauthorize     = "Google Drive authorization failed. Please link your Google account again."
	msgUploadFailed    = "Uploading %s failed. Please try again later."
)

// OpsNotifier receives terminal upload failures for operators.
type OpsNotifier interface {
	NotifyUploadFailure(ctx context.Context, payload notify.UploadFailurePayload)
}

// UploaderOptions groups dependencies for Uploader.
type UploaderOptions struct {
	Credentials core.CredentialStore  // Required
	Drives      core.DriveFactory     // Required
	Folders     *FolderService        // Required
	Ledger      core.LedgerRepository // Required
	Supervisor  *upload.Supervisor    // Required
	Fs          afero.Fs              // Required: staging filesystem
	Names       ContextNamer          // Optional: display names; context id otherwise
	Notifier    core.Notifier         // Optional: chat notifications
	Ops         OpsNotifier           // Optional: operator sinks
	Metrics     statsd.Sink           // Optional
	Logger      *slog.Logger          // Optional
	SoftLimit   time.Duration         // Per-attempt deadline (retryable timeout)
	HardLimit   time.Duration         // Per-attempt kill limit (terminal timeout)
	Sleep       func(context.Context, time.Duration) error
	Now         func() time.Time
}

// Uploader runs upload tasks: one recipient, one staged file.
type Uploader struct {
	creds      core.CredentialStore
	drives     core.DriveFactory
	folders    *FolderService
	ledger     core.LedgerRepository
	supervisor *upload.Supervisor
	fs         afero.Fs
	names      ContextNamer
	notifier   core.Notifier
	ops        OpsNotifier
	metrics    statsd.Sink
	logger     *slog.Logger
	softLimit  time.Duration
	hardLimit  time.Duration
	sleep      func(context.Context, time.Duration) error
	now        func() time.Time
}

// NewUploader validates options and constructs an Uploader.
func NewUploader(opts UploaderOptions) (*Uploader, error) {
	switch {
	case opts.Credentials == nil:
		return nil, errors.New("credential store is required")
	case opts.Drives == nil:
		return nil, errors.New("drive factory is required")
	case opts.Folders == nil:
		return nil, errors.New("folder service is required")
	case opts.Ledger == nil:
		return nil, errors.New("ledger repository is required")
	case opts.Supervisor == nil:
		return nil, errors.New("supervisor is required")
	case opts.Fs == nil:
		return nil, errors.New("staging filesystem is required")
	}

	hard := opts.HardLimit
	if hard <= 0 {
		hard = DefaultTaskHardLimit
	}
	soft := opts.SoftLimit
	if soft <= 0 || soft > hard {
		soft = min(DefaultTaskSoftLimit, hard)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Uploader{
		creds:      opts.Credentials,
		drives:     opts.Drives,
		folders:    opts.Folders,
		ledger:     opts.Ledger,
		supervisor: opts.Supervisor,
		fs:         opts.Fs,
		names:      opts.Names,
		notifier:   opts.Notifier,
		ops:        opts.Ops,
		metrics:    opts.Metrics,
		logger:     logger.With("component", "uploader"),
		softLimit:  soft,
		hardLimit:  hard,
		sleep:      sleep,
		now:        now,
	}, nil
}

type transferResult struct {
	folderID string
	file     *model.DriveFile
}

// Run drives one task to a terminal state and returns its outcome. The
// outcome is written to the ledger exactly once: appended for pipeline
// tasks, or over the re-driven row.
func (u *Uploader) Run(ctx context.Context, task model.UploadTask) model.TaskOutcome {
	start := u.now()
	logger := u.logger.With(
		"job_id", task.JobID,
		"recipient_id", task.RecipientID,
		"context_id", task.ContextID,
		"blob", task.BlobName,
	)

	contextName := task.ContextID
	if u.names != nil {
		if name := u.names.Name(ctx, task.ContextKind, task.ContextID); name != "" {
			contextName = name
		}
	}

	attempts := u.supervisor.NewAttempts()
	out := model.TaskOutcome{RecipientID: task.RecipientID, State: model.TaskPending}

	for {
		out.Attempts++
		out.State = model.TaskRunning

		res, err := u.attempt(ctx, task, contextName)
		if err == nil {
			out.State = model.TaskSucceeded
			out.Status = model.StatusSuccess
			out.FolderID = res.folderID
			out.FileID = res.file.ID
			out.FileLink = res.file.WebViewLink
			break
		}

		decision := attempts.Observe(err)
		logger.WarnContext(ctx, "upload attempt failed",
			"attempt", out.Attempts,
			"class", decision.Class,
			"action", decision.Action,
			"error", err,
		)

		if decision.ShouldRetry() {
			out.State = model.TaskRetrying
			metrics.EmitRetry(u.metrics, string(decision.Class), decision.Retry)
			if sleepErr := u.sleep(ctx, decision.Delay); sleepErr != nil {
				u.fail(&out, decision.Class, errors.Join(err, sleepErr))
				break
			}
			continue
		}

		if decision.Action == upload.ActionInvalidateAndFail {
			if invErr := u.folders.Invalidate(context.WithoutCancel(ctx), task.FolderKey()); invErr != nil {
				logger.ErrorContext(ctx, "folder mapping invalidation failed", "error", invErr)
			}
		}
		u.fail(&out, decision.Class, err)
		break
	}
	out.Duration = u.now().Sub(start)

	u.finish(ctx, logger, task, contextName, out)
	return out
}

func (u *Uploader) fail(out *model.TaskOutcome, class upload.Class, err error) {
	out.State = model.TaskFailed
	out.Class = string(class)
	out.Status = u.supervisor.Status(class, err)
	out.Err = err
}

// attempt runs one transfer under the soft limit and abandons it at the hard limit.
func (u *Uploader) attempt(ctx context.Context, task model.UploadTask, contextName string) (*transferResult, error) {
	softCtx, cancel := context.WithTimeout(ctx, u.softLimit)
	defer cancel()

	type result struct {
		res *transferResult
		err error
	}
	done := make(chan result, 1)
	go func() {
		res, err := u.transfer(softCtx, task, contextName)
		done <- result{res: res, err: err}
	}()

	hard := time.NewTimer(u.hardLimit)
	defer hard.Stop()

	select {
	case r := <-done:
		return r.res, r.err
	case <-hard.C:
		return nil, fmt.Errorf("attempt abandoned after %s: %w", u.hardLimit, upload.ErrHardLimitExceeded)
	}
}

func (u *Uploader) transfer(ctx context.Context, task model.UploadTask, contextName string) (*transferResult, error) {
	ts, err := u.creds.TokenSource(ctx, task.RecipientID)
	if err != nil {
		return nil, fmt.Errorf("credentials: %w", err)
	}
	drive, err := u.drives.NewDrive(ctx, ts)
	if err != nil {
		return nil, fmt.Errorf("drive client: %w", err)
	}

	folderID, created, err := u.folders.Resolve(ctx, task.FolderKey(), drive, contextName)
	if err != nil {
		return nil, err
	}
	if !created {
		u.folders.SyncName(ctx, drive, folderID, contextName)
	}

	f, err := u.fs.Open(task.StagedPath)
	if err != nil {
		return nil, fmt.Errorf("open staged file: %w", err)
	}
	defer f.Close()

	var size int64
	if info, statErr := f.Stat(); statErr == nil {
		size = info.Size()
	}
	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return nil, fmt.Errorf("sniff staged file: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind staged file: %w", err)
	}

	file, err := drive.UploadFile(ctx, model.UploadFileParams{
		Name:     task.BlobName,
		MimeType: mtype.String(),
		ParentID: folderID,
		Content:  f,
		Size:     size,
	})
	if err != nil {
		return nil, err
	}

	u.logger.InfoContext(ctx, "file uploaded",
		"job_id", task.JobID,
		"recipient_id", task.RecipientID,
		"blob", task.BlobName,
		"file_id", file.ID,
		"size", humanize.Bytes(uint64(max(size, 0))),
	)
	return &transferResult{folderID: folderID, file: file}, nil
}

// finish records the outcome, notifies and emits metrics. Terminal
// bookkeeping survives cancellation of the pipeline context.
func (u *Uploader) finish(
	ctx context.Context,
	logger *slog.Logger,
	task model.UploadTask,
	contextName string,
	out model.TaskOutcome,
) {
	bg := context.WithoutCancel(ctx)

	if err := u.record(bg, task, contextName, out.Status); err != nil {
		logger.ErrorContext(ctx, "ledger write failed", "status", out.Status, "error", err)
	}

	u.notify(bg, logger, task, out)

	if !out.Succeeded() && out.Status != model.StatusAuthInvalid && u.ops != nil {
		u.ops.NotifyUploadFailure(bg, notify.UploadFailurePayload{
			JobID:       task.JobID,
			RecipientID: task.RecipientID,
			ContextKind: string(task.ContextKind),
			ContextID:   task.ContextID,
			ContextName: contextName,
			BlobName:    task.BlobName,
			Status:      string(out.Status),
			Class:       out.Class,
			Attempts:    out.Attempts,
			Error:       errString(out.Err),
			ErrorClass:  obserrors.Classify(out.Err),
			OccurredAt:  u.now(),
		})
	}

	metrics.EmitTaskOutcome(u.metrics, task.ContextKind, out)

	if out.Succeeded() {
		logger.InfoContext(ctx, "upload task succeeded", "attempts", out.Attempts, "file_id", out.FileID)
		return
	}
	logger.ErrorContext(ctx, "upload task failed",
		"attempts", out.Attempts,
		"status", out.Status,
		"class", out.Class,
		"error", out.Err,
	)
}

func (u *Uploader) record(ctx context.Context, task model.UploadTask, contextName string, status model.UploadStatus) error {
	if task.IsRedrive() {
		return u.ledger.UpdateStatus(ctx, task.RedriveRowID, status)
	}
	_, err := u.ledger.Record(ctx, model.RecordAttemptParams{
		RecipientID: task.RecipientID,
		BlobName:    task.BlobName,
		ContextKind: task.ContextKind,
		ContextID:   task.ContextID,
		ContextName: contextName,
		ArchiveKey:  task.ArchiveKey,
		Status:      status,
	})
	return err
}

func (u *Uploader) notify(ctx context.Context, logger *slog.Logger, task model.UploadTask, out model.TaskOutcome) {
	if u.notifier == nil {
		return
	}

	var to, text string
	switch {
	case out.Succeeded():
		to, text = task.NotifyHandle, fmt.Sprintf(msgUploadSucceeded, task.BlobName, out.FileLink)
	case out.Status == model.StatusAuthInvalid:
		to, text = task.RecipientID, msgReauthorize
	default:
		to, text = task.NotifyHandle, fmt.Sprintf(msgUploadFailed, task.BlobName)
	}
	if to == "" {
		return
	}
	if err := u.notifier.Push(ctx, to, text); err != nil {
		logger.WarnContext(ctx, "chat notification failed", "to", to, "error", err)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
