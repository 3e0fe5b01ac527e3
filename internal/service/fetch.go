package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/driveline/driveline/internal/core"
	"github.com/driveline/driveline/internal/domain/model"
	"github.com/driveline/driveline/internal/domain/upload"
)

// stagedTimeLayout prefixes staged blob names.
const stagedTimeLayout = "20060102150405"

// FetchServiceOptions groups dependencies for FetchService.
type FetchServiceOptions struct {
	Source     core.AttachmentSource // Required: chat platform content API
	Fs         afero.Fs              // Required: staging filesystem
	StagingDir string                // Required: directory staged blobs are written to
	MaxRetries int
	RetryDelay time.Duration
	// Timeout bounds a single download attempt; zero disables it.
	Timeout time.Duration
	Logger  *slog.Logger
	Now     func() time.Time
	NewID   func() string
}

// FetchService downloads attachments into the staging area.
type FetchService struct {
	source     core.AttachmentSource
	fs         afero.Fs
	dir        string
	maxRetries int
	retryDelay time.Duration
	timeout    time.Duration
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
}

// NewFetchService constructs a FetchService and creates the staging directory.
func NewFetchService(opts FetchServiceOptions) (*FetchService, error) {
	if opts.Source == nil {
		return nil, errors.New("attachment source is required")
	}
	if opts.Fs == nil {
		return nil, errors.New("staging filesystem is required")
	}
	if strings.TrimSpace(opts.StagingDir) == "" {
		return nil, errors.New("staging dir is required")
	}
	if err := opts.Fs.MkdirAll(opts.StagingDir, 0o750); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = func() string { return uuid.NewString() }
	}

	return &FetchService{
		source:     opts.Source,
		fs:         opts.Fs,
		dir:        opts.StagingDir,
		maxRetries: max(opts.MaxRetries, 0),
		retryDelay: opts.RetryDelay,
		timeout:    opts.Timeout,
		logger:     logger.With("component", "fetch_service"),
		now:        now,
		newID:      newID,
	}, nil
}

// Fetch downloads one attachment and stages it. Rate limiting and transport
// failures are retried with a fixed delay; a missing attachment is not.
// Every failure wraps upload.ErrFetchFailed and leaves nothing staged.
func (s *FetchService) Fetch(ctx context.Context, req model.FetchRequest) (*model.StagedBlob, error) {
	if strings.TrimSpace(req.MessageID) == "" || !req.Kind.Valid() {
		return nil, fmt.Errorf("%w: invalid request for message %q", upload.ErrFetchFailed, req.MessageID)
	}

	var (
		blob    *model.StagedBlob
		attempt int
	)
	op := func() error {
		attempt++
		b, err := s.fetchOnce(ctx, req)
		if err == nil {
			blob = b
			return nil
		}
		if errors.Is(err, upload.ErrAttachmentNotFound) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		s.logger.WarnContext(ctx, "attachment download failed",
			"message_id", req.MessageID,
			"attempt", attempt,
			"error", err,
		)
		return err
	}

	var b backoff.BackOff = backoff.NewConstantBackOff(s.retryDelay)
	b = backoff.WithMaxRetries(b, uint64(s.maxRetries))
	b = backoff.WithContext(b, ctx)

	if err := backoff.Retry(op, b); err != nil {
		return nil, fmt.Errorf("%w: message %s after %d attempt(s): %w", upload.ErrFetchFailed, req.MessageID, attempt, err)
	}

	s.logger.InfoContext(ctx, "attachment staged",
		"message_id", req.MessageID,
		"blob", blob.Name,
		"size", humanize.Bytes(uint64(max(blob.Size, 0))),
		"mime", blob.MimeType,
	)
	return blob, nil
}

func (s *FetchService) fetchOnce(ctx context.Context, req model.FetchRequest) (*model.StagedBlob, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	body, err := s.source.Download(ctx, req.MessageID)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	id := s.newID()
	tmpPath := filepath.Join(s.dir, ".fetch-"+id)
	size, mtype, err := s.writeStaged(tmpPath, body)
	if err != nil {
		_ = s.fs.Remove(tmpPath)
		return nil, err
	}

	stagedAt := s.now()
	name := blobName(req, mtype, stagedAt, id)
	// Names repeat within a second; the fetch id keeps staged paths apart.
	finalPath := filepath.Join(s.dir, id+"_"+name)
	if err := s.fs.Rename(tmpPath, finalPath); err != nil {
		_ = s.fs.Remove(tmpPath)
		return nil, fmt.Errorf("commit staged file: %w", err)
	}

	return &model.StagedBlob{
		Path:     finalPath,
		Name:     name,
		Size:     size,
		MimeType: mtype.String(),
		StagedAt: stagedAt,
	}, nil
}

// writeStaged copies body to path and sniffs its content type from the head.
func (s *FetchService) writeStaged(path string, body io.Reader) (int64, *mimetype.MIME, error) {
	f, err := s.fs.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o640)
	if err != nil {
		return 0, nil, fmt.Errorf("create staged file: %w", err)
	}

	size, copyErr := io.Copy(f, body)
	if copyErr != nil {
		return 0, nil, errors.Join(fmt.Errorf("write staged file: %w", copyErr), f.Close())
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, nil, errors.Join(fmt.Errorf("rewind staged file: %w", err), f.Close())
	}
	mtype, detectErr := mimetype.DetectReader(f)
	if err := errors.Join(detectErr, f.Close()); err != nil {
		return 0, nil, fmt.Errorf("sniff staged file: %w", err)
	}
	return size, mtype, nil
}

// blobName is <yyyymmddHHMMSS>_<filename> for named files, otherwise
// <yyyymmddHHMMSS>_<uuid8><ext> with the extension sniffed from the content.
func blobName(req model.FetchRequest, mtype *mimetype.MIME, at time.Time, fetchID string) string {
	ts := at.Format(stagedTimeLayout)
	if name := sanitizeFileName(req.FileName); req.Kind == model.AttachmentFile && name != "" {
		return ts + "_" + name
	}

	ext := ""
	if mtype != nil && !mtype.Is("application/octet-stream") {
		ext = mtype.Extension()
	}
	if ext == "" {
		ext = req.Kind.DefaultExtension()
	}
	id := strings.ReplaceAll(fetchID, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return ts + "_" + id + ext
}

func sanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	name = strings.NewReplacer("/", "_", `\`, "_", "\x00", "").Replace(name)
	if name == "." || name == ".." {
		return ""
	}
	return name
}
