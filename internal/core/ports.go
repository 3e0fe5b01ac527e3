// Package core defines the ports the upload pipeline depends on. Adapters in
// internal/data and internal/adapters implement them.
package core

import (
	"context"
	"errors"
	"io"
	"time"

	"golang.org/x/oauth2"

	"github.com/driveline/driveline/internal/domain/model"
)

// ErrPurgeBusy is returned by LedgerRepository.Purge when another instance is
// purging at the same time.
var ErrPurgeBusy = errors.New("ledger purge already running")

// PurgeLedgerParams groups parameters for LedgerRepository.Purge.
type PurgeLedgerParams struct {
	MaxAge    time.Duration
	BatchSize int
}

// LedgerRepository stores the terminal outcome of upload tasks.
type LedgerRepository interface {
	// Record appends one row for a terminal outcome.
	Record(ctx context.Context, params model.RecordAttemptParams) (*model.UploadAttempt, error)
	// UpdateStatus overwrites the status of an existing row (manual re-drive only).
	UpdateStatus(ctx context.Context, id int64, status model.UploadStatus) error
	// ListByRecipient returns rows for a recipient inside a trailing window, newest first.
	ListByRecipient(ctx context.Context, q model.LedgerQuery) ([]model.UploadAttempt, error)
	// Purge deletes up to BatchSize rows older than MaxAge and returns the count.
	// It returns ErrPurgeBusy without deleting when another purge holds the lock.
	Purge(ctx context.Context, params PurgeLedgerParams) (int64, error)
}

// FolderCreateFunc creates the cloud folder for a key and returns its id.
// It is invoked at most once per ResolveOrCreate call, while the key is locked.
type FolderCreateFunc func(ctx context.Context) (string, error)

// FolderMappingRepository owns the (context, recipient) → folder mapping.
// All writes go through ResolveOrCreate and Invalidate.
type FolderMappingRepository interface {
	// ResolveOrCreate returns the mapped folder id, calling create under an
	// exclusive per-key lock when no mapping exists. created reports whether
	// create ran and its result was stored.
	ResolveOrCreate(ctx context.Context, key model.FolderKey, create FolderCreateFunc) (folderID string, created bool, err error)
	// Invalidate removes the mapping for key. It reports whether a row existed.
	Invalidate(ctx context.Context, key model.FolderKey) (bool, error)
	// ListByRecipient returns every mapping of a recipient.
	ListByRecipient(ctx context.Context, recipientID string) ([]model.FolderMapping, error)
}

// BindingStore reads recipient bindings of shared contexts.
type BindingStore interface {
	ListRecipients(ctx context.Context, contextID string) ([]string, error)
}

// CredentialStore hands out per-recipient OAuth token sources.
// It returns upload.ErrCredentialNotFound or upload.ErrCredentialExpired when
// the recipient cannot be authenticated.
type CredentialStore interface {
	TokenSource(ctx context.Context, recipientID string) (oauth2.TokenSource, error)
}

// CloudDrive is the subset of the cloud storage API the pipeline calls.
// Failures are reported as *upload.StorageError where the adapter can classify them.
type CloudDrive interface {
	FindFolder(ctx context.Context, name, parentID string) (folderID string, found bool, err error)
	CreateFolder(ctx context.Context, name, parentID string) (string, error)
	GetFolder(ctx context.Context, folderID string) (model.DriveFolder, error)
	RenameFolder(ctx context.Context, folderID, name string) error
	UploadFile(ctx context.Context, params model.UploadFileParams) (*model.DriveFile, error)
}

// DriveFactory builds a CloudDrive acting as the owner of a token source.
type DriveFactory interface {
	NewDrive(ctx context.Context, ts oauth2.TokenSource) (CloudDrive, error)
}

// AttachmentSource downloads attachment bytes from the chat platform.
// It returns upload.ErrAttachmentNotFound for permanently missing content and
// upload.ErrRateLimited when the platform throttles the caller.
type AttachmentSource interface {
	Download(ctx context.Context, messageID string) (io.ReadCloser, error)
}

// Notifier pushes a text message to a chat target. Delivery is best-effort.
type Notifier interface {
	Push(ctx context.Context, to, text string) error
}

// ChatDirectory resolves display names on the chat platform.
type ChatDirectory interface {
	GroupName(ctx context.Context, groupID string) (string, error)
	UserName(ctx context.Context, userID string) (string, error)
}

// ArchivedBlob describes a retained copy of a staged file.
type ArchivedBlob struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// BlobArchive retains staged files of failed uploads so they can be re-driven.
// Get returns upload.ErrBlobNotFound for unknown keys.
type BlobArchive interface {
	Put(ctx context.Context, key string, r io.Reader, size int64) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
