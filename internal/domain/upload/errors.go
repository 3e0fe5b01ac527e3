// Package upload holds the failure taxonomy of the upload pipeline and the
// policy that decides between retrying and giving up.
package upload

import (
	"errors"
	"fmt"

	"github.com/driveline/driveline/internal/domain/model"
)

var (
	// ErrFetchFailed marks an attachment that could not be downloaded.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrCredentialNotFound is returned when a recipient has no stored credential.
	ErrCredentialNotFound = errors.New("credential not found")
	// ErrCredentialExpired is returned when a stored credential can no longer be refreshed.
	ErrCredentialExpired = errors.New("credential expired")
	// ErrFolderResolutionFailed marks a failure to create the destination folder.
	ErrFolderResolutionFailed = errors.New("folder resolution failed")
	// ErrBlobNotFound is returned by archives when no retained copy exists.
	ErrBlobNotFound = errors.New("blob not found")
	// ErrAttachmentNotFound is returned when the chat platform no longer has the content.
	ErrAttachmentNotFound = errors.New("attachment not found")
	// ErrRateLimited is returned when the chat platform throttles downloads.
	ErrRateLimited = errors.New("rate limited")
	// ErrHardLimitExceeded marks an attempt abandoned at the hard time limit.
	ErrHardLimitExceeded = errors.New("task hard time limit exceeded")
)

// StorageErrorKind is the cloud storage failure category.
type StorageErrorKind string

const (
	StorageNotFound         StorageErrorKind = "not_found"
	StoragePermissionDenied StorageErrorKind = "permission_denied"
	StorageUnauthorized     StorageErrorKind = "unauthorized"
	StorageTransient        StorageErrorKind = "transient"
	StorageInvalid          StorageErrorKind = "invalid"
)

// StorageError is a cloud storage API failure normalised by the drive adapter.
type StorageError struct {
	Op   string
	Kind StorageErrorKind
	// Code is the HTTP status code when one was returned.
	Code int
	Err  error
}

func (e *StorageError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("storage %s: %s (http %d): %v", e.Op, e.Kind, e.Code, e.Err)
	}
	return fmt.Sprintf("storage %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError builds a StorageError.
func NewStorageError(op string, kind StorageErrorKind, code int, err error) *StorageError {
	return &StorageError{Op: op, Kind: kind, Code: code, Err: err}
}

// FolderResolutionError wraps the cause of a failed folder creation for a key.
// It matches ErrFolderResolutionFailed with errors.Is while still exposing the cause.
type FolderResolutionError struct {
	Key model.FolderKey
	Err error
}

func (e *FolderResolutionError) Error() string {
	return fmt.Sprintf("resolve folder %s: %v", e.Key, e.Err)
}

func (e *FolderResolutionError) Unwrap() error { return e.Err }

// Is reports ErrFolderResolutionFailed as a match.
func (e *FolderResolutionError) Is(target error) bool {
	return target == ErrFolderResolutionFailed
}
