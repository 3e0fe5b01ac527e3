package upload

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"syscall"

	"golang.org/x/oauth2"

	"github.com/driveline/driveline/internal/domain/model"
)

// Class is the retry policy class of an attempt failure.
type Class string

const (
	ClassNone             Class = ""
	ClassTransientNetwork Class = "transient_network"
	ClassTimeout          Class = "timeout"
	ClassAuthInvalid      Class = "auth_invalid"
	ClassResourceMissing  Class = "resource_missing"
	ClassPermissionDenied Class = "permission_denied"
	ClassCanceled         Class = "canceled"
	ClassUnclassified     Class = "unclassified"
)

// Retryable reports whether the class is eligible for a bounded retry.
func (c Class) Retryable() bool {
	return c == ClassTransientNetwork || c == ClassTimeout
}

// Classify maps an attempt error to its policy class. A nil error has no class.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}

	// Hard-limit and deadline checks come first: a timed out request often
	// surfaces wrapped in url.Error or net.OpError.
	if errors.Is(err, ErrHardLimitExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	// A cancelled request is wrapped in url.Error like a network failure.
	if errors.Is(err, context.Canceled) {
		return ClassCanceled
	}

	if errors.Is(err, ErrCredentialNotFound) || errors.Is(err, ErrCredentialExpired) {
		return ClassAuthInvalid
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return ClassAuthInvalid
	}

	if errors.Is(err, ErrRateLimited) {
		return ClassTransientNetwork
	}

	var storageErr *StorageError
	if errors.As(err, &storageErr) {
		switch storageErr.Kind {
		case StorageNotFound:
			return ClassResourceMissing
		case StoragePermissionDenied:
			return ClassPermissionDenied
		case StorageUnauthorized:
			return ClassAuthInvalid
		case StorageTransient:
			return ClassTransientNetwork
		}
		// Invalid requests fall through to the cause, which may still be a network error.
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTimeout
	}

	if isConnectionError(err) {
		return ClassTransientNetwork
	}

	return ClassUnclassified
}

func isConnectionError(err error) bool {
	if errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// StatusFor maps a terminal class to the ledger status. A folder resolution
// failure whose cause is otherwise unclassified keeps its own status.
func StatusFor(class Class, err error) model.UploadStatus {
	switch class {
	case ClassNone:
		return model.StatusSuccess
	case ClassTransientNetwork:
		return model.StatusConnectionError
	case ClassTimeout:
		return model.StatusTimeout
	case ClassAuthInvalid:
		return model.StatusAuthInvalid
	case ClassResourceMissing:
		return model.StatusResourceMissing
	case ClassPermissionDenied:
		return model.StatusPermissionDenied
	}
	if errors.Is(err, ErrFolderResolutionFailed) {
		return model.StatusFolderResolution
	}
	return model.StatusUnknown
}
