package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/oauth2"

	"github.com/driveline/driveline/internal/domain/model"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{name: "nil", err: nil, want: ClassNone},
		{name: "deadline", err: fmt.Errorf("upload: %w", context.DeadlineExceeded), want: ClassTimeout},
		{name: "hard limit", err: ErrHardLimitExceeded, want: ClassTimeout},
		{name: "net timeout", err: &url.Error{Op: "Post", URL: "x", Err: timeoutErr{}}, want: ClassTimeout},
		{name: "missing credential", err: fmt.Errorf("load: %w", ErrCredentialNotFound), want: ClassAuthInvalid},
		{name: "expired credential", err: ErrCredentialExpired, want: ClassAuthInvalid},
		{name: "oauth refresh rejected", err: &oauth2.RetrieveError{ErrorCode: "invalid_grant"}, want: ClassAuthInvalid},
		{
			name: "storage not found",
			err:  NewStorageError("create file", StorageNotFound, 404, errors.New("File not found")),
			want: ClassResourceMissing,
		},
		{
			name: "storage forbidden",
			err:  NewStorageError("create file", StoragePermissionDenied, 403, errors.New("forbidden")),
			want: ClassPermissionDenied,
		},
		{
			name: "storage unauthorized",
			err:  NewStorageError("list", StorageUnauthorized, 401, errors.New("invalid credentials")),
			want: ClassAuthInvalid,
		},
		{
			name: "storage transient",
			err:  NewStorageError("create file", StorageTransient, 503, errors.New("backend error")),
			want: ClassTransientNetwork,
		},
		{name: "connection reset", err: fmt.Errorf("read: %w", syscall.ECONNRESET), want: ClassTransientNetwork},
		{name: "unexpected eof", err: io.ErrUnexpectedEOF, want: ClassTransientNetwork},
		{name: "dial error", err: &net.OpError{Op: "dial", Err: errors.New("refused")}, want: ClassTransientNetwork},
		{
			name: "cancelled request is not a network error",
			err:  &url.Error{Op: "Post", URL: "x", Err: context.Canceled},
			want: ClassCanceled,
		},
		{name: "rate limited", err: fmt.Errorf("download: %w", ErrRateLimited), want: ClassTransientNetwork},
		{name: "attachment gone", err: ErrAttachmentNotFound, want: ClassUnclassified},
		{name: "plain error", err: errors.New("boom"), want: ClassUnclassified},
		{
			name: "folder resolution classified by cause",
			err: &FolderResolutionError{
				Key: model.FolderKey{ContextID: "G1", RecipientID: "U1"},
				Err: NewStorageError("create folder", StoragePermissionDenied, 403, errors.New("denied")),
			},
			want: ClassPermissionDenied,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestFolderResolutionError_Is(t *testing.T) {
	err := fmt.Errorf("task: %w", &FolderResolutionError{
		Key: model.FolderKey{ContextID: "G1", RecipientID: "U1"},
		Err: errors.New("quota"),
	})
	assert.ErrorIs(t, err, ErrFolderResolutionFailed)
	assert.Contains(t, err.Error(), "G1/U1")
}

func TestStatusFor(t *testing.T) {
	folderErr := &FolderResolutionError{Err: errors.New("boom")}

	assert.Equal(t, model.StatusSuccess, StatusFor(ClassNone, nil))
	assert.Equal(t, model.StatusConnectionError, StatusFor(ClassTransientNetwork, nil))
	assert.Equal(t, model.StatusTimeout, StatusFor(ClassTimeout, nil))
	assert.Equal(t, model.StatusAuthInvalid, StatusFor(ClassAuthInvalid, nil))
	assert.Equal(t, model.StatusResourceMissing, StatusFor(ClassResourceMissing, nil))
	assert.Equal(t, model.StatusPermissionDenied, StatusFor(ClassPermissionDenied, nil))
	assert.Equal(t, model.StatusFolderResolution, StatusFor(ClassUnclassified, folderErr))
	assert.Equal(t, model.StatusUnknown, StatusFor(ClassUnclassified, errors.New("x")))
	assert.Equal(t, model.StatusUnknown, StatusFor(ClassCanceled, context.Canceled))
}
