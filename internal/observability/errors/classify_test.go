package errors

import (
	"context"
	goerrors "errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/driveline/driveline/internal/domain/upload"
	apperrors "github.com/driveline/driveline/internal/errors"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{
			name: "storage error",
			err:  fmt.Errorf("upload: %w", upload.NewStorageError("create file", upload.StorageNotFound, 404, goerrors.New("gone"))),
			want: "storage_not_found",
		},
		{name: "app error", err: apperrors.NotFoundf("folder mapping"), want: "db_not_found"},
		{name: "hard limit", err: fmt.Errorf("attempt 2: %w", upload.ErrHardLimitExceeded), want: "hard_limit"},
		{name: "deadline", err: fmt.Errorf("upload: %w", context.DeadlineExceeded), want: "deadline_exceeded"},
		{name: "canceled", err: context.Canceled, want: "canceled"},
		{name: "no credential", err: fmt.Errorf("U2: %w", upload.ErrCredentialNotFound), want: "credential_not_found"},
		{name: "net op error", err: fmt.Errorf("dial: %w", &net.OpError{Op: "dial", Err: goerrors.New("refused")}), want: "errors_errorstring"},
		{name: "dns error", err: &net.DNSError{Err: "no such host", Name: "drive"}, want: "net_dnserror"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
