// Package errors derives low-cardinality tags from errors for metrics and logs.
package errors

import (
	"context"
	goerrors "errors"
	"reflect"
	"strings"

	"github.com/driveline/driveline/internal/domain/upload"
	apperrors "github.com/driveline/driveline/internal/errors"
)

// Classify returns a normalized error tag suitable for metrics and logs.
// Known pipeline errors map to stable names; anything else is tagged with the
// snake_cased type of the innermost wrapped error.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	var se *upload.StorageError
	if goerrors.As(err, &se) {
		return "storage_" + string(se.Kind)
	}
	var ae *apperrors.AppError
	if goerrors.As(err, &ae) && ae.Code != "" {
		return "db_" + string(ae.Code)
	}

	switch {
	case goerrors.Is(err, upload.ErrHardLimitExceeded):
		return "hard_limit"
	case goerrors.Is(err, context.DeadlineExceeded):
		return "deadline_exceeded"
	case goerrors.Is(err, context.Canceled):
		return "canceled"
	case goerrors.Is(err, upload.ErrCredentialNotFound):
		return "credential_not_found"
	case goerrors.Is(err, upload.ErrCredentialExpired):
		return "credential_expired"
	}

	return typeName(err)
}

func typeName(err error) string {
	for {
		unwrapped := goerrors.Unwrap(err)
		if unwrapped == nil {
			break
		}
		err = unwrapped
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}

	name := strings.ToLower(strings.ReplaceAll(t.String(), "*", ""))
	name = strings.ReplaceAll(name, ".", "_")
	if name == "" {
		return "unknown"
	}
	return name
}
