package drive

import (
	"errors"
	"net/http"

	"google.golang.org/api/googleapi"

	"github.com/driveline/driveline/internal/domain/upload"
)

// rateLimitReasons are 403 reasons Drive uses for throttling.
var rateLimitReasons = map[string]bool{
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
}

// mapError converts Drive failures into *upload.StorageError. Errors without
// an HTTP status keep kind invalid; the classifier still inspects their cause.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return &upload.StorageError{Op: op, Kind: upload.StorageInvalid, Err: err}
	}
	return upload.NewStorageError(op, kindFor(gerr), gerr.Code, err)
}

func kindFor(gerr *googleapi.Error) upload.StorageErrorKind {
	switch {
	case gerr.Code == http.StatusNotFound:
		return upload.StorageNotFound
	case gerr.Code == http.StatusUnauthorized:
		return upload.StorageUnauthorized
	case gerr.Code == http.StatusForbidden && isRateLimited(gerr):
		return upload.StorageTransient
	case gerr.Code == http.StatusForbidden:
		return upload.StoragePermissionDenied
	case gerr.Code == http.StatusTooManyRequests, gerr.Code >= http.StatusInternalServerError:
		return upload.StorageTransient
	default:
		return upload.StorageInvalid
	}
}

func isRateLimited(gerr *googleapi.Error) bool {
	for _, item := range gerr.Errors {
		if rateLimitReasons[item.Reason] {
			return true
		}
	}
	return false
}
