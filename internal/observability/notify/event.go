// Package notify defines the operator-facing failure event and the sinks that deliver it.
package notify

import (
	"context"
	"time"
)

// Severity constants recognised by downstream sinks.
const (
	SeverityCritical = "critical"
	SeverityError    = "error"
	SeverityWarning  = "warning"
)

// UploadFailurePayload describes one recipient's terminal upload failure.
type UploadFailurePayload struct {
	JobID       string
	RecipientID string
	ContextKind string
	ContextID   string
	ContextName string
	BlobName    string
	Status      string
	Class       string
	Attempts    int
	Error       string
	ErrorClass  string
	Severity    string
	OccurredAt  time.Time
	Metadata    map[string]string
}

// Sink describes a destination capable of consuming upload failure events.
type Sink interface {
	SendUploadFailure(ctx context.Context, payload UploadFailurePayload) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, payload UploadFailurePayload) error

// SendUploadFailure implements the Sink interface.
func (f SinkFunc) SendUploadFailure(ctx context.Context, payload UploadFailurePayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}
