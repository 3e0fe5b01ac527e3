// Package testutil provides testing utilities and helpers for the driveline upload pipeline.
package testutil

import (
	"time"

	"github.com/driveline/driveline/internal/domain/model"
)

// DescriptorBuilder provides a fluent interface for building JobDescriptor values for testing.
type DescriptorBuilder struct {
	d model.JobDescriptor
}

// NewDescriptor creates a new DescriptorBuilder with sensible defaults: a
// one-on-one chat with originator U1 uploading a.jpg.
func NewDescriptor() *DescriptorBuilder {
	return &DescriptorBuilder{
		d: model.JobDescriptor{
			ID:                    "job-1",
			StagedPath:            "/tmp/driveline/a.jpg",
			BlobName:              "a.jpg",
			ContextKind:           model.ContextIndividual,
			ContextID:             "U1",
			OriginatorRecipientID: "U1",
			SubmittedAt:           TestTime(),
		},
	}
}

// WithID sets the job id.
func (b *DescriptorBuilder) WithID(id string) *DescriptorBuilder {
	b.d.ID = id
	return b
}

// WithBlob sets the staged path and the destination file name.
func (b *DescriptorBuilder) WithBlob(path, name string) *DescriptorBuilder {
	b.d.StagedPath = path
	b.d.BlobName = name
	return b
}

// Shared switches the descriptor to a group context.
func (b *DescriptorBuilder) Shared(contextID string) *DescriptorBuilder {
	b.d.ContextKind = model.ContextShared
	b.d.ContextID = contextID
	return b
}

// WithOriginator sets the recipient that sent the attachment.
func (b *DescriptorBuilder) WithOriginator(recipientID string) *DescriptorBuilder {
	b.d.OriginatorRecipientID = recipientID
	return b
}

// WithNotifyHandle sets the chat handle used for completion messages.
func (b *DescriptorBuilder) WithNotifyHandle(handle string) *DescriptorBuilder {
	b.d.NotifyHandle = handle
	return b
}

// WithSubmittedAt sets the submission time.
func (b *DescriptorBuilder) WithSubmittedAt(ts time.Time) *DescriptorBuilder {
	b.d.SubmittedAt = ts
	return b
}

// Build returns the configured descriptor.
func (b *DescriptorBuilder) Build() model.JobDescriptor {
	return b.d
}

// AttemptBuilder provides a fluent interface for building RecordAttemptParams.
type AttemptBuilder struct {
	p model.RecordAttemptParams
}

// NewAttempt creates an AttemptBuilder for a failed connection attempt by U1.
func NewAttempt() *AttemptBuilder {
	return &AttemptBuilder{
		p: model.RecordAttemptParams{
			RecipientID: "U1",
			BlobName:    "a.jpg",
			ContextKind: model.ContextIndividual,
			ContextID:   "U1",
			Status:      model.StatusConnectionError,
		},
	}
}

// WithRecipient sets the recipient id.
func (b *AttemptBuilder) WithRecipient(id string) *AttemptBuilder {
	b.p.RecipientID = id
	return b
}

// WithBlob sets the blob name.
func (b *AttemptBuilder) WithBlob(name string) *AttemptBuilder {
	b.p.BlobName = name
	return b
}

// Shared sets a group context with its display name.
func (b *AttemptBuilder) Shared(contextID, name string) *AttemptBuilder {
	b.p.ContextKind = model.ContextShared
	b.p.ContextID = contextID
	b.p.ContextName = name
	return b
}

// WithStatus sets the attempt status.
func (b *AttemptBuilder) WithStatus(status model.UploadStatus) *AttemptBuilder {
	b.p.Status = status
	return b
}

// Build returns the configured parameters.
func (b *AttemptBuilder) Build() model.RecordAttemptParams {
	return b.p
}
