// Package model defines the core data types shared by the driveline upload pipeline.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ContextKind identifies where an attachment was posted.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type ContextKind string

const (
	// ContextIndividual is a one-to-one chat; the context id is the recipient.
	ContextIndividual ContextKind = "individual"
	// ContextShared is a group chat; recipients come from the binding store.
	ContextShared ContextKind = "shared"
)

// ErrInvalidDescriptor is returned when a job descriptor fails validation.
var ErrInvalidDescriptor = errors.New("invalid job descriptor")

// Valid returns true if the ContextKind is known.
func (k ContextKind) Valid() bool {
	return k == ContextIndividual || k == ContextShared
}

// UnmarshalText implements encoding.TextUnmarshaler for ContextKind.
func (k *ContextKind) UnmarshalText(text []byte) error {
	v := ContextKind(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid ContextKind: %q", string(text))
	}
	*k = v
	return nil
}

// JobDescriptor describes one staged attachment and the context it came from.
// It drives exactly one pipeline run and is discarded after cleanup.
type JobDescriptor struct {
	ID                    string      `json:"id"`
	StagedPath            string      `json:"staged_path"`
	BlobName              string      `json:"blob_name"`
	ContextKind           ContextKind `json:"context_kind"`
	ContextID             string      `json:"context_id"`
	OriginatorRecipientID string      `json:"originator_recipient_id,omitempty"`
	// NotifyHandle is the chat target that receives share links and failure notices.
	NotifyHandle string    `json:"notify_handle,omitempty"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// ArchiveKey names the retained copy of the staged file. Blob names repeat
// across jobs, so the key is scoped by the job id.
func (d *JobDescriptor) ArchiveKey() string {
	if d.ID == "" {
		return d.BlobName
	}
	return d.ID + "_" + d.BlobName
}

// Validate checks the descriptor has everything dispatch and cleanup need.
func (d *JobDescriptor) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: nil", ErrInvalidDescriptor)
	}
	if strings.TrimSpace(d.StagedPath) == "" {
		return fmt.Errorf("%w: staged path is required", ErrInvalidDescriptor)
	}
	if strings.TrimSpace(d.BlobName) == "" {
		return fmt.Errorf("%w: blob name is required", ErrInvalidDescriptor)
	}
	if !d.ContextKind.Valid() {
		return fmt.Errorf("%w: context kind %q", ErrInvalidDescriptor, d.ContextKind)
	}
	if strings.TrimSpace(d.ContextID) == "" {
		return fmt.Errorf("%w: context id is required", ErrInvalidDescriptor)
	}
	return nil
}

// RecipientBinding binds a recipient to a shared context. Owned by the binding
// administration commands; the pipeline only reads it.
type RecipientBinding struct {
	ContextID   string `json:"context_id"   db:"context_id"`
	RecipientID string `json:"recipient_id" db:"recipient_id"`
}
