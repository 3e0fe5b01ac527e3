package model

import (
	"fmt"
	"strings"
	"time"
)

// AttachmentKind is the chat message type carrying the attachment.
type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentVideo AttachmentKind = "video"
	AttachmentAudio AttachmentKind = "audio"
	AttachmentFile  AttachmentKind = "file"
)

// Valid returns true if the kind is a downloadable attachment.
func (k AttachmentKind) Valid() bool {
	switch k {
	case AttachmentImage, AttachmentVideo, AttachmentAudio, AttachmentFile:
		return true
	}
	return false
}

// DefaultExtension is used when the content type cannot be sniffed.
func (k AttachmentKind) DefaultExtension() string {
	switch k {
	case AttachmentImage:
		return ".jpg"
	case AttachmentVideo:
		return ".mp4"
	case AttachmentAudio:
		return ".m4a"
	default:
		return ".bin"
	}
}

// FetchRequest references an attachment on the chat platform.
type FetchRequest struct {
	MessageID string         `json:"message_id"`
	Kind      AttachmentKind `json:"kind"`
	// FileName is the original name; only file messages carry one.
	FileName string `json:"file_name,omitempty"`
}

// StagedBlob is a downloaded attachment sitting in the staging area.
type StagedBlob struct {
	Path     string
	Name     string
	Size     int64
	MimeType string
	StagedAt time.Time
}

// IngestRequest is what the chat-event handler hands the pipeline for one attachment.
type IngestRequest struct {
	Attachment            FetchRequest `json:"attachment"`
	ContextKind           ContextKind  `json:"context_kind"`
	ContextID             string       `json:"context_id"`
	OriginatorRecipientID string       `json:"originator_recipient_id,omitempty"`
	NotifyHandle          string       `json:"notify_handle,omitempty"`
}

// Validate checks the request is complete enough to fetch and dispatch.
func (r *IngestRequest) Validate() error {
	if strings.TrimSpace(r.Attachment.MessageID) == "" {
		return fmt.Errorf("%w: message id is required", ErrInvalidDescriptor)
	}
	if !r.Attachment.Kind.Valid() {
		return fmt.Errorf("%w: attachment kind %q", ErrInvalidDescriptor, r.Attachment.Kind)
	}
	if !r.ContextKind.Valid() {
		return fmt.Errorf("%w: context kind %q", ErrInvalidDescriptor, r.ContextKind)
	}
	if strings.TrimSpace(r.ContextID) == "" {
		return fmt.Errorf("%w: context id is required", ErrInvalidDescriptor)
	}
	return nil
}
