package model

import "time"

// UploadStatus is the terminal status stored on a ledger row.
type UploadStatus string

const (
	StatusSuccess          UploadStatus = "success"
	StatusConnectionError  UploadStatus = "connection_error"
	StatusTimeout          UploadStatus = "timeout_error"
	StatusAuthInvalid      UploadStatus = "auth_invalid_error"
	StatusResourceMissing  UploadStatus = "resource_missing_error"
	StatusPermissionDenied UploadStatus = "permission_denied_error"
	StatusFolderResolution UploadStatus = "folder_resolution_error"
	StatusUnknown          UploadStatus = "unknown_error"
	StatusFileMissing      UploadStatus = "file_missing"
)

// Valid returns true if the status is one the ledger accepts.
func (s UploadStatus) Valid() bool {
	switch s {
	case StatusSuccess, StatusConnectionError, StatusTimeout, StatusAuthInvalid,
		StatusResourceMissing, StatusPermissionDenied, StatusFolderResolution,
		StatusUnknown, StatusFileMissing:
		return true
	}
	return false
}

// IsSuccess reports whether the status marks a completed upload.
func (s UploadStatus) IsSuccess() bool {
	return s == StatusSuccess
}

// UploadAttempt is one ledger row: the terminal outcome of one job for one recipient.
type UploadAttempt struct {
	ID          int64        `json:"id"           db:"id"`
	RecipientID string       `json:"recipient_id" db:"recipient_id"`
	BlobName    string       `json:"blob_name"    db:"blob_name"`
	ContextKind ContextKind  `json:"context_kind" db:"context_kind"`
	ContextID   string       `json:"context_id"   db:"context_id"`
	ContextName string       `json:"context_name" db:"context_name"`
	ArchiveKey  string       `json:"archive_key"  db:"archive_key"`
	Status      UploadStatus `json:"status"       db:"status"`
	CreatedAt   time.Time    `json:"created_at"   db:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"   db:"updated_at"`
}

// RecordAttemptParams carries the fields of a new ledger row.
type RecordAttemptParams struct {
	RecipientID string
	BlobName    string
	ContextKind ContextKind
	ContextID   string
	ContextName string
	ArchiveKey  string
	Status      UploadStatus
}

// LedgerQuery selects ledger rows for one recipient inside a trailing window.
type LedgerQuery struct {
	RecipientID string
	Window      time.Duration
	FailedOnly  bool
	Limit       int
}

// RetrySummary counts the outcome of a manual re-drive.
type RetrySummary struct {
	Found     int `json:"found"`
	Missing   int `json:"missing"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}
