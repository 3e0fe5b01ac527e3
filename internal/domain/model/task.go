package model

import "time"

// TaskState is the lifecycle state of one upload task.
type TaskState string

const (
	TaskPending   TaskState = "pending"
	TaskRunning   TaskState = "running"
	TaskRetrying  TaskState = "retrying"
	TaskSucceeded TaskState = "succeeded"
	TaskFailed    TaskState = "failed"
)

// Terminal reports whether no further automatic attempt will happen.
func (s TaskState) Terminal() bool {
	return s == TaskSucceeded || s == TaskFailed
}

// UploadTask transfers one staged file into one recipient's drive.
type UploadTask struct {
	JobID        string
	StagedPath   string
	BlobName     string
	ContextKind  ContextKind
	ContextID    string
	RecipientID  string
	NotifyHandle string
	// ArchiveKey is where the staged file is retained if the job fails.
	ArchiveKey string
	// RedriveRowID is set for manual re-drives; the outcome overwrites that ledger row.
	RedriveRowID int64
}

// FolderKey returns the destination folder key of the task.
func (t UploadTask) FolderKey() FolderKey {
	return FolderKey{ContextID: t.ContextID, RecipientID: t.RecipientID}
}

// IsRedrive reports whether the task re-drives an existing ledger row.
func (t UploadTask) IsRedrive() bool {
	return t.RedriveRowID != 0
}

// TaskOutcome is the terminal result of an upload task.
type TaskOutcome struct {
	RecipientID string
	State       TaskState
	Status      UploadStatus
	// Class is the error class of the final failed attempt; empty on success.
	Class    string
	Attempts int
	FolderID string
	FileID   string
	FileLink string
	Err      error
	Duration time.Duration
}

// Succeeded reports whether the upload completed.
func (o TaskOutcome) Succeeded() bool {
	return o.State == TaskSucceeded
}

// AnyFailed reports whether at least one outcome did not succeed.
func AnyFailed(outcomes []TaskOutcome) bool {
	for _, o := range outcomes {
		if !o.Succeeded() {
			return true
		}
	}
	return false
}
