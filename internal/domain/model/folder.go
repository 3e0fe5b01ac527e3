package model

import "time"

// FolderKey identifies a destination folder: one per (context, recipient) pair.
type FolderKey struct {
	ContextID   string `json:"context_id"`
	RecipientID string `json:"recipient_id"`
}

// String renders the key for logs and lock names.
func (k FolderKey) String() string {
	return k.ContextID + "/" + k.RecipientID
}

// FolderMapping is the persisted cloud folder assigned to a FolderKey.
type FolderMapping struct {
	Key       FolderKey `json:"key"`
	FolderID  string    `json:"folder_id"  db:"folder_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// FolderSyncReport summarises a folder maintenance pass for one recipient.
type FolderSyncReport struct {
	Checked   int `json:"checked"`
	Renamed   int `json:"renamed"`
	Missing   int `json:"missing"`
	Unchanged int `json:"unchanged"`
	Errors    int `json:"errors"`
}
