package model

import "io"

// DriveFolder is a folder as reported by the cloud drive.
type DriveFolder struct {
	ID      string
	Name    string
	Trashed bool
}

// DriveFile is an uploaded file as reported by the cloud drive.
type DriveFile struct {
	ID          string
	Name        string
	WebViewLink string
}

// UploadFileParams describes one file transfer into a drive folder.
type UploadFileParams struct {
	Name     string
	MimeType string
	ParentID string
	Content  io.Reader
	Size     int64
}
