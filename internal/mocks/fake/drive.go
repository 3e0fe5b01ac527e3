// Package fake contains hand-written in-memory test doubles for the driveline
// ports. They keep state across calls, which generated mocks do not.
package fake

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"golang.org/x/oauth2"

	"github.com/driveline/driveline/internal/core"
	"github.com/driveline/driveline/internal/domain/model"
	"github.com/driveline/driveline/internal/domain/upload"
)

// Ensure compile-time conformance to ports.
var (
	_ core.CloudDrive   = (*Drive)(nil)
	_ core.DriveFactory = (*Drives)(nil)
)

type folder struct {
	name    string
	parent  string
	trashed bool
}

// UploadedFile is a file stored in a fake Drive.
type UploadedFile struct {
	ID       string
	Name     string
	ParentID string
	MimeType string
	Content  []byte
}

// Drive is an in-memory cloud drive. Folder ids are "folder-<n>" and file ids
// "file-<n>". Unknown or deleted folders are reported as storage NotFound.
type Drive struct {
	// UploadFunc, when set, replaces the default upload behavior.
	UploadFunc func(ctx context.Context, params model.UploadFileParams) (*model.DriveFile, error)

	mu         sync.Mutex
	next       int
	folders    map[string]*folder
	files      []UploadedFile
	creates    int
	uploads    int
	uploadErrs []error
}

// NewDrive returns an empty Drive.
func NewDrive() *Drive {
	return &Drive{folders: make(map[string]*folder)}
}

// FailUploads queues errors returned by the next upload calls, in order.
// A nil entry lets that call succeed.
func (d *Drive) FailUploads(errs ...error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.uploadErrs = append(d.uploadErrs, errs...)
}

func (d *Drive) id(prefix string) string {
	d.next++
	return fmt.Sprintf("%s-%d", prefix, d.next)
}

func notFound(op, id string) error {
	return upload.NewStorageError(op, upload.StorageNotFound, 404, fmt.Errorf("file not found: %s", id))
}

// FindFolder implements core.CloudDrive.
func (d *Drive) FindFolder(_ context.Context, name, parentID string) (string, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]string, 0, len(d.folders))
	for id := range d.folders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		f := d.folders[id]
		if f.name == name && f.parent == parentID && !f.trashed {
			return id, true, nil
		}
	}
	return "", false, nil
}

// CreateFolder implements core.CloudDrive.
func (d *Drive) CreateFolder(_ context.Context, name, parentID string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if parentID != "" {
		if _, ok := d.folders[parentID]; !ok {
			return "", notFound("create folder", parentID)
		}
	}
	id := d.id("folder")
	d.folders[id] = &folder{name: name, parent: parentID}
	d.creates++
	return id, nil
}

// GetFolder implements core.CloudDrive.
func (d *Drive) GetFolder(_ context.Context, folderID string) (model.DriveFolder, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.folders[folderID]
	if !ok {
		return model.DriveFolder{}, notFound("get folder", folderID)
	}
	return model.DriveFolder{ID: folderID, Name: f.name, Trashed: f.trashed}, nil
}

// RenameFolder implements core.CloudDrive.
func (d *Drive) RenameFolder(_ context.Context, folderID, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.folders[folderID]
	if !ok {
		return notFound("rename folder", folderID)
	}
	f.name = name
	return nil
}

// UploadFile implements core.CloudDrive.
func (d *Drive) UploadFile(ctx context.Context, params model.UploadFileParams) (*model.DriveFile, error) {
	d.mu.Lock()
	d.uploads++
	var queued error
	if len(d.uploadErrs) > 0 {
		queued = d.uploadErrs[0]
		d.uploadErrs = d.uploadErrs[1:]
	}
	d.mu.Unlock()

	if queued != nil {
		return nil, queued
	}
	if d.UploadFunc != nil {
		return d.UploadFunc(ctx, params)
	}

	content, err := io.ReadAll(params.Content)
	if err != nil {
		return nil, upload.NewStorageError("upload file", upload.StorageTransient, 0, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	parent, ok := d.folders[params.ParentID]
	if !ok || parent.trashed {
		return nil, notFound("upload file", params.ParentID)
	}
	id := d.id("file")
	d.files = append(d.files, UploadedFile{
		ID:       id,
		Name:     params.Name,
		ParentID: params.ParentID,
		MimeType: params.MimeType,
		Content:  bytes.Clone(content),
	})
	return &model.DriveFile{
		ID:          id,
		Name:        params.Name,
		WebViewLink: "https://drive.example/file/" + id,
	}, nil
}

// DeleteFolder removes a folder as if the owner deleted it permanently.
func (d *Drive) DeleteFolder(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.folders, id)
}

// TrashFolder moves a folder to the trash.
func (d *Drive) TrashFolder(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if f, ok := d.folders[id]; ok {
		f.trashed = true
	}
}

// FolderName returns the name of a folder, or "" when it does not exist.
func (d *Drive) FolderName(id string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if f, ok := d.folders[id]; ok {
		return f.name
	}
	return ""
}

// FolderParent returns the parent id of a folder.
func (d *Drive) FolderParent(id string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if f, ok := d.folders[id]; ok {
		return f.parent
	}
	return ""
}

// Files returns a copy of every uploaded file.
func (d *Drive) Files() []UploadedFile {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]UploadedFile(nil), d.files...)
}

// FolderCreates returns how many folders were created.
func (d *Drive) FolderCreates() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.creates
}

// UploadCalls returns how many uploads were attempted.
func (d *Drive) UploadCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.uploads
}

// Drives hands out one Drive per access token, so each recipient of a
// memstore.Credentials store gets their own drive.
type Drives struct {
	mu     sync.Mutex
	drives map[string]*Drive
}

// NewDrives returns an empty factory.
func NewDrives() *Drives {
	return &Drives{drives: make(map[string]*Drive)}
}

// For returns the drive owned by accessToken, creating it when needed.
func (f *Drives) For(accessToken string) *Drive {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.drives[accessToken]
	if !ok {
		d = NewDrive()
		f.drives[accessToken] = d
	}
	return d
}

// NewDrive implements core.DriveFactory.
func (f *Drives) NewDrive(_ context.Context, ts oauth2.TokenSource) (core.CloudDrive, error) {
	if ts == nil {
		return nil, errors.New("token source is required")
	}
	tok, err := ts.Token()
	if err != nil {
		return nil, err
	}
	return f.For(tok.AccessToken), nil
}
