// Package drive implements the cloud storage ports on top of the Google Drive v3 API.
package drive

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	drivev3 "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/driveline/driveline/internal/core"
	"github.com/driveline/driveline/internal/domain/model"
)

// FolderMimeType is the MIME type Drive uses for folders.
const FolderMimeType = "application/vnd.google-apps.folder"

// DefaultChunkSize is the resumable upload chunk size used when none is configured.
const DefaultChunkSize = 8 << 20

// shareLinkFormat renders a file link when Drive omits webViewLink.
const shareLinkFormat = "https://drive.google.com/file/d/%s/view?usp=sharing"

// Client is a CloudDrive acting as one recipient.
type Client struct {
	svc       *drivev3.Service
	chunkSize int
}

var _ core.CloudDrive = (*Client)(nil)

// NewClient wraps an authenticated Drive service.
func NewClient(svc *drivev3.Service, chunkSize int) (*Client, error) {
	if svc == nil {
		return nil, errors.New("drive service is required")
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Client{svc: svc, chunkSize: chunkSize}, nil
}

// FindFolder looks up a non-trashed folder by exact name under parentID.
// An empty parentID means the drive root.
func (c *Client) FindFolder(ctx context.Context, name, parentID string) (string, bool, error) {
	if parentID == "" {
		parentID = "root"
	}
	q := fmt.Sprintf("mimeType = '%s' and name = '%s' and '%s' in parents and trashed = false",
		FolderMimeType, escapeQuery(name), escapeQuery(parentID))

	res, err := c.svc.Files.List().
		Q(q).
		Spaces("drive").
		Fields("files(id, name)").
		PageSize(1).
		Context(ctx).
		Do()
	if err != nil {
		return "", false, mapError("find folder", err)
	}
	if len(res.Files) == 0 {
		return "", false, nil
	}
	return res.Files[0].Id, true, nil
}

// CreateFolder creates a folder under parentID and returns its id.
func (c *Client) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	meta := &drivev3.File{Name: name, MimeType: FolderMimeType}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}
	f, err := c.svc.Files.Create(meta).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", mapError("create folder", err)
	}
	return f.Id, nil
}

// GetFolder reads the name and trash state of a folder.
func (c *Client) GetFolder(ctx context.Context, folderID string) (model.DriveFolder, error) {
	f, err := c.svc.Files.Get(folderID).Fields("id, name, trashed").Context(ctx).Do()
	if err != nil {
		return model.DriveFolder{}, mapError("get folder", err)
	}
	return model.DriveFolder{ID: f.Id, Name: f.Name, Trashed: f.Trashed}, nil
}

// RenameFolder sets a folder's name.
func (c *Client) RenameFolder(ctx context.Context, folderID, name string) error {
	_, err := c.svc.Files.Update(folderID, &drivev3.File{Name: name}).Fields("id").Context(ctx).Do()
	if err != nil {
		return mapError("rename folder", err)
	}
	return nil
}

// UploadFile streams Content into a new file under ParentID.
func (c *Client) UploadFile(ctx context.Context, p model.UploadFileParams) (*model.DriveFile, error) {
	if p.Content == nil {
		return nil, errors.New("upload content is required")
	}
	meta := &drivev3.File{Name: p.Name, MimeType: p.MimeType}
	if p.ParentID != "" {
		meta.Parents = []string{p.ParentID}
	}

	opts := []googleapi.MediaOption{googleapi.ChunkSize(c.chunkSize)}
	if p.MimeType != "" {
		opts = append(opts, googleapi.ContentType(p.MimeType))
	}

	f, err := c.svc.Files.Create(meta).
		Fields("id, name, webViewLink").
		Media(p.Content, opts...).
		Context(ctx).
		Do()
	if err != nil {
		return nil, mapError("upload file", err)
	}

	link := f.WebViewLink
	if link == "" {
		link = fmt.Sprintf(shareLinkFormat, f.Id)
	}
	return &model.DriveFile{ID: f.Id, Name: f.Name, WebViewLink: link}, nil
}

// escapeQuery escapes a literal for a Drive search query.
func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

// FactoryConfig configures NewFactory.
type FactoryConfig struct {
	ChunkSize int
	// ClientOptions are appended after the token source (e.g. a test endpoint).
	ClientOptions []option.ClientOption
}

// Factory builds per-recipient Drive clients.
type Factory struct {
	chunkSize int
	opts      []option.ClientOption
}

var _ core.DriveFactory = (*Factory)(nil)

// NewFactory constructs a Factory.
func NewFactory(cfg FactoryConfig) *Factory {
	return &Factory{chunkSize: cfg.ChunkSize, opts: cfg.ClientOptions}
}

// NewDrive returns a CloudDrive authenticated by ts.
func (f *Factory) NewDrive(ctx context.Context, ts oauth2.TokenSource) (core.CloudDrive, error) {
	if ts == nil {
		return nil, errors.New("token source is required")
	}
	opts := make([]option.ClientOption, 0, len(f.opts)+1)
	opts = append(opts, option.WithTokenSource(ts))
	opts = append(opts, f.opts...)

	svc, err := drivev3.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return NewClient(svc, f.chunkSize)
}
