package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	drivev3 "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/driveline/driveline/internal/domain/model"
	"github.com/driveline/driveline/internal/domain/upload"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  *googleapi.Error
		want upload.StorageErrorKind
	}{
		{name: "not found", err: &googleapi.Error{Code: 404}, want: upload.StorageNotFound},
		{name: "unauthorized", err: &googleapi.Error{Code: 401}, want: upload.StorageUnauthorized},
		{name: "forbidden", err: &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "insufficientFilePermissions"}}}, want: upload.StoragePermissionDenied},
		{name: "rate limit", err: &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "userRateLimitExceeded"}}}, want: upload.StorageTransient},
		{name: "too many requests", err: &googleapi.Error{Code: 429}, want: upload.StorageTransient},
		{name: "server error", err: &googleapi.Error{Code: 503}, want: upload.StorageTransient},
		{name: "bad request", err: &googleapi.Error{Code: 400}, want: upload.StorageInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapError("op", fmt.Errorf("wrapped: %w", tt.err))
			var se *upload.StorageError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.want, se.Kind)
			assert.Equal(t, tt.err.Code, se.Code)
			assert.Equal(t, "op", se.Op)
		})
	}
}

func TestMapError_NonAPIError(t *testing.T) {
	assert.NoError(t, mapError("op", nil))

	cause := io.ErrUnexpectedEOF
	err := mapError("upload file", cause)
	require.ErrorIs(t, err, cause)
	assert.Equal(t, upload.ClassTransientNetwork, upload.Classify(err))
}

func TestEscapeQuery(t *testing.T) {
	assert.Equal(t, `Mom\'s \\ photos`, escapeQuery(`Mom's \ photos`))
}

// fakeDriveAPI serves the handful of Drive v3 endpoints the client calls.
type fakeDriveAPI struct {
	mu       sync.Mutex
	queries  []string
	created  []drivev3.File
	renamed  map[string]string
	uploaded []string
}

func (f *fakeDriveAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	path := r.URL.Path
	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/files"):
		q := r.URL.Query().Get("q")
		f.queries = append(f.queries, q)
		if strings.Contains(q, "name = 'LineBot'") {
			_, _ = io.WriteString(w, `{"files":[{"id":"root-folder","name":"LineBot"}]}`)
			return
		}
		_, _ = io.WriteString(w, `{"files":[]}`)
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/files") && r.URL.Query().Get("uploadType") != "":
		body, _ := io.ReadAll(r.Body)
		f.uploaded = append(f.uploaded, string(body))
		_, _ = io.WriteString(w, `{"id":"file-1","name":"a.jpg"}`)
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/files"):
		var meta drivev3.File
		_ = json.NewDecoder(r.Body).Decode(&meta)
		f.created = append(f.created, meta)
		_, _ = fmt.Fprintf(w, `{"id":"folder-%d"}`, len(f.created))
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/files/gone"):
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"code":404,"message":"File not found: gone.","errors":[{"reason":"notFound"}]}}`)
	case r.Method == http.MethodGet && strings.Contains(path, "/files/"):
		_, _ = io.WriteString(w, `{"id":"folder-9","name":"Old name","trashed":true}`)
	case r.Method == http.MethodPatch && strings.Contains(path, "/files/"):
		var meta drivev3.File
		_ = json.NewDecoder(r.Body).Decode(&meta)
		id := path[strings.LastIndex(path, "/")+1:]
		f.renamed[id] = meta.Name
		_, _ = fmt.Fprintf(w, `{"id":%q}`, id)
	default:
		http.Error(w, `{"error":{"code":400,"message":"unexpected"}}`, http.StatusBadRequest)
	}
}

func newTestClient(t *testing.T) (*Client, *fakeDriveAPI) {
	t.Helper()
	api := &fakeDriveAPI{renamed: make(map[string]string)}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	svc, err := drivev3.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	client, err := NewClient(svc, 0)
	require.NoError(t, err)
	return client, api
}

func TestClient_FindFolder(t *testing.T) {
	client, api := newTestClient(t)
	ctx := context.Background()

	id, found, err := client.FindFolder(ctx, "LineBot", "")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "root-folder", id)

	_, found, err = client.FindFolder(ctx, "Family", "root-folder")
	require.NoError(t, err)
	assert.False(t, found)

	require.Len(t, api.queries, 2)
	assert.Contains(t, api.queries[0], "'root' in parents")
	assert.Contains(t, api.queries[1], "'root-folder' in parents")
	assert.Contains(t, api.queries[1], "trashed = false")
}

func TestClient_CreateFolder(t *testing.T) {
	client, api := newTestClient(t)

	id, err := client.CreateFolder(context.Background(), "Family", "root-folder")
	require.NoError(t, err)
	assert.Equal(t, "folder-1", id)

	require.Len(t, api.created, 1)
	assert.Equal(t, "Family", api.created[0].Name)
	assert.Equal(t, FolderMimeType, api.created[0].MimeType)
	assert.Equal(t, []string{"root-folder"}, api.created[0].Parents)
}

func TestClient_GetAndRenameFolder(t *testing.T) {
	client, api := newTestClient(t)
	ctx := context.Background()

	folder, err := client.GetFolder(ctx, "folder-9")
	require.NoError(t, err)
	assert.Equal(t, model.DriveFolder{ID: "folder-9", Name: "Old name", Trashed: true}, folder)

	require.NoError(t, client.RenameFolder(ctx, "folder-9", "New name"))
	assert.Equal(t, "New name", api.renamed["folder-9"])
}

func TestClient_GetFolderNotFound(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.GetFolder(context.Background(), "gone")
	var se *upload.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, upload.StorageNotFound, se.Kind)
	assert.Equal(t, upload.ClassResourceMissing, upload.Classify(err))
}

func TestClient_UploadFile(t *testing.T) {
	client, api := newTestClient(t)

	file, err := client.UploadFile(context.Background(), model.UploadFileParams{
		Name:     "a.jpg",
		MimeType: "image/jpeg",
		ParentID: "folder-1",
		Content:  strings.NewReader("jpeg-bytes"),
		Size:     10,
	})
	require.NoError(t, err)
	assert.Equal(t, "file-1", file.ID)
	assert.Equal(t, "https://drive.google.com/file/d/file-1/view?usp=sharing", file.WebViewLink)

	require.Len(t, api.uploaded, 1)
	assert.Contains(t, api.uploaded[0], "jpeg-bytes")
}

func TestClient_UploadFileRequiresContent(t *testing.T) {
	client, _ := newTestClient(t)
	_, err := client.UploadFile(context.Background(), model.UploadFileParams{Name: "a.jpg"})
	require.Error(t, err)
}

func TestFactory_NewDrive(t *testing.T) {
	f := NewFactory(FactoryConfig{})
	_, err := f.NewDrive(context.Background(), nil)
	require.Error(t, err)
	assert.False(t, errors.Is(err, upload.ErrCredentialNotFound))
}
