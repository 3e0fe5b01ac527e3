package service

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/driveline/driveline/internal/data/memstore"
	"github.com/driveline/driveline/internal/domain/upload"
	"github.com/driveline/driveline/internal/mocks/fake"
	"github.com/driveline/driveline/internal/observability/notify"
	"github.com/driveline/driveline/internal/observability/statsd"
)

const testStagingDir = "/staging"

// jpegBytes is enough of a JPEG header for content sniffing.
var jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingOps struct {
	mu       sync.Mutex
	payloads []notify.UploadFailurePayload
}

func (r *recordingOps) NotifyUploadFailure(_ context.Context, p notify.UploadFailurePayload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, p)
}

func (r *recordingOps) Payloads() []notify.UploadFailurePayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.UploadFailurePayload(nil), r.payloads...)
}

type recordingSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleep) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleep) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

// harness wires an Uploader over in-memory stores and fakes.
type harness struct {
	fs       afero.Fs
	ledger   *memstore.Ledger
	mappings *memstore.FolderMappings
	bindings *memstore.Bindings
	creds    *memstore.Credentials
	drives   *fake.Drives
	notifier *fake.Notifier
	ops      *recordingOps
	sleeper  *recordingSleep
	metrics  *statsd.Recorder
	folders  *FolderService
	uploader *Uploader
}

func newHarness(t *testing.T, configure ...func(*UploaderOptions)) *harness {
	t.Helper()

	h := &harness{
		fs:       afero.NewMemMapFs(),
		ledger:   memstore.NewLedger(nil),
		mappings: memstore.NewFolderMappings(),
		bindings: memstore.NewBindings(),
		creds:    memstore.NewCredentials(),
		drives:   fake.NewDrives(),
		notifier: &fake.Notifier{},
		ops:      &recordingOps{},
		sleeper:  &recordingSleep{},
		metrics:  &statsd.Recorder{},
	}
	require.NoError(t, h.fs.MkdirAll(testStagingDir, 0o750))

	folders, err := NewFolderService(FolderServiceOptions{Repo: h.mappings, Logger: discardLogger()})
	require.NoError(t, err)
	h.folders = folders

	supervisor, err := upload.NewSupervisor(upload.DefaultPolicy())
	require.NoError(t, err)

	opts := UploaderOptions{
		Credentials: h.creds,
		Drives:      h.drives,
		Folders:     folders,
		Ledger:      h.ledger,
		Supervisor:  supervisor,
		Fs:          h.fs,
		Notifier:    h.notifier,
		Ops:         h.ops,
		Metrics:     h.metrics,
		Logger:      discardLogger(),
		SoftLimit:   5 * time.Second,
		HardLimit:   10 * time.Second,
		Sleep:       h.sleeper.Sleep,
	}
	for _, fn := range configure {
		fn(&opts)
	}
	h.uploader, err = NewUploader(opts)
	require.NoError(t, err)
	return h
}

// grant stores a credential for recipientID and returns their drive.
func (h *harness) grant(recipientID string) *fake.Drive {
	h.creds.Put(recipientID, &oauth2.Token{AccessToken: recipientID})
	return h.drives.For(recipientID)
}

// stage writes a staged file and returns its path.
func (h *harness) stage(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(testStagingDir, name)
	require.NoError(t, afero.WriteFile(h.fs, path, content, 0o640))
	return path
}

func (h *harness) exists(path string) bool {
	ok, _ := afero.Exists(h.fs, path)
	return ok
}
