package service

import (
	"context"
	"io"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/driveline/driveline/internal/adapters/archive"
	"github.com/driveline/driveline/internal/core"
	"github.com/driveline/driveline/internal/data/memstore"
	"github.com/driveline/driveline/internal/domain/model"
	"github.com/driveline/driveline/internal/mocks"
	"github.com/driveline/driveline/internal/mocks/fake"
)

type pipelineConfig struct {
	queueSize     int
	archive       core.BlobArchive
	fetcher       Fetcher
	purgeLockWait time.Duration
}

func newTestPipeline(t *testing.T, h *harness, cfg pipelineConfig) *Pipeline {
	t.Helper()
	dispatcher, err := NewDispatcher(h.bindings)
	require.NoError(t, err)
	cleaner, err := NewStagedFileCleaner(h.fs, cfg.archive, discardLogger())
	require.NoError(t, err)
	if cfg.queueSize == 0 {
		cfg.queueSize = 8
	}
	p, err := NewPipeline(PipelineOptions{
		Dispatcher:      dispatcher,
		Uploader:        h.uploader,
		Cleaner:         cleaner,
		Ledger:          h.ledger,
		Fs:              h.fs,
		StagingDir:      testStagingDir,
		Fetcher:         cfg.fetcher,
		Archive:         cfg.archive,
		Workers:         2,
		QueueSize:       cfg.queueSize,
		TaskConcurrency: 4,
		PurgeBatchSize:  1,
		PurgeLockWait:   cfg.purgeLockWait,
		Metrics:         h.metrics,
		Logger:          discardLogger(),
	})
	require.NoError(t, err)
	return p
}

// startPipeline runs p until the test ends.
func startPipeline(t *testing.T, p *Pipeline) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("pipeline did not stop")
		}
	})
	return cancel
}

func sharedJob(path, blob, contextID string) *model.JobDescriptor {
	return &model.JobDescriptor{
		StagedPath:   path,
		BlobName:     blob,
		ContextKind:  model.ContextShared,
		ContextID:    contextID,
		NotifyHandle: contextID,
	}
}

func TestNewPipeline_RequiresDependencies(t *testing.T) {
	_, err := NewPipeline(PipelineOptions{})
	require.Error(t, err)
}

func TestPipeline_SharedContextFanOut(t *testing.T) {
	h := newHarness(t)
	h.bindings.Bind("G1", "U1", "U2")
	u1Drive := h.grant("U1")

	ctrl := gomock.NewController(t)
	arch := mocks.NewMockBlobArchive(ctrl)
	archivedKey := make(chan string, 1)
	arch.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, key string, _ io.Reader, _ int64) error {
			archivedKey <- key
			return nil
		}).Times(1)

	p := newTestPipeline(t, h, pipelineConfig{archive: arch})
	startPipeline(t, p)

	path := h.stage(t, "a.jpg", jpegBytes)
	desc := sharedJob(path, "a.jpg", "G1")
	require.NoError(t, p.Submit(context.Background(), desc))
	assert.NotEmpty(t, desc.ID)

	require.Eventually(t, func() bool { return !h.exists(path) }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, desc.ID+"_a.jpg", <-archivedKey)

	rows := h.ledger.All()
	require.Len(t, rows, 2)
	byRecipient := map[string]model.UploadStatus{}
	for _, r := range rows {
		byRecipient[r.RecipientID] = r.Status
		assert.Equal(t, "a.jpg", r.BlobName)
		assert.Equal(t, model.ContextShared, r.ContextKind)
	}
	assert.Equal(t, model.StatusSuccess, byRecipient["U1"])
	assert.Equal(t, model.StatusAuthInvalid, byRecipient["U2"])

	assert.Len(t, u1Drive.Files(), 1)
	assert.Equal(t, []string{msgReauthorize}, h.notifier.To("U2"))
	groupMsgs := h.notifier.To("G1")
	require.Len(t, groupMsgs, 1)
	assert.True(t, strings.HasPrefix(groupMsgs[0], "Uploaded a.jpg"))

	require.Eventually(t, func() bool {
		for _, m := range h.metrics.Named("job.transition") {
			if m.Tags["transition"] == "completed" {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestPipeline_EmptySharedContext(t *testing.T) {
	h := newHarness(t)
	p := newTestPipeline(t, h, pipelineConfig{})

	path := h.stage(t, "a.jpg", jpegBytes)
	require.NoError(t, p.Submit(context.Background(), sharedJob(path, "a.jpg", "G-empty")))

	assert.False(t, h.exists(path), "staged file removed immediately")
	assert.Empty(t, h.ledger.All())
	assert.Empty(t, h.notifier.Pushes())
}

func TestPipeline_RejectsInvalidDescriptor(t *testing.T) {
	h := newHarness(t)
	p := newTestPipeline(t, h, pipelineConfig{})

	path := h.stage(t, "a.jpg", jpegBytes)
	err := p.Submit(context.Background(), &model.JobDescriptor{StagedPath: path, BlobName: "a.jpg", ContextKind: "channel", ContextID: "X"})
	require.ErrorIs(t, err, model.ErrInvalidDescriptor)
	assert.False(t, h.exists(path))
}

func TestPipeline_QueueFull(t *testing.T) {
	h := newHarness(t)
	h.bindings.Bind("G1", "U1")
	p := newTestPipeline(t, h, pipelineConfig{queueSize: 1})

	first := h.stage(t, "a.jpg", jpegBytes)
	second := h.stage(t, "b.jpg", jpegBytes)
	require.NoError(t, p.Submit(context.Background(), sharedJob(first, "a.jpg", "G1")))

	err := p.Submit(context.Background(), sharedJob(second, "b.jpg", "G1"))
	require.ErrorIs(t, err, ErrQueueFull)
	assert.True(t, h.exists(first))
	assert.False(t, h.exists(second), "rejected job's staged file is removed")
}

func TestPipeline_SubmitAfterStop(t *testing.T) {
	h := newHarness(t)
	h.bindings.Bind("G1", "U1")
	p := newTestPipeline(t, h, pipelineConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	cancel()
	require.NoError(t, <-done)
	p.Wait()

	path := h.stage(t, "a.jpg", jpegBytes)
	require.ErrorIs(t, p.Submit(context.Background(), sharedJob(path, "a.jpg", "G1")), ErrPipelineStopped)
	assert.False(t, h.exists(path))
}

func TestPipeline_Ingest(t *testing.T) {
	h := newHarness(t)
	drive := h.grant("U1")

	source := fake.NewSource()
	source.Add("m-1", jpegBytes)
	fetcher, err := NewFetchService(FetchServiceOptions{
		Source:     source,
		Fs:         h.fs,
		StagingDir: testStagingDir,
		Logger:     discardLogger(),
	})
	require.NoError(t, err)

	p := newTestPipeline(t, h, pipelineConfig{fetcher: fetcher})
	startPipeline(t, p)

	err = p.Ingest(context.Background(), model.IngestRequest{
		Attachment:   model.FetchRequest{MessageID: "m-1", Kind: model.AttachmentImage},
		ContextKind:  model.ContextIndividual,
		ContextID:    "U1",
		NotifyHandle: "U1",
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(h.ledger.All()) == 1 }, 5*time.Second, 10*time.Millisecond)
	files := drive.Files()
	require.Len(t, files, 1)
	assert.True(t, strings.HasSuffix(files[0].Name, ".jpg"))
	assert.Equal(t, files[0].Name, h.ledger.All()[0].BlobName)

	require.Eventually(t, func() bool {
		entries, _ := afero.ReadDir(h.fs, testStagingDir)
		return len(entries) == 0
	}, 5*time.Second, 10*time.Millisecond)

	err = p.Ingest(context.Background(), model.IngestRequest{
		Attachment:  model.FetchRequest{MessageID: "missing", Kind: model.AttachmentImage},
		ContextKind: model.ContextIndividual,
		ContextID:   "U1",
	})
	require.Error(t, err)
}

func TestPipeline_RetryFailedUpdatesRowsInPlace(t *testing.T) {
	h := newHarness(t)
	drive := h.grant("U1")
	ctx := context.Background()

	store, err := archive.NewLocalStore(h.fs, "/archive")
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "b.jpg", strings.NewReader(string(jpegBytes)), int64(len(jpegBytes))))

	record := func(blob string, status model.UploadStatus) *model.UploadAttempt {
		row, err := h.ledger.Record(ctx, model.RecordAttemptParams{
			RecipientID: "U1", BlobName: blob, ContextKind: model.ContextShared,
			ContextID: "G1", ContextName: "Family", Status: status,
		})
		require.NoError(t, err)
		return row
	}
	okRow := record("a.jpg", model.StatusSuccess)
	retried := record("b.jpg", model.StatusConnectionError)
	gone := record("c.jpg", model.StatusTimeout)
	_, err = h.ledger.Record(ctx, model.RecordAttemptParams{
		RecipientID: "U2", BlobName: "b.jpg", ContextKind: model.ContextShared, ContextID: "G1", Status: model.StatusTimeout,
	})
	require.NoError(t, err)

	p := newTestPipeline(t, h, pipelineConfig{archive: store})

	failed, err := p.ListFailed(ctx, "U1", 24)
	require.NoError(t, err)
	assert.Len(t, failed, 2)

	summary, err := p.RetryFailed(ctx, "U1", 24)
	require.NoError(t, err)
	assert.Equal(t, model.RetrySummary{Found: 2, Missing: 1, Succeeded: 1, Failed: 0}, summary)

	rows := h.ledger.All()
	require.Len(t, rows, 4, "re-drive never adds rows")
	status := map[int64]model.UploadStatus{}
	for _, r := range rows {
		status[r.ID] = r.Status
	}
	assert.Equal(t, model.StatusSuccess, status[okRow.ID])
	assert.Equal(t, model.StatusSuccess, status[retried.ID])
	assert.Equal(t, model.StatusFileMissing, status[gone.ID])

	require.Len(t, drive.Files(), 1)
	assert.Equal(t, "b.jpg", drive.Files()[0].Name)

	entries, err := afero.ReadDir(h.fs, testStagingDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "restored copies are removed")

	failed, err = p.ListFailed(ctx, "U1", 24)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, gone.ID, failed[0].ID)
}

func TestPipeline_ListFailedRejectsBadWindow(t *testing.T) {
	h := newHarness(t)
	p := newTestPipeline(t, h, pipelineConfig{})

	_, err := p.ListFailed(context.Background(), "U1", 0)
	require.ErrorIs(t, err, ErrInvalidWindow)
	_, err = p.RetryFailed(context.Background(), "U1", -1)
	require.ErrorIs(t, err, ErrInvalidWindow)
	_, err = p.PurgeLedger(context.Background(), 0)
	require.ErrorIs(t, err, ErrInvalidWindow)
}

func TestPipeline_PurgeLedger(t *testing.T) {
	h := newHarness(t)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	clock := now.Add(-30 * 24 * time.Hour)
	h.ledger = memstore.NewLedger(func() time.Time { return clock })
	ctx := context.Background()

	for range 3 {
		_, err := h.ledger.Record(ctx, model.RecordAttemptParams{
			RecipientID: "U1", BlobName: uuid.NewString(), ContextKind: model.ContextIndividual,
			ContextID: "U1", Status: model.StatusTimeout,
		})
		require.NoError(t, err)
	}
	clock = now
	_, err := h.ledger.Record(ctx, model.RecordAttemptParams{
		RecipientID: "U1", BlobName: "fresh.jpg", ContextKind: model.ContextIndividual,
		ContextID: "U1", Status: model.StatusSuccess,
	})
	require.NoError(t, err)

	p := newTestPipeline(t, h, pipelineConfig{})
	n, err := p.PurgeLedger(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.Len(t, h.ledger.All(), 1)
}

// busyPurgeLedger reports the purge lock as held for the first busy calls.
type busyPurgeLedger struct {
	*memstore.Ledger
	mu   sync.Mutex
	busy int
}

func (l *busyPurgeLedger) Purge(ctx context.Context, params core.PurgeLedgerParams) (int64, error) {
	l.mu.Lock()
	if l.busy != 0 {
		l.busy--
		l.mu.Unlock()
		return 0, core.ErrPurgeBusy
	}
	l.mu.Unlock()
	return l.Ledger.Purge(ctx, params)
}

func TestPipeline_PurgeLedgerWaitsForBusyLock(t *testing.T) {
	h := newHarness(t)
	now := time.Now()
	clock := now.Add(-30 * 24 * time.Hour)
	store := memstore.NewLedger(func() time.Time { return clock })
	for range 2 {
		_, err := store.Record(context.Background(), model.RecordAttemptParams{
			RecipientID: "U1", BlobName: uuid.NewString(), ContextKind: model.ContextIndividual,
			ContextID: "U1", Status: model.StatusTimeout,
		})
		require.NoError(t, err)
	}
	clock = now
	h.ledger = store

	t.Run("reports rows once the lock frees", func(t *testing.T) {
		p := newTestPipeline(t, h, pipelineConfig{purgeLockWait: 2 * time.Second})
		p.ledger = &busyPurgeLedger{Ledger: store, busy: 2}

		n, err := p.PurgeLedger(context.Background(), 7)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		assert.Empty(t, store.All())
	})

	t.Run("busy past the wait is an error, not zero rows", func(t *testing.T) {
		p := newTestPipeline(t, h, pipelineConfig{purgeLockWait: 50 * time.Millisecond})
		p.ledger = &busyPurgeLedger{Ledger: store, busy: -1}

		_, err := p.PurgeLedger(context.Background(), 7)
		require.ErrorIs(t, err, core.ErrPurgeBusy)
	})
}

func TestPipeline_StopLetsInFlightUploadFinish(t *testing.T) {
	h := newHarness(t)
	drive := h.grant("U1")
	started := make(chan struct{})
	var once sync.Once
	drive.UploadFunc = func(ctx context.Context, params model.UploadFileParams) (*model.DriveFile, error) {
		once.Do(func() { close(started) })
		select {
		case <-time.After(300 * time.Millisecond):
			return &model.DriveFile{ID: "file-slow", Name: params.Name, WebViewLink: "https://drive.example/file/file-slow"}, nil
		case <-ctx.Done():
			return nil, &url.Error{Op: "Post", URL: "https://drive.example/upload", Err: ctx.Err()}
		}
	}

	p := newTestPipeline(t, h, pipelineConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	path := h.stage(t, "a.jpg", jpegBytes)
	require.NoError(t, p.Submit(context.Background(), &model.JobDescriptor{
		StagedPath:   path,
		BlobName:     "a.jpg",
		ContextKind:  model.ContextIndividual,
		ContextID:    "U1",
		NotifyHandle: "U1",
	}))

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("upload never started")
	}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not stop")
	}

	rows := h.ledger.All()
	require.Len(t, rows, 1)
	assert.Equal(t, model.StatusSuccess, rows[0].Status)
	assert.Empty(t, h.ops.Payloads())
	msgs := h.notifier.To("U1")
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "file-slow")
	assert.False(t, h.exists(path))
}

func TestPipeline_SameBlobNameArchivesPerJob(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	store, err := archive.NewLocalStore(h.fs, "/archive")
	require.NoError(t, err)

	p := newTestPipeline(t, h, pipelineConfig{archive: store})
	startPipeline(t, p)

	// No credential yet, so both uploads fail and are archived.
	contents := [][]byte{[]byte("first report"), []byte("second report")}
	for i, content := range contents {
		path := h.stage(t, uuid.NewString()+"_report.pdf", content)
		require.NoError(t, p.Submit(ctx, &model.JobDescriptor{
			StagedPath:   path,
			BlobName:     "report.pdf",
			ContextKind:  model.ContextIndividual,
			ContextID:    "U1",
			NotifyHandle: "U1",
		}), "job %d", i)
	}
	require.Eventually(t, func() bool {
		entries, _ := afero.ReadDir(h.fs, testStagingDir)
		return len(h.ledger.All()) == 2 && len(entries) == 0
	}, 5*time.Second, 10*time.Millisecond)

	keys := map[string]bool{}
	for _, row := range h.ledger.All() {
		assert.Equal(t, "report.pdf", row.BlobName)
		assert.True(t, strings.HasSuffix(row.ArchiveKey, "_report.pdf"), row.ArchiveKey)
		keys[row.ArchiveKey] = true
	}
	require.Len(t, keys, 2)

	drive := h.grant("U1")
	summary, err := p.RetryFailed(ctx, "U1", 24)
	require.NoError(t, err)
	assert.Equal(t, model.RetrySummary{Found: 2, Succeeded: 2}, summary)

	var got []string
	for _, f := range drive.Files() {
		assert.Equal(t, "report.pdf", f.Name)
		got = append(got, string(f.Content))
	}
	assert.ElementsMatch(t, []string{"first report", "second report"}, got)
}
