package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/driveline/driveline/internal/data/memstore"
	"github.com/driveline/driveline/internal/domain/model"
	"github.com/driveline/driveline/internal/domain/upload"
	"github.com/driveline/driveline/internal/mocks"
	"github.com/driveline/driveline/internal/mocks/fake"
)

func newTestFolderService(t *testing.T) (*FolderService, *memstore.FolderMappings) {
	t.Helper()
	repo := memstore.NewFolderMappings()
	svc, err := NewFolderService(FolderServiceOptions{Repo: repo, Logger: discardLogger()})
	require.NoError(t, err)
	return svc, repo
}

func TestFolderService_ConcurrentResolveCreatesOnce(t *testing.T) {
	svc, repo := newTestFolderService(t)
	drive := fake.NewDrive()
	key := model.FolderKey{ContextID: "G1", RecipientID: "U1"}

	const callers = 32
	ids := make([]string, callers)
	var (
		wg      sync.WaitGroup
		created sync.Map
	)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, c, err := svc.Resolve(context.Background(), key, drive, "Family")
			assert.NoError(t, err)
			ids[i] = id
			if c {
				created.Store(i, true)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, drive.FolderCreates(), "root and context folder")
	assert.Equal(t, 1, repo.Len())
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	n := 0
	created.Range(func(any, any) bool { n++; return true })
	assert.Equal(t, 1, n)
	assert.Equal(t, "Family", drive.FolderName(ids[0]))
}

func TestFolderService_ReusesExistingRoot(t *testing.T) {
	svc, _ := newTestFolderService(t)
	drive := fake.NewDrive()
	ctx := context.Background()
	rootID, err := drive.CreateFolder(ctx, DefaultRootFolderName, "")
	require.NoError(t, err)

	id, created, err := svc.Resolve(ctx, model.FolderKey{ContextID: "U1", RecipientID: "U1"}, drive, "")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, rootID, drive.FolderParent(id))
	assert.Equal(t, "U1", drive.FolderName(id), "empty name falls back to the context id")
	assert.Equal(t, 2, drive.FolderCreates())
}

func TestFolderService_CustomRootName(t *testing.T) {
	repo := memstore.NewFolderMappings()
	svc, err := NewFolderService(FolderServiceOptions{Repo: repo, RootFolderName: "Uploads"})
	require.NoError(t, err)
	drive := fake.NewDrive()

	id, _, err := svc.Resolve(context.Background(), model.FolderKey{ContextID: "G1", RecipientID: "U1"}, drive, "Team")
	require.NoError(t, err)
	assert.Equal(t, "Uploads", drive.FolderName(drive.FolderParent(id)))
}

func TestFolderService_CreateFailureLeavesNoMapping(t *testing.T) {
	svc, repo := newTestFolderService(t)
	ctrl := gomock.NewController(t)
	drive := mocks.NewMockCloudDrive(ctrl)
	denied := upload.NewStorageError("find folder", upload.StoragePermissionDenied, 403, errors.New("forbidden"))
	drive.EXPECT().FindFolder(gomock.Any(), DefaultRootFolderName, "").Return("", false, denied)

	_, _, err := svc.Resolve(context.Background(), model.FolderKey{ContextID: "G1", RecipientID: "U1"}, drive, "Family")
	require.ErrorIs(t, err, upload.ErrFolderResolutionFailed)
	assert.Equal(t, upload.ClassPermissionDenied, upload.Classify(err), "classified by cause")
	assert.Equal(t, 0, repo.Len())
}

func TestFolderService_Invalidate(t *testing.T) {
	svc, repo := newTestFolderService(t)
	drive := fake.NewDrive()
	key := model.FolderKey{ContextID: "G1", RecipientID: "U1"}
	ctx := context.Background()

	_, _, err := svc.Resolve(ctx, key, drive, "Family")
	require.NoError(t, err)
	require.NoError(t, svc.Invalidate(ctx, key))
	assert.Equal(t, 0, repo.Len())
	require.NoError(t, svc.Invalidate(ctx, key), "invalidating twice is fine")
}

func TestFolderService_SyncName(t *testing.T) {
	svc, _ := newTestFolderService(t)
	ctx := context.Background()

	t.Run("renames when different", func(t *testing.T) {
		drive := fake.NewDrive()
		id, err := drive.CreateFolder(ctx, "Old", "")
		require.NoError(t, err)
		assert.True(t, svc.SyncName(ctx, drive, id, "New"))
		assert.Equal(t, "New", drive.FolderName(id))
	})

	t.Run("same name is a no-op", func(t *testing.T) {
		drive := fake.NewDrive()
		id, err := drive.CreateFolder(ctx, "Same", "")
		require.NoError(t, err)
		assert.False(t, svc.SyncName(ctx, drive, id, "Same"))
	})

	t.Run("errors are swallowed", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		drive := mocks.NewMockCloudDrive(ctrl)
		drive.EXPECT().GetFolder(gomock.Any(), "f1").Return(model.DriveFolder{ID: "f1", Name: "Old"}, nil)
		drive.EXPECT().RenameFolder(gomock.Any(), "f1", "New").Return(errors.New("rate limited"))
		assert.False(t, svc.SyncName(ctx, drive, "f1", "New"))
	})
}
