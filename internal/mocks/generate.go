// Package mocks provides mock implementations of the driveline ports.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the interfaces in internal/core.
// Hand-written in-memory doubles that need state across calls (a drive with folders, a notifier
// that records pushes) live in the fake subpackage.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	ledger := mocks.NewMockLedgerRepository(ctrl)
//	ledger.EXPECT().Record(gomock.Any(), gomock.Any()).Return(&model.UploadAttempt{ID: 1}, nil)
package mocks

// Generate mock for LedgerRepository interface from internal/core package.
// This creates MockLedgerRepository with methods for all LedgerRepository interface methods:
// Record, UpdateStatus, ListByRecipient, Purge
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=ledger_repository_mock.go github.com/driveline/driveline/internal/core LedgerRepository

// Generate mock for FolderMappingRepository interface from internal/core package.
// This creates MockFolderMappingRepository with methods: ResolveOrCreate, Invalidate, ListByRecipient
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=folder_mapping_repository_mock.go github.com/driveline/driveline/internal/core FolderMappingRepository

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=binding_store_mock.go github.com/driveline/driveline/internal/core BindingStore
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=credential_store_mock.go github.com/driveline/driveline/internal/core CredentialStore

// Generate mocks for the cloud drive ports.
// MockCloudDrive: FindFolder, CreateFolder, GetFolder, RenameFolder, UploadFile
// MockDriveFactory: NewDrive
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=cloud_drive_mock.go github.com/driveline/driveline/internal/core CloudDrive
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=drive_factory_mock.go github.com/driveline/driveline/internal/core DriveFactory

// Generate mocks for the chat platform ports.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=attachment_source_mock.go github.com/driveline/driveline/internal/core AttachmentSource
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=notifier_mock.go github.com/driveline/driveline/internal/core Notifier
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=chat_directory_mock.go github.com/driveline/driveline/internal/core ChatDirectory

// Generate mock for BlobArchive interface: Put, Get, Delete, PurgeOlderThan
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=blob_archive_mock.go github.com/driveline/driveline/internal/core BlobArchive

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=cache_repository_mock.go github.com/driveline/driveline/internal/core CacheRepository
