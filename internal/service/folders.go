package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/driveline/driveline/internal/core"
	"github.com/driveline/driveline/internal/domain/model"
)

// DefaultRootFolderName is the top-level folder created in each drive.
const DefaultRootFolderName = "LineBot"

// FolderServiceOptions groups dependencies for FolderService.
type FolderServiceOptions struct {
	Repo           core.FolderMappingRepository // Required
	RootFolderName string
	Logger         *slog.Logger
}

// FolderService resolves the destination folder of a (context, recipient) pair.
type FolderService struct {
	repo   core.FolderMappingRepository
	root   string
	logger *slog.Logger
}

// NewFolderService constructs a FolderService.
func NewFolderService(opts FolderServiceOptions) (*FolderService, error) {
	if opts.Repo == nil {
		return nil, errors.New("folder mapping repository is required")
	}
	root := strings.TrimSpace(opts.RootFolderName)
	if root == "" {
		root = DefaultRootFolderName
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &FolderService{
		repo:   opts.Repo,
		root:   root,
		logger: logger.With("component", "folder_service"),
	}, nil
}

// Resolve returns the folder for key, creating <root>/<contextName> in the
// recipient's drive when no mapping exists. Concurrent calls for one key
// create at most one folder. created reports whether this call created it.
func (s *FolderService) Resolve(
	ctx context.Context,
	key model.FolderKey,
	drive core.CloudDrive,
	contextName string,
) (folderID string, created bool, err error) {
	name := strings.TrimSpace(contextName)
	if name == "" {
		name = key.ContextID
	}

	create := func(ctx context.Context) (string, error) {
		rootID, err := s.findOrCreate(ctx, drive, s.root, "")
		if err != nil {
			return "", fmt.Errorf("root folder %q: %w", s.root, err)
		}
		id, err := s.findOrCreate(ctx, drive, name, rootID)
		if err != nil {
			return "", fmt.Errorf("context folder %q: %w", name, err)
		}
		return id, nil
	}

	folderID, created, err = s.repo.ResolveOrCreate(ctx, key, create)
	if err != nil {
		return "", false, err
	}
	if created {
		s.logger.InfoContext(ctx, "folder mapping created",
			"context_id", key.ContextID,
			"recipient_id", key.RecipientID,
			"folder_id", folderID,
			"name", name,
		)
	}
	return folderID, created, nil
}

func (s *FolderService) findOrCreate(ctx context.Context, drive core.CloudDrive, name, parentID string) (string, error) {
	id, found, err := drive.FindFolder(ctx, name, parentID)
	if err != nil {
		return "", err
	}
	if found {
		return id, nil
	}
	return drive.CreateFolder(ctx, name, parentID)
}

// Invalidate drops the mapping of key so the next upload recreates the folder.
func (s *FolderService) Invalidate(ctx context.Context, key model.FolderKey) error {
	existed, err := s.repo.Invalidate(ctx, key)
	if err != nil {
		return fmt.Errorf("invalidate folder mapping %s: %w", key, err)
	}
	s.logger.InfoContext(ctx, "folder mapping invalidated",
		"context_id", key.ContextID,
		"recipient_id", key.RecipientID,
		"existed", existed,
	)
	return nil
}

// SyncName renames the folder when its name differs from name. Failures are
// logged and swallowed; it reports whether a rename happened.
func (s *FolderService) SyncName(ctx context.Context, drive core.CloudDrive, folderID, name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	folder, err := drive.GetFolder(ctx, folderID)
	if err != nil {
		s.logger.WarnContext(ctx, "read folder name failed", "folder_id", folderID, "error", err)
		return false
	}
	if folder.Name == name {
		return false
	}
	if err := drive.RenameFolder(ctx, folderID, name); err != nil {
		s.logger.WarnContext(ctx, "rename folder failed", "folder_id", folderID, "error", err)
		return false
	}
	s.logger.InfoContext(ctx, "folder renamed", "folder_id", folderID, "from", folder.Name, "to", name)
	return true
}
