package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/driveline/driveline/internal/core"
	"github.com/driveline/driveline/internal/domain/model"
	"github.com/driveline/driveline/internal/domain/upload"
)

// FolderSyncServiceOptions groups dependencies for FolderSyncService.
type FolderSyncServiceOptions struct {
	Mappings    core.FolderMappingRepository // Required
	Credentials core.CredentialStore         // Required
	Drives      core.DriveFactory            // Required
	Folders     *FolderService               // Required
	Names       ContextNamer                 // Optional: renames are skipped without it
	Logger      *slog.Logger
}

// FolderSyncService reconciles a recipient's folder mappings with their drive:
// mappings whose folder is gone are dropped, and folders are renamed to follow
// the current display name of their chat context.
type FolderSyncService struct {
	mappings core.FolderMappingRepository
	creds    core.CredentialStore
	drives   core.DriveFactory
	folders  *FolderService
	names    ContextNamer
	logger   *slog.Logger
}

// NewFolderSyncService constructs a FolderSyncService.
func NewFolderSyncService(opts FolderSyncServiceOptions) (*FolderSyncService, error) {
	switch {
	case opts.Mappings == nil:
		return nil, errors.New("folder mapping repository is required")
	case opts.Credentials == nil:
		return nil, errors.New("credential store is required")
	case opts.Drives == nil:
		return nil, errors.New("drive factory is required")
	case opts.Folders == nil:
		return nil, errors.New("folder service is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &FolderSyncService{
		mappings: opts.Mappings,
		creds:    opts.Credentials,
		drives:   opts.Drives,
		folders:  opts.Folders,
		names:    opts.Names,
		logger:   logger.With("component", "folder_sync"),
	}, nil
}

// Sync checks every folder mapping of recipientID. Per-mapping failures are
// counted in the report; an error is returned only when the recipient's
// drive cannot be reached at all.
func (s *FolderSyncService) Sync(ctx context.Context, recipientID string) (model.FolderSyncReport, error) {
	var report model.FolderSyncReport
	if strings.TrimSpace(recipientID) == "" {
		return report, errors.New("recipient id is required")
	}

	mappings, err := s.mappings.ListByRecipient(ctx, recipientID)
	if err != nil {
		return report, fmt.Errorf("list folder mappings: %w", err)
	}
	if len(mappings) == 0 {
		return report, nil
	}

	ts, err := s.creds.TokenSource(ctx, recipientID)
	if err != nil {
		return report, fmt.Errorf("credentials for %s: %w", recipientID, err)
	}
	drive, err := s.drives.NewDrive(ctx, ts)
	if err != nil {
		return report, fmt.Errorf("drive client for %s: %w", recipientID, err)
	}

	for _, m := range mappings {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++
		s.syncOne(ctx, drive, m, &report)
	}

	s.logger.InfoContext(ctx, "folder sync finished",
		"recipient_id", recipientID,
		"checked", report.Checked,
		"renamed", report.Renamed,
		"missing", report.Missing,
		"unchanged", report.Unchanged,
		"errors", report.Errors,
	)
	return report, nil
}

func (s *FolderSyncService) syncOne(
	ctx context.Context,
	drive core.CloudDrive,
	m model.FolderMapping,
	report *model.FolderSyncReport,
) {
	log := s.logger.With("context_id", m.Key.ContextID, "recipient_id", m.Key.RecipientID, "folder_id", m.FolderID)

	folder, err := drive.GetFolder(ctx, m.FolderID)
	if err != nil && upload.Classify(err) != upload.ClassResourceMissing {
		report.Errors++
		log.WarnContext(ctx, "read folder failed", "error", err)
		return
	}
	if err != nil || folder.Trashed {
		if err := s.folders.Invalidate(ctx, m.Key); err != nil {
			report.Errors++
			log.WarnContext(ctx, "drop missing folder mapping failed", "error", err)
			return
		}
		report.Missing++
		return
	}

	name := s.displayName(ctx, m.Key)
	if name == "" || name == folder.Name {
		report.Unchanged++
		return
	}
	if err := drive.RenameFolder(ctx, m.FolderID, name); err != nil {
		report.Errors++
		log.WarnContext(ctx, "rename folder failed", "error", err)
		return
	}
	report.Renamed++
	log.InfoContext(ctx, "folder renamed", "from", folder.Name, "to", name)
}

// displayName returns the current context name, or "" when unknown. A context
// whose id is the recipient's own is a one-to-one chat.
func (s *FolderSyncService) displayName(ctx context.Context, key model.FolderKey) string {
	if s.names == nil {
		return ""
	}
	kind := model.ContextShared
	if key.ContextID == key.RecipientID {
		kind = model.ContextIndividual
	}
	return strings.TrimSpace(s.names.Name(ctx, kind, key.ContextID))
}
