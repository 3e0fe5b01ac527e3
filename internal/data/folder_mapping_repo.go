package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/driveline/driveline/internal/core"
	"github.com/driveline/driveline/internal/data/pgxutil"
	"github.com/driveline/driveline/internal/domain/model"
	"github.com/driveline/driveline/internal/domain/upload"
	apperrors "github.com/driveline/driveline/internal/errors"
)

// Advisory lock namespace for folder resolution. A SELECT ... FOR UPDATE on a
// row that does not exist yet locks nothing, so the key-scoped advisory lock
// serialises first-time creation; the row lock covers the existing-row path.
const advisoryLockFolderNamespace = "folder_mapping"

// FolderMappingRepoOptions configures FolderMappingRepo.
type FolderMappingRepoOptions struct {
	TimeProvider TimeProvider
	Logger       *slog.Logger
}

// FolderMappingRepo stores folder mappings in Postgres.
type FolderMappingRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

var _ core.FolderMappingRepository = (*FolderMappingRepo)(nil)

// NewFolderMappingRepo creates a FolderMappingRepo.
func NewFolderMappingRepo(db *sql.DB, opts FolderMappingRepoOptions) *FolderMappingRepo {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &FolderMappingRepo{
		DB:           db,
		timeProvider: timeProviderOrDefault(opts.TimeProvider),
		logger:       logger.With("component", "folder_mapping_repo"),
	}
}

func validateKey(key model.FolderKey) error {
	if strings.TrimSpace(key.ContextID) == "" || strings.TrimSpace(key.RecipientID) == "" {
		return ErrInvalidKey
	}
	return nil
}

// ResolveOrCreate implements core.FolderMappingRepository. The lookup, the
// create call and the insert share one transaction holding the key lock, so
// concurrent callers for the same key observe the first caller's row.
func (r *FolderMappingRepo) ResolveOrCreate(
	ctx context.Context,
	key model.FolderKey,
	create core.FolderCreateFunc,
) (string, bool, error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}

	var (
		folderID string
		created  bool
	)
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			folderID, created = "", false

			if err := pgxutil.AdvisoryXactLock(ctx, tx, pgxutil.LockKey(advisoryLockFolderNamespace, key.String())); err != nil {
				return err
			}

			existing, found, err := selectFolderForUpdate(ctx, tx, key)
			if err != nil {
				return err
			}
			if found {
				folderID = existing
				return nil
			}

			newID, err := create(ctx)
			if err != nil {
				return &upload.FolderResolutionError{Key: key, Err: err}
			}

			stored, inserted, err := r.insertMapping(ctx, tx, key, newID)
			if err != nil {
				return err
			}
			if !inserted {
				// Another writer bypassed the key lock; keep its row.
				r.logger.WarnContext(ctx, "folder mapping inserted concurrently, discarding new folder",
					"context_id", key.ContextID,
					"recipient_id", key.RecipientID,
					"orphan_folder_id", newID,
				)
			}
			folderID, created = stored, inserted
			return nil
		},
	})
	if err != nil {
		return "", false, err
	}
	return folderID, created, nil
}

func selectFolderForUpdate(ctx context.Context, tx *sql.Tx, key model.FolderKey) (string, bool, error) {
	var folderID string
	err := tx.QueryRowContext(ctx, `
		SELECT folder_id
		FROM folder_mappings
		WHERE context_id = $1 AND recipient_id = $2
		FOR UPDATE
	`, key.ContextID, key.RecipientID).Scan(&folderID)
	switch {
	case err == nil:
		return folderID, true, nil
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	default:
		return "", false, fmt.Errorf("select folder mapping: %w", apperrors.MapDBError(err))
	}
}

// insertMapping inserts the row or, when a row appeared despite the lock,
// returns the stored folder id with inserted=false.
func (r *FolderMappingRepo) insertMapping(
	ctx context.Context,
	tx *sql.Tx,
	key model.FolderKey,
	folderID string,
) (string, bool, error) {
	var stored string
	err := tx.QueryRowContext(ctx, `
		INSERT INTO folder_mappings (context_id, recipient_id, folder_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (context_id, recipient_id) DO NOTHING
		RETURNING folder_id
	`, key.ContextID, key.RecipientID, folderID, r.timeProvider.Now()).Scan(&stored)
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", false, fmt.Errorf("insert folder mapping: %w", apperrors.MapDBError(err))
	}

	existing, found, err := selectFolderForUpdate(ctx, tx, key)
	if err != nil {
		return "", false, err
	}
	if !found {
		return "", false, apperrors.NotFoundf("folder mapping %s vanished after conflict", key)
	}
	return existing, false, nil
}

// Invalidate implements core.FolderMappingRepository.
func (r *FolderMappingRepo) Invalidate(ctx context.Context, key model.FolderKey) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM folder_mappings
		WHERE context_id = $1 AND recipient_id = $2
	`, key.ContextID, key.RecipientID)
	if err != nil {
		return false, fmt.Errorf("delete folder mapping: %w", apperrors.MapDBError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ListByRecipient implements core.FolderMappingRepository.
func (r *FolderMappingRepo) ListByRecipient(ctx context.Context, recipientID string) ([]model.FolderMapping, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT context_id, recipient_id, folder_id, created_at
		FROM folder_mappings
		WHERE recipient_id = $1
		ORDER BY context_id
	`, recipientID)
	if err != nil {
		return nil, fmt.Errorf("list folder mappings: %w", apperrors.MapDBError(err))
	}
	defer rows.Close()

	var out []model.FolderMapping
	for rows.Next() {
		var m model.FolderMapping
		if err := rows.Scan(&m.Key.ContextID, &m.Key.RecipientID, &m.FolderID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan folder mapping: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate folder mappings: %w", err)
	}
	return out, nil
}
