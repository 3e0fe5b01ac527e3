package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/driveline/driveline/internal/core"
	"github.com/driveline/driveline/internal/data/pgxutil"
	"github.com/driveline/driveline/internal/domain/model"
	apperrors "github.com/driveline/driveline/internal/errors"
)

// ledgerPurgeLock keeps concurrent purges from deleting the same batch.
var ledgerPurgeLock = pgxutil.LockKey("upload_attempts", "purge")

const attemptColumns = `id, recipient_id, blob_name, context_kind, context_id, context_name, archive_key, status, created_at, updated_at`

// LedgerRepo stores upload attempts in Postgres.
type LedgerRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

var _ core.LedgerRepository = (*LedgerRepo)(nil)

// NewLedgerRepo creates a LedgerRepo. A nil TimeProvider uses the wall clock.
func NewLedgerRepo(db *sql.DB, tp TimeProvider) *LedgerRepo {
	return &LedgerRepo{DB: db, timeProvider: timeProviderOrDefault(tp)}
}

// Record implements core.LedgerRepository.
func (r *LedgerRepo) Record(ctx context.Context, p model.RecordAttemptParams) (*model.UploadAttempt, error) {
	if !p.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, p.Status)
	}
	if strings.TrimSpace(p.RecipientID) == "" {
		return nil, apperrors.ValidationField("recipient_id", "recipient id is required")
	}

	now := r.timeProvider.Now()
	a := &model.UploadAttempt{
		RecipientID: p.RecipientID,
		BlobName:    p.BlobName,
		ContextKind: p.ContextKind,
		ContextID:   p.ContextID,
		ContextName: p.ContextName,
		ArchiveKey:  p.ArchiveKey,
		Status:      p.Status,
	}
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO upload_attempts
			(recipient_id, blob_name, context_kind, context_id, context_name, archive_key, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING id, created_at, updated_at
	`, p.RecipientID, p.BlobName, p.ContextKind, p.ContextID, p.ContextName, p.ArchiveKey, p.Status, now).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert upload attempt: %w", apperrors.MapDBError(err))
	}
	return a, nil
}

// UpdateStatus implements core.LedgerRepository.
func (r *LedgerRepo) UpdateStatus(ctx context.Context, id int64, status model.UploadStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	res, err := r.DB.ExecContext(ctx, `
		UPDATE upload_attempts
		SET status = $2, updated_at = $3
		WHERE id = $1
	`, id, status, r.timeProvider.Now())
	if err != nil {
		return fmt.Errorf("update upload attempt: %w", apperrors.MapDBError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update upload attempt %d: %w", id, ErrAttemptNotFound)
	}
	return nil
}

// ListByRecipient implements core.LedgerRepository.
func (r *LedgerRepo) ListByRecipient(ctx context.Context, q model.LedgerQuery) ([]model.UploadAttempt, error) {
	if strings.TrimSpace(q.RecipientID) == "" {
		return nil, apperrors.ValidationField("recipient_id", "recipient id is required")
	}
	if q.Window <= 0 {
		return nil, apperrors.ValidationField("window", "window must be positive")
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + attemptColumns + `
		FROM upload_attempts
		WHERE recipient_id = $1 AND created_at >= $2`)
	args := []any{q.RecipientID, r.timeProvider.Now().Add(-q.Window)}
	if q.FailedOnly {
		sb.WriteString(` AND status <> $3`)
		args = append(args, model.StatusSuccess)
	}
	sb.WriteString(` ORDER BY created_at DESC, id DESC`)
	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&sb, ` LIMIT $%d`, len(args))
	}

	rows, err := r.DB.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list upload attempts: %w", apperrors.MapDBError(err))
	}
	defer rows.Close()

	var out []model.UploadAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate upload attempts: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(s rowScanner) (model.UploadAttempt, error) {
	var a model.UploadAttempt
	if err := s.Scan(
		&a.ID,
		&a.RecipientID,
		&a.BlobName,
		&a.ContextKind,
		&a.ContextID,
		&a.ContextName,
		&a.ArchiveKey,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return a, fmt.Errorf("scan upload attempt: %w", err)
	}
	return a, nil
}

// Purge implements core.LedgerRepository. Processes up to BatchSize rows per
// call; returns core.ErrPurgeBusy when another instance holds the purge lock.
func (r *LedgerRepo) Purge(ctx context.Context, params core.PurgeLedgerParams) (int64, error) {
	if params.MaxAge <= 0 {
		return 0, errors.New("max age must be greater than zero")
	}
	if params.BatchSize <= 0 {
		return 0, errors.New("batch size must be greater than zero")
	}

	var (
		rowsAffected int64
		busy         bool
	)
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			locked, err := pgxutil.TryAdvisoryXactLock(ctx, tx, ledgerPurgeLock)
			if err != nil {
				return err
			}
			if !locked {
				busy = true
				return nil
			}

			cutoff := r.timeProvider.Now().Add(-params.MaxAge)
			res, err := tx.ExecContext(ctx, `
				DELETE FROM upload_attempts
				WHERE id IN (
					SELECT id FROM upload_attempts
					WHERE created_at < $1
					ORDER BY created_at
					LIMIT $2
				)
			`, cutoff, params.BatchSize)
			if err != nil {
				return fmt.Errorf("purge upload attempts: %w", err)
			}
			ra, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			rowsAffected = ra
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	if busy {
		return 0, core.ErrPurgeBusy
	}
	return rowsAffected, nil
}
