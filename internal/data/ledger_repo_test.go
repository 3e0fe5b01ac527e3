package data

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveline/driveline/internal/core"
	"github.com/driveline/driveline/internal/domain/model"
	apperrors "github.com/driveline/driveline/internal/errors"
)

var ledgerNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newLedgerRepoMock(t *testing.T) (*LedgerRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewLedgerRepo(db, FixedClock(ledgerNow)), mock
}

func attemptRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "recipient_id", "blob_name", "context_kind", "context_id",
		"context_name", "archive_key", "status", "created_at", "updated_at",
	})
}

func TestLedgerRepo_Record(t *testing.T) {
	repo, mock := newLedgerRepoMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO upload_attempts")).
		WithArgs("U1", "a.jpg", model.ContextShared, "G1", "Family", "job-1_a.jpg", model.StatusSuccess, ledgerNow).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(7), ledgerNow, ledgerNow))

	got, err := repo.Record(context.Background(), model.RecordAttemptParams{
		RecipientID: "U1",
		BlobName:    "a.jpg",
		ContextKind: model.ContextShared,
		ContextID:   "G1",
		ContextName: "Family",
		ArchiveKey:  "job-1_a.jpg",
		Status:      model.StatusSuccess,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.ID)
	assert.Equal(t, "job-1_a.jpg", got.ArchiveKey)
	assert.Equal(t, model.StatusSuccess, got.Status)
	assert.Equal(t, ledgerNow, got.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_Record_Validation(t *testing.T) {
	repo, mock := newLedgerRepoMock(t)

	_, err := repo.Record(context.Background(), model.RecordAttemptParams{RecipientID: "U1", Status: "bogus"})
	require.ErrorIs(t, err, ErrInvalidStatus)

	_, err = repo.Record(context.Background(), model.RecordAttemptParams{Status: model.StatusSuccess})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_UpdateStatus(t *testing.T) {
	t.Run("updates in place", func(t *testing.T) {
		repo, mock := newLedgerRepoMock(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE upload_attempts SET status = $2, updated_at = $3 WHERE id = $1")).
			WithArgs(int64(7), model.StatusSuccess, ledgerNow).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.UpdateStatus(context.Background(), 7, model.StatusSuccess))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row", func(t *testing.T) {
		repo, mock := newLedgerRepoMock(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE upload_attempts")).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateStatus(context.Background(), 99, model.StatusTimeout)
		require.ErrorIs(t, err, ErrAttemptNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerRepo_ListByRecipient(t *testing.T) {
	t.Run("failed only with limit", func(t *testing.T) {
		repo, mock := newLedgerRepoMock(t)
		mock.ExpectQuery(regexp.QuoteMeta("WHERE recipient_id = $1 AND created_at >= $2 AND status <> $3 ORDER BY created_at DESC, id DESC LIMIT $4")).
			WithArgs("U1", ledgerNow.Add(-24*time.Hour), model.StatusSuccess, 50).
			WillReturnRows(attemptRows().
				AddRow(int64(2), "U1", "b.jpg", "individual", "U1", "", "job-2_b.jpg", "timeout_error", ledgerNow, ledgerNow).
				AddRow(int64(1), "U1", "a.jpg", "shared", "G1", "Family", "", "connection_error", ledgerNow, ledgerNow))

		got, err := repo.ListByRecipient(context.Background(), model.LedgerQuery{
			RecipientID: "U1",
			Window:      24 * time.Hour,
			FailedOnly:  true,
			Limit:       50,
		})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, int64(2), got[0].ID)
		assert.Equal(t, model.StatusTimeout, got[0].Status)
		assert.Equal(t, "job-2_b.jpg", got[0].ArchiveKey)
		assert.Equal(t, model.ContextShared, got[1].ContextKind)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("all statuses", func(t *testing.T) {
		repo, mock := newLedgerRepoMock(t)
		mock.ExpectQuery(regexp.QuoteMeta("WHERE recipient_id = $1 AND created_at >= $2 ORDER BY created_at DESC")).
			WithArgs("U1", ledgerNow.Add(-time.Hour)).
			WillReturnRows(attemptRows())

		got, err := repo.ListByRecipient(context.Background(), model.LedgerQuery{RecipientID: "U1", Window: time.Hour})
		require.NoError(t, err)
		assert.Empty(t, got)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects empty window", func(t *testing.T) {
		repo, _ := newLedgerRepoMock(t)
		_, err := repo.ListByRecipient(context.Background(), model.LedgerQuery{RecipientID: "U1"})
		require.Error(t, err)
		assert.Equal(t, "window", apperrors.GetField(err))
	})
}

func TestLedgerRepo_Purge(t *testing.T) {
	qTryLock := regexp.QuoteMeta("SELECT pg_try_advisory_xact_lock")

	t.Run("deletes batch under lock", func(t *testing.T) {
		repo, mock := newLedgerRepoMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(qTryLock).
			WithArgs(ledgerPurgeLock).
			WillReturnRows(sqlmock.NewRows([]string{"locked"}).AddRow(true))
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM upload_attempts")).
			WithArgs(ledgerNow.Add(-7*24*time.Hour), 100).
			WillReturnResult(sqlmock.NewResult(0, 42))
		mock.ExpectCommit()

		n, err := repo.Purge(context.Background(), core.PurgeLedgerParams{MaxAge: 7 * 24 * time.Hour, BatchSize: 100})
		require.NoError(t, err)
		assert.Equal(t, int64(42), n)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lock held elsewhere", func(t *testing.T) {
		repo, mock := newLedgerRepoMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(qTryLock).
			WillReturnRows(sqlmock.NewRows([]string{"locked"}).AddRow(false))
		mock.ExpectCommit()

		n, err := repo.Purge(context.Background(), core.PurgeLedgerParams{MaxAge: time.Hour, BatchSize: 10})
		require.ErrorIs(t, err, core.ErrPurgeBusy)
		assert.Zero(t, n)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid params", func(t *testing.T) {
		repo, _ := newLedgerRepoMock(t)
		_, err := repo.Purge(context.Background(), core.PurgeLedgerParams{BatchSize: 10})
		require.Error(t, err)
		_, err = repo.Purge(context.Background(), core.PurgeLedgerParams{MaxAge: time.Hour})
		require.Error(t, err)
	})
}
