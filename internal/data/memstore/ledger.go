package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/driveline/driveline/internal/core"
	"github.com/driveline/driveline/internal/domain/model"
)

// Ledger is an in-memory core.LedgerRepository.
type Ledger struct {
	mu     sync.Mutex
	nextID int64
	rows   []model.UploadAttempt
	now    func() time.Time
}

var _ core.LedgerRepository = (*Ledger)(nil)

// NewLedger creates an empty ledger. A nil clock uses the wall clock.
func NewLedger(now func() time.Time) *Ledger {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Ledger{now: now}
}

// Record implements core.LedgerRepository.
func (l *Ledger) Record(_ context.Context, p model.RecordAttemptParams) (*model.UploadAttempt, error) {
	if !p.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, p.Status)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	ts := l.now()
	a := model.UploadAttempt{
		ID:          l.nextID,
		RecipientID: p.RecipientID,
		BlobName:    p.BlobName,
		ContextKind: p.ContextKind,
		ContextID:   p.ContextID,
		ContextName: p.ContextName,
		ArchiveKey:  p.ArchiveKey,
		Status:      p.Status,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	l.rows = append(l.rows, a)
	return &a, nil
}

// UpdateStatus implements core.LedgerRepository.
func (l *Ledger) UpdateStatus(_ context.Context, id int64, status model.UploadStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.rows {
		if l.rows[i].ID == id {
			l.rows[i].Status = status
			l.rows[i].UpdatedAt = l.now()
			return nil
		}
	}
	return fmt.Errorf("update upload attempt %d: %w", id, ErrAttemptNotFound)
}

// ListByRecipient implements core.LedgerRepository.
func (l *Ledger) ListByRecipient(_ context.Context, q model.LedgerQuery) ([]model.UploadAttempt, error) {
	l.mu.Lock()
	cutoff := l.now().Add(-q.Window)
	out := make([]model.UploadAttempt, 0)
	for _, r := range l.rows {
		if r.RecipientID != q.RecipientID || r.CreatedAt.Before(cutoff) {
			continue
		}
		if q.FailedOnly && r.Status.IsSuccess() {
			continue
		}
		out = append(out, r)
	}
	l.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Purge implements core.LedgerRepository.
func (l *Ledger) Purge(_ context.Context, p core.PurgeLedgerParams) (int64, error) {
	if p.MaxAge <= 0 || p.BatchSize <= 0 {
		return 0, errors.New("max age and batch size must be greater than zero")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-p.MaxAge)
	kept := l.rows[:0]
	var removed int64
	for _, r := range l.rows {
		if r.CreatedAt.Before(cutoff) && removed < int64(p.BatchSize) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	l.rows = kept
	return removed, nil
}

// All returns a copy of every row in insertion order.
func (l *Ledger) All() []model.UploadAttempt {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.UploadAttempt(nil), l.rows...)
}
