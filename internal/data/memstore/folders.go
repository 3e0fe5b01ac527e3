// Package memstore holds in-process implementations of the pipeline's
// storage ports for tests. Production binaries always use the Postgres
// repositories in internal/data, since bindings and credentials are
// managed outside the process.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/im7mortal/kmutex"

	"github.com/driveline/driveline/internal/core"
	"github.com/driveline/driveline/internal/domain/model"
	"github.com/driveline/driveline/internal/domain/upload"
)

// FolderMappings is an in-memory core.FolderMappingRepository. A keyed mutex
// gives each (context, recipient) pair a single writer, so the create callback
// runs at most once per key while distinct keys proceed in parallel.
type FolderMappings struct {
	keys *kmutex.Kmutex
	now  func() time.Time

	mu   sync.RWMutex
	rows map[model.FolderKey]model.FolderMapping
}

var _ core.FolderMappingRepository = (*FolderMappings)(nil)

// NewFolderMappings creates an empty store.
func NewFolderMappings() *FolderMappings {
	return &FolderMappings{
		keys: kmutex.New(),
		now:  func() time.Time { return time.Now().UTC() },
		rows: make(map[model.FolderKey]model.FolderMapping),
	}
}

func (s *FolderMappings) lookup(key model.FolderKey) (model.FolderMapping, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.rows[key]
	return m, ok
}

// ResolveOrCreate implements core.FolderMappingRepository.
func (s *FolderMappings) ResolveOrCreate(
	ctx context.Context,
	key model.FolderKey,
	create core.FolderCreateFunc,
) (string, bool, error) {
	if strings.TrimSpace(key.ContextID) == "" || strings.TrimSpace(key.RecipientID) == "" {
		return "", false, ErrInvalidKey
	}

	s.keys.Lock(key)
	defer s.keys.Unlock(key)

	if m, ok := s.lookup(key); ok {
		return m.FolderID, false, nil
	}
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	folderID, err := create(ctx)
	if err != nil {
		return "", false, &upload.FolderResolutionError{Key: key, Err: err}
	}

	s.mu.Lock()
	s.rows[key] = model.FolderMapping{Key: key, FolderID: folderID, CreatedAt: s.now()}
	s.mu.Unlock()
	return folderID, true, nil
}

// Invalidate implements core.FolderMappingRepository.
func (s *FolderMappings) Invalidate(_ context.Context, key model.FolderKey) (bool, error) {
	s.keys.Lock(key)
	defer s.keys.Unlock(key)

	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rows[key]
	delete(s.rows, key)
	return ok, nil
}

// ListByRecipient implements core.FolderMappingRepository.
func (s *FolderMappings) ListByRecipient(_ context.Context, recipientID string) ([]model.FolderMapping, error) {
	s.mu.RLock()
	out := make([]model.FolderMapping, 0)
	for k, m := range s.rows {
		if k.RecipientID == recipientID {
			out = append(out, m)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key.ContextID < out[j].Key.ContextID })
	return out, nil
}

// Len returns the number of stored mappings.
func (s *FolderMappings) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}
