package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/driveline/driveline/internal/core"
	"github.com/driveline/driveline/internal/domain/model"
	"github.com/driveline/driveline/internal/domain/upload"
)

func TestFolderMappings_ConcurrentResolveCreatesOnce(t *testing.T) {
	store := NewFolderMappings()
	key := model.FolderKey{ContextID: "G1", RecipientID: "U1"}

	var creates atomic.Int32
	create := func(context.Context) (string, error) {
		n := creates.Add(1)
		time.Sleep(5 * time.Millisecond)
		return fmt.Sprintf("folder-%d", n), nil
	}

	const callers = 64
	start := make(chan struct{})
	ids := make([]string, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			id, _, err := store.ResolveOrCreate(context.Background(), key, create)
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), creates.Load())
	assert.Equal(t, 1, store.Len())
	for _, id := range ids {
		assert.Equal(t, "folder-1", id)
	}
}

func TestFolderMappings_DistinctKeysDoNotContend(t *testing.T) {
	store := NewFolderMappings()
	release := make(chan struct{})
	blocked := make(chan struct{})

	go func() {
		_, _, _ = store.ResolveOrCreate(context.Background(), model.FolderKey{ContextID: "G1", RecipientID: "U1"},
			func(context.Context) (string, error) {
				close(blocked)
				<-release
				return "slow", nil
			})
	}()
	<-blocked

	done := make(chan struct{})
	go func() {
		id, created, err := store.ResolveOrCreate(context.Background(), model.FolderKey{ContextID: "G1", RecipientID: "U2"},
			func(context.Context) (string, error) { return "fast", nil })
		assert.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "fast", id)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("resolution for a different key blocked")
	}
	close(release)
}

func TestFolderMappings_CreateFailureStoresNothing(t *testing.T) {
	store := NewFolderMappings()
	key := model.FolderKey{ContextID: "G1", RecipientID: "U1"}

	_, _, err := store.ResolveOrCreate(context.Background(), key, func(context.Context) (string, error) {
		return "", errors.New("drive unavailable")
	})
	require.ErrorIs(t, err, upload.ErrFolderResolutionFailed)
	assert.Zero(t, store.Len())
}

func TestFolderMappings_InvalidateThenRecreate(t *testing.T) {
	store := NewFolderMappings()
	ctx := context.Background()
	key := model.FolderKey{ContextID: "U1", RecipientID: "U1"}

	id, _, err := store.ResolveOrCreate(ctx, key, func(context.Context) (string, error) { return "first", nil })
	require.NoError(t, err)
	assert.Equal(t, "first", id)

	removed, err := store.Invalidate(ctx, key)
	require.NoError(t, err)
	assert.True(t, removed)

	id, created, err := store.ResolveOrCreate(ctx, key, func(context.Context) (string, error) { return "second", nil })
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "second", id)

	list, err := store.ListByRecipient(ctx, "U1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "second", list[0].FolderID)
}

func TestLedger_RecordListUpdatePurge(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	l := NewLedger(func() time.Time { return clock })
	ctx := context.Background()

	clock = now.Add(-10 * 24 * time.Hour)
	_, err := l.Record(ctx, model.RecordAttemptParams{RecipientID: "U1", BlobName: "old.jpg", Status: model.StatusTimeout})
	require.NoError(t, err)

	clock = now
	ok, err := l.Record(ctx, model.RecordAttemptParams{RecipientID: "U1", BlobName: "a.jpg", Status: model.StatusSuccess})
	require.NoError(t, err)
	bad, err := l.Record(ctx, model.RecordAttemptParams{RecipientID: "U1", BlobName: "b.jpg", Status: model.StatusConnectionError})
	require.NoError(t, err)

	failed, err := l.ListByRecipient(ctx, model.LedgerQuery{RecipientID: "U1", Window: 24 * time.Hour, FailedOnly: true})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, bad.ID, failed[0].ID)

	require.NoError(t, l.UpdateStatus(ctx, bad.ID, model.StatusSuccess))
	require.ErrorIs(t, l.UpdateStatus(ctx, 999, model.StatusSuccess), ErrAttemptNotFound)

	n, err := l.Purge(ctx, core.PurgeLedgerParams{MaxAge: 7 * 24 * time.Hour, BatchSize: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	all := l.All()
	require.Len(t, all, 2)
	assert.Equal(t, ok.ID, all[0].ID)
	assert.Equal(t, model.StatusSuccess, all[1].Status)
}

func TestBindings_ListRecipientsSorted(t *testing.T) {
	b := NewBindings()
	b.Bind("G1", "U2", "U1", "U2")

	got, err := b.ListRecipients(context.Background(), "G1")
	require.NoError(t, err)
	assert.Equal(t, []string{"U1", "U2"}, got)

	got, err = b.ListRecipients(context.Background(), "G-empty")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCredentials_TokenSource(t *testing.T) {
	c := NewCredentials()
	c.Put("U1", &oauth2.Token{AccessToken: "live"})
	c.Put("U3", &oauth2.Token{AccessToken: "old", Expiry: time.Now().Add(-time.Hour)})

	ts, err := c.TokenSource(context.Background(), "U1")
	require.NoError(t, err)
	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "live", tok.AccessToken)

	_, err = c.TokenSource(context.Background(), "U2")
	require.ErrorIs(t, err, upload.ErrCredentialNotFound)

	_, err = c.TokenSource(context.Background(), "U3")
	require.ErrorIs(t, err, upload.ErrCredentialExpired)
}
