package data

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveline/driveline/internal/testutil"
)

func TestRedisCacheRepo_Set_Get_Delete(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := testutil.SetupTestRedis(t)
	defer client.Close()

	repo := NewRedisCacheRepo(client, "driveline:test:")
	ctx := context.Background()

	t.Run("set and get", func(t *testing.T) {
		ttl := 5 * time.Minute
		require.NoError(t, repo.Set(ctx, "name:G1", []byte("Family"), ttl))

		got, err := repo.Get(ctx, "name:G1")
		require.NoError(t, err)
		assert.Equal(t, []byte("Family"), got)

		actualTTL := client.TTL(ctx, "driveline:test:name:G1").Val()
		assert.True(t, actualTTL > 0 && actualTTL <= ttl)
	})

	t.Run("get missing key", func(t *testing.T) {
		got, err := repo.Get(ctx, "name:missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, "name:U1", []byte("Alice"), time.Minute))

		deleted, err := repo.Delete(ctx, "name:U1")
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = repo.Delete(ctx, "name:U1")
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("health check", func(t *testing.T) {
		assert.NoError(t, repo.Health(ctx))
	})
}

func TestRedisCacheRepo_EmptyKey(t *testing.T) {
	// Validation fails before any command is issued, so no server is needed.
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	repo := NewRedisCacheRepo(client, "")
	ctx := context.Background()

	err := repo.Set(ctx, "", []byte("value"), time.Minute)
	require.ErrorIs(t, err, errEmptyCacheKey)

	_, err = repo.Get(ctx, "")
	require.ErrorIs(t, err, errEmptyCacheKey)

	_, err = repo.Delete(ctx, "")
	require.ErrorIs(t, err, errEmptyCacheKey)
}

func TestRedisCacheRepo_KeyPrefix(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{prefix: "", want: "k"},
		{prefix: "driveline", want: "driveline:k"},
		{prefix: "driveline:", want: "driveline:k"},
		{prefix: "  ns: ", want: "ns:k"},
	}
	for _, tt := range tests {
		repo := NewRedisCacheRepo(nil, tt.prefix)
		assert.Equal(t, tt.want, repo.key("k"), "prefix %q", tt.prefix)
	}
}
