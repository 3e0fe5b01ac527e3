package testutil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCandidates are tried in order when REDIS_ADDR is unset.
var redisCandidates = []string{"localhost:56379", "redis:6379", "localhost:6379"}

// SetupTestRedis returns a client on an emptied logical database. Parallel
// packages claim distinct databases through a lock key held in DB 0.
func SetupTestRedis(t testing.TB) *redis.Client {
	t.Helper()

	addr, err := findRedis()
	if err != nil {
		unavailable(t, "TEST_REQUIRE_REDIS", "redis", err)
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: claimRedisDB(t, addr)})
	t.Cleanup(func() { _ = client.Close() })

	if err := client.FlushDB(shortCtx(t)).Err(); err != nil {
		t.Fatalf("flush redis db: %v", err)
	}
	return client
}

func findRedis() (string, error) {
	candidates := redisCandidates
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		candidates = []string{addr}
	}
	var errs []error
	for _, addr := range candidates {
		if err := pingRedis(addr); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", addr, err))
			continue
		}
		return addr, nil
	}
	return "", errors.Join(errs...)
}

func pingRedis(addr string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c := redis.NewClient(&redis.Options{Addr: addr, DialTimeout: 2 * time.Second})
	defer c.Close()
	return c.Ping(ctx).Err()
}

// claimRedisDB picks TEST_REDIS_DB when set, else the first of 1..15 whose
// lock key it can take. The lock outlives FlushDB because it lives in DB 0.
func claimRedisDB(t testing.TB, addr string) int {
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
		t.Logf("ignoring invalid TEST_REDIS_DB=%q", v)
	}

	meta := redis.NewClient(&redis.Options{Addr: addr})
	owner := fmt.Sprintf("%d:%d", os.Getpid(), time.Now().UnixNano())
	for n := 1; n <= 15; n++ {
		key := fmt.Sprintf("driveline:testutil:db_lock:%d", n)
		ok, err := meta.SetNX(shortCtx(t), key, owner, 30*time.Minute).Result()
		if err != nil || !ok {
			continue
		}
		t.Cleanup(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = meta.Del(ctx, key).Err()
			_ = meta.Close()
		})
		return n
	}
	_ = meta.Close()
	t.Logf("no free redis db; sharing db 1")
	return 1
}
