package testutil

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// TestRedisAddr returns REDIS_ADDR when set, otherwise the local test Redis on port 56379.
func TestRedisAddr() string {
	return getEnvOrDefault("REDIS_ADDR", "localhost:56379")
}

// SetupTestRedis returns a client on a flushed test DB (TEST_REDIS_DB, default 1).
// The test is skipped when Redis is unreachable unless TEST_REQUIRE_REDIS is set.
func SetupTestRedis(t TestingTB) *redis.Client {
	t.Helper()
	if shortMode() && !requireRedis() {
		t.Skip("skipping redis integration test in short mode")
	}

	db := 1
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i >= 0 {
			db = i
		}
	}

	addr := TestRedisAddr()
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		closeAndLog(t, "redis client", client)
		skipOrFail(t, requireRedis(), "Redis not available at "+addr+":", err)
		return nil
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		closeAndLog(t, "redis client", client)
		t.Fatalf("flush redis db %d: %v", db, err)
	}

	t.Cleanup(func() { closeAndLog(t, "redis client", client) })
	return client
}

func shortMode() bool {
	return testing.Short()
}
