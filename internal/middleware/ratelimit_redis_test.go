package middleware

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisTestClient connects to a local Redis or skips the test.
func redisTestClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping integration test")
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func uniqueKey(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

func TestRedisRateLimitStore_WindowExhaustion(t *testing.T) {
	client := redisTestClient(t)
	store := NewRedisRateLimitStore(client, nil, nil)
	config := RateLimitConfig{RequestsPerWindow: 5, WindowDuration: time.Minute}

	key := uniqueKey("submit")
	ctx := context.Background()
	t.Cleanup(func() { client.Del(ctx, "ratelimit:"+key) })

	for i := 1; i <= 5; i++ {
		if allowed, _ := store.Allow(ctx, key, config); !allowed {
			t.Errorf("request %d blocked inside the window budget", i)
		}
	}

	allowed, retryAfter := store.Allow(ctx, key, config)
	if allowed {
		t.Error("request over budget was allowed")
	}
	if retryAfter <= 0 || retryAfter > 60 {
		t.Errorf("retryAfter = %d, want within (0, 60]", retryAfter)
	}
}

func TestRedisRateLimitStore_KeysAreIndependent(t *testing.T) {
	client := redisTestClient(t)
	store := NewRedisRateLimitStore(client, nil, nil)
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}

	alice := uniqueKey("user:alice")
	bob := uniqueKey("user:bob")
	ctx := context.Background()
	t.Cleanup(func() { client.Del(ctx, "ratelimit:"+alice, "ratelimit:"+bob) })

	if allowed, _ := store.Allow(ctx, alice, config); !allowed {
		t.Error("alice's first request blocked")
	}
	if allowed, _ := store.Allow(ctx, bob, config); !allowed {
		t.Error("bob's first request blocked by alice's usage")
	}
	if allowed, _ := store.Allow(ctx, alice, config); allowed {
		t.Error("alice's second request allowed past a 1-per-window limit")
	}
}

func TestRedisRateLimitStore_FailOpen(t *testing.T) {
	// Point at a closed port so every operation fails
	client := redis.NewClient(&redis.Options{
		Addr:        "localhost:1",
		DialTimeout: 100 * time.Millisecond,
	})
	defer client.Close()

	metrics := NewMetrics()
	store := NewRedisRateLimitStore(client, nil, metrics)
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}

	if allowed, _ := store.Allow(context.Background(), "any-key", config); !allowed {
		t.Error("expected fail-open when Redis is unreachable")
	}
}
