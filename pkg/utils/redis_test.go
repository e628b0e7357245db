package utils

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestOpenRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.RequireAuth("pw")

	if _, err := OpenRedis(context.Background(), RedisConfig{Addr: mr.Addr()}); err == nil {
		t.Fatalf("expected auth failure without password")
	}
	rdb, err := OpenRedis(context.Background(), RedisConfig{Addr: mr.Addr(), Password: "pw"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = rdb.Close()

	if _, err := OpenRedis(context.Background(), RedisConfig{}); err == nil {
		t.Fatalf("expected addr requirement")
	}
}

func TestLock_SingleHolder(t *testing.T) {
	mr, rdb := newMiniRedis(t)
	ctx := context.Background()

	token, ok, err := AcquireLock(ctx, rdb, "screening:lock:app-1", time.Minute)
	if err != nil || !ok || token == "" {
		t.Fatalf("expected first acquire, got %q %v %v", token, ok, err)
	}
	if ttl := mr.TTL("screening:lock:app-1"); ttl <= 0 {
		t.Fatalf("expected ttl on lock key, got %v", ttl)
	}
	if _, ok, _ := AcquireLock(ctx, rdb, "screening:lock:app-1", time.Minute); ok {
		t.Fatalf("expected second acquire to fail")
	}

	if err := ReleaseLock(ctx, rdb, "screening:lock:app-1", token); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok, _ := AcquireLock(ctx, rdb, "screening:lock:app-1", time.Minute); !ok {
		t.Fatalf("expected acquire after release")
	}
}

func TestLock_StaleHolderCannotReleaseNewOwner(t *testing.T) {
	mr, rdb := newMiniRedis(t)
	ctx := context.Background()

	stale, ok, _ := AcquireLock(ctx, rdb, "lock", time.Second)
	if !ok {
		t.Fatalf("expected first acquire")
	}
	mr.FastForward(2 * time.Second)

	_, ok, _ = AcquireLock(ctx, rdb, "lock", time.Minute)
	if !ok {
		t.Fatalf("expected acquire after ttl")
	}
	if err := ReleaseLock(ctx, rdb, "lock", stale); err != nil {
		t.Fatalf("release: %v", err)
	}
	if !mr.Exists("lock") {
		t.Fatalf("stale token must not free the new owner's lock")
	}
}

func TestLock_InvalidArgs(t *testing.T) {
	ctx := context.Background()
	if _, _, err := AcquireLock(ctx, nil, "k", time.Second); err == nil {
		t.Fatalf("expected nil client error")
	}
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer rdb.Close()
	if _, _, err := AcquireLock(ctx, rdb, "", time.Second); err == nil {
		t.Fatalf("expected key error")
	}
	if _, _, err := AcquireLock(ctx, rdb, "k", 0); err == nil {
		t.Fatalf("expected ttl error")
	}
	if err := ReleaseLock(ctx, rdb, "k", ""); err == nil {
		t.Fatalf("expected token error")
	}
}
