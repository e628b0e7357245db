package cache

import (
	"context"
	"sync"
	"time"

	"screening-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// RedisGuard is a cross-process single-holder lock with a TTL. The TTL frees
// the key if the holder crashes; release only removes the holder's own lock.
type RedisGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisGuard(rdb *redis.Client, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisGuard{rdb: rdb, ttl: ttl}
}

// Acquire returns ok=false when another holder owns key. The release func is
// always safe to call.
func (g *RedisGuard) Acquire(ctx context.Context, key string) (func(), bool, error) {
	token, ok, err := utils.AcquireLock(ctx, g.rdb, key, g.ttl)
	if err != nil || !ok {
		return func() {}, false, err
	}
	var once sync.Once
	return func() {
		// Release must run even when the caller's ctx is already done.
		once.Do(func() { _ = utils.ReleaseLock(context.WithoutCancel(ctx), g.rdb, key, token) })
	}, true, nil
}

// MemoryGuard is the in-process equivalent of RedisGuard.
type MemoryGuard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryGuard() *MemoryGuard { return &MemoryGuard{held: map[string]struct{}{}} }

func (g *MemoryGuard) Acquire(ctx context.Context, key string) (func(), bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.held[key]; ok {
		return func() {}, false, nil
	}
	g.held[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, key)
			g.mu.Unlock()
		})
	}, true, nil
}
