package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisConfig controls the shared client used for guards, the capture cache
// and the asynq broker connection. Zero values take the defaults below.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	PingTimeout  time.Duration
}

func (c RedisConfig) withDefaults() RedisConfig {
	if c.DialTimeout <= 0 {
		c.DialTimeout = 3 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 2 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 2 * time.Second
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 20
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = 2 * time.Second
	}
	return c
}

// OpenRedis builds the client and checks it answers PING.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is required")
	}
	cfg = cfg.withDefaults()

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// releaseLockScript deletes KEYS[1] only while it still holds ARGV[1], so a
// holder whose TTL lapsed cannot free a lock someone else now owns.
var releaseLockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// AcquireLock takes a single-holder lock on key for ttl. On success it
// returns the owner token ReleaseLock needs. The TTL frees the lock when the
// holder dies without releasing.
func AcquireLock(ctx context.Context, rdb *redis.Client, key string, ttl time.Duration) (string, bool, error) {
	if rdb == nil {
		return "", false, errors.New("redis client is nil")
	}
	if key == "" {
		return "", false, errors.New("lock key is required")
	}
	if ttl <= 0 {
		return "", false, errors.New("lock ttl must be > 0")
	}

	token := uuid.NewString()
	ok, err := rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// ReleaseLock frees key if token still owns it. Releasing a lock that expired
// or changed hands is a no-op.
func ReleaseLock(ctx context.Context, rdb *redis.Client, key, token string) error {
	if rdb == nil {
		return errors.New("redis client is nil")
	}
	if key == "" || token == "" {
		return errors.New("lock key and token are required")
	}
	if err := releaseLockScript.Run(ctx, rdb, []string{key}, token).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	return nil
}
