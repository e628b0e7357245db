package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"screening-platform/internal/voice"

	"github.com/redis/go-redis/v9"
)

// CaptureStore keeps the call data a session accumulated from live events, so
// retrieval can fall back to it from any process after the session is gone.
type CaptureStore interface {
	SaveCapture(ctx context.Context, providerCallID string, d voice.CallData) error
	LoadCapture(ctx context.Context, providerCallID string) (voice.CallData, bool, error)
}

// RedisCaptureStore stores captures as JSON strings with a TTL.
type RedisCaptureStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCaptureStore(rdb *redis.Client, ttl time.Duration) *RedisCaptureStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCaptureStore{rdb: rdb, ttl: ttl}
}

func (s *RedisCaptureStore) SaveCapture(ctx context.Context, providerCallID string, d voice.CallData) error {
	if providerCallID == "" {
		return errors.New("cache: provider call id is required")
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, CaptureKey(providerCallID), raw, s.ttl).Err()
}

func (s *RedisCaptureStore) LoadCapture(ctx context.Context, providerCallID string) (voice.CallData, bool, error) {
	raw, err := s.rdb.Get(ctx, CaptureKey(providerCallID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return voice.CallData{}, false, nil
	}
	if err != nil {
		return voice.CallData{}, false, err
	}
	var d voice.CallData
	if err := json.Unmarshal(raw, &d); err != nil {
		return voice.CallData{}, false, err
	}
	return d, true, nil
}

// MemoryCaptureStore is a process-local CaptureStore for tests and local runs.
type MemoryCaptureStore struct {
	mu   sync.Mutex
	data map[string]voice.CallData
}

func NewMemoryCaptureStore() *MemoryCaptureStore {
	return &MemoryCaptureStore{data: map[string]voice.CallData{}}
}

func (s *MemoryCaptureStore) SaveCapture(ctx context.Context, providerCallID string, d voice.CallData) error {
	if providerCallID == "" {
		return errors.New("cache: provider call id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[providerCallID] = d
	return nil
}

func (s *MemoryCaptureStore) LoadCapture(ctx context.Context, providerCallID string) (voice.CallData, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.data[providerCallID]
	return d, ok, nil
}
