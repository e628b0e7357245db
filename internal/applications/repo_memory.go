package applications

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryService is an in-memory Service for tests and local runs.
type MemoryService struct {
	mu    sync.Mutex
	apps  map[string]Application
	clock func() time.Time
}

func NewMemoryService(apps ...Application) *MemoryService {
	s := &MemoryService{apps: map[string]Application{}, clock: time.Now}
	for _, a := range apps {
		if a.Status == "" {
			a.Status = StatusSubmitted
		}
		s.apps[a.ID] = a
	}
	return s
}

func (s *MemoryService) Get(ctx context.Context, id string) (Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apps[id]
	if !ok {
		return Application{}, ErrNotFound
	}
	a.Timeline = append([]TimelineEntry(nil), a.Timeline...)
	return a, nil
}

func (s *MemoryService) UpdateStatus(ctx context.Context, u StatusUpdate) (TimelineEntry, bool, error) {
	if err := u.validate(); err != nil {
		return TimelineEntry{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.apps[u.ApplicationID]
	if !ok {
		return TimelineEntry{}, false, ErrNotFound
	}
	for _, e := range a.Timeline {
		if e.DedupeKey == u.DedupeKey {
			return e, false, nil
		}
	}

	now := s.clock().UTC()
	e := TimelineEntry{
		ID:            uuid.NewString(),
		ApplicationID: a.ID,
		Step:          u.Step,
		Status:        u.Status,
		Note:          u.Note,
		Actor:         u.Actor,
		DedupeKey:     u.DedupeKey,
		CreatedAt:     now,
	}
	a.Status = u.Status
	a.UpdatedAt = now
	a.Timeline = append(a.Timeline, e)
	s.apps[a.ID] = a
	return e, true, nil
}
