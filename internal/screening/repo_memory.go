package screening

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used by tests and local runs.
type MemoryStore struct {
	mu    sync.Mutex
	calls map[string]Call
	clock func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{calls: map[string]Call{}, clock: time.Now}
}

func (s *MemoryStore) Create(ctx context.Context, c Call) (Call, error) {
	if c.ApplicationID == "" {
		return Call{}, ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock().UTC()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = StatusScheduled
	}
	if c.ScheduledAt.IsZero() {
		c.ScheduledAt = now
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = c.CreatedAt
	s.calls[c.ID] = c
	return c, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.calls[id]
	if !ok {
		return Call{}, ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) GetByProviderCallID(ctx context.Context, providerCallID string) (Call, error) {
	if providerCallID == "" {
		return Call{}, ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.calls {
		if c.ProviderCallID == providerCallID {
			return c, nil
		}
	}
	return Call{}, ErrNotFound
}

func (s *MemoryStore) List(ctx context.Context, f Filter) ([]Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Call
	for _, c := range s.calls {
		if matches(c, f) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemoryStore) AttachProviderCall(ctx context.Context, id, providerCallID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.calls[id]
	if !ok {
		return ErrNotFound
	}
	if c.Status.Terminal() {
		return ErrTerminal
	}
	c.ProviderCallID = providerCallID
	c.UpdatedAt = now.UTC()
	s.calls[id] = c
	return nil
}

func (s *MemoryStore) MarkInProgress(ctx context.Context, id string, startedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.calls[id]
	if !ok {
		return false, ErrNotFound
	}
	if c.Status != StatusScheduled {
		return false, nil
	}
	t := startedAt.UTC()
	c.Status = StatusInProgress
	c.StartedAt = &t
	c.UpdatedAt = t
	s.calls[id] = c
	return true, nil
}

func (s *MemoryStore) Finalize(ctx context.Context, id string, f Finalization) (Call, bool, error) {
	if !f.Status.Terminal() {
		return Call{}, false, ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.calls[id]
	if !ok {
		return Call{}, false, ErrNotFound
	}
	if c.Status.Terminal() {
		return c, false, nil
	}
	applyFinalization(&c, f)
	s.calls[id] = c
	return c, true, nil
}

func applyFinalization(c *Call, f Finalization) {
	t := f.CompletedAt.UTC()
	c.Status = f.Status
	c.CompletedAt = &t
	if f.DurationSeconds > 0 {
		c.DurationSeconds = f.DurationSeconds
	}
	c.Transcript = f.Transcript
	c.AudioURL = f.AudioURL
	c.Summary = f.Summary
	c.Evaluation = f.Evaluation
	c.Score = f.Score
	c.ErrorMessage = f.ErrorMessage
	c.FailureReason = f.FailureReason
	c.ConflictCategory = f.ConflictCategory
	c.UpdatedAt = t
}

func matches(c Call, f Filter) bool {
	if f.ApplicationID != "" && c.ApplicationID != f.ApplicationID {
		return false
	}
	if f.CandidateID != "" && c.CandidateID != f.CandidateID {
		return false
	}
	if f.JobID != "" && c.JobID != f.JobID {
		return false
	}
	if !f.CreatedBefore.IsZero() && !c.CreatedAt.Before(f.CreatedBefore) {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, st := range f.Statuses {
			if c.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
