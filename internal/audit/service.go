package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
// It is append-only; no Update/Delete methods exist.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information about screening decisions.
// Callers treat it as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s == nil || s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}
	if e.ApplicationID == "" && e.ScreeningCallID == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogAdmissionDenied records why a screening request was refused.
func (s *Service) LogAdmissionDenied(ctx context.Context, applicationID, actorUserID, actorRole, reason string) error {
	return s.Append(ctx, Event{
		Type:          EventTypeAdmissionDenied,
		ApplicationID: applicationID,
		ActorUserID:   actorUserID,
		ActorRole:     actorRole,
		Reason:        reason,
		Message:       "screening admission denied",
	})
}

// LogConflict records a reconciliation decision that overrode provider-reported state.
func (s *Service) LogConflict(ctx context.Context, applicationID, callID, category, metadata string) error {
	return s.Append(ctx, Event{
		Type:            EventTypeConflictResolved,
		ApplicationID:   applicationID,
		ScreeningCallID: callID,
		ActorUserID:     "system",
		Reason:          category,
		Message:         "call result conflict resolved",
		Metadata:        metadata,
	})
}

// LogFinalized records the single terminal transition of a screening call.
func (s *Service) LogFinalized(ctx context.Context, applicationID, callID, outcome, reason, actor string) error {
	t := EventTypeFinalized
	if reason == "stale_cleanup" {
		t = EventTypeStaleReaped
	}
	return s.Append(ctx, Event{
		Type:            t,
		ApplicationID:   applicationID,
		ScreeningCallID: callID,
		ActorUserID:     actor,
		Reason:          reason,
		Message:         "screening call " + outcome,
	})
}
