package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - Every event names the application or the screening call it concerns.
// - Audit is best-effort; critical flows never block on audit failures.
type Event struct {
	ID   string    `json:"id" db:"id"`
	Type EventType `json:"type" db:"type"`

	ApplicationID   string `json:"application_id,omitempty" db:"application_id"`
	ScreeningCallID string `json:"screening_call_id,omitempty" db:"screening_call_id"`

	// ActorUserID is the authenticated user causing the event, or "system".
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`

	// Reason is the machine-readable cause (denial reason, conflict category).
	Reason string `json:"reason,omitempty" db:"reason"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeAdmissionDenied  EventType = "admission_denied"
	EventTypeConflictResolved EventType = "conflict_resolved"
	EventTypeFinalized        EventType = "screening_finalized"
	EventTypeStaleReaped      EventType = "stale_reaped"
)
