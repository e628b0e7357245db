package screening

import "time"

// Call is one voice screening attempt for a job application.
//
// Invariants:
// - At most one completed Call exists per application.
// - Calls are created at admission with StatusScheduled and only mutated in place.
// - Calls are never deleted; terminal rows are the audit history of attempts.
// - Once a Call is terminal (completed/rejected) its status never changes again.
type Call struct {
	ID            string `json:"id" db:"id"`
	ApplicationID string `json:"application_id" db:"application_id"`
	CandidateID   string `json:"candidate_id" db:"candidate_id"`
	JobID         string `json:"job_id" db:"job_id"`

	Status Status `json:"status" db:"status"`

	ScheduledAt time.Time  `json:"scheduled_at" db:"scheduled_at"`
	StartedAt   *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`

	// DurationSeconds is 0 when the provider never reported a duration.
	DurationSeconds int `json:"duration_seconds" db:"duration_seconds"`

	Transcript string      `json:"transcript,omitempty" db:"transcript"`
	AudioURL   string      `json:"audio_url,omitempty" db:"audio_url"`
	Summary    string      `json:"summary,omitempty" db:"summary"`
	Evaluation *Evaluation `json:"evaluation,omitempty" db:"evaluation"`
	Score      *float64    `json:"score,omitempty" db:"score"`

	ErrorMessage     string `json:"error_message,omitempty" db:"error_message"`
	FailureReason    Reason `json:"failure_reason,omitempty" db:"failure_reason"`
	ConflictCategory string `json:"conflict_category,omitempty" db:"conflict_category"`

	// ProviderCallID correlates provider events and webhooks back to this record.
	ProviderCallID string `json:"provider_call_id,omitempty" db:"provider_call_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusRejected   Status = "rejected"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// Active reports whether the call still occupies the application's single slot.
func (s Status) Active() bool {
	return s == StatusScheduled || s == StatusInProgress
}

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusRejected:
		return true
	default:
		return false
	}
}

// Evaluation is the structured reading of the provider's summary.
// Any field may be empty; a summary that cannot be parsed leaves Evaluation nil.
type Evaluation struct {
	Experience   string   `json:"experience,omitempty"`
	Availability string   `json:"availability,omitempty"`
	SoftSkills   []string `json:"soft_skills,omitempty"`
	RoleNotes    string   `json:"role_notes,omitempty"`
	Score        *float64 `json:"score,omitempty"`
}

// Filter selects calls for listing. Empty fields are ignored.
type Filter struct {
	ApplicationID string
	CandidateID   string
	JobID         string
	Statuses      []Status
	CreatedBefore time.Time
	Limit         int
}

// Finalization is the terminal write applied once by Store.Finalize.
type Finalization struct {
	Status           Status
	CompletedAt      time.Time
	DurationSeconds  int
	Transcript       string
	AudioURL         string
	Summary          string
	Evaluation       *Evaluation
	Score            *float64
	ErrorMessage     string
	FailureReason    Reason
	ConflictCategory string
}
