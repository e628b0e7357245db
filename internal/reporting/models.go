package reporting

import "time"

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// JobSummaryRequest requests screening metrics for one job posting.
// A zero Range covers all calls.
type JobSummaryRequest struct {
	JobID string    `json:"job_id"`
	Range TimeRange `json:"range"`
}

type JobSummary struct {
	JobID string `json:"job_id"`

	TotalCalls     int `json:"total_calls"`
	CompletedCalls int `json:"completed_calls"`
	RejectedCalls  int `json:"rejected_calls"`
	ActiveCalls    int `json:"active_calls"`

	// Applications counts distinct applications with at least one call.
	Applications int `json:"applications"`

	CompletionRate float64 `json:"completion_rate"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	ScoredCalls  int      `json:"scored_calls"`
	AverageScore *float64 `json:"average_score,omitempty"`

	RecordedCalls int `json:"recorded_calls"`
	ConflictCalls int `json:"conflict_calls"`

	// RejectionsByReason keys are failure reasons.
	RejectionsByReason map[string]int `json:"rejections_by_reason"`
}
