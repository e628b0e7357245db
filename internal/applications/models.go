package applications

import (
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("applications: not found")
	ErrInvalidArgument = errors.New("applications: invalid argument")
)

// Application is the read model of a job application plus the candidate/job
// context the screening core needs to build an interview.
type Application struct {
	ID          string `json:"id" db:"id"`
	CandidateID string `json:"candidate_id" db:"candidate_id"`
	JobID       string `json:"job_id" db:"job_id"`
	Status      Status `json:"status" db:"status"`

	CandidateName  string `json:"candidate_name" db:"candidate_name"`
	CandidatePhone string `json:"candidate_phone,omitempty" db:"candidate_phone"`
	JobTitle       string `json:"job_title" db:"job_title"`
	Department     string `json:"department,omitempty" db:"department"`
	CompanyName    string `json:"company_name,omitempty" db:"company_name"`

	Timeline []TimelineEntry `json:"timeline,omitempty"`

	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusSubmitted          Status = "submitted"
	StatusScreeningCompleted Status = "screening_completed"
)

// TimelineEntry is an append-only history row on an application.
// DedupeKey is unique per application; a repeated update with the same key
// returns the existing entry instead of appending a second one.
type TimelineEntry struct {
	ID            string    `json:"id" db:"id"`
	ApplicationID string    `json:"application_id" db:"application_id"`
	Step          string    `json:"step" db:"step"`
	Status        Status    `json:"status" db:"status"`
	Note          string    `json:"note,omitempty" db:"note"`
	Actor         string    `json:"actor,omitempty" db:"actor"`
	DedupeKey     string    `json:"-" db:"dedupe_key"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// StatusUpdate changes the application status and appends one timeline entry.
type StatusUpdate struct {
	ApplicationID string
	Status        Status
	Step          string
	Note          string
	Actor         string
	DedupeKey     string
}

func (u StatusUpdate) validate() error {
	if u.ApplicationID == "" || u.Status == "" || u.Step == "" || u.DedupeKey == "" {
		return ErrInvalidArgument
	}
	return nil
}
