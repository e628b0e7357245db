package reporting

import (
	"context"
	"errors"
	"math"

	"screening-platform/internal/screening"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Lister is the read side of the screening store.
type Lister interface {
	List(ctx context.Context, f screening.Filter) ([]screening.Call, error)
}

type Service struct {
	calls Lister
}

func NewService(calls Lister) *Service { return &Service{calls: calls} }

func (s *Service) JobSummary(ctx context.Context, req JobSummaryRequest) (JobSummary, error) {
	if req.JobID == "" {
		return JobSummary{}, ErrInvalidRequest
	}
	ranged := !req.Range.From.IsZero() || !req.Range.To.IsZero()
	if ranged && (req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From)) {
		return JobSummary{}, ErrInvalidRequest
	}
	if s.calls == nil {
		return JobSummary{}, errors.New("reporting: repository not configured")
	}

	f := screening.Filter{JobID: req.JobID}
	if ranged {
		f.CreatedBefore = req.Range.To
	}
	rows, err := s.calls.List(ctx, f)
	if err != nil {
		return JobSummary{}, err
	}

	out := JobSummary{JobID: req.JobID, RejectionsByReason: map[string]int{}}
	apps := map[string]struct{}{}
	var scoreSum float64
	var timed int
	for _, c := range rows {
		if ranged && c.CreatedAt.Before(req.Range.From) {
			continue
		}
		out.TotalCalls++
		apps[c.ApplicationID] = struct{}{}
		if c.AudioURL != "" {
			out.RecordedCalls++
		}
		if c.ConflictCategory != "" {
			out.ConflictCalls++
		}
		if c.DurationSeconds > 0 {
			out.TotalDurationSeconds += c.DurationSeconds
			timed++
		}
		switch {
		case c.Status == screening.StatusCompleted:
			out.CompletedCalls++
			if c.Score != nil {
				out.ScoredCalls++
				scoreSum += *c.Score
			}
		case c.Status == screening.StatusRejected:
			out.RejectedCalls++
			reason := string(c.FailureReason)
			if reason == "" {
				reason = "unknown"
			}
			out.RejectionsByReason[reason]++
		case c.Status.Active():
			out.ActiveCalls++
		}
	}
	out.Applications = len(apps)

	// Active calls have no outcome yet.
	if finished := out.CompletedCalls + out.RejectedCalls; finished > 0 {
		out.CompletionRate = float64(out.CompletedCalls) / float64(finished)
	}
	if timed > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / timed
	}
	if out.ScoredCalls > 0 {
		avg := math.Round(scoreSum/float64(out.ScoredCalls)*100) / 100
		out.AverageScore = &avg
	}
	return out, nil
}
