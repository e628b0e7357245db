// Package admission decides whether a new screening call may start for an
// application. Denials are ordinary decisions, not errors.
package admission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"screening-platform/internal/cache"
	"screening-platform/internal/config"
	"screening-platform/internal/screening"
)

// Request asks for a new screening call.
type Request struct {
	ApplicationID string
	CandidateID   string
	JobID         string

	ActorUserID string
	ActorRole   string
}

// Decision is the admission verdict. Call is set only when Allowed.
type Decision struct {
	Allowed bool             `json:"allowed"`
	Reason  screening.Reason `json:"reason,omitempty"`
	Message string           `json:"message,omitempty"`

	Counts           screening.Counts `json:"-"`
	RemainingRetries int              `json:"remaining_retries"`

	Call *screening.Call `json:"call,omitempty"`
}

// Sweeper clears stale calls of one application before counting.
type Sweeper interface {
	SweepApplication(ctx context.Context, applicationID string) (int, error)
}

// Guard serializes admission per application across processes.
type Guard interface {
	Acquire(ctx context.Context, key string) (release func(), ok bool, err error)
}

type Auditor interface {
	LogAdmissionDenied(ctx context.Context, applicationID, actorUserID, actorRole, reason string) error
}

type Controller struct {
	store   screening.Store
	sweeper Sweeper
	guard   Guard
	audit   Auditor
	limits  config.ScreeningConfig
	log     *slog.Logger
}

func NewController(store screening.Store, sweeper Sweeper, guard Guard, audit Auditor, limits config.ScreeningConfig, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	if guard == nil {
		guard = cache.NewMemoryGuard()
	}
	return &Controller{
		store:   store,
		sweeper: sweeper,
		guard:   guard,
		audit:   audit,
		limits:  limits.Defaults(),
		log:     log,
	}
}

// Evaluate runs the admission checks without creating a record. The UI uses
// it to decide between offering a retry and telling the candidate to wait.
func (c *Controller) Evaluate(ctx context.Context, applicationID string) (Decision, error) {
	if applicationID == "" {
		return Decision{}, screening.ErrInvalidArgument
	}
	c.sweep(ctx, applicationID)
	return c.decide(ctx, applicationID)
}

// RequestAdmission runs the checks and, when allowed, creates the scheduled
// record that reserves the application's single active slot.
func (c *Controller) RequestAdmission(ctx context.Context, req Request) (Decision, error) {
	if req.ApplicationID == "" {
		return Decision{}, screening.ErrInvalidArgument
	}
	log := c.log.With("application_id", req.ApplicationID)

	c.sweep(ctx, req.ApplicationID)

	release, ok, err := c.guard.Acquire(ctx, cache.AdmissionKey(req.ApplicationID))
	if err != nil {
		return Decision{}, fmt.Errorf("admission: guard: %w", err)
	}
	defer release()
	if !ok {
		d := deny(screening.ReasonDuplicateActiveCall)
		c.recordDenial(ctx, log, req, d)
		return d, nil
	}

	d, err := c.decide(ctx, req.ApplicationID)
	if err != nil {
		return Decision{}, err
	}
	if !d.Allowed {
		c.recordDenial(ctx, log, req, d)
		return d, nil
	}

	call, err := c.store.Create(ctx, screening.Call{
		ApplicationID: req.ApplicationID,
		CandidateID:   req.CandidateID,
		JobID:         req.JobID,
		Status:        screening.StatusScheduled,
	})
	if err != nil {
		return Decision{}, fmt.Errorf("admission: create call: %w", err)
	}
	d.Call = &call
	log.Info("screening admitted", "screening_call_id", call.ID, "remaining_retries", d.RemainingRetries)
	return d, nil
}

func (c *Controller) decide(ctx context.Context, applicationID string) (Decision, error) {
	calls, err := c.store.List(ctx, screening.Filter{ApplicationID: applicationID})
	if err != nil {
		return Decision{}, fmt.Errorf("admission: list calls: %w", err)
	}
	counts := screening.CountFor(calls)

	remaining := c.limits.RetryQuota - counts.Rejected
	if remaining < 0 {
		remaining = 0
	}

	var d Decision
	switch {
	case counts.Active > 0:
		d = deny(screening.ReasonDuplicateActiveCall)
	case counts.Completed >= c.limits.CallLimit:
		d = deny(screening.ReasonCallLimitReached)
	case counts.Rejected >= c.limits.RetryQuota:
		d = deny(screening.ReasonRetryLimitReached)
	default:
		d = Decision{Allowed: true}
	}
	d.Counts = counts
	d.RemainingRetries = remaining
	return d, nil
}

func (c *Controller) sweep(ctx context.Context, applicationID string) {
	if c.sweeper == nil {
		return
	}
	if _, err := c.sweeper.SweepApplication(ctx, applicationID); err != nil && !errors.Is(err, context.Canceled) {
		// A failed sweep only means stale calls still count as active.
		c.log.Warn("pre-admission sweep failed", "application_id", applicationID, "err", err)
	}
}

func (c *Controller) recordDenial(ctx context.Context, log *slog.Logger, req Request, d Decision) {
	log.Info("screening admission denied",
		"reason", string(d.Reason),
		"active", d.Counts.Active,
		"completed", d.Counts.Completed,
		"rejected", d.Counts.Rejected,
	)
	if c.audit == nil {
		return
	}
	if err := c.audit.LogAdmissionDenied(ctx, req.ApplicationID, req.ActorUserID, req.ActorRole, string(d.Reason)); err != nil {
		log.Warn("audit admission denial failed", "err", err)
	}
}

func deny(r screening.Reason) Decision {
	return Decision{Allowed: false, Reason: r, Message: r.Describe()}
}
