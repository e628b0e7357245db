// Package finalize writes the single terminal transition of a screening call
// and propagates it onto the owning application.
package finalize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"screening-platform/internal/applications"
	"screening-platform/internal/screening"
	"screening-platform/internal/voice"
)

const (
	StepCompleted = "screening call completed"
	StepFailed    = "screening call failed"
)

// Payload is what the finalizer knows about the call when it finishes.
type Payload struct {
	Data            voice.CallData
	DurationSeconds int

	// Reason is required for rejected outcomes.
	Reason screening.Reason

	ConflictCategory string
	ConflictDetail   string

	// Actor names who finalized: "system", "webhook", "reaper", a user id.
	Actor string
}

// Result describes what Finalize did.
type Result struct {
	Call screening.Call
	// Applied is true for the caller that performed the record transition.
	Applied bool
	// TimelineCreated is true when this call appended the timeline entry.
	TimelineCreated bool
}

// Auditor is the audit trail contract used by the propagator.
type Auditor interface {
	LogFinalized(ctx context.Context, applicationID, callID, outcome, reason, actor string) error
	LogConflict(ctx context.Context, applicationID, callID, category, metadata string) error
}

// Propagator finalizes calls. Safe for concurrent use; the store's
// compare-and-set picks one winner per call.
type Propagator struct {
	store    screening.Store
	apps     applications.Service
	audit    Auditor
	notifier Notifier
	log      *slog.Logger

	Now func() time.Time
}

func NewPropagator(store screening.Store, apps applications.Service, audit Auditor, notifier Notifier, log *slog.Logger) *Propagator {
	if log == nil {
		log = slog.Default()
	}
	if notifier == nil {
		notifier = LogNotifier{Log: log}
	}
	return &Propagator{store: store, apps: apps, audit: audit, notifier: notifier, log: log, Now: time.Now}
}

// DedupeKey identifies the one timeline entry an outcome may produce.
func DedupeKey(callID string, outcome screening.Status) string {
	return "screening:" + callID + ":" + string(outcome)
}

// Finalize moves the call to outcome exactly once. Repeated or concurrent
// calls are safe: only the first writes the record, and the application
// update is deduplicated so retrying it heals a crash between the two writes.
func (p *Propagator) Finalize(ctx context.Context, callID string, outcome screening.Status, pl Payload) (Result, error) {
	if callID == "" || !outcome.Terminal() {
		return Result{}, screening.ErrInvalidArgument
	}
	if outcome == screening.StatusRejected && pl.Reason == "" {
		pl.Reason = screening.ReasonRetrievalExhausted
	}
	log := p.log.With("screening_call_id", callID, "outcome", string(outcome))

	call, applied, err := p.store.Finalize(ctx, callID, p.finalization(outcome, pl))
	if err != nil {
		return Result{}, fmt.Errorf("finalize: store: %w", err)
	}
	res := Result{Call: call, Applied: applied}

	if !applied && call.Status != outcome {
		log.Info("call already finalized with another outcome", "stored_status", string(call.Status))
		return res, nil
	}

	entry, created, err := p.apps.UpdateStatus(ctx, statusUpdate(call, pl.Actor))
	if err != nil {
		// The record is terminal; a later Finalize with the same outcome retries this.
		log.Error("application update failed", "application_id", call.ApplicationID, "err", err)
		return res, fmt.Errorf("finalize: application update: %w", err)
	}
	res.TimelineCreated = created

	if applied {
		p.auditFinalized(ctx, call, pl)
		log.Info("screening call finalized",
			"application_id", call.ApplicationID,
			"reason", string(call.FailureReason),
			"conflict_category", call.ConflictCategory,
			"duration_seconds", call.DurationSeconds,
		)
	}
	if created {
		if err := p.notifier.Notify(ctx, Notification{
			ApplicationID:   call.ApplicationID,
			ScreeningCallID: call.ID,
			Outcome:         call.Status,
			Reason:          call.FailureReason,
			TimelineEntryID: entry.ID,
		}); err != nil {
			log.Warn("notification failed", "err", err)
		}
	}
	return res, nil
}

func (p *Propagator) finalization(outcome screening.Status, pl Payload) screening.Finalization {
	d := pl.Data
	duration := pl.DurationSeconds
	if duration < d.DurationSeconds {
		duration = d.DurationSeconds
	}
	f := screening.Finalization{
		Status:           outcome,
		CompletedAt:      p.Now().UTC(),
		DurationSeconds:  duration,
		Transcript:       strings.TrimSpace(d.Transcript),
		AudioURL:         strings.TrimSpace(d.AudioURL),
		Summary:          strings.TrimSpace(d.Summary),
		ErrorMessage:     strings.TrimSpace(d.ErrorMessage),
		ConflictCategory: pl.ConflictCategory,
	}
	if ev := ParseEvaluation(f.Summary); ev != nil {
		f.Evaluation = ev
		f.Score = ev.Score
	}
	if outcome == screening.StatusRejected {
		f.FailureReason = pl.Reason
		if f.ErrorMessage == "" {
			f.ErrorMessage = pl.Reason.Describe()
		}
	}
	return f
}

func statusUpdate(call screening.Call, actor string) applications.StatusUpdate {
	if actor == "" {
		actor = "system"
	}
	u := applications.StatusUpdate{
		ApplicationID: call.ApplicationID,
		Actor:         actor,
		DedupeKey:     DedupeKey(call.ID, call.Status),
	}
	if call.Status == screening.StatusCompleted {
		u.Status = applications.StatusScreeningCompleted
		u.Step = StepCompleted
		return u
	}
	u.Status = applications.StatusSubmitted
	u.Step = StepFailed
	u.Note = call.FailureReason.Describe()
	return u
}

func (p *Propagator) auditFinalized(ctx context.Context, call screening.Call, pl Payload) {
	if p.audit == nil {
		return
	}
	actor := pl.Actor
	if actor == "" {
		actor = "system"
	}
	if err := p.audit.LogFinalized(ctx, call.ApplicationID, call.ID, string(call.Status), string(call.FailureReason), actor); err != nil {
		p.log.Warn("audit finalized failed", "screening_call_id", call.ID, "err", err)
	}
	if pl.ConflictCategory != "" {
		if err := p.audit.LogConflict(ctx, call.ApplicationID, call.ID, pl.ConflictCategory, pl.ConflictDetail); err != nil {
			p.log.Warn("audit conflict failed", "screening_call_id", call.ID, "err", err)
		}
	}
}
