package session

import (
	"context"
	"fmt"

	"screening-platform/internal/cache"
	"screening-platform/internal/finalize"
	"screening-platform/internal/reconcile"
	"screening-platform/internal/screening"
	"screening-platform/internal/voice"
)

// InlineRunner resolves ended calls in a goroutine of the current process.
type InlineRunner struct {
	o *Orchestrator
}

func (r InlineRunner) Dispatch(ctx context.Context, screeningCallID string) error {
	ctx = context.WithoutCancel(ctx)
	r.o.inflight.Add(1)
	go func() {
		defer r.o.inflight.Done()
		if _, err := r.o.Resolve(ctx, screeningCallID); err != nil {
			r.o.log.Error("resolve failed", "screening_call_id", screeningCallID, "err", err)
		}
	}()
	return nil
}

// Resolve retrieves, reconciles and finalizes an ended call. It is not
// cancelled by ctx, so a client leaving the page cannot abandon a call in
// retrieval. Concurrent Resolve calls for one id collapse into one.
func (o *Orchestrator) Resolve(ctx context.Context, screeningCallID string) (screening.Status, error) {
	ctx = context.WithoutCancel(ctx)
	log := o.log.With("screening_call_id", screeningCallID)

	if !o.beginResolve(screeningCallID) {
		log.Info("resolve already running in this process")
		return o.currentStatus(ctx, screeningCallID)
	}
	defer o.endResolve(screeningCallID)

	release, ok, err := o.guard.Acquire(ctx, cache.RetrievalKey(screeningCallID))
	if err != nil {
		return "", fmt.Errorf("session: retrieval guard: %w", err)
	}
	defer release()
	if !ok {
		log.Info("resolve already running elsewhere")
		return o.currentStatus(ctx, screeningCallID)
	}

	call, err := o.store.Get(ctx, screeningCallID)
	if err != nil {
		return "", err
	}
	if call.Status.Terminal() {
		o.dropSession(call.ID)
		return call.Status, nil
	}
	s := o.sessionFor(call)

	if call.ProviderCallID == "" {
		return o.finish(ctx, s, screening.StatusRejected, finalize.Payload{
			Reason: screening.ReasonRetrievalExhausted,
			Data:   voice.CallData{ErrorMessage: "call was never connected to the voice provider"},
		})
	}

	data, err := o.retriever.Retrieve(ctx, call.ProviderCallID, o.retrieval.MaxAttempts, o.retrieval.BaseDelay)
	if err != nil {
		reason := voice.ReasonOf(err)
		log.Warn("retrieval aborted", "reason", string(reason), "err", err)
		return o.finish(ctx, s, screening.StatusRejected, finalize.Payload{
			Reason: reason,
			Data:   voice.CallData{ErrorMessage: err.Error()},
		})
	}

	exhausted := data == nil
	if exhausted {
		partial := o.retriever.Partial(ctx, call.ProviderCallID)
		data = &partial
	}
	res := reconcile.Reconcile(reconcile.Input{Data: *data, ObservedSeconds: s.observedSeconds()})
	if exhausted && res.Outcome == screening.StatusRejected && !res.Report.Conflict {
		res.Reason = screening.ReasonRetrievalExhausted
	}
	return o.apply(ctx, s, res)
}

// ResolveWithData finalizes a call from data pushed by the provider. Data
// without a transcript or summary hands the call to the runner instead, so
// polling can still find the results.
func (o *Orchestrator) ResolveWithData(ctx context.Context, screeningCallID string, data voice.CallData) (screening.Status, error) {
	call, err := o.store.Get(ctx, screeningCallID)
	if err != nil {
		return "", err
	}
	s := o.sessionFor(call)
	if s.State().Live() {
		s.markEnded(o.Now())
		o.end(ctx, s, false)
	}

	if call.ProviderCallID != "" {
		if captured, ok, err := o.captures.LoadCapture(ctx, call.ProviderCallID); err == nil && ok {
			data = data.Merge(captured)
		}
	}

	if !data.Usable() && data.AudioURL == "" && !call.Status.Terminal() {
		o.log.Info("pushed call data not usable, falling back to retrieval", "screening_call_id", call.ID)
		s.transition(StateRetrieving, StateStarting, StateActive, StateEnded)
		if err := o.runner.Dispatch(ctx, call.ID); err != nil {
			return call.Status, err
		}
		return call.Status, nil
	}

	res := reconcile.Reconcile(reconcile.Input{Data: data, ObservedSeconds: s.observedSeconds()})
	// Terminal rows still go through finalize so a lost application update heals.
	return o.applyAs(ctx, s, res, "webhook")
}

func (o *Orchestrator) apply(ctx context.Context, s *Session, res reconcile.Result) (screening.Status, error) {
	return o.applyAs(ctx, s, res, "system")
}

func (o *Orchestrator) applyAs(ctx context.Context, s *Session, res reconcile.Result, actor string) (screening.Status, error) {
	if res.Report.Conflict {
		o.log.Warn("call data conflict",
			"screening_call_id", s.CallID,
			"category", string(res.Report.Category),
			"resolution", string(res.Report.Resolution),
			"severity", string(res.Report.Severity),
			"detail", res.Report.Detail,
		)
	}
	return o.finish(ctx, s, res.Outcome, finalize.Payload{
		Data:             res.Data,
		DurationSeconds:  res.DurationSeconds,
		Reason:           res.Reason,
		ConflictCategory: string(res.Report.Category),
		ConflictDetail:   res.Report.Detail,
		Actor:            actor,
	})
}

// sessionFor returns the registered session or a detached one built from
// the record, so resolution works in processes that never saw the call.
func (o *Orchestrator) sessionFor(call screening.Call) *Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok := o.sessions[call.ID]; ok {
		return s
	}
	s := newSession(call)
	if call.Status.Terminal() {
		s.state = StateRejected
		if call.Status == screening.StatusCompleted {
			s.state = StateCompleted
		}
	} else {
		s.state = StateRetrieving
	}
	return s
}

func (o *Orchestrator) dropSession(id string) {
	o.mu.Lock()
	s, ok := o.sessions[id]
	o.mu.Unlock()
	if ok {
		s.stopTimer()
		o.unregister(s)
	}
}

func (o *Orchestrator) beginResolve(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.resolving[id]; busy {
		return false
	}
	o.resolving[id] = struct{}{}
	return true
}

func (o *Orchestrator) endResolve(id string) {
	o.mu.Lock()
	delete(o.resolving, id)
	o.mu.Unlock()
}

func (o *Orchestrator) currentStatus(ctx context.Context, id string) (screening.Status, error) {
	c, err := o.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return c.Status, nil
}
