// Package session drives screening calls through their lifecycle: admission,
// provider start, live events, end of call and hand-off to retrieval.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"screening-platform/internal/admission"
	"screening-platform/internal/applications"
	"screening-platform/internal/cache"
	"screening-platform/internal/config"
	"screening-platform/internal/finalize"
	"screening-platform/internal/screening"
	"screening-platform/internal/script"
	"screening-platform/internal/voice"
	"screening-platform/pkg/phone"
)

// Admitter is the admission contract used by Start.
type Admitter interface {
	RequestAdmission(ctx context.Context, req admission.Request) (admission.Decision, error)
}

// Retriever is the retrieval engine contract used by Resolve.
type Retriever interface {
	Retrieve(ctx context.Context, providerCallID string, maxAttempts int, baseDelay time.Duration) (*voice.CallData, error)
	Partial(ctx context.Context, providerCallID string) voice.CallData
}

type Finalizer interface {
	Finalize(ctx context.Context, callID string, outcome screening.Status, pl finalize.Payload) (finalize.Result, error)
}

// Guard provides cross-process single-flight for Resolve.
type Guard interface {
	Acquire(ctx context.Context, key string) (release func(), ok bool, err error)
}

// Runner takes over a call once it ended and eventually calls Resolve for it.
type Runner interface {
	Dispatch(ctx context.Context, screeningCallID string) error
}

// Deps wires an Orchestrator.
type Deps struct {
	Store     screening.Store
	Apps      applications.Service
	Admission Admitter
	Provider  voice.Provider
	Retriever Retriever
	Finalizer Finalizer
	Captures  cache.CaptureStore
	Guard     Guard
	// Runner defaults to resolving in a goroutine of this process.
	Runner Runner
	Logger *slog.Logger

	Screening config.ScreeningConfig
	Retrieval config.RetrievalConfig
	Templates script.Templates
}

type Orchestrator struct {
	store     screening.Store
	apps      applications.Service
	admit     Admitter
	provider  voice.Provider
	retriever Retriever
	finalizer Finalizer
	captures  cache.CaptureStore
	guard     Guard
	runner    Runner
	log       *slog.Logger

	limits    config.ScreeningConfig
	retrieval config.RetrievalConfig
	templates script.Templates

	mu         sync.Mutex
	sessions   map[string]*Session
	byProvider map[string]string
	resolving  map[string]struct{}

	inflight sync.WaitGroup

	Now func() time.Time
}

func NewOrchestrator(d Deps) (*Orchestrator, error) {
	if d.Store == nil || d.Apps == nil || d.Admission == nil || d.Provider == nil || d.Retriever == nil || d.Finalizer == nil {
		return nil, errors.New("session: missing dependency")
	}
	if err := d.Templates.Validate(); err != nil {
		return nil, err
	}
	o := &Orchestrator{
		store:      d.Store,
		apps:       d.Apps,
		admit:      d.Admission,
		provider:   d.Provider,
		retriever:  d.Retriever,
		finalizer:  d.Finalizer,
		captures:   d.Captures,
		guard:      d.Guard,
		runner:     d.Runner,
		log:        d.Logger,
		limits:     d.Screening.Defaults(),
		retrieval:  d.Retrieval.Defaults(),
		templates:  d.Templates,
		sessions:   map[string]*Session{},
		byProvider: map[string]string{},
		resolving:  map[string]struct{}{},
		Now:        time.Now,
	}
	if o.log == nil {
		o.log = slog.Default()
	}
	if o.captures == nil {
		o.captures = cache.NewMemoryCaptureStore()
	}
	if o.guard == nil {
		o.guard = cache.NewMemoryGuard()
	}
	if o.runner == nil {
		o.runner = InlineRunner{o: o}
	}
	return o, nil
}

// StartRequest asks to screen an application now.
type StartRequest struct {
	ApplicationID string
	ActorUserID   string
	ActorRole     string
}

// StartResult reports what Start did. Decision.Allowed=false means no call
// was created; Reason is set when the provider refused to start the call.
type StartResult struct {
	Decision       admission.Decision `json:"decision"`
	ScreeningCall  *screening.Call    `json:"screening_call,omitempty"`
	ProviderCallID string             `json:"provider_call_id,omitempty"`
	State          State              `json:"state"`
	Reason         screening.Reason   `json:"reason,omitempty"`
}

// Start admits and starts a screening call for an application.
func (o *Orchestrator) Start(ctx context.Context, req StartRequest) (StartResult, error) {
	app, err := o.apps.Get(ctx, req.ApplicationID)
	if err != nil {
		return StartResult{}, err
	}
	number := ""
	if app.CandidatePhone != "" {
		number, err = phone.NormalizeE164(app.CandidatePhone, o.limits.DefaultRegion)
		if err != nil {
			return StartResult{}, fmt.Errorf("%w: candidate phone: %v", screening.ErrInvalidArgument, err)
		}
	}

	dec, err := o.admit.RequestAdmission(ctx, admission.Request{
		ApplicationID: app.ID,
		CandidateID:   app.CandidateID,
		JobID:         app.JobID,
		ActorUserID:   req.ActorUserID,
		ActorRole:     req.ActorRole,
	})
	if err != nil {
		return StartResult{}, err
	}
	res := StartResult{Decision: dec, State: StateIdle}
	if !dec.Allowed || dec.Call == nil {
		return res, nil
	}
	call := *dec.Call
	res.ScreeningCall = &call
	log := o.log.With("screening_call_id", call.ID, "application_id", app.ID)

	s := newSession(call)
	o.register(s)

	company := app.CompanyName
	if company == "" {
		company = o.limits.CompanyName
	}
	sc, err := script.Build(script.Context{
		CandidateName: app.CandidateName,
		JobTitle:      app.JobTitle,
		Department:    app.Department,
		CompanyName:   company,
		MaxDuration:   o.limits.MaxCallDuration,
	}, o.templates)
	if err != nil {
		// Templates are validated at construction; this only fires on programmer error.
		o.finish(ctx, s, screening.StatusRejected, finalize.Payload{
			Reason: screening.ReasonProviderTransientError,
			Data:   voice.CallData{ErrorMessage: err.Error()},
		})
		return res, err
	}

	providerID, err := o.provider.Start(ctx, voice.SessionConfig{
		FirstMessage:   sc.FirstMessage,
		SystemPrompt:   sc.SystemPrompt,
		EndMessage:     sc.EndMessage,
		Questions:      sc.Questions,
		EndPhrases:     sc.EndPhrases,
		MaxDuration:    o.limits.MaxCallDuration,
		CustomerName:   app.CandidateName,
		CustomerNumber: number,
		Metadata: map[string]string{
			voice.MetadataScreeningCallID: call.ID,
			voice.MetadataApplicationID:   app.ID,
		},
	})
	if err != nil {
		reason := voice.ReasonOf(err)
		log.Warn("provider start failed", "reason", string(reason), "err", err)
		o.finish(ctx, s, screening.StatusRejected, finalize.Payload{
			Reason: reason,
			Data:   voice.CallData{ErrorMessage: err.Error()},
		})
		res.State = StateRejected
		res.Reason = reason
		return res, nil
	}

	if err := o.store.AttachProviderCall(ctx, call.ID, providerID, o.Now().UTC()); err != nil {
		// The record went terminal underneath us (reaped or interrupted).
		o.stopProvider(ctx, providerID)
		o.unregister(s)
		if errors.Is(err, screening.ErrTerminal) {
			res.State = StateRejected
			return res, nil
		}
		return res, err
	}
	o.bindProvider(s, providerID)

	log.Info("screening call started", "provider_call_id", providerID, "role", string(sc.Role))
	res.ProviderCallID = providerID
	res.State = s.State()
	return res, nil
}

// HandleEvent applies one provider event. Events for calls this process has
// never seen are correlated through the store; events for terminal calls are
// ignored.
func (o *Orchestrator) HandleEvent(ctx context.Context, ev voice.Event) error {
	s, err := o.lookup(ctx, ev.ScreeningCallID, ev.ProviderCallID)
	if err != nil {
		return err
	}
	if s == nil {
		return nil
	}
	at := ev.At
	if at.IsZero() {
		at = o.Now()
	}
	log := o.log.With("screening_call_id", s.CallID, "event", string(ev.Type))

	switch ev.Type {
	case voice.EventCallStart:
		if !s.transition(StateActive, StateStarting) {
			log.Debug("call-start ignored", "state", string(s.State()))
			return nil
		}
		s.markStarted(at)
		if _, err := o.store.MarkInProgress(ctx, s.CallID, at.UTC()); err != nil {
			log.Error("mark in progress failed", "err", err)
		}
		o.armSafetyTimer(s)
		log.Info("screening call active")
	case voice.EventTranscript:
		s.addTranscript(ev.Role, ev.Text)
	case voice.EventSpeechStart:
		s.setSpeaking(true)
	case voice.EventSpeechEnd:
		s.setSpeaking(false)
	case voice.EventError:
		reason := voice.Classify(0, ev.Error)
		s.recordError(ev.Error)
		log.Warn("provider reported error", "reason", string(reason), "error", ev.Error)
		if reason.Unrecoverable() {
			o.abort(ctx, s, reason, ev.Error)
		}
	case voice.EventCallEnd:
		s.markEnded(at)
		o.end(ctx, s, true)
	case voice.EventEndOfCallReport:
		if ev.Data == nil {
			return nil
		}
		s.markEnded(at)
		_, err := o.ResolveWithData(ctx, s.CallID, *ev.Data)
		return err
	default:
		log.Debug("unhandled event")
	}
	return nil
}

// Stop ends a call on request. It is safe to call for calls that already ended.
func (o *Orchestrator) Stop(ctx context.Context, screeningCallID string) (State, error) {
	s, err := o.lookup(ctx, screeningCallID, "")
	if err != nil {
		return "", err
	}
	if s == nil {
		return o.storedState(ctx, screeningCallID)
	}
	if s.State().Live() {
		o.stopProvider(ctx, s.ProviderCallID())
		s.markEnded(o.Now())
		o.end(ctx, s, true)
	}
	return s.State(), nil
}

// Interrupt handles a client lifecycle signal. Only navigation-intent signals
// interrupt; anything else is reported as not interrupted. Calls that are
// already retrieving finish normally since retrieval runs server-side.
func (o *Orchestrator) Interrupt(ctx context.Context, screeningCallID string, sig Signal) (bool, error) {
	if !sig.Valid() {
		return false, screening.ErrInvalidArgument
	}
	if !sig.NavigationIntent() {
		o.log.Debug("lifecycle signal ignored", "screening_call_id", screeningCallID, "signal", string(sig))
		return false, nil
	}
	s, err := o.lookup(ctx, screeningCallID, "")
	if err != nil || s == nil {
		return false, err
	}
	if !s.transition(StateRejected, StateStarting, StateActive, StateEnded) {
		return false, nil
	}
	s.stopTimer()
	o.stopProvider(ctx, s.ProviderCallID())
	o.log.Info("screening call interrupted", "screening_call_id", s.CallID, "signal", string(sig))
	o.finish(ctx, s, screening.StatusRejected, finalize.Payload{Reason: screening.ReasonInterruptedNavigation})
	return true, nil
}

// State returns the live state of a call known to this process.
func (o *Orchestrator) State(screeningCallID string) (State, bool) {
	o.mu.Lock()
	s, ok := o.sessions[screeningCallID]
	o.mu.Unlock()
	if !ok {
		return "", false
	}
	return s.State(), true
}

// Wait blocks until inline retrievals started by this process are done.
func (o *Orchestrator) Wait() {
	o.inflight.Wait()
}

// end moves a live call to ended, persists what the events captured and,
// when dispatch is set, hands the call to the runner.
func (o *Orchestrator) end(ctx context.Context, s *Session, dispatch bool) {
	if !s.transition(StateEnded, StateStarting, StateActive) {
		return
	}
	s.stopTimer()
	s.markEnded(o.Now())
	log := o.log.With("screening_call_id", s.CallID)

	if pid := s.ProviderCallID(); pid != "" {
		if err := o.captures.SaveCapture(context.WithoutCancel(ctx), pid, s.snapshot()); err != nil {
			log.Warn("save capture failed", "err", err)
		}
	}
	if !s.transition(StateRetrieving, StateEnded) {
		return
	}
	log.Info("screening call ended", "observed_seconds", s.observedSeconds())
	if !dispatch {
		return
	}
	if err := o.runner.Dispatch(ctx, s.CallID); err != nil {
		log.Warn("runner dispatch failed, resolving in process", "err", err)
		_ = InlineRunner{o: o}.Dispatch(ctx, s.CallID)
	}
}

// abort ends a call that can never produce results.
func (o *Orchestrator) abort(ctx context.Context, s *Session, reason screening.Reason, msg string) {
	if !s.transition(StateRejected, StateStarting, StateActive, StateEnded) {
		return
	}
	s.stopTimer()
	o.stopProvider(ctx, s.ProviderCallID())
	o.finish(ctx, s, screening.StatusRejected, finalize.Payload{
		Reason: reason,
		Data:   voice.CallData{ErrorMessage: msg},
	})
}

func (o *Orchestrator) armSafetyTimer(s *Session) {
	o.armSafetyTimerAfter(s, o.limits.MaxCallDuration+o.limits.GraceBuffer)
}

func (o *Orchestrator) armSafetyTimerAfter(s *Session, after time.Duration) {
	limit := o.limits.MaxCallDuration + o.limits.GraceBuffer
	if after <= 0 {
		after = time.Millisecond
	}
	s.armTimer(after, func() {
		ctx := context.Background()
		if !s.State().Live() {
			return
		}
		o.log.Warn("max call duration exceeded, stopping call",
			"screening_call_id", s.CallID,
			"limit_seconds", int(limit.Seconds()),
		)
		o.stopProvider(ctx, s.ProviderCallID())
		s.markEnded(o.Now())
		o.end(ctx, s, true)
	})
}

func (o *Orchestrator) stopProvider(ctx context.Context, providerCallID string) {
	if providerCallID == "" {
		return
	}
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := o.provider.Stop(stopCtx, providerCallID); err != nil {
		o.log.Warn("provider stop failed", "provider_call_id", providerCallID, "err", err)
	}
}

// finish finalizes the call and drops it from the registry.
func (o *Orchestrator) finish(ctx context.Context, s *Session, outcome screening.Status, pl finalize.Payload) (screening.Status, error) {
	if pl.Actor == "" {
		pl.Actor = "system"
	}
	res, err := o.finalizer.Finalize(context.WithoutCancel(ctx), s.CallID, outcome, pl)
	if err != nil {
		o.log.Error("finalize failed", "screening_call_id", s.CallID, "err", err)
	}
	final := res.Call.Status
	if final == "" {
		final = outcome
	}
	if final == screening.StatusCompleted {
		s.setState(StateCompleted)
	} else {
		s.setState(StateRejected)
	}
	s.stopTimer()
	o.unregister(s)
	return final, err
}

func (o *Orchestrator) register(s *Session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sessions[s.CallID] = s
	if pid := s.ProviderCallID(); pid != "" {
		o.byProvider[pid] = s.CallID
	}
}

func (o *Orchestrator) bindProvider(s *Session, providerCallID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s.setProviderCallID(providerCallID)
	o.byProvider[providerCallID] = s.CallID
}

func (o *Orchestrator) unregister(s *Session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if cur, ok := o.sessions[s.CallID]; ok && cur == s {
		delete(o.sessions, s.CallID)
	}
	if pid := s.ProviderCallID(); pid != "" {
		delete(o.byProvider, pid)
	}
}

// lookup returns the live session for a call, rehydrating it from the store
// when this process has not seen it. It returns nil for terminal calls.
func (o *Orchestrator) lookup(ctx context.Context, screeningCallID, providerCallID string) (*Session, error) {
	o.mu.Lock()
	if screeningCallID == "" && providerCallID != "" {
		screeningCallID = o.byProvider[providerCallID]
	}
	if s, ok := o.sessions[screeningCallID]; ok && screeningCallID != "" {
		o.mu.Unlock()
		return s, nil
	}
	o.mu.Unlock()

	var call screening.Call
	var err error
	switch {
	case screeningCallID != "":
		call, err = o.store.Get(ctx, screeningCallID)
	case providerCallID != "":
		call, err = o.store.GetByProviderCallID(ctx, providerCallID)
	default:
		return nil, screening.ErrInvalidArgument
	}
	if err != nil {
		return nil, err
	}
	if call.Status.Terminal() {
		return nil, nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok := o.sessions[call.ID]; ok {
		return s, nil
	}
	s := newSession(call)
	o.sessions[s.CallID] = s
	if pid := s.ProviderCallID(); pid != "" {
		o.byProvider[pid] = s.CallID
	}
	if s.state == StateActive && !s.startedAt.IsZero() {
		limit := o.limits.MaxCallDuration + o.limits.GraceBuffer
		o.armSafetyTimerAfter(s, limit-o.Now().Sub(s.startedAt))
	}
	o.log.Debug("session rehydrated", "screening_call_id", call.ID, "state", string(s.state))
	return s, nil
}

func (o *Orchestrator) storedState(ctx context.Context, screeningCallID string) (State, error) {
	c, err := o.store.Get(ctx, screeningCallID)
	if err != nil {
		return "", err
	}
	switch c.Status {
	case screening.StatusCompleted:
		return StateCompleted, nil
	case screening.StatusRejected:
		return StateRejected, nil
	case screening.StatusInProgress:
		return StateActive, nil
	}
	return StateStarting, nil
}
