// Package retrieval obtains the final data of a finished call. Providers
// publish call data with a delay, so retrieval runs a cascade of strategies
// and stops at the first one that returns a transcript or a summary.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"screening-platform/internal/cache"
	"screening-platform/internal/config"
	"screening-platform/internal/voice"

	"golang.org/x/time/rate"
)

type Strategy string

const (
	StrategyDirect        Strategy = "direct"
	StrategyExtendedWait  Strategy = "extended_wait"
	StrategyComprehensive Strategy = "comprehensive"
)

// Fetcher is the part of voice.Provider retrieval needs.
type Fetcher interface {
	Fetch(ctx context.Context, providerCallID string) (*voice.CallData, error)
}

// Engine runs the retrieval cascade.
type Engine struct {
	fetcher   Fetcher
	artifacts voice.ArtifactFetcher
	captures  cache.CaptureStore
	limiter   *rate.Limiter
	log       *slog.Logger

	extendedWait time.Duration
	pollInterval time.Duration

	// Sleep waits for d or until ctx is done. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

// Options wires optional collaborators.
type Options struct {
	// Artifacts is the alternate lookup path; when nil and the fetcher
	// implements voice.ArtifactFetcher, the fetcher is used.
	Artifacts voice.ArtifactFetcher
	Captures  cache.CaptureStore
	Limiter   *rate.Limiter
	Logger    *slog.Logger
}

func NewEngine(fetcher Fetcher, cfg config.RetrievalConfig, opt Options) *Engine {
	cfg = cfg.Defaults()
	e := &Engine{
		fetcher:      fetcher,
		artifacts:    opt.Artifacts,
		captures:     opt.Captures,
		limiter:      opt.Limiter,
		log:          opt.Logger,
		extendedWait: cfg.ExtendedWait,
		pollInterval: cfg.PollInterval,
		Sleep:        sleepCtx,
		Now:          time.Now,
	}
	if e.artifacts == nil {
		if af, ok := fetcher.(voice.ArtifactFetcher); ok {
			e.artifacts = af
		}
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	if e.pollInterval <= 0 || e.pollInterval > e.extendedWait {
		e.pollInterval = e.extendedWait
	}
	return e
}

// Retrieve runs direct fetch, then extended wait, then the comprehensive
// fallback. It returns (nil, nil) when every strategy came up empty, and an
// error only for unrecoverable provider failures or a cancelled ctx.
func (e *Engine) Retrieve(ctx context.Context, providerCallID string, maxAttempts int, baseDelay time.Duration) (*voice.CallData, error) {
	if providerCallID == "" {
		return nil, errors.New("retrieval: provider call id is required")
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	started := e.Now()
	log := e.log.With("provider_call_id", providerCallID)

	// best keeps partial data (audio, status, error) so the reconciler sees
	// it even when nothing was usable.
	var best *voice.CallData

	delay := baseDelay
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := e.Sleep(ctx, delay); err != nil {
				return nil, err
			}
			delay = delay * 3 / 2
		}
		d, err := e.fetch(ctx, providerCallID)
		e.logAttempt(log, StrategyDirect, attempt, started, d, err)
		if err != nil {
			if fatal(err) {
				return nil, err
			}
			continue
		}
		best = mergeBest(best, d)
		if d.Usable() {
			return d, nil
		}
	}

	if e.extendedWait > 0 {
		polls := int(e.extendedWait / e.pollInterval)
		if polls < 1 {
			polls = 1
		}
		for poll := 1; poll <= polls; poll++ {
			if err := e.Sleep(ctx, e.pollInterval); err != nil {
				return nil, err
			}
			d, err := e.fetch(ctx, providerCallID)
			e.logAttempt(log, StrategyExtendedWait, poll, started, d, err)
			if err != nil {
				if fatal(err) {
					return nil, err
				}
				continue
			}
			best = mergeBest(best, d)
			if d.Usable() {
				return d, nil
			}
		}
	}

	merged, err := e.comprehensive(ctx, providerCallID)
	e.logAttempt(log, StrategyComprehensive, 1, started, merged, err)
	if err != nil {
		if fatal(err) {
			return nil, err
		}
	}
	if merged != nil {
		best = mergeBest(best, merged)
	}
	if best.Usable() {
		return best, nil
	}

	log.Warn("call data retrieval exhausted", "elapsed_ms", e.Now().Sub(started).Milliseconds())
	return nil, nil
}

// Partial returns whatever non-usable data the provider exposed, so callers
// can reconcile a call that has audio but no transcript. It performs one
// direct fetch and one capture lookup without waiting.
func (e *Engine) Partial(ctx context.Context, providerCallID string) voice.CallData {
	var out voice.CallData
	if d, err := e.fetch(ctx, providerCallID); err == nil && d != nil {
		out = *d
	}
	if e.captures != nil {
		if c, ok, err := e.captures.LoadCapture(ctx, providerCallID); err == nil && ok {
			out = out.Merge(c)
		}
	}
	return out
}

func (e *Engine) comprehensive(ctx context.Context, providerCallID string) (*voice.CallData, error) {
	var out voice.CallData
	var firstErr error

	if e.artifacts != nil {
		if err := e.wait(ctx); err != nil {
			return nil, err
		}
		d, err := e.artifacts.FetchArtifacts(ctx, providerCallID)
		if err != nil {
			if fatal(err) {
				return nil, err
			}
			firstErr = err
		} else if d != nil {
			out = *d
		}
	}
	if e.captures != nil {
		c, ok, err := e.captures.LoadCapture(ctx, providerCallID)
		switch {
		case err != nil:
			if firstErr == nil {
				firstErr = fmt.Errorf("retrieval: load capture: %w", err)
			}
		case ok:
			out = out.Merge(c)
		}
	}
	if out == (voice.CallData{}) {
		return nil, firstErr
	}
	return &out, nil
}

func (e *Engine) fetch(ctx context.Context, providerCallID string) (*voice.CallData, error) {
	if err := e.wait(ctx); err != nil {
		return nil, err
	}
	return e.fetcher.Fetch(ctx, providerCallID)
}

func (e *Engine) wait(ctx context.Context) error {
	if e.limiter == nil {
		return nil
	}
	return e.limiter.Wait(ctx)
}

func (e *Engine) logAttempt(log *slog.Logger, s Strategy, attempt int, started time.Time, d *voice.CallData, err error) {
	attrs := []any{
		"strategy", string(s),
		"attempt", attempt,
		"elapsed_ms", e.Now().Sub(started).Milliseconds(),
		"has_transcript", d != nil && d.Transcript != "",
		"has_summary", d != nil && d.Summary != "",
		"has_audio", d != nil && d.AudioURL != "",
	}
	if err != nil {
		log.Warn("retrieval attempt failed", append(attrs, "err", err)...)
		return
	}
	log.Info("retrieval attempt", attrs...)
}

// fatal reports errors that make further attempts pointless.
func fatal(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return voice.ReasonOf(err).Unrecoverable()
}

func mergeBest(best, d *voice.CallData) *voice.CallData {
	if d == nil {
		return best
	}
	if best == nil {
		c := *d
		return &c
	}
	m := d.Merge(*best)
	return &m
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
