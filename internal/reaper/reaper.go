// Package reaper force-finalizes screening calls that never reached a
// terminal state, so they stop blocking admission for their application.
package reaper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"screening-platform/internal/finalize"
	"screening-platform/internal/screening"
)

const actor = "reaper"

// Finalizer is the part of finalize.Propagator the reaper needs.
type Finalizer interface {
	Finalize(ctx context.Context, callID string, outcome screening.Status, pl finalize.Payload) (finalize.Result, error)
}

type Reaper struct {
	store        screening.Store
	finalizer    Finalizer
	staleTimeout time.Duration
	log          *slog.Logger

	Now func() time.Time
}

func New(store screening.Store, finalizer Finalizer, staleTimeout time.Duration, log *slog.Logger) *Reaper {
	if staleTimeout <= 0 {
		staleTimeout = 10 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Reaper{store: store, finalizer: finalizer, staleTimeout: staleTimeout, log: log, Now: time.Now}
}

// Sweep finalizes every stale call. It returns how many calls this sweep
// moved to rejected; calls finalized concurrently by someone else are skipped.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	return r.sweep(ctx, screening.Filter{})
}

// SweepApplication is Sweep restricted to one application. Admission runs it
// before counting active calls.
func (r *Reaper) SweepApplication(ctx context.Context, applicationID string) (int, error) {
	if applicationID == "" {
		return 0, screening.ErrInvalidArgument
	}
	return r.sweep(ctx, screening.Filter{ApplicationID: applicationID})
}

func (r *Reaper) sweep(ctx context.Context, f screening.Filter) (int, error) {
	f.Statuses = []screening.Status{screening.StatusScheduled, screening.StatusInProgress}
	f.CreatedBefore = r.Now().UTC().Add(-r.staleTimeout)

	stale, err := r.store.List(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("reaper: list stale calls: %w", err)
	}

	var errs []error
	reaped := 0
	for _, c := range stale {
		res, err := r.finalizer.Finalize(ctx, c.ID, screening.StatusRejected, finalize.Payload{
			Reason: screening.ReasonStaleCleanup,
			Actor:  actor,
		})
		if err != nil {
			r.log.Error("reap failed", "screening_call_id", c.ID, "err", err)
			errs = append(errs, err)
			continue
		}
		if res.Applied {
			reaped++
			r.log.Info("stale call reaped",
				"screening_call_id", c.ID,
				"application_id", c.ApplicationID,
				"reason", string(screening.ReasonStaleCleanup),
				"age_seconds", int(r.Now().Sub(c.CreatedAt).Seconds()),
			)
		}
	}
	return reaped, errors.Join(errs...)
}

// Run sweeps every interval until ctx is done.
func (r *Reaper) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if n, err := r.Sweep(ctx); err != nil {
			r.log.Error("sweep failed", "err", err)
		} else if n > 0 {
			r.log.Info("sweep complete", "reaped", n)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}
