package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"screening-platform/internal/config"
	"screening-platform/internal/screening"

	"github.com/hibiken/asynq"
)

type Resolver interface {
	Resolve(ctx context.Context, screeningCallID string) (screening.Status, error)
}

type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Handlers holds the task handlers independent of the asynq server.
type Handlers struct {
	Resolver Resolver
	Sweeper  Sweeper
	Log      *slog.Logger
}

func (h Handlers) HandleRetrieve(ctx context.Context, task *asynq.Task) error {
	p, err := ParseRetrievePayload(task)
	if err != nil {
		// A malformed payload will never succeed.
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	status, err := h.Resolver.Resolve(ctx, p.ScreeningCallID)
	if err != nil {
		return err
	}
	h.Log.Info("screening call resolved", "screening_call_id", p.ScreeningCallID, "status", string(status))
	return nil
}

func (h Handlers) HandleReap(ctx context.Context, _ *asynq.Task) error {
	n, err := h.Sweeper.Sweep(ctx)
	if n > 0 {
		h.Log.Info("stale calls reaped", "count", n)
	}
	return err
}

// Mux registers the handlers on a fresh ServeMux.
func (h Handlers) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeRetrieve, h.HandleRetrieve)
	mux.HandleFunc(TypeReap, h.HandleReap)
	return mux
}

// Worker runs the asynq server and the periodic reap schedule.
type Worker struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	queue     string
	interval  time.Duration
	log       *slog.Logger
}

func NewWorker(cfg config.Config, h Handlers) *Worker {
	if h.Log == nil {
		h.Log = slog.Default()
	}
	opt := RedisClientOpt(cfg)
	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
		Queues: map[string]int{
			cfg.Worker.Queue: 1,
		},
	})
	return &Worker{
		server:    server,
		scheduler: asynq.NewScheduler(opt, nil),
		mux:       h.Mux(),
		queue:     cfg.Worker.Queue,
		interval:  cfg.Worker.ReaperInterval,
		log:       h.Log,
	}
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if _, err := w.scheduler.Register(ReapSchedule(w.interval), NewReapTask(), asynq.Queue(w.queue), asynq.Unique(w.interval)); err != nil {
		return fmt.Errorf("tasks: register reap schedule: %w", err)
	}
	if err := w.scheduler.Start(); err != nil {
		return fmt.Errorf("tasks: start scheduler: %w", err)
	}
	defer w.scheduler.Shutdown()

	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("tasks: start server: %w", err)
	}
	w.log.Info("worker started", "queue", w.queue, "reap_every", w.interval.String())

	<-ctx.Done()
	w.server.Shutdown()
	w.log.Info("worker stopped")
	return nil
}

// ReapSchedule is the cron spec for the periodic sweep.
func ReapSchedule(interval time.Duration) string {
	if interval < time.Second {
		interval = time.Minute
	}
	return "@every " + interval.String()
}
