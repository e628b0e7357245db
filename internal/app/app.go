// Package app wires the screening engine from configuration. The api, worker
// and ctl processes share it so they agree on every collaborator.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"screening-platform/internal/admission"
	"screening-platform/internal/applications"
	"screening-platform/internal/audit"
	"screening-platform/internal/cache"
	"screening-platform/internal/config"
	"screening-platform/internal/finalize"
	"screening-platform/internal/reaper"
	"screening-platform/internal/reporting"
	"screening-platform/internal/retrieval"
	"screening-platform/internal/screening"
	"screening-platform/internal/session"
	"screening-platform/internal/tasks"
	"screening-platform/internal/voice"
	"screening-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

type App struct {
	Cfg config.Config
	Log *slog.Logger

	DB    *sql.DB
	Redis *redis.Client

	Store        screening.Store
	Apps         applications.Service
	Audit        *audit.Service
	Propagator   *finalize.Propagator
	Reaper       *reaper.Reaper
	Admission    *admission.Controller
	Retrieval    *retrieval.Engine
	Orchestrator *session.Orchestrator
	Reports      *reporting.Service

	// Queue is set when retrieval is handed to the worker process.
	Queue *tasks.Client
}

// Build opens Postgres and Redis and assembles the engine. Close releases
// what Build opened.
func Build(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	a := &App{Cfg: cfg, Log: log}

	db, err := utils.OpenPostgres(ctx, cfg.PostgresDSN(), utils.PoolConfig{
		MaxOpenConns: cfg.DB.MaxOpenConns,
		MaxIdleConns: cfg.DB.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	a.DB = db

	rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.RedisAddr(), Password: cfg.Redis.Password})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}
	a.Redis = rdb

	provider, err := voice.NewHTTPProvider(cfg.Voice, nil)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Store = screening.NewPostgresStore(db)
	a.Apps = applications.NewPostgresService(db)
	a.Audit = audit.NewService(audit.NewPostgresRepo(db))
	a.Reports = reporting.NewService(a.Store)

	captures := cache.NewRedisCaptureStore(rdb, cfg.Retrieval.CaptureTTL)
	// Guards outlive the slowest retrieval so a second resolver cannot start mid-flight.
	guard := cache.NewRedisGuard(rdb, cfg.Retrieval.ExtendedWait+cfg.Screening.MaxCallDuration)

	a.Propagator = finalize.NewPropagator(a.Store, a.Apps, a.Audit, finalize.LogNotifier{Log: log}, log)
	a.Reaper = reaper.New(a.Store, a.Propagator, cfg.Screening.StaleTimeout, log)
	a.Admission = admission.NewController(a.Store, a.Reaper, guard, a.Audit, cfg.Screening, log)
	a.Retrieval = retrieval.NewEngine(provider, cfg.Retrieval, retrieval.Options{
		Captures: captures,
		Limiter:  rate.NewLimiter(rate.Limit(cfg.Voice.FetchRate), cfg.Voice.FetchBurst),
		Logger:   log,
	})

	var runner session.Runner
	if cfg.Worker.UseQueue {
		a.Queue = tasks.NewClient(cfg, log)
		runner = a.Queue
	}

	a.Orchestrator, err = session.NewOrchestrator(session.Deps{
		Store:     a.Store,
		Apps:      a.Apps,
		Admission: a.Admission,
		Provider:  provider,
		Retriever: a.Retrieval,
		Finalizer: a.Propagator,
		Captures:  captures,
		Guard:     guard,
		Runner:    runner,
		Logger:    log,
		Screening: cfg.Screening,
		Retrieval: cfg.Retrieval,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) Close() {
	if a.Queue != nil {
		_ = a.Queue.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}
