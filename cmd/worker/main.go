package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"screening-platform/internal/app"
	"screening-platform/internal/config"
	"screening-platform/internal/tasks"
	"screening-platform/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env, "worker")
	slog.SetDefault(log)

	a, err := app.Build(rootCtx, cfg, log)
	if err != nil {
		log.Error("app init failed", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	w := tasks.NewWorker(cfg, tasks.Handlers{
		Resolver: a.Orchestrator,
		Sweeper:  a.Reaper,
		Log:      log,
	})
	if err := w.Run(rootCtx); err != nil {
		log.Error("worker failed", "err", err)
		os.Exit(1)
	}
}
