package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"screening-platform/internal/app"
	"screening-platform/internal/auth"
	"screening-platform/internal/config"
	"screening-platform/pkg/logger"
	"screening-platform/pkg/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()

	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env, "api")
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	if err := utils.RunMigrations(cfg.PostgresURL(), cfg.App.MigrationsDir); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	a, err := app.Build(rootCtx, cfg, log)
	if err != nil {
		log.Error("app init failed", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	if len(cfg.App.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.App.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-Id"},
			ExposeHeaders:    []string{"X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	registerRoutes(r, a, authManager)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	// Without a worker process the api sweeps stale calls itself.
	if !cfg.Worker.UseQueue {
		g.Go(func() error {
			return a.Reaper.Run(gctx, cfg.Worker.ReaperInterval)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown failed", "err", err)
		}
		// Inline retrievals finish before the process exits.
		a.Orchestrator.Wait()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("api stopped", "err", err)
		os.Exit(1)
	}
}
