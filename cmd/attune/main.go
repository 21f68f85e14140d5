package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/attune-app/attune/internal/capture"
	"github.com/attune-app/attune/internal/checkin"
	"github.com/attune-app/attune/internal/config"
	"github.com/attune-app/attune/internal/httpapi"
	"github.com/attune-app/attune/internal/inference"
	"github.com/attune-app/attune/internal/journal"
	"github.com/attune-app/attune/internal/observability"
	"github.com/attune-app/attune/internal/reccache"
	"github.com/attune-app/attune/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	journalStore, err := journal.NewStore(ctx, cfg.DatabaseURL, cfg.JournalSQLitePath)
	if err != nil {
		log.Fatalf("journal store init failed: %v", err)
	}
	defer journalStore.Close()

	recCache, err := reccache.NewStore(ctx, cfg.DatabaseURL, cfg.RecCacheSQLitePath)
	if err != nil {
		log.Fatalf("recommendation cache init failed: %v", err)
	}
	defer recCache.Close()

	inferClient := inference.NewClient(cfg.InferenceBaseURL, cfg.InferenceAuthToken, cfg.InferenceTimeout)
	log.Printf("inference backend: %s", cfg.InferenceBaseURL)

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(_ *session.Session) {
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
	})

	orchestrator := checkin.NewOrchestrator(
		sessions,
		inferClient,
		recCache,
		metrics,
		cfg.FrameWarmup,
		cfg.FrameInterval,
		cfg.TextDebounceWindow,
		cfg.TextMinRunes,
		capture.Constraints{Width: cfg.FrameWidth, Height: cfg.FrameHeight},
	)

	api := httpapi.New(cfg, sessions, orchestrator, journalStore, recCache, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	sessions.StartJanitor(runCtx, 5*time.Second)

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
