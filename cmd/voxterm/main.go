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

	"github.com/voxterm/voxterm/internal/auth"
	"github.com/voxterm/voxterm/internal/config"
	"github.com/voxterm/voxterm/internal/detect"
	"github.com/voxterm/voxterm/internal/httpapi"
	"github.com/voxterm/voxterm/internal/observability"
	"github.com/voxterm/voxterm/internal/session"
	"github.com/voxterm/voxterm/internal/settings"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	store, err := settings.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("settings store init failed: %v", err)
	}
	defer store.Close()

	detector := detect.NewDetector()
	detected := detector.DetectAll(ctx)
	if len(detected) == 0 {
		log.Printf("no assistant CLIs detected; sessions fall back to a plain shell")
	} else {
		for key, info := range detected {
			log.Printf("detected CLI %s: %s (%s)", key, info.Path, info.Version)
		}
	}

	authn := auth.New(cfg.JWTSecret, cfg.APIKey, cfg.TokenTTL, cfg.AuthEnabled)
	if cfg.AuthEnabled {
		log.Printf("auth enabled: bearer tokens required")
	}

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	sessions.SetTerminalDefaults(cfg.TerminalRows, cfg.TerminalCols, cfg.StopGraceTimeout)

	api := httpapi.New(cfg, sessions, detector, store, authn, metrics)
	sessions.SetExpireHook(api.OnSessionExpired)

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
