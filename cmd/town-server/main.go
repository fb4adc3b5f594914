// Package main is the entry point for the Cidade Dorme match server.
// It only handles dependency injection and server initialization.
// NO game rules belong here.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Fezudo98/cidade-dorme-online/internal/engine"
	"github.com/Fezudo98/cidade-dorme-online/internal/infra/storage"
	"github.com/Fezudo98/cidade-dorme-online/internal/match"
	"github.com/Fezudo98/cidade-dorme-online/internal/network"
	"github.com/Fezudo98/cidade-dorme-online/internal/platform/config"
	"github.com/Fezudo98/cidade-dorme-online/internal/platform/logger"
	"github.com/Fezudo98/cidade-dorme-online/internal/platform/metrics"
)

// pruneInterval is how often finished matches are dropped from memory.
const pruneInterval = 10 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	appLogger := logger.NewFromFormat(cfg.LogFormat, cfg.LogLevel)
	appLogger.Info("Initializing Cidade Dorme match server...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appLogger.Info("Initializing SQLite database " + cfg.DBPath)
	db, err := storage.InitSQLite(ctx, cfg.DBPath, storage.PoolOptions{
		MaxOpenConns: cfg.DB.MaxOpenConns,
		MaxIdleConns: cfg.DB.MaxIdleConns,
	})
	if err != nil {
		appLogger.Err("Failed to initialize SQLite", err)
		os.Exit(1)
	}
	defer db.Close()
	eventRepo := storage.NewSQLiteEventRepository(db)
	resultRepo := storage.NewSQLiteResultRepository(db)

	collector := metrics.NewCollector()

	appLogger.Info("Bootstrapping WebSocket Hub...")
	hub := network.NewHub(cfg.Buffers.Broadcast, collector, appLogger.With("component", "hub"))
	go hub.Run(ctx)

	registry := match.NewRegistry(
		engine.SettingsFromConfig(cfg.Game, cfg.Buffers.Outbox),
		engine.Deps{
			Notifier:  hub,
			Voice:     hub,
			Recorder:  resultRepo,
			Persister: eventRepo,
			Metrics:   collector,
		},
		appLogger,
	)
	go func() {
		ticker := time.NewTicker(pruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := registry.Prune(); n > 0 {
					appLogger.Info(fmt.Sprintf("Pruned %d finished matches", n))
				}
			}
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", network.ServeWS(hub, registry, cfg.Limits, cfg.Buffers.ClientSend))
	network.NewAPI(registry, hub, resultRepo, appLogger.With("component", "api")).RegisterRoutes(mux)
	network.NewReplayHandler(registry, storage.NewReconstructor(eventRepo), appLogger).RegisterRoutes(mux)
	mux.HandleFunc("/api/metrics", collector.Handler())
	mux.HandleFunc("/metrics", collector.PrometheusHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		appLogger.Info("HTTP API & WS Server listening on " + cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Err("Server failed", err)
			stop()
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down...")

	registry.Shutdown("The server is shutting down.")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Err("HTTP shutdown", err)
	}
}
