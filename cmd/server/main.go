package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/docslice/internal/api"
	"github.com/dgallion1/docslice/internal/config"
	"github.com/dgallion1/docslice/internal/pipeline"
	"github.com/dgallion1/docslice/internal/search"
	"github.com/dgallion1/docslice/internal/semantic"
	"github.com/dgallion1/docslice/internal/store"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(cfg.DBPath, log)
	if err != nil {
		log.Error("failed to open store", "db_path", cfg.DBPath, "error", err)
		os.Exit(1)
	}

	engine := search.NewEngine(st, semantic.NewCosineProvider(st))

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, st, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(st, engine, orch, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		st.Close()
	}()

	log.Info("starting docslice", "port", cfg.Port, "db_path", cfg.DBPath)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
