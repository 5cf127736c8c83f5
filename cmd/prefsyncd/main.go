package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/AmaPlayer/prefsync"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	var sink io.Writer = os.Stdout
	if cfg.LogFile != "" {
		sink = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
		}
	}
	logger := slog.New(slog.NewJSONHandler(sink, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	remote, err := prefsync.NewDynamoStore(context.Background(), prefsync.DynamoConfig{
		Region:    cfg.AWSRegion,
		Endpoint:  cfg.DynamoEndpoint,
		TableName: cfg.DynamoTableName,
	})
	if err != nil {
		logger.Error("failed to create DynamoDB store", "error", err)
		os.Exit(1)
	}

	local, err := prefsync.OpenLocalStore(cfg.LocalDBPath, logger)
	if err != nil {
		logger.Error("failed to open local store", "error", err)
		os.Exit(1)
	}

	probe := prefsync.NewProbeSource(cfg.ProbeURL, cfg.ProbeInterval)
	defer probe.Close()

	monitor := prefsync.NewConnectivityMonitor(probe, logger)
	defer monitor.Close()

	manager := prefsync.NewRemoteSyncManager(remote, monitor, logger, prefsync.Options{
		DebounceInterval: cfg.SyncDebounce,
	})

	coordinator := prefsync.NewPreferenceCoordinator(local, manager, logger)

	handler := NewPreferencesHandler(coordinator, manager, monitor.IsOnline, logger)
	router := NewRouter(handler, cfg, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", "port", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("shutting down", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	// Drop unflushed pending syncs so no network calls happen after the
	// server is gone, then release the local store.
	if err := coordinator.Close(); err != nil {
		logger.Error("coordinator close error", "error", err)
	}

	logger.Info("server stopped")
}
