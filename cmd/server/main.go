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

	"github.com/mama165/sdk-go/logs"

	"github.com/manpreetbhatti/coderoom/backend/internal/api"
	"github.com/manpreetbhatti/coderoom/backend/internal/call"
	"github.com/manpreetbhatti/coderoom/backend/internal/config"
	"github.com/manpreetbhatti/coderoom/backend/internal/db"
	"github.com/manpreetbhatti/coderoom/backend/internal/history"
	"github.com/manpreetbhatti/coderoom/backend/internal/ratelimit"
	"github.com/manpreetbhatti/coderoom/backend/internal/retention"
	"github.com/manpreetbhatti/coderoom/backend/internal/room"
	"github.com/manpreetbhatti/coderoom/backend/internal/ws"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const shutdownTimeout = 10 * time.Second

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// 1. Configuration & Logger
	cfg, err := config.Load()
	if err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	logger := logs.GetLoggerFromString(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Session history
	database, err := db.New(cfg.DBPath, logger)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	recorder := history.New(database, cfg.HistoryQueueSize, logger)
	recorder.Start()
	defer recorder.Stop()

	pruner := retention.New(database, retention.Config{
		Interval: cfg.HistorySweepInterval,
		MaxAge:   cfg.HistoryRetention,
	}, logger)
	pruner.Start()
	defer pruner.Stop()

	// 3. Relay & rooms
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := ws.NewHub(logger)
	go hub.Run(hubCtx)

	rooms := room.NewRegistry(hub, logger,
		room.WithGracePeriod(cfg.DisconnectGrace),
		room.WithEndDelay(cfg.EndRoomDelay),
		room.WithRecorder(recorder),
	)

	limiters := ratelimit.NewClientLimiters(cfg.MessagesPerSecond, cfg.MessageBurst)
	defer limiters.Stop()

	// 4. HTTP surface
	srv := ws.NewServer(hub, rooms, limiters, cfg.FrontendURL, logger)
	calls := call.NewIssuer(cfg.StreamAPIKey, cfg.StreamAPISecret, cfg.CallTokenTTL)
	if !calls.Configured() {
		logger.Warn("Call tokens disabled, STREAM_API_KEY or STREAM_API_SECRET is missing")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", srv.ServeWs)
	api.New(rooms, hub, database, calls, logger).Register(mux)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           corsMiddleware(cfg.FrontendURL, mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("CodeRoom server starting", "address", server.Addr, "database", cfg.DBPath)
		logger.Debug("Endpoints",
			"ws", "/ws",
			"health", "GET /health",
			"stats", "GET /api/stats",
			"rooms", "GET /api/rooms, GET /api/rooms/{id}",
			"history", "GET /api/history, GET /api/history/{id}",
			"call", "GET /api/call/token/{participantId}",
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 5. Wait for Stop or Error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 6. Graceful shutdown: stop accepting, close sockets, then flush history.
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	stopHub()
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

func corsMiddleware(allowedOrigin string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := allowedOrigin
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
