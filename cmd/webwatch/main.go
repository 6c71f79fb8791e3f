package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"webwatch/internal/database"
	"webwatch/internal/email"
	"webwatch/internal/logging"
	"webwatch/internal/probe"
	"webwatch/internal/server"
)

func main() {
	logger := logging.Setup(os.Getenv("WEBWATCH_LOG_LEVEL"))

	port := os.Getenv("WEBWATCH_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("WEBWATCH_DB_PATH")
	if dbPath == "" {
		dbPath = "webwatch.db"
	}

	jwtSecret := os.Getenv("WEBWATCH_JWT_SECRET")
	if jwtSecret == "" {
		slog.Error("WEBWATCH_JWT_SECRET is required")
		os.Exit(1)
	}

	db, err := database.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	postmarkToken := os.Getenv("WEBWATCH_POSTMARK_TOKEN")
	fromEmail := os.Getenv("WEBWATCH_FROM_EMAIL")
	emailClient := email.NewClient(postmarkToken, fromEmail)

	cfg := server.Config{
		JWTSecret: []byte(jwtSecret),
		Probe:     probe.Config{},
	}

	srv := server.New(db, emailClient, cfg, logger)

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	srv.SweepScheduler().Start(bgCtx)
	srv.MonitorScheduler().Start(bgCtx)

	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			case <-bgCtx.Done():
				return
			}
		}
	}()

	go func() {
		slog.Info("webwatch starting", "addr", ":"+port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	srv.MonitorScheduler().Stop()
	srv.SweepScheduler().Stop()
	bgCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
