package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketmania/internal/api"
	"marketmania/internal/arena"
	"marketmania/internal/auth"
	"marketmania/internal/broadcast"
	"marketmania/internal/config"
	"marketmania/internal/db"
	"marketmania/internal/market"
	"marketmania/internal/rooms"
	"marketmania/internal/score"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	verifier := auth.NewHTTPVerifier(cfg.IdentityURL, cfg.IdentityAnonKey)
	roomSvc := rooms.NewService(pool, logger)
	scores := score.NewReconciler(score.NewPostgresStore(pool), logger)
	hub := broadcast.NewHub(logger)
	engine := market.NewEngine(market.DefaultLibrary())
	registry := arena.NewRegistry(engine, hub, logger)

	// When a game plays out, lock in whatever finals are on record; late
	// submissions rerank on arrival.
	registry.OnFinish = func(roomID string) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := scores.RecomputeFinalRanks(ctx, roomID); err != nil {
			logger.Error("final rank recompute failed", "room_id", roomID, "err", err)
		}
	}

	server := api.New(cfg, logger, verifier, roomSvc, registry, scores, hub)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("marketmania api listening", "addr", cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}
