// Command server runs the flag-guessing realtime backend: the WebSocket
// session router, the per-room game engine, and the supporting HTTP
// surface, all wired together here.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flagsgame.dev/internal/api"
	"flagsgame.dev/internal/broadcast"
	"flagsgame.dev/internal/cleanup"
	"flagsgame.dev/internal/clock"
	"flagsgame.dev/internal/conn"
	"flagsgame.dev/internal/config"
	"flagsgame.dev/internal/countries"
	"flagsgame.dev/internal/game"
	"flagsgame.dev/internal/ratelimit"
	"flagsgame.dev/internal/rooms"
	"flagsgame.dev/internal/router"
	"flagsgame.dev/internal/users"
)

func main() {
	cfg := config.Load()

	userStore := users.New()
	roomStore := rooms.NewStore()
	registry := conn.NewRegistry()
	limiter := ratelimit.New()
	b := broadcast.New(roomStore, userStore, registry)
	timers := clock.NewRegistry(nil)
	engine := game.New(countries.NewProvider(), timers, b)

	rt := router.New(roomStore, userStore, registry, b, engine, limiter, cfg.JWTSecret)

	heartbeat := conn.NewMonitor(registry, func(c *conn.Connection) {
		slog.Warn("dropping unresponsive connection", "connId", c.ID, "userId", c.UserID)
		registry.Remove(c.ID)
		c.Close(1001, "heartbeat timeout")
	})

	sweeper := cleanup.New(userStore, roomStore, b, engine, cfg.CleanupInterval, cfg.UserInactiveAfter, cfg.RoomTTLWarnAt)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go heartbeat.Run(ctx)
	go sweeper.Run(ctx)

	httpSrv := &api.Server{
		Router:      rt,
		Rooms:       roomStore,
		Users:       userStore,
		Conns:       registry,
		AdminAPIKey: cfg.AdminAPIKey,
		StartedAt:   time.Now(),
	}

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: httpSrv.Mux(),
	}

	go func() {
		slog.Info("starting server", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server stopped unexpectedly", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}
