package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/nusantara/internal/app"
	"github.com/jwebster45206/nusantara/internal/config"
	"github.com/jwebster45206/nusantara/internal/handlers"
	"github.com/jwebster45206/nusantara/internal/logger"
	"github.com/jwebster45206/nusantara/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting NusantaraScript API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"scripts_dir", cfg.ScriptsDir,
		"vars_backend", cfg.VarsBackend)

	startCtx, startCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer startCancel()

	rt, err := app.New(startCtx, cfg, log)
	if err != nil {
		log.Error("Failed to start runtime", "error", err)
		os.Exit(1)
	}

	loopCtx, loopCancel := context.WithCancel(context.Background())
	go func() {
		if err := rt.Run(loopCtx); err != nil {
			log.Error("Event loop failed", "error", err)
		}
	}()

	components := map[string]handlers.Pinger{"variables": rt.Variables}
	var source handlers.EffectSource = rt.World
	var enqueuer handlers.Enqueuer

	// With Redis the API feeds the queue and a worker in this process
	// drains it; effects are read back from the broadcaster.
	var w *worker.Worker
	if rt.Redis != nil {
		components["redis"] = handlers.PingFunc(func(ctx context.Context) error {
			return rt.Redis.GetRedisClient().Ping(ctx).Err()
		})
		source = rt.Broadcaster
		enqueuer = rt.Queue

		w = worker.New(rt.Queue, rt.Loop, rt.Server, rt.Redis.GetRedisClient(), log, cfg.WorkerID)
		go func() {
			if err := w.Start(); err != nil {
				log.Error("Worker error", "error", err)
			}
		}()
	}

	mux := http.NewServeMux()

	mux.Handle("/health", handlers.NewHealthHandler(components, log))

	scriptsHandler := handlers.NewScriptsHandler(rt.Engine, rt.Loop, log)
	mux.Handle("/v1/scripts", scriptsHandler)
	mux.Handle("/v1/scripts/", scriptsHandler)

	mux.Handle("/v1/info", handlers.NewInfoHandler(rt.Engine, rt.World, log))
	mux.Handle("/v1/commands", handlers.NewCommandsHandler(rt.World, log))
	mux.Handle("/v1/events", handlers.NewEventsHandler(enqueuer, rt.Loop, rt.Server, log))
	mux.Handle("/v1/effects/stream", handlers.NewStreamHandler(source, log))

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handlers.Logger(log, mux),
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: the effect stream holds its connection open
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	if w != nil {
		w.Stop()
	}
	loopCancel()
	<-rt.Loop.Done()

	rt.Close(shutdownCtx)
	log.Info("Server exited")
}
