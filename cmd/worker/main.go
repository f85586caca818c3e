package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/nusantara/internal/app"
	"github.com/jwebster45206/nusantara/internal/config"
	"github.com/jwebster45206/nusantara/internal/logger"
	"github.com/jwebster45206/nusantara/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	if cfg.Local {
		log.Error("The worker needs Redis; unset LOCAL")
		os.Exit(1)
	}

	log.Info("Starting NusantaraScript Worker",
		"environment", cfg.Environment,
		"redis_url", cfg.RedisURL,
		"queue", cfg.EventQueue,
		"effects_mode", cfg.EffectsMode)

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

	w := worker.New(rt.Queue, rt.Loop, rt.Server, rt.Redis.GetRedisClient(), log, cfg.WorkerID)

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.Start(); err != nil {
			log.Error("Worker error", "error", err)
		}
	}()

	log.Info("Worker started, waiting for events...", "worker_id", w.ID())

	<-quit
	log.Info("Worker shutdown signal received")

	w.Stop()
	select {
	case <-done:
	case <-time.After(workerDrain):
		log.Warn("Worker did not stop in time")
	}

	loopCancel()
	<-rt.Loop.Done()

	processed, failed := w.Stats()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	rt.Close(shutdownCtx)

	log.Info("Worker exited", "processed", processed, "failed", failed)
}

const workerDrain = 10 * time.Second
