// Package app assembles a running NusantaraScript host from configuration:
// variable storage, the simulated world, the engine with its scripts, the
// event loop and, unless running locally, the Redis queue and effect
// broadcaster.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jwebster45206/nusantara/internal/config"
	"github.com/jwebster45206/nusantara/internal/services/events"
	"github.com/jwebster45206/nusantara/internal/services/queue"
	"github.com/jwebster45206/nusantara/internal/sim"
	"github.com/jwebster45206/nusantara/internal/storage"
	"github.com/jwebster45206/nusantara/internal/telemetry"
	"github.com/jwebster45206/nusantara/pkg/engine"
	"github.com/redis/go-redis/v9"
)

const loopBuffer = 256

type Runtime struct {
	Config    *config.Config
	Log       *slog.Logger
	Variables storage.VariableStore
	World     *sim.World
	Engine    *engine.Engine
	Loop      *sim.Loop
	Server    *sim.Server

	// nil when Config.Local is set
	Redis       *queue.Client
	Queue       *queue.EventQueue
	Broadcaster *events.Broadcaster

	shutdownTracing telemetry.Shutdown
}

// New builds a Runtime and loads its variables and scripts. The loop is
// not started; call Run.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Runtime, error) {
	rt := &Runtime{Config: cfg, Log: log}

	shutdown, err := telemetry.Setup(ctx, cfg.OTelEndpoint, cfg.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	rt.shutdownTracing = shutdown

	rt.Variables, err = storage.Open(ctx, storage.Options{
		Backend:    cfg.VarsBackend,
		File:       cfg.VarsFile,
		SQLitePath: cfg.VarsSQLitePath,
		RedisURL:   cfg.RedisURL,
		KeyPrefix:  cfg.VarsKeyPrefix,
	}, log)
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("failed to open variable store: %w", err)
	}

	rt.World = sim.NewWorld(log)
	var effects engine.Effects = rt.World

	if !cfg.Local {
		rt.Redis, err = queue.NewClient(cfg.RedisURL, log)
		if err != nil {
			rt.Close(ctx)
			return nil, err
		}
		rt.attachRedis(rt.Redis.GetRedisClient())
		if cfg.EffectsMode == config.EffectsRemote {
			effects = events.NewRemoteEffects(rt.Broadcaster)
		}
	}

	rt.Engine = engine.New(engine.Config{
		Effects:     effects,
		Persistence: rt.Variables,
		Registrar:   rt.World,
		ColorMarker: cfg.ColorMarker,
		Logger:      log,
	})
	rt.Engine.SetDebug(cfg.Debug)

	if err := rt.Engine.LoadVariables(ctx); err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("failed to load variables: %w", err)
	}

	scripts, err := storage.OpenScripts(cfg.ScriptsDir)
	if err != nil {
		rt.Close(ctx)
		return nil, err
	}
	n, err := rt.Engine.LoadFS(scripts)
	if err != nil {
		rt.Close(ctx)
		return nil, err
	}
	log.Info("Runtime ready",
		"world_id", rt.World.ID(),
		"scripts", n,
		"variables", rt.Engine.Store().Count(),
		"local", cfg.Local,
		"effects_mode", cfg.EffectsMode)

	rt.Loop = sim.NewLoop(loopBuffer, log)
	rt.Server = sim.NewServer(rt.World, rt.Engine, log)
	return rt, nil
}

func (rt *Runtime) attachRedis(rdb *redis.Client) {
	rt.Queue = queue.NewEventQueue(rt.Redis, rt.Config.EventQueue)
	rt.Broadcaster = events.NewBroadcaster(rdb, rt.Config.EffectsChannel, rt.Log)
	// world-only effects such as chat lines and deaths go out too
	rt.World.SetPublisher(rt.Broadcaster)
}

// Run drives the event loop until ctx ends
func (rt *Runtime) Run(ctx context.Context) error {
	err := rt.Loop.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Ping checks the variable store and, when present, Redis
func (rt *Runtime) Ping(ctx context.Context) error {
	if err := rt.Variables.Ping(ctx); err != nil {
		return fmt.Errorf("variables: %w", err)
	}
	if rt.Redis != nil {
		if err := rt.Redis.GetRedisClient().Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Close saves variables and releases every connection. It is safe on a
// partially built Runtime.
func (rt *Runtime) Close(ctx context.Context) {
	if rt.Engine != nil {
		if err := rt.Engine.Close(ctx); err != nil {
			rt.Log.Error("Failed to save variables", "error", err)
		}
	}
	if rt.Variables != nil {
		if err := rt.Variables.Close(); err != nil {
			rt.Log.Error("Error closing variable store", "error", err)
		}
	}
	if rt.Redis != nil {
		if err := rt.Redis.Close(); err != nil {
			rt.Log.Error("Error closing redis client", "error", err)
		}
	}
	if rt.shutdownTracing != nil {
		if err := rt.shutdownTracing(ctx); err != nil {
			rt.Log.Error("Error shutting down tracing", "error", err)
		}
	}
}
