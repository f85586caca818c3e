package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/nusantara/internal/services/queue"
	"github.com/jwebster45206/nusantara/internal/sim"
	queuePkg "github.com/jwebster45206/nusantara/pkg/queue"
	"github.com/redis/go-redis/v9"
)

const (
	workerTimeout = 5 * time.Second
	leaseTTL      = 30 * time.Second

	// DefaultLeaseKey guards the queue so only one worker feeds a world
	DefaultLeaseKey = "nusantara:worker-lease"
)

// releaseScript deletes the lease only if we still own it
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Worker moves events from the Redis queue onto the world's event loop.
// The world lives in this process, so a Redis lease makes sure only one
// worker consumes the queue at a time.
type Worker struct {
	id          string
	queue       *queue.EventQueue
	loop        *sim.Loop
	server      *sim.Server
	redisClient *redis.Client
	leaseKey    string
	timeout     time.Duration
	log         *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc

	processed atomic.Int64
	failed    atomic.Int64
}

// New creates a new worker instance
func New(q *queue.EventQueue, loop *sim.Loop, server *sim.Server, redisClient *redis.Client, log *slog.Logger, workerID string) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}

	return &Worker{
		id:          workerID,
		queue:       q,
		loop:        loop,
		server:      server,
		redisClient: redisClient,
		leaseKey:    DefaultLeaseKey,
		timeout:     workerTimeout,
		log:         log,
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (w *Worker) ID() string { return w.id }

// Stats returns how many events were handled and how many of those failed
func (w *Worker) Stats() (processed, failed int64) {
	return w.processed.Load(), w.failed.Load()
}

// Start processes events until Stop is called
func (w *Worker) Start() error {
	w.log.Info("Worker starting", "worker_id", w.id, "queue", w.queue.Key())
	defer w.releaseLease()

	for {
		select {
		case <-w.ctx.Done():
			w.log.Info("Worker shutting down", "worker_id", w.id)
			return nil
		default:
			if err := w.processNextEvent(); err != nil {
				w.log.Error("Error processing event", "error", err, "worker_id", w.id)
				// Continue processing even on error
				w.pause(time.Second)
			}
		}
	}
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.log.Info("Worker stop requested", "worker_id", w.id)
	w.cancel()
}

func (w *Worker) pause(d time.Duration) {
	select {
	case <-w.ctx.Done():
	case <-time.After(d):
	}
}

// processNextEvent pulls the next event from the queue and runs it on the loop
func (w *Worker) processNextEvent() error {
	held, err := w.holdLease()
	if err != nil {
		if w.ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to acquire lease: %w", err)
	}
	if !held {
		w.log.Debug("Another worker holds the lease, waiting", "worker_id", w.id)
		w.pause(w.timeout)
		return nil
	}

	ev, err := w.queue.BlockingDequeue(w.ctx, w.timeout)
	if err != nil {
		if w.ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to dequeue event: %w", err)
	}
	if ev == nil {
		// Timeout with an empty queue - this is normal
		return nil
	}

	w.handle(ev)
	return nil
}

func (w *Worker) handle(ev *queuePkg.Event) {
	start := time.Now()
	w.log.Info("Received event from queue",
		"worker_id", w.id,
		"event_id", ev.EventID,
		"type", ev.Type,
		"trigger", ev.Trigger,
		"queued_ms", start.Sub(ev.EnqueuedAt).Milliseconds(),
	)

	err := w.loop.Do(w.ctx, func(ctx context.Context) error {
		return w.server.Handle(ctx, ev)
	})
	w.processed.Add(1)
	if err != nil {
		if errors.Is(err, sim.ErrLoopStopped) || w.ctx.Err() != nil {
			w.log.Warn("Event dropped during shutdown", "event_id", ev.EventID)
			return
		}
		w.failed.Add(1)
		w.log.Error("Event failed",
			"worker_id", w.id,
			"event_id", ev.EventID,
			"error", err,
		)
		return
	}

	w.log.Info("Event processed",
		"worker_id", w.id,
		"event_id", ev.EventID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// holdLease takes or refreshes the queue lease.
// Returns true if this worker holds it.
func (w *Worker) holdLease() (bool, error) {
	ok, err := w.redisClient.SetNX(w.ctx, w.leaseKey, w.id, leaseTTL).Result()
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}

	owner, err := w.redisClient.Get(w.ctx, w.leaseKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if owner != w.id {
		return false, nil
	}
	if err := w.redisClient.Expire(w.ctx, w.leaseKey, leaseTTL).Err(); err != nil {
		return false, err
	}
	return true, nil
}

// releaseLease gives up the lease if we own it
func (w *Worker) releaseLease() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, w.redisClient, []string{w.leaseKey}, w.id).Err(); err != nil && !errors.Is(err, redis.Nil) {
		w.log.Error("Failed to release worker lease", "error", err, "worker_id", w.id)
	}
}
