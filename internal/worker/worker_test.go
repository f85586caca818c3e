package worker

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jwebster45206/nusantara/internal/services/queue"
	"github.com/jwebster45206/nusantara/internal/sim"
	"github.com/jwebster45206/nusantara/pkg/actor"
	"github.com/jwebster45206/nusantara/pkg/engine"
	"github.com/jwebster45206/nusantara/pkg/parser"
	queuePkg "github.com/jwebster45206/nusantara/pkg/queue"
	"github.com/jwebster45206/nusantara/pkg/script"
	"github.com/redis/go-redis/v9"
)

const greeter = `
saat pemain masuk:
    kirim "Halo %player%!" ke pemain
saat pemain chat:
    tambah 1 ke variabel {pesan.%player%}
`

type fixture struct {
	mr     *miniredis.Miniredis
	rdb    *redis.Client
	queue  *queue.EventQueue
	loop   *sim.Loop
	server *sim.Server
	log    *slog.Logger
}

func setup(t *testing.T) *fixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	world := sim.NewWorld(log)
	eng := engine.New(engine.Config{Effects: world, Registrar: world, Logger: log})
	if _, _, err := eng.Load("greeter.ns", parser.SplitLines(greeter)); err != nil {
		t.Fatalf("Failed to load script: %v", err)
	}

	loop := sim.NewLoop(16, log)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = loop.Run(ctx) }()
	t.Cleanup(cancel)

	return &fixture{
		mr:     mr,
		rdb:    rdb,
		queue:  queue.NewEventQueue(queue.NewClientWithRedis(rdb, log), ""),
		loop:   loop,
		server: sim.NewServer(world, eng, log),
		log:    log,
	}
}

func (f *fixture) newWorker(id string) *Worker {
	w := New(f.queue, f.loop, f.server, f.rdb, f.log, id)
	w.timeout = time.Second
	return w
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func TestWorker_ProcessesEvents(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	join := queuePkg.NewTriggerEvent(script.TriggerJoin, "")
	join.Player = &actor.PlayerSpec{ID: "budi", Name: "Budi"}
	if err := f.queue.Enqueue(ctx, join); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}
	for range 2 {
		chat := queuePkg.NewTriggerEvent(script.TriggerChat, "budi")
		chat.Message = "halo"
		if err := f.queue.Enqueue(ctx, chat); err != nil {
			t.Fatalf("Failed to enqueue: %v", err)
		}
	}
	// an event for an unknown player fails without stopping the worker
	if err := f.queue.Enqueue(ctx, queuePkg.NewTriggerEvent(script.TriggerQuit, "ghost")); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}

	w := f.newWorker("")
	done := make(chan error, 1)
	go func() { done <- w.Start() }()

	waitFor(t, "all events", func() bool {
		processed, _ := w.Stats()
		return processed == 4
	})
	w.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Worker did not stop")
	}

	if inbox := f.server.World().Inbox("budi"); len(inbox) != 1 || inbox[0] != "Halo Budi!" {
		t.Errorf("Unexpected inbox: %v", inbox)
	}
	if v, _ := f.server.Engine().Store().Get("budi", "pesan"); v != "2.0" {
		t.Errorf("Expected 2.0 chat count, got %q", v)
	}
	if _, failed := w.Stats(); failed != 1 {
		t.Errorf("Expected 1 failed event, got %d", failed)
	}
	if f.mr.Exists(DefaultLeaseKey) {
		t.Error("Expected lease to be released on stop")
	}
}

func TestWorker_Lease(t *testing.T) {
	f := setup(t)

	first := f.newWorker("worker-a")
	second := f.newWorker("worker-b")

	held, err := first.holdLease()
	if err != nil || !held {
		t.Fatalf("First worker should take the lease: held=%v err=%v", held, err)
	}
	held, err = second.holdLease()
	if err != nil || held {
		t.Fatalf("Second worker must not take a held lease: held=%v err=%v", held, err)
	}
	// refreshing our own lease succeeds
	held, err = first.holdLease()
	if err != nil || !held {
		t.Fatalf("Owner should refresh its lease: held=%v err=%v", held, err)
	}

	// releasing someone else's lease is a no-op
	second.releaseLease()
	if got, _ := f.mr.Get(DefaultLeaseKey); got != "worker-a" {
		t.Errorf("Lease owner = %q, want worker-a", got)
	}

	first.releaseLease()
	held, err = second.holdLease()
	if err != nil || !held {
		t.Fatalf("Second worker should take a released lease: held=%v err=%v", held, err)
	}
}

func TestWorker_LeaseExpires(t *testing.T) {
	f := setup(t)
	first := f.newWorker("worker-a")
	second := f.newWorker("worker-b")

	if held, _ := first.holdLease(); !held {
		t.Fatal("First worker should take the lease")
	}
	f.mr.FastForward(leaseTTL + time.Second)

	if held, _ := second.holdLease(); !held {
		t.Error("Expected an expired lease to be taken over")
	}
}

func TestNew_GeneratesID(t *testing.T) {
	f := setup(t)
	w := New(f.queue, f.loop, f.server, f.rdb, f.log, "")
	if len(w.ID()) != len("worker-")+8 {
		t.Errorf("Unexpected worker id %q", w.ID())
	}
}
