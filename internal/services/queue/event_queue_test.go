package queue

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jwebster45206/nusantara/pkg/actor"
	"github.com/jwebster45206/nusantara/pkg/queue"
	"github.com/jwebster45206/nusantara/pkg/script"
)

func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	redisURL := "redis://" + mr.Addr()

	client, err := NewClient(redisURL, logger)
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create queue client: %v", err)
	}

	return client, mr
}

func chatEvent(player, message string) *queue.Event {
	ev := queue.NewTriggerEvent(script.TriggerChat, player)
	ev.Message = message
	return ev
}

func TestEventQueue_EnqueueAndDequeue(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	q := NewEventQueue(client, "")
	ctx := context.Background()

	messages := []string{"halo", "apa kabar", "sampai jumpa"}
	for _, m := range messages {
		if err := q.Enqueue(ctx, chatEvent("budi", m)); err != nil {
			t.Fatalf("Failed to enqueue event: %v", err)
		}
	}

	depth, err := q.Depth(ctx)
	if err != nil {
		t.Fatalf("Failed to get depth: %v", err)
	}
	if depth != len(messages) {
		t.Errorf("Expected depth %d, got %d", len(messages), depth)
	}

	for _, want := range messages {
		ev, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Failed to dequeue: %v", err)
		}
		if ev == nil || ev.Message != want {
			t.Fatalf("Expected message %q, got %+v", want, ev)
		}
		if ev.Trigger != script.TriggerChat || ev.PlayerID != "budi" {
			t.Errorf("Unexpected event fields: %+v", ev)
		}
	}

	ev, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue on empty queue failed: %v", err)
	}
	if ev != nil {
		t.Errorf("Expected nil from empty queue, got %+v", ev)
	}
}

func TestEventQueue_RejectsInvalid(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	q := NewEventQueue(client, "test:events")
	bad := queue.NewTriggerEvent(script.TriggerBlockBreak, "budi") // no block

	if err := q.Enqueue(context.Background(), bad); err == nil {
		t.Error("Expected invalid event to be rejected")
	}
	if depth, _ := q.Depth(context.Background()); depth != 0 {
		t.Errorf("Expected empty queue, got depth %d", depth)
	}
}

func TestEventQueue_FillsDefaults(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	q := NewEventQueue(client, "test:events")
	ev := &queue.Event{
		Type:    queue.EventTypeTrigger,
		Trigger: script.TriggerJoin,
		Player:  &actor.PlayerSpec{ID: "ani", Name: "Ani"},
	}
	if err := q.Enqueue(context.Background(), ev); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}
	if ev.EventID == "" || ev.EnqueuedAt.IsZero() {
		t.Errorf("Expected id and timestamp to be filled, got %+v", ev)
	}

	if !mr.Exists("test:events") {
		t.Error("Expected events under the configured key")
	}

	got, err := q.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("Failed to dequeue: %v", err)
	}
	if got.Player == nil || got.Player.Name != "Ani" {
		t.Errorf("Expected player spec to survive the queue, got %+v", got.Player)
	}
}

func TestEventQueue_BlockingDequeue(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	q := NewEventQueue(client, "")
	ctx := context.Background()

	if err := q.Enqueue(ctx, queue.NewCommandEvent("halo", "budi", []string{"Ani"})); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}

	ev, err := q.BlockingDequeue(ctx, time.Second)
	if err != nil {
		t.Fatalf("BlockingDequeue failed: %v", err)
	}
	if ev == nil || ev.Command != "halo" || len(ev.Args) != 1 {
		t.Fatalf("Unexpected event: %+v", ev)
	}
}

func TestEventQueue_PeekAndClear(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	q := NewEventQueue(client, "")
	ctx := context.Background()
	for _, m := range []string{"a", "b", "c"} {
		if err := q.Enqueue(ctx, chatEvent("budi", m)); err != nil {
			t.Fatalf("Failed to enqueue: %v", err)
		}
	}
	// garbage in the list is skipped by Peek
	mr.RPush(DefaultKey, "not json")

	events, err := q.Peek(ctx, 2)
	if err != nil {
		t.Fatalf("Peek failed: %v", err)
	}
	if len(events) != 2 || events[0].Message != "a" {
		t.Errorf("Unexpected peek result: %+v", events)
	}

	all, err := q.Peek(ctx, 0)
	if err != nil {
		t.Fatalf("Peek failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 readable events, got %d", len(all))
	}

	if err := q.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if depth, _ := q.Depth(ctx); depth != 0 {
		t.Errorf("Expected empty queue after clear, got %d", depth)
	}
}

func TestNewClient_BadURL(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	if _, err := NewClient("://bad", logger); err == nil {
		t.Error("Expected error for bad URL")
	}
}
