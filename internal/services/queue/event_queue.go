package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/nusantara/pkg/queue"
	"github.com/redis/go-redis/v9"
)

// DefaultKey is the Redis list holding pending events
const DefaultKey = "nusantara:events"

// EventQueue is a FIFO of trigger and command events backed by a Redis list
type EventQueue struct {
	client *Client
	key    string
}

func NewEventQueue(client *Client, key string) *EventQueue {
	if key == "" {
		key = DefaultKey
	}
	return &EventQueue{
		client: client,
		key:    key,
	}
}

// Key returns the Redis list name
func (q *EventQueue) Key() string {
	return q.key
}

// Enqueue appends ev to the queue, filling in its id and timestamp if unset
func (q *EventQueue) Enqueue(ctx context.Context, ev *queue.Event) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("refusing to enqueue invalid event: %w", err)
	}
	if ev.EventID == "" {
		ev.EventID = uuid.New().String()
	}
	if ev.EnqueuedAt.IsZero() {
		ev.EnqueuedAt = time.Now()
	}

	data, err := ev.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}
	if err := q.client.rdb.RPush(ctx, q.key, data).Err(); err != nil {
		q.client.logger.Error("Failed to enqueue event", "error", err, "key", q.key, "event_id", ev.EventID)
		return fmt.Errorf("failed to enqueue event: %w", err)
	}

	q.client.logger.Debug("Enqueued event",
		"event_id", ev.EventID,
		"type", ev.Type,
		"trigger", ev.Trigger,
		"command", ev.Command)
	return nil
}

// Dequeue removes and returns the next event.
// Returns nil if the queue is empty.
func (q *EventQueue) Dequeue(ctx context.Context) (*queue.Event, error) {
	result, err := q.client.rdb.LPop(ctx, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue event: %w", err)
	}
	return parse(result)
}

// BlockingDequeue waits up to timeout for the next event. It returns nil
// when the timeout passes with nothing queued.
func (q *EventQueue) BlockingDequeue(ctx context.Context, timeout time.Duration) (*queue.Event, error) {
	result, err := q.client.rdb.BLPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue event: %w", err)
	}

	// BLPop returns [key, value]
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BLPop result: %v", result)
	}
	return parse(result[1])
}

// Peek returns up to limit pending events without removing them.
// limit <= 0 returns all of them.
func (q *EventQueue) Peek(ctx context.Context, limit int) ([]*queue.Event, error) {
	end := int64(limit - 1)
	if limit <= 0 {
		end = -1
	}
	raw, err := q.client.rdb.LRange(ctx, q.key, 0, end).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to peek events: %w", err)
	}

	events := make([]*queue.Event, 0, len(raw))
	for _, r := range raw {
		ev, err := parse(r)
		if err != nil {
			q.client.logger.Warn("Skipping unreadable queued event", "error", err)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// Depth returns the number of pending events
func (q *EventQueue) Depth(ctx context.Context) (int, error) {
	count, err := q.client.rdb.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue depth: %w", err)
	}
	return int(count), nil
}

// Clear drops every pending event
func (q *EventQueue) Clear(ctx context.Context) error {
	if err := q.client.rdb.Del(ctx, q.key).Err(); err != nil {
		return fmt.Errorf("failed to clear event queue: %w", err)
	}
	return nil
}

func parse(raw string) (*queue.Event, error) {
	ev, err := queue.FromJSON([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse event: %w", err)
	}
	return ev, nil
}
