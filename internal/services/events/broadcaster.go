package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jwebster45206/nusantara/internal/sim"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Pub/Sub channel carrying effects
const DefaultChannel = "nusantara:effects"

// Broadcaster publishes world effects to Redis Pub/Sub so other processes
// (the API's websocket stream, dashboards) can follow what scripts do
type Broadcaster struct {
	redisClient *redis.Client
	channel     string
	logger      *slog.Logger
}

var _ sim.EffectPublisher = (*Broadcaster)(nil)

// NewBroadcaster creates a new effect broadcaster
func NewBroadcaster(redisClient *redis.Client, channel string, logger *slog.Logger) *Broadcaster {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Broadcaster{
		redisClient: redisClient,
		channel:     channel,
		logger:      logger,
	}
}

func (b *Broadcaster) Channel() string {
	return b.channel
}

// PublishEffect publishes one effect as JSON
func (b *Broadcaster) PublishEffect(ctx context.Context, fx sim.Effect) error {
	data, err := json.Marshal(fx)
	if err != nil {
		b.logger.Error("Failed to marshal effect", "error", err, "kind", fx.Kind)
		return fmt.Errorf("failed to marshal effect: %w", err)
	}

	if err := b.redisClient.Publish(ctx, b.channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish effect", "error", err, "channel", b.channel)
		return fmt.Errorf("failed to publish effect: %w", err)
	}

	b.logger.Debug("Effect published",
		"channel", b.channel,
		"kind", fx.Kind,
		"player", fx.Player,
	)
	return nil
}

// Subscribe follows the effect channel. Messages that do not decode are
// skipped. cancel ends the subscription and closes the channel. If Redis
// refuses the subscription the returned channel is already closed.
func (b *Broadcaster) Subscribe(buffer int) (<-chan sim.Effect, func()) {
	if buffer < 1 {
		buffer = 64
	}
	ctx, stop := context.WithCancel(context.Background())
	pubsub := b.redisClient.Subscribe(ctx, b.channel)
	out := make(chan sim.Effect, buffer)

	// wait for the subscription so nothing published after return is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		b.logger.Error("Failed to subscribe to effects", "error", err, "channel", b.channel)
		stop()
		_ = pubsub.Close()
		close(out)
		return out, func() {}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(out)
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var fx sim.Effect
				if err := json.Unmarshal([]byte(msg.Payload), &fx); err != nil {
					b.logger.Warn("Skipping malformed effect", "error", err)
					continue
				}
				select {
				case out <- fx:
				default:
					b.logger.Warn("Effect subscriber is full, dropping effect", "kind", fx.Kind)
				}
			}
		}
	}()

	var once sync.Once
	return out, func() {
		once.Do(func() {
			stop()
			if err := pubsub.Close(); err != nil {
				b.logger.Debug("Error closing pubsub", "error", err)
			}
			wg.Wait()
		})
	}
}
