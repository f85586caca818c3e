package events

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jwebster45206/nusantara/internal/sim"
	"github.com/jwebster45206/nusantara/pkg/actor"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*Broadcaster, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewBroadcaster(rdb, "", logger), mr
}

func receive(t *testing.T, ch <-chan sim.Effect) sim.Effect {
	t.Helper()
	select {
	case fx, ok := <-ch:
		require.True(t, ok, "channel closed")
		return fx
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for effect")
	}
	return sim.Effect{}
}

func TestBroadcaster_PublishAndSubscribe(t *testing.T) {
	b, _ := setupTestRedis(t)
	assert.Equal(t, DefaultChannel, b.Channel())

	ch, cancel := b.Subscribe(4)
	defer cancel()

	require.NoError(t, b.PublishEffect(context.Background(), sim.BroadcastEffect("halo semua")))

	fx := receive(t, ch)
	assert.Equal(t, "broadcast", fx.Kind)
	assert.Equal(t, "halo semua", fx.Text)
}

func TestBroadcaster_CancelClosesChannel(t *testing.T) {
	b, _ := setupTestRedis(t)
	ch, cancel := b.Subscribe(1)
	cancel()
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestBroadcaster_WorldPublisher(t *testing.T) {
	b, _ := setupTestRedis(t)
	ch, cancel := b.Subscribe(4)
	defer cancel()

	w := sim.NewWorld(nil)
	w.SetPublisher(b)
	p, err := actor.NewPlayerFromSpec(&actor.PlayerSpec{ID: "budi", Name: "Budi"})
	require.NoError(t, err)
	w.AddPlayer(p)

	require.NoError(t, w.SendMessage(context.Background(), p, "hai"))

	fx := receive(t, ch)
	assert.Equal(t, "send_message", fx.Kind)
	assert.Equal(t, "budi", fx.PlayerID)
	assert.Equal(t, "hai", fx.Text)
}

func TestRemoteEffects(t *testing.T) {
	b, _ := setupTestRedis(t)
	ch, cancel := b.Subscribe(16)
	defer cancel()

	p, err := actor.NewPlayerFromSpec(&actor.PlayerSpec{ID: "ani", Name: "Ani"})
	require.NoError(t, err)
	_, err = p.TakeDamage(5)
	require.NoError(t, err)

	r := NewRemoteEffects(b)
	ctx := context.Background()
	require.NoError(t, r.SendMessage(ctx, p, "x"))
	require.NoError(t, r.Broadcast(ctx, "y"))
	require.NoError(t, r.Heal(ctx, p))
	require.NoError(t, r.Feed(ctx, p))
	require.NoError(t, r.GiveItem(ctx, p, "BREAD", 2))
	require.NoError(t, r.Kick(ctx, p, "afk"))
	require.NoError(t, r.Teleport(ctx, p, "", 1, 2, 3))
	require.NoError(t, r.PlaySound(ctx, p, "BELL"))
	require.NoError(t, r.GiveEffect(ctx, p, "SPEED", 1, 10))

	var kinds []string
	var teleport sim.Effect
	for range 9 {
		fx := receive(t, ch)
		kinds = append(kinds, fx.Kind)
		if fx.Kind == "teleport" {
			teleport = fx
		}
	}
	assert.Equal(t, []string{
		"send_message", "broadcast", "heal", "feed", "give_item",
		"kick", "teleport", "play_sound", "give_effect",
	}, kinds)
	require.NotNil(t, teleport.Position)
	assert.Equal(t, actor.Position{World: "world", X: 1, Y: 2, Z: 3}, *teleport.Position)

	// nothing is applied locally
	assert.Equal(t, 15.0, p.Health())
	assert.Equal(t, 0, p.ItemCount("BREAD"))
}
