package sim

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jwebster45206/nusantara/pkg/actor"
	"github.com/jwebster45206/nusantara/pkg/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPlayer(t *testing.T, id, name string) *actor.Player {
	t.Helper()
	p, err := actor.NewPlayerFromSpec(&actor.PlayerSpec{ID: id, Name: name})
	require.NoError(t, err)
	return p
}

type recordingPublisher struct {
	mu    sync.Mutex
	kinds []string
	err   error
}

func (r *recordingPublisher) PublishEffect(ctx context.Context, fx Effect) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, fx.Kind)
	return r.err
}

func TestWorld_PlayerLookup(t *testing.T) {
	w := NewWorld(testLogger())
	w.AddPlayer(newPlayer(t, "u-1", "Budi"))

	tests := []struct {
		key  string
		want bool
	}{
		{"u-1", true},
		{"Budi", true},
		{"budi", true},
		{"BUDI", true},
		{"Ani", false},
	}
	for _, tt := range tests {
		_, ok := w.Player(tt.key)
		if ok != tt.want {
			t.Errorf("Player(%q) found = %v, want %v", tt.key, ok, tt.want)
		}
	}

	// replacing a player drops its old name
	w.AddPlayer(newPlayer(t, "u-1", "Budiman"))
	if _, ok := w.Player("budi"); ok {
		t.Error("old name still resolves after replace")
	}
}

func TestWorld_Effects(t *testing.T) {
	w := NewWorld(testLogger())
	p := newPlayer(t, "budi", "Budi")
	w.AddPlayer(p)
	ctx := context.Background()

	_, err := p.TakeDamage(15)
	require.NoError(t, err)

	require.NoError(t, w.SendMessage(ctx, p, "halo"))
	require.NoError(t, w.Broadcast(ctx, "semua"))
	require.NoError(t, w.Heal(ctx, p))
	require.NoError(t, w.Feed(ctx, p))
	require.NoError(t, w.GiveItem(ctx, p, "DIAMOND", 3))
	require.NoError(t, w.Teleport(ctx, p, "", 10, 64, -5))
	require.NoError(t, w.PlaySound(ctx, p, "ENTITY_PLAYER_LEVELUP"))
	require.NoError(t, w.GiveEffect(ctx, p, "SPEED", 2, 30))
	require.NoError(t, w.Kick(ctx, p, "bye"))

	assert.Equal(t, 20.0, p.Health())
	assert.Equal(t, actor.MaxFood, p.Food())
	assert.Equal(t, 3, p.ItemCount("DIAMOND"))
	assert.Equal(t, actor.Position{World: "world", X: 10, Y: 64, Z: -5}, p.Position())
	eff, ok := p.Effect("SPEED")
	require.True(t, ok)
	assert.Equal(t, actor.ActiveEffect{Level: 2, Seconds: 30}, eff)
	assert.False(t, p.Online())

	var kinds []string
	for _, fx := range w.History() {
		kinds = append(kinds, fx.Kind)
	}
	assert.Equal(t, []string{
		"send_message", "broadcast", "heal", "feed", "give_item",
		"teleport", "play_sound", "give_effect", "kick",
	}, kinds)
	assert.Equal(t, []string{"halo"}, w.Inbox("budi"))
	assert.Equal(t, []string{"semua"}, w.Broadcasts())
}

func TestWorld_EffectErrors(t *testing.T) {
	w := NewWorld(testLogger())
	ctx := context.Background()
	stranger := newPlayer(t, "x", "Stranger")

	assert.ErrorIs(t, w.SendMessage(ctx, stranger, "hi"), ErrUnknownPlayer)
	assert.ErrorIs(t, w.Heal(ctx, nil), engine.ErrNoEntity)

	w.AddPlayer(stranger)
	assert.Error(t, w.GiveItem(ctx, stranger, "STONE", 0))
}

func TestWorld_HistoryLimit(t *testing.T) {
	w := NewWorld(testLogger())
	w.SetHistoryLimit(3)
	for _, text := range []string{"1", "2", "3", "4", "5"} {
		require.NoError(t, w.Broadcast(context.Background(), text))
	}
	assert.Equal(t, []string{"3", "4", "5"}, w.Broadcasts())

	w.SetHistoryLimit(2)
	assert.Equal(t, []string{"4", "5"}, w.Broadcasts())
}

func TestWorld_Subscribe(t *testing.T) {
	w := NewWorld(testLogger())
	ch, cancel := w.Subscribe(1)

	require.NoError(t, w.Broadcast(context.Background(), "pertama"))
	// buffer is full, so this one is dropped for the subscriber
	require.NoError(t, w.Broadcast(context.Background(), "kedua"))

	fx := <-ch
	assert.Equal(t, "pertama", fx.Text)

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)

	// history still has both
	assert.Len(t, w.History(), 2)
}

func TestWorld_Publisher(t *testing.T) {
	w := NewWorld(testLogger())
	pub := &recordingPublisher{err: errors.New("offline")}
	w.SetPublisher(pub)

	require.NoError(t, w.Broadcast(context.Background(), "x"))
	assert.Equal(t, []string{"broadcast"}, pub.kinds)
}

func TestWorld_RegisterCommand(t *testing.T) {
	w := NewWorld(testLogger())
	var got []string
	invoke := func(ctx context.Context, inv engine.Invoker, args []string) error {
		got = append([]string{inv.Name()}, args...)
		return nil
	}

	assert.Error(t, w.RegisterCommand(" ", "", "", invoke))
	assert.Error(t, w.RegisterCommand("x", "", "", nil))
	require.NoError(t, w.RegisterCommand("/Sapa", "", "", invoke))

	require.NoError(t, w.RunCommand(context.Background(), NewConsoleInvoker(w), "/sapa a b"))
	assert.Equal(t, []string{ConsoleName, "a", "b"}, got)

	assert.Error(t, w.RunCommand(context.Background(), NewConsoleInvoker(w), "   "))
	assert.ErrorIs(t, w.RunCommand(context.Background(), NewConsoleInvoker(w), "/lain"), ErrUnknownCommand)
}

func TestInvokers(t *testing.T) {
	w := NewWorld(testLogger())
	p := newPlayer(t, "ani", "Ani")
	p.Grant("a.b")
	w.AddPlayer(p)
	ctx := context.Background()

	pi := NewPlayerInvoker(w, p)
	assert.Equal(t, "Ani", pi.Name())
	assert.True(t, pi.HasPermission("a.b"))
	assert.False(t, pi.HasPermission("c"))
	assert.NotNil(t, pi.Entity())
	require.NoError(t, pi.Reply(ctx, "balas"))
	assert.Equal(t, []string{"balas"}, w.Inbox("ani"))

	ci := NewConsoleInvoker(w)
	assert.True(t, ci.HasPermission("anything"))
	assert.Nil(t, ci.Entity())
	require.NoError(t, ci.Reply(ctx, "ok"))
	last := w.History()[len(w.History())-1]
	assert.Equal(t, EffectConsole, last.Kind)
	assert.Equal(t, "ok", last.Text)
}
