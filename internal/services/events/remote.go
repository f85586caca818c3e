package events

import (
	"context"

	"github.com/jwebster45206/nusantara/internal/sim"
	"github.com/jwebster45206/nusantara/pkg/actor"
	"github.com/jwebster45206/nusantara/pkg/engine"
	"github.com/jwebster45206/nusantara/pkg/script"
)

// RemoteEffects hands every script effect to a remote host through the
// Broadcaster instead of applying it locally
type RemoteEffects struct {
	b *Broadcaster
}

var _ engine.Effects = (*RemoteEffects)(nil)

func NewRemoteEffects(b *Broadcaster) *RemoteEffects {
	return &RemoteEffects{b: b}
}

func (r *RemoteEffects) SendMessage(ctx context.Context, to engine.Entity, text string) error {
	return r.b.PublishEffect(ctx, sim.MessageEffect(to, text))
}

func (r *RemoteEffects) Broadcast(ctx context.Context, text string) error {
	return r.b.PublishEffect(ctx, sim.BroadcastEffect(text))
}

func (r *RemoteEffects) Heal(ctx context.Context, e engine.Entity) error {
	return r.b.PublishEffect(ctx, sim.ActionEffect(script.ActionHeal, e))
}

func (r *RemoteEffects) Feed(ctx context.Context, e engine.Entity) error {
	return r.b.PublishEffect(ctx, sim.ActionEffect(script.ActionFeed, e))
}

func (r *RemoteEffects) GiveItem(ctx context.Context, e engine.Entity, material string, amount int) error {
	return r.b.PublishEffect(ctx, sim.ItemEffect(e, material, amount))
}

func (r *RemoteEffects) Kick(ctx context.Context, e engine.Entity, reason string) error {
	return r.b.PublishEffect(ctx, sim.KickEffect(e, reason))
}

func (r *RemoteEffects) Teleport(ctx context.Context, e engine.Entity, world string, x, y, z float64) error {
	if world == "" {
		world = e.World()
	}
	return r.b.PublishEffect(ctx, sim.TeleportEffect(e, actor.Position{World: world, X: x, Y: y, Z: z}))
}

func (r *RemoteEffects) PlaySound(ctx context.Context, e engine.Entity, sound string) error {
	return r.b.PublishEffect(ctx, sim.SoundEffect(e, sound))
}

func (r *RemoteEffects) GiveEffect(ctx context.Context, e engine.Entity, effect string, level, seconds int) error {
	return r.b.PublishEffect(ctx, sim.PotionEffect(e, effect, level, seconds))
}
