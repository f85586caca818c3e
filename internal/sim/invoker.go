package sim

import (
	"context"

	"github.com/jwebster45206/nusantara/pkg/actor"
	"github.com/jwebster45206/nusantara/pkg/engine"
)

// ConsoleName is the invoker name of commands run from the console
const ConsoleName = "CONSOLE"

// PlayerInvoker runs commands as a player. Replies go to the player.
type PlayerInvoker struct {
	world  *World
	player *actor.Player
}

var _ engine.Invoker = (*PlayerInvoker)(nil)

func NewPlayerInvoker(w *World, p *actor.Player) *PlayerInvoker {
	return &PlayerInvoker{world: w, player: p}
}

func (i *PlayerInvoker) Name() string { return i.player.Name() }

func (i *PlayerInvoker) HasPermission(node string) bool { return i.player.HasPermission(node) }

func (i *PlayerInvoker) Reply(ctx context.Context, text string) error {
	return i.world.SendMessage(ctx, i.player, text)
}

func (i *PlayerInvoker) Entity() engine.Entity { return i.player }

// ConsoleInvoker runs commands with every permission and no entity
type ConsoleInvoker struct {
	world *World
}

var _ engine.Invoker = (*ConsoleInvoker)(nil)

func NewConsoleInvoker(w *World) *ConsoleInvoker {
	return &ConsoleInvoker{world: w}
}

func (c *ConsoleInvoker) Name() string { return ConsoleName }

func (c *ConsoleInvoker) HasPermission(string) bool { return true }

func (c *ConsoleInvoker) Reply(ctx context.Context, text string) error {
	fx := NewEffect(EffectConsole, nil)
	fx.Text = text
	c.world.Record(ctx, fx)
	return nil
}

func (c *ConsoleInvoker) Entity() engine.Entity { return nil }
