package sim

import (
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/nusantara/pkg/actor"
	"github.com/jwebster45206/nusantara/pkg/engine"
	"github.com/jwebster45206/nusantara/pkg/script"
)

// Effect kinds that do not come from a script action
const (
	EffectChat    = "chat"
	EffectConsole = "console"
	EffectDeath   = "death"
)

// Effect is one observable outcome in the world: a message shown, an item
// given, a player moved. Kind is a script action name such as
// "send_message" or one of the Effect* constants.
type Effect struct {
	ID       string          `json:"id"`
	Kind     string          `json:"kind"`
	PlayerID string          `json:"player_id,omitempty"`
	Player   string          `json:"player,omitempty"`
	Text     string          `json:"text,omitempty"`
	Material string          `json:"material,omitempty"`
	Amount   int             `json:"amount,omitempty"`
	Level    int             `json:"level,omitempty"`
	Seconds  int             `json:"seconds,omitempty"`
	Position *actor.Position `json:"position,omitempty"`
	At       time.Time       `json:"at"`
}

// NewEffect creates an effect of kind aimed at e, which may be nil
func NewEffect(kind string, e engine.Entity) Effect {
	fx := Effect{
		ID:   uuid.New().String(),
		Kind: kind,
		At:   time.Now().UTC(),
	}
	if e != nil {
		fx.PlayerID = e.ID()
		fx.Player = e.Name()
	}
	return fx
}

// ActionEffect creates an effect named after a script action
func ActionEffect(kind script.ActionKind, e engine.Entity) Effect {
	return NewEffect(kind.String(), e)
}

// MessageEffect is the effect of a send_message action
func MessageEffect(to engine.Entity, text string) Effect {
	fx := ActionEffect(script.ActionSendMessage, to)
	fx.Text = text
	return fx
}

// BroadcastEffect is the effect of a broadcast action
func BroadcastEffect(text string) Effect {
	fx := ActionEffect(script.ActionBroadcast, nil)
	fx.Text = text
	return fx
}

func ItemEffect(e engine.Entity, material string, amount int) Effect {
	fx := ActionEffect(script.ActionGiveItem, e)
	fx.Material = material
	fx.Amount = amount
	return fx
}

func KickEffect(e engine.Entity, reason string) Effect {
	fx := ActionEffect(script.ActionKick, e)
	fx.Text = reason
	return fx
}

func TeleportEffect(e engine.Entity, pos actor.Position) Effect {
	fx := ActionEffect(script.ActionTeleport, e)
	fx.Position = &pos
	return fx
}

func SoundEffect(e engine.Entity, sound string) Effect {
	fx := ActionEffect(script.ActionPlaySound, e)
	fx.Text = sound
	return fx
}

func PotionEffect(e engine.Entity, effect string, level, seconds int) Effect {
	fx := ActionEffect(script.ActionGiveEffect, e)
	fx.Material = effect
	fx.Level = level
	fx.Seconds = seconds
	return fx
}
