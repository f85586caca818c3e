package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/jwebster45206/nusantara/pkg/actor"
	"github.com/jwebster45206/nusantara/pkg/engine"
	"github.com/jwebster45206/nusantara/pkg/queue"
	"github.com/jwebster45206/nusantara/pkg/script"
	"github.com/jwebster45206/nusantara/pkg/vars"
)

// Server turns host events into trigger dispatches against the World.
// Its methods must run on the Loop goroutine; use Submit or Do from
// anywhere else.
type Server struct {
	world  *World
	engine *engine.Engine
	log    *slog.Logger
}

func NewServer(world *World, eng *engine.Engine, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{world: world, engine: eng, log: log}
}

func (s *Server) World() *World { return s.world }

func (s *Server) Engine() *engine.Engine { return s.engine }

func (s *Server) lookup(idOrName string) (*actor.Player, error) {
	p, ok := s.world.Player(idOrName)
	if !ok {
		return nil, fmt.Errorf("%s: %w", idOrName, ErrUnknownPlayer)
	}
	return p, nil
}

// Join brings a player online, creating it from spec the first time
func (s *Server) Join(ctx context.Context, spec *actor.PlayerSpec) (*actor.Player, error) {
	p, ok := s.world.Player(spec.ID)
	if !ok {
		var err error
		p, err = actor.NewPlayerFromSpec(spec)
		if err != nil {
			return nil, fmt.Errorf("failed to create player: %w", err)
		}
		s.world.AddPlayer(p)
	}
	p.SetOnline(true)

	s.log.Info("Player joined", "player", p.Name(), "world_id", s.world.ID())
	s.engine.Dispatch(ctx, script.TriggerJoin, engine.NewContext(p))
	return p, nil
}

// Quit runs the quit handlers and takes the player offline
func (s *Server) Quit(ctx context.Context, id string) error {
	p, err := s.lookup(id)
	if err != nil {
		return err
	}
	s.engine.Dispatch(ctx, script.TriggerQuit, engine.NewContext(p))
	p.SetOnline(false)
	s.log.Info("Player quit", "player", p.Name())
	return nil
}

// Chat runs the chat handlers with {message} bound. The message is shown to
// everyone unless a handler cancelled it.
func (s *Server) Chat(ctx context.Context, id, message string) (bool, error) {
	p, err := s.lookup(id)
	if err != nil {
		return false, err
	}
	rc := engine.NewContext(p).Bind("message", message)
	s.engine.Dispatch(ctx, script.TriggerChat, rc)
	if rc.Cancelled() {
		return true, nil
	}

	fx := NewEffect(EffectChat, p)
	fx.Text = fmt.Sprintf("<%s> %s", p.Name(), message)
	s.world.Record(ctx, fx)
	return false, nil
}

// BreakBlock runs the block-break handlers. An uncancelled break drops the
// block into the player's inventory.
func (s *Server) BreakBlock(ctx context.Context, id string, block *actor.Block) (bool, error) {
	p, err := s.lookup(id)
	if err != nil {
		return false, err
	}
	rc := engine.NewContext(p).WithTarget(block)
	s.engine.Dispatch(ctx, script.TriggerBlockBreak, rc)
	if rc.Cancelled() {
		return true, nil
	}
	p.Give(block.Material(), 1)
	return false, nil
}

// Damage runs the damage handlers with {damage} and {cause} bound, then
// applies the damage unless cancelled. A fatal hit runs the death handlers.
func (s *Server) Damage(ctx context.Context, id string, amount float64, cause string) (bool, error) {
	p, err := s.lookup(id)
	if err != nil {
		return false, err
	}
	rc := engine.NewContext(p).
		Bind("damage", vars.FormatNumber(amount)).
		Bind("cause", cause)
	s.engine.Dispatch(ctx, script.TriggerActorDamage, rc)
	if rc.Cancelled() {
		return true, nil
	}

	hp, err := p.TakeDamage(int(math.Round(amount)))
	if err != nil {
		return false, err
	}
	if hp > 0 {
		return false, nil
	}
	return false, s.die(ctx, p, cause)
}

func (s *Server) die(ctx context.Context, p *actor.Player, cause string) error {
	message := fmt.Sprintf("%s mati", p.Name())
	if cause != "" {
		message = fmt.Sprintf("%s mati karena %s", p.Name(), cause)
	}
	rc := engine.NewContext(p).Bind("message", message)
	s.engine.Dispatch(ctx, script.TriggerDeath, rc)

	fx := NewEffect(EffectDeath, p)
	fx.Text = message
	s.world.Record(ctx, fx)
	return nil
}

// Respawn restores the player and runs the respawn handlers
func (s *Server) Respawn(ctx context.Context, id string) error {
	p, err := s.lookup(id)
	if err != nil {
		return err
	}
	if err := p.Heal(); err != nil {
		return err
	}
	p.Feed()
	s.engine.Dispatch(ctx, script.TriggerRespawn, engine.NewContext(p))
	return nil
}

// DamageCreature runs the object-damage handlers for a player hitting c
func (s *Server) DamageCreature(ctx context.Context, id string, c *actor.Creature, amount float64) (bool, error) {
	p, err := s.lookup(id)
	if err != nil {
		return false, err
	}
	rc := engine.NewContext(p).
		WithTarget(c).
		Bind("damage", vars.FormatNumber(amount))
	s.engine.Dispatch(ctx, script.TriggerObjectDamage, rc)
	if rc.Cancelled() {
		return true, nil
	}
	c.TakeDamage(int(math.Round(amount)))
	return false, nil
}

// Command runs /name as the player id, or as the console when id is empty
func (s *Server) Command(ctx context.Context, id, name string, args []string) error {
	var inv engine.Invoker = NewConsoleInvoker(s.world)
	if id != "" {
		p, err := s.lookup(id)
		if err != nil {
			return err
		}
		inv = NewPlayerInvoker(s.world, p)
	}
	return s.world.Invoke(ctx, inv, name, args)
}

// Handle applies one queued event
func (s *Server) Handle(ctx context.Context, ev *queue.Event) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("invalid event %s: %w", ev.EventID, err)
	}

	if ev.Type == queue.EventTypeCommand {
		return s.Command(ctx, ev.ActorID(), ev.Command, ev.Args)
	}

	id := ev.ActorID()
	var err error
	switch ev.Trigger {
	case script.TriggerJoin:
		spec := ev.Player
		if spec == nil {
			spec = &actor.PlayerSpec{ID: id}
		}
		_, err = s.Join(ctx, spec)
	case script.TriggerQuit:
		err = s.Quit(ctx, id)
	case script.TriggerChat:
		_, err = s.Chat(ctx, id, ev.Message)
	case script.TriggerBlockBreak:
		_, err = s.BreakBlock(ctx, id, ev.Block)
	case script.TriggerActorDamage:
		_, err = s.Damage(ctx, id, ev.Damage, ev.Cause)
	case script.TriggerDeath:
		var p *actor.Player
		if p, err = s.lookup(id); err == nil {
			err = s.die(ctx, p, ev.Cause)
		}
	case script.TriggerRespawn:
		err = s.Respawn(ctx, id)
	case script.TriggerObjectDamage:
		_, err = s.DamageCreature(ctx, id, ev.Creature, ev.Damage)
	}
	if err != nil {
		return fmt.Errorf("event %s (%s): %w", ev.EventID, ev.Trigger, err)
	}
	return nil
}
