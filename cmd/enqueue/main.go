package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/jwebster45206/nusantara/internal/config"
	"github.com/jwebster45206/nusantara/internal/services/queue"
	"github.com/jwebster45206/nusantara/pkg/actor"
	queuePkg "github.com/jwebster45206/nusantara/pkg/queue"
	"github.com/jwebster45206/nusantara/pkg/script"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	var (
		trigger  = flag.String("trigger", string(script.TriggerJoin), "trigger to fire (join, quit, chat, block_break, death, respawn, actor_damage, object_damage)")
		player   = flag.String("player", "budi", "player id")
		name     = flag.String("name", "", "player display name for join (defaults to the id)")
		perms    = flag.String("perms", "", "comma separated permissions for join")
		message  = flag.String("message", "", "chat message")
		block    = flag.String("block", "STONE", "block material for block_break")
		creature = flag.String("creature", "zombie", "creature kind for object_damage")
		damage   = flag.Float64("damage", 1, "damage amount")
		cause    = flag.String("cause", "", "damage or death cause")
		command  = flag.String("command", "", "run a script command instead of a trigger; the remaining args are its arguments")
	)
	flag.Parse()

	ev, err := buildEvent(eventFlags{
		trigger:  *trigger,
		player:   *player,
		name:     *name,
		perms:    *perms,
		message:  *message,
		block:    *block,
		creature: *creature,
		damage:   *damage,
		cause:    *cause,
		command:  *command,
		args:     flag.Args(),
	})
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	client, err := queue.NewClient(cfg.RedisURL, logger)
	if err != nil {
		log.Fatal("Failed to connect to Redis: ", err)
	}
	defer client.Close()

	ctx := context.Background()
	q := queue.NewEventQueue(client, cfg.EventQueue)
	if err := q.Enqueue(ctx, ev); err != nil {
		log.Fatal("Failed to enqueue event: ", err)
	}
	fmt.Printf("Enqueued %s event %s\n", ev.Type, ev.EventID)

	depth, err := q.Depth(ctx)
	if err != nil {
		log.Fatal("Failed to get queue depth: ", err)
	}
	fmt.Printf("Queue depth: %d events\n", depth)
}

type eventFlags struct {
	trigger, player, name, perms, message, block, creature, cause, command string
	damage                                                                 float64
	args                                                                   []string
}

func buildEvent(f eventFlags) (*queuePkg.Event, error) {
	if f.command != "" {
		ev := queuePkg.NewCommandEvent(f.command, f.player, f.args)
		return ev, ev.Validate()
	}

	ev := queuePkg.NewTriggerEvent(script.Trigger(f.trigger), f.player)
	switch ev.Trigger {
	case script.TriggerJoin:
		name := f.name
		if name == "" {
			name = f.player
		}
		spec := &actor.PlayerSpec{ID: f.player, Name: name}
		if f.perms != "" {
			spec.Permissions = strings.Split(f.perms, ",")
		}
		ev.Player = spec
	case script.TriggerChat:
		ev.Message = f.message
	case script.TriggerBlockBreak:
		ev.Block = actor.NewBlock(f.block, actor.Position{World: "world"})
	case script.TriggerActorDamage, script.TriggerDeath:
		ev.Damage = f.damage
		ev.Cause = f.cause
	case script.TriggerObjectDamage:
		ev.Creature = actor.NewCreature(f.creature, f.creature, 20, actor.Position{World: "world"})
		ev.Damage = f.damage
	}
	return ev, ev.Validate()
}
