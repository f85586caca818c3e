package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jwebster45206/nusantara/internal/app"
	"github.com/jwebster45206/nusantara/internal/sim"
	"github.com/jwebster45206/nusantara/pkg/actor"
	"github.com/jwebster45206/nusantara/pkg/script"
	"github.com/jwebster45206/nusantara/pkg/vars"
)

const defaultWorld = "world"

const helpText = `Players:
  /join <name> [perm ...]   join (or rejoin) and play as <name>
  /as <name>                switch to another player
  /leave                    current player quits
  /grant <perm>             give the current player a permission
Events:
  <text>                    chat as the current player
  /hold <material>          set the held item
  /break <material>         break a block
  /damage <n> [cause]       hurt the current player
  /respawn                  respawn after death
  /hit <kind> <n>           hit a creature
  /fly, /sneak              toggle flying or sneaking
Commands:
  /run <command> [args]     run a script command as the player
  /console <command> [args] run a script command as the console
Admin:
  /scripts /reload /info /vars /commands /debug on|off
  /copy                     copy the transcript to the clipboard
  /help  /exit`

// session interprets console input against a local runtime. All world
// access goes through the runtime's loop.
type session struct {
	rt      *app.Runtime
	current string
	debug   bool
}

func newSession(rt *app.Runtime) *session {
	return &session{rt: rt}
}

// errExit asks the UI to quit
var errExit = errors.New("exit")

// errCopy asks the UI to copy its transcript
var errCopy = errors.New("copy")

// Execute runs one input line and returns lines to print
func (s *session) Execute(ctx context.Context, input string) ([]string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}
	if !strings.HasPrefix(input, "/") {
		return s.chat(ctx, input)
	}

	fields := strings.Fields(input)
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "/help":
		return strings.Split(helpText, "\n"), nil
	case "/exit":
		return nil, errExit
	case "/copy":
		return nil, errCopy
	case "/join":
		return s.join(ctx, args)
	case "/as":
		if len(args) != 1 {
			return nil, fmt.Errorf("usage: /as <name>")
		}
		p, ok := s.rt.World.Player(args[0])
		if !ok {
			return nil, fmt.Errorf("%s: %w", args[0], sim.ErrUnknownPlayer)
		}
		s.current = p.ID()
		return []string{fmt.Sprintf("Now playing as %s", p.Name())}, nil
	case "/leave":
		return s.withPlayer(ctx, func(ctx context.Context, p *actor.Player) ([]string, error) {
			if err := s.rt.Server.Quit(ctx, p.ID()); err != nil {
				return nil, err
			}
			s.current = ""
			return []string{fmt.Sprintf("%s left", p.Name())}, nil
		})
	case "/grant":
		if len(args) != 1 {
			return nil, fmt.Errorf("usage: /grant <permission>")
		}
		return s.withPlayer(ctx, func(_ context.Context, p *actor.Player) ([]string, error) {
			p.Grant(args[0])
			return []string{fmt.Sprintf("%s may now use %s", p.Name(), args[0])}, nil
		})
	case "/hold":
		if len(args) != 1 {
			return nil, fmt.Errorf("usage: /hold <material>")
		}
		return s.withPlayer(ctx, func(_ context.Context, p *actor.Player) ([]string, error) {
			p.SetHeldItem(args[0])
			return []string{fmt.Sprintf("%s holds %s", p.Name(), p.HeldItem())}, nil
		})
	case "/break":
		if len(args) != 1 {
			return nil, fmt.Errorf("usage: /break <material>")
		}
		return s.withPlayer(ctx, func(ctx context.Context, p *actor.Player) ([]string, error) {
			block := actor.NewBlock(args[0], p.Position())
			cancelled, err := s.rt.Server.BreakBlock(ctx, p.ID(), block)
			if err != nil {
				return nil, err
			}
			return []string{outcome("Break "+block.Material(), cancelled)}, nil
		})
	case "/damage":
		if len(args) < 1 {
			return nil, fmt.Errorf("usage: /damage <n> [cause]")
		}
		amount, ok := vars.ParseNumber(args[0])
		if !ok {
			return nil, fmt.Errorf("invalid damage %q", args[0])
		}
		cause := strings.Join(args[1:], " ")
		return s.withPlayer(ctx, func(ctx context.Context, p *actor.Player) ([]string, error) {
			cancelled, err := s.rt.Server.Damage(ctx, p.ID(), amount, cause)
			if err != nil {
				return nil, err
			}
			return []string{outcome(fmt.Sprintf("Damage %s (hp %s)", args[0], vars.FormatNumber(p.Health())), cancelled)}, nil
		})
	case "/respawn":
		return s.withPlayer(ctx, func(ctx context.Context, p *actor.Player) ([]string, error) {
			if err := s.rt.Server.Respawn(ctx, p.ID()); err != nil {
				return nil, err
			}
			return []string{fmt.Sprintf("%s respawned", p.Name())}, nil
		})
	case "/hit":
		if len(args) != 2 {
			return nil, fmt.Errorf("usage: /hit <kind> <n>")
		}
		amount, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, fmt.Errorf("invalid damage %q", args[1])
		}
		return s.withPlayer(ctx, func(ctx context.Context, p *actor.Player) ([]string, error) {
			c := actor.NewCreature(args[0], args[0], 20, p.Position())
			cancelled, err := s.rt.Server.DamageCreature(ctx, p.ID(), c, float64(amount))
			if err != nil {
				return nil, err
			}
			return []string{outcome(fmt.Sprintf("Hit %s (hp %d)", c.Type, c.HP), cancelled)}, nil
		})
	case "/fly":
		return s.withPlayer(ctx, func(_ context.Context, p *actor.Player) ([]string, error) {
			p.SetFlying(!p.IsFlying())
			return []string{fmt.Sprintf("%s flying: %t", p.Name(), p.IsFlying())}, nil
		})
	case "/sneak":
		return s.withPlayer(ctx, func(_ context.Context, p *actor.Player) ([]string, error) {
			p.SetSneaking(!p.IsSneaking())
			return []string{fmt.Sprintf("%s sneaking: %t", p.Name(), p.IsSneaking())}, nil
		})
	case "/run":
		if len(args) < 1 {
			return nil, fmt.Errorf("usage: /run <command> [args]")
		}
		return s.withPlayer(ctx, func(ctx context.Context, p *actor.Player) ([]string, error) {
			return nil, s.rt.Server.Command(ctx, p.ID(), args[0], args[1:])
		})
	case "/console":
		if len(args) < 1 {
			return nil, fmt.Errorf("usage: /console <command> [args]")
		}
		return nil, s.do(ctx, func(ctx context.Context) error {
			return s.rt.Server.Command(ctx, "", args[0], args[1:])
		})
	case "/scripts":
		var out []string
		for _, info := range s.rt.Engine.Scripts() {
			out = append(out, fmt.Sprintf("%-24s %d handlers, %d commands", info.Name, info.Handlers, info.Commands))
			for _, d := range s.rt.Engine.Diagnostics(info.Name) {
				out = append(out, "  "+d.String())
			}
		}
		if len(out) == 0 {
			out = []string{"No scripts loaded from " + s.rt.Config.ScriptsDir}
		}
		return out, nil
	case "/reload":
		var n int
		err := s.do(ctx, func(ctx context.Context) error {
			var err error
			n, err = s.rt.Engine.Reload(ctx)
			return err
		})
		if err != nil {
			return nil, err
		}
		return []string{fmt.Sprintf("Reloaded %d scripts", n)}, nil
	case "/info":
		info := s.rt.Engine.Info()
		out := []string{
			fmt.Sprintf("Scripts: %d  Commands: %d  Variables: %d", info.Scripts, info.Commands, info.Variables),
		}
		triggers := make([]script.Trigger, 0, len(info.Handlers))
		for t := range info.Handlers {
			triggers = append(triggers, t)
		}
		sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })
		for _, t := range triggers {
			out = append(out, fmt.Sprintf("  %-14s %d handlers, %d dispatches", t, info.Handlers[t], info.Dispatches[t]))
		}
		return out, nil
	case "/vars":
		return s.variables(), nil
	case "/commands":
		var out []string
		for _, c := range s.rt.World.Commands() {
			line := "/" + c.Name
			if c.Permission != "" {
				line += " [" + c.Permission + "]"
			}
			if c.Description != "" {
				line += " " + c.Description
			}
			out = append(out, line)
		}
		if len(out) == 0 {
			out = []string{"No commands registered"}
		}
		return out, nil
	case "/debug":
		if len(args) == 1 {
			s.debug = strings.EqualFold(args[0], "on")
		} else {
			s.debug = !s.debug
		}
		s.rt.Engine.SetDebug(s.debug)
		return []string{fmt.Sprintf("Debug: %t", s.debug)}, nil
	}
	return nil, fmt.Errorf("unknown console command %s (try /help)", cmd)
}

func (s *session) do(ctx context.Context, task sim.Task) error {
	return s.rt.Loop.Do(ctx, task)
}

func (s *session) withPlayer(ctx context.Context, fn func(ctx context.Context, p *actor.Player) ([]string, error)) ([]string, error) {
	if s.current == "" {
		return nil, fmt.Errorf("no player yet; /join <name> first")
	}
	var out []string
	err := s.do(ctx, func(ctx context.Context) error {
		p, ok := s.rt.World.Player(s.current)
		if !ok {
			return fmt.Errorf("%s: %w", s.current, sim.ErrUnknownPlayer)
		}
		var err error
		out, err = fn(ctx, p)
		return err
	})
	return out, err
}

func (s *session) join(ctx context.Context, args []string) ([]string, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /join <name> [permission ...]")
	}
	spec := &actor.PlayerSpec{
		ID:          strings.ToLower(args[0]),
		Name:        args[0],
		Permissions: args[1:],
		Position:    actor.Position{World: defaultWorld},
	}
	var p *actor.Player
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.rt.Server.Join(ctx, spec)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.current = p.ID()
	return []string{fmt.Sprintf("%s joined %s", p.Name(), p.World())}, nil
}

func (s *session) chat(ctx context.Context, text string) ([]string, error) {
	return s.withPlayer(ctx, func(ctx context.Context, p *actor.Player) ([]string, error) {
		cancelled, err := s.rt.Server.Chat(ctx, p.ID(), text)
		if err != nil {
			return nil, err
		}
		if cancelled {
			return []string{"(chat cancelled by a script)"}, nil
		}
		return nil, nil
	})
}

func (s *session) variables() []string {
	global, entities := s.rt.Engine.Store().Snapshot()
	var out []string
	for _, k := range sortedKeys(global) {
		out = append(out, fmt.Sprintf("%s = %s", k, global[k]))
	}
	for _, id := range sortedKeys(entities) {
		for _, k := range sortedKeys(entities[id]) {
			out = append(out, fmt.Sprintf("%s.%s = %s", k, id, entities[id][k]))
		}
	}
	if len(out) == 0 {
		out = []string{"No variables are set"}
	}
	return out
}

// Player reports the current player, if any
func (s *session) Player() (*actor.Player, bool) {
	if s.current == "" {
		return nil, false
	}
	return s.rt.World.Player(s.current)
}

func outcome(what string, cancelled bool) string {
	if cancelled {
		return what + ": cancelled"
	}
	return what + ": ok"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
