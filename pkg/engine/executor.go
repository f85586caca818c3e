package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/jwebster45206/nusantara/pkg/script"
	"github.com/jwebster45206/nusantara/pkg/vars"
)

const (
	msgPermissionDenied = "&cKamu tidak punya izin untuk menjalankan perintah ini."
	msgCommandFailed    = "&cTerjadi kesalahan saat menjalankan perintah."
)

// Executor walks action trees against a Context
type Executor struct {
	store   *vars.Store
	effects Effects
	sub     *Substituter
	eval    *Evaluator
	log     *slog.Logger
	debug   atomic.Bool
}

func NewExecutor(store *vars.Store, effects Effects, colorMarker string, log *slog.Logger) *Executor {
	sub := NewSubstituter(store, colorMarker)
	return &Executor{
		store:   store,
		effects: effects,
		sub:     sub,
		eval:    NewEvaluator(store, sub, log),
		log:     log,
	}
}

// SetDebug logs every executed action at info level when enabled
func (e *Executor) SetDebug(enabled bool) {
	e.debug.Store(enabled)
}

// ExecuteHandler runs a handler's actions in order. A panic inside the
// handler is recovered and returned as an error.
func (e *Executor) ExecuteHandler(ctx context.Context, h script.EventHandler, rc *Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("Handler panicked", "trigger", h.Trigger, "line", h.Line, "panic", r)
			err = fmt.Errorf("handler %s at line %d panicked: %v", h.Trigger, h.Line, r)
		}
	}()

	e.run(ctx, h.Actions, rc)
	return nil
}

// ExecuteBlock runs the then or else branch of block. It reports whether a
// stop action ended execution.
func (e *Executor) ExecuteBlock(ctx context.Context, block *script.ConditionalBlock, rc *Context) bool {
	if block == nil {
		return false
	}
	if e.eval.Evaluate(block.Condition, rc) {
		return e.run(ctx, block.Then, rc)
	}
	return e.run(ctx, block.Else, rc)
}

// ExecuteCommand checks the invoker's permission, binds args and runs the
// command body. Failures are reported to the invoker.
func (e *Executor) ExecuteCommand(ctx context.Context, cmd script.CustomCommand, inv Invoker, args []string) (err error) {
	if cmd.Permission != "" && !inv.HasPermission(cmd.Permission) {
		e.reply(ctx, inv, msgPermissionDenied)
		return fmt.Errorf("/%s requires %q: %w", cmd.Name, cmd.Permission, ErrPermissionDenied)
	}

	defer func() {
		if r := recover(); r != nil {
			e.log.Error("Command panicked", "command", cmd.Name, "invoker", inv.Name(), "panic", r)
			e.reply(ctx, inv, msgCommandFailed)
			err = fmt.Errorf("command /%s panicked: %v", cmd.Name, r)
		}
	}()

	rc := NewContext(inv.Entity()).BindArgs(cmd.Args, args)
	rc.Bind("sender", inv.Name())
	e.run(ctx, cmd.Actions, rc)
	return nil
}

func (e *Executor) reply(ctx context.Context, inv Invoker, text string) {
	if err := inv.Reply(ctx, e.sub.Apply(text, nil)); err != nil {
		e.log.Warn("Failed to reply to invoker", "invoker", inv.Name(), "error", err)
	}
}

// run executes actions in order and reports whether a stop was reached
func (e *Executor) run(ctx context.Context, actions []script.Action, rc *Context) bool {
	for _, a := range actions {
		if e.debug.Load() {
			e.log.Info("Executing action", "kind", a.Kind, "line", a.Line, "entity", rc.EntityID())
		}

		switch a.Kind {
		case script.ActionStop:
			return true
		case script.ActionNested:
			if e.ExecuteBlock(ctx, a.Block, rc) {
				return true
			}
		default:
			if err := e.apply(ctx, a, rc); err != nil {
				level := slog.LevelWarn
				if errors.Is(err, ErrNoEntity) {
					level = slog.LevelDebug
				}
				e.log.Log(ctx, level, "Action skipped", "kind", a.Kind, "line", a.Line, "error", err)
			}
		}
	}
	return false
}

// apply performs one non-control action
func (e *Executor) apply(ctx context.Context, a script.Action, rc *Context) error {
	switch a.Kind {
	case script.ActionCancelEvent:
		rc.Cancel()
		return nil
	case script.ActionBroadcast:
		return e.effects.Broadcast(ctx, e.sub.Apply(a.Param, rc))
	case script.ActionSetVar, script.ActionAddVar, script.ActionSubtractVar, script.ActionDeleteVar:
		return e.applyVariable(a, rc)
	}

	entity := rc.Entity
	if entity == nil {
		return ErrNoEntity
	}

	switch a.Kind {
	case script.ActionSendMessage:
		return e.effects.SendMessage(ctx, entity, e.sub.Apply(a.Param, rc))
	case script.ActionHeal:
		return e.effects.Heal(ctx, entity)
	case script.ActionFeed:
		return e.effects.Feed(ctx, entity)
	case script.ActionKick:
		return e.effects.Kick(ctx, entity, e.sub.Apply(a.Param, rc))
	case script.ActionPlaySound:
		return e.effects.PlaySound(ctx, entity, e.sub.Expand(a.Param, rc))
	case script.ActionGiveItem:
		amount, err := e.intArg(a.Arg(0, "1"), rc)
		if err != nil {
			return err
		}
		if amount < 1 {
			return fmt.Errorf("item amount must be positive, got %d", amount)
		}
		return e.effects.GiveItem(ctx, entity, e.sub.Expand(a.Param, rc), amount)
	case script.ActionTeleport:
		var coords [3]float64
		for i := range coords {
			v, ok := vars.ParseNumber(e.sub.Expand(a.Arg(i, ""), rc))
			if !ok {
				return fmt.Errorf("invalid teleport coordinate %q", a.Arg(i, ""))
			}
			coords[i] = v
		}
		world := e.sub.Expand(a.Param, rc)
		if world == "" {
			world = entity.World()
		}
		return e.effects.Teleport(ctx, entity, world, coords[0], coords[1], coords[2])
	case script.ActionGiveEffect:
		level, err := e.intArg(a.Arg(0, "1"), rc)
		if err != nil {
			return err
		}
		seconds, err := e.intArg(a.Arg(1, "10"), rc)
		if err != nil {
			return err
		}
		return e.effects.GiveEffect(ctx, entity, e.sub.Expand(a.Param, rc), level, seconds)
	default:
		return fmt.Errorf("unsupported action kind %s", a.Kind)
	}
}

func (e *Executor) applyVariable(a script.Action, rc *Context) error {
	scope, key := vars.Resolve(a.Param, rc.EntityID())
	if vars.IsEntityScoped(a.Param) && scope == "" {
		return fmt.Errorf("per-entity variable {%s}: %w", a.Param, ErrNoEntity)
	}

	switch a.Kind {
	case script.ActionSetVar:
		e.store.Set(scope, key, e.sub.Expand(a.Arg(0, ""), rc))
	case script.ActionDeleteVar:
		e.store.Delete(scope, key)
	case script.ActionAddVar, script.ActionSubtractVar:
		amountText := e.sub.Expand(a.Arg(0, "1"), rc)
		amount, ok := vars.ParseNumber(amountText)
		if !ok {
			return fmt.Errorf("invalid amount %q for {%s}", amountText, a.Param)
		}
		if a.Kind == script.ActionSubtractVar {
			amount = -amount
		}
		e.store.Add(scope, key, amount)
	}
	return nil
}

func (e *Executor) intArg(text string, rc *Context) (int, error) {
	resolved := e.sub.Expand(text, rc)
	v, ok := vars.ParseNumber(resolved)
	if !ok {
		return 0, fmt.Errorf("expected a number, got %q", resolved)
	}
	return int(v), nil
}
