package engine

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

var (
	ErrUnknownCommand   = errors.New("unknown command")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNoEntity         = errors.New("action requires an entity")
)

// Entity is the actor an event is about, typically a player.
// Implemented by the host.
type Entity interface {
	ID() string
	Name() string
	Health() float64
	IsFlying() bool
	IsSneaking() bool
	HeldItem() string
	HasPermission(node string) bool
	World() string
}

// Target is the object an event happened to, such as a broken block
type Target interface {
	Material() string
	// PrefersTool reports whether item is the right tool for this target
	PrefersTool(item string) bool
}

// Cancellable is the host's handle on a cancellable event
type Cancellable interface {
	SetCancelled(cancelled bool)
}

// Invoker is whoever runs a custom command. Entity returns nil for
// non-entity invokers such as a console.
type Invoker interface {
	Name() string
	HasPermission(node string) bool
	Reply(ctx context.Context, text string) error
	Entity() Entity
}

// Effects performs the concrete outcome of actions on the host.
// Arguments arrive fully substituted.
type Effects interface {
	SendMessage(ctx context.Context, to Entity, text string) error
	Broadcast(ctx context.Context, text string) error
	Heal(ctx context.Context, e Entity) error
	Feed(ctx context.Context, e Entity) error
	GiveItem(ctx context.Context, e Entity, material string, amount int) error
	Kick(ctx context.Context, e Entity, reason string) error
	Teleport(ctx context.Context, e Entity, world string, x, y, z float64) error
	PlaySound(ctx context.Context, e Entity, sound string) error
	GiveEffect(ctx context.Context, e Entity, effect string, level, seconds int) error
}

// CommandFunc runs a registered custom command
type CommandFunc func(ctx context.Context, inv Invoker, args []string) error

// CommandRegistrar adds invocable commands to the host's command table
type CommandRegistrar interface {
	RegisterCommand(name, permission, description string, invoke CommandFunc) error
}

// Context carries the run-time bindings for one execution
type Context struct {
	Entity   Entity
	Target   Target
	Event    Cancellable
	Bindings map[string]string

	cancelled bool
}

func NewContext(entity Entity) *Context {
	return &Context{
		Entity:   entity,
		Bindings: make(map[string]string),
	}
}

func (c *Context) WithTarget(t Target) *Context {
	c.Target = t
	return c
}

func (c *Context) WithEvent(ev Cancellable) *Context {
	c.Event = ev
	return c
}

// Bind sets a named value available as {key} in the running script
func (c *Context) Bind(key, value string) *Context {
	if c.Bindings == nil {
		c.Bindings = make(map[string]string)
	}
	c.Bindings[key] = value
	return c
}

// BindArgs binds positional command arguments as arg1..argN, args_count
// and all_args, plus each declared argument name that received a value.
func (c *Context) BindArgs(declared, args []string) *Context {
	for i, a := range args {
		c.Bind("arg"+strconv.Itoa(i+1), a)
		if i < len(declared) {
			c.Bind(declared[i], a)
		}
	}
	c.Bind("args_count", strconv.Itoa(len(args)))
	c.Bind("all_args", strings.Join(args, " "))
	return c
}

func (c *Context) Binding(key string) (string, bool) {
	v, ok := c.Bindings[key]
	return v, ok
}

// Cancel marks the event cancelled. Execution continues.
func (c *Context) Cancel() {
	c.cancelled = true
	if c.Event != nil {
		c.Event.SetCancelled(true)
	}
}

func (c *Context) Cancelled() bool {
	return c.cancelled
}

// EntityID returns the bound entity's id, or "" when none is bound
func (c *Context) EntityID() string {
	if c == nil || c.Entity == nil {
		return ""
	}
	return c.Entity.ID()
}
