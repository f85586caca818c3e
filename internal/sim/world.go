package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jwebster45206/nusantara/pkg/actor"
	"github.com/jwebster45206/nusantara/pkg/engine"
	"github.com/jwebster45206/nusantara/pkg/script"
)

// DefaultHistory is how many effects a World remembers
const DefaultHistory = 500

var (
	ErrUnknownPlayer  = errors.New("unknown player")
	ErrUnknownCommand = errors.New("unknown command")
)

// EffectPublisher forwards effects outside the process
type EffectPublisher interface {
	PublishEffect(ctx context.Context, fx Effect) error
}

type registeredCommand struct {
	name        string
	permission  string
	description string
	invoke      engine.CommandFunc
}

// CommandInfo describes a command registered with the world
type CommandInfo struct {
	Name        string `json:"name"`
	Permission  string `json:"permission,omitempty"`
	Description string `json:"description,omitempty"`
}

// World is an in-process host for scripts. It holds the players, applies
// script effects to them and keeps a bounded history of what happened.
type World struct {
	id  string
	log *slog.Logger

	mu        sync.RWMutex
	players   map[string]*actor.Player
	names     map[string]string // lower-case name -> id
	commands  map[string]registeredCommand
	history   []Effect
	limit     int
	subs      map[string]chan Effect
	publisher EffectPublisher
}

var (
	_ engine.Effects          = (*World)(nil)
	_ engine.CommandRegistrar = (*World)(nil)
)

func NewWorld(log *slog.Logger) *World {
	if log == nil {
		log = slog.Default()
	}
	return &World{
		id:       fmt.Sprintf("world-%s", uuid.New().String()[:8]),
		log:      log,
		players:  make(map[string]*actor.Player),
		names:    make(map[string]string),
		commands: make(map[string]registeredCommand),
		limit:    DefaultHistory,
		subs:     make(map[string]chan Effect),
	}
}

func (w *World) ID() string { return w.id }

// SetPublisher forwards every later effect to p as well
func (w *World) SetPublisher(p EffectPublisher) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.publisher = p
}

// SetHistoryLimit bounds the effect history. Values below 1 are ignored.
func (w *World) SetHistoryLimit(n int) {
	if n < 1 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.limit = n
	if len(w.history) > n {
		w.history = append([]Effect(nil), w.history[len(w.history)-n:]...)
	}
}

// AddPlayer places p in the world, replacing any player with the same id
func (w *World) AddPlayer(p *actor.Player) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if old, ok := w.players[p.ID()]; ok {
		delete(w.names, strings.ToLower(old.Name()))
	}
	w.players[p.ID()] = p
	w.names[strings.ToLower(p.Name())] = p.ID()
}

// Player finds a player by id or, failing that, by case-insensitive name
func (w *World) Player(idOrName string) (*actor.Player, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if p, ok := w.players[idOrName]; ok {
		return p, true
	}
	if id, ok := w.names[strings.ToLower(idOrName)]; ok {
		return w.players[id], true
	}
	return nil, false
}

// Players returns every known player sorted by name
func (w *World) Players() []*actor.Player {
	w.mu.RLock()
	out := make([]*actor.Player, 0, len(w.players))
	for _, p := range w.players {
		out = append(out, p)
	}
	w.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

func (w *World) player(e engine.Entity) (*actor.Player, error) {
	if e == nil {
		return nil, engine.ErrNoEntity
	}
	p, ok := w.Player(e.ID())
	if !ok {
		return nil, fmt.Errorf("%s: %w", e.ID(), ErrUnknownPlayer)
	}
	return p, nil
}

// Record stores fx and fans it out to subscribers and the publisher
func (w *World) Record(ctx context.Context, fx Effect) {
	w.mu.Lock()
	w.history = append(w.history, fx)
	if len(w.history) > w.limit {
		w.history = w.history[len(w.history)-w.limit:]
	}
	for id, ch := range w.subs {
		select {
		case ch <- fx:
		default:
			w.log.Warn("Effect subscriber is full, dropping effect", "subscriber", id, "kind", fx.Kind)
		}
	}
	publisher := w.publisher
	w.mu.Unlock()

	w.log.Debug("Effect", "kind", fx.Kind, "player", fx.Player, "text", fx.Text)
	if publisher != nil {
		if err := publisher.PublishEffect(ctx, fx); err != nil {
			w.log.Error("Failed to publish effect", "error", err, "kind", fx.Kind)
		}
	}
}

// History returns the remembered effects, oldest first
func (w *World) History() []Effect {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]Effect(nil), w.history...)
}

// Inbox returns the texts sent to one player, oldest first
func (w *World) Inbox(playerID string) []string {
	var out []string
	for _, fx := range w.History() {
		if fx.Kind == script.ActionSendMessage.String() && fx.PlayerID == playerID {
			out = append(out, fx.Text)
		}
	}
	return out
}

// Broadcasts returns every broadcast text, oldest first
func (w *World) Broadcasts() []string {
	var out []string
	for _, fx := range w.History() {
		if fx.Kind == script.ActionBroadcast.String() {
			out = append(out, fx.Text)
		}
	}
	return out
}

// Subscribe returns a channel receiving every later effect. Effects are
// dropped for a subscriber whose buffer is full. cancel closes the channel.
func (w *World) Subscribe(buffer int) (<-chan Effect, func()) {
	if buffer < 1 {
		buffer = 64
	}
	id := uuid.New().String()
	ch := make(chan Effect, buffer)

	w.mu.Lock()
	w.subs[id] = ch
	w.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.subs, id)
			w.mu.Unlock()
			close(ch)
		})
	}
}

func (w *World) SendMessage(ctx context.Context, to engine.Entity, text string) error {
	if _, err := w.player(to); err != nil {
		return err
	}
	w.Record(ctx, MessageEffect(to, text))
	return nil
}

func (w *World) Broadcast(ctx context.Context, text string) error {
	w.Record(ctx, BroadcastEffect(text))
	return nil
}

func (w *World) Heal(ctx context.Context, e engine.Entity) error {
	p, err := w.player(e)
	if err != nil {
		return err
	}
	if err := p.Heal(); err != nil {
		return fmt.Errorf("failed to heal %s: %w", p.Name(), err)
	}
	w.Record(ctx, ActionEffect(script.ActionHeal, p))
	return nil
}

func (w *World) Feed(ctx context.Context, e engine.Entity) error {
	p, err := w.player(e)
	if err != nil {
		return err
	}
	p.Feed()
	w.Record(ctx, ActionEffect(script.ActionFeed, p))
	return nil
}

func (w *World) GiveItem(ctx context.Context, e engine.Entity, material string, amount int) error {
	p, err := w.player(e)
	if err != nil {
		return err
	}
	if amount <= 0 {
		return fmt.Errorf("invalid item amount %d", amount)
	}
	p.Give(material, amount)
	w.Record(ctx, ItemEffect(p, material, amount))
	return nil
}

func (w *World) Kick(ctx context.Context, e engine.Entity, reason string) error {
	p, err := w.player(e)
	if err != nil {
		return err
	}
	p.SetOnline(false)
	w.Record(ctx, KickEffect(p, reason))
	return nil
}

// Teleport moves e. An empty world keeps the player's current world.
func (w *World) Teleport(ctx context.Context, e engine.Entity, world string, x, y, z float64) error {
	p, err := w.player(e)
	if err != nil {
		return err
	}
	if world == "" {
		world = p.World()
	}
	pos := actor.Position{World: world, X: x, Y: y, Z: z}
	p.MoveTo(pos)
	w.Record(ctx, TeleportEffect(p, pos))
	return nil
}

func (w *World) PlaySound(ctx context.Context, e engine.Entity, sound string) error {
	p, err := w.player(e)
	if err != nil {
		return err
	}
	w.Record(ctx, SoundEffect(p, sound))
	return nil
}

func (w *World) GiveEffect(ctx context.Context, e engine.Entity, effect string, level, seconds int) error {
	p, err := w.player(e)
	if err != nil {
		return err
	}
	p.ApplyEffect(effect, level, seconds)
	w.Record(ctx, PotionEffect(p, effect, level, seconds))
	return nil
}

// RegisterCommand adds name to the command table. Registering a name twice
// replaces the earlier entry.
func (w *World) RegisterCommand(name, permission, description string, invoke engine.CommandFunc) error {
	name = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "/"))
	if name == "" {
		return fmt.Errorf("command name is required")
	}
	if invoke == nil {
		return fmt.Errorf("command /%s has no handler", name)
	}
	w.mu.Lock()
	w.commands[name] = registeredCommand{name: name, permission: permission, description: description, invoke: invoke}
	w.mu.Unlock()
	w.log.Debug("Command registered", "command", name, "permission", permission)
	return nil
}

// Commands lists the registered commands by name
func (w *World) Commands() []CommandInfo {
	w.mu.RLock()
	out := make([]CommandInfo, 0, len(w.commands))
	for _, c := range w.commands {
		out = append(out, CommandInfo{Name: c.name, Permission: c.permission, Description: c.description})
	}
	w.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RunCommand runs a command line such as "/halo Budi"
func (w *World) RunCommand(ctx context.Context, inv engine.Invoker, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return fmt.Errorf("empty command line")
	}
	return w.Invoke(ctx, inv, fields[0], fields[1:])
}

// Invoke runs a registered command by name
func (w *World) Invoke(ctx context.Context, inv engine.Invoker, name string, args []string) error {
	name = strings.ToLower(strings.TrimPrefix(name, "/"))
	w.mu.RLock()
	cmd, ok := w.commands[name]
	w.mu.RUnlock()
	if !ok {
		return fmt.Errorf("/%s: %w", name, ErrUnknownCommand)
	}
	return cmd.invoke(ctx, inv, args)
}
