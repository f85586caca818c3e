package actor

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/jwebster45206/d20"
)

// MaxFood is the hunger bar value of a fully fed player
const MaxFood = 20

// Position is a location inside a named world
type Position struct {
	World string  `json:"world" yaml:"world"`
	X     float64 `json:"x" yaml:"x"`
	Y     float64 `json:"y" yaml:"y"`
	Z     float64 `json:"z" yaml:"z"`
}

// PlayerSpec is the serializable description of a player
type PlayerSpec struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	HP          int            `json:"hp,omitempty" yaml:"hp,omitempty"`         // current health
	MaxHP       int            `json:"max_hp,omitempty" yaml:"max_hp,omitempty"` // defaults to 20
	Food        int            `json:"food,omitempty" yaml:"food,omitempty"`
	HeldItem    string         `json:"held_item,omitempty" yaml:"held_item,omitempty"`
	Flying      bool           `json:"flying,omitempty" yaml:"flying,omitempty"`
	Sneaking    bool           `json:"sneaking,omitempty" yaml:"sneaking,omitempty"`
	Permissions []string       `json:"permissions,omitempty" yaml:"permissions,omitempty"`
	Position    Position       `json:"position" yaml:"position"`
	Inventory   map[string]int `json:"inventory,omitempty" yaml:"inventory,omitempty"`
}

// ActiveEffect is a potion-style effect applied to a player
type ActiveEffect struct {
	Level   int `json:"level"`
	Seconds int `json:"seconds"`
}

// Player is the runtime form of a PlayerSpec. Health is tracked by a
// d20.Actor; everything else lives on the player itself.
// Player is safe for concurrent use.
type Player struct {
	mu      sync.RWMutex
	spec    PlayerSpec
	actor   *d20.Actor
	perms   map[string]bool
	effects map[string]ActiveEffect
	online  bool
}

// NewPlayerFromSpec builds a Player, filling defaults for unset fields
func NewPlayerFromSpec(spec *PlayerSpec) (*Player, error) {
	if spec == nil {
		return nil, fmt.Errorf("spec cannot be nil")
	}
	if spec.ID == "" {
		return nil, fmt.Errorf("player id is required")
	}

	s := *spec
	if s.Name == "" {
		s.Name = s.ID
	}
	if s.MaxHP <= 0 {
		s.MaxHP = 20
	}
	if s.Food == 0 {
		s.Food = MaxFood
	}
	if s.Position.World == "" {
		s.Position.World = "world"
	}
	s.Inventory = maps.Clone(s.Inventory)
	if s.Inventory == nil {
		s.Inventory = make(map[string]int)
	}
	s.Permissions = slices.Clone(s.Permissions)

	actor, err := d20.NewActor(s.ID).WithHP(s.MaxHP).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build actor: %w", err)
	}
	if s.HP > 0 && s.HP != s.MaxHP {
		if err := actor.SetHP(min(s.HP, s.MaxHP)); err != nil {
			return nil, fmt.Errorf("failed to set HP: %w", err)
		}
	}

	p := &Player{
		spec:    s,
		actor:   actor,
		perms:   make(map[string]bool, len(s.Permissions)),
		effects: make(map[string]ActiveEffect),
	}
	for _, node := range s.Permissions {
		p.perms[node] = true
	}
	return p, nil
}

func (p *Player) ID() string { return p.spec.ID }

func (p *Player) Name() string { return p.spec.Name }

func (p *Player) Health() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return float64(p.actor.HP())
}

func (p *Player) MaxHealth() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.actor.MaxHP()
}

func (p *Player) IsFlying() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.spec.Flying
}

func (p *Player) IsSneaking() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.spec.Sneaking
}

func (p *Player) HeldItem() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.spec.HeldItem
}

// HasPermission checks a node. A "*" grant matches every node.
func (p *Player) HasPermission(node string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.perms["*"] || p.perms[node]
}

func (p *Player) World() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.spec.Position.World
}

func (p *Player) Position() Position {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.spec.Position
}

func (p *Player) Food() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.spec.Food
}

func (p *Player) Online() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.online
}

func (p *Player) SetOnline(online bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online = online
}

func (p *Player) SetHeldItem(material string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.spec.HeldItem = strings.ToUpper(material)
}

func (p *Player) SetFlying(flying bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.spec.Flying = flying
}

func (p *Player) SetSneaking(sneaking bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.spec.Sneaking = sneaking
}

func (p *Player) Grant(node string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.perms[node] {
		p.perms[node] = true
		p.spec.Permissions = append(p.spec.Permissions, node)
	}
}

// TakeDamage lowers health by n, never below zero, and returns the new value
func (p *Player) TakeDamage(n int) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n <= 0 {
		return p.actor.HP(), nil
	}
	hp := max(p.actor.HP()-n, 0)
	if err := p.actor.SetHP(hp); err != nil {
		return p.actor.HP(), fmt.Errorf("failed to set HP: %w", err)
	}
	return hp, nil
}

// Heal restores full health
func (p *Player) Heal() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.actor.SetHP(p.actor.MaxHP()); err != nil {
		return fmt.Errorf("failed to set HP: %w", err)
	}
	return nil
}

func (p *Player) IsDead() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.actor.HP() <= 0
}

// Feed fills the hunger bar
func (p *Player) Feed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.spec.Food = MaxFood
}

// Give adds amount of material to the inventory
func (p *Player) Give(material string, amount int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.spec.Inventory[material] += amount
}

func (p *Player) ItemCount(material string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.spec.Inventory[material]
}

func (p *Player) MoveTo(pos Position) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.spec.Position = pos
}

// ApplyEffect replaces any running effect of the same name
func (p *Player) ApplyEffect(name string, level, seconds int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.effects[name] = ActiveEffect{Level: level, Seconds: seconds}
}

func (p *Player) Effect(name string) (ActiveEffect, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.effects[name]
	return e, ok
}

// Spec returns a copy of the player's current state
func (p *Player) Spec() PlayerSpec {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := p.spec
	s.HP = p.actor.HP()
	s.MaxHP = p.actor.MaxHP()
	s.Inventory = maps.Clone(p.spec.Inventory)
	s.Permissions = slices.Clone(p.spec.Permissions)
	return s
}

// MarshalJSON reports the live state, including active effects
func (p *Player) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("null"), nil
	}
	type playerResponse struct {
		PlayerSpec
		Online  bool                    `json:"online"`
		Effects map[string]ActiveEffect `json:"effects,omitempty"`
	}
	resp := playerResponse{PlayerSpec: p.Spec(), Online: p.Online()}
	p.mu.RLock()
	resp.Effects = maps.Clone(p.effects)
	p.mu.RUnlock()
	return json.Marshal(resp)
}
