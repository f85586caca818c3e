package actor

import "strings"

// Creature is a non-player entity that can be hurt, such as a mob
type Creature struct {
	ID       string   `json:"id" yaml:"id"`
	Type     string   `json:"type" yaml:"type"`
	HP       int      `json:"hp" yaml:"hp"`
	MaxHP    int      `json:"max_hp" yaml:"max_hp"`
	Position Position `json:"position" yaml:"position"`
}

// NewCreature creates a creature at full health
func NewCreature(id, kind string, maxHP int, pos Position) *Creature {
	if maxHP <= 0 {
		maxHP = 20
	}
	return &Creature{ID: id, Type: strings.ToUpper(kind), HP: maxHP, MaxHP: maxHP, Position: pos}
}

func (c *Creature) Material() string { return c.Type }

// PrefersTool reports whether item is a weapon
func (c *Creature) PrefersTool(item string) bool {
	item = strings.ToUpper(item)
	return strings.HasSuffix(item, "_SWORD") || ToolAxe.Accepts(item)
}

// TakeDamage reduces HP by n. HP cannot go below 0.
func (c *Creature) TakeDamage(n int) {
	if n <= 0 {
		return
	}
	c.HP = max(c.HP-n, 0)
}

func (c *Creature) IsDefeated() bool {
	return c.HP <= 0
}
