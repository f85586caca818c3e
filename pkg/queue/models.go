package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/nusantara/pkg/actor"
	"github.com/jwebster45206/nusantara/pkg/script"
)

// EventType identifies what an Event asks the host to do
type EventType string

const (
	// EventTypeTrigger fires a script trigger
	EventTypeTrigger EventType = "trigger"

	// EventTypeCommand runs a custom command
	EventTypeCommand EventType = "command"
)

// Event is one host event travelling through the ingress queue
type Event struct {
	EventID string         `json:"event_id"`
	Type    EventType      `json:"type"`
	Trigger script.Trigger `json:"trigger,omitempty"`

	// Player names the acting player. A join carries the full spec; other
	// events only need the id or name.
	Player   *actor.PlayerSpec `json:"player,omitempty"`
	PlayerID string            `json:"player_id,omitempty"`

	// Trigger-specific fields
	Message  string          `json:"message,omitempty"`
	Block    *actor.Block    `json:"block,omitempty"`
	Creature *actor.Creature `json:"creature,omitempty"`
	Damage   float64         `json:"damage,omitempty"`
	Cause    string          `json:"cause,omitempty"`

	// Command-specific fields
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`

	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewTriggerEvent creates an event that fires trigger for playerID
func NewTriggerEvent(trigger script.Trigger, playerID string) *Event {
	return &Event{
		EventID:    uuid.New().String(),
		Type:       EventTypeTrigger,
		Trigger:    trigger,
		PlayerID:   playerID,
		EnqueuedAt: time.Now(),
	}
}

// NewCommandEvent creates an event that runs /command for playerID.
// An empty playerID runs it from the console.
func NewCommandEvent(command, playerID string, args []string) *Event {
	return &Event{
		EventID:    uuid.New().String(),
		Type:       EventTypeCommand,
		Command:    command,
		PlayerID:   playerID,
		Args:       args,
		EnqueuedAt: time.Now(),
	}
}

// ActorID returns the id of the acting player, if any
func (e *Event) ActorID() string {
	if e.PlayerID != "" {
		return e.PlayerID
	}
	if e.Player != nil {
		return e.Player.ID
	}
	return ""
}

// Validate checks that the event carries what its type needs
func (e *Event) Validate() error {
	switch e.Type {
	case EventTypeTrigger:
		if !e.Trigger.Valid() {
			return fmt.Errorf("unknown trigger %q", e.Trigger)
		}
		if e.Trigger == script.TriggerJoin && e.Player == nil && e.PlayerID == "" {
			return fmt.Errorf("join event needs a player")
		}
		if e.Trigger == script.TriggerBlockBreak && e.Block == nil {
			return fmt.Errorf("block_break event needs a block")
		}
		if e.Trigger == script.TriggerObjectDamage && e.Creature == nil {
			return fmt.Errorf("object_damage event needs a creature")
		}
	case EventTypeCommand:
		if e.Command == "" {
			return fmt.Errorf("command event needs a command name")
		}
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	return nil
}

// ToJSON converts the event to JSON bytes for Redis
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON parses an event from JSON bytes
func FromJSON(data []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	if ev.EventID == "" {
		ev.EventID = uuid.New().String()
	}
	return &ev, nil
}
