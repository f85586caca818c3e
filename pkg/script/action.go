package script

// ActionKind is the closed set of statements a handler body can hold
type ActionKind int

const (
	ActionSendMessage ActionKind = iota + 1
	ActionBroadcast
	ActionCancelEvent
	ActionHeal
	ActionFeed
	ActionSetVar
	ActionAddVar
	ActionSubtractVar
	ActionDeleteVar
	ActionGiveItem
	ActionKick
	ActionTeleport
	ActionPlaySound
	ActionGiveEffect
	ActionStop
	ActionNested
)

var actionKindNames = map[ActionKind]string{
	ActionSendMessage: "send_message",
	ActionBroadcast:   "broadcast",
	ActionCancelEvent: "cancel_event",
	ActionHeal:        "heal",
	ActionFeed:        "feed",
	ActionSetVar:      "set_variable",
	ActionAddVar:      "add_variable",
	ActionSubtractVar: "subtract_variable",
	ActionDeleteVar:   "delete_variable",
	ActionGiveItem:    "give_item",
	ActionKick:        "kick",
	ActionTeleport:    "teleport",
	ActionPlaySound:   "play_sound",
	ActionGiveEffect:  "give_effect",
	ActionStop:        "stop",
	ActionNested:      "condition",
}

func (k ActionKind) String() string {
	if name, ok := actionKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// MarshalText lets ActionKind appear by name in JSON output
func (k ActionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Action is one statement in a body.
//
// Param and Extra hold unresolved text; placeholders are substituted at
// execution time. Their meaning depends on Kind:
//
//	send_message, broadcast   Param = message
//	set_variable              Param = variable, Extra[0] = value
//	add/subtract_variable     Param = variable, Extra[0] = amount
//	delete_variable           Param = variable
//	give_item                 Param = material, Extra[0] = amount
//	kick                      Param = reason
//	teleport                  Param = world (optional), Extra = x, y, z
//	play_sound                Param = sound
//	give_effect               Param = effect, Extra = level, seconds
//
// Block is set only for ActionNested.
type Action struct {
	Kind  ActionKind        `json:"kind"`
	Param string            `json:"param,omitempty"`
	Extra []string          `json:"extra,omitempty"`
	Block *ConditionalBlock `json:"block,omitempty"`
	Line  int               `json:"line"`
}

// Arg returns Extra[i], or fallback when it is absent
func (a Action) Arg(i int, fallback string) string {
	if i < len(a.Extra) && a.Extra[i] != "" {
		return a.Extra[i]
	}
	return fallback
}

// Nested wraps a conditional block as an action
func Nested(block *ConditionalBlock) Action {
	line := 0
	if block != nil {
		line = block.Line
	}
	return Action{Kind: ActionNested, Block: block, Line: line}
}
