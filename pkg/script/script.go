package script

// Trigger identifies the host event a handler responds to
type Trigger string

const (
	TriggerJoin         Trigger = "join"
	TriggerQuit         Trigger = "quit"
	TriggerChat         Trigger = "chat"
	TriggerBlockBreak   Trigger = "block_break"
	TriggerDeath        Trigger = "death"
	TriggerRespawn      Trigger = "respawn"
	TriggerActorDamage  Trigger = "actor_damage"
	TriggerObjectDamage Trigger = "object_damage"
)

// AllTriggers returns every trigger kind in declaration order
func AllTriggers() []Trigger {
	return []Trigger{
		TriggerJoin,
		TriggerQuit,
		TriggerChat,
		TriggerBlockBreak,
		TriggerDeath,
		TriggerRespawn,
		TriggerActorDamage,
		TriggerObjectDamage,
	}
}

// Valid reports whether t is one of the known trigger kinds
func (t Trigger) Valid() bool {
	for _, known := range AllTriggers() {
		if t == known {
			return true
		}
	}
	return false
}

// Script is the parsed form of one source file.
// It is never mutated after parsing; a reload replaces it wholesale.
type Script struct {
	Name     string          `json:"name"`
	Handlers []EventHandler  `json:"handlers,omitempty"`
	Commands []CustomCommand `json:"commands,omitempty"`
}

// Empty reports whether the script declares nothing runnable
func (s *Script) Empty() bool {
	return s == nil || (len(s.Handlers) == 0 && len(s.Commands) == 0)
}

// HandlersFor returns the handlers bound to trigger, in source order
func (s *Script) HandlersFor(trigger Trigger) []EventHandler {
	if s == nil {
		return nil
	}
	var out []EventHandler
	for _, h := range s.Handlers {
		if h.Trigger == trigger {
			out = append(out, h)
		}
	}
	return out
}

// EventHandler binds one trigger to an ordered action sequence.
// Conditional blocks appear inline as ActionNested entries.
type EventHandler struct {
	Trigger Trigger  `json:"trigger"`
	Actions []Action `json:"actions"`
	Line    int      `json:"line"`
}

// ConditionalBlock is one `jika` statement. An else-if is stored as a
// single ActionNested element in Else, forming a singly linked chain.
type ConditionalBlock struct {
	Condition Condition `json:"-"`
	Then      []Action  `json:"then,omitempty"`
	Else      []Action  `json:"else,omitempty"`
	Line      int       `json:"line"`
}

// CustomCommand is a `perintah` declaration
type CustomCommand struct {
	Name        string   `json:"name"`
	Args        []string `json:"args,omitempty"`
	Permission  string   `json:"permission,omitempty"`
	Description string   `json:"description,omitempty"`
	Actions     []Action `json:"actions"`
	Line        int      `json:"line"`
}
