package runner

import (
	"time"

	"github.com/jwebster45206/nusantara/pkg/actor"
)

// Step actions
const (
	DoJoin    = "join"
	DoQuit    = "quit"
	DoChat    = "chat"
	DoBreak   = "break"
	DoDamage  = "damage"
	DoDeath   = "death"
	DoRespawn = "respawn"
	DoHit     = "hit"
	DoHold    = "hold"
	DoFly     = "fly"
	DoSneak   = "sneak"
	DoCommand = "command"
	DoConsole = "console"
	DoReload  = "reload"
	DoLoad    = "load"
)

// TestSuite defines a complete scripted scenario.
// It either has Steps or sequences other Cases.
type TestSuite struct {
	Name      string            `yaml:"name"`
	Scripts   map[string]string `yaml:"scripts,omitempty"`   // file name -> source
	Players   []PlayerSeed      `yaml:"players,omitempty"`   // joined before the first step, without firing join
	Variables VariableSeed      `yaml:"variables,omitempty"` // loaded before the scripts
	Steps     []TestStep        `yaml:"steps,omitempty"`
	Cases     []string          `yaml:"cases,omitempty"`
}

// IsSequence returns true if this is a suite that sequences other cases
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

type PlayerSeed struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	HP          int      `yaml:"hp,omitempty"`
	HeldItem    string   `yaml:"held_item,omitempty"`
	World       string   `yaml:"world,omitempty"`
	Permissions []string `yaml:"permissions,omitempty"`
	Flying      bool     `yaml:"flying,omitempty"`
	Sneaking    bool     `yaml:"sneaking,omitempty"`
}

// Spec converts the seed to a player spec
func (p PlayerSeed) Spec() *actor.PlayerSpec {
	name := p.Name
	if name == "" {
		name = p.ID
	}
	world := p.World
	if world == "" {
		world = "world"
	}
	return &actor.PlayerSpec{
		ID:          p.ID,
		Name:        name,
		HP:          p.HP,
		HeldItem:    p.HeldItem,
		Flying:      p.Flying,
		Sneaking:    p.Sneaking,
		Permissions: p.Permissions,
		Position:    actor.Position{World: world},
	}
}

type VariableSeed struct {
	Global map[string]string            `yaml:"global,omitempty"`
	Player map[string]map[string]string `yaml:"player,omitempty"`
}

// TestStep drives one host event and checks what followed
type TestStep struct {
	Name string `yaml:"name,omitempty"`
	Do   string `yaml:"do"`
	As   string `yaml:"as,omitempty"` // player id; empty for console and admin steps

	Text     string   `yaml:"text,omitempty"`     // chat message, kick reason
	Material string   `yaml:"material,omitempty"` // block, held item, creature kind
	Amount   float64  `yaml:"amount,omitempty"`   // damage
	Cause    string   `yaml:"cause,omitempty"`
	Command  string   `yaml:"command,omitempty"`
	Args     []string `yaml:"args,omitempty"`
	Script   string   `yaml:"script,omitempty"` // load: file name
	Source   string   `yaml:"source,omitempty"` // load: script text

	Expectations Expectations `yaml:"expect"`
}

// Expectations defines what to check after a step executes. Inbox,
// Broadcasts and Console only see effects produced by this step.
type Expectations struct {
	Cancelled   *bool             `yaml:"cancelled,omitempty"`
	Error       string            `yaml:"error,omitempty"` // substring; "" requires success
	Inbox       []string          `yaml:"inbox,omitempty"` // exact, in order
	InboxNone   bool              `yaml:"inbox_none,omitempty"`
	Broadcasts  []string          `yaml:"broadcasts,omitempty"`
	Console     []string          `yaml:"console,omitempty"`
	Effects     []string          `yaml:"effects,omitempty"` // kinds, in order
	Vars        map[string]string `yaml:"vars,omitempty"`    // script names resolved for the step's player; "" means unset
	Inventory   map[string]int    `yaml:"inventory,omitempty"`
	HP          *int              `yaml:"hp,omitempty"`
	Food        *int              `yaml:"food,omitempty"`
	Online      *bool             `yaml:"online,omitempty"`
	World       string            `yaml:"world,omitempty"`
	Dead        *bool             `yaml:"dead,omitempty"`
	Effect      string            `yaml:"potion,omitempty"` // active potion effect name
	Diagnostics *int              `yaml:"diagnostics,omitempty"`
	Loaded      *int              `yaml:"loaded,omitempty"`
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	TestName string
	StepName string
	Success  bool
	Error    error
	Duration time.Duration
}

// TestJob represents a test suite to be executed
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult contains the results of running an entire test suite
type TestRunResult struct {
	Job      TestJob
	Results  []TestResult
	Error    error
	Duration time.Duration
	WorldID  string
}
