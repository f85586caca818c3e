package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing/fstest"
	"time"

	"github.com/jwebster45206/nusantara/internal/sim"
	"github.com/jwebster45206/nusantara/internal/storage"
	"github.com/jwebster45206/nusantara/pkg/actor"
	"github.com/jwebster45206/nusantara/pkg/engine"
	"github.com/jwebster45206/nusantara/pkg/parser"
	"github.com/jwebster45206/nusantara/pkg/queue"
	"github.com/jwebster45206/nusantara/pkg/script"
	"github.com/jwebster45206/nusantara/pkg/vars"
	"gopkg.in/yaml.v3"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// Runner executes scripted scenarios against a fresh in-process world
type Runner struct {
	Logger            func(format string, args ...interface{})
	ErrorHandlingMode ErrorHandlingMode
	ColorMarker       string
	Log               *slog.Logger // engine and world logging
}

// NewRunner creates a new test runner
func NewRunner() *Runner {
	return &Runner{
		Logger:            func(string, ...interface{}) {},
		ErrorHandlingMode: ErrorHandlingContinue,
		ColorMarker:       "&",
		Log:               slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})),
	}
}

// LoadTestSuite loads a test suite from a YAML file
func LoadTestSuite(filename string) (TestSuite, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}

	var suite TestSuite
	if err := yaml.Unmarshal(content, &suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse YAML in %s: %w", filename, err)
	}
	return suite, nil
}

// LoadTestSuiteWithExpansion loads a test suite and expands it if it's a sequence
func LoadTestSuiteWithExpansion(filename string, casesDir string) ([]TestJob, error) {
	suite, err := LoadTestSuite(filename)
	if err != nil {
		return nil, err
	}

	if !suite.IsSequence() {
		return []TestJob{{
			Name:     suite.Name,
			Suite:    suite,
			CaseFile: filename,
		}}, nil
	}

	var jobs []TestJob
	for _, caseFile := range suite.Cases {
		casePath := filepath.Join(casesDir, caseFile)

		// a sequence may reference another sequence
		subJobs, err := LoadTestSuiteWithExpansion(casePath, casesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load case '%s' referenced by sequence '%s': %w", caseFile, suite.Name, err)
		}
		jobs = append(jobs, subJobs...)
	}
	return jobs, nil
}

// harness is the world one suite runs in
type harness struct {
	world  *sim.World
	engine *engine.Engine
	server *sim.Server
	files  fstest.MapFS
}

func (r *Runner) newHarness(suite TestSuite) (*harness, error) {
	world := sim.NewWorld(r.Log)
	persistence := storage.NewMemoryVariables()
	persistence.Seed(suite.Variables.Global, suite.Variables.Player)

	eng := engine.New(engine.Config{
		Effects:     world,
		Persistence: persistence,
		Registrar:   world,
		ColorMarker: r.ColorMarker,
		Logger:      r.Log,
	})
	if err := eng.LoadVariables(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to seed variables: %w", err)
	}

	files := fstest.MapFS{}
	for name, src := range suite.Scripts {
		files[name] = &fstest.MapFile{Data: []byte(src)}
	}
	if _, err := eng.LoadFS(files); err != nil {
		return nil, err
	}
	for name := range suite.Scripts {
		if _, ok := eng.Script(name); !ok {
			return nil, fmt.Errorf("script %s did not load", name)
		}
	}

	for _, seed := range suite.Players {
		p, err := actor.NewPlayerFromSpec(seed.Spec())
		if err != nil {
			return nil, fmt.Errorf("failed to seed player %s: %w", seed.ID, err)
		}
		p.SetOnline(true)
		world.AddPlayer(p)
	}

	return &harness{
		world:  world,
		engine: eng,
		server: sim.NewServer(world, eng, r.Log),
		files:  files,
	}, nil
}

// RunSuite executes a complete test suite
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	result := TestRunResult{
		Job: TestJob{
			Name:  suite.Name,
			Suite: suite,
		},
		Results: make([]TestResult, 0, len(suite.Steps)),
	}

	h, err := r.newHarness(suite)
	if err != nil {
		result.Error = fmt.Errorf("failed to set up suite: %w", err)
		result.Duration = time.Since(start)
		return result, result.Error
	}
	result.WorldID = h.world.ID()

	for i, step := range suite.Steps {
		if step.Name == "" {
			step.Name = fmt.Sprintf("%s %s", step.Do, step.As)
		}
		r.Logger("    [%d/%d] Running step: %s", i+1, len(suite.Steps), step.Name)

		stepResult := r.runStep(ctx, h, step)
		stepResult.TestName = suite.Name
		result.Results = append(result.Results, stepResult)

		if stepResult.Error != nil {
			r.Logger("    [%d/%d] ✗ %s: %v", i+1, len(suite.Steps), step.Name, stepResult.Error)
			if result.Error == nil {
				result.Error = fmt.Errorf("step %d (%s) failed: %w", i, step.Name, stepResult.Error)
			}
			if r.ErrorHandlingMode == ErrorHandlingExit {
				break
			}
			continue
		}
		r.Logger("    [%d/%d] ✓ %s (%v)", i+1, len(suite.Steps), step.Name, stepResult.Duration)
	}

	result.Duration = time.Since(start)
	return result, result.Error
}

// outcome is what a step produced besides effects
type outcome struct {
	cancelled   bool
	diagnostics int
	loaded      int
}

func (r *Runner) runStep(ctx context.Context, h *harness, step TestStep) TestResult {
	start := time.Now()
	result := TestResult{StepName: step.Name}

	before := len(h.world.History())
	out, err := r.executeStep(ctx, h, step)
	history := h.world.History()
	var produced []sim.Effect
	if before <= len(history) {
		produced = history[before:]
	}

	result.Error = checkExpectations(h, step, out, err, produced)
	result.Success = result.Error == nil
	result.Duration = time.Since(start)
	return result
}

func (r *Runner) executeStep(ctx context.Context, h *harness, step TestStep) (outcome, error) {
	var out outcome
	var err error
	s := h.server

	switch step.Do {
	case DoJoin:
		// Text names the player, Args are its permissions
		spec := PlayerSeed{ID: step.As, Name: step.Text, Permissions: step.Args}.Spec()
		_, err = s.Join(ctx, spec)
	case DoQuit:
		err = s.Quit(ctx, step.As)
	case DoChat:
		out.cancelled, err = s.Chat(ctx, step.As, step.Text)
	case DoBreak:
		var p *actor.Player
		if p, err = r.player(h, step.As); err == nil {
			out.cancelled, err = s.BreakBlock(ctx, step.As, actor.NewBlock(step.Material, p.Position()))
		}
	case DoDamage:
		out.cancelled, err = s.Damage(ctx, step.As, step.Amount, step.Cause)
	case DoDeath:
		err = r.death(ctx, h, step)
	case DoRespawn:
		err = s.Respawn(ctx, step.As)
	case DoHit:
		var p *actor.Player
		if p, err = r.player(h, step.As); err == nil {
			c := actor.NewCreature(step.Material, step.Material, 20, p.Position())
			out.cancelled, err = s.DamageCreature(ctx, step.As, c, step.Amount)
		}
	case DoHold, DoFly, DoSneak:
		var p *actor.Player
		if p, err = r.player(h, step.As); err == nil {
			switch step.Do {
			case DoHold:
				p.SetHeldItem(step.Material)
			case DoFly:
				p.SetFlying(!p.IsFlying())
			case DoSneak:
				p.SetSneaking(!p.IsSneaking())
			}
		}
	case DoCommand:
		err = s.Command(ctx, step.As, step.Command, step.Args)
	case DoConsole:
		err = s.Command(ctx, "", step.Command, step.Args)
	case DoReload:
		out.loaded, err = h.engine.Reload(ctx)
	case DoLoad:
		h.files[step.Script] = &fstest.MapFile{Data: []byte(step.Source)}
		var diags []parser.Diagnostic
		_, diags, err = h.engine.Load(step.Script, parser.SplitLines(step.Source))
		out.diagnostics = len(diags)
	default:
		err = fmt.Errorf("unknown step action %q", step.Do)
	}
	return out, err
}

// death runs the death handlers through an event, the way a queued death
// arrives from a host
func (r *Runner) death(ctx context.Context, h *harness, step TestStep) error {
	ev := queue.NewTriggerEvent(script.TriggerDeath, step.As)
	ev.Cause = step.Cause
	return h.server.Handle(ctx, ev)
}

func (r *Runner) player(h *harness, id string) (*actor.Player, error) {
	p, ok := h.world.Player(id)
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, sim.ErrUnknownPlayer)
	}
	return p, nil
}

func checkExpectations(h *harness, step TestStep, out outcome, stepErr error, produced []sim.Effect) error {
	exp := step.Expectations
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	switch {
	case exp.Error == "" && stepErr != nil:
		fail("unexpected error: %v", stepErr)
	case exp.Error != "" && stepErr == nil:
		fail("expected error containing %q, got none", exp.Error)
	case exp.Error != "" && !strings.Contains(stepErr.Error(), exp.Error):
		fail("expected error containing %q, got %v", exp.Error, stepErr)
	}

	if exp.Cancelled != nil && *exp.Cancelled != out.cancelled {
		fail("cancelled = %t, want %t", out.cancelled, *exp.Cancelled)
	}
	if exp.Diagnostics != nil && *exp.Diagnostics != out.diagnostics {
		fail("diagnostics = %d, want %d", out.diagnostics, *exp.Diagnostics)
	}
	if exp.Loaded != nil && *exp.Loaded != out.loaded {
		fail("loaded = %d, want %d", out.loaded, *exp.Loaded)
	}

	var inbox, broadcasts, console, kinds []string
	for _, fx := range produced {
		kinds = append(kinds, fx.Kind)
		switch fx.Kind {
		case script.ActionSendMessage.String():
			if fx.PlayerID == step.As {
				inbox = append(inbox, fx.Text)
			}
		case script.ActionBroadcast.String():
			broadcasts = append(broadcasts, fx.Text)
		case sim.EffectConsole:
			console = append(console, fx.Text)
		}
	}
	if exp.Inbox != nil && !slices.Equal(exp.Inbox, inbox) {
		fail("inbox = %q, want %q", inbox, exp.Inbox)
	}
	if exp.InboxNone && len(inbox) > 0 {
		fail("inbox = %q, want nothing", inbox)
	}
	if exp.Broadcasts != nil && !slices.Equal(exp.Broadcasts, broadcasts) {
		fail("broadcasts = %q, want %q", broadcasts, exp.Broadcasts)
	}
	if exp.Console != nil && !slices.Equal(exp.Console, console) {
		fail("console = %q, want %q", console, exp.Console)
	}
	if exp.Effects != nil && !slices.Equal(exp.Effects, kinds) {
		fail("effects = %q, want %q", kinds, exp.Effects)
	}

	store := h.engine.Store()
	for name, want := range exp.Vars {
		scope, key := vars.Resolve(name, step.As)
		got, ok := store.Get(scope, key)
		switch {
		case want == "" && ok:
			fail("variable %s = %q, want unset", name, got)
		case want != "" && got != want:
			fail("variable %s = %q, want %q", name, got, want)
		}
	}

	if needsPlayer(exp) {
		p, ok := h.world.Player(step.As)
		if !ok {
			fail("player %q not found", step.As)
			return errors.Join(errs...)
		}
		for material, want := range exp.Inventory {
			if got := p.ItemCount(material); got != want {
				fail("inventory %s = %d, want %d", material, got, want)
			}
		}
		if exp.HP != nil && int(p.Health()) != *exp.HP {
			fail("hp = %v, want %d", p.Health(), *exp.HP)
		}
		if exp.Food != nil && p.Food() != *exp.Food {
			fail("food = %d, want %d", p.Food(), *exp.Food)
		}
		if exp.Online != nil && p.Online() != *exp.Online {
			fail("online = %t, want %t", p.Online(), *exp.Online)
		}
		if exp.World != "" && p.World() != exp.World {
			fail("world = %q, want %q", p.World(), exp.World)
		}
		if exp.Dead != nil && p.IsDead() != *exp.Dead {
			fail("dead = %t, want %t", p.IsDead(), *exp.Dead)
		}
		if exp.Effect != "" {
			if _, ok := p.Effect(exp.Effect); !ok {
				fail("potion effect %s not active", exp.Effect)
			}
		}
	}

	return errors.Join(errs...)
}

func needsPlayer(exp Expectations) bool {
	return exp.Inventory != nil || exp.HP != nil || exp.Food != nil || exp.Online != nil ||
		exp.World != "" || exp.Dead != nil || exp.Effect != ""
}
