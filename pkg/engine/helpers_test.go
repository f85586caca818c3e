package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/jwebster45206/nusantara/pkg/parser"
	"github.com/jwebster45206/nusantara/pkg/script"
	"github.com/jwebster45206/nusantara/pkg/vars"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeEntity struct {
	id, name, world, held string
	health               float64
	flying, sneaking     bool
	perms                map[string]bool
}

func player(name string) *fakeEntity {
	return &fakeEntity{
		id:     strings.ToLower(name),
		name:   name,
		world:  "world",
		health: 20,
		perms:  map[string]bool{},
	}
}

func (f *fakeEntity) ID() string                     { return f.id }
func (f *fakeEntity) Name() string                   { return f.name }
func (f *fakeEntity) Health() float64                { return f.health }
func (f *fakeEntity) IsFlying() bool                 { return f.flying }
func (f *fakeEntity) IsSneaking() bool               { return f.sneaking }
func (f *fakeEntity) HeldItem() string               { return f.held }
func (f *fakeEntity) HasPermission(node string) bool { return f.perms[node] }
func (f *fakeEntity) World() string                  { return f.world }

type fakeTarget struct {
	material string
	tool     string
}

func (t fakeTarget) Material() string { return t.material }
func (t fakeTarget) PrefersTool(item string) bool {
	return t.tool == "" || strings.HasSuffix(item, t.tool)
}

type fakeEvent struct{ cancelled bool }

func (e *fakeEvent) SetCancelled(c bool) { e.cancelled = c }

// recordingEffects captures every effect as a readable line
type recordingEffects struct {
	mu   sync.Mutex
	log  []string
	fail map[string]error
}

func newRecorder() *recordingEffects {
	return &recordingEffects{fail: map[string]error{}}
}

func (r *recordingEffects) record(kind, format string, args ...any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail[kind]; err != nil {
		return err
	}
	r.log = append(r.log, kind+" "+fmt.Sprintf(format, args...))
	return nil
}

func (r *recordingEffects) lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.log...)
}

func (r *recordingEffects) SendMessage(ctx context.Context, to Entity, text string) error {
	return r.record("send", "%s: %s", to.Name(), text)
}
func (r *recordingEffects) Broadcast(ctx context.Context, text string) error {
	return r.record("broadcast", "%s", text)
}
func (r *recordingEffects) Heal(ctx context.Context, e Entity) error {
	return r.record("heal", "%s", e.Name())
}
func (r *recordingEffects) Feed(ctx context.Context, e Entity) error {
	return r.record("feed", "%s", e.Name())
}
func (r *recordingEffects) GiveItem(ctx context.Context, e Entity, material string, amount int) error {
	return r.record("give", "%s %s x%d", e.Name(), material, amount)
}
func (r *recordingEffects) Kick(ctx context.Context, e Entity, reason string) error {
	return r.record("kick", "%s: %s", e.Name(), reason)
}
func (r *recordingEffects) Teleport(ctx context.Context, e Entity, world string, x, y, z float64) error {
	return r.record("teleport", "%s %s %g %g %g", e.Name(), world, x, y, z)
}
func (r *recordingEffects) PlaySound(ctx context.Context, e Entity, sound string) error {
	return r.record("sound", "%s %s", e.Name(), sound)
}
func (r *recordingEffects) GiveEffect(ctx context.Context, e Entity, effect string, level, seconds int) error {
	return r.record("effect", "%s %s %d %ds", e.Name(), effect, level, seconds)
}

type fakeInvoker struct {
	name    string
	entity  Entity
	perms   map[string]bool
	replies []string
}

func (i *fakeInvoker) Name() string                   { return i.name }
func (i *fakeInvoker) HasPermission(node string) bool { return i.perms[node] }
func (i *fakeInvoker) Entity() Entity                 { return i.entity }
func (i *fakeInvoker) Reply(ctx context.Context, text string) error {
	i.replies = append(i.replies, text)
	return nil
}

type fakeRegistrar struct {
	commands map[string]CommandFunc
	calls    int
	failFor  string
}

func (f *fakeRegistrar) RegisterCommand(name, permission, description string, invoke CommandFunc) error {
	f.calls++
	if name == f.failFor {
		return errors.New("name taken")
	}
	if f.commands == nil {
		f.commands = map[string]CommandFunc{}
	}
	f.commands[name] = invoke
	return nil
}

// mustParse parses source lines or panics; test inputs are known-good
func mustParse(lines ...string) *script.Script {
	s, _, err := parser.New(testLogger()).Parse("test.ns", lines)
	if err != nil {
		panic(err)
	}
	return s
}

func newTestExecutor(store *vars.Store, fx Effects) *Executor {
	return NewExecutor(store, fx, DefaultColorMarker, testLogger())
}
