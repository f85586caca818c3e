package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jwebster45206/nusantara/pkg/parser"
	"github.com/jwebster45206/nusantara/pkg/script"
	"github.com/jwebster45206/nusantara/pkg/vars"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ScriptExt is the extension of script files picked up by LoadFS
const ScriptExt = ".ns"

const tracerName = "github.com/jwebster45206/nusantara/pkg/engine"

// Config wires an Engine to its host
type Config struct {
	Effects     Effects
	Store       *vars.Store      // defaults to an empty store
	Persistence vars.Persistence // optional
	Registrar   CommandRegistrar // optional
	ColorMarker string           // defaults to DefaultColorMarker
	Logger      *slog.Logger
	Tracer      trace.Tracer // defaults to the global otel provider
}

type handlerRef struct {
	script  string
	handler script.EventHandler
}

// ScriptInfo summarizes one loaded script
type ScriptInfo struct {
	Name     string `json:"name"`
	Handlers int    `json:"handlers"`
	Commands int    `json:"commands"`
}

// Info summarizes the engine state
type Info struct {
	Scripts    int                    `json:"scripts"`
	Commands   int                    `json:"commands"`
	Variables  int                    `json:"variables"`
	Handlers   map[script.Trigger]int `json:"handlers"`
	Dispatches map[script.Trigger]int `json:"dispatches"`
}

// Engine owns the loaded scripts, the variable store and the executor.
// It is safe for concurrent use, but handlers should be dispatched from a
// single goroutine so their effects apply in event order.
type Engine struct {
	log       *slog.Logger
	parser    *parser.Parser
	store     *vars.Store
	persist   vars.Persistence
	registrar CommandRegistrar
	exec      *Executor
	tracer    trace.Tracer

	mu         sync.RWMutex
	source     fs.FS
	scripts    map[string]*script.Script
	diags      map[string][]parser.Diagnostic
	handlers   map[script.Trigger][]handlerRef
	commands   map[string]script.CustomCommand
	registered map[string]bool

	dispatches sync.Map // script.Trigger -> *atomic.Int64
}

func New(cfg Config) *Engine {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	store := cfg.Store
	if store == nil {
		store = vars.NewStore()
	}
	marker := cfg.ColorMarker
	if marker == "" {
		marker = DefaultColorMarker
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	return &Engine{
		log:        log,
		parser:     parser.New(log),
		store:      store,
		persist:    cfg.Persistence,
		registrar:  cfg.Registrar,
		exec:       NewExecutor(store, cfg.Effects, marker, log),
		tracer:     tracer,
		scripts:    make(map[string]*script.Script),
		diags:      make(map[string][]parser.Diagnostic),
		handlers:   make(map[script.Trigger][]handlerRef),
		commands:   make(map[string]script.CustomCommand),
		registered: make(map[string]bool),
	}
}

// Store returns the engine's variable store
func (e *Engine) Store() *vars.Store {
	return e.store
}

func (e *Engine) SetDebug(enabled bool) {
	e.exec.SetDebug(enabled)
}

// LoadVariables replaces the store contents from persistence
func (e *Engine) LoadVariables(ctx context.Context) error {
	if e.persist == nil {
		return nil
	}
	if err := e.store.LoadFrom(ctx, e.persist); err != nil {
		e.log.Error("Failed to load variables", "error", err)
		return err
	}
	e.log.Info("Variables loaded", "count", e.store.Count())
	return nil
}

// SaveVariables flushes the store to persistence
func (e *Engine) SaveVariables(ctx context.Context) error {
	if e.persist == nil {
		return nil
	}
	if err := e.store.SaveTo(ctx, e.persist); err != nil {
		e.log.Error("Failed to save variables", "error", err)
		return err
	}
	e.log.Info("Variables saved", "count", e.store.Count())
	return nil
}

// Load parses one script and registers it, replacing any script with the
// same name. A file that yields nothing runnable is rejected and leaves
// the registry untouched.
func (e *Engine) Load(name string, lines []string) (*script.Script, []parser.Diagnostic, error) {
	s, diags, err := e.parser.Parse(name, lines)

	e.mu.Lock()
	e.diags[name] = diags
	e.mu.Unlock()

	if err != nil {
		e.log.Error("Script failed to load", "script", name, "error", err, "diagnostics", len(diags))
		return nil, diags, err
	}

	e.register(s)
	e.log.Info("Script loaded",
		"script", name,
		"handlers", len(s.Handlers),
		"commands", len(s.Commands),
		"diagnostics", len(diags))
	return s, diags, nil
}

// LoadFS loads every *.ns file at the root of fsys in name order and
// remembers fsys for Reload. Files that fail are logged and skipped.
func (e *Engine) LoadFS(fsys fs.FS) (int, error) {
	e.mu.Lock()
	e.source = fsys
	e.mu.Unlock()
	return e.loadAll(fsys)
}

func (e *Engine) loadAll(fsys fs.FS) (int, error) {
	names, err := fs.Glob(fsys, "*"+ScriptExt)
	if err != nil {
		return 0, fmt.Errorf("failed to list scripts: %w", err)
	}
	sort.Strings(names)

	loaded := 0
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			e.log.Error("Failed to read script", "script", name, "error", err)
			continue
		}
		if len(bytes.TrimSpace(data)) == 0 {
			e.log.Debug("Skipping empty script", "script", name)
			continue
		}
		if _, _, err := e.Load(path.Base(name), parser.SplitLines(string(data))); err == nil {
			loaded++
		}
	}

	e.log.Info("Scripts loaded", "loaded", loaded, "found", len(names))
	return loaded, nil
}

// Reload flushes variables, clears every registry and loads the scripts
// again from the source given to LoadFS. Commands that no longer exist stay
// registered with the host but answer with ErrUnknownCommand.
func (e *Engine) Reload(ctx context.Context) (int, error) {
	_ = e.SaveVariables(ctx)

	e.mu.Lock()
	e.scripts = make(map[string]*script.Script)
	e.diags = make(map[string][]parser.Diagnostic)
	e.handlers = make(map[script.Trigger][]handlerRef)
	e.commands = make(map[string]script.CustomCommand)
	source := e.source
	e.mu.Unlock()

	if source == nil {
		return 0, nil
	}
	return e.loadAll(source)
}

// Close flushes variables to persistence
func (e *Engine) Close(ctx context.Context) error {
	return e.SaveVariables(ctx)
}

func (e *Engine) register(s *script.Script) {
	e.mu.Lock()

	if _, exists := e.scripts[s.Name]; exists {
		e.unregisterLocked(s.Name)
	}
	e.scripts[s.Name] = s

	for _, h := range s.Handlers {
		e.handlers[h.Trigger] = append(e.handlers[h.Trigger], handlerRef{script: s.Name, handler: h})
	}

	var fresh []script.CustomCommand
	for _, cmd := range s.Commands {
		if prev, ok := e.commands[cmd.Name]; ok {
			e.log.Warn("Command redefined", "command", cmd.Name, "script", s.Name, "previous_line", prev.Line)
		}
		e.commands[cmd.Name] = cmd
		if !e.registered[cmd.Name] {
			e.registered[cmd.Name] = true
			fresh = append(fresh, cmd)
		}
	}
	e.mu.Unlock()

	if e.registrar == nil {
		return
	}
	for _, cmd := range fresh {
		name := cmd.Name
		invoke := func(ctx context.Context, inv Invoker, args []string) error {
			return e.ExecuteCommand(ctx, name, inv, args)
		}
		if err := e.registrar.RegisterCommand(name, cmd.Permission, cmd.Description, invoke); err != nil {
			e.log.Error("Failed to register command", "command", name, "error", err)
			e.mu.Lock()
			delete(e.registered, name)
			e.mu.Unlock()
		}
	}
}

// unregisterLocked drops a script's handlers and commands. e.mu must be held.
func (e *Engine) unregisterLocked(name string) {
	for trigger, refs := range e.handlers {
		kept := refs[:0:0]
		for _, ref := range refs {
			if ref.script != name {
				kept = append(kept, ref)
			}
		}
		e.handlers[trigger] = kept
	}
	for _, cmd := range e.scripts[name].Commands {
		delete(e.commands, cmd.Name)
	}
	delete(e.scripts, name)
}

// Dispatch runs every handler bound to trigger, in load order, on the
// calling goroutine. A failing handler does not stop the others.
// It returns the number of handlers run.
func (e *Engine) Dispatch(ctx context.Context, trigger script.Trigger, rc *Context) int {
	ctx, span := e.tracer.Start(ctx, "engine.Dispatch",
		trace.WithAttributes(attribute.String("nusantara.trigger", string(trigger))))
	defer span.End()

	if rc == nil {
		rc = NewContext(nil)
	}

	e.mu.RLock()
	refs := e.handlers[trigger]
	e.mu.RUnlock()

	counter, _ := e.dispatches.LoadOrStore(trigger, new(atomic.Int64))
	counter.(*atomic.Int64).Add(1)

	failed := 0
	for _, ref := range refs {
		if err := e.exec.ExecuteHandler(ctx, ref.handler, rc); err != nil {
			failed++
			e.log.Error("Handler failed", "script", ref.script, "trigger", trigger, "error", err)
		}
	}

	span.SetAttributes(
		attribute.Int("nusantara.handlers", len(refs)),
		attribute.Bool("nusantara.cancelled", rc.Cancelled()))
	if failed > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d handlers failed", failed))
	}
	return len(refs)
}

// ExecuteCommand runs the current definition of a custom command
func (e *Engine) ExecuteCommand(ctx context.Context, name string, inv Invoker, args []string) error {
	name = strings.ToLower(strings.TrimPrefix(name, "/"))
	ctx, span := e.tracer.Start(ctx, "engine.ExecuteCommand",
		trace.WithAttributes(attribute.String("nusantara.command", name)))
	defer span.End()

	e.mu.RLock()
	cmd, ok := e.commands[name]
	e.mu.RUnlock()
	if !ok {
		err := fmt.Errorf("/%s: %w", name, ErrUnknownCommand)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	err := e.exec.ExecuteCommand(ctx, cmd, inv, args)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if !errors.Is(err, ErrPermissionDenied) {
			e.log.Error("Command failed", "command", name, "invoker", inv.Name(), "error", err)
		}
	}
	return err
}

// Scripts lists loaded scripts by name
func (e *Engine) Scripts() []ScriptInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]ScriptInfo, 0, len(e.scripts))
	for _, s := range e.scripts {
		out = append(out, ScriptInfo{Name: s.Name, Handlers: len(s.Handlers), Commands: len(s.Commands)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Script returns a loaded script by name
func (e *Engine) Script(name string) (*script.Script, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.scripts[name]
	return s, ok
}

// Commands lists the currently defined custom commands by name
func (e *Engine) Commands() []script.CustomCommand {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]script.CustomCommand, 0, len(e.commands))
	for _, cmd := range e.commands {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Diagnostics returns the problems found the last time name was parsed
func (e *Engine) Diagnostics(name string) []parser.Diagnostic {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.diags[name]
}

func (e *Engine) Info() Info {
	e.mu.RLock()
	info := Info{
		Scripts:    len(e.scripts),
		Commands:   len(e.commands),
		Handlers:   make(map[script.Trigger]int),
		Dispatches: make(map[script.Trigger]int),
	}
	for trigger, refs := range e.handlers {
		if len(refs) > 0 {
			info.Handlers[trigger] = len(refs)
		}
	}
	e.mu.RUnlock()

	e.dispatches.Range(func(k, v any) bool {
		info.Dispatches[k.(script.Trigger)] = int(v.(*atomic.Int64).Load())
		return true
	})
	info.Variables = e.store.Count()
	return info
}
