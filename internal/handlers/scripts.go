package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/nusantara/internal/sim"
	"github.com/jwebster45206/nusantara/pkg/engine"
	"github.com/jwebster45206/nusantara/pkg/parser"
	"github.com/jwebster45206/nusantara/pkg/script"
)

// Runner runs a task in event order with dispatch. *sim.Loop satisfies it.
type Runner interface {
	Do(ctx context.Context, task sim.Task) error
}

type ScriptListResponse struct {
	Scripts []engine.ScriptInfo `json:"scripts"`
}

type ScriptResponse struct {
	Script      *script.Script      `json:"script"`
	Diagnostics []parser.Diagnostic `json:"diagnostics"`
}

type ReloadResponse struct {
	Loaded int `json:"loaded"`
}

// ScriptsHandler serves the script admin surface:
//
//	GET  /v1/scripts          list loaded scripts
//	GET  /v1/scripts/{name}   one script and its parse diagnostics
//	POST /v1/scripts/reload   reload every script from disk
type ScriptsHandler struct {
	engine *engine.Engine
	runner Runner
	log    *slog.Logger
}

func NewScriptsHandler(eng *engine.Engine, runner Runner, log *slog.Logger) *ScriptsHandler {
	return &ScriptsHandler{engine: eng, runner: runner, log: log}
}

func (h *ScriptsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/scripts"), "/")

	switch {
	case name == "reload":
		if r.Method != http.MethodPost {
			writeError(w, h.log, http.StatusMethodNotAllowed, "Method not allowed. Use POST to reload.")
			return
		}
		h.handleReload(w, r)
	case r.Method != http.MethodGet:
		writeError(w, h.log, http.StatusMethodNotAllowed, "Method not allowed")
	case name == "":
		writeJSON(w, h.log, http.StatusOK, ScriptListResponse{Scripts: h.engine.Scripts()})
	default:
		h.handleGet(w, name)
	}
}

func (h *ScriptsHandler) handleGet(w http.ResponseWriter, name string) {
	if strings.Contains(name, "..") || strings.Contains(name, "/") {
		writeError(w, h.log, http.StatusBadRequest, "Invalid script name")
		return
	}
	if !strings.HasSuffix(name, engine.ScriptExt) {
		name += engine.ScriptExt
	}
	s, ok := h.engine.Script(name)
	if !ok {
		writeError(w, h.log, http.StatusNotFound, "Script not found")
		return
	}
	diags := h.engine.Diagnostics(name)
	if diags == nil {
		diags = []parser.Diagnostic{}
	}
	writeJSON(w, h.log, http.StatusOK, ScriptResponse{Script: s, Diagnostics: diags})
}

func (h *ScriptsHandler) handleReload(w http.ResponseWriter, r *http.Request) {
	var loaded int
	err := h.runner.Do(r.Context(), func(ctx context.Context) error {
		var err error
		loaded, err = h.engine.Reload(ctx)
		return err
	})
	if err != nil {
		h.log.Error("Reload failed", "error", err)
		writeError(w, h.log, http.StatusInternalServerError, "Reload failed")
		return
	}
	h.log.Info("Scripts reloaded", "loaded", loaded)
	writeJSON(w, h.log, http.StatusOK, ReloadResponse{Loaded: loaded})
}
