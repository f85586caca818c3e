package handlers

import (
	"log/slog"
	"net/http"

	"github.com/jwebster45206/nusantara/internal/sim"
	"github.com/jwebster45206/nusantara/pkg/engine"
)

type InfoResponse struct {
	engine.Info
	WorldID string `json:"world_id"`
	Players int    `json:"players"`
	Online  int    `json:"online"`
}

// InfoHandler reports engine and world statistics
type InfoHandler struct {
	engine *engine.Engine
	world  *sim.World
	log    *slog.Logger
}

func NewInfoHandler(eng *engine.Engine, world *sim.World, log *slog.Logger) *InfoHandler {
	return &InfoHandler{engine: eng, world: world, log: log}
}

func (h *InfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, h.log, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	resp := InfoResponse{Info: h.engine.Info(), WorldID: h.world.ID()}
	for _, p := range h.world.Players() {
		resp.Players++
		if p.Online() {
			resp.Online++
		}
	}
	writeJSON(w, h.log, http.StatusOK, resp)
}

type CommandsResponse struct {
	Commands []sim.CommandInfo `json:"commands"`
}

// CommandsHandler lists the commands registered with the world
type CommandsHandler struct {
	world *sim.World
	log   *slog.Logger
}

func NewCommandsHandler(world *sim.World, log *slog.Logger) *CommandsHandler {
	return &CommandsHandler{world: world, log: log}
}

func (h *CommandsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, h.log, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	writeJSON(w, h.log, http.StatusOK, CommandsResponse{Commands: h.world.Commands()})
}
