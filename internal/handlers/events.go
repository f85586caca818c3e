package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jwebster45206/nusantara/internal/sim"
	"github.com/jwebster45206/nusantara/pkg/engine"
	"github.com/jwebster45206/nusantara/pkg/queue"
)

const maxEventBody = 1 << 20

// Enqueuer hands events to a worker. *queue.EventQueue satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, ev *queue.Event) error
}

type EventResponse struct {
	EventID string `json:"event_id"`
	Status  string `json:"status"`
}

// EventsHandler accepts host events on POST /v1/events. With a queue the
// event is enqueued for a worker and 202 is returned; without one it runs
// on the local loop before responding.
type EventsHandler struct {
	queue  Enqueuer
	runner Runner
	server *sim.Server
	log    *slog.Logger
}

func NewEventsHandler(q Enqueuer, runner Runner, server *sim.Server, log *slog.Logger) *EventsHandler {
	return &EventsHandler{queue: q, runner: runner, server: server, log: log}
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, h.log, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported.")
		return
	}

	var ev queue.Event
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBody)).Decode(&ev); err != nil {
		writeError(w, h.log, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := ev.Validate(); err != nil {
		writeError(w, h.log, http.StatusBadRequest, err.Error())
		return
	}
	if ev.EventID == "" {
		ev.EventID = uuid.New().String()
	}

	if h.queue != nil {
		if err := h.queue.Enqueue(r.Context(), &ev); err != nil {
			h.log.Error("Failed to enqueue event", "error", err, "event_id", ev.EventID)
			writeError(w, h.log, http.StatusInternalServerError, "Failed to enqueue event")
			return
		}
		writeJSON(w, h.log, http.StatusAccepted, EventResponse{EventID: ev.EventID, Status: "queued"})
		return
	}

	err := h.runner.Do(r.Context(), func(ctx context.Context) error {
		return h.server.Handle(ctx, &ev)
	})
	switch {
	case err == nil:
		writeJSON(w, h.log, http.StatusOK, EventResponse{EventID: ev.EventID, Status: "handled"})
	case errors.Is(err, sim.ErrUnknownPlayer), errors.Is(err, sim.ErrUnknownCommand), errors.Is(err, engine.ErrUnknownCommand):
		writeError(w, h.log, http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrPermissionDenied):
		writeError(w, h.log, http.StatusForbidden, err.Error())
	default:
		h.log.Error("Failed to handle event", "error", err, "event_id", ev.EventID)
		writeError(w, h.log, http.StatusInternalServerError, "Failed to handle event")
	}
}
