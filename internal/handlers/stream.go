package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jwebster45206/nusantara/internal/sim"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// EffectSource yields live effects. *sim.World and *events.Broadcaster
// satisfy it.
type EffectSource interface {
	Subscribe(buffer int) (<-chan sim.Effect, func())
}

// StreamHandler upgrades GET /v1/effects/stream to a websocket and writes
// one JSON message per effect. An optional ?player= filter limits the feed
// to that player's effects plus broadcasts.
type StreamHandler struct {
	source   EffectSource
	upgrader websocket.Upgrader
	log      *slog.Logger
}

func NewStreamHandler(source EffectSource, log *slog.Logger) *StreamHandler {
	return &StreamHandler{
		source: source,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	player := r.URL.Query().Get("player")
	effects, cancel := h.source.Subscribe(64)
	defer cancel()

	h.log.Info("Effect stream opened", "remote_addr", r.RemoteAddr, "player", player)
	defer h.log.Info("Effect stream closed", "remote_addr", r.RemoteAddr)

	// the read pump only watches for the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case fx, ok := <-effects:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				return
			}
			if player != "" && fx.PlayerID != "" && fx.PlayerID != player {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(fx); err != nil {
				h.log.Debug("Effect stream write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
