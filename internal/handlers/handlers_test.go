package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jwebster45206/nusantara/internal/sim"
	"github.com/jwebster45206/nusantara/pkg/actor"
	"github.com/jwebster45206/nusantara/pkg/engine"
	"github.com/jwebster45206/nusantara/pkg/queue"
	"github.com/jwebster45206/nusantara/pkg/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const greeter = `saat pemain masuk:
    kirim "Halo %player%!" ke pemain

perintah /halo:
    izin: "contoh.halo"
    deskripsi: "Menyapa"
    aksi:
        kirim "Halo!" ke pemain
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fixture struct {
	world  *sim.World
	engine *engine.Engine
	loop   *sim.Loop
	server *sim.Server
	files  fstest.MapFS
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := testLogger()
	world := sim.NewWorld(log)
	eng := engine.New(engine.Config{Effects: world, Registrar: world, Logger: log})
	files := fstest.MapFS{"greeter.ns": &fstest.MapFile{Data: []byte(greeter)}}
	n, err := eng.LoadFS(files)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	loop := sim.NewLoop(16, log)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = loop.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-loop.Done()
	})

	return &fixture{world: world, engine: eng, loop: loop, server: sim.NewServer(world, eng, log), files: files}
}

func TestHealthHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		components     map[string]Pinger
		expectedStatus int
		expectedHealth string
		expected       map[string]string
	}{
		{
			name: "all healthy",
			components: map[string]Pinger{
				"variables": PingFunc(func(context.Context) error { return nil }),
				"queue":     PingFunc(func(context.Context) error { return nil }),
			},
			expectedStatus: http.StatusOK,
			expectedHealth: "healthy",
			expected:       map[string]string{"variables": "healthy", "queue": "healthy"},
		},
		{
			name: "unhealthy queue",
			components: map[string]Pinger{
				"variables": PingFunc(func(context.Context) error { return nil }),
				"queue":     PingFunc(func(context.Context) error { return errors.New("connection refused") }),
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedHealth: "degraded",
			expected:       map[string]string{"variables": "healthy", "queue": "unhealthy"},
		},
		{
			name:           "no components",
			expectedStatus: http.StatusOK,
			expectedHealth: "healthy",
			expected:       map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(tt.components, testLogger())
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, rr.Code)
			}
			if rr.Header().Get("Content-Type") != "application/json" {
				t.Errorf("Expected Content-Type application/json, got %s", rr.Header().Get("Content-Type"))
			}

			var response HealthResponse
			if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if response.Status != tt.expectedHealth {
				t.Errorf("Expected status '%s', got '%s'", tt.expectedHealth, response.Status)
			}
			if response.Service != "nusantara" {
				t.Errorf("Expected service 'nusantara', got '%s'", response.Service)
			}
			assert.Equal(t, tt.expected, response.Components)
			if time.Since(response.Timestamp) > time.Second {
				t.Errorf("Health check timestamp seems old: %v", response.Timestamp)
			}
		})
	}
}

func TestScriptsHandler(t *testing.T) {
	f := newFixture(t)
	handler := NewScriptsHandler(f.engine, f.loop, testLogger())

	tests := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
		contains       string
	}{
		{"list", http.MethodGet, "/v1/scripts", http.StatusOK, `"name":"greeter.ns"`},
		{"get by name", http.MethodGet, "/v1/scripts/greeter", http.StatusOK, `"diagnostics":[]`},
		{"get with extension", http.MethodGet, "/v1/scripts/greeter.ns", http.StatusOK, `"script"`},
		{"missing", http.MethodGet, "/v1/scripts/nope", http.StatusNotFound, "Script not found"},
		{"traversal", http.MethodGet, "/v1/scripts/..%2Fetc", http.StatusBadRequest, "Invalid script name"},
		{"reload needs post", http.MethodGet, "/v1/scripts/reload", http.StatusMethodNotAllowed, "POST"},
		{"delete not allowed", http.MethodDelete, "/v1/scripts", http.StatusMethodNotAllowed, "Method not allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d: %s", tt.expectedStatus, rr.Code, rr.Body.String())
			}
			if !strings.Contains(rr.Body.String(), tt.contains) {
				t.Errorf("Expected body to contain %q, got %s", tt.contains, rr.Body.String())
			}
		})
	}
}

func TestScriptsHandler_Reload(t *testing.T) {
	f := newFixture(t)
	handler := NewScriptsHandler(f.engine, f.loop, testLogger())

	f.files["extra.ns"] = &fstest.MapFile{Data: []byte("saat pemain keluar:\n    broadcast \"bye\"\n")}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/scripts/reload", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp ReloadResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, 2, resp.Loaded)
	assert.Len(t, f.engine.Scripts(), 2)
}

func TestInfoAndCommandsHandlers(t *testing.T) {
	f := newFixture(t)
	_, err := f.server.Join(context.Background(), &actor.PlayerSpec{ID: "budi", Name: "Budi"})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	NewInfoHandler(f.engine, f.world, testLogger()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/info", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var info InfoResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&info))
	assert.Equal(t, 1, info.Scripts)
	assert.Equal(t, 1, info.Commands)
	assert.Equal(t, 1, info.Handlers[script.TriggerJoin])
	assert.Equal(t, 1, info.Dispatches[script.TriggerJoin])
	assert.Equal(t, 1, info.Players)
	assert.Equal(t, 1, info.Online)
	assert.Equal(t, f.world.ID(), info.WorldID)

	rr = httptest.NewRecorder()
	NewCommandsHandler(f.world, testLogger()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/commands", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var cmds CommandsResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&cmds))
	assert.Equal(t, []sim.CommandInfo{{Name: "halo", Permission: "contoh.halo", Description: "Menyapa"}}, cmds.Commands)
}

type recordingQueue struct {
	events []*queue.Event
	err    error
}

func (q *recordingQueue) Enqueue(_ context.Context, ev *queue.Event) error {
	if q.err != nil {
		return q.err
	}
	q.events = append(q.events, ev)
	return nil
}

func postEvent(t *testing.T, h http.Handler, ev any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(ev)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/events", bytes.NewReader(body)))
	return rr
}

func TestEventsHandler_Local(t *testing.T) {
	f := newFixture(t)
	handler := NewEventsHandler(nil, f.loop, f.server, testLogger())

	join := queue.NewTriggerEvent(script.TriggerJoin, "")
	join.Player = &actor.PlayerSpec{ID: "budi", Name: "Budi"}
	rr := postEvent(t, handler, join)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, []string{"Halo Budi!"}, f.world.Inbox("budi"))

	rr = postEvent(t, handler, queue.NewCommandEvent("halo", "budi", nil))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = postEvent(t, handler, queue.NewTriggerEvent(script.TriggerQuit, "ghost"))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = postEvent(t, handler, map[string]string{"type": "trigger", "trigger": "menari"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/events", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/events", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestEventsHandler_Queued(t *testing.T) {
	f := newFixture(t)
	q := &recordingQueue{}
	handler := NewEventsHandler(q, f.loop, f.server, testLogger())

	ev := queue.NewTriggerEvent(script.TriggerChat, "budi")
	ev.Message = "halo"
	rr := postEvent(t, handler, ev)
	require.Equal(t, http.StatusAccepted, rr.Code)

	var resp EventResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, ev.EventID, resp.EventID)
	assert.Equal(t, "queued", resp.Status)
	require.Len(t, q.events, 1)
	assert.Equal(t, "halo", q.events[0].Message)

	// nothing ran locally
	assert.Empty(t, f.world.History())

	q.err = errors.New("redis down")
	rr = postEvent(t, handler, ev)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

// signalingSource reports each Subscribe call
type signalingSource struct {
	EffectSource
	subscribed chan struct{}
}

func (s *signalingSource) Subscribe(buffer int) (<-chan sim.Effect, func()) {
	ch, cancel := s.EffectSource.Subscribe(buffer)
	s.subscribed <- struct{}{}
	return ch, cancel
}

func TestStreamHandler(t *testing.T) {
	f := newFixture(t)
	source := &signalingSource{EffectSource: f.world, subscribed: make(chan struct{}, 1)}
	srv := httptest.NewServer(Logger(testLogger(), NewStreamHandler(source, testLogger())))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/effects/stream?player=budi"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	select {
	case <-source.subscribed:
	case <-time.After(2 * time.Second):
		t.Fatal("stream never subscribed")
	}

	ctx := context.Background()
	_, err = f.server.Join(ctx, &actor.PlayerSpec{ID: "ani", Name: "Ani"})
	require.NoError(t, err)
	_, err = f.server.Join(ctx, &actor.PlayerSpec{ID: "budi", Name: "Budi"})
	require.NoError(t, err)
	require.NoError(t, f.world.Broadcast(ctx, "semua"))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got []sim.Effect
	for len(got) < 2 {
		var fx sim.Effect
		require.NoError(t, conn.ReadJSON(&fx))
		got = append(got, fx)
	}

	// Ani's greeting is filtered out
	assert.Equal(t, "budi", got[0].PlayerID)
	assert.Equal(t, "Halo Budi!", got[0].Text)
	assert.Equal(t, script.ActionBroadcast.String(), got[1].Kind)
	assert.Equal(t, "semua", got[1].Text)
}

func TestLogger_RecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	h := Logger(log, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Contains(t, buf.String(), "status=418")
	assert.Contains(t, buf.String(), "path=/x")
}
