// Package websocket serves the lobby hand-off endpoint and the player
// websocket connections, and fans session views out to connected players.
package websocket

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	ws "github.com/gorilla/websocket"
	"github.com/squadfront/server/internal/cache"
	"github.com/squadfront/server/internal/dispatcher"
	"github.com/squadfront/server/internal/handlers"
	"github.com/squadfront/server/internal/logging"
	"github.com/squadfront/server/internal/session"
	"github.com/squadfront/server/internal/view"
	"github.com/squadfront/server/pkg/streaming"
)

const maxRosterBytes = 1 << 20

// Dispatcher routes player commands to their handlers.
type Dispatcher interface {
	Dispatch(e dispatcher.Event) (any, error)
}

// commands a connected player may send over the socket
var clientCommands = map[string]bool{
	streaming.TypeUnlockUnit:       true,
	streaming.TypePlaceUnit:        true,
	streaming.TypeForceStartCombat: true,
}

// Hub tracks one connection per player and implements session.Publisher.
type Hub struct {
	codec    view.Codec
	log      *slog.Logger
	upgrader ws.Upgrader

	mu      sync.RWMutex
	clients map[string]*client

	connected cache.SafeCounter
	dropped   atomic.Int64
}

var _ session.Publisher = (*Hub)(nil)

// NewHub creates a hub encoding outbound frames with codec.
func NewHub(codec view.Codec, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		codec: codec,
		log:   log,
		upgrader: ws.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// players connect from the game client, not from a browser origin we control
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[string]*client),
	}
}

// Routes returns the HTTP handler for the hub, dispatching commands through d.
func (h *Hub) Routes(d Dispatcher) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/sessions", func(w http.ResponseWriter, req *http.Request) {
		h.serveStartSession(d, w, req)
	}).Methods(http.MethodPost)
	r.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
		h.serveWS(d, w, req)
	}).Methods(http.MethodGet)
	r.HandleFunc("/healthcheck", h.serveHealthcheck).Methods(http.MethodGet)
	return r
}

// Publish queues msg for playerID. Players without a connection are skipped.
func (h *Hub) Publish(playerID string, msg session.Message) {
	h.mu.RLock()
	c, ok := h.clients[playerID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	h.send(c, streaming.Frame{Type: msg.Type, Payload: msg.View})
}

// Clients returns the number of connected players.
func (h *Hub) Clients() int {
	return h.connected.Value()
}

// Dropped returns how many frames were discarded because a client fell behind.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Close disconnects every player.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*client)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	h.connected.Set(0)
}

func (h *Hub) send(c *client, frame streaming.Frame) {
	data, err := h.codec.Marshal(frame)
	if err != nil {
		h.log.Error("Failed to encode frame", "type", frame.Type, "player", c.playerID, "error", err)
		return
	}
	if !c.enqueue(data) {
		h.dropped.Add(1)
		h.log.Debug("Client send buffer full, dropping frame", "type", frame.Type, "player", c.playerID)
	}
}

// register makes c the player's connection, closing any previous one.
func (h *Hub) register(c *client) {
	h.mu.Lock()
	old, replaced := h.clients[c.playerID]
	h.clients[c.playerID] = c
	h.mu.Unlock()

	if replaced {
		h.log.Info("Player reconnected, closing previous socket", "player", c.playerID)
		old.close()
		return
	}
	h.connected.Inc()
}

// unregister removes c and reports whether it was still the player's connection.
func (h *Hub) unregister(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.playerID] != c {
		return false
	}
	delete(h.clients, c.playerID)
	h.connected.Dec()
	return true
}

func (h *Hub) serveWS(d Dispatcher, w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("player")
	if playerID == "" {
		http.Error(w, "missing player", http.StatusBadRequest)
		return
	}

	ctx := logging.WithAttrs(r.Context(), slog.String("player", playerID), slog.String("remote", r.RemoteAddr))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WarnContext(ctx, "WebSocket upgrade failed", "error", err)
		return
	}

	c := newClient(h, d, playerID, conn)
	h.register(c)

	attach := dispatcher.Event{Command: streaming.TypeAttachPlayer, PlayerID: playerID, Timestamp: time.Now()}
	result, err := d.Dispatch(attach)
	if err != nil {
		h.unregister(c)
		h.log.InfoContext(ctx, "Rejected player connection", "error", err)
		c.writeNow(streaming.Frame{Type: streaming.TypeCommandResult, Payload: handlers.Result(attach, nil, err)})
		c.close()
		return
	}

	h.log.InfoContext(ctx, "Player connected", "clients", h.Clients())
	h.send(c, streaming.Frame{Type: streaming.TypeSessionUpdate, Payload: result})

	go c.writeLoop()
	c.readLoop()

	if h.unregister(c) {
		h.log.InfoContext(ctx, "Player disconnected", "clients", h.Clients())
		if _, err := d.Dispatch(dispatcher.Event{
			Command:   streaming.TypeRemovePlayer,
			PlayerID:  playerID,
			Timestamp: time.Now(),
		}); err != nil {
			h.log.ErrorContext(ctx, "Failed to remove player", "error", err)
		}
	}
	c.close()
}

func (h *Hub) serveStartSession(d Dispatcher, w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRosterBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, streaming.CommandResult{
			For:    streaming.TypeStartSession,
			Code:   "bad_payload",
			Reason: err.Error(),
		})
		return
	}

	e := dispatcher.Event{Command: streaming.TypeStartSession, Payload: body, Timestamp: time.Now()}
	result, err := d.Dispatch(e)
	if err != nil {
		status := http.StatusBadRequest
		if session.Code(err) == "internal" {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, handlers.Result(e, nil, err))
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Hub) serveHealthcheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "clients": h.Clients()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
