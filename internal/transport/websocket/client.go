package websocket

import (
	"encoding/json"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/squadfront/server/internal/channel"
	"github.com/squadfront/server/internal/dispatcher"
	"github.com/squadfront/server/internal/handlers"
	"github.com/squadfront/server/pkg/streaming"
)

const (
	sendChSize     = 256
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 64 * 1024
)

// client is one player's socket with a single write goroutine.
type client struct {
	hub      *Hub
	dispatch Dispatcher
	playerID string
	conn     *ws.Conn
	sendCh   *channel.Bounded[[]byte]
	done     chan struct{}
	once     sync.Once
}

func newClient(h *Hub, d Dispatcher, playerID string, conn *ws.Conn) *client {
	return &client{
		hub:      h,
		dispatch: d,
		playerID: playerID,
		conn:     conn,
		sendCh:   channel.New[[]byte](sendChSize),
		done:     make(chan struct{}),
	}
}

func (c *client) messageType() int {
	if c.hub.codec.Binary() {
		return ws.BinaryMessage
	}
	return ws.TextMessage
}

// enqueue never blocks; it returns false when the buffer is full.
func (c *client) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	return c.sendCh.TrySend(data)
}

// writeNow writes frame on the caller's goroutine. Only valid before writeLoop starts.
func (c *client) writeNow(frame streaming.Frame) {
	data, err := c.hub.codec.Marshal(frame)
	if err != nil {
		return
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(c.messageType(), data)
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.sendCh.Receive():
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.close()
				return
			}
			if err := c.conn.WriteMessage(c.messageType(), data); err != nil {
				c.hub.log.Debug("WebSocket write error", "player", c.playerID, "error", err)
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(ws.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.close()
				return
			}
		}
	}
}

// readLoop handles commands until the socket closes. Commands are always JSON.
func (c *client) readLoop() {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if ws.IsUnexpectedCloseError(err, ws.CloseGoingAway, ws.CloseNormalClosure) {
				c.hub.log.Warn("WebSocket read error", "player", c.playerID, "error", err)
			}
			return
		}
		c.handle(message)
	}
}

func (c *client) handle(message []byte) {
	var env streaming.Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		c.reply(streaming.CommandResult{Code: "bad_payload", Reason: "malformed message: " + err.Error()})
		return
	}
	if !clientCommands[env.Type] {
		c.reply(streaming.CommandResult{
			For:       env.Type,
			RequestID: env.ID,
			Code:      "unknown_command",
			Reason:    "unknown command " + env.Type,
		})
		return
	}

	e := dispatcher.Event{
		Command:   env.Type,
		PlayerID:  c.playerID,
		RequestID: env.ID,
		Payload:   env.Payload,
		Timestamp: time.Now(),
	}
	result, err := c.dispatch.Dispatch(e)
	c.reply(handlers.Result(e, result, err))
}

func (c *client) reply(res streaming.CommandResult) {
	c.hub.send(c, streaming.Frame{Type: streaming.TypeCommandResult, Payload: res})
}
