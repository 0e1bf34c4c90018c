package websocket

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/squadfront/server/internal/dispatcher"
	"github.com/squadfront/server/internal/session"
	"github.com/squadfront/server/internal/view"
	"github.com/squadfront/server/pkg/streaming"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	mu     sync.Mutex
	events []dispatcher.Event
	handle func(e dispatcher.Event) (any, error)
}

func (f *fakeDispatcher) Dispatch(e dispatcher.Event) (any, error) {
	f.mu.Lock()
	f.events = append(f.events, e)
	handle := f.handle
	f.mu.Unlock()
	if handle == nil {
		return nil, nil
	}
	return handle(e)
}

func (f *fakeDispatcher) last() dispatcher.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[len(f.events)-1]
}

func (f *fakeDispatcher) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.Command
	}
	return out
}

// attachOK answers attach_player with a view for the player
func attachOK(e dispatcher.Event) (any, error) {
	if e.Command == streaming.TypeAttachPlayer {
		return view.SessionView{SessionID: "s-1", RecipientID: e.PlayerID}, nil
	}
	return nil, nil
}

func newTestServer(t *testing.T, encoding string, d *fakeDispatcher) (*Hub, *httptest.Server) {
	t.Helper()
	codec, err := view.NewCodec(encoding)
	require.NoError(t, err)
	h := NewHub(codec, nil)
	srv := httptest.NewServer(h.Routes(d))
	t.Cleanup(func() {
		h.Close()
		srv.Close()
	})
	return h, srv
}

func dial(t *testing.T, srv *httptest.Server, player string) *ws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?player=" + player
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

type rawFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func readFrame(t *testing.T, conn *ws.Conn) rawFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var f rawFrame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func readResult(t *testing.T, conn *ws.Conn) streaming.CommandResult {
	t.Helper()
	f := readFrame(t, conn)
	require.Equal(t, streaming.TypeCommandResult, f.Type)
	var res streaming.CommandResult
	require.NoError(t, json.Unmarshal(f.Payload, &res))
	return res
}

func TestHealthcheck(t *testing.T) {
	_, srv := newTestServer(t, "json", &fakeDispatcher{})

	resp, err := http.Get(srv.URL + "/healthcheck")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(0), body["clients"])
}

func TestStartSession(t *testing.T) {
	d := &fakeDispatcher{handle: func(e dispatcher.Event) (any, error) {
		return streaming.StartSessionResponse{SessionID: "s-42"}, nil
	}}
	_, srv := newTestServer(t, "json", d)

	roster := `{"players":[{"id":"a","faction":"vanguard"},{"id":"b","faction":"vanguard"}],"hostId":"a"}`
	resp, err := http.Post(srv.URL+"/sessions", "application/json", strings.NewReader(roster))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var out streaming.StartSessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "s-42", out.SessionID)

	e := d.last()
	assert.Equal(t, []string{streaming.TypeStartSession}, d.commands())
	assert.JSONEq(t, roster, string(e.Payload))
}

func TestStartSession_Rejected(t *testing.T) {
	d := &fakeDispatcher{handle: func(e dispatcher.Event) (any, error) {
		return nil, session.Reject("invalid_roster", "a session needs exactly 2 players")
	}}
	_, srv := newTestServer(t, "json", d)

	resp, err := http.Post(srv.URL+"/sessions", "application/json", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var out streaming.CommandResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.False(t, out.OK)
	assert.Equal(t, "invalid_roster", out.Code)
}

func TestWS_MissingPlayer(t *testing.T) {
	_, srv := newTestServer(t, "json", &fakeDispatcher{})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := ws.DefaultDialer.Dial(url, nil)
	require.ErrorIs(t, err, ws.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWS_AttachSendsView(t *testing.T) {
	d := &fakeDispatcher{handle: attachOK}
	h, srv := newTestServer(t, "json", d)

	conn := dial(t, srv, "p1")
	f := readFrame(t, conn)
	assert.Equal(t, streaming.TypeSessionUpdate, f.Type)

	var v view.SessionView
	require.NoError(t, json.Unmarshal(f.Payload, &v))
	assert.Equal(t, "s-1", v.SessionID)
	assert.Equal(t, "p1", v.RecipientID)
	assert.Equal(t, 1, h.Clients())
}

func TestWS_AttachRejected(t *testing.T) {
	d := &fakeDispatcher{handle: func(e dispatcher.Event) (any, error) {
		return nil, session.Reject("player_not_found", "you are not in a session")
	}}
	h, srv := newTestServer(t, "json", d)

	conn := dial(t, srv, "ghost")
	res := readResult(t, conn)
	assert.False(t, res.OK)
	assert.Equal(t, streaming.TypeAttachPlayer, res.For)
	assert.Equal(t, "player_not_found", res.Code)

	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, h.Clients())
	assert.NotContains(t, d.commands(), streaming.TypeRemovePlayer)
}

func TestWS_CommandResult(t *testing.T) {
	d := &fakeDispatcher{handle: func(e dispatcher.Event) (any, error) {
		if e.Command == streaming.TypePlaceUnit {
			return "unit-9", nil
		}
		return attachOK(e)
	}}
	_, srv := newTestServer(t, "json", d)

	conn := dial(t, srv, "p1")
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":    streaming.TypePlaceUnit,
		"id":      "r-1",
		"payload": map[string]any{"unitTypeId": "rifle_squad", "x": 2, "z": 3, "rotation": 0},
	}))

	res := readResult(t, conn)
	assert.True(t, res.OK)
	assert.Equal(t, "r-1", res.RequestID)
	assert.Equal(t, "unit-9", res.InstanceID)

	last := d.last()
	assert.Equal(t, "p1", last.PlayerID)
	assert.JSONEq(t, `{"unitTypeId":"rifle_squad","x":2,"z":3,"rotation":0}`, string(last.Payload))
}

func TestWS_RejectsUnknownAndMalformed(t *testing.T) {
	d := &fakeDispatcher{handle: attachOK}
	_, srv := newTestServer(t, "json", d)

	conn := dial(t, srv, "p1")
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": streaming.TypeRemovePlayer, "id": "r-2"}))
	res := readResult(t, conn)
	assert.Equal(t, "unknown_command", res.Code)
	assert.Equal(t, "r-2", res.RequestID)

	require.NoError(t, conn.WriteMessage(ws.TextMessage, []byte("{not json")))
	res = readResult(t, conn)
	assert.Equal(t, "bad_payload", res.Code)

	assert.Equal(t, []string{streaming.TypeAttachPlayer}, d.commands())
}

func TestWS_Publish(t *testing.T) {
	d := &fakeDispatcher{handle: attachOK}
	h, srv := newTestServer(t, "json", d)

	conn := dial(t, srv, "p1")
	readFrame(t, conn)

	h.Publish("p1", session.Message{Type: streaming.TypeGameOver, View: view.SessionView{SessionID: "s-1", WinnerID: "p1"}})
	h.Publish("nobody", session.Message{Type: streaming.TypeGameOver})

	f := readFrame(t, conn)
	assert.Equal(t, streaming.TypeGameOver, f.Type)
	var v view.SessionView
	require.NoError(t, json.Unmarshal(f.Payload, &v))
	assert.Equal(t, "p1", v.WinnerID)
}

func TestWS_DisconnectRemovesPlayer(t *testing.T) {
	d := &fakeDispatcher{handle: attachOK}
	h, srv := newTestServer(t, "json", d)

	conn := dial(t, srv, "p1")
	readFrame(t, conn)
	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		cmds := d.commands()
		return len(cmds) == 2 && cmds[1] == streaming.TypeRemovePlayer
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, h.Clients())
}

func TestWS_ReconnectReplacesSocket(t *testing.T) {
	d := &fakeDispatcher{handle: attachOK}
	h, srv := newTestServer(t, "json", d)

	first := dial(t, srv, "p1")
	readFrame(t, first)
	second := dial(t, srv, "p1")
	readFrame(t, second)

	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := first.ReadMessage()
	assert.Error(t, err)

	assert.Equal(t, 1, h.Clients())
	assert.NotContains(t, d.commands(), streaming.TypeRemovePlayer)
}

func TestWS_MsgpackFrames(t *testing.T) {
	d := &fakeDispatcher{handle: attachOK}
	_, srv := newTestServer(t, "msgpack", d)

	conn := dial(t, srv, "p1")
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	mt, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, ws.BinaryMessage, mt)

	codec, err := view.NewCodec("msgpack")
	require.NoError(t, err)
	var f map[string]any
	require.NoError(t, codec.Unmarshal(data, &f))
	assert.Equal(t, streaming.TypeSessionUpdate, f["type"])
	payload, ok := f["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "s-1", payload["sessionId"])
}
