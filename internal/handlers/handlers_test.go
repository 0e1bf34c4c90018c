package handlers

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/squadfront/server/internal/dispatcher"
	"github.com/squadfront/server/internal/session"
	"github.com/squadfront/server/internal/view"
	"github.com/squadfront/server/pkg/core"
	"github.com/squadfront/server/pkg/streaming"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type placeCall struct {
	sessionID, playerID, unitTypeID string
	pos                             core.Vec2
	rot                             core.Rotation
}

// fakeEngine records calls and answers from its fields
type fakeEngine struct {
	mu       sync.Mutex
	sessions map[string]string
	roster   session.Roster
	unlocked []string
	placed   []placeCall
	forced   []string
	attached []string
	removed  []string
	calls    []string // attach and remove, in arrival order
	err      error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{sessions: map[string]string{"p1": "s-1", "p2": "s-1"}}
}

func (f *fakeEngine) StartSession(r session.Roster) (view.SessionView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roster = r
	if f.err != nil {
		return view.SessionView{}, f.err
	}
	return view.SessionView{SessionID: "s-new", RecipientID: r.HostID}, nil
}

func (f *fakeEngine) UnlockUnit(sessionID, playerID, unitTypeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unlocked = append(f.unlocked, sessionID+"/"+playerID+"/"+unitTypeID)
	return f.err
}

func (f *fakeEngine) PlaceUnit(sessionID, playerID, unitTypeID string, pos core.Vec2, rot core.Rotation) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placed = append(f.placed, placeCall{sessionID, playerID, unitTypeID, pos, rot})
	if f.err != nil {
		return "", f.err
	}
	return "unit-1", nil
}

func (f *fakeEngine) ForceStartCombat(sessionID, playerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forced = append(f.forced, sessionID+"/"+playerID)
	return f.err
}

func (f *fakeEngine) Attach(playerID string) (view.SessionView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attached = append(f.attached, playerID)
	f.calls = append(f.calls, "attach:"+playerID)
	return view.SessionView{SessionID: f.sessions[playerID], RecipientID: playerID}, f.err
}

func (f *fakeEngine) RemovePlayer(playerID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, playerID)
	f.calls = append(f.calls, "remove:"+playerID)
}

func (f *fakeEngine) PlayerSession(playerID string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.sessions[playerID]
	return id, ok
}

func (f *fakeEngine) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func setup(t *testing.T) (*fakeEngine, *dispatcher.Dispatcher) {
	t.Helper()
	eng := newFakeEngine()
	d, err := dispatcher.New(nopLogger{})
	require.NoError(t, err)
	NewService(eng, nil).RegisterHandlers(d)
	return eng, d
}

func payload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestRegisterHandlers(t *testing.T) {
	_, d := setup(t)
	assert.ElementsMatch(t, []string{
		streaming.TypeStartSession,
		streaming.TypeUnlockUnit,
		streaming.TypePlaceUnit,
		streaming.TypeForceStartCombat,
		streaming.TypeAttachPlayer,
		streaming.TypeRemovePlayer,
	}, d.Commands())
}

func TestStartSession(t *testing.T) {
	eng, d := setup(t)

	result, err := d.Dispatch(dispatcher.Event{
		Command: streaming.TypeStartSession,
		Payload: payload(t, streaming.StartSessionPayload{
			Players: []streaming.RosterEntry{
				{ID: "a", Username: "alice", Faction: "vanguard"},
				{ID: "b", Username: "bob", Faction: "swarm"},
			},
			HostID: "a",
			Mode:   "duel",
		}),
	})
	require.NoError(t, err)
	assert.Equal(t, streaming.StartSessionResponse{SessionID: "s-new"}, result)

	assert.Equal(t, "a", eng.roster.HostID)
	assert.Equal(t, "duel", eng.roster.Mode)
	require.Len(t, eng.roster.Players, 2)
	assert.Equal(t, session.Seat{ID: "b", Username: "bob", Faction: "swarm"}, eng.roster.Players[1])
}

func TestBadPayload(t *testing.T) {
	_, d := setup(t)

	for _, cmd := range []string{streaming.TypeStartSession, streaming.TypeUnlockUnit, streaming.TypePlaceUnit} {
		_, err := d.Dispatch(dispatcher.Event{Command: cmd, PlayerID: "p1", Payload: json.RawMessage(`{"x":`)})
		require.Error(t, err, cmd)
		assert.Equal(t, "bad_payload", session.Code(err), cmd)

		_, err = d.Dispatch(dispatcher.Event{Command: cmd, PlayerID: "p1"})
		assert.Equal(t, "bad_payload", session.Code(err), cmd)
	}
}

func TestUnlockUnit_ResolvesSession(t *testing.T) {
	eng, d := setup(t)

	_, err := d.Dispatch(dispatcher.Event{
		Command:  streaming.TypeUnlockUnit,
		PlayerID: "p2",
		Payload:  payload(t, streaming.UnlockUnitPayload{UnitTypeID: "mortar_team"}),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"s-1/p2/mortar_team"}, eng.unlocked)

	_, err = d.Dispatch(dispatcher.Event{
		Command:  streaming.TypeUnlockUnit,
		PlayerID: "stranger",
		Payload:  payload(t, streaming.UnlockUnitPayload{UnitTypeID: "mortar_team"}),
	})
	assert.Equal(t, "session_not_found", session.Code(err))
	assert.Len(t, eng.unlocked, 1)
}

func TestPlaceUnit(t *testing.T) {
	eng, d := setup(t)

	e := dispatcher.Event{
		Command:   streaming.TypePlaceUnit,
		PlayerID:  "p1",
		RequestID: "r-7",
		Payload:   payload(t, streaming.PlaceUnitPayload{UnitTypeID: "rifle_squad", X: 4.5, Z: 3, Rotation: 90}),
	}
	result, err := d.Dispatch(e)
	require.NoError(t, err)
	assert.Equal(t, "unit-1", result)

	require.Len(t, eng.placed, 1)
	assert.Equal(t, placeCall{"s-1", "p1", "rifle_squad", core.Vec2{X: 4.5, Z: 3}, core.Rotation90}, eng.placed[0])

	res := Result(e, result, err)
	assert.Equal(t, streaming.CommandResult{For: streaming.TypePlaceUnit, RequestID: "r-7", OK: true, InstanceID: "unit-1"}, res)
}

func TestForceStartCombat(t *testing.T) {
	eng, d := setup(t)
	eng.err = session.Reject("not_host", "only the host can start combat")

	e := dispatcher.Event{Command: streaming.TypeForceStartCombat, PlayerID: "p2"}
	result, err := d.Dispatch(e)
	require.Error(t, err)
	assert.Equal(t, []string{"s-1/p2"}, eng.forced)

	res := Result(e, result, err)
	assert.False(t, res.OK)
	assert.Equal(t, "not_host", res.Code)
	assert.Equal(t, "only the host can start combat", res.Reason)
}

func TestAttachPlayer(t *testing.T) {
	eng, d := setup(t)

	result, err := d.Dispatch(dispatcher.Event{Command: streaming.TypeAttachPlayer, PlayerID: "p1"})
	require.NoError(t, err)
	v, ok := result.(view.SessionView)
	require.True(t, ok)
	assert.Equal(t, "s-1", v.SessionID)
	assert.Equal(t, []string{"p1"}, eng.attached)

	_, err = d.Dispatch(dispatcher.Event{Command: streaming.TypeAttachPlayer})
	assert.Equal(t, "player_not_found", session.Code(err))
}

func TestRemovePlayerAppliesBeforeReturning(t *testing.T) {
	eng, d := setup(t)

	result, err := d.Dispatch(dispatcher.Event{Command: streaming.TypeRemovePlayer, PlayerID: "p1"})
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, []string{"p1"}, eng.removed)

	res := Result(dispatcher.Event{Command: streaming.TypeRemovePlayer}, result, err)
	assert.True(t, res.OK)
	assert.Empty(t, res.InstanceID)
}

func TestDropThenReconnectKeepsOrder(t *testing.T) {
	eng, d := setup(t)

	for i := 0; i < 50; i++ {
		_, err := d.Dispatch(dispatcher.Event{Command: streaming.TypeRemovePlayer, PlayerID: "p1"})
		require.NoError(t, err)
		_, err = d.Dispatch(dispatcher.Event{Command: streaming.TypeAttachPlayer, PlayerID: "p1"})
		require.NoError(t, err)

		calls := eng.callLog()
		require.Len(t, calls, 2*(i+1))
		assert.Equal(t, "attach:p1", calls[len(calls)-1], "the reconnect must be the last call applied")
	}
}

func TestResult_UnknownError(t *testing.T) {
	res := Result(dispatcher.Event{Command: streaming.TypeUnlockUnit, RequestID: "x"}, nil, errors.New("boom"))
	assert.Equal(t, streaming.CommandResult{For: streaming.TypeUnlockUnit, RequestID: "x", Code: "internal", Reason: "boom"}, res)
}
