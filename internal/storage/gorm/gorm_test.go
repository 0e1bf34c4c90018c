package gormstorage

import (
	"errors"
	"testing"
	"time"

	"github.com/squadfront/server/internal/database"
	"github.com/squadfront/server/internal/model"
	"github.com/squadfront/server/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	db, err := database.OpenSqlite("")
	require.NoError(t, err)

	b := New(Dependencies{DB: db, FlushInterval: time.Hour})
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func testMatch() *core.MatchRecord {
	return &core.MatchRecord{
		SessionID:    "s-1",
		Mode:         "duel",
		HostPlayerID: "p1",
		StartedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Players: []core.MatchPlayer{
			{ID: "p1", Username: "alice", Faction: "red"},
			{ID: "p2", Username: "bob", Faction: "blue"},
		},
	}
}

func TestNew_Defaults(t *testing.T) {
	b := New(Dependencies{})
	assert.Equal(t, DefaultFlushInterval, b.deps.FlushInterval)
	assert.NotNil(t, b.deps.Logger)
	assert.Error(t, b.Init(), "no database")
	assert.NoError(t, b.Close())
}

func TestStartMatch_InsertsRoster(t *testing.T) {
	b := newTestBackend(t)
	require.NoError(t, b.StartMatch(testMatch()))

	var m model.Match
	require.NoError(t, b.DB().Preload("Players").Where("session_id = ?", "s-1").First(&m).Error)
	assert.Equal(t, "duel", m.Mode)
	assert.Equal(t, "p1", m.HostPlayerID)
	assert.Len(t, m.Players, 2)
	assert.False(t, m.EndedAt.Valid)
}

func TestRecordRound_QueuesUntilFlush(t *testing.T) {
	b := newTestBackend(t)
	require.NoError(t, b.StartMatch(testMatch()))

	require.NoError(t, b.RecordRound(&core.RoundRecord{
		SessionID: "s-1",
		Round:     1,
		WinnerID:  "p1",
		LoserID:   "p2",
		Squads: []core.SquadResult{
			{InstanceID: "u-1", UnitTypeID: "duelist", OwnerID: "p1", Position: core.Vec2{X: 3.5, Z: 4.5}, SurvivingFigures: 1, SquadSize: 1, Kills: 1},
		},
	}))
	assert.Equal(t, 1, b.Pending())

	var count int64
	require.NoError(t, b.DB().Model(&model.Round{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)

	require.NoError(t, b.Flush())
	assert.Equal(t, 0, b.Pending())

	rounds, err := b.Rounds("s-1")
	require.NoError(t, err)
	require.Len(t, rounds, 1)
	assert.Equal(t, "p1", rounds[0].WinnerID)
	require.Len(t, rounds[0].Squads, 1)
	assert.Equal(t, core.Vec2{X: 3.5, Z: 4.5}, rounds[0].Squads[0].Position)
	assert.Equal(t, 1, rounds[0].Squads[0].Kills)
}

func TestRecordRound_UnknownMatch(t *testing.T) {
	b := newTestBackend(t)
	err := b.RecordRound(&core.RoundRecord{SessionID: "nope", Round: 1})
	assert.True(t, errors.Is(err, ErrUnknownMatch))
}

func TestEndMatch_FlushesAndCloses(t *testing.T) {
	b := newTestBackend(t)
	require.NoError(t, b.StartMatch(testMatch()))
	for i := 1; i <= 3; i++ {
		require.NoError(t, b.RecordRound(&core.RoundRecord{SessionID: "s-1", Round: i, Skipped: i == 2}))
	}

	ended := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	require.NoError(t, b.EndMatch(&core.MatchResult{
		SessionID:       "s-1",
		WinnerID:        "p2",
		RoundsPlayed:    3,
		FinalBaseHealth: map[string]int{"p1": 0, "p2": 20},
		EndedAt:         ended,
	}))
	assert.Equal(t, 0, b.Pending())

	var m model.Match
	require.NoError(t, b.DB().Where("session_id = ?", "s-1").First(&m).Error)
	assert.Equal(t, "p2", m.WinnerID)
	assert.Equal(t, 3, m.RoundsPlayed)
	assert.True(t, m.EndedAt.Valid)
	assert.JSONEq(t, `{"p1":0,"p2":20}`, string(m.FinalBaseHealth))

	rounds, err := b.Rounds("s-1")
	require.NoError(t, err)
	require.Len(t, rounds, 3)
	assert.True(t, rounds[1].Skipped)

	err = b.EndMatch(&core.MatchResult{SessionID: "s-1"})
	assert.True(t, errors.Is(err, ErrUnknownMatch), "a closed match is forgotten")
}

func TestClose_FlushesPending(t *testing.T) {
	db, err := database.OpenSqlite("")
	require.NoError(t, err)
	b := New(Dependencies{DB: db, FlushInterval: time.Hour})
	require.NoError(t, b.Init())

	require.NoError(t, b.StartMatch(testMatch()))
	require.NoError(t, b.RecordRound(&core.RoundRecord{SessionID: "s-1", Round: 1}))
	require.NoError(t, b.Close())

	var count int64
	require.NoError(t, db.Model(&model.Round{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestWriter_FlushesOnInterval(t *testing.T) {
	db, err := database.OpenSqlite("")
	require.NoError(t, err)
	b := New(Dependencies{DB: db, FlushInterval: 10 * time.Millisecond})
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartMatch(testMatch()))
	require.NoError(t, b.RecordRound(&core.RoundRecord{SessionID: "s-1", Round: 1}))

	assert.Eventually(t, func() bool { return b.Pending() == 0 }, 2*time.Second, 10*time.Millisecond)
}
