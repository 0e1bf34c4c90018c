package model

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestTableNames(t *testing.T) {
	tests := []struct {
		name     string
		model    interface{ TableName() string }
		expected string
	}{
		{"ServerInfo", &ServerInfo{}, "server_infos"},
		{"EnginePerformance", &EnginePerformance{}, "engine_performances"},
		{"Match", &Match{}, "matches"},
		{"MatchPlayer", &MatchPlayer{}, "match_players"},
		{"Round", &Round{}, "rounds"},
		{"SquadResult", &SquadResult{}, "squad_results"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.model.TableName())
		})
	}
}

func TestDatabaseModels_Migrate(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(DatabaseModels...))

	for _, m := range DatabaseModels {
		assert.True(t, db.Migrator().HasTable(m), "%T", m)
	}
}

func TestMatch_CreateWithPlayers(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(DatabaseModels...))

	m := Match{
		SessionID:       "s-1",
		Mode:            "duel",
		HostPlayerID:    "p1",
		FinalBaseHealth: datatypes.JSON("{}"),
		Players: []MatchPlayer{
			{PlayerID: "p1", Username: "alice", Faction: "red"},
			{PlayerID: "p2", Username: "bob", Faction: "blue"},
		},
	}
	require.NoError(t, db.Create(&m).Error)
	require.NotZero(t, m.ID)

	var players []MatchPlayer
	require.NoError(t, db.Where("match_id = ?", m.ID).Order("id").Find(&players).Error)
	require.Len(t, players, 2)
	assert.Equal(t, "p1", players[0].PlayerID)
	assert.Equal(t, "blue", players[1].Faction)
}
