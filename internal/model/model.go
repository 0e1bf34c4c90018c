package model

import (
	"database/sql"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&ServerInfo{},
	&Match{},
	&MatchPlayer{},
	&Round{},
	&SquadResult{},
	&EnginePerformance{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// ServerInfo identifies the server instance that wrote the archive
type ServerInfo struct {
	gorm.Model
	Name        string `json:"name" gorm:"size:127"`
	Description string `json:"description" gorm:"size:255"`
}

func (*ServerInfo) TableName() string {
	return "server_infos"
}

// EnginePerformance is one sample of engine load
type EnginePerformance struct {
	Time           time.Time `json:"time" gorm:"index:idx_engineperformance_time"`
	Sessions       int       `json:"sessions"`
	CombatSessions int       `json:"combatSessions"`
	Figures        int       `json:"figures"`
	Projectiles    int       `json:"projectiles"`
	LastTickMs     float32   `json:"lastTickMs"`
}

func (*EnginePerformance) TableName() string {
	return "engine_performances"
}

////////////////////////
// MATCH ARCHIVE
////////////////////////

// Match is one two-player session from start to game over
type Match struct {
	ID              uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	CreatedAt       time.Time      `json:"createdAt"`
	SessionID       string         `json:"sessionId" gorm:"size:64;uniqueIndex:idx_match_session_id"`
	Mode            string         `json:"mode" gorm:"size:32"`
	HostPlayerID    string         `json:"hostPlayerId" gorm:"size:64"`
	StartedAt       time.Time      `json:"startedAt" gorm:"index:idx_match_started_at"`
	EndedAt         sql.NullTime   `json:"endedAt"`
	WinnerID        string         `json:"winnerId" gorm:"size:64"`
	RoundsPlayed    int            `json:"roundsPlayed"`
	Abandoned       bool           `json:"abandoned"`
	FinalBaseHealth datatypes.JSON `json:"finalBaseHealth"`
	Players         []MatchPlayer  `json:"players" gorm:"foreignkey:MatchID;"`
}

func (*Match) TableName() string {
	return "matches"
}

// MatchPlayer is a roster entry of a match
type MatchPlayer struct {
	ID       uint   `json:"id" gorm:"primarykey;autoIncrement;"`
	MatchID  uint   `json:"matchId" gorm:"index:idx_matchplayer_match_id"`
	PlayerID string `json:"playerId" gorm:"size:64;index:idx_matchplayer_player_id"`
	Username string `json:"username" gorm:"size:64"`
	Faction  string `json:"faction" gorm:"size:32"`
}

func (*MatchPlayer) TableName() string {
	return "match_players"
}

// Round is a finished or skipped round. WinnerID and LoserID are empty for a draw.
type Round struct {
	ID         uint          `json:"id" gorm:"primarykey;autoIncrement;"`
	MatchID    uint          `json:"matchId" gorm:"index:idx_round_match_id"`
	Number     int           `json:"number"`
	Skipped    bool          `json:"skipped"`
	WinnerID   string        `json:"winnerId" gorm:"size:64"`
	LoserID    string        `json:"loserId" gorm:"size:64"`
	BaseDamage int           `json:"baseDamage"`
	EndedAt    time.Time     `json:"endedAt"`
	Squads     []SquadResult `json:"squads" gorm:"foreignkey:RoundID;"`
}

func (*Round) TableName() string {
	return "rounds"
}

// SquadResult is a squad's state when its round ended
type SquadResult struct {
	ID               uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	RoundID          uint           `json:"roundId" gorm:"index:idx_squadresult_round_id"`
	InstanceID       string         `json:"instanceId" gorm:"size:64"`
	UnitTypeID       string         `json:"unitTypeId" gorm:"size:64"`
	OwnerID          string         `json:"ownerId" gorm:"size:64;index:idx_squadresult_owner_id"`
	Position         geom.Point     `json:"position"`
	SurvivingFigures int            `json:"survivingFigures"`
	SquadSize        int            `json:"squadSize"`
	Stats            datatypes.JSON `json:"stats"`
}

func (*SquadResult) TableName() string {
	return "squad_results"
}
