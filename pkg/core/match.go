// pkg/core/match.go
package core

import "time"

// MatchPlayer is one roster entry of an archived match.
type MatchPlayer struct {
	ID       string
	Username string
	Faction  string
}

// MatchRecord is written when a session starts.
type MatchRecord struct {
	SessionID    string
	Mode         string
	HostPlayerID string
	Players      []MatchPlayer
	StartedAt    time.Time
}

// SquadResult is a squad's state at the end of a round.
type SquadResult struct {
	InstanceID       string
	UnitTypeID       string
	OwnerID          string
	Position         Vec2
	SurvivingFigures int
	SquadSize        int
	DamageDealt      int
	Kills            int
	TotalDamageDealt int
	TotalKills       int
}

// RoundRecord is written for every finished or skipped round.
// WinnerID and LoserID are empty for a draw.
type RoundRecord struct {
	SessionID  string
	Round      int
	Skipped    bool
	WinnerID   string
	LoserID    string
	BaseDamage int
	Squads     []SquadResult
	EndedAt    time.Time
}

// MatchResult is written when a session reaches game over or is abandoned.
type MatchResult struct {
	SessionID       string
	WinnerID        string
	RoundsPlayed    int
	Abandoned       bool
	FinalBaseHealth map[string]int
	EndedAt         time.Time
}

// UploadMetadata describes an exported match file for the results server.
type UploadMetadata struct {
	SessionID    string
	Mode         string
	WinnerID     string
	RoundsPlayed int
	Abandoned    bool
}
