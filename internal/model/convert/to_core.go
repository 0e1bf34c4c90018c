package convert

import (
	"encoding/json"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/squadfront/server/internal/model"
	"github.com/squadfront/server/pkg/core"
)

// pointToVec2 converts a stored 2D point back to a plane position
func pointToVec2(p geom.Point) core.Vec2 {
	coord, ok := p.Coordinates()
	if !ok {
		return core.Vec2{}
	}
	return core.Vec2{X: coord.XY.X, Z: coord.XY.Y}
}

// MatchToCore converts a GORM model.Match (with players preloaded) to a core.MatchRecord.
func MatchToCore(m model.Match) core.MatchRecord {
	players := make([]core.MatchPlayer, 0, len(m.Players))
	for _, p := range m.Players {
		players = append(players, core.MatchPlayer{
			ID:       p.PlayerID,
			Username: p.Username,
			Faction:  p.Faction,
		})
	}
	return core.MatchRecord{
		SessionID:    m.SessionID,
		Mode:         m.Mode,
		HostPlayerID: m.HostPlayerID,
		Players:      players,
		StartedAt:    m.StartedAt,
	}
}

// RoundToCore converts a GORM model.Round (with squads preloaded) to a core.RoundRecord.
func RoundToCore(r model.Round, sessionID string) core.RoundRecord {
	squads := make([]core.SquadResult, 0, len(r.Squads))
	for _, s := range r.Squads {
		squads = append(squads, SquadResultToCore(s))
	}
	return core.RoundRecord{
		SessionID:  sessionID,
		Round:      r.Number,
		Skipped:    r.Skipped,
		WinnerID:   r.WinnerID,
		LoserID:    r.LoserID,
		BaseDamage: r.BaseDamage,
		Squads:     squads,
		EndedAt:    r.EndedAt,
	}
}

// SquadResultToCore converts a GORM model.SquadResult to a core.SquadResult.
func SquadResultToCore(s model.SquadResult) core.SquadResult {
	var stats squadStats
	if len(s.Stats) > 0 {
		_ = json.Unmarshal(s.Stats, &stats)
	}
	return core.SquadResult{
		InstanceID:       s.InstanceID,
		UnitTypeID:       s.UnitTypeID,
		OwnerID:          s.OwnerID,
		Position:         pointToVec2(s.Position),
		SurvivingFigures: s.SurvivingFigures,
		SquadSize:        s.SquadSize,
		DamageDealt:      stats.DamageDealt,
		Kills:            stats.Kills,
		TotalDamageDealt: stats.TotalDamageDealt,
		TotalKills:       stats.TotalKills,
	}
}
