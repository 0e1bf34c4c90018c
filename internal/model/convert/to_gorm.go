// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"database/sql"
	"encoding/json"

	"github.com/squadfront/server/internal/geo"
	"github.com/squadfront/server/internal/model"
	"github.com/squadfront/server/pkg/core"
	"gorm.io/datatypes"
)

// squadStats is the JSON column layout of model.SquadResult.Stats
type squadStats struct {
	DamageDealt      int `json:"damageDealt"`
	Kills            int `json:"kills"`
	TotalDamageDealt int `json:"totalDamageDealt"`
	TotalKills       int `json:"totalKills"`
}

// baseHealthToJSON converts the per-player base health map for DB storage.
func baseHealthToJSON(health map[string]int) datatypes.JSON {
	if len(health) == 0 {
		return datatypes.JSON("{}")
	}
	data, _ := json.Marshal(health)
	return datatypes.JSON(data)
}

// CoreToMatch converts a core.MatchRecord to a GORM model.Match with its players.
func CoreToMatch(r core.MatchRecord) model.Match {
	players := make([]model.MatchPlayer, 0, len(r.Players))
	for _, p := range r.Players {
		players = append(players, model.MatchPlayer{
			PlayerID: p.ID,
			Username: p.Username,
			Faction:  p.Faction,
		})
	}

	return model.Match{
		SessionID:       r.SessionID,
		Mode:            r.Mode,
		HostPlayerID:    r.HostPlayerID,
		StartedAt:       r.StartedAt,
		FinalBaseHealth: datatypes.JSON("{}"),
		Players:         players,
	}
}

// CoreToRound converts a core.RoundRecord to a GORM model.Round belonging to matchID.
func CoreToRound(r core.RoundRecord, matchID uint) model.Round {
	squads := make([]model.SquadResult, 0, len(r.Squads))
	for _, s := range r.Squads {
		squads = append(squads, CoreToSquadResult(s))
	}

	return model.Round{
		MatchID:    matchID,
		Number:     r.Round,
		Skipped:    r.Skipped,
		WinnerID:   r.WinnerID,
		LoserID:    r.LoserID,
		BaseDamage: r.BaseDamage,
		EndedAt:    r.EndedAt,
		Squads:     squads,
	}
}

// CoreToSquadResult converts a core.SquadResult to a GORM model.SquadResult.
func CoreToSquadResult(s core.SquadResult) model.SquadResult {
	stats, _ := json.Marshal(squadStats{
		DamageDealt:      s.DamageDealt,
		Kills:            s.Kills,
		TotalDamageDealt: s.TotalDamageDealt,
		TotalKills:       s.TotalKills,
	})

	// non-finite positions are stored as an empty point
	pos, _ := geo.Point(s.Position)

	return model.SquadResult{
		InstanceID:       s.InstanceID,
		UnitTypeID:       s.UnitTypeID,
		OwnerID:          s.OwnerID,
		Position:         pos,
		SurvivingFigures: s.SurvivingFigures,
		SquadSize:        s.SquadSize,
		Stats:            datatypes.JSON(stats),
	}
}

// MatchResultUpdates returns the column updates that close a match row.
func MatchResultUpdates(r core.MatchResult) map[string]any {
	return map[string]any{
		"winner_id":         r.WinnerID,
		"rounds_played":     r.RoundsPlayed,
		"abandoned":         r.Abandoned,
		"final_base_health": baseHealthToJSON(r.FinalBaseHealth),
		"ended_at":          sql.NullTime{Time: r.EndedAt, Valid: !r.EndedAt.IsZero()},
	}
}
