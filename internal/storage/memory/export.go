// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/squadfront/server/pkg/core"
)

// MatchExport is the root JSON structure of an exported match
type MatchExport struct {
	SessionID       string         `json:"sessionId"`
	Mode            string         `json:"mode"`
	HostPlayerID    string         `json:"hostPlayerId"`
	Players         []PlayerJSON   `json:"players"`
	StartedAt       time.Time      `json:"startedAt"`
	EndedAt         time.Time      `json:"endedAt"`
	WinnerID        string         `json:"winnerId"`
	RoundsPlayed    int            `json:"roundsPlayed"`
	Abandoned       bool           `json:"abandoned"`
	FinalBaseHealth map[string]int `json:"finalBaseHealth"`
	Rounds          []RoundJSON    `json:"rounds"`
}

// PlayerJSON is a roster entry
type PlayerJSON struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Faction  string `json:"faction"`
}

// RoundJSON is one finished or skipped round
type RoundJSON struct {
	Round      int         `json:"round"`
	Skipped    bool        `json:"skipped"`
	WinnerID   string      `json:"winnerId,omitempty"`
	LoserID    string      `json:"loserId,omitempty"`
	BaseDamage int         `json:"baseDamage"`
	EndedAt    time.Time   `json:"endedAt"`
	Squads     []SquadJSON `json:"squads"`
}

// SquadJSON is a squad's end-of-round state
type SquadJSON struct {
	InstanceID       string     `json:"instanceId"`
	UnitTypeID       string     `json:"unitTypeId"`
	OwnerID          string     `json:"ownerId"`
	Position         [2]float64 `json:"position"` // [x, z]
	SurvivingFigures int        `json:"survivingFigures"`
	SquadSize        int        `json:"squadSize"`
	DamageDealt      int        `json:"damageDealt"`
	Kills            int        `json:"kills"`
	TotalDamageDealt int        `json:"totalDamageDealt"`
	TotalKills       int        `json:"totalKills"`
}

// exportJSON writes the match to <session>_<timestamp>.json[.gz] and returns the path
func (b *Backend) exportJSON(record *MatchRecord) (string, error) {
	export := buildExport(record)

	timestamp := record.Match.StartedAt.UTC().Format("20060102_150405")

	var filename string
	if b.cfg.CompressOutput {
		filename = fmt.Sprintf("%s_%s.json.gz", record.Match.SessionID, timestamp)
	} else {
		filename = fmt.Sprintf("%s_%s.json", record.Match.SessionID, timestamp)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	if b.cfg.CompressOutput {
		err = writeGzipJSON(outputPath, export)
	} else {
		err = writeJSON(outputPath, export)
	}
	if err != nil {
		return "", err
	}
	return outputPath, nil
}

func buildExport(record *MatchRecord) MatchExport {
	m := record.Match
	export := MatchExport{
		SessionID:       m.SessionID,
		Mode:            m.Mode,
		HostPlayerID:    m.HostPlayerID,
		Players:         make([]PlayerJSON, 0, len(m.Players)),
		StartedAt:       m.StartedAt,
		FinalBaseHealth: map[string]int{},
		Rounds:          make([]RoundJSON, 0, len(record.Rounds)),
	}

	for _, p := range m.Players {
		export.Players = append(export.Players, PlayerJSON{ID: p.ID, Username: p.Username, Faction: p.Faction})
	}

	if r := record.Result; r != nil {
		export.EndedAt = r.EndedAt
		export.WinnerID = r.WinnerID
		export.RoundsPlayed = r.RoundsPlayed
		export.Abandoned = r.Abandoned
		for id, hp := range r.FinalBaseHealth {
			export.FinalBaseHealth[id] = hp
		}
	}

	rounds := append([]core.RoundRecord(nil), record.Rounds...)
	sort.SliceStable(rounds, func(i, j int) bool { return rounds[i].Round < rounds[j].Round })

	for _, r := range rounds {
		rj := RoundJSON{
			Round:      r.Round,
			Skipped:    r.Skipped,
			WinnerID:   r.WinnerID,
			LoserID:    r.LoserID,
			BaseDamage: r.BaseDamage,
			EndedAt:    r.EndedAt,
			Squads:     make([]SquadJSON, 0, len(r.Squads)),
		}
		for _, s := range r.Squads {
			rj.Squads = append(rj.Squads, SquadJSON{
				InstanceID:       s.InstanceID,
				UnitTypeID:       s.UnitTypeID,
				OwnerID:          s.OwnerID,
				Position:         [2]float64{s.Position.X, s.Position.Z},
				SurvivingFigures: s.SurvivingFigures,
				SquadSize:        s.SquadSize,
				DamageDealt:      s.DamageDealt,
				Kills:            s.Kills,
				TotalDamageDealt: s.TotalDamageDealt,
				TotalKills:       s.TotalKills,
			})
		}
		export.Rounds = append(export.Rounds, rj)
	}

	return export
}

func writeJSON(path string, data MatchExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func writeGzipJSON(path string, data MatchExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	defer gzWriter.Close()

	encoder := json.NewEncoder(gzWriter)
	return encoder.Encode(data)
}
