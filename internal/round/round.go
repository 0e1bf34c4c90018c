// Package round drives a session through preparation, combat and game over.
package round

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/squadfront/server/internal/catalog"
	"github.com/squadfront/server/internal/combat"
	"github.com/squadfront/server/internal/placement"
	"github.com/squadfront/server/pkg/core"
)

// ErrNotInPreparation is returned when combat is started from another phase.
var ErrNotInPreparation = errors.New("session is not in preparation")

// Config holds the round rules.
type Config struct {
	PreparationDuration time.Duration
	IncomePerRound      int
	FigureJitter        float64
}

// Kind classifies a transition.
type Kind int

const (
	// None means the session stays in its phase.
	None Kind = iota
	// CombatStarted means preparation ended and combat began.
	CombatStarted
	// RoundSkipped means neither player had squads and preparation restarted.
	RoundSkipped
	// NextRound means combat ended and the next preparation began.
	NextRound
	// GameOver means a base fell and the session is finished.
	GameOver
)

func (k Kind) String() string {
	switch k {
	case CombatStarted:
		return "combat_started"
	case RoundSkipped:
		return "round_skipped"
	case NextRound:
		return "next_round"
	case GameOver:
		return "game_over"
	default:
		return "none"
	}
}

// Transition is the result of a lifecycle step.
type Transition struct {
	Kind   Kind
	Step   combat.StepResult
	Record *core.RoundRecord
	Result *core.MatchResult
}

// Changed reports whether the session left its phase.
func (t Transition) Changed() bool { return t.Kind != None }

// Manager applies the round state machine to sessions. It holds no session state.
type Manager struct {
	catalog *catalog.Catalog
	sim     *combat.Simulator
	cfg     Config
	log     *slog.Logger
}

func NewManager(c *catalog.Catalog, sim *combat.Simulator, cfg Config, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{catalog: c, sim: sim, cfg: cfg, log: log}
}

// StartPreparation opens the placement window of the current round.
func (m *Manager) StartPreparation(s *core.GameSession, now time.Time) {
	deadline := now.Add(m.cfg.PreparationDuration)
	s.Phase = core.PhasePreparation
	s.PreparationDeadline = &deadline
}

// BeginCombat ends preparation. When no player has a squad the round is skipped,
// otherwise every player's squads are snapshotted and combat starts.
func (m *Manager) BeginCombat(s *core.GameSession, now time.Time) (Transition, error) {
	if s.Phase != core.PhasePreparation {
		return Transition{}, fmt.Errorf("%w: %s", ErrNotInPreparation, s.Phase)
	}

	empty := true
	for _, p := range s.Players {
		if len(p.PlacedUnits) > 0 {
			empty = false
			break
		}
	}
	if empty {
		rec := &core.RoundRecord{SessionID: s.ID, Round: s.Round, Skipped: true, EndedAt: now}
		for _, p := range s.Players {
			p.UnitsAtCombatStart = nil
		}
		m.advanceRound(s, now, nil)
		m.log.Debug("Round skipped, no squads placed", "session", s.ID, "round", rec.Round)
		return Transition{Kind: RoundSkipped, Record: rec}, nil
	}

	for _, p := range s.Players {
		p.UnitsAtCombatStart = core.CloneUnits(p.PlacedUnits)
	}
	s.Phase = core.PhaseCombat
	s.PreparationDeadline = nil
	s.ActiveProjectiles = nil
	return Transition{Kind: CombatStarted}, nil
}

// Tick runs one combat step and settles the round when a side is wiped out.
func (m *Manager) Tick(s *core.GameSession, now time.Time, dt time.Duration, rng *rand.Rand) Transition {
	if s.Phase != core.PhaseCombat {
		return Transition{}
	}
	step := m.sim.Step(s, now, dt)

	var wiped, standing []*core.PlayerInGame
	for _, p := range s.OrderedPlayers() {
		if p.LivingFigures() == 0 {
			wiped = append(wiped, p)
		} else {
			standing = append(standing, p)
		}
	}
	if len(wiped) == 0 || len(standing) > 1 {
		return Transition{Step: step}
	}

	rec := &core.RoundRecord{SessionID: s.ID, Round: s.Round, EndedAt: now, Squads: m.squadResults(s)}
	if len(standing) == 1 {
		winner, loser := standing[0], wiped[0]
		rec.WinnerID = winner.ID
		rec.LoserID = loser.ID
		rec.BaseDamage = m.BaseDamage(winner)
		loser.BaseHealth = max(loser.BaseHealth-rec.BaseDamage, 0)

		if loser.BaseHealth == 0 {
			res := m.finish(s, winner.ID, now)
			m.log.Info("Game over", "session", s.ID, "winner", winner.ID, "rounds", s.Round)
			return Transition{Kind: GameOver, Step: step, Record: rec, Result: res}
		}
	}

	m.advanceRound(s, now, rng)
	m.log.Debug("Round finished",
		"session", s.ID,
		"round", rec.Round,
		"winner", rec.WinnerID,
		"baseDamage", rec.BaseDamage)
	return Transition{Kind: NextRound, Step: step, Record: rec}
}

// BaseDamage is the rounded sum of placementCost * survivors / squadSize over the
// player's surviving squads.
func (m *Manager) BaseDamage(winner *core.PlayerInGame) int {
	total := 0.0
	for _, u := range winner.PlacedUnits {
		ref, err := m.catalog.Unit(u.UnitTypeID)
		if err != nil {
			m.log.Warn("Squad left out of base damage", "instance", u.InstanceID, "error", err)
			continue
		}
		total += float64(ref.Unit.PlacementCost) * float64(u.LivingFigures()) / float64(ref.Unit.SquadSize)
	}
	return int(math.Round(total))
}

// advanceRound moves to the next round's preparation: income is paid, placement
// counters reset and surviving squads return at full strength.
func (m *Manager) advanceRound(s *core.GameSession, now time.Time, rng *rand.Rand) {
	s.Round++
	s.ActiveProjectiles = nil
	income := m.cfg.IncomePerRound * (s.Round - 1)
	for _, p := range s.OrderedPlayers() {
		p.Credits += income
		p.UnitsPlacedThisRound = 0
		p.PlacedUnits = m.rebuild(p.PlacedUnits, rng)
	}
	m.StartPreparation(s, now)
}

// rebuild regenerates every surviving squad in place. Instance ids and lifetime stats
// carry over, figures are new.
func (m *Manager) rebuild(units []*core.PlacedUnit, rng *rand.Rand) []*core.PlacedUnit {
	out := make([]*core.PlacedUnit, 0, len(units))
	for _, u := range units {
		ref, err := m.catalog.Unit(u.UnitTypeID)
		if err != nil {
			m.log.Warn("Dropping squad with unknown unit type", "instance", u.InstanceID, "error", err)
			continue
		}
		out = append(out, &core.PlacedUnit{
			InstanceID:       u.InstanceID,
			UnitTypeID:       u.UnitTypeID,
			OwnerID:          u.OwnerID,
			InitialPosition:  u.InitialPosition,
			Rotation:         u.Rotation,
			TotalDamageDealt: u.TotalDamageDealt,
			TotalKills:       u.TotalKills,
			Figures: placement.GenerateFigures(ref, u.InstanceID, u.OwnerID,
				u.InitialPosition, u.Rotation, m.cfg.FigureJitter, rng),
		})
	}
	return out
}

func (m *Manager) finish(s *core.GameSession, winnerID string, now time.Time) *core.MatchResult {
	s.Phase = core.PhaseGameOver
	s.PreparationDeadline = nil
	s.ActiveProjectiles = nil
	s.WinnerID = winnerID
	return MatchResult(s, now, false)
}

// MatchResult summarises a finished or abandoned session.
func MatchResult(s *core.GameSession, now time.Time, abandoned bool) *core.MatchResult {
	res := &core.MatchResult{
		SessionID:       s.ID,
		WinnerID:        s.WinnerID,
		RoundsPlayed:    s.Round,
		Abandoned:       abandoned,
		FinalBaseHealth: make(map[string]int, len(s.Players)),
		EndedAt:         now,
	}
	for id, p := range s.Players {
		res.FinalBaseHealth[id] = p.BaseHealth
	}
	return res
}

// squadResults reports every squad that started the round, with its end-of-round state.
func (m *Manager) squadResults(s *core.GameSession) []core.SquadResult {
	var out []core.SquadResult
	for _, p := range s.OrderedPlayers() {
		for _, start := range p.UnitsAtCombatStart {
			res := core.SquadResult{
				InstanceID:       start.InstanceID,
				UnitTypeID:       start.UnitTypeID,
				OwnerID:          start.OwnerID,
				Position:         start.InitialPosition,
				TotalDamageDealt: start.TotalDamageDealt,
				TotalKills:       start.TotalKills,
			}
			if ref, err := m.catalog.Unit(start.UnitTypeID); err == nil {
				res.SquadSize = ref.Unit.SquadSize
			}
			if live := p.Unit(start.InstanceID); live != nil {
				res.SurvivingFigures = live.LivingFigures()
				res.DamageDealt = live.LastRoundDamageDealt
				res.Kills = live.LastRoundKills
				res.TotalDamageDealt = live.TotalDamageDealt
				res.TotalKills = live.TotalKills
			}
			out = append(out, res)
		}
	}
	return out
}
