// Package combat advances figures and projectiles of a session in combat.
package combat

import (
	"log/slog"
	"time"

	"github.com/squadfront/server/internal/catalog"
	"github.com/squadfront/server/internal/geo"
	"github.com/squadfront/server/pkg/core"
)

// Options configure a Simulator.
type Options struct {
	Grid          geo.Grid
	MinFlightTime time.Duration
	Logger        *slog.Logger
}

// Simulator runs the per-tick combat step. It holds no session state and may be
// shared by every session.
type Simulator struct {
	catalog       *catalog.Catalog
	grid          geo.Grid
	minFlightTime time.Duration
	log           *slog.Logger
}

func New(c *catalog.Catalog, opts Options) *Simulator {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Simulator{
		catalog:       c,
		grid:          opts.Grid,
		minFlightTime: opts.MinFlightTime,
		log:           log,
	}
}

// StepResult reports what happened during one combat step.
type StepResult struct {
	Fired             int
	Resolved          int
	Wasted            int
	Hits              int
	Kills             int
	AttributionMisses int
	SkippedFigures    int
}

// actor is a living figure with its unit definition resolved for this step.
type actor struct {
	fig  *core.FigureState
	unit *core.PlacedUnit
	ref  catalog.UnitRef
}

// world is the per-step view of a session's figures in roster order.
type world struct {
	actors  []actor
	figures []*core.FigureState
	byID    map[string]*core.FigureState
}

// Step advances sess by one tick: figure AI, projectile flight, separation, then pruning
// of dead figures and emptied squads.
func (s *Simulator) Step(sess *core.GameSession, now time.Time, dt time.Duration) StepResult {
	var res StepResult
	w := s.collect(sess, &res)

	intended := s.act(sess, w, now, dt, &res)
	s.advanceProjectiles(sess, w, now, &res)
	s.separate(w.actors, intended)
	Prune(sess)

	return res
}

func (s *Simulator) collect(sess *core.GameSession, res *StepResult) world {
	w := world{byID: make(map[string]*core.FigureState)}
	for _, p := range sess.OrderedPlayers() {
		for _, u := range p.PlacedUnits {
			ref, err := s.catalog.Unit(u.UnitTypeID)
			if err != nil {
				s.log.Warn("Skipping squad with unknown unit type",
					"session", sess.ID, "instance", u.InstanceID, "error", err)
			}
			for _, f := range u.Figures {
				if !f.Alive() {
					continue
				}
				w.figures = append(w.figures, f)
				w.byID[f.ID] = f
				if !ref.Valid() {
					res.SkippedFigures++
					continue
				}
				w.actors = append(w.actors, actor{fig: f, unit: u, ref: ref})
			}
		}
	}
	return w
}

// Prune removes dead figures and squads without living figures.
func Prune(sess *core.GameSession) {
	for _, p := range sess.Players {
		units := p.PlacedUnits[:0]
		for _, u := range p.PlacedUnits {
			figures := u.Figures[:0]
			for _, f := range u.Figures {
				if f.Alive() {
					figures = append(figures, f)
				}
			}
			clear(u.Figures[len(figures):])
			u.Figures = figures
			if len(u.Figures) > 0 {
				units = append(units, u)
			}
		}
		clear(p.PlacedUnits[len(units):])
		p.PlacedUnits = units
	}
}
