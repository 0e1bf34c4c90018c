package session

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/squadfront/server/internal/session"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type metrics struct {
	ticks          metric.Int64Counter
	tickDuration   metric.Float64Histogram
	sessionsActive metric.Int64ObservableGauge
	fired          metric.Int64Counter
	rounds         metric.Int64Counter
}

func newMetrics(active func() int64) (*metrics, error) {
	m := meter()
	out := &metrics{}

	var err error

	out.ticks, err = m.Int64Counter(
		"engine.ticks",
		metric.WithDescription("Total simulation ticks run"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ticks counter: %w", err)
	}

	out.tickDuration, err = m.Float64Histogram(
		"engine.tick.duration",
		metric.WithDescription("Wall time spent in one tick"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tick duration histogram: %w", err)
	}

	out.sessionsActive, err = m.Int64ObservableGauge(
		"engine.sessions.active",
		metric.WithDescription("Sessions currently held by the engine"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sessions gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(out.sessionsActive, active())
			return nil
		},
		out.sessionsActive,
	)
	if err != nil {
		return nil, fmt.Errorf("registering sessions callback: %w", err)
	}

	out.fired, err = m.Int64Counter(
		"engine.projectiles.fired",
		metric.WithDescription("Total projectiles fired"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fired counter: %w", err)
	}

	out.rounds, err = m.Int64Counter(
		"engine.rounds.completed",
		metric.WithDescription("Total rounds settled by combat"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rounds counter: %w", err)
	}

	return out, nil
}

func (m *metrics) tick(d time.Duration) {
	ctx := context.Background()
	m.ticks.Add(ctx, 1)
	m.tickDuration.Record(ctx, float64(d)/float64(time.Millisecond))
}

func (m *metrics) projectilesFired(n int) {
	if n > 0 {
		m.fired.Add(context.Background(), int64(n))
	}
}

func (m *metrics) roundCompleted() {
	m.rounds.Add(context.Background(), 1)
}
