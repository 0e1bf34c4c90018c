package dispatcher

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/squadfront/server/internal/dispatcher"

// instruments are taken from the global meter provider, so they are no-ops
// until OTel is configured.
type instruments struct {
	inflight  metric.Int64UpDownCounter
	processed metric.Int64Counter
	failed    metric.Int64Counter
	duration  metric.Float64Histogram
}

func newInstruments() (*instruments, error) {
	m := otel.Meter(instrumentationName)
	ins := &instruments{}

	var err error
	if ins.inflight, err = m.Int64UpDownCounter(
		"squadfront.commands.inflight",
		metric.WithDescription("Commands whose handler is running"),
	); err != nil {
		return nil, fmt.Errorf("creating inflight counter: %w", err)
	}

	if ins.processed, err = m.Int64Counter(
		"squadfront.commands.processed",
		metric.WithDescription("Commands handled"),
	); err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}
	if ins.failed, err = m.Int64Counter(
		"squadfront.commands.failed",
		metric.WithDescription("Commands whose handler returned an error"),
	); err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}
	if ins.duration, err = m.Float64Histogram(
		"squadfront.commands.duration",
		metric.WithDescription("Handler run time"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}
	return ins, nil
}

func (ins *instruments) begin(command string) {
	ins.inflight.Add(context.Background(), 1, metric.WithAttributes(attribute.String("command", command)))
}

func (ins *instruments) record(command string, took time.Duration, err error) {
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("command", command))
	ins.inflight.Add(ctx, -1, attrs)
	ins.processed.Add(ctx, 1, attrs)
	ins.duration.Record(ctx, float64(took.Microseconds())/1000, attrs)
	if err != nil {
		ins.failed.Add(ctx, 1, attrs)
	}
}
