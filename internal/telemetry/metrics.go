package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/metric"

	"github.com/huypham612/dynastream/pkg/metrics"
)

// MeterProvider adapts an otel meter to the pipeline metrics interfaces:
// counters as Float64Counter, distribution summaries as Float64Histogram.
// The underlying instruments are safe for concurrent use from all shard
// workers. Instrument creation failures degrade to no-ops; metrics are not
// worth failing the pipeline over.
type MeterProvider struct {
	meter metric.Meter
}

func NewMeterProvider(service string) *MeterProvider {
	return &MeterProvider{meter: Meter(service)}
}

func (p *MeterProvider) Counter(name string) metrics.Counter {
	counter, err := p.meter.Float64Counter(name)
	if err != nil {
		return metrics.Nop{}.Counter(name)
	}
	return &otelCounter{counter: counter}
}

func (p *MeterProvider) Summary(name string) metrics.Summary {
	histogram, err := p.meter.Float64Histogram(name)
	if err != nil {
		return metrics.Nop{}.Summary(name)
	}
	return &otelSummary{histogram: histogram}
}

type otelCounter struct {
	counter metric.Float64Counter
}

func (c *otelCounter) Increment(delta float64) {
	c.counter.Add(context.Background(), delta)
}

type otelSummary struct {
	histogram metric.Float64Histogram
}

func (s *otelSummary) Record(value float64) {
	s.histogram.Record(context.Background(), value)
}
