// Package observe provides OpenTelemetry metrics for sequence generation and
// a Prometheus bridge to scrape them.
package observe

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const meterName = "github.com/ieee0824/phoneseq-go"

// Metrics holds the metric instruments. All fields are safe for concurrent use.
type Metrics struct {
	// Sequences counts processed orthographies. Use with attribute
	// attribute.String("status", "ok"|"unresolved"|"unknown_state").
	Sequences metric.Int64Counter

	// States counts emitted allophone states. Use with attribute
	// attribute.String("kind", "real"|"garbage").
	States metric.Int64Counter

	// GarbageSequences counts generated garbage sequences.
	GarbageSequences metric.Int64Counter

	// SequenceLength records the number of states per real sequence.
	SequenceLength metric.Int64Histogram

	// BatchDuration tracks the wall time of a batch in seconds.
	BatchDuration metric.Float64Histogram
}

var lengthBuckets = []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

// NewMetrics creates the instruments from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Sequences, err = m.Int64Counter("phoneseq.sequences",
		metric.WithDescription("Orthographies processed, by status."),
	); err != nil {
		return nil, err
	}
	if met.States, err = m.Int64Counter("phoneseq.states",
		metric.WithDescription("Allophone states emitted, by kind."),
	); err != nil {
		return nil, err
	}
	if met.GarbageSequences, err = m.Int64Counter("phoneseq.garbage_sequences",
		metric.WithDescription("Garbage sequences generated."),
	); err != nil {
		return nil, err
	}
	if met.SequenceLength, err = m.Int64Histogram("phoneseq.sequence.length",
		metric.WithDescription("Allophone states per generated sequence."),
		metric.WithExplicitBucketBoundaries(lengthBuckets...),
	); err != nil {
		return nil, err
	}
	if met.BatchDuration, err = m.Float64Histogram("phoneseq.batch.duration",
		metric.WithDescription("Wall time of a generation batch."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// RecordSequence records one processed orthography.
func (m *Metrics) RecordSequence(ctx context.Context, status string, numStates int) {
	m.Sequences.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	if status != StatusOK {
		return
	}
	m.States.Add(ctx, int64(numStates), metric.WithAttributes(attribute.String("kind", "real")))
	m.SequenceLength.Record(ctx, int64(numStates))
}

// RecordGarbage records one garbage sequence.
func (m *Metrics) RecordGarbage(ctx context.Context, numStates int) {
	m.GarbageSequences.Add(ctx, 1)
	m.States.Add(ctx, int64(numStates), metric.WithAttributes(attribute.String("kind", "garbage")))
}

// Sequence statuses.
const (
	StatusOK           = "ok"
	StatusUnresolved   = "unresolved"
	StatusUnknownState = "unknown_state"
)

// InitProvider registers a global MeterProvider backed by a Prometheus
// exporter and returns the /metrics handler plus a shutdown function.
func InitProvider(ctx context.Context, serviceName, version string) (http.Handler, func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, nil, err
	}
	exp, err := promexporter.New()
	if err != nil {
		return nil, nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exp),
	)
	otel.SetMeterProvider(mp)
	return promhttp.Handler(), mp.Shutdown, nil
}
