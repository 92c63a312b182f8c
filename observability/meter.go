package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/scribe/logger"
)

// InitMeter installs a global meter provider exporting to cfg.Endpoint.
func InitMeter(ctx context.Context, cfg Config) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}
	res, err := newResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.Interval))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		logger.FieldEndpoint, cfg.Endpoint,
		"interval", cfg.Interval.String(),
	))
	return mp, nil
}

// Metrics holds the module's instruments. A nil *Metrics records nothing.
type Metrics struct {
	attempts        metric.Int64Counter
	attemptDuration metric.Float64Histogram
	fallbacks       metric.Int64Counter
	hallucinations  metric.Int64Counter
	enhancements    metric.Int64Counter
	chunks          metric.Int64Counter
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	if m.attempts, err = meter.Int64Counter("scribe.engine.attempts",
		metric.WithDescription("Transcription attempts by backend and outcome")); err != nil {
		return nil, fmt.Errorf("creating scribe.engine.attempts: %w", err)
	}
	if m.attemptDuration, err = meter.Float64Histogram("scribe.engine.attempt.duration",
		metric.WithDescription("Duration of transcription attempts"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("creating scribe.engine.attempt.duration: %w", err)
	}
	if m.fallbacks, err = meter.Int64Counter("scribe.engine.fallbacks",
		metric.WithDescription("Moves from one attempt to the next or to the fallback device")); err != nil {
		return nil, fmt.Errorf("creating scribe.engine.fallbacks: %w", err)
	}
	if m.hallucinations, err = meter.Int64Counter("scribe.hallucination.flagged",
		metric.WithDescription("Transcripts replaced by the repetition marker")); err != nil {
		return nil, fmt.Errorf("creating scribe.hallucination.flagged: %w", err)
	}
	if m.enhancements, err = meter.Int64Counter("scribe.enhance.results",
		metric.WithDescription("Enhancements by producing tier")); err != nil {
		return nil, fmt.Errorf("creating scribe.enhance.results: %w", err)
	}
	if m.chunks, err = meter.Int64Counter("scribe.stream.chunks",
		metric.WithDescription("Live chunks by outcome")); err != nil {
		return nil, fmt.Errorf("creating scribe.stream.chunks: %w", err)
	}
	return &m, nil
}

// RecordAttempt records one transcription attempt.
func (m *Metrics) RecordAttempt(ctx context.Context, backend, device, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("device", device),
		attribute.String("outcome", outcome),
	))
	m.attemptDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("backend", backend)))
}

// RecordFallback records a move away from a failed attempt.
func (m *Metrics) RecordFallback(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	m.fallbacks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// RecordHallucination records a flagged transcript.
func (m *Metrics) RecordHallucination(ctx context.Context, backend string) {
	if m == nil {
		return
	}
	m.hallucinations.Add(ctx, 1, metric.WithAttributes(attribute.String("backend", backend)))
}

// RecordEnhancement records which tier produced an enhancement.
func (m *Metrics) RecordEnhancement(ctx context.Context, source string) {
	if m == nil {
		return
	}
	m.enhancements.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

// RecordChunk records a live chunk result.
func (m *Metrics) RecordChunk(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.chunks.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
