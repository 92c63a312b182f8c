package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.ServiceName != "scribe" || cfg.Endpoint != "localhost:4318" {
		t.Errorf("got %+v", cfg)
	}
	if cfg.SampleRate != 1.0 || cfg.Interval != 15*time.Second {
		t.Errorf("got %+v", cfg)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordAttempt(ctx, "in_process", "cpu", "ok", time.Second)
	m.RecordFallback(ctx, "a", "b")
	m.RecordHallucination(ctx, "x")
	m.RecordEnhancement(ctx, "rule_based")
	m.RecordChunk(ctx, "ok")
}

func TestMetrics_NoopMeter(t *testing.T) {
	m, err := NewMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.RecordAttempt(context.Background(), "heavy_server", "accelerated", "transient", time.Millisecond)
}

func TestMetrics_AttemptsCounted(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	ctx := context.Background()
	m.RecordAttempt(ctx, "in_process", "accelerated", "transient", time.Millisecond)
	m.RecordAttempt(ctx, "in_process", "cpu", "ok", time.Millisecond)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if md.Name != "scribe.engine.attempts" {
				continue
			}
			for _, dp := range md.Data.(metricdata.Sum[int64]).DataPoints {
				total += dp.Value
			}
		}
	}
	if total != 2 {
		t.Errorf("attempts = %d, want 2", total)
	}
}

func TestStartSpan_EndSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	_, span := tp.Tracer(TracerName).Start(context.Background(), SpanAttempt)
	span.SetAttributes(attribute.String(AttrBackend, "in_process"))
	EndSpan(span, errors.New("cuda error"))

	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("ended spans = %d", len(ended))
	}
	if ended[0].Status().Code != otelcodes.Error {
		t.Errorf("status = %v", ended[0].Status())
	}
	if len(ended[0].Events()) == 0 {
		t.Error("expected recorded error event")
	}
}

func TestSetup_Disabled(t *testing.T) {
	m, shutdown, err := Setup(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if m == nil {
		t.Fatal("expected metrics")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestServiceHealth(t *testing.T) {
	sh := NewServiceHealth("scribe", "1.0.0")
	sh.AddComponent(Health{Name: "aligned_diarization", Status: HealthStatusDown}, false)
	if sh.Status != HealthStatusDegraded {
		t.Errorf("status = %s, want degraded", sh.Status)
	}
	sh.AddComponent(Health{Name: "credentials", Status: HealthStatusDown}, true)
	if sh.Status != HealthStatusDown {
		t.Errorf("status = %s, want down", sh.Status)
	}
	if len(sh.Components) != 2 {
		t.Errorf("components = %d", len(sh.Components))
	}
}
