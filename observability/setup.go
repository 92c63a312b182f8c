package observability

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
)

// Setup initializes tracing and metrics when cfg.Enabled and returns the
// module metrics with a shutdown function. When disabled, the global no-op
// providers stay in place and shutdown does nothing.
func Setup(ctx context.Context, cfg Config) (*Metrics, func(context.Context) error, error) {
	cfg.ApplyDefaults()
	if !cfg.Enabled {
		m, err := NewMetrics(otel.Meter(TracerName))
		return m, func(context.Context) error { return nil }, err
	}

	tp, err := InitTracer(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	mp, err := InitMeter(ctx, cfg)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, nil, err
	}
	m, err := NewMetrics(mp.Meter(TracerName))
	if err != nil {
		return nil, nil, errors.Join(err, tp.Shutdown(ctx), mp.Shutdown(ctx))
	}
	return m, func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}
