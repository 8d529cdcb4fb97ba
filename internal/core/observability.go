package core

import (
	"context"
	"time"
)

// Logger receives structured diagnostics from the service.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// MetricsRecorder observes the outcome and latency of every atomic unit.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// HistoryGauge is implemented by recorders that also track the recency log length.
type HistoryGauge interface {
	SetHistorySize(n int)
}

// Tracer starts a span per atomic unit.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended exactly once with the unit's final error.
type TraceSpan interface {
	End(err error)
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type unitIDKey struct{}

// UnitIDFromContext returns the atomic unit id carried by ctx, if any.
func UnitIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(unitIDKey{}).(string)
	return id, ok
}

func withUnitID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, unitIDKey{}, id)
}
