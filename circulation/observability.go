package circulation

import (
	"context"
	"time"
)

// Logger receives the engine's log output: SQL timing at debug level,
// operation outcomes at info, setting fallbacks and cleanup problems at warn,
// and failed statements at error. *slog.Logger satisfies it directly.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MetricsCollector receives operation durations, error and conflict counts,
// and accrued fine amounts. The interface carries no backend types; adapters
// for concrete metric systems live outside the core module.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}

// ContextualMetricsCollector adds context-carrying variants of the
// MetricsCollector methods. When a collector implements it, the engine calls
// these instead so that recordings can be correlated with an active trace.
type ContextualMetricsCollector interface {
	MetricsCollector
	RecordDurationContext(ctx context.Context, metric string, duration time.Duration, labels map[string]string)
	IncrementCounterContext(ctx context.Context, metric string, labels map[string]string)
	RecordValueContext(ctx context.Context, metric string, value float64, labels map[string]string)
}

// SpanContext is an open span handle. Attributes may be added until the span
// is finished through TracingCollector.FinishSpan.
type SpanContext interface {
	SetStatus(status string)
	AddAttribute(key, value string)
}

// TracingCollector opens one span per circulation operation and finishes it
// with the outcome. Like MetricsCollector it is backend-agnostic; the
// oteladapters module provides an OpenTelemetry implementation.
type TracingCollector interface {
	StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, SpanContext)
	FinishSpan(spanCtx SpanContext, status string, attrs map[string]string)
}

// ContextualLogger is the context-aware counterpart of Logger. When both are
// configured the engine prefers this one, so log records can pick up trace
// and span ids from the context.
type ContextualLogger interface {
	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}
