package propagate

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// FailureHook observes a failed propagation step. The error is not returned to the caller.
type FailureHook interface {
	Failed(ctx context.Context, op, step string, err error)
}

// HookFunc adapts a function to FailureHook.
type HookFunc func(ctx context.Context, op, step string, err error)

// Failed implements FailureHook.
func (f HookFunc) Failed(ctx context.Context, op, step string, err error) { f(ctx, op, step, err) }

// MetricsHook logs a warning and counts failures per step.
type MetricsHook struct {
	failures metric.Int64Counter
}

// NewMetricsHook uses the global meter provider.
func NewMetricsHook() *MetricsHook {
	counter, err := otel.Meter("github.com/thebtf/habitgraph/internal/propagate").Int64Counter(
		"habitgraph.propagation.failures",
		metric.WithDescription("Best-effort propagation steps that failed"),
	)
	if err != nil {
		counter = noop.Int64Counter{}
	}
	return &MetricsHook{failures: counter}
}

// Failed implements FailureHook.
func (h *MetricsHook) Failed(ctx context.Context, op, step string, err error) {
	log.Warn().Err(err).Str("op", op).Str("step", step).Msg("Propagation step failed")
	h.failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("step", step),
		attribute.String("op", op),
	))
}
