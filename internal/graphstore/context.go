package graphstore

import (
	"context"
	"time"
)

type operationKey struct{}

type callTimeoutKey struct{}

// WithOperation names the logical operation a store call belongs to. The name
// is used as a metrics label by InstrumentedRunner.
func WithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, operationKey{}, op)
}

// Operation returns the operation name set by WithOperation, or "unknown".
func Operation(ctx context.Context) string {
	if op, ok := ctx.Value(operationKey{}).(string); ok && op != "" {
		return op
	}
	return "unknown"
}

// WithCallTimeout overrides the Executor's per-call timeout for calls made
// with the returned context. Long bulk steps use it.
func WithCallTimeout(ctx context.Context, d time.Duration) context.Context {
	return context.WithValue(ctx, callTimeoutKey{}, d)
}

func callTimeout(ctx context.Context) (time.Duration, bool) {
	d, ok := ctx.Value(callTimeoutKey{}).(time.Duration)
	return d, ok && d > 0
}
