package graphstore

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Verifier checks store connectivity.
type Verifier interface {
	Verify(ctx context.Context) error
}

// WaitUntilAvailable blocks until v verifies, retrying at a fixed interval
// with no attempt limit. It only returns early when ctx is done.
func WaitUntilAvailable(ctx context.Context, v Verifier, interval time.Duration, logger *zap.Logger) error {
	attempt := 0
	op := func() error {
		attempt++
		return v.Verify(ctx)
	}
	notify := func(err error, next time.Duration) {
		logger.Info("Graph store probably isn't running yet",
			zap.Int("attempt", attempt),
			zap.Duration("retryIn", next),
			zap.Error(err),
		)
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(interval), ctx)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return err
	}
	logger.Info("Graph store connection established", zap.Int("attempts", attempt))
	return nil
}
