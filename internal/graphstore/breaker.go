package graphstore

import (
	"context"
	"errors"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig configures BreakerRunner.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32        // requests allowed while half-open
	Interval         time.Duration // closed-state window for clearing counts
	Timeout          time.Duration // how long the breaker stays open
	FailureThreshold float64       // failure ratio that opens the breaker
	MinRequests      uint32        // requests needed before the ratio counts
}

// DefaultBreakerConfig returns the settings used when none are configured.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          15 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// BreakerRunner fails fast with gobreaker.ErrOpenState while the store keeps
// failing, instead of letting every request wait out its timeout.
type BreakerRunner struct {
	next Runner
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerRunner wraps next with a circuit breaker.
func NewBreakerRunner(next Runner, cfg BreakerConfig, logger *zap.Logger) *BreakerRunner {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Graph store circuit breaker changed state",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// A caller giving up is not a store failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return &BreakerRunner{next: next, cb: cb}
}

// State reports the breaker state.
func (b *BreakerRunner) State() gobreaker.State { return b.cb.State() }

// Run forwards to the wrapped runner while the breaker is closed and fails
// fast with gobreaker.ErrOpenState while it is open.
func (b *BreakerRunner) Run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	return b.execute(func() (*neo4j.EagerResult, error) {
		return b.next.Run(ctx, query, params)
	})
}

// RunAutoCommit is Run for statements that need an implicit transaction.
func (b *BreakerRunner) RunAutoCommit(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	return b.execute(func() (*neo4j.EagerResult, error) {
		return b.next.RunAutoCommit(ctx, query, params)
	})
}

func (b *BreakerRunner) execute(fn func() (*neo4j.EagerResult, error)) (*neo4j.EagerResult, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		return nil, err
	}
	return out.(*neo4j.EagerResult), nil
}
