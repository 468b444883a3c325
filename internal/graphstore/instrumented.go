package graphstore

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// QueryObserver receives the outcome of every store call.
type QueryObserver interface {
	ObserveQuery(operation string, d time.Duration, err error)
}

// InstrumentedRunner reports each call to a QueryObserver, labelled with the
// operation name carried by the context.
type InstrumentedRunner struct {
	next     Runner
	observer QueryObserver
}

// NewInstrumentedRunner wraps next.
func NewInstrumentedRunner(next Runner, observer QueryObserver) *InstrumentedRunner {
	return &InstrumentedRunner{next: next, observer: observer}
}

// Run times the query and reports it under the operation name carried by ctx.
func (r *InstrumentedRunner) Run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	start := time.Now()
	res, err := r.next.Run(ctx, query, params)
	r.observer.ObserveQuery(Operation(ctx), time.Since(start), err)
	return res, err
}

// RunAutoCommit is the timed counterpart of Runner.RunAutoCommit.
func (r *InstrumentedRunner) RunAutoCommit(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	start := time.Now()
	res, err := r.next.RunAutoCommit(ctx, query, params)
	r.observer.ObserveQuery(Operation(ctx), time.Since(start), err)
	return res, err
}
