package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saulfrancisco-ruizacevedo/tissue-explorer/internal/dataset"
	"github.com/saulfrancisco-ruizacevedo/tissue-explorer/internal/observability"
	"github.com/saulfrancisco-ruizacevedo/tissue-explorer/internal/protein"
)

// DatasetLoader is the store-mutating half of a reload.
type DatasetLoader interface {
	Clear(ctx context.Context) error
	Load(ctx context.Context, tissue string) (LoadStats, error)
}

// CentralityComputer computes and stores centrality scores.
type CentralityComputer interface {
	Compute(ctx context.Context) error
}

// Report describes one reload run.
type Report struct {
	RunID    string
	Tissue   string
	Stats    LoadStats
	Duration time.Duration
}

// Orchestrator runs clear, load and compute-centrality as one exclusive
// section of the gate. Repeating a reload is safe.
type Orchestrator struct {
	loader     DatasetLoader
	centrality CentralityComputer
	gate       *Gate
	timeout    time.Duration
	logger     *zap.Logger
	metrics    *observability.Collector
}

// NewOrchestrator creates an orchestrator. A zero timeout leaves runs unbounded
// apart from the per-call store timeouts.
func NewOrchestrator(loader DatasetLoader, centrality CentralityComputer, gate *Gate, timeout time.Duration, logger *zap.Logger, metrics *observability.Collector) *Orchestrator {
	return &Orchestrator{
		loader:     loader,
		centrality: centrality,
		gate:       gate,
		timeout:    timeout,
		logger:     logger,
		metrics:    metrics,
	}
}

// Reload replaces the store contents with tissue's dataset.
//
// An invalid tissue name is rejected before anything is cleared. A failed
// clear stops the run, since loading on top of old data would duplicate
// gene ids. A failed load stops the run without computing centrality. Every
// error is one of *protein.LoadError, *protein.ClearError or
// *protein.CentralityError.
func (o *Orchestrator) Reload(ctx context.Context, tissue string) (Report, error) {
	report := Report{RunID: uuid.NewString(), Tissue: tissue}
	if err := dataset.ValidateTissue(tissue); err != nil {
		o.metrics.CountRun("rejected")
		return report, &protein.LoadError{Tissue: tissue, Err: err}
	}

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	log := o.logger.With(zap.String("runID", report.RunID), zap.String("tissue", tissue))

	err := o.gate.Exclusive(func() error {
		start := time.Now()
		defer func() { report.Duration = time.Since(start) }()

		log.Info("Reload started")
		if err := o.step("clear", func() error { return o.loader.Clear(ctx) }); err != nil {
			return err
		}
		if err := o.step("load", func() error {
			stats, err := o.loader.Load(ctx, tissue)
			report.Stats = stats
			return err
		}); err != nil {
			return err
		}
		return o.step("centrality", func() error { return o.centrality.Compute(ctx) })
	})

	outcome := classify(err)
	o.metrics.CountRun(outcome)
	if err != nil {
		log.Warn("Reload finished with errors",
			zap.String("outcome", outcome),
			zap.Int("nodes", report.Stats.Nodes),
			zap.Int("interactions", report.Stats.Interactions),
			zap.Error(err),
		)
		return report, err
	}
	log.Info("Reload finished",
		zap.Int("nodes", report.Stats.Nodes),
		zap.Int("interactions", report.Stats.Interactions),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

func (o *Orchestrator) step(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	o.metrics.ObserveStep(name, time.Since(start))
	return err
}

func classify(err error) string {
	var (
		clearErr      *protein.ClearError
		loadErr       *protein.LoadError
		centralityErr *protein.CentralityError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &clearErr):
		return "clear_failed"
	case errors.As(err, &loadErr):
		return "load_failed"
	case errors.As(err, &centralityErr):
		return "centrality_failed"
	}
	return "failed"
}
