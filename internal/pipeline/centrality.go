package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/saulfrancisco-ruizacevedo/tissue-explorer/internal/graphstore"
	"github.com/saulfrancisco-ruizacevedo/tissue-explorer/internal/protein"
)

// CentralityConfig selects the computation mode of the store's betweenness
// centrality procedure.
type CentralityConfig struct {
	Directed   bool
	Normalized bool
	// CallTimeout bounds the procedure call. Zero keeps the store's default.
	CallTimeout time.Duration
}

// DefaultCentralityConfig is a directed, unnormalized computation.
func DefaultCentralityConfig() CentralityConfig {
	return CentralityConfig{Directed: true, Normalized: false}
}

// CentralityInvoker runs the store's betweenness centrality procedure over the
// whole graph and writes each score onto its node.
type CentralityInvoker struct {
	runner graphstore.Runner
	cfg    CentralityConfig
	query  string
	logger *zap.Logger
}

// NewCentralityInvoker creates an invoker for the given mode.
func NewCentralityInvoker(runner graphstore.Runner, cfg CentralityConfig, logger *zap.Logger) *CentralityInvoker {
	return &CentralityInvoker{
		runner: runner,
		cfg:    cfg,
		query:  centralityQuery(cfg.Directed, cfg.Normalized),
		logger: logger,
	}
}

func centralityQuery(directed, normalized bool) string {
	return fmt.Sprintf(
		"CALL betweenness_centrality.get(%s, %s) YIELD node, betweenness_centrality "+
			"SET node.%s = toFloat(betweenness_centrality)",
		cypherBool(directed), cypherBool(normalized), protein.PropCentrality)
}

func cypherBool(b bool) string {
	return strings.ToUpper(fmt.Sprint(b))
}

// Compute runs the procedure. On an empty store it writes nothing. A failure
// is returned as a *protein.CentralityError and nodes keep no score.
func (c *CentralityInvoker) Compute(ctx context.Context) error {
	start := time.Now()
	ctx = graphstore.WithOperation(ctx, "centrality")
	if c.cfg.CallTimeout > 0 {
		ctx = graphstore.WithCallTimeout(ctx, c.cfg.CallTimeout)
	}
	if _, err := c.runner.RunAutoCommit(ctx, c.query, nil); err != nil {
		c.logger.Warn("Calculating betweenness centrality went wrong", zap.Error(err))
		return &protein.CentralityError{Err: err}
	}
	c.logger.Info("Betweenness Centrality calculated",
		zap.Bool("directed", c.cfg.Directed),
		zap.Bool("normalized", c.cfg.Normalized),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}
