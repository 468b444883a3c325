// Package pipeline reloads a tissue dataset into the graph store: it clears
// the store, loads nodes and interactions, and has the store compute
// betweenness centrality onto the loaded nodes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/saulfrancisco-ruizacevedo/gocypher"
	"go.uber.org/zap"

	"github.com/saulfrancisco-ruizacevedo/tissue-explorer/internal/dataset"
	"github.com/saulfrancisco-ruizacevedo/tissue-explorer/internal/graphstore"
	"github.com/saulfrancisco-ruizacevedo/tissue-explorer/internal/observability"
	"github.com/saulfrancisco-ruizacevedo/tissue-explorer/internal/protein"
)

var (
	createNodesQuery = fmt.Sprintf(
		"UNWIND $rows AS row CREATE (n:%s) SET n += row",
		protein.Label)
	createIndexQuery = fmt.Sprintf(
		"CREATE INDEX ON :%s(%s)",
		protein.Label, protein.PropGeneID)
	createEdgesQuery = fmt.Sprintf(
		"UNWIND $rows AS row "+
			"MATCH (a:%[1]s {%[2]s: row.source}), (b:%[1]s {%[2]s: row.target}) "+
			"CREATE (a)-[:%[3]s]->(b)",
		protein.Label, protein.PropGeneID, protein.InteractionType)
)

// DefaultBatchSize is the number of rows sent per bulk-create call.
const DefaultBatchSize = 1000

// LoaderConfig configures a Loader.
type LoaderConfig struct {
	BatchSize int
	// CallTimeout bounds each bulk call. Zero keeps the store's default.
	CallTimeout time.Duration
}

// LoadStats counts the rows submitted by a load. Interactions whose gene ids
// match no node are submitted but create nothing.
type LoadStats struct {
	Nodes        int
	Interactions int
}

// Loader clears the store and bulk-loads tissue datasets into it.
type Loader struct {
	runner  graphstore.Runner
	source  dataset.Source
	cfg     LoaderConfig
	logger  *zap.Logger
	metrics *observability.Collector
}

// NewLoader creates a Loader reading datasets from source.
func NewLoader(runner graphstore.Runner, source dataset.Source, cfg LoaderConfig, logger *zap.Logger, metrics *observability.Collector) *Loader {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Loader{runner: runner, source: source, cfg: cfg, logger: logger, metrics: metrics}
}

// Clear deletes every node and relationship. A failure is returned as a
// *protein.ClearError; the store may then still hold some of its contents.
func (l *Loader) Clear(ctx context.Context) error {
	query, params, err := gocypher.NewQueryBuilder().
		Match(gocypher.N("n", "")).
		DetachDelete("n").
		Build()
	if err == nil {
		_, err = l.runner.RunAutoCommit(l.callCtx(ctx, "clear"), query, params)
	}
	if err != nil {
		l.logger.Warn("Clear database went wrong", zap.Error(err))
		return &protein.ClearError{Err: err}
	}
	return nil
}

// Load creates the nodes and interactions of tissue. Nodes are loaded first,
// then the gene id index, then interactions, so an interaction only links
// nodes already present. Failures are returned as *protein.LoadError and
// nothing written before the failure is rolled back.
func (l *Loader) Load(ctx context.Context, tissue string) (LoadStats, error) {
	var stats LoadStats
	if err := dataset.ValidateTissue(tissue); err != nil {
		return stats, &protein.LoadError{Tissue: tissue, Err: err}
	}
	start := time.Now()

	n, err := l.loadNodes(ctx, tissue)
	stats.Nodes = n
	if err != nil {
		return stats, err
	}

	// The index only speeds up the interaction join and later lookups.
	if _, err := l.runner.RunAutoCommit(l.callCtx(ctx, "create-index"), createIndexQuery, nil); err != nil {
		l.logger.Warn("Could not create gene id index",
			zap.String("label", protein.Label),
			zap.String("property", protein.PropGeneID),
			zap.Error(err),
		)
	}

	n, err = l.loadInteractions(ctx, tissue)
	stats.Interactions = n
	if err != nil {
		return stats, err
	}

	l.logger.Info("Data loaded",
		zap.String("tissue", tissue),
		zap.Int("nodes", stats.Nodes),
		zap.Int("interactions", stats.Interactions),
		zap.Duration("duration", time.Since(start)),
	)
	return stats, nil
}

func (l *Loader) loadNodes(ctx context.Context, tissue string) (int, error) {
	name := dataset.PropertiesName(tissue)
	rc, err := l.source.Open(ctx, name)
	if err != nil {
		return 0, l.loadError(tissue, name, err)
	}
	defer rc.Close()

	r, err := dataset.NewPropertyReader(rc)
	if err != nil {
		return 0, l.loadError(tissue, name, err)
	}

	b := l.newBatch(createNodesQuery, "load-nodes", "nodes")
	for {
		row, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return b.written, l.loadError(tissue, name, err)
		}
		if err := b.add(ctx, row.Props()); err != nil {
			return b.written, l.loadError(tissue, name, err)
		}
	}
	if err := b.flush(ctx); err != nil {
		return b.written, l.loadError(tissue, name, err)
	}
	return b.written, nil
}

func (l *Loader) loadInteractions(ctx context.Context, tissue string) (int, error) {
	name := dataset.InteractionsName(tissue)
	rc, err := l.source.Open(ctx, name)
	if err != nil {
		return 0, l.loadError(tissue, name, err)
	}
	defer rc.Close()

	r, err := dataset.NewInteractionReader(rc)
	if err != nil {
		return 0, l.loadError(tissue, name, err)
	}

	b := l.newBatch(createEdgesQuery, "load-interactions", "interactions")
	for {
		in, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return b.written, l.loadError(tissue, name, err)
		}
		if err := b.add(ctx, map[string]any{"source": in.Source, "target": in.Target}); err != nil {
			return b.written, l.loadError(tissue, name, err)
		}
	}
	if err := b.flush(ctx); err != nil {
		return b.written, l.loadError(tissue, name, err)
	}
	return b.written, nil
}

func (l *Loader) loadError(tissue, name string, err error) error {
	le := &protein.LoadError{Tissue: tissue, Resource: l.source.Location(name), Err: err}
	var rowErr *dataset.RowError
	if errors.As(err, &rowErr) {
		le.Line = rowErr.Line
		le.Err = rowErr.Err
	}
	l.logger.Error("Data loading went wrong",
		zap.String("tissue", tissue),
		zap.String("resource", le.Resource),
		zap.Int("line", le.Line),
		zap.Error(le.Err),
	)
	return le
}

func (l *Loader) callCtx(ctx context.Context, op string) context.Context {
	ctx = graphstore.WithOperation(ctx, op)
	if l.cfg.CallTimeout > 0 {
		ctx = graphstore.WithCallTimeout(ctx, l.cfg.CallTimeout)
	}
	return ctx
}

// batch buffers rows for one UNWIND query.
type batch struct {
	l       *Loader
	query   string
	op      string
	kind    string
	rows    []map[string]any
	written int
}

func (l *Loader) newBatch(query, op, kind string) *batch {
	return &batch{l: l, query: query, op: op, kind: kind, rows: make([]map[string]any, 0, l.cfg.BatchSize)}
}

func (b *batch) add(ctx context.Context, row map[string]any) error {
	b.rows = append(b.rows, row)
	if len(b.rows) < b.l.cfg.BatchSize {
		return nil
	}
	return b.flush(ctx)
}

func (b *batch) flush(ctx context.Context) error {
	if len(b.rows) == 0 {
		return nil
	}
	if _, err := b.l.runner.Run(b.l.callCtx(ctx, b.op), b.query, map[string]any{"rows": b.rows}); err != nil {
		return err
	}
	b.written += len(b.rows)
	b.l.metrics.AddRows(b.kind, len(b.rows))
	b.rows = make([]map[string]any, 0, b.l.cfg.BatchSize)
	return nil
}
