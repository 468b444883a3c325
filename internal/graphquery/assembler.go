// Package graphquery reads the loaded graph back out of the store: the whole
// interaction network for the visualization, and single proteins by gene id.
package graphquery

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/saulfrancisco-ruizacevedo/gocypher"
	"go.uber.org/zap"

	"github.com/saulfrancisco-ruizacevedo/tissue-explorer/internal/graphstore"
	"github.com/saulfrancisco-ruizacevedo/tissue-explorer/internal/observability"
	"github.com/saulfrancisco-ruizacevedo/tissue-explorer/internal/protein"
)

// Assembler builds the visualization graph from every stored interaction.
type Assembler struct {
	runner  graphstore.Runner
	logger  *zap.Logger
	metrics *observability.Collector
}

// NewAssembler creates an Assembler.
func NewAssembler(runner graphstore.Runner, logger *zap.Logger, metrics *observability.Collector) *Assembler {
	return &Assembler{runner: runner, logger: logger, metrics: metrics}
}

// Assemble returns every protein that takes part in an interaction, once per
// gene id, and every interacting pair once regardless of direction. Proteins
// without interactions are not included. Nodes are ordered by id and links by
// source then target. An empty store yields empty, non-nil slices.
//
// Parameters:
//   - ctx: The context for the query execution.
//
// Returns:
//   - A pointer to a protein.Graph with the deduplicated nodes and links.
//   - A *protein.QueryError if the store could not be read.
func (a *Assembler) Assemble(ctx context.Context) (*protein.Graph, error) {
	// 1. Match every interaction with both endpoints.
	query, params, err := gocypher.NewQueryBuilder().
		Match(
			gocypher.N("a", protein.Label),
			gocypher.R("r", protein.InteractionType).To(),
			gocypher.N("b", protein.Label),
		).
		Return("a", "b").
		Build()
	if err != nil {
		return nil, &protein.QueryError{Op: "assemble graph", Err: fmt.Errorf("could not build query: %w", err)}
	}

	eagerResult, err := a.runner.Run(graphstore.WithOperation(ctx, "assemble"), query, params)
	if err != nil {
		return nil, &protein.QueryError{Op: "assemble graph", Err: err}
	}

	// 2. Prepare the result and the maps used for de-duplication.
	nodes := make(map[int64]protein.GraphNode)
	seenPairs := make(map[[2]int64]bool)
	graph := &protein.Graph{
		Nodes: make([]protein.GraphNode, 0),
		Links: make([]protein.Link, 0),
	}

	// 3. Walk the records. The first node seen for a gene id wins, and the
	// first orientation seen for a pair is the one reported.
	for _, record := range eagerResult.Records {
		var ids [2]int64
		for i, key := range []string{"a", "b"} {
			raw, err := graphstore.NodeAt(record, key)
			if err != nil {
				return nil, &protein.QueryError{Op: "assemble graph", Err: err}
			}
			n, err := graphstore.Decode[protein.Node](raw)
			if err != nil {
				return nil, &protein.QueryError{Op: "assemble graph", Err: err}
			}
			ids[i] = n.GeneID
			if _, ok := nodes[n.GeneID]; !ok {
				nodes[n.GeneID] = protein.GraphNode{
					ID:     n.GeneID,
					BC:     protein.ScoreOf(n.Centrality),
					Symbol: n.Symbol,
				}
			}
		}
		if seenPairs[ids] || seenPairs[[2]int64{ids[1], ids[0]}] {
			continue
		}
		seenPairs[ids] = true
		graph.Links = append(graph.Links, protein.Link{Source: ids[0], Target: ids[1]})
	}

	for _, n := range nodes {
		graph.Nodes = append(graph.Nodes, n)
	}
	slices.SortFunc(graph.Nodes, func(x, y protein.GraphNode) int { return cmp.Compare(x.ID, y.ID) })
	slices.SortFunc(graph.Links, func(x, y protein.Link) int {
		if c := cmp.Compare(x.Source, y.Source); c != 0 {
			return c
		}
		return cmp.Compare(x.Target, y.Target)
	})

	a.metrics.SetGraphSize(len(graph.Nodes), len(graph.Links))
	a.logger.Debug("Graph assembled",
		zap.Int("records", len(eagerResult.Records)),
		zap.Int("nodes", len(graph.Nodes)),
		zap.Int("links", len(graph.Links)),
	)
	return graph, nil
}
