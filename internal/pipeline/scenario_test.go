package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saulfrancisco-ruizacevedo/tissue-explorer/internal/graphquery"
	"github.com/saulfrancisco-ruizacevedo/tissue-explorer/internal/protein"
)

func assemble(t *testing.T, f *fixture) *protein.Graph {
	t.Helper()
	graph, err := graphquery.NewAssembler(f.store, zap.NewNop(), nil).Assemble(context.Background())
	require.NoError(t, err)
	return graph
}

func TestScenario_ReciprocalRowsCollapse(t *testing.T) {
	f := newFixture(t, 100)
	writeDataset(t, f.dir, "cochlea",
		propertiesHeader+"1|A||\n2|B||\n",
		interactionsHeader+"1|2\n2|1\n")

	_, err := f.loader.Load(context.Background(), "cochlea")
	require.NoError(t, err)

	graph := assemble(t, f)
	require.Len(t, graph.Nodes, 2)
	assert.Equal(t, int64(1), graph.Nodes[0].ID)
	assert.Equal(t, int64(2), graph.Nodes[1].ID)
	assert.Len(t, graph.Links, 1)

	// Before centrality has run, the score is absent.
	resolver, err := graphquery.NewResolver(f.store, zap.NewNop())
	require.NoError(t, err)
	lookup, err := resolver.ByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "A", lookup.Properties.OfficialSymbol)
	assert.False(t, lookup.Properties.Centrality.Valid)
}

func TestScenario_NodeCountMatchesDistinctGeneIDs(t *testing.T) {
	f := newFixture(t, 2)
	writeDataset(t, f.dir, "cochlea",
		propertiesHeader+"10|A||\n20|B||\n10|A2||\n30|C||\n",
		interactionsHeader+"10|20\n20|30\n30|10\n20|10\n10|20\n")

	_, err := f.orch.Reload(context.Background(), "cochlea")
	require.NoError(t, err)

	graph := assemble(t, f)
	assert.Len(t, graph.Nodes, 3)
	assert.Len(t, graph.Links, 3)
}

func TestScenario_NeverLoadedIDIsNotFound(t *testing.T) {
	f := newFixture(t, 100)
	writeDataset(t, f.dir, "cochlea", propertiesHeader+"1|A||\n", interactionsHeader)
	_, err := f.orch.Reload(context.Background(), "cochlea")
	require.NoError(t, err)

	resolver, err := graphquery.NewResolver(f.store, zap.NewNop())
	require.NoError(t, err)
	_, err = resolver.ByID(context.Background(), 2)
	assert.ErrorIs(t, err, protein.ErrNotFound)
}

func TestScenario_MissingResourceLeavesPriorState(t *testing.T) {
	f := newFixture(t, 100)
	f.store.AddNode(map[string]any{protein.PropGeneID: int64(1), protein.PropSymbol: "A"})
	f.store.AddNode(map[string]any{protein.PropGeneID: int64(2), protein.PropSymbol: "B"})
	f.store.AddEdge(1, 2)
	before := assemble(t, f)

	_, err := f.loader.Load(context.Background(), "nowhere")

	var loadErr *protein.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, before, assemble(t, f))
}

func TestCentrality_IsIdempotent(t *testing.T) {
	f := newFixture(t, 100)
	writeDataset(t, f.dir, "cochlea",
		propertiesHeader+"1|A||\n2|B||\n3|C||\n",
		interactionsHeader+"1|2\n2|3\n")
	_, err := f.loader.Load(context.Background(), "cochlea")
	require.NoError(t, err)

	invoker := NewCentralityInvoker(f.store, DefaultCentralityConfig(), zap.NewNop())
	require.NoError(t, invoker.Compute(context.Background()))
	first := assemble(t, f)
	require.NoError(t, invoker.Compute(context.Background()))

	assert.Equal(t, first, assemble(t, f))
	for _, n := range first.Nodes {
		assert.True(t, n.BC.Valid, n.ID)
	}
}

func TestCentrality_EmptyStoreIsNoop(t *testing.T) {
	f := newFixture(t, 100)
	invoker := NewCentralityInvoker(f.store, DefaultCentralityConfig(), zap.NewNop())

	require.NoError(t, invoker.Compute(context.Background()))
	assert.Empty(t, f.store.NodeProps())
	assert.Equal(t, &protein.Graph{Nodes: []protein.GraphNode{}, Links: []protein.Link{}}, assemble(t, f))
}
