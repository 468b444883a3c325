package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saulfrancisco-ruizacevedo/tissue-explorer/internal/dataset"
	"github.com/saulfrancisco-ruizacevedo/tissue-explorer/internal/graphstore/graphstoretest"
	"github.com/saulfrancisco-ruizacevedo/tissue-explorer/internal/observability"
	"github.com/saulfrancisco-ruizacevedo/tissue-explorer/internal/protein"
)

const propertiesHeader = "EntrezGeneID|OfficialSymbol|OfficialFullName|Summary\n"
const interactionsHeader = "EntrezGeneID1|EntrezGeneID2\n"

func writeDataset(t *testing.T, dir, tissue, properties, interactions string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, dataset.PropertiesName(tissue)), []byte(properties), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, dataset.InteractionsName(tissue)), []byte(interactions), 0o644))
}

type fixture struct {
	store   *graphstoretest.Store
	dir     string
	metrics *observability.Collector
	orch    *Orchestrator
	loader  *Loader
}

func newFixture(t *testing.T, batchSize int) *fixture {
	t.Helper()
	f := &fixture{
		store:   &graphstoretest.Store{},
		dir:     t.TempDir(),
		metrics: observability.NewCollector("test"),
	}
	logger := zap.NewNop()
	f.loader = NewLoader(f.store, dataset.FSSource{Dir: f.dir}, LoaderConfig{BatchSize: batchSize}, logger, f.metrics)
	centrality := NewCentralityInvoker(f.store, DefaultCentralityConfig(), logger)
	f.orch = NewOrchestrator(f.loader, centrality, &Gate{}, time.Minute, logger, f.metrics)
	return f
}

func geneIDs(props []map[string]any) []int64 {
	var ids []int64
	for _, p := range props {
		ids = append(ids, p[protein.PropGeneID].(int64))
	}
	return ids
}

func TestReload_LoadsNodesEdgesAndCentrality(t *testing.T) {
	f := newFixture(t, 2)
	writeDataset(t, f.dir, "cochlea",
		propertiesHeader+
			"1|A|Alpha|first\n"+
			"2|B|Beta|second\n"+
			"3|C|Gamma|third\n",
		interactionsHeader+
			"1|2\n"+
			"2|3\n"+
			"3|99\n")

	report, err := f.orch.Reload(context.Background(), "cochlea")
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "cochlea", report.Tissue)
	assert.Equal(t, LoadStats{Nodes: 3, Interactions: 3}, report.Stats)

	props := f.store.NodeProps()
	assert.Equal(t, []int64{1, 2, 3}, geneIDs(props))
	assert.Equal(t, "Beta", props[1][protein.PropFullName])
	// The interaction to an unknown gene id creates nothing.
	assert.Equal(t, 2, f.store.EdgeCount())
	for _, p := range props {
		assert.Contains(t, p, protein.PropCentrality)
	}
	assert.Equal(t, 1.0, props[1][protein.PropCentrality])

	kinds := make([]graphstoretest.Kind, 0)
	for _, c := range f.store.Calls() {
		kinds = append(kinds, c.Kind)
	}
	assert.Equal(t, []graphstoretest.Kind{
		graphstoretest.KindClear,
		graphstoretest.KindCreateNodes,
		graphstoretest.KindCreateNodes,
		graphstoretest.KindIndex,
		graphstoretest.KindCreateEdges,
		graphstoretest.KindCreateEdges,
		graphstoretest.KindCentrality,
	}, kinds)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PipelineRuns.WithLabelValues("ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.RowsLoaded.WithLabelValues("nodes")))
}

func TestReload_IsRepeatable(t *testing.T) {
	f := newFixture(t, 100)
	writeDataset(t, f.dir, "cochlea", propertiesHeader+"1|A||\n2|B||\n", interactionsHeader+"1|2\n")

	for i := 0; i < 2; i++ {
		_, err := f.orch.Reload(context.Background(), "cochlea")
		require.NoError(t, err)
	}
	assert.Len(t, f.store.NodeProps(), 2)
	assert.Equal(t, 1, f.store.EdgeCount())
}

func TestReload_ReplacesPreviousTissue(t *testing.T) {
	f := newFixture(t, 100)
	writeDataset(t, f.dir, "cochlea", propertiesHeader+"1|A||\n2|B||\n", interactionsHeader+"1|2\n")
	writeDataset(t, f.dir, "retina", propertiesHeader+"7|X||\n", interactionsHeader)

	_, err := f.orch.Reload(context.Background(), "cochlea")
	require.NoError(t, err)
	_, err = f.orch.Reload(context.Background(), "retina")
	require.NoError(t, err)

	assert.Equal(t, []int64{7}, geneIDs(f.store.NodeProps()))
	assert.Zero(t, f.store.EdgeCount())
}

func TestReload_InvalidTissueKeepsStore(t *testing.T) {
	f := newFixture(t, 100)
	f.store.AddNode(map[string]any{protein.PropGeneID: int64(5)})

	for _, tissue := range []string{"", "../etc", "a/b", "-x"} {
		_, err := f.orch.Reload(context.Background(), tissue)
		var loadErr *protein.LoadError
		require.ErrorAs(t, err, &loadErr, tissue)
		assert.ErrorIs(t, err, dataset.ErrInvalidTissue)
	}
	assert.Empty(t, f.store.CallsOf(graphstoretest.KindClear))
	assert.Len(t, f.store.NodeProps(), 1)
}

func TestReload_MissingDatasetIsLoadError(t *testing.T) {
	f := newFixture(t, 100)

	_, err := f.orch.Reload(context.Background(), "nowhere")

	var loadErr *protein.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, filepath.Join(f.dir, dataset.PropertiesName("nowhere")), loadErr.Resource)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Empty(t, f.store.CallsOf(graphstoretest.KindCentrality))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PipelineRuns.WithLabelValues("load_failed")))
}

func TestReload_MalformedRowKeepsEarlierBatches(t *testing.T) {
	f := newFixture(t, 2)
	writeDataset(t, f.dir, "cochlea",
		propertiesHeader+
			"1|A||\n"+
			"2|B||\n"+
			"x|C||\n",
		interactionsHeader)

	report, err := f.orch.Reload(context.Background(), "cochlea")

	var loadErr *protein.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, 4, loadErr.Line)
	assert.Equal(t, 2, report.Stats.Nodes)
	assert.Equal(t, []int64{1, 2}, geneIDs(f.store.NodeProps()))
	assert.Empty(t, f.store.CallsOf(graphstoretest.KindCreateEdges))
	assert.Empty(t, f.store.CallsOf(graphstoretest.KindCentrality))
}

func TestReload_ClearFailureAborts(t *testing.T) {
	f := newFixture(t, 100)
	writeDataset(t, f.dir, "cochlea", propertiesHeader+"1|A||\n", interactionsHeader)
	f.store.FailOn(graphstoretest.KindClear, errors.New("store down"))

	_, err := f.orch.Reload(context.Background(), "cochlea")

	var clearErr *protein.ClearError
	require.ErrorAs(t, err, &clearErr)
	assert.Empty(t, f.store.CallsOf(graphstoretest.KindCreateNodes))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PipelineRuns.WithLabelValues("clear_failed")))
}

func TestReload_CentralityFailureKeepsData(t *testing.T) {
	f := newFixture(t, 100)
	writeDataset(t, f.dir, "cochlea", propertiesHeader+"1|A||\n2|B||\n", interactionsHeader+"1|2\n")
	f.store.FailOn(graphstoretest.KindCentrality, errors.New("module missing"))

	_, err := f.orch.Reload(context.Background(), "cochlea")

	var centralityErr *protein.CentralityError
	require.ErrorAs(t, err, &centralityErr)
	props := f.store.NodeProps()
	require.Len(t, props, 2)
	assert.NotContains(t, props[0], protein.PropCentrality)
	assert.Equal(t, 1, f.store.EdgeCount())
}

func TestReload_IndexFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, 100)
	writeDataset(t, f.dir, "cochlea", propertiesHeader+"1|A||\n2|B||\n", interactionsHeader+"1|2\n")
	f.store.FailOn(graphstoretest.KindIndex, errors.New("index exists"))

	_, err := f.orch.Reload(context.Background(), "cochlea")

	require.NoError(t, err)
	assert.Equal(t, 1, f.store.EdgeCount())
}

func TestLoader_StatementsUseAutoCommitWhereRequired(t *testing.T) {
	f := newFixture(t, 100)
	writeDataset(t, f.dir, "cochlea", propertiesHeader+"1|A||\n", interactionsHeader)

	_, err := f.orch.Reload(context.Background(), "cochlea")
	require.NoError(t, err)

	for _, c := range f.store.Calls() {
		switch c.Kind {
		case graphstoretest.KindClear, graphstoretest.KindIndex, graphstoretest.KindCentrality:
			assert.True(t, c.AutoCommit, c.Kind)
		default:
			assert.False(t, c.AutoCommit, c.Kind)
		}
	}
	assert.Equal(t, []string{"CREATE INDEX ON :PROTEIN(EntrezGeneID)"}, f.store.Indexes())
}

func TestCentralityQuery(t *testing.T) {
	assert.Equal(t,
		"CALL betweenness_centrality.get(TRUE, FALSE) YIELD node, betweenness_centrality "+
			"SET node.BetweennessCentrality = toFloat(betweenness_centrality)",
		centralityQuery(true, false))
	assert.Contains(t, centralityQuery(false, true), "get(FALSE, TRUE)")
}

func TestGate_ExclusiveBlocksShared(t *testing.T) {
	var g Gate
	var inExclusive atomic.Bool
	entered := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = g.Exclusive(func() error {
			inExclusive.Store(true)
			close(entered)
			<-release
			inExclusive.Store(false)
			return nil
		})
	}()
	<-entered

	var wg sync.WaitGroup
	sawExclusive := make(chan bool, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = g.Shared(func() error {
				sawExclusive <- inExclusive.Load()
				return nil
			})
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(sawExclusive)
	for saw := range sawExclusive {
		assert.False(t, saw)
	}
}

func TestGate_ReturnsSectionError(t *testing.T) {
	var g Gate
	boom := errors.New("boom")
	assert.ErrorIs(t, g.Exclusive(func() error { return boom }), boom)
	assert.ErrorIs(t, g.Shared(func() error { return boom }), boom)
}

// blockingLoader holds Clear open until release is closed.
type blockingLoader struct {
	cleared chan struct{}
	release chan struct{}
}

func (l *blockingLoader) Clear(context.Context) error {
	close(l.cleared)
	<-l.release
	return nil
}

func (l *blockingLoader) Load(context.Context, string) (LoadStats, error) {
	return LoadStats{Nodes: 1}, nil
}

type nopCentrality struct{}

func (nopCentrality) Compute(context.Context) error { return nil }

func TestReload_ReadsWaitForRunningReload(t *testing.T) {
	gate := &Gate{}
	loader := &blockingLoader{cleared: make(chan struct{}), release: make(chan struct{})}
	orch := NewOrchestrator(loader, nopCentrality{}, gate, time.Minute, zap.NewNop(), nil)

	reloaded := make(chan error, 1)
	go func() {
		_, err := orch.Reload(context.Background(), "cochlea")
		reloaded <- err
	}()
	<-loader.cleared

	read := make(chan struct{})
	go func() {
		_ = gate.Shared(func() error {
			close(read)
			return nil
		})
	}()

	select {
	case <-read:
		t.Fatal("read ran while the store was being cleared")
	case <-time.After(50 * time.Millisecond):
	}

	close(loader.release)
	require.NoError(t, <-reloaded)
	select {
	case <-read:
	case <-time.After(time.Second):
		t.Fatal("read did not run after the reload finished")
	}
}
