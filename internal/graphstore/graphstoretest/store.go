// Package graphstoretest provides an in-memory graphstore.Runner that answers
// the queries issued by the loader, the centrality invoker and the query
// layer, so those components can be tested without a running store.
//
// Queries are recognised by their shape rather than parsed, and results use
// the aliases the service's queries return (a, b for the interaction
// pattern; n for lookups).
package graphstoretest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Kind classifies a query.
type Kind string

const (
	KindClear        Kind = "clear"
	KindIndex        Kind = "index"
	KindCreateNodes  Kind = "create-nodes"
	KindCreateEdges  Kind = "create-edges"
	KindCentrality   Kind = "centrality"
	KindMatchPattern Kind = "match-pattern"
	KindMatchByID    Kind = "match-by-id"
	KindUnknown      Kind = "unknown"
)

// Classify returns the kind of query.
func Classify(query string) Kind {
	q := strings.ToUpper(query)
	switch {
	case strings.Contains(q, "BETWEENNESS_CENTRALITY"):
		return KindCentrality
	case strings.Contains(q, "CREATE INDEX"):
		return KindIndex
	case strings.Contains(q, "DETACH DELETE"):
		return KindClear
	case strings.Contains(q, "UNWIND") && strings.Contains(q, "INTERACTION"):
		return KindCreateEdges
	case strings.Contains(q, "UNWIND"):
		return KindCreateNodes
	case strings.Contains(q, "MATCH") && strings.Contains(q, "INTERACTION"):
		return KindMatchPattern
	case strings.Contains(q, "MATCH"):
		return KindMatchByID
	}
	return KindUnknown
}

// Call records one query received by the Store.
type Call struct {
	Kind       Kind
	Query      string
	Params     map[string]any
	AutoCommit bool
}

type node struct {
	elementID string
	labels    []string
	props     map[string]any
}

type edge struct {
	from, to *node
}

// Store is an in-memory Runner. The zero value is ready to use.
type Store struct {
	mu       sync.Mutex
	nodes    []*node
	edges    []edge
	seq      int
	calls    []Call
	failures map[Kind]error
	indexes  []string
}

// FailOn makes every later query of kind fail with err. A nil err clears it.
func (s *Store) FailOn(kind Kind, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures == nil {
		s.failures = make(map[Kind]error)
	}
	if err == nil {
		delete(s.failures, kind)
		return
	}
	s.failures[kind] = err
}

// AddNode stores a PROTEIN node with a copy of props.
func (s *Store) AddNode(props map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addNode(props)
}

// AddEdge links every node carrying gene id from to every node carrying to.
func (s *Store) AddEdge(from, to int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.link(from, to)
}

// Calls returns the queries received so far.
func (s *Store) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsOf returns the queries of one kind received so far.
func (s *Store) CallsOf(kind Kind) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// NodeProps returns a copy of every stored node's properties in insertion order.
func (s *Store) NodeProps() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, copyProps(n.props))
	}
	return out
}

// EdgeCount returns the number of stored relationships.
func (s *Store) EdgeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.edges)
}

// Indexes returns the index statements received.
func (s *Store) Indexes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.indexes...)
}

func (s *Store) Run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	return s.run(ctx, query, params, false)
}

func (s *Store) RunAutoCommit(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	return s.run(ctx, query, params, true)
}

func (s *Store) run(ctx context.Context, query string, params map[string]any, autoCommit bool) (*neo4j.EagerResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	kind := Classify(query)
	s.calls = append(s.calls, Call{Kind: kind, Query: query, Params: params, AutoCommit: autoCommit})
	if err := s.failures[kind]; err != nil {
		return nil, err
	}

	switch kind {
	case KindClear:
		s.nodes, s.edges = nil, nil
		return &neo4j.EagerResult{}, nil
	case KindIndex:
		s.indexes = append(s.indexes, query)
		return &neo4j.EagerResult{}, nil
	case KindCreateNodes:
		rows, err := rowsParam(params)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			s.addNode(row)
		}
		return &neo4j.EagerResult{}, nil
	case KindCreateEdges:
		rows, err := rowsParam(params)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			from, ok1 := toInt64(row["source"])
			to, ok2 := toInt64(row["target"])
			if !ok1 || !ok2 {
				return nil, fmt.Errorf("graphstoretest: edge row without integer source/target: %v", row)
			}
			s.link(from, to)
		}
		return &neo4j.EagerResult{}, nil
	case KindCentrality:
		s.centrality()
		return &neo4j.EagerResult{}, nil
	case KindMatchPattern:
		return s.matchPattern(), nil
	case KindMatchByID:
		if len(params) != 1 {
			return nil, fmt.Errorf("graphstoretest: lookup expects one parameter, got %d", len(params))
		}
		for _, v := range params {
			id, ok := toInt64(v)
			if !ok {
				return nil, fmt.Errorf("graphstoretest: lookup parameter %v is not an integer", v)
			}
			return s.matchByID(id), nil
		}
	}
	return nil, fmt.Errorf("graphstoretest: unrecognised query %q", query)
}

func (s *Store) addNode(props map[string]any) {
	s.seq++
	s.nodes = append(s.nodes, &node{
		elementID: fmt.Sprintf("n:%d", s.seq),
		labels:    []string{"PROTEIN"},
		props:     copyProps(props),
	})
}

func (s *Store) link(from, to int64) {
	for _, a := range s.byGeneID(from) {
		for _, b := range s.byGeneID(to) {
			s.edges = append(s.edges, edge{from: a, to: b})
		}
	}
}

func (s *Store) byGeneID(id int64) []*node {
	var out []*node
	for _, n := range s.nodes {
		if v, ok := toInt64(n.props["EntrezGeneID"]); ok && v == id {
			out = append(out, n)
		}
	}
	return out
}

// centrality writes a deterministic stand-in score: the number of
// (predecessor, successor) pairs routed through the node.
func (s *Store) centrality() {
	in := make(map[*node]int)
	out := make(map[*node]int)
	for _, e := range s.edges {
		out[e.from]++
		in[e.to]++
	}
	for _, n := range s.nodes {
		n.props["BetweennessCentrality"] = float64(in[n] * out[n])
	}
}

func (s *Store) matchPattern() *neo4j.EagerResult {
	res := &neo4j.EagerResult{Keys: []string{"a", "b"}}
	for _, e := range s.edges {
		res.Records = append(res.Records, &neo4j.Record{
			Keys:   res.Keys,
			Values: []any{e.from.toNeo4j(), e.to.toNeo4j()},
		})
	}
	return res
}

func (s *Store) matchByID(id int64) *neo4j.EagerResult {
	res := &neo4j.EagerResult{Keys: []string{"n"}}
	for _, n := range s.byGeneID(id) {
		res.Records = append(res.Records, &neo4j.Record{Keys: res.Keys, Values: []any{n.toNeo4j()}})
	}
	return res
}

func (n *node) toNeo4j() neo4j.Node {
	return neo4j.Node{ElementId: n.elementID, Labels: n.labels, Props: copyProps(n.props)}
}

func rowsParam(params map[string]any) ([]map[string]any, error) {
	rows, ok := params["rows"].([]map[string]any)
	if !ok {
		return nil, fmt.Errorf("graphstoretest: missing rows parameter")
	}
	return rows, nil
}

func copyProps(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	}
	return 0, false
}
