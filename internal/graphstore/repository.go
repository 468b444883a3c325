package graphstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/saulfrancisco-ruizacevedo/gocypher"
)

// ErrNotFound is returned by lookups when no node matches.
var ErrNotFound = errors.New("record not found")

// Repository reads nodes of a tagged struct type T.
type Repository[T any] struct {
	runner Runner
	meta   *entityMetadata
}

// NewRepository parses the `graph` tags of T and returns a repository for it.
func NewRepository[T any](runner Runner) (*Repository[T], error) {
	meta, err := metadataFor[T]()
	if err != nil {
		return nil, err
	}
	return &Repository[T]{runner: runner, meta: meta}, nil
}

// Label is the node label T maps to.
func (r *Repository[T]) Label() string { return r.meta.Label }

// FindFirst returns the first node whose identity property equals id, along
// with the number of nodes that matched. Identity is not enforced by the
// store, so more than one match is possible; which one comes first is up to
// the store.
//
// Parameters:
//   - ctx: The context for the query execution.
//   - id: The identity property value to match.
//
// Returns:
//   - A pointer to the first matching T.
//   - The number of nodes that matched.
//   - ErrNotFound when nothing matches, or the query or mapping error.
func (r *Repository[T]) FindFirst(ctx context.Context, id any) (*T, int, error) {
	props := map[string]interface{}{r.meta.PKProp: id}
	query, params, err := gocypher.NewQueryBuilder().
		Match(gocypher.N("n", r.meta.Label).WithProperties(props)).
		Return("n").
		Build()
	if err != nil {
		return nil, 0, fmt.Errorf("could not build query: %w", err)
	}

	eagerResult, err := r.runner.Run(ctx, query, params)
	if err != nil {
		return nil, 0, err
	}
	if len(eagerResult.Records) == 0 {
		return nil, 0, ErrNotFound
	}

	node, err := NodeAt(eagerResult.Records[0], "n")
	if err != nil {
		return nil, 0, err
	}
	entity := new(T)
	if err := mapNodeToStruct(node, entity, r.meta); err != nil {
		return nil, 0, err
	}
	return entity, len(eagerResult.Records), nil
}

// NodeAt returns the node stored under key in record.
func NodeAt(record *neo4j.Record, key string) (neo4j.Node, error) {
	value, ok := record.Get(key)
	if !ok {
		return neo4j.Node{}, fmt.Errorf("could not find return value '%s' in query result", key)
	}
	node, ok := value.(neo4j.Node)
	if !ok {
		return neo4j.Node{}, fmt.Errorf("return value '%s' is not a node", key)
	}
	return node, nil
}
