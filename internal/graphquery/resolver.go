package graphquery

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/saulfrancisco-ruizacevedo/tissue-explorer/internal/graphstore"
	"github.com/saulfrancisco-ruizacevedo/tissue-explorer/internal/protein"
)

// Resolver looks up single proteins by gene id.
type Resolver struct {
	repo   *graphstore.Repository[protein.Node]
	logger *zap.Logger
}

// NewResolver creates a Resolver.
func NewResolver(runner graphstore.Runner, logger *zap.Logger) (*Resolver, error) {
	repo, err := graphstore.NewRepository[protein.Node](runner)
	if err != nil {
		return nil, err
	}
	return &Resolver{repo: repo, logger: logger}, nil
}

// ByID returns the properties of the protein with gene id id. When several
// nodes carry the id, the first one returned by the store is used and Matches
// reports how many there were.
//
// Returns *protein.NotFoundError when no node matches and *protein.QueryError
// when the store cannot be read.
func (r *Resolver) ByID(ctx context.Context, id int64) (*protein.Lookup, error) {
	n, matches, err := r.repo.FindFirst(graphstore.WithOperation(ctx, "lookup"), id)
	if errors.Is(err, graphstore.ErrNotFound) {
		return nil, &protein.NotFoundError{GeneID: id}
	}
	if err != nil {
		return nil, &protein.QueryError{Op: "lookup protein", Err: err}
	}
	if matches > 1 {
		r.logger.Warn("Gene id is not unique in the store",
			zap.Int64("geneID", id),
			zap.Int("matches", matches),
		)
	}
	return &protein.Lookup{Properties: protein.PropertiesOf(n), Matches: matches}, nil
}
