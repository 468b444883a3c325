package graphstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saulfrancisco-ruizacevedo/tissue-explorer/internal/graphstore/graphstoretest"
)

type storedProtein struct {
	GeneID int64  `graph:"pk,property:EntrezGeneID"`
	Symbol string `graph:"property:OfficialSymbol"`
}

func (storedProtein) GraphLabel() string { return "PROTEIN" }

func TestRepository_FindFirst(t *testing.T) {
	store := &graphstoretest.Store{}
	store.AddNode(map[string]any{"EntrezGeneID": int64(1), "OfficialSymbol": "A"})
	store.AddNode(map[string]any{"EntrezGeneID": int64(2), "OfficialSymbol": "B"})

	repo, err := NewRepository[storedProtein](store)
	require.NoError(t, err)
	assert.Equal(t, "PROTEIN", repo.Label())

	got, matches, err := repo.FindFirst(context.Background(), int64(2))
	require.NoError(t, err)
	assert.Equal(t, 1, matches)
	assert.Equal(t, "B", got.Symbol)
}

func TestRepository_FindFirst_Duplicates(t *testing.T) {
	store := &graphstoretest.Store{}
	store.AddNode(map[string]any{"EntrezGeneID": int64(1), "OfficialSymbol": "first"})
	store.AddNode(map[string]any{"EntrezGeneID": int64(1), "OfficialSymbol": "second"})

	repo, err := NewRepository[storedProtein](store)
	require.NoError(t, err)

	got, matches, err := repo.FindFirst(context.Background(), int64(1))
	require.NoError(t, err)
	assert.Equal(t, 2, matches)
	assert.Equal(t, "first", got.Symbol)
}

func TestRepository_FindFirst_NotFound(t *testing.T) {
	repo, err := NewRepository[storedProtein](&graphstoretest.Store{})
	require.NoError(t, err)

	_, _, err = repo.FindFirst(context.Background(), int64(9))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_FindFirst_StoreError(t *testing.T) {
	store := &graphstoretest.Store{}
	boom := errors.New("connection reset")
	store.FailOn(graphstoretest.KindMatchByID, boom)

	repo, err := NewRepository[storedProtein](store)
	require.NoError(t, err)

	_, _, err = repo.FindFirst(context.Background(), int64(1))
	assert.ErrorIs(t, err, boom)
}
