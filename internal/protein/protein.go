// Package protein contains the record types stored in the graph and the
// response shapes assembled from them for the visualization front-end.
//
// Property names are carried as `graph` struct tags so the literal names used
// in the store (EntrezGeneID, OfficialSymbol, ...) stay in one place.
package protein

// Store vocabulary shared by the loader and the query layer.
const (
	Label           = "PROTEIN"
	InteractionType = "INTERACTION"

	PropGeneID     = "EntrezGeneID"
	PropSymbol     = "OfficialSymbol"
	PropFullName   = "OfficialFullName"
	PropSummary    = "Summary"
	PropCentrality = "BetweennessCentrality"
)

// Node is a protein as stored in the graph. GeneID is unique by convention
// only; the loader does not enforce it.
type Node struct {
	GeneID   int64  `graph:"pk,property:EntrezGeneID"`
	Symbol   string `graph:"property:OfficialSymbol"`
	FullName string `graph:"property:OfficialFullName"`
	Summary  string `graph:"property:Summary"`

	// Centrality is nil until a centrality run has written a score.
	Centrality *float64 `graph:"property:BetweennessCentrality"`
}

// GraphLabel names the node label Node maps to.
func (Node) GraphLabel() string { return Label }

// Interaction is one row of an edge source: a directed link between two gene
// ids. Direction is a storage artifact; the domain treats it as undirected.
type Interaction struct {
	Source int64
	Target int64
}
