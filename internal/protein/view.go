package protein

import (
	"encoding/json"
)

// Score is a centrality value that may be absent. An absent score is written
// as the empty string so the front-end always receives the key.
type Score struct {
	Value float64
	Valid bool
}

// ScoreOf converts an optional stored value into a Score.
func ScoreOf(v *float64) Score {
	if v == nil {
		return Score{}
	}
	return Score{Value: *v, Valid: true}
}

// MarshalJSON implements json.Marshaler.
func (s Score) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return []byte(`""`), nil
	}
	return json.Marshal(s.Value)
}

// GraphNode is a node of the visualization graph.
type GraphNode struct {
	ID     int64  `json:"id"`
	BC     Score  `json:"bc"`
	Symbol string `json:"symbol"`
}

// Link is an undirected edge of the visualization graph. Source and Target
// keep the orientation of the first stored edge seen for the pair.
type Link struct {
	Source int64 `json:"source"`
	Target int64 `json:"target"`
}

// Graph is the deduplicated node/link structure served to the front-end.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Links []Link      `json:"links"`
}

// Properties is the property view of a single protein.
type Properties struct {
	EntrezGeneID     int64  `json:"EntrezGeneID"`
	OfficialSymbol   string `json:"OfficialSymbol"`
	OfficialFullName string `json:"OfficialFullName"`
	Summary          string `json:"Summary"`
	Centrality       Score  `json:"BetweennessCentrality"`
}

// PropertiesOf builds the property view of n.
func PropertiesOf(n *Node) Properties {
	return Properties{
		EntrezGeneID:     n.GeneID,
		OfficialSymbol:   n.Symbol,
		OfficialFullName: n.FullName,
		Summary:          n.Summary,
		Centrality:       ScoreOf(n.Centrality),
	}
}

// Lookup is the result of a point lookup by gene id. Matches counts every
// node carrying the id; only the first one is reported in Properties.
type Lookup struct {
	Properties Properties `json:"properties"`
	Matches    int        `json:"-"`
}
