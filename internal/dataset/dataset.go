// Package dataset locates and reads the two resources that make up a tissue
// dataset: a node-properties source and an interaction source, both
// pipe-delimited with a header row.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
)

// Ext is the extension of dataset resources.
const Ext = "csv"

var tissuePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// ErrInvalidTissue is returned for tissue names that cannot name a dataset.
var ErrInvalidTissue = errors.New("invalid tissue name")

// ValidateTissue rejects names that could escape the dataset location.
func ValidateTissue(tissue string) error {
	if !tissuePattern.MatchString(tissue) {
		return fmt.Errorf("%w: %q", ErrInvalidTissue, tissue)
	}
	return nil
}

// PropertiesName is the node-properties resource of tissue.
func PropertiesName(tissue string) string {
	return "interactions_" + tissue + "_properties." + Ext
}

// InteractionsName is the interaction resource of tissue.
func InteractionsName(tissue string) string {
	return "interactions_" + tissue + "." + Ext
}

// Source opens dataset resources by name.
type Source interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Location describes where name is read from, for logs and errors.
	Location(name string) string
}
