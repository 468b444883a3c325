package protein

import (
	"errors"
	"fmt"
)

// ErrNotFound is matched by NotFoundError through errors.Is.
var ErrNotFound = errors.New("protein not found")

// NotFoundError reports that no node carries the requested gene id.
type NotFoundError struct {
	GeneID int64
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no protein with %s %d", PropGeneID, e.GeneID)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// LoadError reports a failed dataset load. Rows written before the failure
// are not rolled back.
type LoadError struct {
	Tissue   string
	Resource string
	Line     int
	Err      error
}

// Error names the tissue and, when known, the dataset line.
func (e *LoadError) Error() string {
	switch {
	case e.Resource == "":
		return fmt.Sprintf("load tissue %q: %v", e.Tissue, e.Err)
	case e.Line > 0:
		return fmt.Sprintf("load tissue %q: %s line %d: %v", e.Tissue, e.Resource, e.Line, e.Err)
	default:
		return fmt.Sprintf("load tissue %q: %s: %v", e.Tissue, e.Resource, e.Err)
	}
}

func (e *LoadError) Unwrap() error { return e.Err }

// ClearError reports that the store could not be emptied. The store may still
// hold some or all of its previous contents.
type ClearError struct {
	Err error
}

// Error implements the error interface.
func (e *ClearError) Error() string { return "clear store: " + e.Err.Error() }

func (e *ClearError) Unwrap() error { return e.Err }

// CentralityError reports a failed centrality run. Nodes keep whatever score
// they had, which after a reload means none.
type CentralityError struct {
	Err error
}

// Error implements the error interface.
func (e *CentralityError) Error() string { return "compute centrality: " + e.Err.Error() }

func (e *CentralityError) Unwrap() error { return e.Err }

// QueryError reports a failed read against the store.
type QueryError struct {
	Op  string
	Err error
}

// Error prefixes the cause with the failed operation.
func (e *QueryError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *QueryError) Unwrap() error { return e.Err }
