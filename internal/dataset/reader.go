package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/saulfrancisco-ruizacevedo/tissue-explorer/internal/protein"
)

// Delimiter separates fields in dataset resources.
const Delimiter = '|'

// Interaction source columns.
const (
	ColSource = "EntrezGeneID1"
	ColTarget = "EntrezGeneID2"
)

var propertyColumns = []string{protein.PropSymbol, protein.PropFullName, protein.PropSummary}

// RowError reports a malformed row. Line is 1-based and counts the header.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

func (e *RowError) Unwrap() error { return e.Err }

// PropertyRow is one row of a node-properties source. Fields holds only the
// string columns present on the row; absent ones are left out, not defaulted.
type PropertyRow struct {
	GeneID int64
	Fields map[string]string
}

// Props returns the node properties the row creates.
func (r PropertyRow) Props() map[string]any {
	props := make(map[string]any, len(r.Fields)+1)
	props[protein.PropGeneID] = r.GeneID
	for k, v := range r.Fields {
		props[k] = v
	}
	return props
}

type table struct {
	r    *csv.Reader
	cols map[string]int
	n    int
}

func newTable(src io.Reader, required ...string) (*table, error) {
	r := csv.NewReader(src)
	r.Comma = Delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, &RowError{Line: 1, Err: errors.New("missing header row")}
	}
	if err != nil {
		return nil, rowError(err, 1)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		cols[h] = i
	}
	for _, c := range required {
		if _, ok := cols[c]; !ok {
			return nil, &RowError{Line: 1, Err: fmt.Errorf("missing column %s", c)}
		}
	}
	return &table{r: r, cols: cols, n: len(header)}, nil
}

// next returns the next record and its line, or io.EOF.
func (t *table) next() ([]string, int, error) {
	rec, err := t.r.Read()
	if err == io.EOF {
		return nil, 0, io.EOF
	}
	if err != nil {
		return nil, 0, rowError(err, 0)
	}
	line, _ := t.r.FieldPos(0)
	if len(rec) > t.n {
		return nil, line, &RowError{Line: line, Err: fmt.Errorf("row has %d fields, header has %d", len(rec), t.n)}
	}
	// Rows are single-line. A field opening with an unbalanced quote would
	// otherwise consume the following rows.
	for i, f := range rec {
		if strings.ContainsAny(f, "\r\n") {
			return nil, line, &RowError{Line: line, Err: fmt.Errorf("field %d runs past the end of the line (unbalanced quote)", i+1)}
		}
	}
	return rec, line, nil
}

func (t *table) field(rec []string, col string) (string, bool) {
	i, ok := t.cols[col]
	if !ok || i >= len(rec) {
		return "", false
	}
	return rec[i], true
}

func (t *table) geneID(rec []string, col string, line int) (int64, error) {
	raw, ok := t.field(rec, col)
	if !ok || strings.TrimSpace(raw) == "" {
		return 0, &RowError{Line: line, Err: fmt.Errorf("missing %s", col)}
	}
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, &RowError{Line: line, Err: fmt.Errorf("%s %q is not an integer", col, raw)}
	}
	return id, nil
}

func rowError(err error, line int) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &RowError{Line: pe.StartLine, Err: pe.Err}
	}
	return &RowError{Line: line, Err: err}
}

// PropertyReader streams rows of a node-properties source.
type PropertyReader struct {
	t *table
}

// NewPropertyReader reads the header of src. The EntrezGeneID column is required.
func NewPropertyReader(src io.Reader) (*PropertyReader, error) {
	t, err := newTable(src, protein.PropGeneID)
	if err != nil {
		return nil, err
	}
	return &PropertyReader{t: t}, nil
}

// Next returns the next row, io.EOF after the last one, or a *RowError.
func (p *PropertyReader) Next() (PropertyRow, error) {
	rec, line, err := p.t.next()
	if err != nil {
		return PropertyRow{}, err
	}
	id, err := p.t.geneID(rec, protein.PropGeneID, line)
	if err != nil {
		return PropertyRow{}, err
	}
	row := PropertyRow{GeneID: id, Fields: make(map[string]string, len(propertyColumns))}
	for _, col := range propertyColumns {
		if v, ok := p.t.field(rec, col); ok {
			row.Fields[col] = v
		}
	}
	return row, nil
}

// InteractionReader streams rows of an interaction source.
type InteractionReader struct {
	t *table
}

// NewInteractionReader reads the header of src. Both gene id columns are required.
func NewInteractionReader(src io.Reader) (*InteractionReader, error) {
	t, err := newTable(src, ColSource, ColTarget)
	if err != nil {
		return nil, err
	}
	return &InteractionReader{t: t}, nil
}

// Next returns the next interaction, io.EOF after the last one, or a *RowError.
func (ir *InteractionReader) Next() (protein.Interaction, error) {
	rec, line, err := ir.t.next()
	if err != nil {
		return protein.Interaction{}, err
	}
	src, err := ir.t.geneID(rec, ColSource, line)
	if err != nil {
		return protein.Interaction{}, err
	}
	dst, err := ir.t.geneID(rec, ColTarget, line)
	if err != nil {
		return protein.Interaction{}, err
	}
	return protein.Interaction{Source: src, Target: dst}, nil
}
