package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Vector is an in-memory tabular source: a frozen row set plus a column list.
//
// The column list starts as the explicit columns given at construction.
// Initialise appends one guessed column per uncovered key, once. A Vector
// must not be shared between goroutines while Initialise runs.
type Vector struct {
	id          string
	rows        []Row
	columns     []Column
	sampleSize  int
	initialised bool
}

// Option configures a Vector at construction.
type Option func(*Vector)

// WithSampleSize limits guessing to the values found in the first n rows.
// Keys are still discovered across every row. n <= 0 means all rows.
func WithSampleSize(n int) Option {
	return func(v *Vector) { v.sampleSize = n }
}

// WithID sets an explicit source id, which Hash then returns verbatim.
func WithID(id string) Option {
	return func(v *Vector) { v.id = id }
}

// NewVector validates rows and returns a Vector holding copies of rows and columns.
//
// An empty row set is valid. A non-empty row set where every row is empty
// is rejected with ErrInvalidInput, since no column shape can be inferred.
func NewVector(rows []Row, columns []Column, opts ...Option) (*Vector, error) {
	if err := validateRows(rows); err != nil {
		return nil, err
	}

	v := &Vector{
		rows:    make([]Row, len(rows)),
		columns: make([]Column, len(columns)),
	}
	for i, r := range rows {
		v.rows[i] = r.Clone()
	}
	copy(v.columns, columns)

	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// FromRecords builds a Vector from untyped records such as decoded JSON.
// Each record must be a Row, *Row, map[string]any or map[string]string;
// anything else is rejected with ErrInvalidInput naming the record index.
func FromRecords(records []any, columns []Column, opts ...Option) (*Vector, error) {
	rows := make([]Row, len(records))
	for i, rec := range records {
		row, err := recordToRow(i, rec)
		if err != nil {
			return nil, err
		}
		rows[i] = row
	}
	return NewVector(rows, columns, opts...)
}

// FromJSON decodes a JSON array of objects into a Vector, keeping each
// object's key order. Non-object elements and malformed JSON are rejected
// with ErrInvalidInput.
func FromJSON(data []byte, columns []Column, opts ...Option) (*Vector, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, invalidSet(fmt.Sprintf("rows must be a JSON array: %v", err))
	}

	rows := make([]Row, len(raws))
	for i, raw := range raws {
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			return nil, invalidRow(i, "expected an object, got %s", abbreviate(trimmed))
		}
		if err := json.Unmarshal(trimmed, &rows[i]); err != nil {
			return nil, invalidRow(i, "%v", err)
		}
	}
	return NewVector(rows, columns, opts...)
}

func recordToRow(i int, rec any) (Row, error) {
	switch r := rec.(type) {
	case Row:
		return r, nil
	case *Row:
		if r == nil {
			return Row{}, invalidRow(i, "nil row")
		}
		return *r, nil
	case map[string]any:
		return RowFromMap(r), nil
	case map[string]string:
		m := make(map[string]any, len(r))
		for k, s := range r {
			m[k] = s
		}
		return RowFromMap(m), nil
	default:
		return Row{}, invalidRow(i, "expected a mapping, got %T", rec)
	}
}

// validateRows rejects a non-empty row set in which no row has a key.
func validateRows(rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	for _, r := range rows {
		if r.Len() > 0 {
			return nil
		}
	}
	return invalidSet(fmt.Sprintf("all %d rows are empty", len(rows)))
}

// Initialise completes the column list.
//
// Explicit columns implementing Initialiser receive c unchanged first. Then
// every row key not already used as a column id gets a guessed column,
// appended after the explicit columns in order of first appearance.
//
// Initialise is single-use: later calls return without changing anything.
func (v *Vector) Initialise(c Container) {
	if v.initialised {
		return
	}
	v.initialised = true

	covered := make(map[string]struct{}, len(v.columns))
	for _, col := range v.columns {
		covered[col.ID()] = struct{}{}
		if ini, ok := col.(Initialiser); ok {
			ini.Initialise(c)
		}
	}

	var keys []string
	values := make(map[string][]any)
	seen := make(map[string]struct{})

	for i, row := range v.rows {
		sampled := v.sampleSize <= 0 || i < v.sampleSize
		for _, key := range row.keys {
			if _, ok := covered[key]; ok {
				continue
			}
			if _, ok := seen[key]; !ok {
				seen[key] = struct{}{}
				keys = append(keys, key)
			}
			if sampled {
				values[key] = append(values[key], row.values[key])
			}
		}
	}

	for _, key := range keys {
		col := NewUntypedColumn(key)
		col.SetType(GuessType(values[key]))
		v.columns = append(v.columns, col)
	}
}

// Initialised reports whether Initialise has run.
func (v *Vector) Initialised() bool {
	return v.initialised
}

// Columns returns the column list: explicit columns, then guessed ones.
func (v *Vector) Columns() []Column {
	out := make([]Column, len(v.columns))
	copy(out, v.columns)
	return out
}

// Column returns the first column with the given id.
func (v *Vector) Column(id string) (Column, bool) {
	for _, c := range v.columns {
		if c.ID() == id {
			return c, true
		}
	}
	return nil, false
}

// Rows returns copies of the rows in their original order.
func (v *Vector) Rows() []Row {
	out := make([]Row, len(v.rows))
	for i, r := range v.rows {
		out[i] = r.Clone()
	}
	return out
}

// RowCount returns the number of rows.
func (v *Vector) RowCount() int {
	return len(v.rows)
}

// ID returns the id set with WithID, or "".
func (v *Vector) ID() string {
	return v.id
}

// hashNamespace scopes name-based source hashes.
var hashNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:gridsource:vector"))

// Hash identifies the source. It is the explicit id when one was set,
// otherwise a name-based UUID over the current column ids, so two vectors
// with the same column list share a hash.
func (v *Vector) Hash() string {
	if v.id != "" {
		return v.id
	}
	ids := make([]string, len(v.columns))
	for i, c := range v.columns {
		ids[i] = c.ID()
	}
	return uuid.NewSHA1(hashNamespace, []byte(strings.Join(ids, "\x00"))).String()
}

// abbreviate shortens raw JSON for error messages.
func abbreviate(b []byte) string {
	const limit = 32
	if len(b) == 0 {
		return "nothing"
	}
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
