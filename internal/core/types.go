// Package core provides the column inference logic for schema-less tabular data.
// This package has no transport or storage dependencies and can be used by any frontend.
package core

import (
	"encoding/json"
	"fmt"
)

// ColumnType is the inferred semantic kind of a column's values.
//
// Values are declared in ascending specificity so that Rank and the
// comparison operators follow the order text < number < boolean < date <
// datetime < array.
type ColumnType int

const (
	TypeText ColumnType = iota
	TypeNumber
	TypeBoolean
	TypeDate
	TypeDateTime
	TypeArray
)

// ColumnTypes lists every tag from least to most specific.
var ColumnTypes = []ColumnType{TypeText, TypeNumber, TypeBoolean, TypeDate, TypeDateTime, TypeArray}

// String returns the tag name used in column definitions ("text", "number", ...).
func (t ColumnType) String() string {
	switch t {
	case TypeText:
		return "text"
	case TypeNumber:
		return "number"
	case TypeBoolean:
		return "boolean"
	case TypeDate:
		return "date"
	case TypeDateTime:
		return "datetime"
	case TypeArray:
		return "array"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// Rank returns the position of t in the specificity order. Higher is more specific.
func (t ColumnType) Rank() int {
	return int(t)
}

// ParseColumnType converts a tag name back to a ColumnType.
// Returns false for unknown names.
func ParseColumnType(s string) (ColumnType, bool) {
	for _, t := range ColumnTypes {
		if t.String() == s {
			return t, true
		}
	}
	return TypeText, false
}

// MarshalJSON encodes the tag as its name.
func (t ColumnType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes a tag name.
func (t *ColumnType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	ct, ok := ParseColumnType(s)
	if !ok {
		return fmt.Errorf("unknown column type %q", s)
	}
	*t = ct
	return nil
}

// Column is the capability every column descriptor exposes to a Vector.
// Explicit columns are supplied by callers; guessed columns are *UntypedColumn.
type Column interface {
	ID() string
}

// Initialiser is implemented by explicit columns that need the container
// to finish their own setup. Vector.Initialise hands the container over unchanged.
type Initialiser interface {
	Initialise(c Container)
}

// Container resolves named collaborators for columns during initialisation.
// Vector never inspects it.
type Container interface {
	Get(name string) (any, bool)
}
