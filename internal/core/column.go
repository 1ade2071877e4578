package core

import "encoding/json"

// UntypedColumn is a column synthesized from a row key during Vector.Initialise.
// Its attributes are fixed except for the inferred Type.
type UntypedColumn struct {
	ColumnID   string     `json:"id"`
	Title      string     `json:"title"`
	Field      string     `json:"field"`
	Type       ColumnType `json:"type"`
	Source     bool       `json:"source"`
	Filterable bool       `json:"filterable"`
	Sortable   bool       `json:"sortable"`
	Visible    bool       `json:"visible"`
}

// NewUntypedColumn returns the guessed column for key with type text.
// ColumnID, Title and Field all carry the key unlocalized.
func NewUntypedColumn(key string) *UntypedColumn {
	return &UntypedColumn{
		ColumnID:   key,
		Title:      key,
		Field:      key,
		Type:       TypeText,
		Source:     true,
		Filterable: true,
		Sortable:   true,
		Visible:    true,
	}
}

// ID implements Column.
func (c *UntypedColumn) ID() string { return c.ColumnID }

// SetType sets the inferred type.
func (c *UntypedColumn) SetType(t ColumnType) { c.Type = t }

// StaticColumn is a minimal explicit column that only carries an id.
// It stands in for caller-defined or computed columns, e.g. ids passed over HTTP.
type StaticColumn string

// ID implements Column.
func (c StaticColumn) ID() string { return string(c) }

// MarshalJSON encodes the column as {"id": ...} to match guessed columns.
func (c StaticColumn) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID string `json:"id"`
	}{string(c)})
}
