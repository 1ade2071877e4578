package source

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/gridsource/internal/core"
)

// FromArrowRecord converts a record batch into rows keyed by field name.
// Nulls become nil, dates and timestamps become time.Time, decimals become
// decimal.Decimal, lists become []any and structs become nested Rows.
func FromArrowRecord(rec arrow.Record) []core.Row {
	schema := rec.Schema()
	names := make([]string, schema.NumFields())
	for i, f := range schema.Fields() {
		names[i] = f.Name
	}
	keys := headerKeys(names)

	n := int(rec.NumRows())
	rows := make([]core.Row, n)
	for c := 0; c < int(rec.NumCols()); c++ {
		col := rec.Column(c)
		for i := 0; i < n; i++ {
			rows[i].Set(keys[c], arrowValue(col, i))
		}
	}
	return rows
}

// FromArrowTable converts every record of tbl, in order.
func FromArrowTable(tbl arrow.Table) []core.Row {
	tr := array.NewTableReader(tbl, 0)
	defer tr.Release()

	var rows []core.Row
	for tr.Next() {
		rows = append(rows, FromArrowRecord(tr.Record())...)
	}
	return rows
}

// ReadParquet reads a whole Parquet file into rows.
func ReadParquet(ctx context.Context, r parquet.ReaderAtSeeker) ([]core.Row, error) {
	pf, err := file.NewParquetReader(r)
	if err != nil {
		return nil, fmt.Errorf("invalid parquet: %w", err)
	}
	defer pf.Close()

	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, memory.NewGoAllocator())
	if err != nil {
		return nil, fmt.Errorf("invalid parquet: %w", err)
	}

	tbl, err := fr.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("invalid parquet: read table: %w", err)
	}
	defer tbl.Release()

	return FromArrowTable(tbl), nil
}

// arrowValue returns the Go value at position i of col.
func arrowValue(col arrow.Array, i int) any {
	if col.IsNull(i) {
		return nil
	}

	switch a := col.(type) {
	case *array.String:
		return a.Value(i)
	case *array.LargeString:
		return a.Value(i)
	case *array.Binary:
		return string(a.Value(i))
	case *array.Boolean:
		return a.Value(i)
	case *array.Int8:
		return a.Value(i)
	case *array.Int16:
		return a.Value(i)
	case *array.Int32:
		return a.Value(i)
	case *array.Int64:
		return a.Value(i)
	case *array.Uint8:
		return a.Value(i)
	case *array.Uint16:
		return a.Value(i)
	case *array.Uint32:
		return a.Value(i)
	case *array.Uint64:
		return a.Value(i)
	case *array.Float32:
		return a.Value(i)
	case *array.Float64:
		return a.Value(i)
	case *array.Date32:
		return a.Value(i).ToTime()
	case *array.Date64:
		return a.Value(i).ToTime()
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return a.Value(i).ToTime(unit)
	case *array.Decimal128:
		scale := a.DataType().(*arrow.Decimal128Type).Scale
		d, err := decimal.NewFromString(a.Value(i).ToString(scale))
		if err != nil {
			return a.ValueStr(i)
		}
		return d
	case *array.List:
		start, end := a.ValueOffsets(i)
		values := a.ListValues()
		out := make([]any, 0, end-start)
		for j := start; j < end; j++ {
			out = append(out, arrowValue(values, int(j)))
		}
		return out
	case *array.Struct:
		st := a.DataType().(*arrow.StructType)
		var row core.Row
		for f := 0; f < a.NumField(); f++ {
			row.Set(st.Field(f).Name, arrowValue(a.Field(f), i))
		}
		return row
	default:
		return col.GetOneForMarshal(i)
	}
}
