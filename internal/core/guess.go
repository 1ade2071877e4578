package core

// guess.go infers a ColumnType from the values observed for one key.
//
// Each value is classified on its own, then the classifications are folded
// with Join. Values that carry no information (nil, "", invalid database
// nulls) are skipped, and a key with nothing informative is text.

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// GuessType returns the most specific tag consistent with every value.
// The result depends only on which values are present, not their order.
func GuessType(values []any) ColumnType {
	var acc Accumulator
	for _, v := range values {
		acc.Add(v)
	}
	return acc.Type()
}

// Accumulator folds classifications one value at a time.
// The zero value is ready to use.
type Accumulator struct {
	typ  ColumnType
	seen bool
}

// Add classifies v and joins it into the running result.
func (a *Accumulator) Add(v any) {
	t, ok := Classify(v)
	if !ok {
		return
	}
	if !a.seen {
		a.typ, a.seen = t, true
		return
	}
	a.typ = Join(a.typ, t)
}

// Type returns the folded tag, or text when no informative value was added.
func (a *Accumulator) Type() ColumnType {
	if !a.seen {
		return TypeText
	}
	return a.typ
}

// Join reconciles two candidate tags. It is commutative and associative:
//   - equal tags stay as they are
//   - array absorbs everything
//   - boolean and number widen to number
//   - date and datetime widen to datetime
//   - any other mix falls back to text
func Join(a, b ColumnType) ColumnType {
	if a == b {
		return a
	}
	if a == TypeArray || b == TypeArray {
		return TypeArray
	}

	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	switch {
	case lo == TypeNumber && hi == TypeBoolean:
		return TypeNumber
	case lo == TypeDate && hi == TypeDateTime:
		return TypeDateTime
	default:
		return TypeText
	}
}

// Classify returns the candidate tag for a single raw value.
// ok is false when the value is uninformative and must be skipped.
func Classify(v any) (t ColumnType, ok bool) {
	switch x := v.(type) {
	case nil:
		return TypeText, false
	case string:
		return classifyString(x)
	case []byte:
		return classifyString(string(x))
	case bool:
		return TypeBoolean, true
	case int:
		return classifyInt(int64(x)), true
	case int8:
		return classifyInt(int64(x)), true
	case int16:
		return classifyInt(int64(x)), true
	case int32:
		return classifyInt(int64(x)), true
	case int64:
		return classifyInt(x), true
	case uint:
		return classifyUint(uint64(x)), true
	case uint8:
		return classifyUint(uint64(x)), true
	case uint16:
		return classifyUint(uint64(x)), true
	case uint32:
		return classifyUint(uint64(x)), true
	case uint64:
		return classifyUint(x), true
	case float32, float64:
		return TypeNumber, true
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return classifyInt(i), true
		}
		return TypeNumber, true
	case decimal.Decimal:
		return TypeNumber, true
	case time.Time:
		return classifyTime(x), true
	case *time.Time:
		if x == nil {
			return TypeText, false
		}
		return classifyTime(*x), true
	case Row:
		return TypeArray, true
	case *Row:
		if x == nil {
			return TypeText, false
		}
		return TypeArray, true
	}

	if t, ok, handled := classifyPgtype(v); handled {
		return t, ok
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		if rv.IsNil() {
			return TypeText, false
		}
		return TypeArray, true
	case reflect.Array:
		return TypeArray, true
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return TypeText, false
		}
		return Classify(rv.Elem().Interface())
	case reflect.Bool:
		return TypeBoolean, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return classifyInt(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return classifyUint(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return TypeNumber, true
	case reflect.String:
		return classifyString(rv.String())
	}

	return TypeText, true
}

// classifyString applies the string rules in order: temporal, numeral
// boolean, numeric, text. The empty string is uninformative.
func classifyString(s string) (ColumnType, bool) {
	if s == "" {
		return TypeText, false
	}
	if _, hasTime, ok := ParseTemporal(s); ok {
		if hasTime {
			return TypeDateTime, true
		}
		return TypeDate, true
	}
	if isBoolString(s) {
		return TypeBoolean, true
	}
	if IsNumericString(s) {
		return TypeNumber, true
	}
	return TypeText, true
}

func classifyInt(i int64) ColumnType {
	if i == 0 || i == 1 {
		return TypeBoolean
	}
	return TypeNumber
}

func classifyUint(u uint64) ColumnType {
	if u <= 1 {
		return TypeBoolean
	}
	return TypeNumber
}

func classifyTime(t time.Time) ColumnType {
	if hasTimeOfDay(t) {
		return TypeDateTime
	}
	return TypeDate
}

// classifyPgtype handles values scanned from Postgres into pgtype wrappers.
// Invalid (NULL) wrappers are uninformative. handled is false for other types.
func classifyPgtype(v any) (t ColumnType, ok bool, handled bool) {
	switch x := v.(type) {
	case pgtype.Text:
		if !x.Valid {
			return TypeText, false, true
		}
		ct, valid := classifyString(x.String)
		return ct, valid, true
	case pgtype.Bool:
		return TypeBoolean, x.Valid, true
	case pgtype.Int2:
		return classifyInt(int64(x.Int16)), x.Valid, true
	case pgtype.Int4:
		return classifyInt(int64(x.Int32)), x.Valid, true
	case pgtype.Int8:
		return classifyInt(x.Int64), x.Valid, true
	case pgtype.Float4:
		return TypeNumber, x.Valid, true
	case pgtype.Float8:
		return TypeNumber, x.Valid, true
	case pgtype.Numeric:
		return TypeNumber, x.Valid, true
	case pgtype.Date:
		return TypeDate, x.Valid, true
	case pgtype.Timestamp:
		if !x.Valid {
			return TypeText, false, true
		}
		return classifyTime(x.Time), true, true
	case pgtype.Timestamptz:
		if !x.Valid {
			return TypeText, false, true
		}
		return classifyTime(x.Time), true, true
	}
	return TypeText, false, false
}
