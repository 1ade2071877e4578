// Package core infers column definitions for schema-less tabular data.
//
// This package is the heart of gridsource, containing all domain logic
// independent of any transport or storage layer. It can be used by web
// handlers, CLI tools, or tests without modification.
//
// # Vector
//
// A [Vector] holds an ordered row set and a column list. Rows are [Row]
// values, which remember key order so that guessed columns come out in the
// order their keys first appear:
//
//	v, err := core.NewVector(rows, []core.Column{core.StaticColumn("total")})
//	if err != nil {
//	    // errors.Is(err, core.ErrInvalidInput)
//	}
//	v.Initialise(registry)
//	for _, c := range v.Columns() {
//	    ...
//	}
//
// Construction rejects a row set whose rows are all empty. [FromRecords] and
// [FromJSON] additionally reject elements that are not mappings.
//
// # Type Guessing
//
// [GuessType] reduces the values seen for one key to a [ColumnType]. Each
// value is classified by [Classify]; classifications are folded by [Join]:
//
//	array > datetime > date > boolean > number > text
//
// Boolean and number widen to number, date and datetime widen to datetime,
// array absorbs everything, and every other mix is text. nil and "" carry no
// information and are skipped.
//
// # Container
//
// [Vector.Initialise] takes a [Container] and passes it, untouched, to
// explicit columns implementing [Initialiser]. [Registry] is the stock
// implementation.
//
// # Error Handling
//
// [ErrInvalidInput] is the only error kind. [MapError] turns it, and the
// errors of the surrounding service, into user-facing messages with codes.
package core
