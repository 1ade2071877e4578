package source

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/JonMunkholm/gridsource/internal/core"
)

// Querier is implemented by *sql.DB, *sql.Tx and *sql.Conn.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// QuerySQL runs query through database/sql and returns one Row per result
// row in select order. Driver []byte values are converted to string so they
// classify as text rather than as arrays.
func QuerySQL(ctx context.Context, q Querier, query string, args ...any) (out []core.Row, err error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("source query: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("source query: %w", cerr)
		}
	}()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("source query: %w", err)
	}
	keys := headerKeys(cols)

	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("source query: scan row %d: %w", len(out), err)
		}
		var row core.Row
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row.Set(keys[i], v)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("source query: %w", err)
	}
	return out, nil
}
