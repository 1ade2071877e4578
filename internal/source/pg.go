package source

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/gridsource/internal/core"
)

// DBTX is the subset of pgx used to run source queries.
// *pgxpool.Pool, *pgx.Conn and pgx.Tx all satisfy it.
type DBTX interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// QueryPostgres runs sql and returns one Row per result row, keyed by the
// result column names in select order. Values are what pgx decodes for
// each column type; uuid columns are rendered as their canonical string.
func QueryPostgres(ctx context.Context, db DBTX, sql string, args ...any) ([]core.Row, error) {
	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("source query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = f.Name
	}
	keys = headerKeys(keys)

	var out []core.Row
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("source query: read row %d: %w", len(out), err)
		}

		var row core.Row
		for i, v := range vals {
			if i >= len(keys) {
				break
			}
			if fields[i].DataTypeOID == pgtype.UUIDOID {
				if b, ok := v.([16]byte); ok {
					v = uuid.UUID(b).String()
				}
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
